package monitor

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ledgerRetention bounds the durable seen-set. Anything older than the
// polling lag can never reappear in a history listing, so 24h is generous.
const ledgerRetention = 24 * time.Hour

// SQLiteLedger is the durable seen-set for deployments that want
// exactly-once notification across restarts.
type SQLiteLedger struct {
	db  *sql.DB
	now func() time.Time
}

func OpenSQLiteLedger(path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger db: %w", err)
	}

	const schema = `CREATE TABLE IF NOT EXISTS seen_events (
		id      TEXT PRIMARY KEY,
		seen_at INTEGER NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}

	l := &SQLiteLedger{db: db, now: time.Now}
	if err := l.prune(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *SQLiteLedger) IsNew(id string) bool {
	var one int
	err := l.db.QueryRow("SELECT 1 FROM seen_events WHERE id = ?", id).Scan(&one)
	// On query failure err on the side of reprocessing: at-least-once.
	return err != nil
}

func (l *SQLiteLedger) MarkSeen(id string) error {
	if _, err := l.db.Exec(
		"INSERT OR IGNORE INTO seen_events (id, seen_at) VALUES (?, ?)",
		id, l.now().Unix(),
	); err != nil {
		return fmt.Errorf("marking event seen: %w", err)
	}
	return l.prune()
}

func (l *SQLiteLedger) prune() error {
	cutoff := l.now().Add(-ledgerRetention).Unix()
	if _, err := l.db.Exec("DELETE FROM seen_events WHERE seen_at < ?", cutoff); err != nil {
		return fmt.Errorf("pruning ledger: %w", err)
	}
	return nil
}

func (l *SQLiteLedger) Close() error { return l.db.Close() }
