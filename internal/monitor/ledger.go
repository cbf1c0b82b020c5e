package monitor

import "sync"

// Ledger tracks which event ids have already been processed. An id marked
// seen is never reprocessed for the lifetime of the ledger.
type Ledger interface {
	IsNew(id string) bool
	MarkSeen(id string) error
	Close() error
}

// MemoryLedger is the default in-process seen-set. Not persisted: a
// restart re-admits recent events, which is the accepted at-least-once
// tradeoff.
type MemoryLedger struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{seen: make(map[string]struct{})}
}

func (l *MemoryLedger) IsNew(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[id]
	return !ok
}

func (l *MemoryLedger) MarkSeen(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen[id] = struct{}{}
	return nil
}

func (l *MemoryLedger) Close() error { return nil }
