package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/KhalidMas23/ring-sms-notif/internal/ring"
	"github.com/KhalidMas23/ring-sms-notif/pkg/models"
)

// State is the engine's lifecycle position, exposed for tests and the
// metrics collector.
type State int32

const (
	StateStarting State = iota
	StateAuthenticated
	StatePolling
	StateSleeping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateAuthenticated:
		return "authenticated"
	case StatePolling:
		return "polling"
	case StateSleeping:
		return "sleeping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// connectionLossThreshold is how many consecutive poll failures count as a
// lost connection (3 failures at the 10s default interval is ~30s down).
const connectionLossThreshold = 3

// statsEvery is how many ticks pass between periodic stats log lines.
const statsEvery = 100

// EventSource lists recent account activity.
type EventSource interface {
	ListEvents(ctx context.Context, since time.Time) ([]models.Event, error)
}

// Credentials is the session credential lifecycle.
type Credentials interface {
	Acquire(ctx context.Context) (*models.Token, error)
	Invalidate()
}

// Fetcher retrieves clips and snapshots for events.
type Fetcher interface {
	Fetch(ctx context.Context, ev models.Event) (*models.MediaArtifact, error)
	Snapshot(ctx context.Context, ev models.Event, clipPath string) ([]byte, error)
}

// Store persists artifacts under the quota.
type Store interface {
	Admit(art *models.MediaArtifact) (string, error)
	Put(name string, data []byte) (string, error)
	Usage() int64
	FileCount() int
}

// Notifier delivers event alerts and lifecycle messages. Failures are
// reported but never abort processing.
type Notifier interface {
	Notify(ctx context.Context, ev models.Event, snapshotPath string, clipSaved bool) error
	System(ctx context.Context, title, body string, priority int) error
}

// Stats is a snapshot of the engine's counters.
type Stats struct {
	Ticks               uint64
	EventsSeen          uint64
	NotificationsSent   uint64
	NotificationsFailed uint64
	ClipsSaved          uint64
	FetchFailures       uint64
	PollErrors          uint64
}

// Options wires an Engine.
type Options struct {
	Source    EventSource
	Creds     Credentials
	Ledger    Ledger
	Fetcher   Fetcher
	Store     Store // may be nil when downloads are disabled
	Notifier  Notifier
	Clock     Clock
	Log       *zap.Logger
	Interval  time.Duration
	Downloads bool
}

// Engine is the poll loop: one logical thread of control that lists
// events, filters them through the ledger, and fans each new event into a
// notification and (optionally) a download, with every failure short of
// AuthFailed absorbed locally.
type Engine struct {
	source    EventSource
	creds     Credentials
	ledger    Ledger
	fetcher   Fetcher
	store     Store
	notifier  Notifier
	clock     Clock
	log       *zap.Logger
	interval  time.Duration
	downloads bool

	since           time.Time
	connected       bool
	consecutiveErrs int
	lostAt          time.Time

	mu    sync.Mutex
	state State
	stats Stats
}

func NewEngine(opts Options) *Engine {
	return &Engine{
		source:    opts.Source,
		creds:     opts.Creds,
		ledger:    opts.Ledger,
		fetcher:   opts.Fetcher,
		store:     opts.Store,
		notifier:  opts.Notifier,
		clock:     opts.Clock,
		log:       opts.Log,
		interval:  opts.Interval,
		downloads: opts.Downloads,
		state:     StateStarting,
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Stats returns a copy of the engine counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

func (e *Engine) bump(f func(*Stats)) {
	e.mu.Lock()
	f(&e.stats)
	e.mu.Unlock()
}

// Run drives the loop until the context is cancelled or authentication
// fails for good. The in-flight tick always completes; cancellation is
// observed at the sleeping→polling boundary.
func (e *Engine) Run(ctx context.Context) error {
	e.setState(StateStarting)

	if err := e.authenticate(ctx); err != nil {
		if ring.IsFatalAuth(err) {
			e.log.Error("authentication failed, monitor cannot start", zap.Error(err))
			// Best-effort final notification before exiting.
			_ = e.notifier.System(context.WithoutCancel(ctx), "Ring Monitor Stopped",
				fmt.Sprintf("Authentication failed: %v", err), notifyHigh)
		}
		e.setState(StateStopped)
		return err
	}
	e.setState(StateAuthenticated)

	e.log.Info("monitor active",
		zap.Duration("interval", e.interval),
		zap.Bool("downloads", e.downloads))
	_ = e.notifier.System(ctx, "Ring Monitor Started", e.startupBody(), notifyNormal)

	// Small lookback so nothing slips between startup and the first tick;
	// the ledger absorbs the overlap.
	e.since = e.clock.Now().Add(-e.interval)
	e.connected = true

	var fatal error
	for {
		e.setState(StatePolling)
		if err := e.tick(ctx); err != nil {
			fatal = err
			break
		}
		e.setState(StateSleeping)
		if err := e.clock.Sleep(ctx, e.interval); err != nil {
			break
		}
	}

	final := context.WithoutCancel(ctx)
	if fatal != nil {
		e.log.Error("monitor stopping on fatal error", zap.Error(fatal))
		_ = e.notifier.System(final, "Ring Monitor Stopped",
			fmt.Sprintf("Fatal error: %v", fatal), notifyHigh)
	} else {
		e.log.Info("monitor stopped")
		_ = e.notifier.System(final, "Ring Monitor Stopped", e.shutdownBody(), notifyLow)
	}
	e.setState(StateStopped)
	return fatal
}

// authenticate acquires the session credential, retrying transient
// failures on the poll cadence. Fatal auth errors return immediately.
func (e *Engine) authenticate(ctx context.Context) error {
	for {
		_, err := e.creds.Acquire(ctx)
		if err == nil {
			return nil
		}
		if ring.IsFatalAuth(err) {
			return err
		}
		e.log.Warn("credential acquisition failed, retrying", zap.Error(err))
		if serr := e.clock.Sleep(ctx, e.interval); serr != nil {
			return serr
		}
	}
}

// tick runs one poll pass. Only fatal auth errors are returned; everything
// else is logged and absorbed so the next tick still happens.
func (e *Engine) tick(ctx context.Context) error {
	e.bump(func(s *Stats) { s.Ticks++ })
	now := e.clock.Now()

	events, err := e.source.ListEvents(ctx, e.since)
	if err != nil {
		if ring.IsFatalAuth(err) {
			return err
		}
		if errors.Is(err, ring.ErrUnauthorized) {
			// Stale session; force a refresh on the next pass.
			e.creds.Invalidate()
		}
		e.bump(func(s *Stats) { s.PollErrors++ })
		e.consecutiveErrs++
		e.log.Warn("event listing failed",
			zap.Int("consecutive_errors", e.consecutiveErrs),
			zap.Error(err))

		if e.connected && e.consecutiveErrs >= connectionLossThreshold {
			e.connected = false
			e.lostAt = now
			e.log.Warn("connection lost, will notify when restored")
		}
		return nil
	}

	if !e.connected {
		downtime := now.Sub(e.lostAt).Round(time.Second)
		e.log.Info("connection restored", zap.Duration("downtime", downtime))
		_ = e.notifier.System(ctx, "Ring Connection Restored",
			fmt.Sprintf("Connection restored after %s of downtime.\nEvents during the outage may not have been recorded.", downtime),
			notifyHigh)
		e.connected = true
	}
	e.consecutiveErrs = 0
	e.since = now

	for _, ev := range events {
		e.processEvent(ctx, ev)
	}

	if st := e.Stats(); st.Ticks%statsEvery == 0 && e.downloads && e.store != nil {
		e.log.Info("storage stats",
			zap.Int("files", e.store.FileCount()),
			zap.Int64("usage_bytes", e.store.Usage()))
	}
	return nil
}

// processEvent handles one new event: mark seen, fetch+admit if enabled,
// then notify. The notification and the download are independent; either
// may fail without affecting the other or subsequent events.
func (e *Engine) processEvent(ctx context.Context, ev models.Event) {
	if !e.ledger.IsNew(ev.ID) {
		return
	}
	if err := e.ledger.MarkSeen(ev.ID); err != nil {
		e.log.Warn("ledger mark failed", zap.String("event", ev.ID), zap.Error(err))
	}
	e.bump(func(s *Stats) { s.EventsSeen++ })

	e.log.Info("new event",
		zap.String("event", ev.ID),
		zap.String("device", ev.DeviceName),
		zap.String("kind", string(ev.Kind)),
		zap.Time("created_at", ev.CreatedAt))

	clipPath := ""
	snapshotPath := ""
	if e.downloads && ev.Kind.Recordable() {
		art, err := e.fetcher.Fetch(ctx, ev)
		switch {
		case err == nil:
			path, aerr := e.store.Admit(art)
			if aerr != nil {
				// Admission abandoned; quota state untouched.
				e.log.Warn("storage write failed", zap.String("event", ev.ID), zap.Error(aerr))
			} else {
				clipPath = path
				e.bump(func(s *Stats) { s.ClipsSaved++ })
				e.log.Info("clip saved",
					zap.String("event", ev.ID),
					zap.String("file", path),
					zap.Int("bytes", len(art.Data)))
			}
		case errors.Is(err, ring.ErrMediaUnavailable):
			e.log.Info("event has no recording", zap.String("event", ev.ID))
		case errors.Is(err, ErrRetryExhausted):
			e.bump(func(s *Stats) { s.FetchFailures++ })
			e.log.Warn("recording never became ready", zap.String("event", ev.ID), zap.Error(err))
		default:
			e.bump(func(s *Stats) { s.FetchFailures++ })
			e.log.Warn("recording fetch failed", zap.String("event", ev.ID), zap.Error(err))
		}

		if snap, _ := e.fetcher.Snapshot(ctx, ev, clipPath); len(snap) > 0 {
			art := models.MediaArtifact{Event: ev}
			if path, perr := e.store.Put(art.SnapshotFilename(), snap); perr == nil {
				snapshotPath = path
			} else {
				e.log.Warn("snapshot write failed", zap.String("event", ev.ID), zap.Error(perr))
			}
		}
	}

	if err := e.notifier.Notify(ctx, ev, snapshotPath, clipPath != ""); err != nil {
		e.bump(func(s *Stats) { s.NotificationsFailed++ })
	} else {
		e.bump(func(s *Stats) { s.NotificationsSent++ })
	}
}

func (e *Engine) startupBody() string {
	body := "Ring monitor is now active and watching your devices."
	if e.downloads {
		body += "\n\nVideo recording enabled."
	}
	return body
}

func (e *Engine) shutdownBody() string {
	body := "Ring monitor has been stopped."
	if e.downloads && e.store != nil {
		body += fmt.Sprintf("\n\nVideos: %d | Storage: %.2f GB",
			e.store.FileCount(), float64(e.store.Usage())/float64(1<<30))
	}
	return body
}

// Notification priorities, on the Pushover scale.
const (
	notifyLow    = -1
	notifyNormal = 0
	notifyHigh   = 1
)
