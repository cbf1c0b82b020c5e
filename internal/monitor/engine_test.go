package monitor

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/KhalidMas23/ring-sms-notif/internal/ring"
	"github.com/KhalidMas23/ring-sms-notif/pkg/models"
)

// fakeSource replays one scripted batch (or error) per poll pass.
type fakeSource struct {
	mu      sync.Mutex
	batches [][]models.Event
	errs    []error
	calls   int
}

func (s *fakeSource) ListEvents(ctx context.Context, since time.Time) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i < len(s.batches) {
		return s.batches[i], nil
	}
	return nil, nil
}

type fakeCreds struct {
	mu          sync.Mutex
	acquireErrs []error
	acquires    int
	invalidated int
}

func (c *fakeCreds) Acquire(ctx context.Context) (*models.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.acquires
	c.acquires++
	if i < len(c.acquireErrs) && c.acquireErrs[i] != nil {
		return nil, c.acquireErrs[i]
	}
	return &models.Token{AccessToken: "tok"}, nil
}

func (c *fakeCreds) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated++
}

type fetchResult struct {
	data []byte
	err  error
}

type fakeFetcher struct {
	mu      sync.Mutex
	results map[string]fetchResult // keyed by event id
	fetched []string
	snaps   map[string][]byte
}

func (f *fakeFetcher) Fetch(ctx context.Context, ev models.Event) (*models.MediaArtifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, ev.ID)
	res := f.results[ev.ID]
	if res.err != nil {
		return nil, res.err
	}
	data := res.data
	if data == nil {
		data = []byte("clip")
	}
	return &models.MediaArtifact{Event: ev, Data: data}, nil
}

func (f *fakeFetcher) Snapshot(ctx context.Context, ev models.Event, clipPath string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snaps[ev.ID], nil
}

type fakeStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{files: make(map[string][]byte)}
}

func (s *fakeStore) Admit(art *models.MediaArtifact) (string, error) {
	return s.Put(art.Filename(), art.Data)
}

func (s *fakeStore) Put(name string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = data
	return filepath.Join("/videos", name), nil
}

func (s *fakeStore) Usage() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, b := range s.files {
		n += int64(len(b))
	}
	return n
}

func (s *fakeStore) FileCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

type notifyCall struct {
	eventID   string
	snapshot  string
	clipSaved bool
}

type fakeNotifier struct {
	mu       sync.Mutex
	notifies []notifyCall
	systems  []string // titles
	failIDs  map[string]bool
}

func (n *fakeNotifier) Notify(ctx context.Context, ev models.Event, snapshotPath string, clipSaved bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifies = append(n.notifies, notifyCall{ev.ID, snapshotPath, clipSaved})
	if n.failIDs[ev.ID] {
		return errors.New("channel down")
	}
	return nil
}

func (n *fakeNotifier) System(ctx context.Context, title, body string, priority int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.systems = append(n.systems, title)
	return nil
}

func (n *fakeNotifier) notified() []notifyCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifyCall(nil), n.notifies...)
}

func (n *fakeNotifier) systemTitles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.systems...)
}

// harness bundles an engine with all its fakes, bounded to maxTicks poll
// passes via the fake clock's sleep budget.
type harness struct {
	engine   *Engine
	source   *fakeSource
	creds    *fakeCreds
	fetcher  *fakeFetcher
	store    *fakeStore
	notifier *fakeNotifier
	clock    *FakeClock
}

func newHarness(t *testing.T, maxTicks int, downloads bool) *harness {
	t.Helper()
	h := &harness{
		source:   &fakeSource{},
		creds:    &fakeCreds{},
		fetcher:  &fakeFetcher{results: map[string]fetchResult{}, snaps: map[string][]byte{}},
		notifier: &fakeNotifier{failIDs: map[string]bool{}},
		clock:    NewFakeClock(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)),
	}
	h.clock.MaxSleeps = maxTicks

	var store Store
	if downloads {
		h.store = newFakeStore()
		store = h.store
	}

	h.engine = NewEngine(Options{
		Source:    h.source,
		Creds:     h.creds,
		Ledger:    NewMemoryLedger(),
		Fetcher:   h.fetcher,
		Store:     store,
		Notifier:  h.notifier,
		Clock:     h.clock,
		Log:       zap.NewNop(),
		Interval:  10 * time.Second,
		Downloads: downloads,
	})
	return h
}

func ev(id, kind string) models.Event {
	return models.Event{
		ID: id, DeviceID: "11", DeviceName: "Front Door",
		Kind: models.ParseKind(kind), RawKind: kind,
		CreatedAt: time.Date(2026, 5, 1, 12, 0, 1, 0, time.UTC),
	}
}

func TestRunNotifiesWithoutDownloads(t *testing.T) {
	h := newHarness(t, 1, false)
	h.source.batches = [][]models.Event{{ev("1001", "ding"), ev("1002", "motion")}}

	require.NoError(t, h.engine.Run(context.Background()))

	calls := h.notifier.notified()
	require.Len(t, calls, 2)
	assert.Equal(t, "1001", calls[0].eventID)
	assert.False(t, calls[0].clipSaved)
	assert.Empty(t, calls[0].snapshot)

	// Downloads are off: no fetch attempts at all.
	assert.Empty(t, h.fetcher.fetched)
	assert.Equal(t, []string{"Ring Monitor Started", "Ring Monitor Stopped"}, h.notifier.systemTitles())
	assert.Equal(t, StateStopped, h.engine.State())
}

func TestRunDownloadsAndNotifies(t *testing.T) {
	h := newHarness(t, 1, true)
	h.source.batches = [][]models.Event{{ev("1001", "ding")}}
	h.fetcher.snaps["1001"] = []byte("jpeg")

	require.NoError(t, h.engine.Run(context.Background()))

	calls := h.notifier.notified()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].clipSaved)
	assert.NotEmpty(t, calls[0].snapshot)
	assert.Equal(t, 2, h.store.FileCount()) // clip plus snapshot frame

	stats := h.engine.Stats()
	assert.Equal(t, uint64(1), stats.ClipsSaved)
	assert.Equal(t, uint64(1), stats.NotificationsSent)
}

func TestRunFetchFailureDoesNotBlockOtherEvents(t *testing.T) {
	h := newHarness(t, 1, true)
	h.source.batches = [][]models.Event{{ev("1001", "ding"), ev("1002", "motion")}}
	h.fetcher.results["1001"] = fetchResult{err: ErrRetryExhausted}

	require.NoError(t, h.engine.Run(context.Background()))

	// Both events still produce a notification; only the failed one is
	// missing its clip.
	calls := h.notifier.notified()
	require.Len(t, calls, 2)
	assert.False(t, calls[0].clipSaved)
	assert.True(t, calls[1].clipSaved)

	stats := h.engine.Stats()
	assert.Equal(t, uint64(1), stats.FetchFailures)
	assert.Equal(t, uint64(1), stats.ClipsSaved)
	assert.Equal(t, uint64(2), stats.NotificationsSent)
}

func TestRunMediaUnavailableIsNotAFailure(t *testing.T) {
	h := newHarness(t, 1, true)
	h.source.batches = [][]models.Event{{ev("1001", "motion")}}
	h.fetcher.results["1001"] = fetchResult{err: ring.ErrMediaUnavailable}

	require.NoError(t, h.engine.Run(context.Background()))

	stats := h.engine.Stats()
	assert.Equal(t, uint64(0), stats.FetchFailures)
	assert.Equal(t, uint64(1), stats.NotificationsSent)
}

func TestRunSkipsNonRecordableKinds(t *testing.T) {
	h := newHarness(t, 1, true)
	h.source.batches = [][]models.Event{{ev("1001", "on_demand")}}

	require.NoError(t, h.engine.Run(context.Background()))

	assert.Empty(t, h.fetcher.fetched)
	require.Len(t, h.notifier.notified(), 1)
}

func TestRunDeduplicatesAcrossTicks(t *testing.T) {
	h := newHarness(t, 2, false)
	same := ev("1001", "ding")
	h.source.batches = [][]models.Event{{same}, {same, ev("1002", "motion")}}

	require.NoError(t, h.engine.Run(context.Background()))

	calls := h.notifier.notified()
	require.Len(t, calls, 2)
	assert.Equal(t, "1001", calls[0].eventID)
	assert.Equal(t, "1002", calls[1].eventID)
	assert.Equal(t, uint64(2), h.engine.Stats().EventsSeen)
}

func TestRunNotificationFailureIsCountedAndAbsorbed(t *testing.T) {
	h := newHarness(t, 1, false)
	h.source.batches = [][]models.Event{{ev("1001", "ding"), ev("1002", "motion")}}
	h.notifier.failIDs["1001"] = true

	require.NoError(t, h.engine.Run(context.Background()))

	require.Len(t, h.notifier.notified(), 2)
	stats := h.engine.Stats()
	assert.Equal(t, uint64(1), stats.NotificationsFailed)
	assert.Equal(t, uint64(1), stats.NotificationsSent)
}

func TestRunFatalAuthStopsBeforePolling(t *testing.T) {
	h := newHarness(t, 5, false)
	h.creds.acquireErrs = []error{ring.ErrAuthFailed}

	err := h.engine.Run(context.Background())
	assert.ErrorIs(t, err, ring.ErrAuthFailed)
	assert.Equal(t, StateStopped, h.engine.State())
	assert.Equal(t, 0, h.source.calls)
	assert.Equal(t, []string{"Ring Monitor Stopped"}, h.notifier.systemTitles())
}

func TestRunRetriesTransientAuth(t *testing.T) {
	h := newHarness(t, 3, false)
	h.creds.acquireErrs = []error{ring.ErrTransientAuth, nil}

	require.NoError(t, h.engine.Run(context.Background()))
	assert.Equal(t, 2, h.creds.acquires)
	assert.GreaterOrEqual(t, h.source.calls, 1)
}

func TestRunFatalAuthMidLoopAborts(t *testing.T) {
	h := newHarness(t, 5, false)
	h.source.errs = []error{nil, ring.ErrAuthFailed}

	err := h.engine.Run(context.Background())
	assert.ErrorIs(t, err, ring.ErrAuthFailed)
	assert.Equal(t, 2, h.source.calls)
	assert.Equal(t, []string{"Ring Monitor Started", "Ring Monitor Stopped"}, h.notifier.systemTitles())
}

func TestRunUnauthorizedInvalidatesCredential(t *testing.T) {
	h := newHarness(t, 2, false)
	h.source.errs = []error{ring.ErrUnauthorized, nil}

	require.NoError(t, h.engine.Run(context.Background()))

	assert.Equal(t, 1, h.creds.invalidated)
	assert.Equal(t, uint64(1), h.engine.Stats().PollErrors)
	assert.Equal(t, 2, h.source.calls)
}

func TestRunConnectionLostAndRestored(t *testing.T) {
	h := newHarness(t, 4, false)
	h.source.errs = []error{ring.ErrTransient, ring.ErrTransient, ring.ErrTransient, nil}

	require.NoError(t, h.engine.Run(context.Background()))

	titles := h.notifier.systemTitles()
	assert.Equal(t, []string{"Ring Monitor Started", "Ring Connection Restored", "Ring Monitor Stopped"}, titles)
	assert.Equal(t, uint64(3), h.engine.Stats().PollErrors)
}

func TestRunBriefOutageStaysQuiet(t *testing.T) {
	h := newHarness(t, 3, false)
	h.source.errs = []error{ring.ErrTransient, ring.ErrTransient, nil}

	require.NoError(t, h.engine.Run(context.Background()))

	// Two consecutive failures is below the loss threshold.
	assert.Equal(t, []string{"Ring Monitor Started", "Ring Monitor Stopped"}, h.notifier.systemTitles())
}

func TestRunSleepsThePollInterval(t *testing.T) {
	h := newHarness(t, 2, false)

	require.NoError(t, h.engine.Run(context.Background()))

	require.Len(t, h.clock.Sleeps, 2)
	assert.Equal(t, 10*time.Second, h.clock.Sleeps[0])
	assert.Equal(t, uint64(2), h.engine.Stats().Ticks)
}
