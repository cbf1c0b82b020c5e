package monitor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/KhalidMas23/ring-sms-notif/internal/ring"
	"github.com/KhalidMas23/ring-sms-notif/pkg/models"
)

// ErrRetryExhausted means the attempt budget ran out before the recording
// became ready. Logged and skipped; never aborts the poll loop.
var ErrRetryExhausted = errors.New("retry budget exhausted")

// MediaSource is the slice of the remote account the retriever needs.
type MediaSource interface {
	Recording(ctx context.Context, ev models.Event) ([]byte, error)
	Snapshot(ctx context.Context, deviceID string) ([]byte, error)
}

// Retriever fetches clips with a settle delay and bounded retries, and
// derives notification snapshots.
type Retriever struct {
	source      MediaSource
	clock       Clock
	log         *zap.Logger
	settle      time.Duration
	maxAttempts int
	ffmpegPath  string
}

func NewRetriever(source MediaSource, clock Clock, settle time.Duration, maxAttempts int, log *zap.Logger) *Retriever {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	// Frame extraction is optional; without ffmpeg we just skip it.
	ffmpegPath, _ := exec.LookPath("ffmpeg")

	return &Retriever{
		source:      source,
		clock:       clock,
		log:         log,
		settle:      settle,
		maxAttempts: maxAttempts,
		ffmpegPath:  ffmpegPath,
	}
}

// linearBackOff waits step, then 2*step, then 3*step between attempts.
type linearBackOff struct {
	step, next time.Duration
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.next += b.step
	return b.next
}

func (b *linearBackOff) Reset() { b.next = 0 }

// clockTimer adapts the injected Clock to backoff's Timer so retry waits
// run through the same scheduling seam as everything else.
type clockTimer struct {
	clock Clock
	ch    chan time.Time
}

func (t *clockTimer) Start(d time.Duration) {
	if t.ch == nil {
		t.ch = make(chan time.Time, 1)
	}
	go func() {
		_ = t.clock.Sleep(context.Background(), d)
		t.ch <- time.Time{}
	}()
}

func (t *clockTimer) C() <-chan time.Time { return t.ch }
func (t *clockTimer) Stop()               {}

// Fetch retrieves the clip for an event. It waits the settle delay before
// the first attempt, retries NotReady and transient failures with linearly
// increasing waits, and gives up after the attempt budget.
// ErrMediaUnavailable is passed through untouched: it is an outcome, not a
// failure.
func (r *Retriever) Fetch(ctx context.Context, ev models.Event) (*models.MediaArtifact, error) {
	if err := r.clock.Sleep(ctx, r.settle); err != nil {
		return nil, err
	}

	var data []byte
	attempts := 0
	op := func() error {
		attempts++
		b, err := r.source.Recording(ctx, ev)
		if err == nil {
			data = b
			return nil
		}
		if errors.Is(err, ring.ErrMediaUnavailable) {
			return backoff.Permanent(err)
		}
		if errors.Is(err, ring.ErrNotReady) || errors.Is(err, ring.ErrTransient) {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{step: r.settle}, uint64(r.maxAttempts-1)),
		ctx,
	)
	err := backoff.RetryNotifyWithTimer(op, policy, nil, &clockTimer{clock: r.clock})
	if err != nil {
		if errors.Is(err, ring.ErrMediaUnavailable) || ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, attempts, err)
	}

	return &models.MediaArtifact{Event: ev, Data: data}, nil
}

// Snapshot produces a still image for the notification: the device's API
// snapshot when available, else the first frame of the saved clip. Every
// failure degrades to no snapshot.
func (r *Retriever) Snapshot(ctx context.Context, ev models.Event, clipPath string) ([]byte, error) {
	b, err := r.source.Snapshot(ctx, ev.DeviceID)
	if err == nil && len(b) > 0 {
		return b, nil
	}
	if err != nil {
		r.log.Debug("api snapshot unavailable", zap.String("device", ev.DeviceName), zap.Error(err))
	}

	if clipPath == "" || r.ffmpegPath == "" {
		return nil, nil
	}
	return r.extractFrame(ctx, clipPath), nil
}

func (r *Retriever) extractFrame(ctx context.Context, clipPath string) []byte {
	tmp, err := os.CreateTemp("", "ring-frame-*.jpg")
	if err != nil {
		return nil
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	cmd := exec.CommandContext(ctx, r.ffmpegPath, "-y", "-i", clipPath, "-frames:v", "1", "-q:v", "2", tmp.Name())
	if out, err := cmd.CombinedOutput(); err != nil {
		r.log.Debug("frame extraction failed", zap.Error(err), zap.ByteString("ffmpeg", out))
		return nil
	}

	data, err := os.ReadFile(tmp.Name())
	if err != nil || len(data) == 0 {
		return nil
	}
	return data
}
