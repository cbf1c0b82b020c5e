package ring

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/KhalidMas23/ring-sms-notif/pkg/models"
)

// Recording downloads the video clip for an event. Server-side processing
// lags the event, so a fresh event answers ErrNotReady for a while before
// the bytes appear. Events that never produced a recording answer
// ErrMediaUnavailable.
func (c *Client) Recording(ctx context.Context, ev models.Event) ([]byte, error) {
	resp, err := c.HTTP.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/dings/%s/recording", ev.ID))

	if err != nil {
		return nil, classify(resp, err, "fetching recording")
	}

	switch resp.StatusCode() {
	case http.StatusNotFound:
		// Still transcoding. The retriever retries.
		return nil, fmt.Errorf("recording for event %s: %w", ev.ID, ErrNotReady)
	case http.StatusGone, http.StatusNoContent:
		return nil, fmt.Errorf("recording for event %s: %w", ev.ID, ErrMediaUnavailable)
	}
	if cerr := classify(resp, nil, "fetching recording"); cerr != nil {
		return nil, cerr
	}

	body := resp.Body()
	if len(body) == 0 {
		return nil, fmt.Errorf("recording for event %s: %w", ev.ID, ErrNotReady)
	}
	return body, nil
}

// Snapshot fetches the device's latest still image. Best-effort; callers
// degrade to no snapshot on any error.
func (c *Client) Snapshot(ctx context.Context, deviceID string) ([]byte, error) {
	resp, err := c.HTTP.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/snapshots/image/%s", deviceID))

	if cerr := classify(resp, err, "fetching snapshot"); cerr != nil {
		return nil, cerr
	}

	if len(resp.Body()) == 0 {
		return nil, errors.New("empty snapshot response")
	}
	return resp.Body(), nil
}
