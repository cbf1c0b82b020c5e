package ring

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/KhalidMas23/ring-sms-notif/pkg/models"
)

const historyLimit = 20

// History returns the most recent events for one device, newest first as
// the API delivers them.
func (c *Client) History(ctx context.Context, device models.Device) ([]models.Event, error) {
	var entries []models.HistoryEntry

	resp, err := c.HTTP.R().
		SetContext(ctx).
		SetQueryParam("limit", strconv.Itoa(historyLimit)).
		SetResult(&entries).
		Get(fmt.Sprintf("/doorbots/%d/history", device.ID))

	if cerr := classify(resp, err, fmt.Sprintf("history for %s", device.Description)); cerr != nil {
		return nil, cerr
	}

	events := make([]models.Event, 0, len(entries))
	for _, e := range entries {
		created, perr := time.Parse(time.RFC3339, e.CreatedAt)
		if perr != nil {
			continue
		}
		events = append(events, models.Event{
			ID:         strconv.FormatInt(e.ID, 10),
			DeviceID:   strconv.FormatInt(device.ID, 10),
			DeviceName: device.Description,
			Kind:       models.ParseKind(e.Kind),
			RawKind:    e.Kind,
			CreatedAt:  created.UTC(),
		})
	}
	return events, nil
}

// ListEvents aggregates recent history across every device on the account
// and returns events newer than since, oldest first.
func (c *Client) ListEvents(ctx context.Context, since time.Time) ([]models.Event, error) {
	devices, err := c.Devices(ctx)
	if err != nil {
		return nil, err
	}

	var all []models.Event
	for _, d := range devices {
		events, err := c.History(ctx, d)
		if err != nil {
			return nil, err
		}
		for _, ev := range events {
			if ev.CreatedAt.After(since) {
				all = append(all, ev)
			}
		}
	}

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return all, nil
}
