package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/KhalidMas23/ring-sms-notif/pkg/models"
)

// Dispatcher formats alerts per event kind and sends them through the
// configured channel. Delivery failures are logged and reported to the
// caller, never escalated: a dead notification channel must not stop
// monitoring.
type Dispatcher struct {
	ch  Channel
	log *zap.Logger
}

func NewDispatcher(ch Channel, log *zap.Logger) *Dispatcher {
	return &Dispatcher{ch: ch, log: log}
}

// Notify sends the alert for one event, attaching the snapshot if one was
// derived.
func (d *Dispatcher) Notify(ctx context.Context, ev models.Event, snapshotPath string, clipSaved bool) error {
	msg := formatEvent(ev, clipSaved)
	msg.AttachmentPath = snapshotPath

	if err := d.ch.Send(ctx, msg); err != nil {
		d.log.Warn("notification delivery failed",
			zap.String("channel", d.ch.Name()),
			zap.String("event", ev.ID),
			zap.Error(err))
		return fmt.Errorf("sending via %s: %w", d.ch.Name(), err)
	}

	d.log.Info("notification sent",
		zap.String("channel", d.ch.Name()),
		zap.String("event", ev.ID),
		zap.String("kind", string(ev.Kind)))
	return nil
}

// System sends a lifecycle message (monitor started/stopped, connection
// lost/restored).
func (d *Dispatcher) System(ctx context.Context, title, body string, priority int) error {
	if err := d.ch.Send(ctx, Message{Title: title, Body: body, Priority: priority}); err != nil {
		d.log.Warn("notification delivery failed",
			zap.String("channel", d.ch.Name()),
			zap.String("title", title),
			zap.Error(err))
		return fmt.Errorf("sending via %s: %w", d.ch.Name(), err)
	}
	return nil
}

func formatEvent(ev models.Event, clipSaved bool) Message {
	ts := ev.CreatedAt.Local().Format("2006-01-02 15:04:05")

	var msg Message
	switch ev.Kind {
	case models.KindDoorbell:
		msg = Message{
			Title:    fmt.Sprintf("Doorbell: %s", ev.DeviceName),
			Body:     fmt.Sprintf("Doorbell pressed\nTime: %s", ts),
			Priority: PriorityHigh,
		}
	case models.KindMotion:
		msg = Message{
			Title:    fmt.Sprintf("Motion: %s", ev.DeviceName),
			Body:     fmt.Sprintf("Motion detected\nTime: %s", ts),
			Priority: PriorityNormal,
		}
	default:
		msg = Message{
			Title:    fmt.Sprintf("Ring: %s", ev.DeviceName),
			Body:     fmt.Sprintf("%s event\nTime: %s", ev.RawKind, ts),
			Priority: PriorityNormal,
		}
	}

	if clipSaved {
		msg.Body += "\n\nVideo saved locally"
	}
	return msg
}
