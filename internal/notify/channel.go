package notify

import "context"

// Priorities follow the Pushover scale; other channels map them as best
// they can.
const (
	PriorityLow    = -1
	PriorityNormal = 0
	PriorityHigh   = 1
)

// Message is one alert to deliver.
type Message struct {
	Title          string
	Body           string
	Priority       int
	AttachmentPath string // optional still image; channels may ignore it
}

// Channel is the one swappable transport contract: push, SMS, or console.
// Chosen at startup, not switchable at runtime.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}
