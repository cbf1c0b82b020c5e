package models

import "time"

// Kind classifies an activity event reported by the Ring account.
type Kind string

const (
	KindDoorbell Kind = "ding"
	KindMotion   Kind = "motion"
	KindOther    Kind = "other"
)

// ParseKind maps the raw API kind string onto our enum. Anything we don't
// recognize (on_demand live views, etc.) collapses to KindOther.
func ParseKind(raw string) Kind {
	switch raw {
	case "ding", "doorbell_press":
		return KindDoorbell
	case "motion":
		return KindMotion
	default:
		return KindOther
	}
}

// Recordable reports whether events of this kind produce a video clip
// worth downloading. Live views and system events do not.
func (k Kind) Recordable() bool {
	return k == KindDoorbell || k == KindMotion
}

// HistoryEntry matches one element of GET /doorbots/{id}/history.
type HistoryEntry struct {
	ID        int64  `json:"id"`
	Kind      string `json:"kind"`
	CreatedAt string `json:"created_at"` // ISO 8601
	Answered  bool   `json:"answered"`
	Recording struct {
		Status string `json:"status"` // "ready", "unknown"
	} `json:"recording"`
}

// Event is a single activity event, normalized from the history payload.
// Immutable once observed.
type Event struct {
	ID         string    `json:"id"`
	DeviceID   string    `json:"device_id"`
	DeviceName string    `json:"device_name"`
	Kind       Kind      `json:"kind"`
	RawKind    string    `json:"raw_kind"`
	CreatedAt  time.Time `json:"created_at"` // always UTC
}
