package models

import (
	"fmt"
	"strings"
)

// MediaArtifact is a fetched video clip plus the metadata needed to name
// and file it. Created by the retriever, persisted by the storage manager.
type MediaArtifact struct {
	Event Event
	Data  []byte
}

// Filename returns the deterministic storage name for this artifact:
// <timestamp>_<device>_<kind>_<eventId>.mp4, lexically sortable by capture
// time. The timestamp comes from the event, not the wall clock, so the
// same event always maps to the same name and a re-fetch overwrites.
func (a *MediaArtifact) Filename() string {
	ts := a.Event.CreatedAt.UTC().Format("20060102_150405")
	return fmt.Sprintf("%s_%s_%s_%s.mp4", ts, SanitizeName(a.Event.DeviceName), a.Event.Kind, a.Event.ID)
}

// SnapshotFilename is the sibling still-image name for the same event.
func (a *MediaArtifact) SnapshotFilename() string {
	return strings.TrimSuffix(a.Filename(), ".mp4") + "_frame.jpg"
}

// SanitizeName makes a device name safe for use in a filename.
func SanitizeName(name string) string {
	r := strings.NewReplacer(" ", "_", "/", "_", "\\", "_")
	return r.Replace(name)
}
