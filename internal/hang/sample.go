package hang

import "time"

// Sample is one container's health as seen by a single detector check.
type Sample struct {
	ContainerID   string
	ContainerName string
	State         string
	// CheckedAt is captured before any log fetch.
	CheckedAt time.Time
	// LastLog is the newest log timestamp, or CheckedAt when none parsed.
	LastLog        time.Time
	TimestampFound bool
	// Hang reports that the recent tail contains the hang marker.
	Hang  bool
	Delta time.Duration
}

// ShouldRestart reports whether the container is stale past threshold or
// flagged as hung.
func (s Sample) ShouldRestart(threshold time.Duration) bool {
	return s.Delta > threshold || s.Hang
}
