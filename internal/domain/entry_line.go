package domain

import "time"

// TrackerEntryLine is one tracked work session under a TrackerEntry.
// EndedAt is kept at line level for storage compatibility; in the segmented
// model the line's running state is derived from its durations.
type TrackerEntryLine struct {
	ID        int64
	EntryID   int64
	Desc      string
	StartedAt time.Time
	EndedAt   *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	IsDeleted bool
}
