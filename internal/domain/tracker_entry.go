package domain

import "time"

// TrackerEntry is a named bucket of work.
type TrackerEntry struct {
	ID        int64
	Label     string
	CreatedAt time.Time
	UpdatedAt time.Time
	IsDeleted bool
}
