package domain

import "time"

// TrackerEntryLineDuration is a contiguous interval of active work within a line.
type TrackerEntryLineDuration struct {
	ID          int64
	EntryLineID int64
	StartedAt   time.Time
	EndedAt     *time.Time // nil while the segment is running
	CreatedAt   time.Time
	UpdatedAt   time.Time
	IsDeleted   bool
}

// Open reports whether the segment is still running.
func (d TrackerEntryLineDuration) Open() bool {
	return !d.IsDeleted && d.EndedAt == nil
}

// Span returns the segment length, using now for a running segment.
// Spans never go negative.
func (d TrackerEntryLineDuration) Span(now time.Time) time.Duration {
	end := now
	if d.EndedAt != nil {
		end = *d.EndedAt
	}
	if end.Before(d.StartedAt) {
		return 0
	}
	return end.Sub(d.StartedAt)
}

// ActiveDuration returns the single open segment among durations, or nil.
func ActiveDuration(durations []TrackerEntryLineDuration) *TrackerEntryLineDuration {
	for i := range durations {
		if durations[i].Open() {
			return &durations[i]
		}
	}
	return nil
}

// Elapsed sums the spans of all non-deleted segments.
func Elapsed(durations []TrackerEntryLineDuration, now time.Time) time.Duration {
	var total time.Duration
	for _, d := range durations {
		if d.IsDeleted {
			continue
		}
		total += d.Span(now)
	}
	return total
}
