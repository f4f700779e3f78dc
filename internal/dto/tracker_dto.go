package dto

import (
	"time"

	"time-tracker/internal/domain"
)

// EntryView is the view-safe projection of a TrackerEntry.
type EntryView struct {
	ID        int64     `json:"id"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DurationView is the projection of one duration segment.
type DurationView struct {
	ID          int64      `json:"id"`
	EntryLineID int64      `json:"entry_line_id"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// LineView is the projection of a line with its segments, newest-started first.
type LineView struct {
	ID             int64          `json:"id"`
	EntryID        int64          `json:"entry_id"`
	Desc           string         `json:"desc"`
	StartedAt      time.Time      `json:"started_at"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	Active         bool           `json:"active"`
	ElapsedSeconds int64          `json:"elapsed_seconds"`
	Durations      []DurationView `json:"durations"`
}

// ActiveDuration returns the running segment, or nil.
func (l LineView) ActiveDuration() *DurationView {
	for i := range l.Durations {
		if l.Durations[i].EndedAt == nil {
			return &l.Durations[i]
		}
	}
	return nil
}

// LastStartedAt returns the start of the most recent segment, or the line start.
func (l LineView) LastStartedAt() time.Time {
	if len(l.Durations) == 0 {
		return l.StartedAt
	}
	return l.Durations[0].StartedAt
}

// ElapsedAt recomputes the elapsed total at now, counting a running segment up
// to now. Spans never go negative.
func (l LineView) ElapsedAt(now time.Time) time.Duration {
	var total time.Duration
	for _, d := range l.Durations {
		end := now
		if d.EndedAt != nil {
			end = *d.EndedAt
		}
		if end.After(d.StartedAt) {
			total += end.Sub(d.StartedAt)
		}
	}
	return total
}

func FromEntry(e domain.TrackerEntry) EntryView {
	return EntryView{
		ID:        e.ID,
		Label:     e.Label,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func FromDuration(d domain.TrackerEntryLineDuration) DurationView {
	return DurationView{
		ID:          d.ID,
		EntryLineID: d.EntryLineID,
		StartedAt:   d.StartedAt,
		EndedAt:     d.EndedAt,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// FromLine projects a line and its segments. now is used for the elapsed total
// of a running segment.
func FromLine(l domain.TrackerEntryLine, durations []domain.TrackerEntryLineDuration, now time.Time) LineView {
	out := LineView{
		ID:        l.ID,
		EntryID:   l.EntryID,
		Desc:      l.Desc,
		StartedAt: l.StartedAt,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
		Durations: make([]DurationView, 0, len(durations)),
	}
	for _, d := range durations {
		if d.IsDeleted {
			continue
		}
		out.Durations = append(out.Durations, FromDuration(d))
	}
	out.Active = domain.ActiveDuration(durations) != nil
	out.ElapsedSeconds = int64(domain.Elapsed(durations, now) / time.Second)
	return out
}
