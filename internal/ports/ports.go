package ports

import (
	"context"
	"errors"
	"time"

	"time-tracker/internal/domain"
	"time-tracker/internal/events"
)

// ErrNoRowsAffected is returned by conditional writes whose row no longer
// matches (already deleted, already closed, or absent) at execution time.
var ErrNoRowsAffected = errors.New("no rows affected")

// Repository is the session repository contract the tracking service depends on.
// Get* lookups return soft-deleted rows too (flagged IsDeleted) and nil when the
// id was never stored; List* reads only return live rows. CreateLine and
// CreateDuration refuse a deleted or missing parent with ErrNoRowsAffected,
// and SoftDeleteEntry cascades to the entry's lines and their segments.
type Repository interface {
	CreateEntry(ctx context.Context, e domain.TrackerEntry) (domain.TrackerEntry, error)
	GetEntry(ctx context.Context, id int64) (*domain.TrackerEntry, error)
	ListEntries(ctx context.Context) ([]domain.TrackerEntry, error)
	UpdateEntry(ctx context.Context, e domain.TrackerEntry) (domain.TrackerEntry, error)
	SoftDeleteEntry(ctx context.Context, id int64, at time.Time) error

	CreateLine(ctx context.Context, l domain.TrackerEntryLine) (domain.TrackerEntryLine, error)
	GetLine(ctx context.Context, id int64) (*domain.TrackerEntryLine, error)
	ListLines(ctx context.Context) ([]domain.TrackerEntryLine, error)
	ListLinesForEntry(ctx context.Context, entryID int64) ([]domain.TrackerEntryLine, error)
	UpdateLine(ctx context.Context, l domain.TrackerEntryLine) (domain.TrackerEntryLine, error)
	SoftDeleteLine(ctx context.Context, id int64, at time.Time) error

	CreateDuration(ctx context.Context, d domain.TrackerEntryLineDuration) (domain.TrackerEntryLineDuration, error)
	ListDurations(ctx context.Context, lineID int64) ([]domain.TrackerEntryLineDuration, error)
	CloseDuration(ctx context.Context, id int64, endedAt time.Time) (domain.TrackerEntryLineDuration, error)
	SoftDeleteDuration(ctx context.Context, id int64, at time.Time) error

	Truncate(ctx context.Context) error
}

// Clock is the source of "now" for segment arithmetic.
type Clock interface {
	Now() time.Time
}

// Publisher receives one event per successful mutation. Implementations must
// not block the caller.
type Publisher interface {
	Publish(ev events.Event) error
}
