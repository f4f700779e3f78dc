package events

import (
	"time"

	"github.com/google/uuid"

	"time-tracker/internal/dto"
)

// Kind distinguishes creations from updates.
type Kind string

const (
	Created Kind = "created"
	Updated Kind = "updated"
)

// Subject names the entity an event carries.
type Subject string

const (
	SubjectEntry Subject = "entry"
	SubjectLine  Subject = "line"
)

// Event notifies the view that an entity was created or updated. Exactly one of
// Entry or Line is set. Deleted marks a soft-delete, which is an update of the
// entity's is_deleted flag.
type Event struct {
	ID      uuid.UUID
	Seq     uint64 // assigned by the mailbox on publish
	Kind    Kind
	Subject Subject
	Entry   *dto.EntryView
	Line    *dto.LineView
	Deleted bool
	At      time.Time
}

// EntityID returns the id of the carried entity.
func (e Event) EntityID() int64 {
	switch {
	case e.Entry != nil:
		return e.Entry.ID
	case e.Line != nil:
		return e.Line.ID
	}
	return 0
}

func EntryCreated(v dto.EntryView, at time.Time) Event {
	return Event{ID: uuid.New(), Kind: Created, Subject: SubjectEntry, Entry: &v, At: at}
}

func EntryUpdated(v dto.EntryView, at time.Time) Event {
	return Event{ID: uuid.New(), Kind: Updated, Subject: SubjectEntry, Entry: &v, At: at}
}

func EntryDeleted(v dto.EntryView, at time.Time) Event {
	ev := EntryUpdated(v, at)
	ev.Deleted = true
	return ev
}

func LineCreated(v dto.LineView, at time.Time) Event {
	return Event{ID: uuid.New(), Kind: Created, Subject: SubjectLine, Line: &v, At: at}
}

func LineUpdated(v dto.LineView, at time.Time) Event {
	return Event{ID: uuid.New(), Kind: Updated, Subject: SubjectLine, Line: &v, At: at}
}

func LineDeleted(v dto.LineView, at time.Time) Event {
	ev := LineUpdated(v, at)
	ev.Deleted = true
	return ev
}
