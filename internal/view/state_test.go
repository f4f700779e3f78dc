package view_test

import (
	"testing"
	"time"

	"time-tracker/internal/dto"
	"time-tracker/internal/events"
	"time-tracker/internal/view"
)

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func ptr(t time.Time) *time.Time { return &t }

func tracker(id int64, label string, created time.Time) dto.EntryView {
	return dto.EntryView{ID: id, Label: label, CreatedAt: created, UpdatedAt: created}
}

func running(id, entryID int64, started time.Time) dto.LineView {
	return dto.LineView{
		ID: id, EntryID: entryID, StartedAt: started, CreatedAt: started, UpdatedAt: started,
		Active:    true,
		Durations: []dto.DurationView{{ID: id * 10, EntryLineID: id, StartedAt: started}},
	}
}

func paused(id, entryID int64, started, ended time.Time) dto.LineView {
	l := running(id, entryID, started)
	l.Active = false
	l.Durations[0].EndedAt = ptr(ended)
	return l
}

func seq(ev events.Event, n uint64) events.Event {
	ev.Seq = n
	return ev
}

func TestLastWriteWinsPerEntity(t *testing.T) {
	s := view.NewState()
	s.Apply(seq(events.EntryCreated(tracker(1, "v1", t0), t0), 1))
	renamed := tracker(1, "v3", t0)
	s.Apply(seq(events.EntryUpdated(renamed, t0), 3))
	// a stale update delivered late must not win
	stale := tracker(1, "v2", t0)
	s.Apply(seq(events.EntryUpdated(stale, t0), 2))

	snap := s.Snapshot(t0)
	if len(snap.Trackers) != 1 || snap.Trackers[0].Label != "v3" {
		t.Fatalf("trackers = %+v, want label v3", snap.Trackers)
	}
	if snap.Seq != 3 {
		t.Errorf("Seq = %d, want 3", snap.Seq)
	}
}

func TestDeletedEntitiesStayDeleted(t *testing.T) {
	s := view.NewState()
	s.Apply(seq(events.LineCreated(running(5, 1, t0), t0), 1))
	s.Apply(seq(events.EntryCreated(tracker(1, "a", t0), t0), 2))
	s.Apply(seq(events.LineCreated(running(5, 1, t0), t0), 3))
	s.Apply(seq(events.LineDeleted(running(5, 1, t0), t0), 5))
	s.Apply(seq(events.LineUpdated(paused(5, 1, t0, t0.Add(time.Minute)), t0), 4))

	if lines := s.Snapshot(t0).Lines; len(lines) != 0 {
		t.Errorf("lines = %+v, want deleted line to stay gone", lines)
	}
}

func TestDeletingTrackerDropsLinesAndSelection(t *testing.T) {
	s := view.NewState()
	s.Apply(seq(events.EntryCreated(tracker(1, "a", t0), t0), 1))
	s.Apply(seq(events.EntryCreated(tracker(2, "b", t0.Add(time.Second)), t0), 2))
	s.Apply(seq(events.LineCreated(running(10, 1, t0), t0), 3))
	s.Apply(seq(events.LineCreated(running(20, 2, t0), t0), 4))
	s.Select(1)

	s.Apply(seq(events.EntryDeleted(tracker(1, "a", t0), t0), 5))
	// late line event for the deleted tracker
	s.Apply(seq(events.LineCreated(running(11, 1, t0), t0), 6))

	snap := s.Snapshot(t0)
	if snap.SelectedTrackerID != 0 {
		t.Errorf("selection = %d, want cleared", snap.SelectedTrackerID)
	}
	if len(snap.Trackers) != 1 || snap.Trackers[0].ID != 2 {
		t.Errorf("trackers = %+v, want only 2", snap.Trackers)
	}
	if len(snap.Lines) != 1 || snap.Lines[0].ID != 20 {
		t.Errorf("lines = %+v, want only 20", snap.Lines)
	}
}

func TestSelectUnknownTrackerClears(t *testing.T) {
	s := view.NewState()
	s.Apply(seq(events.EntryCreated(tracker(1, "a", t0), t0), 1))
	s.Select(1)
	s.Select(99)
	if got := s.Snapshot(t0).SelectedTrackerID; got != 0 {
		t.Errorf("selection = %d, want 0", got)
	}
}

func TestActiveLineIsLatestStarted(t *testing.T) {
	s := view.NewState()
	s.Apply(seq(events.EntryCreated(tracker(1, "a", t0), t0), 1))
	s.Apply(seq(events.EntryCreated(tracker(2, "b", t0), t0), 2))
	s.Apply(seq(events.LineCreated(running(10, 1, t0), t0), 3))
	s.Apply(seq(events.LineCreated(running(20, 2, t0.Add(time.Minute)), t0), 4))
	s.Apply(seq(events.LineCreated(paused(30, 2, t0.Add(2*time.Minute), t0.Add(3*time.Minute)), t0), 5))

	snap := s.Snapshot(t0.Add(5 * time.Minute))
	if snap.ActiveLineID != 20 {
		t.Fatalf("ActiveLineID = %d, want 20", snap.ActiveLineID)
	}
	if l := snap.ActiveLine(); l == nil || l.ID != 20 {
		t.Errorf("ActiveLine = %+v", l)
	}

	s.Apply(seq(events.LineUpdated(paused(20, 2, t0.Add(time.Minute), t0.Add(4*time.Minute)), t0), 6))
	if got := s.Snapshot(t0).ActiveLineID; got != 10 {
		t.Errorf("after stop ActiveLineID = %d, want 10", got)
	}
}

func TestSnapshotElapsedAtObservation(t *testing.T) {
	s := view.NewState()
	s.Seed([]dto.EntryView{tracker(1, "a", t0)}, []dto.LineView{running(10, 1, t0)})

	snap := s.Snapshot(t0.Add(90 * time.Second))
	if len(snap.Lines) != 1 || snap.Lines[0].ElapsedSeconds != 90 {
		t.Fatalf("lines = %+v, want 90s elapsed", snap.Lines)
	}

	later := s.Snapshot(t0.Add(3 * time.Minute))
	if snap.Lines[0].ElapsedSeconds != 90 {
		t.Error("earlier snapshot changed after a later one was taken")
	}
	if later.Lines[0].ElapsedSeconds != 180 {
		t.Errorf("later elapsed = %d, want 180", later.Lines[0].ElapsedSeconds)
	}
}

func TestSeedSkipsOrphanLines(t *testing.T) {
	s := view.NewState()
	s.Seed([]dto.EntryView{tracker(1, "a", t0)}, []dto.LineView{running(10, 1, t0), running(11, 9, t0)})
	snap := s.Snapshot(t0)
	if len(snap.Lines) != 1 || snap.Lines[0].ID != 10 {
		t.Errorf("lines = %+v, want only 10", snap.Lines)
	}
	if got := snap.LinesFor(1); len(got) != 1 {
		t.Errorf("LinesFor(1) = %d lines, want 1", len(got))
	}
}
