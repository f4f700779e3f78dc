package view

import (
	"sort"
	"time"

	"time-tracker/internal/dto"
	"time-tracker/internal/events"
)

// Snapshot is an immutable picture of the view. Readers must not modify it.
type Snapshot struct {
	// Seq is the sequence number of the last event folded in.
	Seq               uint64          `json:"seq"`
	Trackers          []dto.EntryView `json:"trackers"`
	Lines             []dto.LineView  `json:"lines"`
	SelectedTrackerID int64           `json:"selected_tracker_id,omitempty"`
	ActiveLineID      int64           `json:"active_line_id,omitempty"`
	At                time.Time       `json:"at"`
}

// ActiveLine returns the surfaced running line, or nil.
func (s *Snapshot) ActiveLine() *dto.LineView {
	if s == nil || s.ActiveLineID == 0 {
		return nil
	}
	for i := range s.Lines {
		if s.Lines[i].ID == s.ActiveLineID {
			return &s.Lines[i]
		}
	}
	return nil
}

// LinesFor returns the lines of one tracker, newest first.
func (s *Snapshot) LinesFor(trackerID int64) []dto.LineView {
	var out []dto.LineView
	for _, l := range s.Lines {
		if l.EntryID == trackerID {
			out = append(out, l)
		}
	}
	return out
}

type trackerSlot struct {
	view dto.EntryView
	seq  uint64
}

type lineSlot struct {
	view dto.LineView
	seq  uint64
}

// State is the authoritative view. It is owned by a single goroutine and is
// not safe for concurrent use.
type State struct {
	trackers map[int64]trackerSlot
	lines    map[int64]lineSlot
	// tombstones keep the seq of a deletion so late updates cannot revive it.
	deadTrackers map[int64]uint64
	deadLines    map[int64]uint64
	selected     int64
	lastSeq      uint64
}

func NewState() *State {
	return &State{
		trackers:     make(map[int64]trackerSlot),
		lines:        make(map[int64]lineSlot),
		deadTrackers: make(map[int64]uint64),
		deadLines:    make(map[int64]uint64),
	}
}

// Seed loads the history read at startup. Seeded rows carry seq 0 so any
// published event supersedes them.
func (s *State) Seed(trackers []dto.EntryView, lines []dto.LineView) {
	for _, t := range trackers {
		s.trackers[t.ID] = trackerSlot{view: t}
	}
	for _, l := range lines {
		if _, ok := s.trackers[l.EntryID]; !ok {
			continue
		}
		s.lines[l.ID] = lineSlot{view: l}
	}
}

// Apply folds one event using last-write-wins per entity id.
func (s *State) Apply(ev events.Event) {
	if ev.Seq > s.lastSeq {
		s.lastSeq = ev.Seq
	}
	switch {
	case ev.Entry != nil:
		s.applyTracker(ev)
	case ev.Line != nil:
		s.applyLine(ev)
	}
}

func (s *State) applyTracker(ev events.Event) {
	id := ev.Entry.ID
	if cur, ok := s.trackers[id]; ok && cur.seq >= ev.Seq && cur.seq != 0 {
		return
	}
	if dead, ok := s.deadTrackers[id]; ok && dead >= ev.Seq {
		return
	}
	if ev.Deleted {
		delete(s.trackers, id)
		s.deadTrackers[id] = ev.Seq
		for lid, l := range s.lines {
			if l.view.EntryID == id {
				delete(s.lines, lid)
			}
		}
		if s.selected == id {
			s.selected = 0
		}
		return
	}
	s.trackers[id] = trackerSlot{view: *ev.Entry, seq: ev.Seq}
}

func (s *State) applyLine(ev events.Event) {
	id := ev.Line.ID
	if cur, ok := s.lines[id]; ok && cur.seq >= ev.Seq && cur.seq != 0 {
		return
	}
	if dead, ok := s.deadLines[id]; ok && dead >= ev.Seq {
		return
	}
	if ev.Deleted {
		delete(s.lines, id)
		s.deadLines[id] = ev.Seq
		return
	}
	if _, dead := s.deadTrackers[ev.Line.EntryID]; dead {
		return
	}
	s.lines[id] = lineSlot{view: *ev.Line, seq: ev.Seq}
}

// Select changes the selected tracker. Unknown ids clear the selection.
func (s *State) Select(trackerID int64) {
	if _, ok := s.trackers[trackerID]; !ok {
		s.selected = 0
		return
	}
	s.selected = trackerID
}

// activeLine picks the running line whose latest segment started last. Several
// lines may be running in storage; only one is surfaced.
func (s *State) activeLine() int64 {
	var (
		best    int64
		bestAt  time.Time
		hasBest bool
	)
	for id, l := range s.lines {
		if !l.view.Active {
			continue
		}
		at := l.view.LastStartedAt()
		if !hasBest || at.After(bestAt) || (at.Equal(bestAt) && id > best) {
			best, bestAt, hasBest = id, at, true
		}
	}
	return best
}

// Snapshot copies the state into an immutable Snapshot with elapsed totals
// computed at now.
func (s *State) Snapshot(now time.Time) *Snapshot {
	snap := &Snapshot{
		Seq:               s.lastSeq,
		Trackers:          make([]dto.EntryView, 0, len(s.trackers)),
		Lines:             make([]dto.LineView, 0, len(s.lines)),
		SelectedTrackerID: s.selected,
		ActiveLineID:      s.activeLine(),
		At:                now,
	}
	for _, t := range s.trackers {
		snap.Trackers = append(snap.Trackers, t.view)
	}
	sort.Slice(snap.Trackers, func(i, j int) bool {
		a, b := snap.Trackers[i], snap.Trackers[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})

	for _, l := range s.lines {
		v := l.view
		v.Durations = append([]dto.DurationView(nil), l.view.Durations...)
		v.ElapsedSeconds = int64(v.ElapsedAt(now) / time.Second)
		snap.Lines = append(snap.Lines, v)
	}
	sort.Slice(snap.Lines, func(i, j int) bool {
		a, b := snap.Lines[i], snap.Lines[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return snap
}
