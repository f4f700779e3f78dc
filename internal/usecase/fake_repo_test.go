package usecase_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"time-tracker/internal/domain"
	"time-tracker/internal/events"
	"time-tracker/internal/ports"
)

// fakeRepo is an in-memory ports.Repository with failure hooks.
type fakeRepo struct {
	mu        sync.Mutex
	entries   map[int64]domain.TrackerEntry
	lines     map[int64]domain.TrackerEntryLine
	durations map[int64]domain.TrackerEntryLineDuration
	nextID    int64

	// closeErr fails CloseDuration for segments of the given line.
	closeErr map[int64]error
	// createDurationErr fails every CreateDuration call when set.
	createDurationErr error
	// listEntriesErr fails ListEntries when set.
	listEntriesErr error
	// afterListLines runs once ListLines has produced its result.
	afterListLines func()
	// beforeLineInsert and afterLineInsert run inside CreateLine around the insert.
	beforeLineInsert func()
	afterLineInsert  func()
	// afterListDurations runs once, after the first ListDurations for its line.
	afterListDurations map[int64]func()
}

var _ ports.Repository = (*fakeRepo)(nil)

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		entries:   map[int64]domain.TrackerEntry{},
		lines:     map[int64]domain.TrackerEntryLine{},
		durations: map[int64]domain.TrackerEntryLineDuration{},
		closeErr:  map[int64]error{},

		afterListDurations: map[int64]func(){},
	}
}

func (f *fakeRepo) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeRepo) CreateEntry(_ context.Context, e domain.TrackerEntry) (domain.TrackerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.ID = f.id()
	f.entries[e.ID] = e
	return e, nil
}

func (f *fakeRepo) GetEntry(_ context.Context, id int64) (*domain.TrackerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (f *fakeRepo) ListEntries(context.Context) ([]domain.TrackerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listEntriesErr != nil {
		return nil, f.listEntriesErr
	}
	var out []domain.TrackerEntry
	for _, e := range f.entries {
		if !e.IsDeleted {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (f *fakeRepo) UpdateEntry(_ context.Context, e domain.TrackerEntry) (domain.TrackerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.entries[e.ID]
	if !ok || cur.IsDeleted {
		return domain.TrackerEntry{}, ports.ErrNoRowsAffected
	}
	cur.Label = e.Label
	cur.UpdatedAt = e.UpdatedAt
	f.entries[e.ID] = cur
	return cur, nil
}

func (f *fakeRepo) SoftDeleteEntry(_ context.Context, id int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.entries[id]
	if !ok || cur.IsDeleted {
		return ports.ErrNoRowsAffected
	}
	for lid, l := range f.lines {
		if l.EntryID == id {
			f.deleteLineLocked(lid, at)
		}
	}
	cur.IsDeleted = true
	cur.UpdatedAt = at
	f.entries[id] = cur
	return nil
}

func (f *fakeRepo) CreateLine(_ context.Context, l domain.TrackerEntryLine) (domain.TrackerEntryLine, error) {
	if f.beforeLineInsert != nil {
		f.beforeLineInsert()
	}
	f.mu.Lock()
	e, ok := f.entries[l.EntryID]
	if !ok || e.IsDeleted {
		f.mu.Unlock()
		return domain.TrackerEntryLine{}, ports.ErrNoRowsAffected
	}
	l.ID = f.id()
	f.lines[l.ID] = l
	f.mu.Unlock()
	if f.afterLineInsert != nil {
		f.afterLineInsert()
	}
	return l, nil
}

func (f *fakeRepo) GetLine(_ context.Context, id int64) (*domain.TrackerEntryLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.lines[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (f *fakeRepo) listLines(match func(domain.TrackerEntryLine) bool) []domain.TrackerEntryLine {
	var out []domain.TrackerEntryLine
	for _, l := range f.lines {
		if !l.IsDeleted && match(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (f *fakeRepo) ListLines(context.Context) ([]domain.TrackerEntryLine, error) {
	f.mu.Lock()
	out := f.listLines(func(domain.TrackerEntryLine) bool { return true })
	hook := f.afterListLines
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return out, nil
}

func (f *fakeRepo) ListLinesForEntry(_ context.Context, entryID int64) ([]domain.TrackerEntryLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listLines(func(l domain.TrackerEntryLine) bool { return l.EntryID == entryID }), nil
}

func (f *fakeRepo) UpdateLine(_ context.Context, l domain.TrackerEntryLine) (domain.TrackerEntryLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.lines[l.ID]
	if !ok || cur.IsDeleted {
		return domain.TrackerEntryLine{}, ports.ErrNoRowsAffected
	}
	cur.Desc = l.Desc
	cur.UpdatedAt = l.UpdatedAt
	f.lines[l.ID] = cur
	return cur, nil
}

func (f *fakeRepo) deleteLineLocked(id int64, at time.Time) bool {
	cur, ok := f.lines[id]
	if !ok || cur.IsDeleted {
		return false
	}
	cur.IsDeleted = true
	cur.UpdatedAt = at
	f.lines[id] = cur
	for did, d := range f.durations {
		if d.EntryLineID == id && !d.IsDeleted {
			d.IsDeleted = true
			d.UpdatedAt = at
			f.durations[did] = d
		}
	}
	return true
}

func (f *fakeRepo) SoftDeleteLine(_ context.Context, id int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.deleteLineLocked(id, at) {
		return ports.ErrNoRowsAffected
	}
	return nil
}

func (f *fakeRepo) CreateDuration(_ context.Context, d domain.TrackerEntryLineDuration) (domain.TrackerEntryLineDuration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createDurationErr != nil {
		return domain.TrackerEntryLineDuration{}, f.createDurationErr
	}
	if l, ok := f.lines[d.EntryLineID]; !ok || l.IsDeleted {
		return domain.TrackerEntryLineDuration{}, ports.ErrNoRowsAffected
	}
	d.ID = f.id()
	f.durations[d.ID] = d
	return d, nil
}

func (f *fakeRepo) ListDurations(_ context.Context, lineID int64) ([]domain.TrackerEntryLineDuration, error) {
	f.mu.Lock()
	out := f.listDurationsLocked(lineID)
	hook := f.afterListDurations[lineID]
	delete(f.afterListDurations, lineID)
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return out, nil
}

func (f *fakeRepo) listDurationsLocked(lineID int64) []domain.TrackerEntryLineDuration {
	var out []domain.TrackerEntryLineDuration
	for _, d := range f.durations {
		if d.EntryLineID == lineID && !d.IsDeleted {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (f *fakeRepo) CloseDuration(_ context.Context, id int64, endedAt time.Time) (domain.TrackerEntryLineDuration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.durations[id]
	if !ok || cur.IsDeleted || cur.EndedAt != nil {
		return domain.TrackerEntryLineDuration{}, ports.ErrNoRowsAffected
	}
	if err := f.closeErr[cur.EntryLineID]; err != nil {
		return domain.TrackerEntryLineDuration{}, err
	}
	cur.EndedAt = &endedAt
	cur.UpdatedAt = endedAt
	f.durations[id] = cur
	return cur, nil
}

func (f *fakeRepo) SoftDeleteDuration(_ context.Context, id int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.durations[id]
	if !ok || cur.IsDeleted {
		return ports.ErrNoRowsAffected
	}
	cur.IsDeleted = true
	cur.UpdatedAt = at
	f.durations[id] = cur
	return nil
}

func (f *fakeRepo) Truncate(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = map[int64]domain.TrackerEntry{}
	f.lines = map[int64]domain.TrackerEntryLine{}
	f.durations = map[int64]domain.TrackerEntryLineDuration{}
	f.nextID = 0
	return nil
}

// dropLineRow marks only the line row deleted, leaving its segments alone,
// the way an external writer would.
func (f *fakeRepo) dropLineRow(id int64, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.lines[id]
	l.IsDeleted = true
	l.UpdatedAt = at
	f.lines[id] = l
}

// openSegments counts live open segments of live lines.
func (f *fakeRepo) openSegments(lineID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, d := range f.durations {
		if d.EntryLineID == lineID && d.Open() {
			n++
		}
	}
	return n
}

// stepClock advances by step on every call.
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), step: time.Second}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (r *recorder) Publish(ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) all() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

var errDisk = errors.New("disk I/O error")
