package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"time-tracker/internal/domain"
	"time-tracker/internal/dto"
	"time-tracker/internal/events"
	"time-tracker/internal/ports"
)

// TrackingService owns the per-line session state machine: start opens a line
// with its first segment, stop closes the open segment, resume opens a new one.
// Every successful mutation publishes one event to Events.
type TrackingService struct {
	Log    *slog.Logger
	Repo   ports.Repository
	Clock  ports.Clock
	Events ports.Publisher

	locks lineLocks
}

var errNotInitialized = errors.New("usecase not initialized: missing dependencies")

func (s *TrackingService) ready() error {
	if s.Repo == nil || s.Clock == nil || s.Log == nil {
		return errNotInitialized
	}
	return nil
}

func notFound(kind string, id int64) error {
	return fmt.Errorf("%s with id %d: %w", kind, id, domain.ErrNotFound)
}

func invalid(kind string, id int64, reason string) error {
	return fmt.Errorf("%s with id %d: %w: %s", kind, id, domain.ErrValidation, reason)
}

func storage(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStorage, op, err)
}

// CreateTracker stores a new entry. Labels are trimmed and must not be empty.
func (s *TrackingService) CreateTracker(ctx context.Context, label string) (dto.EntryView, error) {
	if err := s.ready(); err != nil {
		return dto.EntryView{}, err
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return dto.EntryView{}, fmt.Errorf("%s: %w: label must not be empty", domain.KindEntry, domain.ErrValidation)
	}

	now := s.Clock.Now()
	entry, err := s.Repo.CreateEntry(ctx, domain.TrackerEntry{Label: label, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		return dto.EntryView{}, storage("create entry", err)
	}
	view := dto.FromEntry(entry)
	s.publish(events.EntryCreated(view, now))
	s.Log.Info("tracker created", slog.Int64("entry_id", entry.ID), slog.String("label", label))
	return view, nil
}

// GetTrackers returns live entries, newest created first.
func (s *TrackingService) GetTrackers(ctx context.Context) ([]dto.EntryView, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	entries, err := s.Repo.ListEntries(ctx)
	if err != nil {
		return nil, storage("list entries", err)
	}
	out := make([]dto.EntryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.FromEntry(e))
	}
	return out, nil
}

// RenameTracker changes the label of a live entry.
func (s *TrackingService) RenameTracker(ctx context.Context, entryID int64, label string) (dto.EntryView, error) {
	if err := s.ready(); err != nil {
		return dto.EntryView{}, err
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return dto.EntryView{}, invalid(domain.KindEntry, entryID, "label must not be empty")
	}
	entry, err := s.liveEntry(ctx, entryID)
	if err != nil {
		return dto.EntryView{}, err
	}

	now := s.Clock.Now()
	entry.Label = label
	entry.UpdatedAt = now
	updated, err := s.Repo.UpdateEntry(ctx, *entry)
	if errors.Is(err, ports.ErrNoRowsAffected) {
		return dto.EntryView{}, notFound(domain.KindEntry, entryID)
	}
	if err != nil {
		return dto.EntryView{}, storage("update entry", err)
	}
	view := dto.FromEntry(updated)
	s.publish(events.EntryUpdated(view, now))
	return view, nil
}

// GetTrackerLines is the history read: live lines newest first, each with its
// live segments newest-started first.
func (s *TrackingService) GetTrackerLines(ctx context.Context) ([]dto.LineView, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	lines, err := s.Repo.ListLines(ctx)
	if err != nil {
		return nil, storage("list lines", err)
	}
	return s.lineViews(ctx, lines)
}

// GetTrackerLinesForEntry returns the history of one live entry.
func (s *TrackingService) GetTrackerLinesForEntry(ctx context.Context, entryID int64) ([]dto.LineView, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if _, err := s.liveEntry(ctx, entryID); err != nil {
		return nil, err
	}
	lines, err := s.Repo.ListLinesForEntry(ctx, entryID)
	if err != nil {
		return nil, storage("list lines for entry", err)
	}
	return s.lineViews(ctx, lines)
}

// StartTracking creates a line under entryID and opens its first segment.
// Other running lines are left alone.
func (s *TrackingService) StartTracking(ctx context.Context, entryID int64, desc string) (dto.LineView, error) {
	if err := s.ready(); err != nil {
		return dto.LineView{}, err
	}
	if _, err := s.liveEntry(ctx, entryID); err != nil {
		return dto.LineView{}, err
	}

	now := s.Clock.Now()
	line, err := s.Repo.CreateLine(ctx, domain.TrackerEntryLine{
		EntryID:   entryID,
		Desc:      desc,
		StartedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if errors.Is(err, ports.ErrNoRowsAffected) {
		// Deleted after the lookup above.
		return dto.LineView{}, notFound(domain.KindEntry, entryID)
	}
	if err != nil {
		return dto.LineView{}, storage("create line", err)
	}

	unlock := s.locks.lock(line.ID)
	defer unlock()

	seg, err := s.Repo.CreateDuration(ctx, domain.TrackerEntryLineDuration{
		EntryLineID: line.ID,
		StartedAt:   now,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if errors.Is(err, ports.ErrNoRowsAffected) {
		// The tracker was deleted in between and took the new line with it.
		return dto.LineView{}, notFound(domain.KindEntry, entryID)
	}
	if err != nil {
		// A line without a segment would read as paused; drop it instead.
		if derr := s.Repo.SoftDeleteLine(ctx, line.ID, now); derr != nil && !errors.Is(derr, ports.ErrNoRowsAffected) {
			s.Log.Warn("failed to discard line without segment",
				slog.Int64("line_id", line.ID), slog.String("error", derr.Error()))
		}
		return dto.LineView{}, storage("create duration", err)
	}

	view := dto.FromLine(line, []domain.TrackerEntryLineDuration{seg}, now)
	s.publish(events.LineCreated(view, now))
	s.Log.Info("tracking started", slog.Int64("entry_id", entryID), slog.Int64("line_id", line.ID))
	return view, nil
}

// StopTracking closes the open segment of lineID.
func (s *TrackingService) StopTracking(ctx context.Context, lineID int64) (dto.LineView, error) {
	if err := s.ready(); err != nil {
		return dto.LineView{}, err
	}
	unlock := s.locks.lock(lineID)
	defer unlock()
	return s.stopLocked(ctx, lineID)
}

func (s *TrackingService) stopLocked(ctx context.Context, lineID int64) (dto.LineView, error) {
	line, err := s.liveLine(ctx, lineID)
	if err != nil {
		return dto.LineView{}, err
	}
	durations, err := s.Repo.ListDurations(ctx, lineID)
	if err != nil {
		return dto.LineView{}, storage("list durations", err)
	}
	active := domain.ActiveDuration(durations)
	if active == nil {
		return dto.LineView{}, invalid(domain.KindLine, lineID, "no active duration")
	}

	now := s.Clock.Now()
	closed, err := s.Repo.CloseDuration(ctx, active.ID, now)
	if errors.Is(err, ports.ErrNoRowsAffected) {
		// Closed or deleted between the read and the write.
		return dto.LineView{}, invalid(domain.KindLine, lineID, "no active duration")
	}
	if err != nil {
		return dto.LineView{}, storage("close duration", err)
	}
	*active = closed

	view := dto.FromLine(*line, durations, now)
	s.publish(events.LineUpdated(view, now))
	s.Log.Info("tracking stopped", slog.Int64("line_id", lineID),
		slog.Duration("elapsed", time.Duration(view.ElapsedSeconds)*time.Second))
	return view, nil
}

// ResumeTracking opens a new segment on a paused line.
func (s *TrackingService) ResumeTracking(ctx context.Context, lineID int64) (dto.LineView, error) {
	if err := s.ready(); err != nil {
		return dto.LineView{}, err
	}
	unlock := s.locks.lock(lineID)
	defer unlock()

	line, err := s.liveLine(ctx, lineID)
	if err != nil {
		return dto.LineView{}, err
	}
	durations, err := s.Repo.ListDurations(ctx, lineID)
	if err != nil {
		return dto.LineView{}, storage("list durations", err)
	}
	if domain.ActiveDuration(durations) != nil {
		return dto.LineView{}, invalid(domain.KindLine, lineID, "already has an active duration")
	}

	now := s.Clock.Now()
	seg, err := s.Repo.CreateDuration(ctx, domain.TrackerEntryLineDuration{
		EntryLineID: lineID,
		StartedAt:   now,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if errors.Is(err, ports.ErrNoRowsAffected) {
		return dto.LineView{}, notFound(domain.KindLine, lineID)
	}
	if err != nil {
		return dto.LineView{}, storage("create duration", err)
	}
	durations = append([]domain.TrackerEntryLineDuration{seg}, durations...)

	view := dto.FromLine(*line, durations, now)
	s.publish(events.LineUpdated(view, now))
	s.Log.Info("tracking resumed", slog.Int64("line_id", lineID))
	return view, nil
}

// UpdateTracked replaces the description of a live line.
func (s *TrackingService) UpdateTracked(ctx context.Context, lineID int64, desc string) (dto.LineView, error) {
	if err := s.ready(); err != nil {
		return dto.LineView{}, err
	}
	unlock := s.locks.lock(lineID)
	defer unlock()

	line, err := s.liveLine(ctx, lineID)
	if err != nil {
		return dto.LineView{}, err
	}

	now := s.Clock.Now()
	line.Desc = desc
	line.UpdatedAt = now
	updated, err := s.Repo.UpdateLine(ctx, *line)
	if errors.Is(err, ports.ErrNoRowsAffected) {
		return dto.LineView{}, notFound(domain.KindLine, lineID)
	}
	if err != nil {
		return dto.LineView{}, storage("update line", err)
	}
	durations, err := s.Repo.ListDurations(ctx, lineID)
	if err != nil {
		return dto.LineView{}, storage("list durations", err)
	}

	view := dto.FromLine(updated, durations, now)
	s.publish(events.LineUpdated(view, now))
	return view, nil
}

// RemoveTracked soft-deletes a line; the store cascades to its segments.
func (s *TrackingService) RemoveTracked(ctx context.Context, lineID int64) error {
	if err := s.ready(); err != nil {
		return err
	}
	unlock := s.locks.lock(lineID)
	defer unlock()

	line, err := s.liveLine(ctx, lineID)
	if err != nil {
		return err
	}
	now := s.Clock.Now()
	if err := s.Repo.SoftDeleteLine(ctx, lineID, now); err != nil {
		if errors.Is(err, ports.ErrNoRowsAffected) {
			return notFound(domain.KindLine, lineID)
		}
		return storage("delete line", err)
	}

	line.IsDeleted = true
	line.UpdatedAt = now
	s.publish(events.LineDeleted(dto.FromLine(*line, nil, now), now))
	s.Log.Info("line removed", slog.Int64("line_id", lineID))
	return nil
}

// DeleteTracker soft-deletes every line of entryID and then the entry in one
// store transaction, so no reader sees a deleted entry with live lines.
func (s *TrackingService) DeleteTracker(ctx context.Context, entryID int64) error {
	if err := s.ready(); err != nil {
		return err
	}
	entry, err := s.liveEntry(ctx, entryID)
	if err != nil {
		return err
	}
	lines, err := s.Repo.ListLinesForEntry(ctx, entryID)
	if err != nil {
		return storage("list lines for entry", err)
	}

	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ID)
	}
	slices.Sort(ids)
	for _, id := range ids {
		unlock := s.locks.lock(id)
		defer unlock()
	}

	now := s.Clock.Now()
	if err := s.Repo.SoftDeleteEntry(ctx, entryID, now); err != nil {
		if errors.Is(err, ports.ErrNoRowsAffected) {
			return notFound(domain.KindEntry, entryID)
		}
		return storage("delete entry", err)
	}

	for _, l := range lines {
		l.IsDeleted = true
		l.UpdatedAt = now
		s.publish(events.LineDeleted(dto.FromLine(l, nil, now), now))
	}
	entry.IsDeleted = true
	entry.UpdatedAt = now
	s.publish(events.EntryDeleted(dto.FromEntry(*entry), now))
	s.Log.Info("tracker deleted", slog.Int64("entry_id", entryID), slog.Int("lines", len(lines)))
	return nil
}

// StopAllActiveTracking stops every line with an open segment. Each line is
// stopped independently; failures are logged and joined into the returned
// error while the remaining lines are still attempted. The returned views are
// the lines that were stopped.
func (s *TrackingService) StopAllActiveTracking(ctx context.Context) ([]dto.LineView, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	lines, err := s.Repo.ListLines(ctx)
	if err != nil {
		return nil, storage("list lines", err)
	}

	var (
		stopped []dto.LineView
		errs    []error
	)
	for _, l := range lines {
		durations, err := s.Repo.ListDurations(ctx, l.ID)
		if err != nil {
			s.Log.Error("stop all: failed to read segments", slog.Int64("line_id", l.ID), slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("line %d: %w", l.ID, storage("list durations", err)))
			continue
		}
		if domain.ActiveDuration(durations) == nil {
			continue
		}
		view, err := s.StopTracking(ctx, l.ID)
		if errors.Is(err, domain.ErrValidation) {
			// Paused by another caller between the read and the stop.
			s.Log.Debug("stop all: line no longer running", slog.Int64("line_id", l.ID))
			continue
		}
		if err != nil {
			s.Log.Error("stop all: failed to stop line", slog.Int64("line_id", l.ID), slog.String("error", err.Error()))
			errs = append(errs, err)
			continue
		}
		stopped = append(stopped, view)
	}
	s.Log.Info("stopped active tracking", slog.Int("stopped", len(stopped)), slog.Int("failed", len(errs)))
	return stopped, errors.Join(errs...)
}

// Reset removes every stored row.
func (s *TrackingService) Reset(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.Repo.Truncate(ctx); err != nil {
		return storage("truncate", err)
	}
	s.Log.Warn("all tracking data removed")
	return nil
}

func (s *TrackingService) liveEntry(ctx context.Context, id int64) (*domain.TrackerEntry, error) {
	entry, err := s.Repo.GetEntry(ctx, id)
	if err != nil {
		return nil, storage("get entry", err)
	}
	if entry == nil || entry.IsDeleted {
		return nil, notFound(domain.KindEntry, id)
	}
	return entry, nil
}

func (s *TrackingService) liveLine(ctx context.Context, id int64) (*domain.TrackerEntryLine, error) {
	line, err := s.Repo.GetLine(ctx, id)
	if err != nil {
		return nil, storage("get line", err)
	}
	if line == nil || line.IsDeleted {
		return nil, notFound(domain.KindLine, id)
	}
	return line, nil
}

func (s *TrackingService) lineViews(ctx context.Context, lines []domain.TrackerEntryLine) ([]dto.LineView, error) {
	now := s.Clock.Now()
	out := make([]dto.LineView, 0, len(lines))
	for _, l := range lines {
		durations, err := s.Repo.ListDurations(ctx, l.ID)
		if err != nil {
			return nil, storage("list durations", err)
		}
		out = append(out, dto.FromLine(l, durations, now))
	}
	return out, nil
}

// publish hands ev to the event sink. Failures are logged only: the mutation
// is already durable.
func (s *TrackingService) publish(ev events.Event) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ev); err != nil {
		s.Log.Warn("event not delivered",
			slog.String("subject", string(ev.Subject)),
			slog.Int64("id", ev.EntityID()),
			slog.String("error", err.Error()))
	}
}
