package view

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"time-tracker/internal/events"
	"time-tracker/internal/ports"
)

// Source is the consumer side of the event mailbox.
type Source interface {
	Drain() []events.Event
	Ready() <-chan struct{}
}

// Reconciler is the only goroutine that touches State. Each cycle it drains
// the event source and pending commands, folds them in order, and publishes a
// fresh Snapshot. Everyone else reads snapshots.
type Reconciler struct {
	log    *slog.Logger
	src    Source
	clock  ports.Clock
	state  *State
	latest atomic.Pointer[Snapshot]

	cmdMu    sync.Mutex
	commands []func(*State)
	wake     chan struct{}
	running  atomic.Bool
}

// NewReconciler takes ownership of state; callers must not touch it afterwards.
func NewReconciler(log *slog.Logger, src Source, clock ports.Clock, state *State) *Reconciler {
	r := &Reconciler{
		log:   log,
		src:   src,
		clock: clock,
		state: state,
		wake:  make(chan struct{}, 1),
	}
	r.latest.Store(state.Snapshot(clock.Now()))
	return r
}

// Snapshot returns the most recently published view.
func (r *Reconciler) Snapshot() *Snapshot {
	return r.latest.Load()
}

// Select requests a selection change; it takes effect on the next cycle.
func (r *Reconciler) Select(trackerID int64) {
	r.enqueue(func(s *State) { s.Select(trackerID) })
}

func (r *Reconciler) enqueue(cmd func(*State)) {
	r.cmdMu.Lock()
	r.commands = append(r.commands, cmd)
	r.cmdMu.Unlock()
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run observes until ctx is done, then performs one final cycle so nothing
// published before cancellation is lost. Only one Run may be active.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	if !r.running.CompareAndSwap(false, true) {
		r.log.Error("view reconciler already running")
		return
	}
	defer r.running.Store(false)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	r.log.Debug("view reconciler started", slog.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			r.Cycle()
			r.log.Debug("view reconciler stopped")
			return
		case <-ticker.C:
		case <-r.src.Ready():
		case <-r.wake:
		}
		r.Cycle()
	}
}

// Cycle runs one observation cycle. It must only be called from the goroutine
// that owns the reconciler (Run, or a test driving it directly).
func (r *Reconciler) Cycle() *Snapshot {
	evs := r.src.Drain()

	r.cmdMu.Lock()
	cmds := r.commands
	r.commands = nil
	r.cmdMu.Unlock()

	for _, ev := range evs {
		r.state.Apply(ev)
	}
	for _, cmd := range cmds {
		cmd(r.state)
	}

	snap := r.state.Snapshot(r.clock.Now())
	r.latest.Store(snap)
	if len(evs) > 0 || len(cmds) > 0 {
		r.log.Debug("view reconciled",
			slog.Int("events", len(evs)),
			slog.Int("commands", len(cmds)),
			slog.Uint64("seq", snap.Seq))
	}
	return snap
}
