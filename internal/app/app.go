package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	msql "time-tracker/internal/adapter/mysql"
	"time-tracker/internal/adapter/sqlite"
	"time-tracker/internal/adapter/sqlstore"
	"time-tracker/internal/clock"
	"time-tracker/internal/config"
	"time-tracker/internal/dto"
	"time-tracker/internal/events"
	"time-tracker/internal/migrate"
	"time-tracker/internal/usecase"
	"time-tracker/internal/view"
)

// App is the process context: it owns the store, the tracking service, the
// event mailbox and the view reconciler from start-up to shutdown.
type App struct {
	log     *slog.Logger
	cfg     config.Config
	repo    *sqlstore.Repository
	svc     *usecase.TrackingService
	mailbox *events.Mailbox
	view    *view.Reconciler

	mu          sync.Mutex
	srv         *http.Server
	stopView    context.CancelFunc
	viewDone    chan struct{}
	closeOnce   sync.Once
	closeErr    error
	shutdown    sync.Once
	stopped     []dto.LineView
	shutdownErr error
}

// OpenStore opens the configured store and applies pending migrations.
func OpenStore(ctx context.Context, log *slog.Logger, cfg config.Config) (*sqlstore.Repository, error) {
	dialect, err := migrate.ParseDialect(cfg.Storage.Driver)
	if err != nil {
		return nil, err
	}

	var repo *sqlstore.Repository
	switch dialect {
	case migrate.MySQL:
		repo, err = msql.NewClient(ctx, cfg.Storage.DSN, log)
	default:
		repo, err = sqlite.NewClient(ctx, cfg.Storage.Path, log)
	}
	if err != nil {
		return nil, err
	}

	// Run migrations before handing the store out
	if err := migrate.Run(ctx, repo.DB(), dialect, log); err != nil {
		_ = repo.Close()
		return nil, err
	}
	return repo, nil
}

// New wires adapters and use cases and seeds the view from the stored history.
func New(ctx context.Context, log *slog.Logger, cfg config.Config) (*App, error) {
	return open(ctx, log, cfg, true)
}

// Open is New without the history read: the view starts empty. One-shot
// commands that never look at the view use it.
func Open(ctx context.Context, log *slog.Logger, cfg config.Config) (*App, error) {
	return open(ctx, log, cfg, false)
}

func open(ctx context.Context, log *slog.Logger, cfg config.Config, seed bool) (*App, error) {
	repo, err := OpenStore(ctx, log, cfg)
	if err != nil {
		return nil, err
	}

	clk := clock.New()
	mailbox := events.NewMailbox()
	svc := &usecase.TrackingService{
		Log:    log,
		Repo:   repo,
		Clock:  clk,
		Events: mailbox,
	}

	state := view.NewState()
	var (
		trackers []dto.EntryView
		lines    []dto.LineView
	)
	if seed {
		if trackers, err = svc.GetTrackers(ctx); err != nil {
			_ = repo.Close()
			return nil, err
		}
		if lines, err = svc.GetTrackerLines(ctx); err != nil {
			_ = repo.Close()
			return nil, err
		}
		state.Seed(trackers, lines)
	}

	a := &App{
		log:     log,
		cfg:     cfg,
		repo:    repo,
		svc:     svc,
		mailbox: mailbox,
		view:    view.NewReconciler(log, mailbox, clk, state),
	}
	log.Info("app initialized",
		slog.String("driver", cfg.Storage.Driver),
		slog.Bool("seeded", seed),
		slog.Int("trackers", len(trackers)),
		slog.Int("lines", len(lines)))
	return a, nil
}

// Service exposes the tracking operations to boundary layers.
func (a *App) Service() *usecase.TrackingService { return a.svc }

// View exposes the reconciled view.
func (a *App) View() *view.Reconciler { return a.view }

// StartView launches the single reconciliation goroutine. It keeps running
// after ctx is cancelled and only stops in Close or Shutdown, so the events of
// the exit sequence still reach the view.
func (a *App) StartView(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.viewDone != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.stopView = cancel
	a.viewDone = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		a.view.Run(ctx, a.cfg.View.Interval)
	}(a.viewDone)
}

// Close releases the mailbox and the store without touching running sessions.
// One-shot commands use it; long-running processes use Shutdown.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		cancel, done := a.stopView, a.viewDone
		a.mu.Unlock()
		if cancel != nil {
			cancel()
			<-done
		}
		a.mailbox.Close()
		a.closeErr = a.repo.Close()
	})
	return a.closeErr
}

// Shutdown runs the exit sequence exactly once: stop accepting requests, stop
// every running session and wait for it, fold the final events into the view,
// then release resources. Later calls return the first result.
func (a *App) Shutdown(ctx context.Context) ([]dto.LineView, error) {
	a.shutdown.Do(func() {
		var errs []error

		a.mu.Lock()
		srv := a.srv
		a.mu.Unlock()
		if srv != nil {
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs = append(errs, err)
			}
		}

		// Not cancellable: an open segment left behind would run forever.
		stopped, err := a.svc.StopAllActiveTracking(context.WithoutCancel(ctx))
		if err != nil {
			a.log.Error("failed to stop some sessions on shutdown", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.stopped = stopped

		if err := a.Close(); err != nil {
			errs = append(errs, err)
		}
		a.shutdownErr = errors.Join(errs...)
		a.log.Info("shutdown complete", slog.Int("stopped", len(stopped)))
	})
	return a.stopped, a.shutdownErr
}
