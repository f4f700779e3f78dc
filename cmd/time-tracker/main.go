package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"time-tracker/internal/app"
	"time-tracker/internal/config"
	"time-tracker/internal/logging"
)

var Version = "dev"

func main() {
	// Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cli carries what every subcommand needs once the root has run its setup.
type cli struct {
	configPath string
	verbose    bool
	asJSON     bool

	out    io.Writer
	errOut io.Writer

	cfg       config.Config
	log       *slog.Logger
	logCloser io.Closer
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "time-tracker",
		Short: "Track time against named trackers with pausable sessions",
		Long: `time-tracker keeps named trackers and timed work sessions under them.
A session can be paused and resumed; each run is stored as its own segment.
Data lives in ~/.time-tracker/ unless configured otherwise.`,
		Version:            Version,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  c.setup,
		PersistentPostRunE: c.teardown,
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default ~/.time-tracker/config.yaml)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().BoolVar(&c.asJSON, "json", false, "print results as JSON")

	root.AddCommand(c.serveCmd())
	root.AddCommand(c.trackerCmd())
	root.AddCommand(c.startCmd(), c.stopCmd(), c.resumeCmd(), c.editCmd(), c.rmCmd())
	root.AddCommand(c.linesCmd(), c.stopAllCmd())
	root.AddCommand(c.migrateCmd(), c.resetCmd())
	return root
}

// setup loads configuration and builds the logger. Results go to out, so
// one-shot commands log to errOut; serve logs to out like any daemon.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	c.cfg = cfg

	level := cfg.Log.Level
	if c.verbose {
		level = "debug"
	}
	console := c.errOut
	if cmd.Name() == "serve" {
		console = c.out
	}
	log, closer, err := logging.New(logging.Options{Level: level, File: cfg.Log.File, Console: console})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	c.log, c.logCloser = log, closer
	slog.SetDefault(log)
	return nil
}

func (c *cli) teardown(*cobra.Command, []string) error {
	if c.logCloser != nil {
		return c.logCloser.Close()
	}
	return nil
}

// withApp opens the application for a one-shot command. It does not run the
// shutdown hook: that would stop the session a "start" just opened.
func (c *cli) withApp(ctx context.Context, fn func(*app.App) error) error {
	a, err := app.Open(ctx, c.log, c.cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			c.log.Warn("failed to close store", slog.String("error", err.Error()))
		}
	}()
	return fn(a)
}
