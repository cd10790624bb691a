package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/myrjola/repsched/internal/day"
	"github.com/myrjola/repsched/internal/envstruct"
	"github.com/myrjola/repsched/internal/errors"
	"github.com/myrjola/repsched/internal/flightrecorder"
	"github.com/myrjola/repsched/internal/logging"
	"github.com/myrjola/repsched/internal/notify"
	"github.com/myrjola/repsched/internal/recurrence"
	"github.com/myrjola/repsched/internal/sqlite"
	"github.com/myrjola/repsched/internal/workout"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type application struct {
	logger     *slog.Logger
	workouts   *workout.Service
	recurrence *recurrence.Service
	runner     *recurrence.Runner
	notifier   *notify.CronNotifier
	registry   *prometheus.Registry
	traces     *flightrecorder.Recorder
}

type config struct {
	// Addr is the address to listen on. It's possible to choose the address dynamically with localhost:0.
	Addr string `env:"REPSCHED_ADDR" envDefault:"localhost:8081"`
	// SqliteURL is the URL to the SQLite database. You can use ":memory:" for an ethereal in-memory database.
	SqliteURL string `env:"REPSCHED_SQLITE_URL" envDefault:"./repsched.sqlite3"`
	// Location is the IANA time zone defining day boundaries. Empty means the system's local time.
	Location string `env:"REPSCHED_LOCATION" envDefault:""`
	// TickInterval is the period of the background scheduling pass. Empty or zero disables it.
	TickInterval time.Duration `env:"REPSCHED_TICK_INTERVAL" envDefault:"15m"`
	// NotificationTimeout bounds each reminder request made while materializing a session.
	NotificationTimeout time.Duration `env:"REPSCHED_NOTIFICATION_TIMEOUT" envDefault:"2s"`
	// TracesDirectory receives execution traces of timed out requests and slow scheduling passes. Empty disables
	// flight recording.
	TracesDirectory string `env:"REPSCHED_TRACES_DIRECTORY" envDefault:""`
	// SlowPassThreshold is the scheduling pass duration above which a trace is captured.
	SlowPassThreshold time.Duration `env:"REPSCHED_SLOW_PASS_THRESHOLD" envDefault:"1s"`
}

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	var (
		cancel context.CancelFunc
		err    error
	)

	ctx, cancel = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg config
	if err = envstruct.Populate(&cfg, lookupEnv); err != nil {
		return errors.Wrap(err, "populate config")
	}

	if cfg.Location != "" {
		var loc *time.Location
		if loc, err = time.LoadLocation(cfg.Location); err != nil {
			return errors.Wrap(err, "load location", slog.String("location", cfg.Location))
		}
		day.SetLocation(loc)
	}

	db, err := sqlite.NewDatabase(ctx, cfg.SqliteURL, logger)
	if err != nil {
		return errors.Wrap(err, "open db", slog.String("url", cfg.SqliteURL))
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "failed to close db", errors.SlogError(closeErr))
		}
	}()
	logger.LogAttrs(ctx, slog.LevelInfo, "connected to db")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	notifier := notify.NewCronNotifier(logger, notify.LogSink{Logger: logger})
	workouts := workout.NewService(db, logger, notifier)
	recurrenceService := recurrence.NewService(db, logger, workouts, notifier, recurrence.NewMetrics(registry),
		recurrence.Config{NotificationTimeout: cfg.NotificationTimeout})
	runner := recurrence.NewRunner(recurrenceService, logger, cfg.TickInterval)

	var traces *flightrecorder.Recorder
	if cfg.TracesDirectory != "" {
		if traces, err = flightrecorder.New(logger, flightrecorder.Config{
			MinAge:    0,
			MaxBytes:  0,
			Cooldown:  0,
			Directory: cfg.TracesDirectory,
		}); err != nil {
			return errors.Wrap(err, "create flight recorder")
		}
		if err = traces.Start(ctx); err != nil {
			return errors.Wrap(err, "start flight recorder")
		}
		defer traces.Stop(context.WithoutCancel(ctx))
		runner.OnSlowPass(cfg.SlowPassThreshold, func(ctx context.Context) {
			traces.Capture(ctx, "slow-pass")
		})
	}

	app := application{
		logger:     logger,
		workouts:   workouts,
		recurrence: recurrenceService,
		runner:     runner,
		notifier:   notifier,
		registry:   registry,
		traces:     traces,
	}

	notifier.Start()
	if err = runner.Start(); err != nil {
		return errors.Wrap(err, "start runner")
	}
	defer app.stopBackground(ctx)

	// Catch up on occurrences that became due while the app was not running.
	if _, err = runner.Trigger(ctx, "launch"); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "launch scheduling pass failed", errors.SlogError(err))
	}

	if err = app.configureAndStartServer(ctx, cfg.Addr); err != nil {
		return errors.Wrap(err, "start server")
	}
	return nil
}

// stopBackground stops the periodic pass and the reminder scheduler.
func (app *application) stopBackground(ctx context.Context) {
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultTimeout)
	defer cancel()
	app.runner.Stop(stopCtx)
	app.notifier.Stop(stopCtx)
}

func main() {
	ctx := context.Background()
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)
	if err := run(ctx, logger, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", errors.SlogError(err))
		os.Exit(1)
	}
}
