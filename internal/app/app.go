package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/gmsas95/medtrack/internal/api"
	"github.com/gmsas95/medtrack/internal/clock"
	"github.com/gmsas95/medtrack/internal/config"
	apperrors "github.com/gmsas95/medtrack/internal/errors"
	"github.com/gmsas95/medtrack/internal/export"
	"github.com/gmsas95/medtrack/internal/identity"
	"github.com/gmsas95/medtrack/internal/metrics"
	"github.com/gmsas95/medtrack/internal/service"
	"github.com/gmsas95/medtrack/internal/store"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	Config  *config.Config
	Store   *store.Store
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Version string
}

func New(cfg *config.Config, st *store.Store, logger *zap.Logger, version string) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		Config:  cfg,
		Store:   st,
		Logger:  logger,
		Metrics: metrics.Default(),
		Version: version,
	}
}

// TrackerOptions builds per-user tracker settings from the configuration.
func (app *App) TrackerOptions(snapshots store.SnapshotStore, clk clock.Clock) service.Options {
	t := app.Config.Tracker
	return service.Options{
		Store:         snapshots,
		Clock:         clk,
		Logger:        app.Logger,
		Metrics:       app.Metrics,
		Interval:      t.NotificationInterval,
		Snooze:        app.Config.Snooze(),
		UpcomingLimit: t.UpcomingLimit,
		EnforceWindow: t.EnforceWindow,
		Celebration:   time.Duration(t.CelebrationSeconds) * time.Second,
	}
}

func (app *App) clock() (clock.Clock, error) {
	loc, err := app.Config.Location()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeConfig, "invalid timezone")
	}
	return clock.New(loc), nil
}

// RunServer serves the HTTP API until SIGINT or SIGTERM, then drains open
// trackers and stops storage maintenance.
func (app *App) RunServer(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk, err := app.clock()
	if err != nil {
		return err
	}

	storage := app.Config.Storage
	snapshots := store.NewGuarded(app.Store, storage.BreakerFailures, storage.BreakerTimeout, app.Logger)

	maint, err := app.Store.StartMaintenance(storage.GCSchedule)
	if err != nil {
		return err
	}

	auth, err := identity.NewLocal(app.Store, identity.Options{
		Secret:     app.Config.Security.JWTSecret,
		TTL:        app.Config.TokenTTL(),
		BcryptCost: app.Config.Security.BcryptCost,
	}, app.Logger)
	if err != nil {
		maint.Stop(context.Background())
		return err
	}

	trackers := service.NewManager(ctx, app.TrackerOptions(snapshots, clk))
	go trackers.Watch(ctx, auth)

	api.Version = app.Version
	server := api.New(app.Config, auth, trackers, app.Metrics, app.Logger)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Start()
	}()

	app.Logger.Info("Server started",
		zap.String("address", app.Config.Server.Address),
		zap.Int("port", app.Config.Server.Port),
		zap.String("url", fmt.Sprintf("http://localhost:%d", app.Config.Server.Port)),
		zap.String("timezone", clk.Now().Location().String()),
	)

	var runErr error
	select {
	case <-ctx.Done():
		app.Logger.Info("Shutting down...")
	case err := <-serveErr:
		if err != nil {
			runErr = apperrors.Wrap(err, apperrors.CodeInternal, "server stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error("Server shutdown error", zap.Error(err))
	}
	trackers.Shutdown()
	maint.Stop(shutdownCtx)
	return runErr
}

// ExportOptions selects whose logs to export and where to write them.
type ExportOptions struct {
	Email  string
	Format export.Format
	Range  export.Range
	// Output is a file or directory path; empty writes to stdout.
	Output string
}

// RunExport writes a report for the active profile of the given account
// without starting the server.
func (app *App) RunExport(ctx context.Context, opts ExportOptions, stdout io.Writer) (string, error) {
	if err := opts.Range.Validate(); err != nil {
		return "", err
	}
	user, err := app.Store.GetUserByEmail(opts.Email)
	if err != nil {
		return "", err
	}

	clk, err := app.clock()
	if err != nil {
		return "", err
	}
	trackerOpts := app.TrackerOptions(app.Store, clk)
	// one-shot: no reminder loop worth running
	trackerOpts.Interval = time.Hour

	trk, err := service.Open(ctx, user.ID, user.DisplayName, trackerOpts)
	if err != nil {
		return "", err
	}
	defer trk.Close()

	data := trk.Export()
	now := trk.Now()
	rep := export.NewReport(data.Profile.Name, data.Medications, data.Logs, opts.Range, now)

	if opts.Output == "" {
		return "", rep.Write(stdout, opts.Format)
	}

	path := opts.Output
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, export.FileName(opts.Format, data.Profile.Name, now))
	}
	f, err := os.Create(path)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeInternal, "failed to create export file")
	}
	if err := rep.Write(f, opts.Format); err != nil {
		f.Close()
		return "", apperrors.Wrap(err, apperrors.CodeInternal, "failed to write report")
	}
	if err := f.Close(); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeInternal, "failed to write report")
	}

	app.Logger.Info("Export written",
		zap.String("path", path),
		zap.String("format", string(opts.Format)),
		zap.Int("logs", len(rep.Logs)))
	return path, nil
}
