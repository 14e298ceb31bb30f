package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/docshelf/core/buildinfo"
	coreconfig "github.com/m3rciful/docshelf/core/config"
	coredatabase "github.com/m3rciful/docshelf/core/database"
	"github.com/m3rciful/docshelf/core/logger"
	"github.com/m3rciful/docshelf/core/metrics"
	"github.com/m3rciful/docshelf/core/tracing"
)

// Options control the generic bootstrap pipeline shared between bots.
type Options struct {
	Config     *coreconfig.Config
	Database   coredatabase.Config
	Migrations fs.FS

	LoggerInit   func(*coreconfig.Config) error
	Connect      func(context.Context, coredatabase.Config) (*sqlx.DB, error)
	Migrate      func(context.Context, coredatabase.Config, fs.FS) error
	SetupTracing func(context.Context, coreconfig.TracingConfig, string) (tracing.ShutdownFunc, error)
	StartMetrics func(addr, path string) (*metrics.Server, error)
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	DB      *sqlx.DB
	Metrics *metrics.Server

	shutdownTracing tracing.ShutdownFunc
}

// Close releases everything Run acquired, in reverse order.
func (r *Result) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.shutdownTracing != nil {
		errs = append(errs, r.shutdownTracing(ctx))
	}
	errs = append(errs, r.Metrics.Shutdown(ctx))
	if r.DB != nil {
		errs = append(errs, r.DB.Close())
	}
	return errors.Join(errs...)
}

// Run initializes the logger, tracing, and metrics, connects to the database,
// and applies migrations.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	res := &Result{}

	setupTracing := opts.SetupTracing
	if setupTracing == nil {
		setupTracing = tracing.Setup
	}
	shutdown, err := setupTracing(ctx, opts.Config.Tracing, buildinfo.Version)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: tracing init failed: %w", err)
	}
	res.shutdownTracing = shutdown

	startMetrics := opts.StartMetrics
	if startMetrics == nil {
		startMetrics = metrics.Start
	}
	srv, err := startMetrics(opts.Config.Metrics.Listen, opts.Config.Metrics.Path)
	if err != nil {
		_ = res.Close(ctx)
		return nil, fmt.Errorf("bootstrap: metrics init failed: %w", err)
	}
	res.Metrics = srv

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(ctx, opts.Database)
	if err != nil {
		_ = res.Close(ctx)
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}
	res.DB = db

	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}
	if err := migrate(ctx, opts.Database, opts.Migrations); err != nil {
		_ = res.Close(ctx)
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}

	return res, nil
}
