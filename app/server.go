package app

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/searchktools/fast-dispatch/config"
	"github.com/searchktools/fast-dispatch/core"
	"github.com/searchktools/fast-dispatch/core/observability"
	"github.com/searchktools/fast-dispatch/core/pools"
	"github.com/searchktools/fast-dispatch/core/static"
	"github.com/searchktools/fast-dispatch/core/transport"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// SetupParams holds the dependencies of the dispatcher setup
type SetupParams struct {
	fx.In

	Config         *config.Config
	Logger         *zap.Logger
	TracerProvider trace.TracerProvider
	Monitor        *observability.Monitor
	Loader         static.Loader
	Workers        *pools.WorkerPool
}

// NewMonitor creates the per-route request monitor
func NewMonitor(logger *zap.Logger) *observability.Monitor {
	return observability.NewMonitor(
		observability.WithLogger(logger.Named("monitor")),
		observability.WithRuntimeCollectors(),
	)
}

// NewWorkerPool creates the handler pool when FD_HANDLER_WORKERS is set.
// It returns nil otherwise, and handlers get a goroutine each.
func NewWorkerPool(lc fx.Lifecycle, cfg *config.Config) *pools.WorkerPool {
	if cfg.HandlerWorkers == 0 {
		return nil
	}
	pool := pools.NewWorkerPool(cfg.HandlerWorkers, cfg.HandlerQueue)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})
	return pool
}

// NewLoader creates the static file loader rooted at FD_STATIC_ROOT
func NewLoader(cfg *config.Config, logger *zap.Logger) static.Loader {
	return static.NewDirLoader(cfg.StaticRoot, cfg.StaticCacheSize, logger.Named("static"))
}

// NewSetup creates the dispatcher setup and registers the static files
// listed in FD_STATIC_TABLE
func NewSetup(p SetupParams, resource any) (*core.Setup, error) {
	setup := core.NewSetup(
		core.WithLogger(p.Logger.Named("dispatch")),
		core.WithTracerProvider(p.TracerProvider),
		core.WithRecorder(p.Monitor),
		core.WithLoader(p.Loader),
		core.WithResource(resource),
		core.WithWorkerPool(p.Workers),
	)

	if p.Config.StaticTable != "" {
		files, err := config.LoadStaticTable(p.Config.StaticTable)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			setup.StaticFile(f.Path, f.Alias)
		}
	}
	return setup, nil
}

// NewDispatcher builds the dispatcher once routing has been registered
func NewDispatcher(setup *core.Setup) (*core.Dispatcher, error) {
	return setup.Build()
}

// NewServer creates the TCP transport in front of the dispatcher
func NewServer(cfg *config.Config, d *core.Dispatcher, logger *zap.Logger) *transport.Server {
	return transport.New(transport.Config{
		Addr:            cfg.Addr(),
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		IdleTimeout:     cfg.IdleTimeout,
		MaxConnections:  cfg.MaxConnections,
		MaxRequestBytes: cfg.MaxRequestBytes,
	}, d, logger.Named("transport"))
}

// startServerHook binds the listener on start and drains connections on stop.
// A serve failure shuts the application down.
func startServerHook(lc fx.Lifecycle, sd fx.Shutdowner, srv *transport.Server, cfg *config.Config, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := srv.Listen(ctx); err != nil {
				return err
			}
			logger.Info("starting server",
				zap.Stringer("addr", srv.Addr()),
				zap.String("env", cfg.Env))
			go func() {
				if err := srv.Serve(); err != nil && !errors.Is(err, transport.ErrServerClosed) {
					logger.Error("server error", zap.Error(err))
					_ = sd.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping server")
			ctx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	})
}
