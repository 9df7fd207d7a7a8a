// Package app wires configuration, logging, tracing, metrics, the
// dispatcher and the TCP transport into a runnable application.
package app

import (
	"context"

	"github.com/searchktools/fast-dispatch/config"
	"github.com/searchktools/fast-dispatch/core"
	"github.com/searchktools/fast-dispatch/core/observability"
	"github.com/searchktools/fast-dispatch/core/pools"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// App wraps an fx.App for lifecycle management
type App struct {
	app *fx.App
}

// AppConfig holds the options collected for an App
type AppConfig struct {
	Resource  any
	FxOptions []fx.Option
}

// Option configures the App
type Option func(*AppConfig)

// WithResource sets the resource handed to every request context
func WithResource(resource any) Option {
	return func(c *AppConfig) {
		c.Resource = resource
	}
}

// WithFx adds fx options for dependency injection
func WithFx(fxOpts ...fx.Option) Option {
	return func(c *AppConfig) {
		c.FxOptions = append(c.FxOptions, fxOpts...)
	}
}

// FxOptions returns the dependency graph used by New. routing is invoked
// with its dependencies before the dispatcher is built; it should accept
// *core.Setup to register routes and middleware.
func FxOptions(routing any, opts ...Option) []fx.Option {
	var cfg AppConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	baseOpts := make([]fx.Option, 0, 12+len(cfg.FxOptions))
	baseOpts = append(baseOpts,
		fx.NopLogger,
		fx.Provide(config.New),
		fx.Provide(NewLogger),
		fx.Provide(NewTracerProvider),
		fx.Provide(NewMonitor),
		fx.Provide(NewLoader),
		fx.Provide(NewWorkerPool),
		fx.Provide(func(p SetupParams) (*core.Setup, error) {
			return NewSetup(p, cfg.Resource)
		}),
		fx.Provide(NewDispatcher),
		fx.Provide(NewServer),
	)
	baseOpts = append(baseOpts, cfg.FxOptions...)
	baseOpts = append(baseOpts,
		fx.Invoke(routing),
		fx.Invoke(applyGCHook),
		fx.Invoke(startMonitorHook),
		fx.Invoke(startServerHook),
	)
	return baseOpts
}

// New creates an application. See FxOptions for the routing contract.
func New(routing any, opts ...Option) *App {
	return &App{app: fx.New(FxOptions(routing, opts...)...)}
}

// Err reports a dependency graph error
func (a *App) Err() error {
	return a.app.Err()
}

// Run starts the application and blocks until interrupted
func (a *App) Run() {
	a.app.Run()
}

// Start starts the application and stops it once ctx is done
func (a *App) Start(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.app.StopTimeout())
	defer cancel()

	return a.app.Stop(stopCtx)
}

// applyGCHook applies FD_GC_PERCENT and FD_MEMORY_LIMIT for the app's lifetime
func applyGCHook(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) {
	gc := pools.GCConfig{Percent: cfg.GCPercent, MemoryLimit: cfg.MemoryLimit}
	if gc == (pools.GCConfig{}) {
		return
	}

	var prev pools.GCConfig
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			prev = pools.ApplyGCConfig(gc)
			logger.Info("gc tuned",
				zap.Int("gc_percent", gc.Percent),
				zap.Int64("memory_limit", gc.MemoryLimit))
			return nil
		},
		OnStop: func(context.Context) error {
			pools.ApplyGCConfig(prev)
			return nil
		},
	})
}

// startMonitorHook runs bottleneck detection while the app is up
func startMonitorHook(lc fx.Lifecycle, monitor *observability.Monitor, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			monitor.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			monitor.Stop()
			logger.Info("monitor stopped",
				zap.Uint64("requests", monitor.TotalRequests()),
				zap.Int("bottlenecks", len(monitor.Bottlenecks())))
			return nil
		},
	})
}
