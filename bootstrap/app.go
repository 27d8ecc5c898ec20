package bootstrap

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/kbukum/serverkit/config"
	"github.com/kbukum/serverkit/container"
	"github.com/kbukum/serverkit/environment"
	"github.com/kbukum/serverkit/logger"
	"github.com/kbukum/serverkit/management"
	"github.com/kbukum/serverkit/observability"
	"github.com/kbukum/serverkit/persistence"
)

// componentLoggers are registered from the App's logger so packages that
// log on their own report through it.
var componentLoggers = []string{"bootstrap", "container", "persistence", "management"}

// App runs one server process: it boots the container described by the
// persisted configuration, waits for a shutdown signal and stops it.
//
// Example:
//
//	cfg, err := config.Load("serverkit")
//	app, err := bootstrap.NewApp(cfg)
//	app.OnReady(func(ctx context.Context) error {
//	    // every service is up or failed
//	    return nil
//	})
//	app.Run(context.Background())
type App struct {
	Name    string
	Version string
	Cfg     *config.ServerConfig
	Logger  *logger.Logger
	Summary *Summary

	config     *Configuration
	bootstrap  Bootstrap
	activators []container.Activator
	out        io.Writer

	mu        sync.Mutex
	container *container.Container
	telemetry observability.ShutdownFunc

	onStart []Hook
	onReady []Hook
	onStop  []Hook
}

// NewApp creates a server from its configuration. It applies defaults,
// validates the config, initializes the logger and freezes the boot
// Configuration.
func NewApp(cfg *config.ServerConfig, opts ...Option) (*App, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	o := resolveOptions(opts)
	app := &App{
		Name:       cfg.Name,
		Version:    cfg.Version,
		Cfg:        cfg,
		bootstrap:  o.bootstrap,
		activators: o.activators,
		out:        os.Stdout,
	}

	if o.logger != nil {
		app.Logger = o.logger
	} else {
		logger.Init(&cfg.Logging, cfg.Name)
		app.Logger = logger.GetGlobalLogger()
	}
	for _, name := range componentLoggers {
		logger.Register(name, app.Logger.WithComponent(name))
	}

	b := NewBuilder().
		SetModuleLoader(o.loader).
		SetPersisterFactory(o.factory).
		SetFs(o.fs).
		SetBackupOptions(persistence.WithKeepBackups(cfg.Persistence.KeepBackups))
	if !cfg.Embedded() {
		env, err := environment.New(cfg.Server)
		if err != nil {
			return nil, fmt.Errorf("server environment: %w", err)
		}
		b.SetEnvironment(env)
	}
	if err := b.SetPortOffset(cfg.PortOffset); err != nil {
		return nil, err
	}
	app.config = b.Build()

	app.Summary = NewSummary(cfg.Name, cfg.Version)
	return app, nil
}

// AddActivator adds a startup action run after those the configuration
// document describes. It has no effect once the server has started.
func (a *App) AddActivator(acts ...container.Activator) {
	a.activators = append(a.activators, acts...)
}

// Configuration returns the frozen boot configuration.
func (a *App) Configuration() *Configuration {
	return a.config
}

// Container returns the running container, or nil before Start succeeds.
func (a *App) Container() *container.Container {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.container
}

// Run executes the full server lifecycle:
// OnStart hooks → Startup → OnReady hooks → block on signal →
// OnStop hooks → graceful shutdown.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}

	a.Logger.Info("Server ready, waiting for shutdown signal")
	a.WaitForSignal(ctx)

	return a.stop()
}

// Start boots the server and returns once every service is up or failed,
// or the boot timeout elapses.
func (a *App) Start(ctx context.Context) error {
	a.Logger.Info("Starting server", logger.Fields(
		"name", a.Name,
		"version", a.Version,
		logger.FieldStrategy, a.config.PersistenceStrategy(),
	))

	telemetry, err := observability.Init(ctx, a.Cfg.Observability, a.Name, a.Version, a.Cfg.Environment)
	if err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	a.mu.Lock()
	a.telemetry = telemetry
	a.mu.Unlock()

	boot := a.bootstrap
	if boot == nil {
		boot, err = a.newBootstrap()
		if err != nil {
			a.stopTelemetry()
			return err
		}
	}

	if err := runHooks(ctx, a.onStart); err != nil {
		a.stopTelemetry()
		return fmt.Errorf("onStart hook failed: %w", err)
	}

	acts := append([]container.Activator(nil), a.activators...)
	if a.Cfg.Management.Enabled {
		acts = append(acts, a.managementActivator())
	}

	bootCtx, cancel := context.WithTimeout(ctx, a.Cfg.BootTimeout)
	defer cancel()
	handle := boot.Startup(bootCtx, a.config, acts)
	c, err := handle.Get(bootCtx)
	if err != nil {
		handle.Cancel()
		a.stopTelemetry()
		return fmt.Errorf("startup failed: %w", err)
	}

	a.mu.Lock()
	a.container = c
	a.mu.Unlock()

	a.Summary.Record(c, a.config)
	a.Summary.Display(a.out)

	if err := runHooks(ctx, a.onReady); err != nil {
		return fmt.Errorf("onReady hook failed: %w", err)
	}
	return nil
}

func (a *App) newBootstrap() (Bootstrap, error) {
	opts := []BootOption{
		WithBootLogger(a.Logger.WithComponent("bootstrap")),
		WithContainerOptions(container.WithLogger(a.Logger.WithComponent("container"))),
	}
	if a.Cfg.Observability.Enabled {
		m, err := observability.NewBootMetrics(observability.Meter("serverkit"))
		if err != nil {
			return nil, fmt.Errorf("boot metrics: %w", err)
		}
		opts = append(opts, WithBootMetrics(m))
	}
	return New(opts...), nil
}

// managementActivator installs the management endpoint after the
// persister, so it can snapshot the configuration file.
func (a *App) managementActivator() container.Activator {
	return container.NewActivator(management.ServiceName, container.KindExtra, func(_ context.Context, t *container.Target) error {
		opts := []management.Option{
			management.WithLogger(a.Logger.WithComponent("management")),
			management.WithDependencies(PersisterServiceName),
		}
		if p, ok := PersisterOf(t.Container()); ok && durable(p) {
			opts = append(opts, management.WithSnapshotter(p))
		}
		t.Install(management.New(a.Cfg.Management.Address, a.Name, t.Container(), opts...))
		return nil
	})
}

// durable reports whether p keeps the configuration anywhere it could be
// snapshotted from.
func durable(p persistence.Persister) bool {
	_, null := p.(*persistence.NullPersister)
	return !null
}

// WaitForSignal blocks until an OS interrupt/term signal or context cancellation.
func (a *App) WaitForSignal(ctx context.Context) os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.Logger.Info("Received shutdown signal, graceful shutdown starting", logger.Fields(
			"signal", sig.String(),
		))
		return sig
	case <-ctx.Done():
		a.Logger.Info("Context canceled, shutting down")
		return nil
	}
}

// Shutdown performs graceful shutdown. Use when managing your own lifecycle.
func (a *App) Shutdown(ctx context.Context) error {
	return a.stop()
}

// stop runs OnStop hooks, then stops the container and telemetry within
// the shutdown timeout.
func (a *App) stop() error {
	a.Logger.Info("Shutting down server", logger.Fields(
		"timeout", a.Cfg.ShutdownTimeout.String(),
	))

	ctx, cancel := context.WithTimeout(context.Background(), a.Cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := runHooks(ctx, a.onStop); err != nil {
		a.Logger.Error("OnStop hook error", logger.ErrorFields("shutdown", err))
		errs = append(errs, err)
	}

	if c := a.Container(); c != nil {
		if err := c.Shutdown(ctx); err != nil {
			a.Logger.Error("Shutdown completed with errors", logger.ErrorFields("shutdown", err))
			errs = append(errs, err)
		}
	}

	if err := a.stopTelemetryWith(ctx); err != nil {
		a.Logger.Warn("Telemetry shutdown failed", logger.ErrorFields("shutdown", err))
	}

	a.Logger.Info("Server shutdown complete")
	return stderrors.Join(errs...)
}

func (a *App) stopTelemetry() {
	ctx, cancel := context.WithTimeout(context.Background(), a.Cfg.ShutdownTimeout)
	defer cancel()
	_ = a.stopTelemetryWith(ctx)
}

func (a *App) stopTelemetryWith(ctx context.Context) error {
	a.mu.Lock()
	fn := a.telemetry
	a.telemetry = nil
	a.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(ctx)
}
