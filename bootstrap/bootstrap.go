package bootstrap

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kbukum/serverkit/container"
	"github.com/kbukum/serverkit/errors"
	"github.com/kbukum/serverkit/future"
	"github.com/kbukum/serverkit/logger"
	"github.com/kbukum/serverkit/observability"
	"github.com/kbukum/serverkit/persistence"
)

const failedBootStopTimeout = 10 * time.Second

// Bootstrap boots a server container. Both calls return immediately with
// a pending handle.
type Bootstrap interface {
	// Bootstrap loads the configuration, installs the persister and runs
	// every startup action. The handle resolves once installation has
	// been dispatched; services may still be starting.
	Bootstrap(ctx context.Context, cfg *Configuration, extra []container.Activator) *future.Future[*container.Container]

	// Startup boots like Bootstrap, then resolves only once every
	// installed service is up or failed. A failed service does not fail
	// the handle; inspect Container.Failures.
	Startup(ctx context.Context, cfg *Configuration, extra []container.Activator) *future.Future[*container.Container]
}

// BootOption configures a Bootstrap.
type BootOption func(*bootstrapper)

// WithBootLogger sets the logger boots report through.
func WithBootLogger(l *logger.Logger) BootOption {
	return func(b *bootstrapper) { b.log = l }
}

// WithBootMetrics records transitions and boot timings.
func WithBootMetrics(m *observability.BootMetrics) BootOption {
	return func(b *bootstrapper) { b.metrics = m }
}

// WithContainerOptions passes options to every container created.
func WithContainerOptions(opts ...container.Option) BootOption {
	return func(b *bootstrapper) { b.containerOpts = append(b.containerOpts, opts...) }
}

type bootstrapper struct {
	log           *logger.Logger
	metrics       *observability.BootMetrics
	containerOpts []container.Option
}

// New creates a Bootstrap.
func New(opts ...BootOption) Bootstrap {
	b := &bootstrapper{}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		b.log = logger.Get("bootstrap")
	}
	return b
}

func (b *bootstrapper) Bootstrap(ctx context.Context, cfg *Configuration, extra []container.Activator) *future.Future[*container.Container] {
	// A container booted after the handle was canceled is shut down.
	return future.GoWithDiscard(ctx, func(ctx context.Context) (*container.Container, error) {
		return b.boot(ctx, cfg, extra)
	}, b.abandon)
}

func (b *bootstrapper) Startup(ctx context.Context, cfg *Configuration, extra []container.Activator) *future.Future[*container.Container] {
	return future.GoWithDiscard(ctx, func(ctx context.Context) (*container.Container, error) {
		ctx, span := observability.StartSpan(ctx, observability.SpanStartup)
		defer span.End()

		booted := b.Bootstrap(ctx, cfg, extra)
		c, err := booted.Get(ctx)
		if err != nil {
			// A boot that completes after we stopped waiting is shut down.
			booted.Cancel()
			observability.SetSpanError(ctx, err)
			return nil, err
		}

		log := b.log.WithFields(logger.Fields(logger.FieldBootID, c.ID()))
		if err := c.AwaitStability(ctx); err != nil {
			b.abandon(c)
			observability.SetSpanError(ctx, err)
			return nil, errors.Canceled("startup").WithCause(err)
		}

		elapsed := time.Since(cfg.StartTime())
		failures := c.Failures()
		if b.metrics != nil {
			b.metrics.RecordBoot(ctx, "startup", elapsed, nil)
		}
		observability.SetSpanAttribute(ctx, observability.AttrServiceCount, len(c.Names()))
		observability.SetSpanAttribute(ctx, observability.AttrFailureCount, len(failures))

		fields := logger.DurationFields("startup", elapsed)
		fields[logger.FieldCount] = len(c.Names())
		if len(failures) > 0 {
			fields["failed"] = len(failures)
			log.Warn("Server started with failed services", fields)
		} else {
			log.Info("Server started", fields)
		}
		return c, nil
	}, b.abandon)
}

// boot runs on the Bootstrap handle's goroutine. Any error shuts the
// partially booted container down.
func (b *bootstrapper) boot(ctx context.Context, cfg *Configuration, extra []container.Activator) (*container.Container, error) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, observability.SpanBootstrap)
	defer span.End()

	opts := append([]container.Option(nil), b.containerOpts...)
	if b.metrics != nil {
		opts = append(opts, container.WithListener(b.metrics.Listener()))
	}
	c := container.New(opts...)
	log := b.log.WithFields(logger.Fields(logger.FieldBootID, c.ID()))
	observability.SetSpanAttribute(ctx, observability.AttrContainerID, c.ID())

	fail := func(err error) (*container.Container, error) {
		observability.SetSpanError(ctx, err)
		if b.metrics != nil {
			b.metrics.RecordBoot(ctx, "bootstrap", time.Since(start), err)
		}
		log.Error("Bootstrap failed", logger.MergeWithError(nil, err))
		b.abandon(c)
		return nil, err
	}

	strategy := cfg.PersistenceStrategy()
	observability.SetSpanAttribute(ctx, observability.AttrStrategy, strategy)

	group := &errgroup.Group{}
	p := cfg.PersisterFactory().CreatePersister(cfg.Environment(), group)

	loadCtx, loadSpan := observability.StartSpan(ctx, observability.SpanPersisterLoad)
	doc, err := p.Load(loadCtx)
	if err != nil {
		observability.SetSpanError(loadCtx, err)
		loadSpan.End()
		return fail(err)
	}
	loadSpan.End()

	log.Info("Configuration loaded", logger.Fields(
		logger.FieldStrategy, strategy,
		"extensions", len(doc.Extensions),
		"subsystems", len(doc.Subsystems),
		"deployments", len(doc.Deployments),
	))

	if err := c.Install(&persisterService{persister: p, group: group, log: log}); err != nil {
		return fail(err)
	}

	actions := documentActivators(doc, cfg.ModuleLoader(), log)
	actions = append(actions, extra...)
	for _, a := range actions {
		if err := ctx.Err(); err != nil {
			return fail(errors.Canceled("bootstrap").WithCause(err))
		}
		if err := b.activate(ctx, c, a); err != nil {
			return fail(err)
		}
	}

	if b.metrics != nil {
		b.metrics.RecordBoot(ctx, "bootstrap", time.Since(start), nil)
	}
	log.Debug("Installation dispatched", logger.Fields(
		logger.FieldCount, len(actions),
		logger.FieldDuration, time.Since(start).Milliseconds(),
	))
	return c, nil
}

func (b *bootstrapper) activate(ctx context.Context, c *container.Container, a container.Activator) error {
	ctx, span := observability.StartSpan(ctx, observability.SpanActivate)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrActivator, a.Name())
	observability.SetSpanAttribute(ctx, observability.AttrActivatorKind, string(a.Kind()))

	err := c.Activate(ctx, a)
	if b.metrics != nil {
		b.metrics.RecordActivation(ctx, string(a.Kind()), err)
	}
	if err != nil {
		observability.SetSpanError(ctx, err)
	}
	return err
}

// abandon shuts down a container no caller will receive.
func (b *bootstrapper) abandon(c *container.Container) {
	ctx, cancel := context.WithTimeout(context.Background(), failedBootStopTimeout)
	defer cancel()
	if err := c.Shutdown(ctx); err != nil {
		b.log.Warn("Shutdown of abandoned container failed", logger.MergeWithError(
			logger.Fields(logger.FieldBootID, c.ID()), err))
	}
}

var _ persistence.Executor = (*errgroup.Group)(nil)
