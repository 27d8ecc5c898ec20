package container

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/serverkit/errors"
	"github.com/kbukum/serverkit/logger"
)

const defaultStopTimeout = 10 * time.Second

// entry holds a service and its lifecycle bookkeeping.
type entry struct {
	svc      Service
	deps     []*entry
	state    State
	err      error
	done     chan struct{}
	duration time.Duration
}

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the container's logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Container) { c.log = l }
}

// WithListener registers a transition listener.
func WithListener(fn Listener) Option {
	return func(c *Container) { c.listeners = append(c.listeners, fn) }
}

// WithID overrides the generated container ID.
func WithID(id string) Option {
	return func(c *Container) { c.id = id }
}

// WithStopTimeout bounds each service's Stop call during Shutdown.
func WithStopTimeout(d time.Duration) Option {
	return func(c *Container) { c.stopTimeout = d }
}

// Container installs services and tracks them to a terminal state.
// Services are stopped in reverse order of coming up.
type Container struct {
	id          string
	log         *logger.Logger
	listeners   []Listener
	stopTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	shutdownMu sync.Mutex

	mu       sync.Mutex
	entries  []*entry
	lookup   map[string]*entry
	upOrder  []*entry
	unstable int
	stable   chan struct{}
	closed   bool
	stopped  bool
}

// New creates an empty container. An empty container is stable.
func New(opts ...Option) *Container {
	ctx, cancel := context.WithCancel(context.Background())
	stable := make(chan struct{})
	close(stable)

	c := &Container{
		id:          uuid.NewString(),
		stopTimeout: defaultStopTimeout,
		ctx:         ctx,
		cancel:      cancel,
		lookup:      make(map[string]*entry),
		stable:      stable,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Get("container")
	}
	c.log = c.log.WithFields(logger.Fields(logger.FieldBootID, c.id))
	return c
}

// ID returns the container's unique ID.
func (c *Container) ID() string { return c.id }

// Install validates a batch of services and starts each asynchronously once
// its dependencies are up. Services inside one batch may depend on each
// other; dependencies outside the batch must already be installed.
func (c *Container) Install(svcs ...Service) error {
	if len(svcs) == 0 {
		return nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.InstallationFailed("install", fmt.Errorf("container %s is shut down", c.id))
	}

	batch := make(map[string][]string, len(svcs))
	for _, s := range svcs {
		name := s.Name()
		if _, exists := c.lookup[name]; exists {
			c.mu.Unlock()
			return errors.DuplicateService(name)
		}
		if _, exists := batch[name]; exists {
			c.mu.Unlock()
			return errors.DuplicateService(name)
		}
		batch[name] = dependenciesOf(s)
	}

	levels, err := buildLevels(batch, func(name string) bool {
		_, ok := c.lookup[name]
		return ok
	})
	if err != nil {
		c.mu.Unlock()
		return errors.InstallationFailed("install", err)
	}

	added := make([]*entry, 0, len(svcs))
	for _, s := range svcs {
		e := &entry{svc: s, state: StateDown, done: make(chan struct{})}
		c.entries = append(c.entries, e)
		c.lookup[s.Name()] = e
		added = append(added, e)
	}
	for _, e := range added {
		for _, dep := range batch[e.svc.Name()] {
			e.deps = append(e.deps, c.lookup[dep])
		}
	}

	if c.unstable == 0 {
		c.stable = make(chan struct{})
	}
	c.unstable += len(added)
	c.wg.Add(len(added))
	c.mu.Unlock()

	c.log.Debug("Services installed", logger.Fields(
		logger.FieldCount, len(added),
		"levels", len(levels),
	))

	for _, e := range added {
		go c.run(e)
	}
	return nil
}

func (c *Container) run(e *entry) {
	defer c.wg.Done()
	name := e.svc.Name()

	for _, dep := range e.deps {
		select {
		case <-dep.done:
		case <-c.ctx.Done():
			c.finish(e, StateFailed, errors.Canceled("start of "+name), 0)
			return
		}
		c.mu.Lock()
		depState := dep.state
		c.mu.Unlock()
		if depState != StateUp {
			c.finish(e, StateFailed, errors.ServiceFailed(name,
				fmt.Errorf("dependency %s is %s", dep.svc.Name(), depState)), 0)
			return
		}
	}

	c.transition(e, StateStarting)

	start := time.Now()
	if err := e.svc.Start(c.ctx); err != nil {
		c.finish(e, StateFailed, errors.ServiceFailed(name, err), time.Since(start))
		return
	}
	c.finish(e, StateUp, nil, time.Since(start))
}

func (c *Container) transition(e *entry, to State) {
	c.mu.Lock()
	from := e.state
	e.state = to
	c.mu.Unlock()
	c.notify(Transition{ContainerID: c.id, Service: e.svc.Name(), From: from, To: to})
}

func (c *Container) finish(e *entry, to State, err error, d time.Duration) {
	c.mu.Lock()
	from := e.state
	e.state = to
	e.err = err
	e.duration = d
	if to == StateUp {
		c.upOrder = append(c.upOrder, e)
	}
	close(e.done)
	c.unstable--
	if c.unstable == 0 {
		close(c.stable)
	}
	c.mu.Unlock()

	fields := logger.Fields(
		logger.FieldService, e.svc.Name(),
		logger.FieldState, string(to),
		logger.FieldDuration, d.Milliseconds(),
	)
	if err != nil {
		c.log.Error("Service failed", logger.MergeWithError(fields, err))
	} else {
		c.log.Debug("Service started", fields)
	}

	c.notify(Transition{ContainerID: c.id, Service: e.svc.Name(), From: from, To: to, Err: err})
}

func (c *Container) notify(t Transition) {
	for _, fn := range c.listeners {
		fn(t)
	}
}

// AwaitStability blocks until every installed service is up or failed, or
// until ctx is done.
func (c *Container) AwaitStability(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.unstable == 0 {
			c.mu.Unlock()
			return nil
		}
		ch := c.stable
		c.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stable reports whether every installed service is in a terminal state.
func (c *Container) Stable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unstable == 0
}

// States returns the current state of every installed service.
func (c *Container) States() map[string]State {
	c.mu.Lock()
	defer c.mu.Unlock()

	states := make(map[string]State, len(c.entries))
	for _, e := range c.entries {
		states[e.svc.Name()] = e.state
	}
	return states
}

// Failures returns the start error of every failed service.
func (c *Container) Failures() map[string]error {
	c.mu.Lock()
	defer c.mu.Unlock()

	failures := make(map[string]error)
	for _, e := range c.entries {
		if e.state == StateFailed {
			failures[e.svc.Name()] = e.err
		}
	}
	return failures
}

// Names returns installed service names in installation order.
func (c *Container) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		names = append(names, e.svc.Name())
	}
	return names
}

// Lookup returns an installed service by name.
func (c *Container) Lookup(name string) (Service, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.lookup[name]; ok {
		return e.svc, true
	}
	return nil, false
}

// Health reports every installed service, sorted by name. Up services that
// implement HealthChecker report their own health.
func (c *Container) Health(ctx context.Context) []Health {
	c.mu.Lock()
	snapshot := make([]*entry, len(c.entries))
	copy(snapshot, c.entries)
	states := make(map[*entry]State, len(snapshot))
	errs := make(map[*entry]error, len(snapshot))
	for _, e := range snapshot {
		states[e] = e.state
		errs[e] = e.err
	}
	c.mu.Unlock()

	results := make([]Health, 0, len(snapshot))
	for _, e := range snapshot {
		name := e.svc.Name()
		switch states[e] {
		case StateUp:
			if hc, ok := e.svc.(HealthChecker); ok {
				results = append(results, hc.Health(ctx))
				continue
			}
			results = append(results, Health{Name: name, Status: StatusHealthy})
		case StateFailed:
			results = append(results, Health{Name: name, Status: StatusUnhealthy, Message: errs[e].Error()})
		default:
			results = append(results, Health{Name: name, Status: StatusDegraded, Message: string(states[e])})
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results
}

// Shutdown cancels pending starts, waits for in-flight starts to return, and
// stops every up service in reverse order. If ctx ends while starts are
// still in flight, the services already up are stopped and TIMEOUT is
// returned; a later call stops whatever came up since.
func (c *Container) Shutdown(ctx context.Context) error {
	c.shutdownMu.Lock()
	defer c.shutdownMu.Unlock()

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	first := !c.closed
	c.closed = true
	c.mu.Unlock()

	if first {
		c.log.Info("Stopping all services")
	}
	c.cancel()

	waited := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(waited)
	}()
	settled := true
	select {
	case <-waited:
	case <-ctx.Done():
		settled = false
	}

	errs := c.stopUp(ctx)
	if !settled {
		c.log.Warn("Services still starting at shutdown deadline")
		return errors.Timeout("container shutdown")
	}

	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()

	if len(errs) > 0 {
		return stderrors.Join(errs...)
	}
	c.log.Info("All services stopped")
	return nil
}

// stopUp stops every service still up, newest first.
func (c *Container) stopUp(ctx context.Context) []error {
	c.mu.Lock()
	var order []*entry
	for _, e := range c.upOrder {
		if e.state == StateUp {
			order = append(order, e)
		}
	}
	c.mu.Unlock()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		e := order[i]
		name := e.svc.Name()

		stopCtx, cancel := context.WithTimeout(ctx, c.stopTimeout)
		if err := e.svc.Stop(stopCtx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop %s: %w", name, err))
			c.log.Error("Service stop failed", logger.Fields(
				logger.FieldService, name,
				logger.FieldError, err.Error(),
			))
		} else {
			c.log.Debug("Service stopped", logger.Fields(logger.FieldService, name))
		}
		cancel()

		c.mu.Lock()
		e.state = StateDown
		c.mu.Unlock()
		c.notify(Transition{ContainerID: c.id, Service: name, From: StateUp, To: StateDown})
	}
	return errs
}

func dependenciesOf(s Service) []string {
	if dp, ok := s.(DependencyProvider); ok {
		return dp.Dependencies()
	}
	return nil
}
