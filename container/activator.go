package container

import (
	"context"

	"github.com/kbukum/serverkit/errors"
	"github.com/kbukum/serverkit/logger"
)

// ActivatorKind classifies a startup action.
type ActivatorKind string

const (
	KindExtension  ActivatorKind = "extension"
	KindProperties ActivatorKind = "properties"
	KindSubsystem  ActivatorKind = "subsystem"
	KindDeployment ActivatorKind = "deployment"
	KindExtra      ActivatorKind = "extra"
)

// Activator is a startup action. Its boot behavior runs once, when the
// container activates it, and typically installs services.
type Activator interface {
	Name() string
	Kind() ActivatorKind
	Activate(ctx context.Context, target *Target) error
}

// Target collects the services an activator installs. The batch is
// installed as a unit after Activate returns.
type Target struct {
	container *Container
	batch     []Service
}

// Install queues services for installation.
func (t *Target) Install(svcs ...Service) {
	t.batch = append(t.batch, svcs...)
}

// Container returns the container being activated into.
func (t *Target) Container() *Container {
	return t.container
}

// Activate runs an activator and installs what it queued. Either failure
// is reported as INSTALLATION_FAILED.
func (c *Container) Activate(ctx context.Context, a Activator) error {
	target := &Target{container: c}

	c.log.Debug("Activating", logger.Fields(
		logger.FieldAction, a.Name(),
		logger.FieldKind, string(a.Kind()),
	))

	if err := a.Activate(ctx, target); err != nil {
		return errors.InstallationFailed(a.Name(), err)
	}
	if err := c.Install(target.batch...); err != nil {
		if appErr, ok := errors.AsAppError(err); ok && appErr.Code == errors.ErrCodeInstallationFailed {
			return appErr.WithDetail(logger.FieldAction, a.Name())
		}
		return errors.InstallationFailed(a.Name(), err)
	}
	return nil
}

// activatorFunc adapts a function to Activator.
type activatorFunc struct {
	name string
	kind ActivatorKind
	fn   func(ctx context.Context, target *Target) error
}

// NewActivator builds an Activator from a function.
func NewActivator(name string, kind ActivatorKind, fn func(ctx context.Context, target *Target) error) Activator {
	return &activatorFunc{name: name, kind: kind, fn: fn}
}

// Services builds an extra Activator that installs the given services.
func Services(name string, svcs ...Service) Activator {
	return NewActivator(name, KindExtra, func(_ context.Context, t *Target) error {
		t.Install(svcs...)
		return nil
	})
}

func (a *activatorFunc) Name() string        { return a.name }
func (a *activatorFunc) Kind() ActivatorKind { return a.kind }

func (a *activatorFunc) Activate(ctx context.Context, target *Target) error {
	return a.fn(ctx, target)
}
