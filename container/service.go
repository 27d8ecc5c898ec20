package container

import "context"

// State is the lifecycle state of an installed service.
type State string

const (
	StateDown     State = "down"
	StateStarting State = "starting"
	StateUp       State = "up"
	StateFailed   State = "failed"
)

// Terminal reports whether the state is one a service does not leave on its own.
func (s State) Terminal() bool {
	return s == StateUp || s == StateFailed
}

// HealthStatus represents the health state of a service.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusDegraded  HealthStatus = "degraded"
)

// Health holds health information for a service.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Service is a unit of work the container starts and stops.
type Service interface {
	// Name returns the unique name of the service.
	Name() string

	// Start brings the service up. A returned error marks it failed.
	Start(ctx context.Context) error

	// Stop releases the service's resources.
	Stop(ctx context.Context) error
}

// DependencyProvider is optionally implemented by services that must start
// after other services are up.
type DependencyProvider interface {
	Dependencies() []string
}

// HealthChecker is optionally implemented by services that report health
// beyond their lifecycle state.
type HealthChecker interface {
	Health(ctx context.Context) Health
}

// FuncService adapts plain functions to Service.
type FuncService struct {
	ServiceName string
	DependsOn   []string
	StartFunc   func(ctx context.Context) error
	StopFunc    func(ctx context.Context) error
}

func (f *FuncService) Name() string { return f.ServiceName }

func (f *FuncService) Dependencies() []string { return f.DependsOn }

func (f *FuncService) Start(ctx context.Context) error {
	if f.StartFunc == nil {
		return nil
	}
	return f.StartFunc(ctx)
}

func (f *FuncService) Stop(ctx context.Context) error {
	if f.StopFunc == nil {
		return nil
	}
	return f.StopFunc(ctx)
}

// Transition describes a service moving between states.
type Transition struct {
	ContainerID string
	Service     string
	From        State
	To          State
	Err         error
}

// Listener observes service transitions. Listeners run on the goroutine
// that performed the transition and must not block.
type Listener func(Transition)
