package observability

import "github.com/kbukum/serverkit/container"

// HealthStatus represents the health state of a server or one of its services.
type HealthStatus string

const (
	HealthStatusUp       HealthStatus = "up"
	HealthStatusDown     HealthStatus = "down"
	HealthStatusDegraded HealthStatus = "degraded"
)

// Health describes the health of an individual service.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// ServiceHealth describes the overall health of a server and its services.
type ServiceHealth struct {
	Service    string       `json:"service"`
	Status     HealthStatus `json:"status"`
	Version    string       `json:"version,omitempty"`
	Components []Health     `json:"components,omitempty"`
}

// NewServiceHealth creates a ServiceHealth with status up.
func NewServiceHealth(service, version string) *ServiceHealth {
	return &ServiceHealth{
		Service: service,
		Status:  HealthStatusUp,
		Version: version,
	}
}

// AddComponent adds a service health result and degrades overall status if needed.
func (sh *ServiceHealth) AddComponent(ch Health) {
	sh.Components = append(sh.Components, ch)

	switch ch.Status {
	case HealthStatusDown:
		sh.Status = HealthStatusDown
	case HealthStatusDegraded:
		if sh.Status != HealthStatusDown {
			sh.Status = HealthStatusDegraded
		}
	}
}

// FromContainer aggregates the health a container reports for its services.
func FromContainer(service, version string, results []container.Health) *ServiceHealth {
	sh := NewServiceHealth(service, version)
	for _, h := range results {
		sh.AddComponent(Health{
			Name:    h.Name,
			Status:  fromContainerStatus(h.Status),
			Message: h.Message,
		})
	}
	return sh
}

func fromContainerStatus(s container.HealthStatus) HealthStatus {
	switch s {
	case container.StatusHealthy:
		return HealthStatusUp
	case container.StatusDegraded:
		return HealthStatusDegraded
	default:
		return HealthStatusDown
	}
}
