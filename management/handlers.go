package management

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/serverkit/container"
	"github.com/kbukum/serverkit/errors"
	"github.com/kbukum/serverkit/observability"
	"github.com/kbukum/serverkit/version"
)

func (s *Service) routes() {
	s.engine.GET("/health", s.health)
	s.engine.GET("/services", s.services)
	s.engine.GET("/version", s.version)
	s.engine.POST("/snapshot", s.snapshot)
}

func (s *Service) health(c *gin.Context) {
	info := version.Get()
	sh := observability.FromContainer(s.server, info.Version, s.c.Health(c.Request.Context()))

	status := http.StatusOK
	if sh.Status != observability.HealthStatusUp {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status":     sh.Status,
		"service":    sh.Service,
		"version":    sh.Version,
		"container":  s.c.ID(),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"components": sh.Components,
	})
}

type serviceState struct {
	Name  string          `json:"name"`
	State container.State `json:"state"`
	Error string          `json:"error,omitempty"`
}

func (s *Service) services(c *gin.Context) {
	states := s.c.States()
	failures := s.c.Failures()

	out := make([]serviceState, 0, len(states))
	for _, name := range s.c.Names() {
		st := serviceState{Name: name, State: states[name]}
		if err := failures[name]; err != nil {
			st.Error = err.Error()
		}
		out = append(out, st)
	}
	c.JSON(http.StatusOK, gin.H{"services": out})
}

func (s *Service) version(c *gin.Context) {
	c.JSON(http.StatusOK, version.Get())
}

func (s *Service) snapshot(c *gin.Context) {
	if s.snapshotter == nil {
		respondError(c, errors.NotSupported("snapshot"))
		return
	}
	name, err := s.snapshotter.Snapshot(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	// Persisters without durable storage report an empty name.
	if name == "" {
		respondError(c, errors.NotSupported("snapshot"))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"snapshot": name})
}

func respondError(c *gin.Context, err error) {
	if appErr, ok := errors.AsAppError(err); ok {
		c.JSON(appErr.HTTPStatus, appErr.ToResponse())
		return
	}
	c.JSON(http.StatusInternalServerError, errors.Internal(err).ToResponse())
}
