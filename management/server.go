package management

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kbukum/serverkit/container"
	"github.com/kbukum/serverkit/logger"
)

// ServiceName is the name the management service is installed under.
const ServiceName = "management"

const shutdownTimeout = 5 * time.Second

// Snapshotter copies the persisted configuration aside.
type Snapshotter interface {
	Snapshot(ctx context.Context) (string, error)
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service's logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithSnapshotter enables POST /snapshot.
func WithSnapshotter(sn Snapshotter) Option {
	return func(s *Service) { s.snapshotter = sn }
}

// WithDependencies makes the service start after the named services.
func WithDependencies(names ...string) Option {
	return func(s *Service) { s.deps = append(s.deps, names...) }
}

// Service serves the management endpoints for one container.
type Service struct {
	addr        string
	server      string
	c           *container.Container
	snapshotter Snapshotter
	deps        []string
	engine      *gin.Engine
	httpServer  *http.Server
	log         *logger.Logger

	mu       sync.Mutex
	listener net.Listener
}

// New creates the management service for c, listening on addr once started.
func New(addr, serverName string, c *container.Container, opts ...Option) *Service {
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Service{
		addr:   addr,
		server: serverName,
		c:      c,
		engine: gin.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.WithComponent(ServiceName)
	}

	s.engine.Use(recovery(s.log), requestLogger(s.log))
	s.routes()

	s.httpServer = &http.Server{
		Handler:           h2c.NewHandler(s.engine, &http2.Server{IdleTimeout: 120 * time.Second}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Service) Name() string { return ServiceName }

func (s *Service) Dependencies() []string { return s.deps }

// Handler returns the HTTP handler serving the endpoints.
func (s *Service) Handler() http.Handler {
	return s.engine
}

// Start binds the listener and serves in the background. It returns once
// the port is bound.
func (s *Service) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("management failed to bind %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("Management server error", logger.ErrorFields("serve", err))
		}
	}()

	s.log.Info("Management endpoint listening", logger.Fields("addr", ln.Addr().String()))
	return nil
}

// Stop shuts the HTTP server down gracefully.
func (s *Service) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("management shutdown: %w", err)
	}
	return nil
}

// Addr returns the bound address once started, otherwise the configured one.
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Health reports the endpoint as healthy while it is listening.
func (s *Service) Health(ctx context.Context) container.Health {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return container.Health{Name: ServiceName, Status: container.StatusDegraded, Message: "not listening"}
	}
	return container.Health{Name: ServiceName, Status: container.StatusHealthy}
}
