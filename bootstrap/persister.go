package bootstrap

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/kbukum/serverkit/container"
	"github.com/kbukum/serverkit/logger"
	"github.com/kbukum/serverkit/persistence"
)

// PersisterServiceName is the name the configuration persister is
// installed under.
const PersisterServiceName = "persister"

// persisterService keeps the configuration persister in the container.
// Stopping it waits for the persister's background work.
type persisterService struct {
	persister persistence.Persister
	group     *errgroup.Group
	log       *logger.Logger
}

func (s *persisterService) Name() string { return PersisterServiceName }

func (s *persisterService) Start(context.Context) error { return nil }

func (s *persisterService) Stop(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- s.group.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			s.log.Warn("Persister background work failed", logger.ErrorFields("persister.stop", err))
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Persister returns the persister the service holds.
func (s *persisterService) Persister() persistence.Persister { return s.persister }

// PersisterOf returns the configuration persister installed in c.
func PersisterOf(c *container.Container) (persistence.Persister, bool) {
	svc, ok := c.Lookup(PersisterServiceName)
	if !ok {
		return nil, false
	}
	ps, ok := svc.(*persisterService)
	if !ok {
		return nil, false
	}
	return ps.persister, true
}
