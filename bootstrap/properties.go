package bootstrap

import (
	"context"

	"github.com/kbukum/serverkit/container"
	"github.com/kbukum/serverkit/logger"
	"github.com/kbukum/serverkit/persistence"
)

// PropertiesServiceName is the name the document's system properties are
// installed under.
const PropertiesServiceName = "system-properties"

// propertiesService holds the system properties of the booted document.
// Later properties override earlier ones with the same name.
type propertiesService struct {
	props map[string]string
}

func (s *propertiesService) Name() string { return PropertiesServiceName }

func (s *propertiesService) Start(context.Context) error { return nil }

func (s *propertiesService) Stop(context.Context) error { return nil }

// PropertiesOf returns a copy of the system properties installed in c.
func PropertiesOf(c *container.Container) (map[string]string, bool) {
	svc, ok := c.Lookup(PropertiesServiceName)
	if !ok {
		return nil, false
	}
	ps, ok := svc.(*propertiesService)
	if !ok {
		return nil, false
	}
	out := make(map[string]string, len(ps.props))
	for k, v := range ps.props {
		out[k] = v
	}
	return out, true
}

func propertiesActivator(props []persistence.Property, log *logger.Logger) container.Activator {
	return container.NewActivator(PropertiesServiceName, container.KindProperties, func(_ context.Context, t *container.Target) error {
		m := make(map[string]string, len(props))
		for _, p := range props {
			m[p.Name] = p.Value
		}
		log.Debug("System properties applied", logger.Fields(logger.FieldCount, len(m)))
		t.Install(&propertiesService{props: m})
		return nil
	})
}
