package bootstrap

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbukum/serverkit/container"
	"github.com/kbukum/serverkit/logger"
	"github.com/kbukum/serverkit/modules"
	"github.com/kbukum/serverkit/persistence"
)

// DeploymentServicePrefix prefixes the service name of every deployment.
const DeploymentServicePrefix = "deployment."

// loadedModules records the modules extensions loaded so subsystems can
// find their handlers.
type loadedModules struct {
	mu      sync.Mutex
	modules []*modules.Module
}

func (l *loadedModules) add(m *modules.Module) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.modules = append(l.modules, m)
}

func (l *loadedModules) handler(namespace string) (modules.SubsystemHandler, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.modules {
		if h, ok := m.Subsystems[namespace]; ok {
			return h, true
		}
	}
	return nil, false
}

// documentActivators derives the boot actions a configuration document
// describes: extensions, then system properties, then subsystems, then
// deployments.
func documentActivators(doc *persistence.Document, loader modules.Loader, log *logger.Logger) []container.Activator {
	loaded := &loadedModules{}
	var acts []container.Activator

	for _, ext := range doc.Extensions {
		acts = append(acts, extensionActivator(ext.Module, loader, loaded))
	}
	if len(doc.SystemProperties) > 0 {
		acts = append(acts, propertiesActivator(doc.SystemProperties, log))
	}
	for _, sub := range doc.Subsystems {
		acts = append(acts, subsystemActivator(sub, loaded))
	}
	for _, dep := range doc.Deployments {
		if dep.Disabled {
			log.Debug("Skipping disabled deployment", logger.Fields(logger.FieldService, dep.Name))
			continue
		}
		acts = append(acts, deploymentActivator(dep, log))
	}
	return acts
}

func extensionActivator(module string, loader modules.Loader, loaded *loadedModules) container.Activator {
	return container.NewActivator("extension:"+module, container.KindExtension, func(ctx context.Context, t *container.Target) error {
		m, err := loader.Load(module)
		if err != nil {
			return err
		}
		loaded.add(m)
		if m.Install == nil {
			return nil
		}
		return m.Install(ctx, t)
	})
}

func subsystemActivator(sub persistence.Subsystem, loaded *loadedModules) container.Activator {
	ns := sub.Namespace()
	return container.NewActivator("subsystem:"+ns, container.KindSubsystem, func(ctx context.Context, t *container.Target) error {
		h, ok := loaded.handler(ns)
		if !ok {
			return fmt.Errorf("no extension handles subsystem namespace %s", ns)
		}
		return h(ctx, t, sub.Content)
	})
}

func deploymentActivator(dep persistence.Deployment, log *logger.Logger) container.Activator {
	runtimeName := dep.RuntimeName
	if runtimeName == "" {
		runtimeName = dep.Name
	}
	return container.NewActivator("deployment:"+dep.Name, container.KindDeployment, func(_ context.Context, t *container.Target) error {
		t.Install(&container.FuncService{
			ServiceName: DeploymentServicePrefix + dep.Name,
			DependsOn:   []string{PersisterServiceName},
			StartFunc: func(context.Context) error {
				log.Info("Deployed", logger.Fields(
					logger.FieldService, dep.Name,
					"runtime_name", runtimeName,
				))
				return nil
			},
		})
		return nil
	})
}
