// Package modules is the module loading root: it resolves the code modules
// that extensions name, and records when the process booted.
package modules

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kbukum/serverkit/container"
)

var startTime = time.Now()

// StartTime returns the time the process booted.
func StartTime() time.Time {
	return startTime
}

// Module is a named unit of code an extension loads.
type Module struct {
	Name    string
	Version string

	// Install runs when the module is activated as an extension.
	Install func(ctx context.Context, target *container.Target) error

	// Subsystems maps a subsystem namespace to the handler that installs
	// services for that subsystem's configuration.
	Subsystems map[string]SubsystemHandler
}

// SubsystemHandler installs the services described by a subsystem's raw
// configuration element.
type SubsystemHandler func(ctx context.Context, target *container.Target, raw []byte) error

// Loader resolves modules by name.
type Loader interface {
	Load(name string) (*Module, error)
}

// Registry is a Loader backed by an in-memory table. A registry with a
// parent consults the parent when a name is not registered locally.
type Registry struct {
	parent Loader

	mu      sync.RWMutex
	modules map[string]*Module
}

// NewRegistry creates a module registry. parent may be nil.
func NewRegistry(parent Loader) *Registry {
	return &Registry{
		parent:  parent,
		modules: make(map[string]*Module),
	}
}

// Register adds a module. Registering a name twice fails.
func (r *Registry) Register(m *Module) error {
	if m == nil || m.Name == "" {
		return fmt.Errorf("modules: module name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[m.Name]; exists {
		return fmt.Errorf("modules: module %s already registered", m.Name)
	}
	r.modules[m.Name] = m
	return nil
}

// Load resolves a module by name.
func (r *Registry) Load(name string) (*Module, error) {
	r.mu.RLock()
	m, ok := r.modules[name]
	r.mu.RUnlock()
	if ok {
		return m, nil
	}
	if r.parent != nil {
		return r.parent.Load(name)
	}
	return nil, fmt.Errorf("modules: module %s not found", name)
}

// Names returns the locally registered module names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var bootLoader = NewRegistry(nil)

// BootLoader returns the process-wide loader modules register into at init.
func BootLoader() *Registry {
	return bootLoader
}

// Register adds a module to the boot loader.
func Register(m *Module) error {
	return bootLoader.Register(m)
}
