package persistence

import (
	"context"

	"github.com/kbukum/serverkit/environment"
)

// Persister loads and stores the server configuration document.
type Persister interface {
	// Load reads the configuration document.
	Load(ctx context.Context) (*Document, error)

	// Store persists doc, replacing the current document.
	Store(ctx context.Context, doc *Document) error

	// Snapshot copies the current document aside and returns where it went.
	// Persisters without durable storage return an empty name.
	Snapshot(ctx context.Context) (string, error)
}

// Executor runs background work for a persister. *errgroup.Group satisfies it.
type Executor interface {
	Go(f func() error)
}

// Factory creates the persister a server uses.
type Factory interface {
	// CreatePersister builds a persister. env may be nil for embedded
	// servers; exec may be nil when background work is not supported.
	CreatePersister(env *environment.ServerEnvironment, exec Executor) Persister
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(env *environment.ServerEnvironment, exec Executor) Persister

// CreatePersister calls f.
func (f FactoryFunc) CreatePersister(env *environment.ServerEnvironment, exec Executor) Persister {
	return f(env, exec)
}
