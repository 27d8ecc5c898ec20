package bootstrap

import (
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/kbukum/serverkit/environment"
	"github.com/kbukum/serverkit/errors"
	"github.com/kbukum/serverkit/modules"
	"github.com/kbukum/serverkit/persistence"
)

// Builder collects the settings a server boots with. It is safe for
// concurrent use; Build freezes the current settings into a Configuration.
type Builder struct {
	mu         sync.Mutex
	env        *environment.ServerEnvironment
	loader     modules.Loader
	factory    persistence.Factory
	startTime  time.Time
	portOffset int
	fs         afero.Fs
	backupOpts []persistence.BackupOption
}

// NewBuilder returns a builder using the boot module loader and the
// process start time.
func NewBuilder() *Builder {
	return &Builder{
		loader:    modules.BootLoader(),
		startTime: modules.StartTime(),
	}
}

// SetEnvironment sets the server environment. A nil environment means the
// server persists nothing.
func (b *Builder) SetEnvironment(env *environment.ServerEnvironment) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.env = env
	return b
}

// SetModuleLoader sets the loader extensions are resolved with. Nil
// restores the boot loader.
func (b *Builder) SetModuleLoader(l modules.Loader) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if l == nil {
		l = modules.BootLoader()
	}
	b.loader = l
	return b
}

// SetPersisterFactory sets an explicit persister factory. It is used as
// given; no strategy is selected and no caching is added.
func (b *Builder) SetPersisterFactory(f persistence.Factory) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.factory = f
	return b
}

// SetStartTime sets the time the boot is considered to have started.
func (b *Builder) SetStartTime(t time.Time) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.startTime = t
	return b
}

// SetPortOffset sets the offset applied to socket bindings. Negative
// values are rejected and leave the builder unchanged.
func (b *Builder) SetPortOffset(n int) error {
	if n < 0 {
		return errors.InvalidArgument("portOffset", n, "may not be less than 0")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.portOffset = n
	return nil
}

// SetFs sets the filesystem file-backed persisters use.
func (b *Builder) SetFs(fs afero.Fs) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fs = fs
	return b
}

// SetBackupOptions tunes the file-backed persister.
func (b *Builder) SetBackupOptions(opts ...persistence.BackupOption) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.backupOpts = append([]persistence.BackupOption(nil), opts...)
	return b
}

// Build returns an immutable Configuration of the current settings.
func (b *Builder) Build() *Configuration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &Configuration{
		env:        b.env,
		loader:     b.loader,
		explicit:   b.factory,
		startTime:  b.startTime,
		portOffset: b.portOffset,
		fs:         b.fs,
		backupOpts: append([]persistence.BackupOption(nil), b.backupOpts...),
	}
}

// Configuration is the frozen set of settings a boot runs with.
type Configuration struct {
	env        *environment.ServerEnvironment
	loader     modules.Loader
	explicit   persistence.Factory
	startTime  time.Time
	portOffset int
	fs         afero.Fs
	backupOpts []persistence.BackupOption

	once     sync.Once
	strategy persistence.Strategy
	factory  persistence.Factory
}

// Environment returns the server environment, or nil.
func (c *Configuration) Environment() *environment.ServerEnvironment { return c.env }

// ModuleLoader returns the loader extensions are resolved with.
func (c *Configuration) ModuleLoader() modules.Loader { return c.loader }

// StartTime returns the time the boot is considered to have started.
func (c *Configuration) StartTime() time.Time { return c.startTime }

// PortOffset returns the validated socket binding offset.
func (c *Configuration) PortOffset() int { return c.portOffset }

// PersisterFactory returns the explicit factory if one was set. Otherwise
// the strategy is selected from the environment on first call and its
// factory, wrapped to build at most one persister, is returned on every
// call after.
func (c *Configuration) PersisterFactory() persistence.Factory {
	if c.explicit != nil {
		return c.explicit
	}
	c.once.Do(func() {
		c.strategy = persistence.Select(c.env, c.loader)
		c.factory = persistence.NewCachingFactory(c.strategy.Factory(c.fs, c.backupOpts...))
	})
	return c.factory
}

// PersistenceStrategy names the strategy in use; "custom" for an explicit
// factory.
func (c *Configuration) PersistenceStrategy() string {
	if c.explicit != nil {
		return "custom"
	}
	c.PersisterFactory()
	return c.strategy.Kind.String()
}
