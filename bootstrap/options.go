package bootstrap

import (
	"github.com/spf13/afero"

	"github.com/kbukum/serverkit/container"
	"github.com/kbukum/serverkit/logger"
	"github.com/kbukum/serverkit/modules"
	"github.com/kbukum/serverkit/persistence"
)

// Option configures the App during creation.
type Option func(*appOptions)

// appOptions collects all option values before applying to App.
type appOptions struct {
	logger     *logger.Logger
	loader     modules.Loader
	fs         afero.Fs
	factory    persistence.Factory
	activators []container.Activator
	bootstrap  Bootstrap
}

// resolveOptions applies all options and returns the collected values.
func resolveOptions(opts []Option) *appOptions {
	o := &appOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets a custom logger for the application.
// If not set, the logger is initialized from the config's Logging section.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) {
		o.logger = l
	}
}

// WithModuleLoader sets the loader extensions are resolved with.
func WithModuleLoader(l modules.Loader) Option {
	return func(o *appOptions) {
		o.loader = l
	}
}

// WithFs sets the filesystem the configuration file is persisted on.
func WithFs(fs afero.Fs) Option {
	return func(o *appOptions) {
		o.fs = fs
	}
}

// WithPersisterFactory replaces strategy selection with an explicit factory.
func WithPersisterFactory(f persistence.Factory) Option {
	return func(o *appOptions) {
		o.factory = f
	}
}

// WithActivators adds startup actions run after those the configuration
// document describes.
func WithActivators(acts ...container.Activator) Option {
	return func(o *appOptions) {
		o.activators = append(o.activators, acts...)
	}
}

// WithBootstrap sets the Bootstrap the App boots through. By default one is
// created with the App's logger and metrics.
func WithBootstrap(b Bootstrap) Option {
	return func(o *appOptions) {
		o.bootstrap = b
	}
}
