// Package bootstrap boots a server container from its persisted
// configuration.
//
// A Builder collects the boot settings and freezes them into an immutable
// Configuration. The Configuration selects a persistence strategy from the
// server environment: no environment persists nothing, a standalone
// environment reads and writes the configuration file with backups.
//
// Bootstrap loads the configuration document, installs the persister and
// runs the document's startup actions (extensions, then subsystems, then
// deployments) followed by any extra actions. It returns a future-style
// handle at once:
//
//	cfg := bootstrap.NewBuilder().SetEnvironment(env).Build()
//	handle := bootstrap.New().Startup(ctx, cfg, nil)
//	c, err := handle.Get(ctx)
//
// Startup resolves only once every installed service is up or failed. App
// wraps both with logging, telemetry, the management endpoint and signal
// handling for a long-running process.
package bootstrap
