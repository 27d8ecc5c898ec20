// Package persistence reads and writes the server configuration document.
//
// A Strategy is selected once from the server environment: without an
// environment the server runs embedded and uses a NullPersister; with one it
// uses a BackupXMLPersister on the environment's configuration file. The
// selected strategy's Factory is wrapped in a CachingFactory so the
// persister is built at most once.
package persistence
