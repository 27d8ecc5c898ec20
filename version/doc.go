// Package version reports which build of the server is running.
//
// Product, version, commit and build time are set at compile time:
//
//	go build -ldflags "-X github.com/kbukum/serverkit/version.Version=1.0.0"
package version
