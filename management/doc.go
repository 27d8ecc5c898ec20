// Package management exposes a running server over HTTP.
//
// The management Service is itself a container service: it is installed by
// a startup action, comes up with the rest of the server and is stopped in
// reverse order at shutdown. Endpoints:
//
//	GET  /health    200 when every service is up, 503 otherwise
//	GET  /services  service name to lifecycle state
//	GET  /version   build information
//	POST /snapshot  copy the persisted configuration aside
package management
