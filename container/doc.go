// Package container is the service container a server boots into.
//
// Services are installed in batches, validated as a dependency graph, and
// started asynchronously once their dependencies are up. Each service ends
// in a terminal state (up or failed); AwaitStability blocks until every
// installed service has reached one.
//
// Startup actions (Activator) install services into the container. They are
// run once, in the order the caller supplies them.
package container
