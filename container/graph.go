package container

import "fmt"

// buildLevels groups a batch of services by dependency level using Kahn's
// algorithm. Dependencies on already-installed services are satisfied
// externally; dependencies that are neither installed nor in the batch are
// rejected, as are cycles inside the batch.
func buildLevels(batch map[string][]string, installed func(string) bool) ([][]string, error) {
	inDegree := make(map[string]int, len(batch))
	dependents := make(map[string][]string)

	for name := range batch {
		inDegree[name] = 0
	}

	for name, deps := range batch {
		for _, dep := range deps {
			if _, ok := batch[dep]; ok {
				inDegree[name]++
				dependents[dep] = append(dependents[dep], name)
				continue
			}
			if !installed(dep) {
				return nil, fmt.Errorf("service %q depends on unknown service %q", name, dep)
			}
		}
	}

	var queue []string
	for name, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, name)
		}
	}

	var levels [][]string
	visited := 0

	for len(queue) > 0 {
		levels = append(levels, queue)
		visited += len(queue)

		var next []string
		for _, name := range queue {
			for _, dep := range dependents[name] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		queue = next
	}

	if visited != len(batch) {
		return nil, fmt.Errorf("dependency cycle detected, resolved %d of %d services", visited, len(batch))
	}

	return levels, nil
}
