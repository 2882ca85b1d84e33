package plan

import (
	"fmt"
	"strings"
)

// CyclicDependencyError reports a dependency cycle by the names along it,
// in traversal order with the starting resource repeated at the end.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Cycle, " -> "))
}

// Build orders the given specs into a DeploymentPlan using Kahn's algorithm.
// Ties are broken by declaration order, so the same input always yields the
// same plan. Duplicate names and dependencies on undeclared resources are
// rejected before sorting.
func Build(specs []ResourceSpec) (*DeploymentPlan, error) {
	index := make(map[string]int, len(specs))
	for i, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("resource at position %d has no name", i)
		}
		if _, exists := index[spec.Name]; exists {
			return nil, fmt.Errorf("duplicate resource name %q", spec.Name)
		}
		index[spec.Name] = i
	}

	dependents := make(map[string][]string, len(specs))
	inDegree := make(map[string]int, len(specs))
	for _, spec := range specs {
		inDegree[spec.Name] = len(spec.DependsOn)
		for _, dep := range spec.DependsOn {
			if _, ok := index[dep]; !ok {
				return nil, fmt.Errorf("resource %q depends on undeclared resource %q", spec.Name, dep)
			}
			if dep == spec.Name {
				return nil, &CyclicDependencyError{Cycle: []string{spec.Name, spec.Name}}
			}
			dependents[dep] = append(dependents[dep], spec.Name)
		}
	}

	// Kahn with a declaration-ordered ready queue. Each level groups the
	// specs that became ready together; levels drive bounded parallelism.
	remaining := make(map[string]int, len(inDegree))
	for name, deg := range inDegree {
		remaining[name] = deg
	}

	var ordered []ResourceSpec
	var levels [][]string

	ready := readyByDeclaration(specs, remaining)
	for len(ready) > 0 {
		levels = append(levels, ready)

		for _, name := range ready {
			ordered = append(ordered, specs[index[name]])
			for _, dependent := range dependents[name] {
				remaining[dependent]--
			}
		}
		for _, name := range ready {
			delete(remaining, name)
		}

		ready = readyByDeclaration(specs, remaining)
	}

	if len(ordered) != len(specs) {
		cycle := findCycle(specs, index, remaining)
		return nil, &CyclicDependencyError{Cycle: cycle}
	}

	return &DeploymentPlan{ordered: ordered, levels: levels, index: index}, nil
}

// readyByDeclaration returns the names with zero remaining in-degree, in
// declaration order.
func readyByDeclaration(specs []ResourceSpec, remaining map[string]int) []string {
	var ready []string
	for _, spec := range specs {
		if deg, ok := remaining[spec.Name]; ok && deg == 0 {
			ready = append(ready, spec.Name)
		}
	}
	return ready
}

// findCycle runs a depth-first search over the unplaced nodes and returns
// the names along the first cycle found, closing the loop by repeating the
// starting name.
func findCycle(specs []ResourceSpec, index map[string]int, remaining map[string]int) []string {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)

	state := make(map[string]int, len(remaining))
	var path []string
	var cycle []string

	var visit func(name string) bool
	visit = func(name string) bool {
		state[name] = inStack
		path = append(path, name)

		for _, dep := range specs[index[name]].DependsOn {
			if _, stuck := remaining[dep]; !stuck {
				continue
			}
			switch state[dep] {
			case unvisited:
				if visit(dep) {
					return true
				}
			case inStack:
				start := 0
				for i, n := range path {
					if n == dep {
						start = i
						break
					}
				}
				cycle = append(append([]string{}, path[start:]...), dep)
				return true
			}
		}

		state[name] = done
		path = path[:len(path)-1]
		return false
	}

	for _, spec := range specs {
		if _, stuck := remaining[spec.Name]; !stuck {
			continue
		}
		if state[spec.Name] == unvisited && visit(spec.Name) {
			return cycle
		}
	}
	return cycle
}
