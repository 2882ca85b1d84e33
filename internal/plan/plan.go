package plan

// DeploymentPlan is a topologically ordered sequence of resource specs.
// The ordering invariant: no spec appears before any of its dependencies.
type DeploymentPlan struct {
	ordered []ResourceSpec
	levels  [][]string
	index   map[string]int
}

// Resources returns the specs in creation order.
func (p *DeploymentPlan) Resources() []ResourceSpec {
	return p.ordered
}

// Reverse returns the specs in destruction order.
func (p *DeploymentPlan) Reverse() []ResourceSpec {
	reversed := make([]ResourceSpec, len(p.ordered))
	for i, spec := range p.ordered {
		reversed[len(p.ordered)-1-i] = spec
	}
	return reversed
}

// Levels groups the plan into batches of mutually independent specs, in
// creation order. Every spec in level N depends only on specs in earlier
// levels, so one level may be provisioned concurrently.
func (p *DeploymentPlan) Levels() [][]ResourceSpec {
	levels := make([][]ResourceSpec, len(p.levels))
	for i, names := range p.levels {
		batch := make([]ResourceSpec, len(names))
		for j, name := range names {
			batch[j] = p.ordered[p.position(name)]
		}
		levels[i] = batch
	}
	return levels
}

// Get returns the spec with the given logical name.
func (p *DeploymentPlan) Get(name string) (ResourceSpec, bool) {
	for _, spec := range p.ordered {
		if spec.Name == name {
			return spec, true
		}
	}
	return ResourceSpec{}, false
}

// ByKind returns the specs of one kind in plan order.
func (p *DeploymentPlan) ByKind(kind string) []ResourceSpec {
	var specs []ResourceSpec
	for _, spec := range p.ordered {
		if spec.Kind == kind {
			specs = append(specs, spec)
		}
	}
	return specs
}

// Len returns the number of planned resources.
func (p *DeploymentPlan) Len() int {
	return len(p.ordered)
}

func (p *DeploymentPlan) position(name string) int {
	for i, spec := range p.ordered {
		if spec.Name == name {
			return i
		}
	}
	return -1
}
