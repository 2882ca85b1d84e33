package plan

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSpecs() []ResourceSpec {
	return []ResourceSpec{
		{Name: "storage", Kind: KindStorage, Config: map[string]any{"permissive_auth": true}},
		{Name: "identity", Kind: KindIdentity},
		{Name: "binding", Kind: KindBinding, DependsOn: []string{"storage", "identity"},
			Config: map[string]any{"role": "storage-contributor", "principal_from": "identity", "scope_from": "storage"}},
		{Name: "workload", Kind: KindWorkload, DependsOn: []string{"binding"}},
	}
}

func TestBuild_OrdersByDependencies(t *testing.T) {
	p, err := Build(sampleSpecs())
	require.NoError(t, err)

	names := make([]string, 0, p.Len())
	for _, spec := range p.Resources() {
		names = append(names, spec.Name)
	}
	assert.Equal(t, []string{"storage", "identity", "binding", "workload"}, names)
}

func TestBuild_NoSpecBeforeItsDependencies(t *testing.T) {
	specs := []ResourceSpec{
		{Name: "workload", Kind: KindWorkload, DependsOn: []string{"binding"}},
		{Name: "binding", Kind: KindBinding, DependsOn: []string{"storage", "identity"}},
		{Name: "identity", Kind: KindIdentity},
		{Name: "storage", Kind: KindStorage},
	}

	p, err := Build(specs)
	require.NoError(t, err)

	position := make(map[string]int)
	for i, spec := range p.Resources() {
		position[spec.Name] = i
	}
	for _, spec := range p.Resources() {
		for _, dep := range spec.DependsOn {
			assert.Less(t, position[dep], position[spec.Name],
				"%s must come after its dependency %s", spec.Name, dep)
		}
	}
}

func TestBuild_Deterministic(t *testing.T) {
	specs := []ResourceSpec{
		{Name: "c", Kind: KindStorage},
		{Name: "a", Kind: KindStorage},
		{Name: "b", Kind: KindStorage},
	}

	first, err := Build(specs)
	require.NoError(t, err)

	for range 10 {
		again, err := Build(specs)
		require.NoError(t, err)
		assert.Equal(t, first.Resources(), again.Resources())
	}

	// Independent specs keep declaration order.
	names := make([]string, 0, 3)
	for _, spec := range first.Resources() {
		names = append(names, spec.Name)
	}
	assert.Equal(t, []string{"c", "a", "b"}, names)
}

func TestBuild_CycleNamed(t *testing.T) {
	specs := []ResourceSpec{
		{Name: "a", Kind: KindStorage, DependsOn: []string{"c"}},
		{Name: "b", Kind: KindStorage, DependsOn: []string{"a"}},
		{Name: "c", Kind: KindStorage, DependsOn: []string{"b"}},
	}

	_, err := Build(specs)
	require.Error(t, err)

	var cycleErr *CyclicDependencyError
	require.True(t, errors.As(err, &cycleErr), "expected CyclicDependencyError, got %v", err)
	assert.GreaterOrEqual(t, len(cycleErr.Cycle), 3)
	assert.Equal(t, cycleErr.Cycle[0], cycleErr.Cycle[len(cycleErr.Cycle)-1],
		"cycle should close on its starting resource")
	assert.Contains(t, err.Error(), "dependency cycle")
}

func TestBuild_SelfDependency(t *testing.T) {
	specs := []ResourceSpec{
		{Name: "a", Kind: KindStorage, DependsOn: []string{"a"}},
	}

	_, err := Build(specs)
	var cycleErr *CyclicDependencyError
	require.True(t, errors.As(err, &cycleErr))
	assert.Equal(t, []string{"a", "a"}, cycleErr.Cycle)
}

func TestBuild_UndeclaredDependency(t *testing.T) {
	specs := []ResourceSpec{
		{Name: "workload", Kind: KindWorkload, DependsOn: []string{"missing"}},
	}

	_, err := Build(specs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undeclared resource")
	assert.Contains(t, err.Error(), "missing")
}

func TestBuild_DuplicateName(t *testing.T) {
	specs := []ResourceSpec{
		{Name: "storage", Kind: KindStorage},
		{Name: "storage", Kind: KindStorage},
	}

	_, err := Build(specs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate resource name")
}

func TestBuild_MissingName(t *testing.T) {
	_, err := Build([]ResourceSpec{{Kind: KindStorage}})
	require.Error(t, err)
}

func TestLevels_GroupIndependentSpecs(t *testing.T) {
	p, err := Build(sampleSpecs())
	require.NoError(t, err)

	levels := p.Levels()
	require.Len(t, levels, 3)

	levelNames := func(level []ResourceSpec) []string {
		names := make([]string, len(level))
		for i, spec := range level {
			names[i] = spec.Name
		}
		return names
	}

	assert.Equal(t, []string{"storage", "identity"}, levelNames(levels[0]))
	assert.Equal(t, []string{"binding"}, levelNames(levels[1]))
	assert.Equal(t, []string{"workload"}, levelNames(levels[2]))
}

func TestReverse_DestructionOrder(t *testing.T) {
	p, err := Build(sampleSpecs())
	require.NoError(t, err)

	names := make([]string, 0, p.Len())
	for _, spec := range p.Reverse() {
		names = append(names, spec.Name)
	}
	assert.Equal(t, []string{"workload", "binding", "identity", "storage"}, names)
}

func TestGetAndByKind(t *testing.T) {
	p, err := Build(sampleSpecs())
	require.NoError(t, err)

	spec, ok := p.Get("binding")
	require.True(t, ok)
	assert.Equal(t, KindBinding, spec.Kind)

	_, ok = p.Get("nope")
	assert.False(t, ok)

	storages := p.ByKind(KindStorage)
	require.Len(t, storages, 1)
	assert.Equal(t, "storage", storages[0].Name)
}
