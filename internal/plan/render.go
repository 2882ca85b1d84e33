package plan

import (
	"fmt"

	"sigs.k8s.io/yaml"
)

// EngineResource is the document handed to the declarative engine for one
// resource apply. Name carries the deterministic provider-facing name,
// Target the logical plan name it was derived from; Inputs carry values
// resolved from dependency outputs at apply time.
type EngineResource struct {
	Name   string            `json:"name"`
	Kind   string            `json:"kind"`
	Target string            `json:"target"`
	Config map[string]any    `json:"config,omitempty"`
	Inputs map[string]string `json:"inputs,omitempty"`
}

// RenderEngineFile marshals the document to YAML for the engine CLI. The
// struct's JSON tags drive field names so the file matches the JSON report
// the engine returns.
func RenderEngineFile(doc EngineResource) ([]byte, error) {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to render engine file for %s: %w", doc.Name, err)
	}
	return data, nil
}
