package handlers

import (
	"context"
	"fmt"
)

// sampleConfig is the starter configuration written by init. It declares
// the canonical four-resource deployment: storage with permissive bootstrap
// auth, an identity, the role binding connecting them, and a workload that
// mounts the storage through the binding.
const sampleConfig = `# lockstep deployment configuration
project: acme
environment: dev

# Independent resources within one wave are applied this many at a time.
parallelism: 2

engine:
  # Declarative apply engine invoked per resource (reads a resource file,
  # prints an apply report as JSON).
  command: declare-engine
provider:
  # Cloud control-plane CLI used for queries and imperative fix-ups.
  command: cloudctl

hardening:
  # auto: revoke permissive settings during apply, once role-binding
  # propagation is confirmed. manual: leave them until 'lockstep harden'.
  mode: auto

state:
  path: lockstep.state.json
  # Uncomment to snapshot state to S3-compatible object storage after each
  # save. Credentials come from LOCKSTEP_SNAPSHOT_ACCESS_KEY and
  # LOCKSTEP_SNAPSHOT_SECRET_KEY.
  # snapshot:
  #   bucket: acme-lockstep-state
  #   endpoint: https://objects.internal:9000
  #   region: us-east-1

telemetry:
  level: info
  format: auto
  # metrics_file: /var/lib/node_exporter/textfile/lockstep.prom

retry:
  max_attempts: 5
  base_delay: 1s
  max_delay: 30s
  multiplier: 2.0

resources:
  - name: storage
    kind: storage
    config:
      tier: standard
      permissive_auth: true

  - name: identity
    kind: identity

  - name: binding
    kind: role-binding
    depends_on: [storage, identity]
    config:
      role: object-writer
      principal_from: identity
      scope_from: storage

  - name: workload
    kind: workload
    depends_on: [binding, storage]
    config:
      mount_from: storage
      endpoint_output: endpoint
`

// Init writes a starter configuration file.
func Init(_ context.Context, outputPath string, force bool) error {
	if fileExists(outputPath) && !force {
		return fmt.Errorf("%s already exists, pass --force to overwrite", outputPath)
	}

	if err := writeFile(outputPath, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	printInitSuccess(outputPath)
	return nil
}

// printInitSuccess prints the success message with next steps.
func printInitSuccess(outputPath string) {
	fmt.Println()
	fmt.Println("Configuration saved!")
	fmt.Println()
	fmt.Printf("  File: %s\n", outputPath)
	fmt.Println()
	fmt.Println("Next Steps")
	fmt.Println("----------")
	fmt.Printf("  1. Edit %s: set your engine and provider commands\n", outputPath)
	fmt.Println("     and declare the resources of your deployment.")
	fmt.Println()
	fmt.Println("  2. Check the execution order:")
	fmt.Println("     lockstep plan")
	fmt.Println()
	fmt.Println("  3. Converge:")
	fmt.Println("     lockstep apply")
	fmt.Println()
}
