// Package state owns the durable record of what a deployment has actually
// provisioned. The on-disk document is versioned, human-diffable JSON,
// rewritten atomically and durably on every save, and optionally encrypted
// at rest. All mutation goes through [Manager], which serializes writers.
package state
