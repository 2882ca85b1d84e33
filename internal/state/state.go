package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lockstepd/lockstep/internal/util/naming"
)

// Outcome values recorded per resource.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeUnknown   = "unknown"
)

// documentVersion is the on-disk format version this build reads and writes.
const documentVersion = 1

// Record tracks one provisioned resource.
type Record struct {
	ID      string            `json:"id,omitempty"`
	Kind    string            `json:"kind"`
	Outputs map[string]string `json:"outputs,omitempty"`

	// Outcome is the result of the most recent apply touching this
	// resource. Imported records count as succeeded.
	Outcome string `json:"outcome"`

	// Fresh marks records written during the latest run. Stale records
	// survive from earlier runs until destroyed.
	Fresh bool `json:"fresh"`

	// Imported marks records recovered by reconciliation rather than
	// reported by the engine.
	Imported bool `json:"imported,omitempty"`

	// Effective marks role bindings confirmed visible by the provider.
	Effective bool `json:"effective,omitempty"`

	// Hardened marks resources whose permissive bootstrap settings have
	// been revoked.
	Hardened bool `json:"hardened,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Document is the tracked state of one project/environment pair.
type Document struct {
	Version     int               `json:"version"`
	Serial      uint64            `json:"serial"`
	Project     string            `json:"project"`
	Environment string            `json:"environment"`
	RunID       string            `json:"run_id,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Resources   map[string]Record `json:"resources"`
}

func newDocument(project, environment string) *Document {
	return &Document{
		Version:     documentVersion,
		Project:     project,
		Environment: environment,
		Resources:   make(map[string]Record),
	}
}

// Snapshotter receives the encoded state document after each durable save.
// Implementations upload to S3-compatible object storage.
type Snapshotter interface {
	Upload(ctx context.Context, key string, data []byte) error
}

// Manager is the single writer of tracked state. Every mutation takes the
// manager's lock, so concurrent apply workers serialize their updates; no
// lock is held across disk or network I/O initiated elsewhere.
type Manager struct {
	mu   sync.Mutex
	path string
	doc  *Document

	snapshotter Snapshotter
	logger      zerolog.Logger
	now         func() time.Time
}

// NewManager creates a manager for the state file at path. The document is
// empty until Load is called.
func NewManager(path, project, environment string) *Manager {
	return &Manager{
		path:   path,
		doc:    newDocument(project, environment),
		logger: zerolog.Nop(),
		now:    time.Now,
	}
}

// SetSnapshotter enables object-storage snapshots after each save.
func (m *Manager) SetSnapshotter(s Snapshotter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshotter = s
}

// SetLogger routes snapshot warnings to the given logger.
func (m *Manager) SetLogger(logger zerolog.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = logger
}

// Load reads the state file from disk. A missing file leaves the fresh
// empty document in place; a present but unreadable or mismatched file is
// an error, never silently discarded.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := readDocument(m.path)
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	if doc.Version != documentVersion {
		return fmt.Errorf("state file %s has version %d, this build supports %d",
			m.path, doc.Version, documentVersion)
	}
	if doc.Project != m.doc.Project || doc.Environment != m.doc.Environment {
		return fmt.Errorf("state file %s tracks %s/%s, expected %s/%s",
			m.path, doc.Project, doc.Environment, m.doc.Project, m.doc.Environment)
	}
	if doc.Resources == nil {
		doc.Resources = make(map[string]Record)
	}
	m.doc = doc
	return nil
}

// Save bumps the serial and rewrites the state file atomically. When a
// snapshotter is configured the encoded document is also uploaded; snapshot
// failures are logged, not fatal, because the local save already succeeded.
// The upload happens outside the lock.
func (m *Manager) Save(ctx context.Context) error {
	m.mu.Lock()
	m.doc.Serial++
	m.doc.UpdatedAt = m.now().UTC()

	data, err := writeDocument(m.path, m.doc)
	if err != nil {
		m.doc.Serial--
		m.mu.Unlock()
		return err
	}
	snapshotter := m.snapshotter
	logger := m.logger
	key := naming.SnapshotKey(m.doc.Project, m.doc.Environment)
	m.mu.Unlock()

	if snapshotter != nil {
		if err := snapshotter.Upload(ctx, key, data); err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("state snapshot upload failed")
		}
	}
	return nil
}

// BeginRun stamps the document with a new run ID and clears freshness
// flags so records touched by this run are distinguishable afterwards.
func (m *Manager) BeginRun(runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.doc.RunID = runID
	for name, rec := range m.doc.Resources {
		rec.Fresh = false
		m.doc.Resources[name] = rec
	}
}

// RecordApply upserts a successfully applied resource.
func (m *Manager) RecordApply(name, kind, id string, outputs map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.upsert(name, kind)
	rec.ID = id
	if len(outputs) > 0 {
		rec.Outputs = copyOutputs(outputs)
	}
	rec.Outcome = OutcomeSucceeded
	rec.Fresh = true
	rec.Imported = false
	m.doc.Resources[name] = rec
}

// RecordImport upserts a resource recovered by reconciliation. Imported
// resources count as succeeded but stay marked for the status report.
func (m *Manager) RecordImport(name, kind, id string, outputs map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.upsert(name, kind)
	rec.ID = id
	if len(outputs) > 0 {
		rec.Outputs = copyOutputs(outputs)
	}
	rec.Outcome = OutcomeSucceeded
	rec.Fresh = true
	rec.Imported = true
	m.doc.Resources[name] = rec
}

// RecordFailure upserts a failed apply. Any identifier and outputs from an
// earlier successful apply are retained: the resource may well still exist.
func (m *Manager) RecordFailure(name, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.upsert(name, kind)
	rec.Outcome = OutcomeFailed
	rec.Fresh = false
	m.doc.Resources[name] = rec
}

// MarkEffective flags a role binding as confirmed visible.
func (m *Manager) MarkEffective(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, ok := m.doc.Resources[name]; ok {
		rec.Effective = true
		rec.UpdatedAt = m.now().UTC()
		m.doc.Resources[name] = rec
	}
}

// MarkHardened flags a resource whose permissive settings were revoked.
func (m *Manager) MarkHardened(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, ok := m.doc.Resources[name]; ok {
		rec.Hardened = true
		rec.UpdatedAt = m.now().UTC()
		m.doc.Resources[name] = rec
	}
}

// Remove prunes a destroyed resource from the document.
func (m *Manager) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.doc.Resources, name)
}

// Get returns the record for a logical resource name.
func (m *Manager) Get(name string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.doc.Resources[name]
	return rec, ok
}

// Output returns one declared output of a resource.
func (m *Manager) Output(name, key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.doc.Resources[name]
	if !ok {
		return "", false
	}
	value, ok := rec.Outputs[key]
	return value, ok
}

// Snapshot returns a deep copy of the document for rendering and reports.
func (m *Manager) Snapshot() Document {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := *m.doc
	out.Resources = make(map[string]Record, len(m.doc.Resources))
	for name, rec := range m.doc.Resources {
		rec.Outputs = copyOutputs(rec.Outputs)
		out.Resources[name] = rec
	}
	return out
}

func (m *Manager) upsert(name, kind string) Record {
	rec, ok := m.doc.Resources[name]
	if !ok {
		rec = Record{Kind: kind, CreatedAt: m.now().UTC()}
	}
	rec.Kind = kind
	rec.UpdatedAt = m.now().UTC()
	return rec
}

func copyOutputs(outputs map[string]string) map[string]string {
	if outputs == nil {
		return nil
	}
	out := make(map[string]string, len(outputs))
	for k, v := range outputs {
		out[k] = v
	}
	return out
}
