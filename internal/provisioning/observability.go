package provisioning

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Observer defines the interface for structured observability during a
// pipeline run.
type Observer interface {
	// Event emits a structured event
	Event(event Event)

	// WithFields returns a new Observer with additional context fields
	WithFields(fields map[string]string) Observer
}

// Event represents a structured pipeline event.
type Event struct {
	Type      EventType         // Type of event
	Phase     string            // Phase name (e.g. "apply", "configure")
	Message   string            // Human-readable message
	Resource  string            // Logical resource name if applicable
	Timestamp time.Time         // When the event occurred
	Fields    map[string]string // Additional contextual fields
}

// EventType represents the type of pipeline event.
type EventType string

const (
	// EventPhaseStarted indicates a pipeline phase has started.
	EventPhaseStarted EventType = "phase.started"
	// EventPhaseCompleted indicates a pipeline phase completed successfully.
	EventPhaseCompleted EventType = "phase.completed"
	// EventPhaseFailed indicates a pipeline phase failed.
	EventPhaseFailed EventType = "phase.failed"

	// EventResourceApplying indicates a resource apply has been handed to the engine.
	EventResourceApplying EventType = "resource.applying"
	// EventResourceApplied indicates the engine confirmed the resource.
	EventResourceApplied EventType = "resource.applied"
	// EventResourceUnchanged indicates a re-apply found nothing to do.
	EventResourceUnchanged EventType = "resource.unchanged"
	// EventResourceAmbiguous indicates the engine could not say whether the apply landed.
	EventResourceAmbiguous EventType = "resource.ambiguous"
	// EventResourceImported indicates reconciliation found the resource and imported it.
	EventResourceImported EventType = "resource.imported"
	// EventResourceFailed indicates a resource apply failed for good.
	EventResourceFailed EventType = "resource.failed"
	// EventResourceDestroying indicates a resource teardown has started.
	EventResourceDestroying EventType = "resource.destroying"
	// EventResourceDestroyed indicates a resource is gone.
	EventResourceDestroyed EventType = "resource.destroyed"

	// EventRetryAttempt indicates a step failed and will be retried.
	EventRetryAttempt EventType = "retry.attempt"

	// EventBindingCreating indicates a role binding is being ensured.
	EventBindingCreating EventType = "binding.creating"
	// EventBindingExists indicates the role binding was already in place.
	EventBindingExists EventType = "binding.exists"
	// EventBindingEffective indicates the binding propagated and is visible.
	EventBindingEffective EventType = "binding.effective"

	// EventMountWired indicates a workload was pointed at its storage over
	// identity-based auth.
	EventMountWired EventType = "mount.wired"

	// EventHardeningStarted indicates permissive settings are being revoked.
	EventHardeningStarted EventType = "hardening.started"
	// EventHardeningApplied indicates a resource now runs its restrictive configuration.
	EventHardeningApplied EventType = "hardening.applied"
	// EventHardeningDeferred indicates hardening was left for an explicit operator step.
	EventHardeningDeferred EventType = "hardening.deferred"

	// EventVerificationPassed indicates every probe check passed.
	EventVerificationPassed EventType = "verification.passed"
	// EventVerificationFailed indicates at least one probe check failed.
	EventVerificationFailed EventType = "verification.failed"
)

// LogObserver implements Observer on a zerolog logger.
type LogObserver struct {
	logger        zerolog.Logger
	contextFields map[string]string
}

// NewLogObserver creates a logger-backed observer.
func NewLogObserver(logger zerolog.Logger) *LogObserver {
	return &LogObserver{
		logger:        logger,
		contextFields: make(map[string]string),
	}
}

// Event implements Observer interface.
func (o *LogObserver) Event(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	entry := o.logger.Info()
	switch event.Type {
	case EventPhaseFailed, EventResourceFailed, EventVerificationFailed:
		entry = o.logger.Error()
	case EventResourceAmbiguous, EventRetryAttempt, EventHardeningDeferred:
		entry = o.logger.Warn()
	}

	entry = entry.Str("event", string(event.Type))
	if event.Phase != "" {
		entry = entry.Str("phase", event.Phase)
	}
	if event.Resource != "" {
		entry = entry.Str("resource", event.Resource)
	}
	for k, v := range o.contextFields {
		if _, exists := event.Fields[k]; !exists {
			entry = entry.Str(k, v)
		}
	}
	for k, v := range event.Fields {
		entry = entry.Str(k, v)
	}
	entry.Msg(event.Message)
}

// WithFields implements Observer interface.
func (o *LogObserver) WithFields(fields map[string]string) Observer {
	newFields := make(map[string]string, len(o.contextFields)+len(fields))
	for k, v := range o.contextFields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}
	return &LogObserver{
		logger:        o.logger,
		contextFields: newFields,
	}
}

// Helper functions for common events

// LogPhaseStart logs a phase start event.
func LogPhaseStart(observer Observer, phase string) {
	observer.Event(Event{
		Type:    EventPhaseStarted,
		Phase:   phase,
		Message: "starting",
	})
}

// LogPhaseComplete logs a phase completion event.
func LogPhaseComplete(observer Observer, phase string, duration time.Duration) {
	observer.Event(Event{
		Type:    EventPhaseCompleted,
		Phase:   phase,
		Message: fmt.Sprintf("completed in %v", duration.Round(time.Millisecond)),
	})
}

// LogPhaseFailed logs a phase failure event.
func LogPhaseFailed(observer Observer, phase string, err error) {
	observer.Event(Event{
		Type:    EventPhaseFailed,
		Phase:   phase,
		Message: fmt.Sprintf("failed: %v", err),
	})
}
