// Package events defines the single outbound capability the core uses to
// tell a host application what just happened, without owning how that host
// displays, logs, or forwards it anywhere.
package events

// Name identifies the category of an emitted event.
type Name string

const (
	Verification Name = "verification"
	Error        Name = "error"
	Sync         Name = "sync"
	CacheUpdate  Name = "cache_update"
)

// Sink is the narrow capability pkg/cache and pkg/verifier emit through.
// A host wires this to whatever telemetry or UI layer it has; the core
// never assumes a transport.
type Sink interface {
	Emit(name Name, payload map[string]interface{})
}

// NopSink discards everything. Used as the default when a caller doesn't
// wire a real sink, and in tests that don't care about emitted events.
type NopSink struct{}

func (NopSink) Emit(Name, map[string]interface{}) {}

// RecordingSink keeps every emitted event in order, for test assertions.
type RecordingSink struct {
	Events []Event
}

// Event is one call captured by RecordingSink.
type Event struct {
	Name    Name
	Payload map[string]interface{}
}

func (s *RecordingSink) Emit(name Name, payload map[string]interface{}) {
	s.Events = append(s.Events, Event{Name: name, Payload: payload})
}
