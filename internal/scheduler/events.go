package scheduler

// Event represents a scheduler lifecycle event.
// Minimal and stable: name + slot name and optional fields via key/values.
type Event struct {
	Name   string
	Slot   string
	Fields map[string]any
}

// Event names emitted by the scheduler.
const (
	EventMaterialize = "materialize"
	EventPromote     = "promote"
	EventAcquire     = "acquire"
	EventEvict       = "evict"
	EventUnload      = "unload"
	EventExhausted   = "acquire_exhausted"
)

// EventPublisher receives events from the scheduler. Implementations should be
// lightweight and non-blocking; Publish is called with the scheduler lock held
// and must not call back into the scheduler.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
