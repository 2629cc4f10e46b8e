package queue

// Event represents a worker lifecycle event.
// Minimal and stable: name + destination and optional fields via key/values.
type Event struct {
	Name        string
	Destination string
	Fields      map[string]any
}

// Event names published by the Manager.
const (
	EventSpawnStart  = "spawn_start"
	EventSpawnFailed = "spawn_failed"
	EventReady       = "worker_ready"
	EventQueueEmpty  = "queue_empty"
	EventExit        = "worker_exit"
	EventStop        = "worker_stop"
	EventDrop        = "dispatch_drop"
)

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
