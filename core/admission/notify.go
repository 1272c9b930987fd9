package admission

type EventKind string

const (
	EventVerified  EventKind = "verified"
	EventRejected  EventKind = "rejected"
	EventBroadcast EventKind = "broadcast"
)

// Event is a best-effort notification about an application.
type Event struct {
	Kind        EventKind
	Application Application
	Link        string // roll slip download link (verified)
	Subject     string // broadcast only
	Body        string // broadcast only, placeholders already rendered
	Slip        *Artifact
}

// Notifier delivers events without blocking the caller.
// Notify returns false when the event could not even be queued.
type Notifier interface {
	Notify(ev Event) bool
}
