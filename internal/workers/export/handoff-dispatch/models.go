// internal/workers/export/handoff-dispatch/models.go
package handoffdispatch

// State is a step of a delivery.
type State int

const (
	StateIdle State = iota
	StateSerializing
	StateSaving
	StateNotifying
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSerializing:
		return "serializing"
	case StateSaving:
		return "saving"
	case StateNotifying:
		return "notifying"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

type NotificationStatus string

const (
	// NotificationDispatched means the opener accepted the URI. Receipt by the
	// gallery tool is never confirmed.
	NotificationDispatched  NotificationStatus = "dispatched"
	NotificationUnconfirmed NotificationStatus = "unconfirmed"
)

// Notification is the advisory outcome of the second phase.
type Notification struct {
	Status  NotificationStatus `json:"status"`
	URI     string             `json:"uri"`
	Message string             `json:"message"`
	Err     error              `json:"-"`
}

// Receipt describes a completed delivery. Path is authoritative; the
// notification is best effort.
type Receipt struct {
	Path         string       `json:"path"`
	Size         int64        `json:"size"`
	Notification Notification `json:"notification"`
}
