package bus

import "time"

// Event kinds published by the daemon. Subscribers filter by prefix, so
// "poll." matches every poll engine event.
const (
	KindPollMessage   = "poll.message"
	KindPollError     = "poll.error"
	KindSendOK        = "send.ok"
	KindSendFailed    = "send.failed"
	KindStatusChanged = "daemon.status_changed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
