package outbox

import (
	"encoding/json"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusDead      Status = "dead"
)

// Message mirrors one row of the outbox table.
type Message struct {
	ID          string
	Topic       string
	Payload     json.RawMessage
	Status      Status
	Attempts    int
	LastError   *string
	LastAttempt *time.Time
	CreatedAt   time.Time
}
