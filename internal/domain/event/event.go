package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending      Status = "pending"
	StatusAcknowledged Status = "acknowledged"
	StatusDeleted      Status = "deleted"
)

// Event is the single persistent entity of the system. Payload is kept as
// raw JSON produced by the publisher and is never interpreted here.
type Event struct {
	ID             string          `json:"id"`
	TenantID       string          `json:"tenant_id"`
	Source         string          `json:"source,omitempty"`
	Type           string          `json:"type,omitempty"`
	Topic          string          `json:"topic,omitempty"`
	Payload        json.RawMessage `json:"payload"`
	Status         Status          `json:"status"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Draft is the caller-supplied part of an event, before the ingestion
// pipeline assigns identity and lifecycle fields.
type Draft struct {
	Source  string          `json:"source,omitempty"`
	Type    string          `json:"type,omitempty"`
	Topic   string          `json:"topic,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// NewID returns a time-ordered event identifier. UUIDv7 sorts by creation
// time, which keeps (created_at, id) tie-breaking stable.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the entropy source does; fall back to v4
		// rather than failing ingestion.
		id = uuid.New()
	}
	return fmt.Sprintf("evt_%s", id)
}
