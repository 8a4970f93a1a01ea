package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/session-gate/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSignedIn       EventType = "signed_in"
	EventSignedOut      EventType = "signed_out"
	EventSessionRenewed EventType = "session_renewed"
	EventRenewalRefused EventType = "renewal_refused"
	EventRoleChanged    EventType = "role_changed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	SubjectID string      `json:"subject_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// New builds an event stamped with a fresh id.
func New(eventType EventType, subjectID string, at time.Time, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		SubjectID: subjectID,
		Timestamp: at,
		Payload:   payload,
	}
}

// SignedInPayload payload.
type SignedInPayload struct {
	Provider string      `json:"provider"`
	Role     domain.Role `json:"role"`
}

// RenewalRefusedPayload payload.
type RenewalRefusedPayload struct {
	Reason string `json:"reason"`
}

// RoleChangedPayload payload.
type RoleChangedPayload struct {
	OldRole domain.Role `json:"old_role"`
	NewRole domain.Role `json:"new_role"`
}
