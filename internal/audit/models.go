package audit

import "time"

// Event is an immutable, append-only record of a token lifecycle step.
//
// Invariants:
// - Events are never updated or deleted.
// - Token values never appear here, not even hashed.
// - Recording is best-effort; a failed append never fails the flow it describes.
type Event struct {
	ID   string    `json:"id"`
	Type EventType `json:"type"`

	// UserID is the identity the event is about.
	UserID string `json:"user_id,omitempty"`
	// ActorUserID is set when someone else acted on UserID (role grants).
	ActorUserID string `json:"actor_user_id,omitempty"`

	// IPAddress is the resolved client IP, when the edge provided one.
	IPAddress string `json:"ip_address,omitempty"`

	Message string `json:"message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type EventType string

const (
	EventLogin       EventType = "login"
	EventLoginReused EventType = "login_reused"
	EventRefresh     EventType = "refresh"
	EventLogout      EventType = "logout"
	EventRegister    EventType = "register"
	EventRoleGranted EventType = "role_granted"
)
