// Package queue defines the audit events exchanged over the message broker.
package queue

// AuthEventsQueue is the durable queue audit events travel on.
const AuthEventsQueue = "auth.events"

// Event types recorded in the audit trail.
const (
	EventLogin      = "user.login"
	EventLogout     = "user.logout"
	EventSuspended  = "user.suspended"
	EventReinstated = "user.reinstated"
)

// AuthEvent is one audit-trail entry. It carries enough context for
// downstream consumers to log or alert without querying the primary
// database.
type AuthEvent struct {
	Type   string `json:"type"`
	UserID uint64 `json:"user_id"`
	Email  string `json:"email"`
	IP     string `json:"ip"`
	At     string `json:"at"` // RFC3339 UTC
}
