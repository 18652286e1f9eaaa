package audit

import "time"

// EventType represents the category of audit event
type EventType string

const (
	// Authorization events
	EventTypeAccessDenied    EventType = "authz.access_denied"
	EventTypePermissionCheck EventType = "authz.permission_check"

	// Membership events
	EventTypeMemberAdd        EventType = "membership.member_add"
	EventTypeMemberRemove     EventType = "membership.member_remove"
	EventTypeInvitationCreate EventType = "membership.invitation_create"
	EventTypeInvitationAccept EventType = "membership.invitation_accept"

	// Wedding lifecycle events
	EventTypeWeddingArchive EventType = "wedding.archive"

	// Token events
	EventTypeTokenCreate EventType = "auth.token_create"
	EventTypeTokenRevoke EventType = "auth.token_revoke"

	// Stored data carrying role strings the registry doesn't recognize
	EventTypeDataIntegrityWarning EventType = "data.integrity_warning"
)

// Event is a single audit log entry.
type Event struct {
	ID          int64          `json:"id,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	EventType   EventType      `json:"event_type"`
	PrincipalID string         `json:"principal_id,omitempty"`
	WeddingID   string         `json:"wedding_id,omitempty"`
	Capability  string         `json:"capability,omitempty"`
	Allowed     *bool          `json:"allowed,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	IPAddress   string         `json:"ip_address,omitempty"`
}
