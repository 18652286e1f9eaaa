package weddings

import (
	"errors"
	"time"

	"github.com/lovenda/veil/pkg/authz"
)

var (
	// ErrWeddingNotFound is returned when a wedding ID resolves to nothing.
	ErrWeddingNotFound = errors.New("wedding not found")
	// ErrInvitationNotFound is returned for unknown or consumed codes.
	ErrInvitationNotFound = errors.New("invitation not found")
	// ErrInvitationExpired is returned when a code is past its expiry.
	ErrInvitationExpired = errors.New("invitation expired")
	// ErrItemNotFound is returned when a subcollection item is missing.
	ErrItemNotFound = errors.New("item not found")
	// ErrPermissionDenied is returned when a guarded mutation fails the
	// capability check for the acting principal.
	ErrPermissionDenied = errors.New("permission denied")
)

// Wedding is the tenant resource. Membership lists hold principal IDs;
// a principal's effective role is the highest list it appears in.
type Wedding struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	WeddingDate  *time.Time     `json:"wedding_date,omitempty"`
	Location     string         `json:"location,omitempty"`
	Settings     map[string]any `json:"settings,omitempty"`
	OwnerIDs     []string       `json:"owner_ids"`
	PlannerIDs   []string       `json:"planner_ids"`
	AssistantIDs []string       `json:"assistant_ids"`
	Archived     bool           `json:"archived"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Membership returns the authorization snapshot for this wedding.
func (w *Wedding) Membership() authz.Membership {
	return authz.Membership{
		OwnerIDs:     w.OwnerIDs,
		PlannerIDs:   w.PlannerIDs,
		AssistantIDs: w.AssistantIDs,
	}
}

// Invitation grants a role on a wedding to whoever redeems the code.
// Roles are normalized when the invitation is created, so legacy aliases
// ("pareja", "wedding-planner") never reach the membership lists.
type Invitation struct {
	ID         int64      `json:"id"`
	Code       string     `json:"code"`
	WeddingID  string     `json:"wedding_id"`
	Role       authz.Role `json:"role"`
	InvitedBy  string     `json:"invited_by"`
	ExpiresAt  time.Time  `json:"expires_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	AcceptedBy string     `json:"accepted_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Item is one document in a wedding subcollection (guests, tasks,
// seatingPlan, suppliers). The payload is schemaless; capability gating is
// what this layer exists for.
type Item struct {
	ID         string         `json:"id"`
	WeddingID  string         `json:"wedding_id"`
	Collection string         `json:"collection"`
	Data       map[string]any `json:"data"`
	CreatedBy  string         `json:"created_by"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
