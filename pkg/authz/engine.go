package authz

import "time"

// Collection identifies one of the wedding subcollections. Subcollection
// items carry no ACL of their own; access derives entirely from the parent
// wedding's membership.
type Collection string

const (
	CollectionGuests      Collection = "guests"
	CollectionTasks       Collection = "tasks"
	CollectionSeatingPlan Collection = "seatingPlan"
	CollectionSuppliers   Collection = "suppliers"
)

// collectionCapabilities maps each subcollection to its read and write
// capabilities. The seating plan is guest data, and supplier items are
// provider data.
var collectionCapabilities = map[Collection][2]Capability{
	CollectionGuests:      {CapViewGuests, CapManageGuests},
	CollectionTasks:       {CapViewTasks, CapManageTasks},
	CollectionSeatingPlan: {CapViewGuests, CapManageGuests},
	CollectionSuppliers:   {CapViewProviders, CapManageProviders},
}

// IsCollection reports whether name is a known wedding subcollection.
func IsCollection(name string) bool {
	_, ok := collectionCapabilities[Collection(name)]
	return ok
}

// ReadCapability returns the capability gating reads of a subcollection.
func ReadCapability(c Collection) (Capability, bool) {
	caps, ok := collectionCapabilities[c]
	return caps[0], ok
}

// WriteCapability returns the capability gating writes of a subcollection.
func WriteCapability(c Collection) (Capability, bool) {
	caps, ok := collectionCapabilities[c]
	return caps[1], ok
}

// Authorize decides whether a principal may exercise a capability on the
// wedding described by the membership snapshot. It is pure and total: no
// membership means deny, an unrecognized role or capability means deny, and
// it never returns an error.
func Authorize(principalID string, m Membership, c Capability) bool {
	role := RoleOf(principalID, m)
	if role == "" {
		return false
	}
	return PermissionsForRole(role)[c]
}

// Decision describes the outcome of an authorization check, for the check
// endpoint and the audit trail.
type Decision struct {
	Allowed    bool       `json:"allowed"`
	Role       Role       `json:"role,omitempty"`
	Capability Capability `json:"capability"`
	Reason     string     `json:"reason"`
	CheckedAt  time.Time  `json:"checked_at"`
}

// Explain performs the same check as Authorize and reports which role
// matched and why the request was allowed or denied.
func Explain(principalID string, m Membership, c Capability) Decision {
	return ExplainRole(principalID, RoleOf(principalID, m), c)
}

// ExplainRole is Explain for callers that already resolved the principal's
// role, such as the permission snapshot cache.
func ExplainRole(principalID string, role Role, c Capability) Decision {
	d := Decision{Capability: c, CheckedAt: time.Now()}
	if principalID == "" {
		d.Reason = "unauthenticated"
		return d
	}
	if role == "" {
		d.Reason = "principal holds no role on this wedding"
		return d
	}
	d.Role = role
	if PermissionsForRole(role)[c] {
		d.Allowed = true
		d.Reason = "granted by role " + string(role)
	} else {
		d.Reason = "role " + string(role) + " does not carry " + string(c)
	}
	return d
}
