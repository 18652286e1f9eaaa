package authz

// Membership is the snapshot of a wedding's role membership lists, as read
// from a single document or row. The engine never fetches data itself; the
// caller is responsible for snapshot consistency.
type Membership struct {
	OwnerIDs     []string `json:"owner_ids"`
	PlannerIDs   []string `json:"planner_ids"`
	AssistantIDs []string `json:"assistant_ids"`
}

// RoleOf resolves the role a principal holds on the resource. Lists are
// checked in priority order owner > planner > assistant, so a principal
// present in several lists resolves to the most privileged role. Returns ""
// when the principal is in none of the lists or is empty.
func RoleOf(principalID string, m Membership) Role {
	if principalID == "" {
		return ""
	}
	if contains(m.OwnerIDs, principalID) {
		return RoleOwner
	}
	if contains(m.PlannerIDs, principalID) {
		return RolePlanner
	}
	if contains(m.AssistantIDs, principalID) {
		return RoleAssistant
	}
	return ""
}

// IsMember reports whether the principal holds any role on the resource.
func IsMember(principalID string, m Membership) bool {
	return RoleOf(principalID, m) != ""
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
