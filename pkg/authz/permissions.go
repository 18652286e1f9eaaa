package authz

// Capability is a named boolean flag granting one action on the wedding tree.
type Capability string

const (
	CapViewGuests           Capability = "viewGuests"
	CapManageGuests         Capability = "manageGuests"
	CapViewTasks            Capability = "viewTasks"
	CapManageTasks          Capability = "manageTasks"
	CapViewFinance          Capability = "viewFinance"
	CapManageFinance        Capability = "manageFinance"
	CapViewProviders        Capability = "viewProviders"
	CapManageProviders      Capability = "manageProviders"
	CapViewCommunications   Capability = "viewCommunications"
	CapManageCommunications Capability = "manageCommunications"
	CapViewSettings         Capability = "viewSettings"
	CapManageSettings       Capability = "manageSettings"
	CapViewAnalytics        Capability = "viewAnalytics"
	CapManageAssistants     Capability = "manageAssistants"
	CapInviteCollaborators  Capability = "inviteCollaborators"
	CapArchiveWedding       Capability = "archiveWedding"
	CapCreateWedding        Capability = "createWedding"
)

// PermissionSet maps each capability to whether it is granted. A well-formed
// set always contains all capabilities; use MergePermissions to heal sets
// read from storage.
type PermissionSet map[Capability]bool

// Capabilities returns every capability name, in a stable order.
func Capabilities() []Capability {
	return []Capability{
		CapViewGuests, CapManageGuests,
		CapViewTasks, CapManageTasks,
		CapViewFinance, CapManageFinance,
		CapViewProviders, CapManageProviders,
		CapViewCommunications, CapManageCommunications,
		CapViewSettings, CapManageSettings,
		CapViewAnalytics,
		CapManageAssistants, CapInviteCollaborators,
		CapArchiveWedding, CapCreateWedding,
	}
}

// rolePermissions is the fixed policy table. Owners hold everything except
// createWedding, which only planners carry (planners create weddings on
// behalf of clients); assistants are read-only and cannot see settings or
// analytics.
var rolePermissions = map[Role]map[Capability]bool{
	RoleOwner: {
		CapViewGuests: true, CapManageGuests: true,
		CapViewTasks: true, CapManageTasks: true,
		CapViewFinance: true, CapManageFinance: true,
		CapViewProviders: true, CapManageProviders: true,
		CapViewCommunications: true, CapManageCommunications: true,
		CapViewSettings: true, CapManageSettings: true,
		CapViewAnalytics:    true,
		CapManageAssistants: true, CapInviteCollaborators: true,
		CapArchiveWedding: true,
	},
	RolePlanner: {
		CapViewGuests: true, CapManageGuests: true,
		CapViewTasks: true, CapManageTasks: true,
		CapViewFinance:   true,
		CapViewProviders: true, CapManageProviders: true,
		CapViewCommunications: true, CapManageCommunications: true,
		CapViewSettings: true, CapManageSettings: true,
		CapViewAnalytics:  true,
		CapArchiveWedding: true,
		CapCreateWedding:  true,
	},
	RoleAssistant: {
		CapViewGuests:         true,
		CapViewTasks:          true,
		CapViewFinance:        true,
		CapViewProviders:      true,
		CapViewCommunications: true,
	},
}

// emptyPermissions returns a fresh all-false set covering every capability.
func emptyPermissions() PermissionSet {
	set := make(PermissionSet, len(Capabilities()))
	for _, c := range Capabilities() {
		set[c] = false
	}
	return set
}

// PermissionsForRole returns the complete capability set for a role. The
// input is re-normalized, so raw stored strings are accepted. An
// unrecognized role yields the all-false set, which denies everything.
func PermissionsForRole(role Role) PermissionSet {
	canonical := NormalizeRole(string(role), role)
	set := emptyPermissions()
	for c, granted := range rolePermissions[canonical] {
		set[c] = granted
	}
	return set
}

// MergePermissions layers overrides on top of current, starting from the
// all-false template. The result always carries every capability, healing
// partial permission objects persisted by older clients.
func MergePermissions(current, overrides PermissionSet) PermissionSet {
	set := emptyPermissions()
	for c, granted := range current {
		if _, known := set[c]; known {
			set[c] = granted
		}
	}
	for c, granted := range overrides {
		if _, known := set[c]; known {
			set[c] = granted
		}
	}
	return set
}
