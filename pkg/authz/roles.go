package authz

import "strings"

// Role represents a canonical membership role on a wedding.
type Role string

const (
	RoleOwner     Role = "owner"
	RolePlanner   Role = "planner"
	RoleAssistant Role = "assistant"
)

// roleAliases maps legacy and localized role spellings to canonical roles.
// The aliases come from data written by older clients; normalization happens
// at the system boundary so stored documents never need rewriting.
var roleAliases = map[string]Role{
	"owner":           RoleOwner,
	"pareja":          RoleOwner,
	"propietario":     RoleOwner,
	"novia":           RoleOwner,
	"novio":           RoleOwner,
	"partner":         RoleOwner,
	"planner":         RolePlanner,
	"wedding-planner": RolePlanner,
	"weddingplanner":  RolePlanner,
	"wedding_planner": RolePlanner,
	"organizador":     RolePlanner,
	"assistant":       RoleAssistant,
	"asistente":       RoleAssistant,
	"ayudante":        RoleAssistant,
	"helper":          RoleAssistant,
}

// NormalizeRole maps a raw role string to a canonical role. The input is
// trimmed and lower-cased before lookup. Unrecognized non-empty strings are
// returned verbatim so callers can detect upstream data corruption; empty
// input yields the fallback. It never fails.
//
// Callers that require a canonical role must additionally check IsCanonical.
func NormalizeRole(raw string, fallback Role) Role {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return fallback
	}
	if canonical, ok := roleAliases[normalized]; ok {
		return canonical
	}
	return Role(normalized)
}

// IsCanonical reports whether r is one of the three canonical roles.
func IsCanonical(r Role) bool {
	switch r {
	case RoleOwner, RolePlanner, RoleAssistant:
		return true
	}
	return false
}
