package authz

import (
	"fmt"
	"sort"
	"strings"
)

// GenerateFirestoreRules compiles the policy table into a Firestore security
// rules document. The generated rules and the Go engine share the same
// source of truth (rolePermissions), so the deployed declarative form cannot
// drift from the in-process decision function.
func GenerateFirestoreRules() string {
	var b strings.Builder

	b.WriteString("rules_version = '2';\n")
	b.WriteString("// Generated by veil-rules. Do not edit by hand.\n")
	b.WriteString("service cloud.firestore {\n")
	b.WriteString("  match /databases/{database}/documents {\n\n")

	b.WriteString("    function signedIn() {\n")
	b.WriteString("      return request.auth != null;\n")
	b.WriteString("    }\n\n")

	b.WriteString("    function roleOf(wedding) {\n")
	b.WriteString("      return !signedIn() ? null\n")
	b.WriteString("        : request.auth.uid in wedding.ownerIds ? 'owner'\n")
	b.WriteString("        : request.auth.uid in wedding.plannerIds ? 'planner'\n")
	b.WriteString("        : request.auth.uid in wedding.assistantIds ? 'assistant'\n")
	b.WriteString("        : null;\n")
	b.WriteString("    }\n\n")

	b.WriteString("    match /weddings/{weddingId} {\n")
	b.WriteString("      allow read: if roleOf(resource.data) != null;\n")
	b.WriteString("      allow create: if signedIn() && request.auth.uid in request.resource.data.ownerIds;\n")
	fmt.Fprintf(&b, "      allow update: if roleOf(resource.data) in %s;\n", rulesRoleList(CapManageSettings))
	fmt.Fprintf(&b, "      allow delete: if roleOf(resource.data) in %s;\n\n", rulesRoleList(CapArchiveWedding))

	for _, collection := range []Collection{CollectionGuests, CollectionTasks, CollectionSeatingPlan, CollectionSuppliers} {
		read, _ := ReadCapability(collection)
		write, _ := WriteCapability(collection)
		fmt.Fprintf(&b, "      match /%s/{itemId} {\n", collection)
		fmt.Fprintf(&b, "        allow read: if roleOf(get(/databases/$(database)/documents/weddings/$(weddingId)).data) in %s;\n", rulesRoleList(read))
		fmt.Fprintf(&b, "        allow write: if roleOf(get(/databases/$(database)/documents/weddings/$(weddingId)).data) in %s;\n", rulesRoleList(write))
		b.WriteString("      }\n")
	}
	b.WriteString("    }\n\n")

	for _, name := range DiagnosticCollections() {
		fmt.Fprintf(&b, "    match /%s/{docId} {\n", name)
		b.WriteString("      allow read: if true;\n")
		b.WriteString("      allow write: if signedIn();\n")
		b.WriteString("    }\n")
	}

	b.WriteString("  }\n")
	b.WriteString("}\n")
	return b.String()
}

// rulesRoleList renders the list of roles carrying a capability as a rules
// literal, e.g. ['owner', 'planner'].
func rulesRoleList(c Capability) string {
	var roles []string
	for role, caps := range rolePermissions {
		if caps[c] {
			roles = append(roles, string(role))
		}
	}
	sort.Strings(roles)
	quoted := make([]string, len(roles))
	for i, role := range roles {
		quoted[i] = "'" + role + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
