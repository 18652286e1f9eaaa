package authz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateFirestoreRules(t *testing.T) {
	rules := GenerateFirestoreRules()

	require.True(t, strings.HasPrefix(rules, "rules_version = '2';"))
	assert.Contains(t, rules, "match /weddings/{weddingId}")

	// Wedding document rules derive from the policy table.
	assert.Contains(t, rules, "allow update: if roleOf(resource.data) in ['owner', 'planner'];")
	assert.Contains(t, rules, "allow delete: if roleOf(resource.data) in ['owner', 'planner'];")

	// Every subcollection is present with its own read/write clause.
	for _, collection := range []string{"guests", "tasks", "seatingPlan", "suppliers"} {
		assert.Contains(t, rules, "match /"+collection+"/{itemId}")
	}

	// Assistants read but never write subcollections.
	assert.Contains(t, rules, "in ['assistant', 'owner', 'planner'];")
	assert.NotContains(t, rules, "allow write: if roleOf(get(/databases/$(database)/documents/weddings/$(weddingId)).data) in ['assistant'")

	// Diagnostic carve-outs: open read, authenticated write.
	for _, name := range DiagnosticCollections() {
		assert.Contains(t, rules, "match /"+name+"/{docId}")
	}
	assert.Contains(t, rules, "allow read: if true;")
	assert.Contains(t, rules, "allow write: if signedIn();")
}

func TestRulesRoleList(t *testing.T) {
	assert.Equal(t, "['owner']", rulesRoleList(CapManageFinance))
	assert.Equal(t, "['owner', 'planner']", rulesRoleList(CapManageGuests))
	assert.Equal(t, "['assistant', 'owner', 'planner']", rulesRoleList(CapViewGuests))
	assert.Equal(t, "['planner']", rulesRoleList(CapCreateWedding))
	assert.Equal(t, "[]", rulesRoleList(Capability("launchRockets")))
}
