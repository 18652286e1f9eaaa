// Package weddings is the wedding resource layer: tenant records, their
// membership lists, invitations, and subcollection items.
//
// # Overview
//
// A Wedding carries three membership lists (owners, planners, assistants)
// stored as JSON arrays. The lists are the single authorization input: a
// principal's role is wherever it appears, owner winning over planner over
// assistant (see pkg/authz).
//
// Mutations that change authorization state are guarded here at the service
// boundary:
//
//   - AddMember / RemoveMember require manageAssistants
//   - CreateInvitation requires inviteCollaborators
//   - UpdateWedding requires manageSettings
//   - ArchiveWedding requires archiveWedding
//
// Reads are gated by the HTTP layer (pkg/middleware).
//
// # Invitations
//
// An invitation is a single-use code granting a role on redemption. Role
// strings are normalized when rows are written and again when read, so
// legacy aliases in old data ("pareja", "wedding-planner") still resolve.
//
// # Permission cache
//
// PermissionCache keeps per-(wedding, principal) permission snapshots in a
// process-local expirable LRU with an optional Redis layer. Snapshots are
// healed against the canonical capability matrix on every read and dropped
// whenever membership changes. The cache never serves membership mutations.
//
// # Related Packages
//
//   - pkg/authz: role resolution and the capability matrix
//   - pkg/api: HTTP handlers over this service
package weddings
