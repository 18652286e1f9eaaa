// Package authz is the authorization engine for the Lovenda wedding tree.
//
// # Overview
//
// Every wedding document carries three membership lists (ownerIds,
// plannerIds, assistantIds). The engine decides, per request, whether a
// principal may exercise a capability on a wedding, by combining the
// membership snapshot with a fixed role/capability table.
//
// The package has four layers, each consumed by the next:
//
//  1. Role registry: NormalizeRole maps raw stored role strings (including
//     legacy aliases such as "pareja" or "wedding-planner") to the three
//     canonical roles.
//  2. Permission matrix: PermissionsForRole yields the complete capability
//     set for a role; MergePermissions heals partial sets read from storage.
//  3. Membership resolver: RoleOf resolves a principal against a wedding's
//     membership lists, most privileged role first (owner > planner >
//     assistant).
//  4. Decision engine: Authorize intersects membership with the matrix.
//
// # Usage
//
//	wedding, err := svc.GetWedding(ctx, id)
//	if err != nil { ... }
//	if !authz.Authorize(principalID, wedding.Membership(), authz.CapManageGuests) {
//		// caller maps deny to 403
//	}
//
// Authorize is pure, synchronous and total: it performs no I/O, never
// blocks, and never returns an error. All failure conditions (no principal,
// no membership, unknown role, unknown capability) surface as a deny. It is
// safe for concurrent use; the policy table is immutable after process
// start.
//
// # Subcollections
//
// Guest, task, seating-plan and supplier items have no ACL of their own.
// ReadCapability and WriteCapability select the view*/manage* capability for
// a subcollection, and the same Authorize call is made against the parent
// wedding.
//
// # Diagnostic collections
//
// Two connectivity-test collections (_conexion_prueba, _test_connection)
// bypass the engine: reads are open to unauthenticated callers, writes
// require any signed-in principal. See AuthorizeDiagnostic.
//
// # Declarative rules
//
// GenerateFirestoreRules compiles the same policy table into a Firestore
// security rules document, so installations that keep Firestore as the
// client-facing store deploy rules that cannot drift from this engine.
//
// # Related Packages
//
//   - pkg/weddings: wedding resource storage and membership mutation
//   - pkg/middleware: HTTP capability enforcement (401/403 mapping)
package authz
