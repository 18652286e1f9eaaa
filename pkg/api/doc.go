// Package api exposes the veil HTTP API: wedding CRUD, membership and
// invitation management, the generic subcollection endpoints, the
// authorization check and rules endpoints, and the open diagnostic path.
//
// Authorization is enforced before handlers run. The capability middleware
// maps the engine's false to 403 and missing authentication to 401; handlers
// only see requests the policy table allows.
package api
