package authz

// Operation is the kind of access requested on a diagnostic collection.
type Operation string

const (
	OperationRead  Operation = "read"
	OperationWrite Operation = "write"
)

// diagnosticCollections are globally readable collections used by clients to
// verify connectivity before signing in. Writes only require an
// authenticated principal, with no role check. This is intentionally looser
// than the wedding tree; the collections never hold user data.
var diagnosticCollections = map[string]bool{
	"_conexion_prueba": true,
	"_test_connection": true,
}

// DiagnosticCollections returns the names of the open diagnostic
// collections.
func DiagnosticCollections() []string {
	return []string{"_conexion_prueba", "_test_connection"}
}

// IsDiagnosticCollection reports whether name bypasses the wedding engine.
func IsDiagnosticCollection(name string) bool {
	return diagnosticCollections[name]
}

// AuthorizeDiagnostic decides access to a diagnostic collection. Reads are
// open to everyone, including unauthenticated callers; writes require any
// non-empty principal.
func AuthorizeDiagnostic(principalID string, op Operation) bool {
	switch op {
	case OperationRead:
		return true
	case OperationWrite:
		return principalID != ""
	}
	return false
}
