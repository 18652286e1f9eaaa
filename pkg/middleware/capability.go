package middleware

import (
	"net"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lovenda/veil/pkg/audit"
	"github.com/lovenda/veil/pkg/authz"
	"github.com/lovenda/veil/pkg/httputil"
	"github.com/lovenda/veil/pkg/observability"
)

// CapabilityMiddleware runs the authorization engine against the context
// principal and wedding. The engine never errors: no principal is 401,
// everything else that isn't allowed is 403.
type CapabilityMiddleware struct {
	auditLog audit.Logger
	metrics  *observability.Metrics
}

// NewCapabilityMiddleware creates capability-gating middleware. Both
// dependencies may be nil.
func NewCapabilityMiddleware(auditLog audit.Logger, metrics *observability.Metrics) *CapabilityMiddleware {
	return &CapabilityMiddleware{auditLog: auditLog, metrics: metrics}
}

// RequireCapability gates a route on one capability.
func (m *CapabilityMiddleware) RequireCapability(capability authz.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.check(w, r, next, capability)
		})
	}
}

// RequireMember gates a route on holding any role on the wedding. The
// wedding document itself is readable by every member, so the gate is
// membership, not a single capability.
func (m *CapabilityMiddleware) RequireMember() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principalID := PrincipalID(r)
			if principalID == "" {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			wedding := GetWedding(r)
			if wedding == nil {
				httputil.WriteNotFound(w, "wedding not found")
				return
			}

			if !authz.IsMember(principalID, wedding.Membership()) {
				audit.LogAccessDenied(r.Context(), m.auditLog, principalID, wedding.ID, "read", clientIP(r))
				httputil.WriteForbidden(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireCollectionAccess gates a subcollection route, picking the view or
// manage capability for the {collection} route variable. Diagnostic
// collections bypass the wedding engine entirely: reads are open, writes
// need any authenticated principal.
func (m *CapabilityMiddleware) RequireCollectionAccess(write bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name := mux.Vars(r)["collection"]

			if authz.IsDiagnosticCollection(name) {
				op := authz.OperationRead
				if write {
					op = authz.OperationWrite
				}
				if !authz.AuthorizeDiagnostic(PrincipalID(r), op) {
					httputil.WriteUnauthorized(w, "authentication required")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			if !authz.IsCollection(name) {
				httputil.WriteNotFound(w, "unknown collection")
				return
			}

			collection := authz.Collection(name)
			var capability authz.Capability
			if write {
				capability, _ = authz.WriteCapability(collection)
			} else {
				capability, _ = authz.ReadCapability(collection)
			}
			m.check(w, r, next, capability)
		})
	}
}

func (m *CapabilityMiddleware) check(w http.ResponseWriter, r *http.Request, next http.Handler, capability authz.Capability) {
	principalID := PrincipalID(r)
	if principalID == "" {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	wedding := GetWedding(r)
	if wedding == nil {
		httputil.WriteNotFound(w, "wedding not found")
		return
	}

	membership := wedding.Membership()
	allowed := authz.Authorize(principalID, membership, capability)

	if m.metrics != nil {
		m.metrics.RecordDecision(string(authz.RoleOf(principalID, membership)), string(capability), allowed)
	}

	if !allowed {
		audit.LogAccessDenied(r.Context(), m.auditLog, principalID, wedding.ID, string(capability), clientIP(r))
		httputil.WriteForbidden(w, "insufficient permissions")
		return
	}

	next.ServeHTTP(w, r)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
