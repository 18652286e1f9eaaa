package middleware

import (
	"net/http"
	"strings"

	"github.com/lovenda/veil/pkg/auth"
	"github.com/lovenda/veil/pkg/contextkeys"
	"github.com/lovenda/veil/pkg/httputil"
)

// AuthMiddleware resolves the Authorization header to a Principal. In
// optional mode requests without credentials pass through anonymously,
// which is what the open diagnostic read path needs.
type AuthMiddleware struct {
	authenticator *auth.Authenticator
	optional      bool
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(authenticator *auth.Authenticator, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		authenticator: authenticator,
		optional:      optional,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		principal, err := m.authenticator.Authenticate(r.Context(), parts[1])
		if err != nil {
			httputil.WriteUnauthorized(w, "invalid or expired credentials")
			return
		}

		ctx := contextkeys.WithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetPrincipal extracts the authenticated principal from a request, or nil.
func GetPrincipal(r *http.Request) *auth.Principal {
	principal, _ := r.Context().Value(contextkeys.PrincipalKey).(*auth.Principal)
	return principal
}

// PrincipalID returns the authenticated principal's ID, or "" when the
// request is anonymous.
func PrincipalID(r *http.Request) string {
	if p := GetPrincipal(r); p != nil {
		return p.ID
	}
	return ""
}
