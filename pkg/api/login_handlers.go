package api

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/lovenda/veil/pkg/audit"
	"github.com/lovenda/veil/pkg/auth"
	"github.com/lovenda/veil/pkg/httputil"
)

// LoginFlow is the OIDC authorization code flow behind the browser login
// endpoints. *auth.OIDCFlow implements it.
type LoginFlow interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.Principal, error)
}

const stateCookieName = "veil_oauth_state"

// loginTokenTTL bounds API tokens minted through the browser flow.
const loginTokenTTL = 24 * time.Hour

// startLogin redirects the browser to the identity provider. The state
// parameter round-trips through a short-lived cookie.
func (s *Server) startLogin(w http.ResponseWriter, r *http.Request) {
	if s.oidcFlow == nil {
		httputil.WriteNotFound(w, "browser login is not enabled")
		return
	}

	stateBytes := make([]byte, 32)
	if _, err := rand.Read(stateBytes); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	state := base64.URLEncoding.EncodeToString(stateBytes)

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/auth",
		MaxAge:   300,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, s.oidcFlow.AuthCodeURL(state), http.StatusFound)
}

// finishLogin verifies the state parameter, exchanges the authorization
// code, and mints an API token for the verified principal. The raw token is
// returned once, like POST /auth/tokens.
func (s *Server) finishLogin(w http.ResponseWriter, r *http.Request) {
	if s.oidcFlow == nil || s.tokens == nil {
		httputil.WriteNotFound(w, "browser login is not enabled")
		return
	}

	cookie, err := r.Cookie(stateCookieName)
	if err != nil {
		httputil.WriteBadRequest(w, "missing state cookie")
		return
	}
	if state := r.URL.Query().Get("state"); state == "" || state != cookie.Value {
		httputil.WriteBadRequest(w, "invalid state parameter")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, MaxAge: -1, Path: "/auth"})

	code := r.URL.Query().Get("code")
	if code == "" {
		httputil.WriteBadRequest(w, "missing authorization code")
		return
	}

	principal, err := s.oidcFlow.Exchange(r.Context(), code)
	if err != nil {
		s.logWarn(r, "authorization code exchange failed", err)
		httputil.WriteUnauthorized(w, "authorization code exchange failed")
		return
	}

	token, raw, err := s.tokens.CreateToken(r.Context(), principal.ID, "browser login", loginTokenTTL)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	s.auditTokenEvent(r, audit.EventTypeTokenCreate, principal.ID, token.ID, token.Name)

	httputil.WriteSuccess(w, map[string]any{
		"token":      raw,
		"expires_at": token.ExpiresAt,
		"principal":  principal,
	})
}
