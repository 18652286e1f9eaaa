package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/lovenda/veil/pkg/audit"
	"github.com/lovenda/veil/pkg/auth"
	"github.com/lovenda/veil/pkg/httputil"
	"github.com/lovenda/veil/pkg/middleware"
)

type createTokenRequest struct {
	Name     string `json:"name"`
	TTLHours int    `json:"ttl_hours,omitempty"`
}

type createTokenResponse struct {
	Token    *auth.APIToken `json:"token"`
	RawToken string         `json:"raw_token"`
}

// createToken issues a new API token for the caller. The raw secret appears
// in this response only; we store the hash.
func (s *Server) createToken(w http.ResponseWriter, r *http.Request) {
	if s.tokens == nil {
		httputil.WriteNotFound(w, "token management is not enabled")
		return
	}

	var req createTokenRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	principalID := middleware.PrincipalID(r)
	record, raw, err := s.tokens.CreateToken(r.Context(), principalID, req.Name, time.Duration(req.TTLHours)*time.Hour)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	s.auditTokenEvent(r, audit.EventTypeTokenCreate, principalID, record.ID, req.Name)
	httputil.WriteCreated(w, createTokenResponse{Token: record, RawToken: raw})
}

func (s *Server) listTokens(w http.ResponseWriter, r *http.Request) {
	if s.tokens == nil {
		httputil.WriteNotFound(w, "token management is not enabled")
		return
	}

	tokens, err := s.tokens.ListTokens(r.Context(), middleware.PrincipalID(r))
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if tokens == nil {
		tokens = []*auth.APIToken{}
	}
	httputil.WriteSuccess(w, tokens)
}

func (s *Server) revokeToken(w http.ResponseWriter, r *http.Request) {
	if s.tokens == nil {
		httputil.WriteNotFound(w, "token management is not enabled")
		return
	}

	idStr, ok := httputil.ParsePathStringOrError(w, r, "token_id")
	if !ok {
		return
	}
	tokenID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid token id")
		return
	}

	principalID := middleware.PrincipalID(r)
	if err := s.tokens.RevokeToken(r.Context(), tokenID, principalID); err != nil {
		if errors.Is(err, auth.ErrTokenNotFound) {
			httputil.WriteNotFound(w, "token not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	s.auditTokenEvent(r, audit.EventTypeTokenRevoke, principalID, tokenID, "")
	httputil.WriteNoContent(w)
}

func (s *Server) auditTokenEvent(r *http.Request, eventType audit.EventType, principalID string, tokenID int64, name string) {
	if s.auditLog == nil {
		return
	}
	details := map[string]any{"token_id": tokenID}
	if name != "" {
		details["name"] = name
	}
	_ = s.auditLog.Log(r.Context(), &audit.Event{
		Timestamp:   time.Now().UTC(),
		EventType:   eventType,
		PrincipalID: principalID,
		Details:     details,
	})
}
