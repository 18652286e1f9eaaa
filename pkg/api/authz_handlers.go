package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lovenda/veil/pkg/audit"
	"github.com/lovenda/veil/pkg/authz"
	"github.com/lovenda/veil/pkg/httputil"
	"github.com/lovenda/veil/pkg/middleware"
)

type checkRequest struct {
	// PrincipalID defaults to the caller. Checking someone else's access is
	// allowed: the answer leaks nothing the membership lists don't already.
	PrincipalID string `json:"principal_id,omitempty"`
	WeddingID   string `json:"wedding_id"`
	Capability  string `json:"capability"`
}

// checkAuthorization runs the decision engine and explains the outcome.
// The endpoint itself always answers 200; the decision payload carries the
// allow or deny.
func (s *Server) checkAuthorization(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.WeddingID, "wedding_id") {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Capability, "capability") {
		return
	}

	principalID := req.PrincipalID
	if principalID == "" {
		principalID = middleware.PrincipalID(r)
	}

	// Unknown weddings and non-members resolve to the empty role, which the
	// engine turns into deny. No 404 here: the check endpoint reports
	// decisions.
	role, _, err := s.service.PermissionsFor(r.Context(), req.WeddingID, principalID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	decision := authz.ExplainRole(principalID, role, authz.Capability(req.Capability))
	if s.metrics != nil {
		s.metrics.RecordDecision(string(decision.Role), req.Capability, decision.Allowed)
	}
	if s.auditLog != nil {
		allowed := decision.Allowed
		_ = s.auditLog.Log(r.Context(), &audit.Event{
			Timestamp:   decision.CheckedAt,
			EventType:   audit.EventTypePermissionCheck,
			PrincipalID: principalID,
			WeddingID:   req.WeddingID,
			Capability:  req.Capability,
			Allowed:     &allowed,
			Details:     map[string]any{"reason": decision.Reason, "caller": middleware.PrincipalID(r)},
		})
	}
	httputil.WriteSuccess(w, decision)
}

// getRolePermissions returns the full permission set for a role. Legacy
// aliases resolve to their canonical role; unknown roles get the all-false
// set rather than an error, mirroring the engine.
func (s *Server) getRolePermissions(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["role"]
	role := authz.NormalizeRole(raw, "")
	httputil.WriteSuccess(w, map[string]any{
		"role":        role,
		"canonical":   authz.IsCanonical(role),
		"permissions": authz.PermissionsForRole(role),
	})
}

// getRules serves the policy table compiled to Firestore security rules.
func (s *Server) getRules(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(authz.GenerateFirestoreRules()))
}
