package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/lovenda/veil/pkg/audit"
	"github.com/lovenda/veil/pkg/authz"
	"github.com/lovenda/veil/pkg/httputil"
	"github.com/lovenda/veil/pkg/middleware"
	"github.com/lovenda/veil/pkg/weddings"
)

type addMemberRequest struct {
	PrincipalID string `json:"principal_id"`
	Role        string `json:"role"`
}

func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	wedding := middleware.GetWedding(r)
	members, err := s.service.ListMembers(r.Context(), wedding.ID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if members == nil {
		members = []weddings.Member{}
	}
	httputil.WriteSuccess(w, members)
}

func (s *Server) addMember(w http.ResponseWriter, r *http.Request) {
	var req addMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.PrincipalID, "principal_id") {
		return
	}

	role := authz.NormalizeRole(req.Role, authz.RoleAssistant)
	if !authz.IsCanonical(role) {
		httputil.WriteBadRequest(w, "unknown role: "+req.Role)
		return
	}

	wedding := middleware.GetWedding(r)
	actorID := middleware.PrincipalID(r)
	updated, err := s.service.AddMember(r.Context(), actorID, wedding.ID, req.PrincipalID, role)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	audit.LogMembershipChange(r.Context(), s.auditLog, audit.EventTypeMemberAdd, actorID, wedding.ID,
		map[string]any{"principal_id": req.PrincipalID, "role": string(role)})
	httputil.WriteSuccess(w, updated)
}

func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	principalID, ok := httputil.ParsePathStringOrError(w, r, "principal_id")
	if !ok {
		return
	}

	wedding := middleware.GetWedding(r)
	actorID := middleware.PrincipalID(r)
	if _, err := s.service.RemoveMember(r.Context(), actorID, wedding.ID, principalID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	audit.LogMembershipChange(r.Context(), s.auditLog, audit.EventTypeMemberRemove, actorID, wedding.ID,
		map[string]any{"principal_id": principalID})
	httputil.WriteNoContent(w)
}

type createInvitationRequest struct {
	Role string `json:"role"`
	// TTLHours caps how long the code stays redeemable. Zero means the
	// default of seven days.
	TTLHours int `json:"ttl_hours,omitempty"`
}

func (s *Server) createInvitation(w http.ResponseWriter, r *http.Request) {
	var req createInvitationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	wedding := middleware.GetWedding(r)
	actorID := middleware.PrincipalID(r)
	ttl := time.Duration(req.TTLHours) * time.Hour
	invitation, err := s.service.CreateInvitation(r.Context(), actorID, wedding.ID, req.Role, ttl)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	audit.LogMembershipChange(r.Context(), s.auditLog, audit.EventTypeInvitationCreate, actorID, wedding.ID,
		map[string]any{"role": string(invitation.Role), "expires_at": invitation.ExpiresAt})
	httputil.WriteCreated(w, invitation)
}

func (s *Server) acceptInvitation(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	if !httputil.RequireNonEmpty(w, code, "code") {
		return
	}

	principalID := middleware.PrincipalID(r)
	wedding, err := s.service.AcceptInvitation(r.Context(), code, principalID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	audit.LogMembershipChange(r.Context(), s.auditLog, audit.EventTypeInvitationAccept, principalID, wedding.ID, nil)
	httputil.WriteSuccess(w, wedding)
}
