package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/lovenda/veil/pkg/audit"
	"github.com/lovenda/veil/pkg/authz"
	"github.com/lovenda/veil/pkg/httputil"
	"github.com/lovenda/veil/pkg/middleware"
	"github.com/lovenda/veil/pkg/weddings"
)

type createWeddingRequest struct {
	Name        string         `json:"name"`
	WeddingDate *time.Time     `json:"wedding_date,omitempty"`
	Location    string         `json:"location,omitempty"`
	Settings    map[string]any `json:"settings,omitempty"`
	// OnBehalfOf names the principal who becomes the owner instead of the
	// caller. Creating for someone else is planner territory: the caller
	// must hold a createWedding-carrying role on an existing wedding.
	OnBehalfOf string `json:"on_behalf_of,omitempty"`
}

func (s *Server) createWedding(w http.ResponseWriter, r *http.Request) {
	var req createWeddingRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	actorID := middleware.PrincipalID(r)
	ownerID := actorID
	if req.OnBehalfOf != "" && req.OnBehalfOf != actorID {
		allowed, err := s.canCreateOnBehalf(r, actorID)
		if err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
		if !allowed {
			httputil.WriteForbidden(w, "creating weddings for another principal requires a planner role")
			return
		}
		ownerID = req.OnBehalfOf
	}

	wedding := &weddings.Wedding{
		Name:        req.Name,
		WeddingDate: req.WeddingDate,
		Location:    req.Location,
		Settings:    req.Settings,
	}
	if err := s.service.CreateWedding(r.Context(), ownerID, wedding); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	// A planner creating for a couple stays on the wedding as planner.
	if ownerID != actorID {
		updated, err := s.addCreatorAsPlanner(r, wedding.ID, ownerID, actorID)
		if err != nil {
			s.logWarn(r, "failed to add creator as planner", err)
		} else {
			wedding = updated
		}
	}

	httputil.WriteCreated(w, wedding)
}

// canCreateOnBehalf reports whether the actor holds a role carrying
// createWedding on any wedding they belong to.
func (s *Server) canCreateOnBehalf(r *http.Request, actorID string) (bool, error) {
	existing, err := s.service.ListWeddingsForPrincipal(r.Context(), actorID)
	if err != nil {
		return false, err
	}
	for _, wd := range existing {
		role := authz.RoleOf(actorID, wd.Membership())
		if authz.PermissionsForRole(role)[authz.CapCreateWedding] {
			return true, nil
		}
	}
	return false, nil
}

// addCreatorAsPlanner runs as the new owner so the manageAssistants guard
// passes for the freshly created wedding.
func (s *Server) addCreatorAsPlanner(r *http.Request, weddingID, ownerID, plannerID string) (*weddings.Wedding, error) {
	return s.service.AddMember(r.Context(), ownerID, weddingID, plannerID, authz.RolePlanner)
}

func (s *Server) listWeddings(w http.ResponseWriter, r *http.Request) {
	list, err := s.service.ListWeddingsForPrincipal(r.Context(), middleware.PrincipalID(r))
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if list == nil {
		list = []*weddings.Wedding{}
	}
	httputil.WriteSuccess(w, list)
}

func (s *Server) getWedding(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, middleware.GetWedding(r))
}

func (s *Server) updateWedding(w http.ResponseWriter, r *http.Request) {
	var updates weddings.WeddingUpdate
	if !httputil.ParseJSONOrError(w, r, &updates) {
		return
	}

	wedding := middleware.GetWedding(r)
	updated, err := s.service.UpdateWedding(r.Context(), middleware.PrincipalID(r), wedding.ID, updates)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, updated)
}

func (s *Server) archiveWedding(w http.ResponseWriter, r *http.Request) {
	wedding := middleware.GetWedding(r)
	actorID := middleware.PrincipalID(r)
	if err := s.service.ArchiveWedding(r.Context(), actorID, wedding.ID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	audit.LogMembershipChange(r.Context(), s.auditLog, audit.EventTypeWeddingArchive, actorID, wedding.ID, nil)
	httputil.WriteNoContent(w)
}

// writeServiceError maps service layer errors onto HTTP statuses. The
// capability middleware already gated the route, so a permission error here
// means the membership changed between the check and the mutation.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, weddings.ErrPermissionDenied):
		httputil.WriteForbidden(w, "insufficient permissions")
	case errors.Is(err, weddings.ErrWeddingNotFound):
		httputil.WriteNotFound(w, "wedding not found")
	case errors.Is(err, weddings.ErrItemNotFound):
		httputil.WriteNotFound(w, "item not found")
	case errors.Is(err, weddings.ErrInvitationNotFound):
		httputil.WriteNotFound(w, "invitation not found")
	case errors.Is(err, weddings.ErrInvitationExpired):
		httputil.WriteErrorMessage(w, http.StatusGone, "invitation expired")
	default:
		httputil.WriteInternalError(w, err)
	}
}

func (s *Server) logWarn(r *http.Request, msg string, err error) {
	if s.logger != nil {
		s.logger.WithError(err).WithField("path", r.URL.Path).Warn(msg)
	}
}
