package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/lovenda/veil/pkg/authz"
	"github.com/lovenda/veil/pkg/contextkeys"
	"github.com/lovenda/veil/pkg/httputil"
	"github.com/lovenda/veil/pkg/middleware"
)

// readDiagnostic serves the open connectivity probe. No authentication, no
// membership: mobile clients hit this before the user signs in.
func (s *Server) readDiagnostic(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["collection"]
	if !authz.IsDiagnosticCollection(name) {
		httputil.WriteNotFound(w, "unknown diagnostic collection")
		return
	}

	if s.metrics != nil {
		s.metrics.DiagnosticReadsTotal.Inc()
	}

	httputil.WriteSuccess(w, map[string]any{
		"collection": name,
		"status":     "ok",
		"time":       time.Now().UTC(),
		"request_id": contextkeys.GetRequestID(r.Context()),
	})
}

// writeDiagnostic accepts a probe write from any signed-in principal,
// member or not.
func (s *Server) writeDiagnostic(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["collection"]
	if !authz.IsDiagnosticCollection(name) {
		httputil.WriteNotFound(w, "unknown diagnostic collection")
		return
	}

	principalID := middleware.PrincipalID(r)
	if !authz.AuthorizeDiagnostic(principalID, authz.OperationWrite) {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var payload map[string]any
	if r.ContentLength > 0 && !httputil.ParseJSONOrError(w, r, &payload) {
		return
	}

	httputil.WriteCreated(w, map[string]any{
		"collection": name,
		"written_by": principalID,
		"time":       time.Now().UTC(),
	})
}
