package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lovenda/veil/pkg/audit"
	"github.com/lovenda/veil/pkg/auth"
	"github.com/lovenda/veil/pkg/authz"
	"github.com/lovenda/veil/pkg/httputil"
	"github.com/lovenda/veil/pkg/middleware"
	"github.com/lovenda/veil/pkg/observability"
	"github.com/lovenda/veil/pkg/weddings"
)

// Server is the veil HTTP API. Routes are grouped by how much of the
// middleware chain they need: authenticated wedding routes get the full
// auth, wedding-context and capability stack, while the diagnostic routes
// run with optional authentication only.
type Server struct {
	router *mux.Router

	service  weddings.Service
	tokens   *auth.TokenManager
	authn    *auth.Authenticator
	oidcFlow LoginFlow
	metrics  *observability.Metrics
	auditLog audit.Logger
	logger   *observability.Logger
	limiter  *middleware.RateLimitMiddleware
}

// Options carries the server dependencies. Service and Authenticator are
// required; everything else may be nil.
type Options struct {
	Service       weddings.Service
	TokenManager  *auth.TokenManager
	Authenticator *auth.Authenticator
	OIDCFlow      LoginFlow
	Metrics       *observability.Metrics
	AuditLogger   audit.Logger
	Logger        *observability.Logger
	RateLimiter   *middleware.RateLimitMiddleware
}

// NewServer creates the API server and wires up all routes.
func NewServer(opts Options) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		service:  opts.Service,
		tokens:   opts.TokenManager,
		authn:    opts.Authenticator,
		oidcFlow: opts.OIDCFlow,
		metrics:  opts.Metrics,
		auditLog: opts.AuditLogger,
		logger:   opts.Logger,
		limiter:  opts.RateLimiter,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(httputil.RequestIDMiddleware)
	s.router.Use(httputil.RecoveryMiddleware)
	if s.metrics != nil {
		s.router.Use(s.metrics.HTTPMiddleware)
	}

	requireAuth := middleware.NewAuthMiddleware(s.authn, false).Handler
	optionalAuth := middleware.NewAuthMiddleware(s.authn, true).Handler
	caps := middleware.NewCapabilityMiddleware(s.auditLog, s.metrics)
	weddingCtx := middleware.NewWeddingContext(s.service).Handler

	// Wedding collection routes
	authed := s.router.NewRoute().Subrouter()
	authed.Use(requireAuth)
	if s.limiter != nil {
		authed.Use(s.limiter.Handler)
	}
	authed.HandleFunc("/weddings", s.createWedding).Methods(http.MethodPost)
	authed.HandleFunc("/weddings", s.listWeddings).Methods(http.MethodGet)
	authed.HandleFunc("/invitations/{code}/accept", s.acceptInvitation).Methods(http.MethodPost)

	// API token self-service
	authed.HandleFunc("/auth/tokens", s.createToken).Methods(http.MethodPost)
	authed.HandleFunc("/auth/tokens", s.listTokens).Methods(http.MethodGet)
	authed.HandleFunc("/auth/tokens/{token_id}", s.revokeToken).Methods(http.MethodDelete)

	// Single-wedding routes: wedding context loads first, then capability
	// gating per route.
	wedding := authed.PathPrefix("/weddings/{wedding_id}").Subrouter()
	wedding.Use(weddingCtx)

	wedding.Handle("", caps.RequireMember()(http.HandlerFunc(s.getWedding))).Methods(http.MethodGet)
	wedding.Handle("", s.gated(caps, authz.CapManageSettings, s.updateWedding)).Methods(http.MethodPatch)
	wedding.Handle("", s.gated(caps, authz.CapArchiveWedding, s.archiveWedding)).Methods(http.MethodDelete)

	// Membership is part of the wedding document, so listing members is
	// member-readable like the document itself.
	wedding.Handle("/members", caps.RequireMember()(http.HandlerFunc(s.listMembers))).Methods(http.MethodGet)
	wedding.Handle("/members", s.gated(caps, authz.CapManageAssistants, s.addMember)).Methods(http.MethodPost)
	wedding.Handle("/members/{principal_id}", s.gated(caps, authz.CapManageAssistants, s.removeMember)).Methods(http.MethodDelete)

	wedding.Handle("/invitations", s.gated(caps, authz.CapInviteCollaborators, s.createInvitation)).Methods(http.MethodPost)

	// Subcollections: the capability is picked per collection.
	wedding.Handle("/{collection}", caps.RequireCollectionAccess(false)(http.HandlerFunc(s.listItems))).Methods(http.MethodGet)
	wedding.Handle("/{collection}", caps.RequireCollectionAccess(true)(http.HandlerFunc(s.createItem))).Methods(http.MethodPost)
	wedding.Handle("/{collection}/{item_id}", caps.RequireCollectionAccess(false)(http.HandlerFunc(s.getItem))).Methods(http.MethodGet)
	wedding.Handle("/{collection}/{item_id}", caps.RequireCollectionAccess(true)(http.HandlerFunc(s.updateItem))).Methods(http.MethodPut)
	wedding.Handle("/{collection}/{item_id}", caps.RequireCollectionAccess(true)(http.HandlerFunc(s.deleteItem))).Methods(http.MethodDelete)

	// Browser login: unauthenticated by definition, the callback mints the
	// API token.
	s.router.HandleFunc("/auth/login", s.startLogin).Methods(http.MethodGet)
	s.router.HandleFunc("/auth/callback", s.finishLogin).Methods(http.MethodGet)

	// Authorization introspection
	authed.HandleFunc("/authz/check", s.checkAuthorization).Methods(http.MethodPost)
	s.router.HandleFunc("/authz/roles/{role}/permissions", s.getRolePermissions).Methods(http.MethodGet)
	s.router.HandleFunc("/authz/rules", s.getRules).Methods(http.MethodGet)

	// Diagnostic collections: reads are open to everyone, writes need any
	// authenticated principal. Bad credentials are still rejected.
	diag := s.router.PathPrefix("/diagnostics/{collection}").Subrouter()
	diag.Use(optionalAuth)
	diag.HandleFunc("", s.readDiagnostic).Methods(http.MethodGet)
	diag.HandleFunc("", s.writeDiagnostic).Methods(http.MethodPost)

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	s.router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteSuccess(w, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
}

// gated wraps a handler func with one capability check.
func (s *Server) gated(caps *middleware.CapabilityMiddleware, c authz.Capability, h http.HandlerFunc) http.Handler {
	return caps.RequireCapability(c)(h)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the server wrapped with OpenTelemetry HTTP
// instrumentation.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s, "veil.api")
}
