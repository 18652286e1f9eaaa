package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"

	"github.com/lovenda/veil/pkg/auth"
	"github.com/lovenda/veil/pkg/authz"
	"github.com/lovenda/veil/pkg/contextkeys"
	"github.com/lovenda/veil/pkg/weddings"
)

// fakeWeddingService satisfies weddings.Service for routing tests; only
// GetWedding is exercised.
type fakeWeddingService struct {
	weddings.Service
	wedding *weddings.Wedding
}

func (f *fakeWeddingService) GetWedding(ctx context.Context, id string) (*weddings.Wedding, error) {
	if f.wedding != nil && f.wedding.ID == id {
		return f.wedding, nil
	}
	return nil, weddings.ErrWeddingNotFound
}

func testWedding() *weddings.Wedding {
	return &weddings.Wedding{
		ID:           "w1",
		Name:         "Olivia & Marco",
		OwnerIDs:     []string{"olivia"},
		PlannerIDs:   []string{"petra"},
		AssistantIDs: []string{"aaron"},
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// serve runs a request through wedding resolution and a capability gate the
// way the API router composes them.
func serve(t *testing.T, gate func(http.Handler) http.Handler, principalID, path string) *httptest.ResponseRecorder {
	t.Helper()

	router := mux.NewRouter()
	wc := NewWeddingContext(&fakeWeddingService{wedding: testWedding()})
	router.PathPrefix("/weddings/{wedding_id}").Handler(wc.Handler(gate(okHandler())))

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if principalID != "" {
		ctx := contextkeys.WithPrincipal(req.Context(), &auth.Principal{ID: principalID})
		req = req.WithContext(ctx)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRequireCapability(t *testing.T) {
	cm := NewCapabilityMiddleware(nil, nil)

	tests := []struct {
		name       string
		principal  string
		capability authz.Capability
		want       int
	}{
		{"owner manages finance", "olivia", authz.CapManageFinance, http.StatusOK},
		{"planner denied finance write", "petra", authz.CapManageFinance, http.StatusForbidden},
		{"planner manages guests", "petra", authz.CapManageGuests, http.StatusOK},
		{"assistant views guests", "aaron", authz.CapViewGuests, http.StatusOK},
		{"assistant denied guest write", "aaron", authz.CapManageGuests, http.StatusForbidden},
		{"non-member denied", "stranger", authz.CapViewGuests, http.StatusForbidden},
		{"anonymous gets 401", "", authz.CapViewGuests, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, cm.RequireCapability(tt.capability), tt.principal, "/weddings/w1")
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequireMember(t *testing.T) {
	cm := NewCapabilityMiddleware(nil, nil)

	tests := []struct {
		name      string
		principal string
		want      int
	}{
		{"owner reads", "olivia", http.StatusOK},
		{"planner reads", "petra", http.StatusOK},
		{"assistant reads", "aaron", http.StatusOK},
		{"non-member denied", "stranger", http.StatusForbidden},
		{"anonymous gets 401", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, cm.RequireMember(), tt.principal, "/weddings/w1")
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequireMember_UnknownWedding(t *testing.T) {
	cm := NewCapabilityMiddleware(nil, nil)
	rec := serve(t, cm.RequireMember(), "olivia", "/weddings/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequireCapability_UnknownWedding(t *testing.T) {
	cm := NewCapabilityMiddleware(nil, nil)
	rec := serve(t, cm.RequireCapability(authz.CapViewGuests), "olivia", "/weddings/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequireCollectionAccess(t *testing.T) {
	cm := NewCapabilityMiddleware(nil, nil)

	tests := []struct {
		name      string
		principal string
		path      string
		write     bool
		want      int
	}{
		{"assistant reads guests", "aaron", "/weddings/w1/guests", false, http.StatusOK},
		{"assistant denied guest write", "aaron", "/weddings/w1/guests", true, http.StatusForbidden},
		{"planner writes tasks", "petra", "/weddings/w1/tasks", true, http.StatusOK},
		{"seating plan maps to guest capabilities", "aaron", "/weddings/w1/seatingPlan", false, http.StatusOK},
		{"suppliers map to provider capabilities", "petra", "/weddings/w1/suppliers", true, http.StatusOK},
		{"unknown collection is 404", "olivia", "/weddings/w1/payroll", false, http.StatusNotFound},
		{"anonymous read denied", "", "/weddings/w1/guests", false, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := mux.NewRouter()
			wc := NewWeddingContext(&fakeWeddingService{wedding: testWedding()})
			router.PathPrefix("/weddings/{wedding_id}/{collection}").Handler(
				wc.Handler(cm.RequireCollectionAccess(tt.write)(okHandler())))

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.principal != "" {
				req = req.WithContext(contextkeys.WithPrincipal(req.Context(), &auth.Principal{ID: tt.principal}))
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequireCollectionAccess_Diagnostics(t *testing.T) {
	cm := NewCapabilityMiddleware(nil, nil)

	tests := []struct {
		name      string
		principal string
		path      string
		write     bool
		want      int
	}{
		{"anonymous diagnostic read", "", "/weddings/w1/_test_connection", false, http.StatusOK},
		{"anonymous diagnostic write denied", "", "/weddings/w1/_test_connection", true, http.StatusUnauthorized},
		{"authenticated diagnostic write", "stranger", "/weddings/w1/_conexion_prueba", true, http.StatusOK},
		{"non-member diagnostic read", "stranger", "/weddings/w1/_conexion_prueba", false, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Diagnostic collections never consult the wedding, so no
			// wedding context middleware here.
			router := mux.NewRouter()
			router.PathPrefix("/weddings/{wedding_id}/{collection}").Handler(
				cm.RequireCollectionAccess(tt.write)(okHandler()))

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.principal != "" {
				req = req.WithContext(contextkeys.WithPrincipal(req.Context(), &auth.Principal{ID: tt.principal}))
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
