package middleware

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lovenda/veil/pkg/contextkeys"
	"github.com/lovenda/veil/pkg/httputil"
	"github.com/lovenda/veil/pkg/weddings"
)

// WeddingContext loads the wedding named by the {wedding_id} route variable
// into the request context. Unknown IDs get a 404 before any capability
// check runs.
type WeddingContext struct {
	service weddings.Service
}

// NewWeddingContext creates the middleware over a wedding service.
func NewWeddingContext(service weddings.Service) *WeddingContext {
	return &WeddingContext{service: service}
}

// Handler wraps an HTTP handler with wedding resolution.
func (m *WeddingContext) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		weddingID := mux.Vars(r)["wedding_id"]
		if weddingID == "" {
			httputil.WriteBadRequest(w, "missing wedding_id")
			return
		}

		wedding, err := m.service.GetWedding(r.Context(), weddingID)
		if err != nil {
			if errors.Is(err, weddings.ErrWeddingNotFound) {
				httputil.WriteNotFound(w, "wedding not found")
				return
			}
			httputil.WriteInternalError(w, err)
			return
		}

		ctx := contextkeys.WithWedding(r.Context(), wedding)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetWedding extracts the resolved wedding from a request, or nil.
func GetWedding(r *http.Request) *weddings.Wedding {
	wedding, _ := r.Context().Value(contextkeys.WeddingKey).(*weddings.Wedding)
	return wedding
}
