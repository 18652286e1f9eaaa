package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lovenda/veil/pkg/authz"
	"github.com/lovenda/veil/pkg/httputil"
	"github.com/lovenda/veil/pkg/middleware"
	"github.com/lovenda/veil/pkg/weddings"
)

// itemScope pulls the wedding and collection out of the request. The
// capability middleware has already validated both, so missing values here
// indicate a routing bug.
func itemScope(r *http.Request) (string, authz.Collection) {
	wedding := middleware.GetWedding(r)
	return wedding.ID, authz.Collection(mux.Vars(r)["collection"])
}

func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	weddingID, collection := itemScope(r)
	items, err := s.service.ListItems(r.Context(), weddingID, collection)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if items == nil {
		items = []*weddings.Item{}
	}
	httputil.WriteSuccess(w, items)
}

func (s *Server) createItem(w http.ResponseWriter, r *http.Request) {
	var data map[string]any
	if !httputil.ParseJSONOrError(w, r, &data) {
		return
	}

	weddingID, collection := itemScope(r)
	item, err := s.service.CreateItem(r.Context(), middleware.PrincipalID(r), weddingID, collection, data)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteCreated(w, item)
}

func (s *Server) getItem(w http.ResponseWriter, r *http.Request) {
	weddingID, collection := itemScope(r)
	item, err := s.service.GetItem(r.Context(), weddingID, collection, mux.Vars(r)["item_id"])
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, item)
}

func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) {
	var data map[string]any
	if !httputil.ParseJSONOrError(w, r, &data) {
		return
	}

	weddingID, collection := itemScope(r)
	item, err := s.service.UpdateItem(r.Context(), weddingID, collection, mux.Vars(r)["item_id"], data)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, item)
}

func (s *Server) deleteItem(w http.ResponseWriter, r *http.Request) {
	weddingID, collection := itemScope(r)
	if err := s.service.DeleteItem(r.Context(), weddingID, collection, mux.Vars(r)["item_id"]); err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
