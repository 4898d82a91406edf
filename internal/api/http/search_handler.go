package http

import (
	"encoding/json"
	"net/http"

	"github.com/openvcon/vconstore/internal/api/respond"
	"github.com/openvcon/vconstore/internal/model"
	"github.com/openvcon/vconstore/internal/service"
)

// SearchHandler handles the structured query plus the three ranked variants
// and the sizing endpoint.
type SearchHandler struct {
	svc *service.Service
}

func NewSearchHandler(svc *service.Service) *SearchHandler {
	return &SearchHandler{svc: svc}
}

// Search POST /api/search
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var q model.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		respond.WriteBadRequest(w, "invalid JSON")
		return
	}
	res, err := h.svc.Search(r.Context(), q, callOptions(r))
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, res)
}

func decodeRankedQuery(w http.ResponseWriter, r *http.Request) (model.RankedQuery, bool) {
	var rq model.RankedQuery
	if err := json.NewDecoder(r.Body).Decode(&rq); err != nil {
		respond.WriteBadRequest(w, "invalid JSON")
		return rq, false
	}
	if rq.Query == "" && rq.Vector == nil {
		respond.WriteBadRequest(w, "query must not be empty")
		return rq, false
	}
	return rq, true
}

// Keyword POST /api/search/keyword
func (h *SearchHandler) Keyword(w http.ResponseWriter, r *http.Request) {
	rq, ok := decodeRankedQuery(w, r)
	if !ok {
		return
	}
	res, err := h.svc.SearchKeyword(r.Context(), rq, callOptions(r))
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, res)
}

// Semantic POST /api/search/semantic
func (h *SearchHandler) Semantic(w http.ResponseWriter, r *http.Request) {
	rq, ok := decodeRankedQuery(w, r)
	if !ok {
		return
	}
	res, err := h.svc.SearchSemantic(r.Context(), rq, callOptions(r))
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, res)
}

// Hybrid POST /api/search/hybrid
func (h *SearchHandler) Hybrid(w http.ResponseWriter, r *http.Request) {
	rq, ok := decodeRankedQuery(w, r)
	if !ok {
		return
	}
	res, err := h.svc.SearchHybrid(r.Context(), rq, callOptions(r))
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, res)
}

// Sizing GET /api/search/sizing
func (h *SearchHandler) Sizing(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Recommend(r.Context())
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, report)
}
