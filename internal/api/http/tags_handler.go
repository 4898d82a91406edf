package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/openvcon/vconstore/internal/api/respond"
	"github.com/openvcon/vconstore/internal/service"
	"github.com/openvcon/vconstore/internal/tags"
)

// TagsHandler exposes the reserved tags attachment as a key/value surface.
type TagsHandler struct {
	svc *service.Service
}

func NewTagsHandler(svc *service.Service) *TagsHandler {
	return &TagsHandler{svc: svc}
}

// GetTags GET /api/vcons/{uuid}/tags
func (h *TagsHandler) GetTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.svc.GetTags(r.Context(), mux.Vars(r)["uuid"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"tags": tags, "count": len(tags)})
}

// SetTag PUT /api/vcons/{uuid}/tags/{key}
func (h *TagsHandler) SetTag(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	// scalar values (bool, number) are accepted and coerced to strings
	var req struct {
		Value interface{} `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid JSON")
		return
	}
	if req.Value == nil {
		respond.WriteBadRequest(w, "value is required")
		return
	}
	value := tags.EncodeValue(req.Value)
	if err := h.svc.SetTag(r.Context(), v["uuid"], v["key"], value, callOptions(r)); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{v["key"]: value})
}

// RemoveTag DELETE /api/vcons/{uuid}/tags/{key}
func (h *TagsHandler) RemoveTag(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	if err := h.svc.RemoveTag(r.Context(), v["uuid"], v["key"], callOptions(r)); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
