// Package http holds the per-resource HTTP handlers.
package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/openvcon/vconstore/internal/api/respond"
	"github.com/openvcon/vconstore/internal/model"
	"github.com/openvcon/vconstore/internal/service"
)

// VConHandler handles the conversation-record CRUD endpoints.
type VConHandler struct {
	svc *service.Service
}

func NewVConHandler(svc *service.Service) *VConHandler {
	return &VConHandler{svc: svc}
}

// callOptions reads the per-request pipeline switches. They are query
// parameters so operator tooling can replay records without re-triggering
// hooks or validation.
func callOptions(r *http.Request) service.Options {
	q := r.URL.Query()
	return service.Options{
		SkipHooks:      q.Get("skip_hooks") == "true",
		SkipValidation: q.Get("skip_validation") == "true",
	}
}

// CreateVCon POST /api/vcons
func (h *VConHandler) CreateVCon(w http.ResponseWriter, r *http.Request) {
	var v model.VCon
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		respond.WriteBadRequest(w, "invalid JSON")
		return
	}
	out, err := h.svc.Create(r.Context(), &v, callOptions(r))
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, out)
}

// CreateBatch POST /api/vcons/batch
func (h *VConHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VCons []*model.VCon `json:"vcons"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid JSON")
		return
	}
	if len(req.VCons) == 0 {
		respond.WriteBadRequest(w, "vcons must not be empty")
		return
	}
	res := h.svc.CreateBatch(r.Context(), req.VCons, callOptions(r))
	respond.WriteJSON(w, http.StatusOK, res)
}

// GetVCon GET /api/vcons/{uuid}
func (h *VConHandler) GetVCon(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Get(r.Context(), mux.Vars(r)["uuid"], callOptions(r))
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// DeleteVCon DELETE /api/vcons/{uuid}
func (h *VConHandler) DeleteVCon(w http.ResponseWriter, r *http.Request) {
	uuid := mux.Vars(r)["uuid"]
	found, err := h.svc.Delete(r.Context(), uuid, callOptions(r))
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	if !found {
		respond.WriteNotFound(w, "vcon "+uuid+" not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddDialog POST /api/vcons/{uuid}/dialog
func (h *VConHandler) AddDialog(w http.ResponseWriter, r *http.Request) {
	var d model.Dialog
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		respond.WriteBadRequest(w, "invalid JSON")
		return
	}
	out, err := h.svc.AddDialog(r.Context(), mux.Vars(r)["uuid"], d, callOptions(r))
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// AddAnalysis POST /api/vcons/{uuid}/analysis
func (h *VConHandler) AddAnalysis(w http.ResponseWriter, r *http.Request) {
	var a model.Analysis
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		respond.WriteBadRequest(w, "invalid JSON")
		return
	}
	out, err := h.svc.AddAnalysis(r.Context(), mux.Vars(r)["uuid"], a, callOptions(r))
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// AddAttachment POST /api/vcons/{uuid}/attachments
func (h *VConHandler) AddAttachment(w http.ResponseWriter, r *http.Request) {
	var a model.Attachment
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		respond.WriteBadRequest(w, "invalid JSON")
		return
	}
	out, err := h.svc.AddAttachment(r.Context(), mux.Vars(r)["uuid"], a, callOptions(r))
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// UpdateSubject PUT /api/vcons/{uuid}/subject
func (h *VConHandler) UpdateSubject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject *string `json:"subject"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid JSON")
		return
	}
	out, err := h.svc.UpdateSubject(r.Context(), mux.Vars(r)["uuid"], req.Subject, callOptions(r))
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}
