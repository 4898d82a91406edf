// Package api wires the HTTP routes to their handlers.
package api

import (
	"github.com/gorilla/mux"

	httpHandlers "github.com/openvcon/vconstore/internal/api/http"
	"github.com/openvcon/vconstore/internal/api/recovery"
	"github.com/openvcon/vconstore/internal/health"
	"github.com/openvcon/vconstore/internal/service"
)

const uuidPattern = "{uuid:[0-9a-fA-F-]{36}}"

// NewRouter registers every API route. mon may be nil when no background
// health monitor runs.
func NewRouter(svc *service.Service, mon *health.Monitor) *mux.Router {
	router := mux.NewRouter()
	router.Use(recovery.Middleware)

	vconHandler := httpHandlers.NewVConHandler(svc)
	tagsHandler := httpHandlers.NewTagsHandler(svc)
	searchHandler := httpHandlers.NewSearchHandler(svc)
	healthHandler := httpHandlers.NewHealthHandler(svc, mon)

	// Health endpoints
	router.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")
	router.HandleFunc("/api/health/db", healthHandler.CheckStoreHealth).Methods("GET")

	// Conversation-record endpoints
	router.HandleFunc("/api/vcons", vconHandler.CreateVCon).Methods("POST")
	router.HandleFunc("/api/vcons/batch", vconHandler.CreateBatch).Methods("POST")
	router.HandleFunc("/api/vcons/"+uuidPattern, vconHandler.GetVCon).Methods("GET")
	router.HandleFunc("/api/vcons/"+uuidPattern, vconHandler.DeleteVCon).Methods("DELETE")
	router.HandleFunc("/api/vcons/"+uuidPattern+"/subject", vconHandler.UpdateSubject).Methods("PUT")

	// Child-array appends
	router.HandleFunc("/api/vcons/"+uuidPattern+"/dialog", vconHandler.AddDialog).Methods("POST")
	router.HandleFunc("/api/vcons/"+uuidPattern+"/analysis", vconHandler.AddAnalysis).Methods("POST")
	router.HandleFunc("/api/vcons/"+uuidPattern+"/attachments", vconHandler.AddAttachment).Methods("POST")

	// Tag surface
	router.HandleFunc("/api/vcons/"+uuidPattern+"/tags", tagsHandler.GetTags).Methods("GET")
	router.HandleFunc("/api/vcons/"+uuidPattern+"/tags/{key}", tagsHandler.SetTag).Methods("PUT")
	router.HandleFunc("/api/vcons/"+uuidPattern+"/tags/{key}", tagsHandler.RemoveTag).Methods("DELETE")

	// Search endpoints
	router.HandleFunc("/api/search", searchHandler.Search).Methods("POST")
	router.HandleFunc("/api/search/keyword", searchHandler.Keyword).Methods("POST")
	router.HandleFunc("/api/search/semantic", searchHandler.Semantic).Methods("POST")
	router.HandleFunc("/api/search/hybrid", searchHandler.Hybrid).Methods("POST")
	router.HandleFunc("/api/search/sizing", searchHandler.Sizing).Methods("GET")

	return router
}
