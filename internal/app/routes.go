package app

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/lektio/lektio/internal/config"
)

// RegisterRoutes registers the relay endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies, cfg config.Application) {

	// Push channel
	r.HandleFunc("/ws", deps.RelayHandler.HandleChannel).Methods("GET")

	// Health
	r.HandleFunc("/api/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}).Methods("GET")
}
