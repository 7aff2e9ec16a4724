package api

import (
	"github.com/gorilla/mux"

	"github.com/assessli/companion/internal/api/recovery"
	"github.com/assessli/companion/internal/companion"
)

// NewRouter wires HTTP routes to handlers.
func NewRouter(svc *companion.Service) *mux.Router {
	root := mux.NewRouter()
	root.Use(recovery.Middleware)

	h := NewHandler(svc)
	root.HandleFunc("/api/profiles", h.RegisterProfile).Methods("POST")
	root.HandleFunc("/api/profiles", h.ListProfiles).Methods("GET")
	root.HandleFunc("/api/profiles/{profileId}", h.GetProfile).Methods("GET")
	root.HandleFunc("/api/profiles/{profileId}/messages", h.ListConversation).Methods("GET")

	root.HandleFunc("/api/session/profile", h.GetSessionProfile).Methods("GET")
	root.HandleFunc("/api/session", h.EndSession).Methods("DELETE")

	root.HandleFunc("/api/chat", h.SubmitTurn).Methods("POST")
	root.HandleFunc("/api/messages/recent", h.ListRecentMessages).Methods("GET")

	healthHandler := NewHealthHandler()
	root.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")

	return root
}
