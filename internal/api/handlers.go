package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/assessli/companion/internal/api/respond"
	"github.com/assessli/companion/internal/companion"
	"github.com/assessli/companion/internal/model"
)

// SessionHeader names the header carrying the caller's session id.
const SessionHeader = "X-Session-Id"

// Handler exposes the companion pipeline over HTTP. It is a thin
// presentation layer; all semantics live in the companion service.
type Handler struct {
	svc *companion.Service
}

func NewHandler(svc *companion.Service) *Handler { return &Handler{svc: svc} }

func sessionID(r *http.Request) string {
	return r.Header.Get(SessionHeader)
}

// RegisterProfile handles POST /api/profiles.
func (h *Handler) RegisterProfile(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name             string `json:"name"`
		Email            string `json:"email"`
		Phone            string `json:"phone,omitempty"`
		Bio              string `json:"bio,omitempty"`
		AllowTechInfo    bool   `json:"allowTechInfo"`
		SensitiveDataAck bool   `json:"sensitiveDataAck"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	sid := sessionID(r)
	if sid == "" {
		respond.WriteBadRequest(w, SessionHeader+" header required")
		return
	}
	p, err := h.svc.RegisterProfile(r.Context(), sid, companion.RegisterRequest{
		Name:             in.Name,
		Email:            in.Email,
		Phone:            in.Phone,
		Bio:              in.Bio,
		AllowTechInfo:    in.AllowTechInfo,
		SensitiveDataAck: in.SensitiveDataAck,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, p)
}

// GetSessionProfile handles GET /api/session/profile.
func (h *Handler) GetSessionProfile(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(r)
	if sid == "" {
		respond.WriteBadRequest(w, SessionHeader+" header required")
		return
	}
	p, err := h.svc.ResolveProfile(r.Context(), sid)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, p)
}

// EndSession handles DELETE /api/session.
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(r)
	if sid == "" {
		respond.WriteBadRequest(w, SessionHeader+" header required")
		return
	}
	h.svc.EndSession(sid)
	w.WriteHeader(http.StatusNoContent)
}

// GetProfile handles GET /api/profiles/{profileId}.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["profileId"]
	p, err := h.svc.GetProfile(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, p)
}

// ListProfiles handles GET /api/profiles.
func (h *Handler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	lst, err := h.svc.ListProfiles(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"profiles": lst,
		"count":    len(lst),
	})
}

// SubmitTurn handles POST /api/chat.
func (h *Handler) SubmitTurn(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Message string `json:"message"`
		Persist *bool  `json:"persist,omitempty"`
		APIKey  string `json:"apiKey,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	sid := sessionID(r)
	if sid == "" {
		respond.WriteBadRequest(w, SessionHeader+" header required")
		return
	}
	p, err := h.svc.ResolveProfile(r.Context(), sid)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	persist := true
	if in.Persist != nil {
		persist = *in.Persist
	}
	res, err := h.svc.SubmitTurn(r.Context(), companion.TurnRequest{
		Profile:        p,
		Input:          in.Message,
		Persist:        persist,
		ExternalAPIKey: in.APIKey,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"reply":       res.Text,
		"generatedBy": res.GeneratedBy,
		"warnings":    res.Warnings,
	})
}

// ListRecentMessages handles GET /api/messages/recent.
func (h *Handler) ListRecentMessages(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respond.WriteBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	lst, err := h.svc.ListRecentMessages(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"messages": lst,
		"count":    len(lst),
	})
}

// ListConversation handles GET /api/profiles/{profileId}/messages.
func (h *Handler) ListConversation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["profileId"]
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respond.WriteBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	lst, err := h.svc.ListConversation(r.Context(), id, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"messages": lst,
		"count":    len(lst),
	})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		respond.WriteNotFound(w, "not found")
	case errors.Is(err, model.ErrValidation):
		respond.WriteBadRequest(w, err.Error())
	default:
		respond.WriteInternalError(w, err.Error())
	}
}
