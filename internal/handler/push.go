package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/starchart/internal/auth"
	"github.com/dukerupert/starchart/internal/push"
	"github.com/dukerupert/starchart/internal/store"
)

// PushHandler registers browsers for notifications. service is nil when no
// VAPID keys are configured.
type PushHandler struct {
	subs    *store.PushStore
	service *push.Service
	logger  *slog.Logger
}

func NewPushHandler(subs *store.PushStore, svc *push.Service, logger *slog.Logger) *PushHandler {
	return &PushHandler{subs: subs, service: svc, logger: logger}
}

func (h *PushHandler) disabled(w http.ResponseWriter) bool {
	if h.service == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "push notifications are not configured"})
		return true
	}
	return false
}

// VAPIDKey handles GET /api/push/vapid-key
func (h *PushHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	if h.disabled(w) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.service.VAPIDPublicKey()})
}

// Subscribe handles POST /api/push/subscriptions
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	if h.disabled(w) {
		return
	}
	var in store.PushInput
	if !decodeJSON(w, r, &in) {
		return
	}
	sub, err := h.subs.Subscribe(r.Context(), auth.UserID(r.Context()), in)
	if err != nil {
		writeError(w, h.logger, "subscription", err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// List handles GET /api/push/subscriptions
func (h *PushHandler) List(w http.ResponseWriter, r *http.Request) {
	subs, err := h.subs.ListByUser(r.Context(), auth.UserID(r.Context()))
	writeList(w, h.logger, "subscriptions", subs, err)
}

// Unsubscribe handles DELETE /api/push/subscriptions/{id}
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.subs.Unsubscribe(r.Context(), auth.UserID(r.Context()), id); err != nil {
		writeError(w, h.logger, "subscription", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
