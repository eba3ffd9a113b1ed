// Package handler serves the JSON API and the two HTML pages. Mutations go
// through the stores, then announce themselves and re-read what the caller
// is looking at.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/starchart/internal/events"
	"github.com/dukerupert/starchart/internal/store"
)

const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a single JSON object into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return "", false
	}
	return id, true
}

type validationResponse struct {
	Error  string             `json:"error"`
	Fields []store.FieldError `json:"fields"`
}

// writeError maps a write failure onto a response. what is the noun phrase
// used in messages, e.g. "mission".
func writeError(w http.ResponseWriter, logger *slog.Logger, what string, err error) {
	var ve *store.ValidationError
	switch {
	case errors.Is(err, store.ErrAuthRequired):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": what + " not found"})
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, validationResponse{Error: "validation failed", Fields: ve.Fields})
	default:
		logger.Error("write failed", "entity", what, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save " + what})
	}
}

func notFound(w http.ResponseWriter, what string) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": what + " not found"})
}

// publish announces a mutation. Delivery failures are logged by the
// publisher and never fail the request.
func publish(ctx context.Context, pub events.Publisher, entity, action, id string) {
	if pub == nil {
		return
	}
	_ = pub.Publish(context.WithoutCancel(ctx), events.New(entity, action, id))
}

// listResponse is the shape of every list read. A failed read still
// renders: Items is empty and Degraded is set.
type listResponse[T any] struct {
	Items    []T    `json:"items"`
	Degraded bool   `json:"degraded,omitempty"`
	Error    string `json:"error,omitempty"`
}

func writeList[T any](w http.ResponseWriter, logger *slog.Logger, what string, items []T, err error) {
	resp := listResponse[T]{Items: items}
	if err != nil {
		logger.Warn("list "+what, "error", err)
		resp = listResponse[T]{Degraded: true, Error: "failed to load " + what}
	}
	if resp.Items == nil {
		resp.Items = []T{}
	}
	writeJSON(w, http.StatusOK, resp)
}
