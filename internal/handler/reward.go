package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/starchart/internal/events"
	"github.com/dukerupert/starchart/internal/store"
)

type RewardHandler struct {
	rewards *store.RewardStore
	events  events.Publisher
	logger  *slog.Logger
}

func NewRewardHandler(rs *store.RewardStore, pub events.Publisher, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{rewards: rs, events: pub, logger: logger}
}

// List returns the whole reward catalog.
func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.rewards.List(r.Context())
	writeList(w, h.logger, "rewards", items, err)
}

// Active returns the rewards that can be redeemed.
func (h *RewardHandler) Active(w http.ResponseWriter, r *http.Request) {
	items, err := h.rewards.ListActive(r.Context())
	writeList(w, h.logger, "active rewards", items, err)
}

// Get resolves a reward by id, active or not.
func (h *RewardHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rw, err := h.rewards.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "reward", err)
		return
	}
	if rw == nil {
		notFound(w, "reward")
		return
	}
	writeJSON(w, http.StatusOK, rw)
}

func (h *RewardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in store.RewardInput
	if !decodeJSON(w, r, &in) {
		return
	}

	rw, err := h.rewards.Create(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, "reward", err)
		return
	}

	publish(r.Context(), h.events, events.EntityReward, events.ActionCreated, rw.ID)
	writeJSON(w, http.StatusCreated, rw)
}

func (h *RewardHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var p store.RewardPatch
	if !decodeJSON(w, r, &p) {
		return
	}

	rw, err := h.rewards.Update(r.Context(), id, p)
	if err != nil {
		writeError(w, h.logger, "reward", err)
		return
	}

	publish(r.Context(), h.events, events.EntityReward, events.ActionUpdated, id)
	writeJSON(w, http.StatusOK, rw)
}

// Toggle flips the active flag.
func (h *RewardHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	existing, err := h.rewards.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "reward", err)
		return
	}
	if existing == nil {
		notFound(w, "reward")
		return
	}

	rw, err := h.rewards.SetActive(r.Context(), id, !existing.Active)
	if err != nil {
		writeError(w, h.logger, "reward", err)
		return
	}

	publish(r.Context(), h.events, events.EntityReward, events.ActionToggled, id)
	writeJSON(w, http.StatusOK, rw)
}

// Delete removes the reward. Past redemptions keep their snapshot.
func (h *RewardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.rewards.Delete(r.Context(), id); err != nil {
		writeError(w, h.logger, "reward", err)
		return
	}

	publish(r.Context(), h.events, events.EntityReward, events.ActionDeleted, id)
	w.WriteHeader(http.StatusNoContent)
}
