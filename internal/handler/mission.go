package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/starchart/internal/events"
	"github.com/dukerupert/starchart/internal/store"
)

type MissionHandler struct {
	missions *store.MissionStore
	events   events.Publisher
	logger   *slog.Logger
}

func NewMissionHandler(ms *store.MissionStore, pub events.Publisher, logger *slog.Logger) *MissionHandler {
	return &MissionHandler{missions: ms, events: pub, logger: logger}
}

// List returns every mission, including inactive ones, for the management view.
func (h *MissionHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.missions.List(r.Context())
	writeList(w, h.logger, "missions", items, err)
}

// Active returns the missions offered for completion.
func (h *MissionHandler) Active(w http.ResponseWriter, r *http.Request) {
	items, err := h.missions.ListActive(r.Context())
	writeList(w, h.logger, "active missions", items, err)
}

// Get resolves a mission by id, active or not.
func (h *MissionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	m, err := h.missions.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "mission", err)
		return
	}
	if m == nil {
		notFound(w, "mission")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *MissionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in store.MissionInput
	if !decodeJSON(w, r, &in) {
		return
	}

	m, err := h.missions.Create(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, "mission", err)
		return
	}

	publish(r.Context(), h.events, events.EntityMission, events.ActionCreated, m.ID)
	writeJSON(w, http.StatusCreated, m)
}

func (h *MissionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var p store.MissionPatch
	if !decodeJSON(w, r, &p) {
		return
	}

	m, err := h.missions.Update(r.Context(), id, p)
	if err != nil {
		writeError(w, h.logger, "mission", err)
		return
	}

	publish(r.Context(), h.events, events.EntityMission, events.ActionUpdated, id)
	writeJSON(w, http.StatusOK, m)
}

// Toggle flips the active flag.
func (h *MissionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	existing, err := h.missions.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "mission", err)
		return
	}
	if existing == nil {
		notFound(w, "mission")
		return
	}

	m, err := h.missions.SetActive(r.Context(), id, !existing.Active)
	if err != nil {
		writeError(w, h.logger, "mission", err)
		return
	}

	publish(r.Context(), h.events, events.EntityMission, events.ActionToggled, id)
	writeJSON(w, http.StatusOK, m)
}

// Delete removes the mission. Tasks it produced keep their snapshot.
func (h *MissionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.missions.Delete(r.Context(), id); err != nil {
		writeError(w, h.logger, "mission", err)
		return
	}

	publish(r.Context(), h.events, events.EntityMission, events.ActionDeleted, id)
	w.WriteHeader(http.StatusNoContent)
}
