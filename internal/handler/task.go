package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/starchart/internal/auth"
	"github.com/dukerupert/starchart/internal/events"
	"github.com/dukerupert/starchart/internal/model"
	"github.com/dukerupert/starchart/internal/pager"
	"github.com/dukerupert/starchart/internal/store"
	"github.com/dukerupert/starchart/internal/view"
)

type TaskHandler struct {
	tasks    *store.TaskStore
	missions *store.MissionStore
	views    *view.Registry
	events   events.Publisher
	logger   *slog.Logger
}

func NewTaskHandler(ts *store.TaskStore, ms *store.MissionStore, views *view.Registry, pub events.Publisher, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: ts, missions: ms, views: views, events: pub, logger: logger}
}

// taskResult is returned by every task mutation: the write, plus the
// child's page and the balance as they look afterwards.
type taskResult struct {
	Task    *model.Task     `json:"task,omitempty"`
	Page    *pageResponse   `json:"page,omitempty"`
	Balance balanceResponse `json:"balance"`
}

type completeRequest struct {
	MissionID string `json:"mission_id"`
	Child     string `json:"child_name"`
	Date      string `json:"date"`
}

// Complete records a mission as done by a child. The mission's description
// and amount are copied onto the task.
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	missionID := strings.TrimSpace(req.MissionID)
	if missionID == "" {
		writeJSON(w, http.StatusBadRequest, validationResponse{
			Error:  "validation failed",
			Fields: []store.FieldError{{Field: "mission_id", Error: "mission_id is required"}},
		})
		return
	}

	m, err := h.missions.GetByID(r.Context(), missionID)
	if err != nil {
		writeError(w, h.logger, "mission", err)
		return
	}
	if m == nil {
		notFound(w, "mission")
		return
	}
	if !m.Active {
		writeJSON(w, http.StatusBadRequest, validationResponse{
			Error:  "validation failed",
			Fields: []store.FieldError{{Field: "mission_id", Error: "mission is not active"}},
		})
		return
	}

	h.create(w, r, store.TaskInput{
		Child:       req.Child,
		Date:        req.Date,
		StarDollars: m.StarDollars,
		MissionID:   m.ID,
		Description: m.Description,
	})
}

type legacyRequest struct {
	Child       string `json:"child_name"`
	Date        string `json:"date"`
	Description string `json:"description"`
	StarDollars int    `json:"star_dollars"`
}

// CreateLegacy records a free-text chore with no mission behind it.
func (h *TaskHandler) CreateLegacy(w http.ResponseWriter, r *http.Request) {
	var req legacyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.create(w, r, store.TaskInput{
		Child:       req.Child,
		Date:        req.Date,
		StarDollars: req.StarDollars,
		Description: req.Description,
	})
}

func (h *TaskHandler) create(w http.ResponseWriter, r *http.Request, in store.TaskInput) {
	t, err := h.tasks.Create(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, "task", err)
		return
	}
	publish(r.Context(), h.events, events.EntityTask, events.ActionCreated, t.ID)

	// The new task may belong anywhere in the history; start the child's
	// pager over so it shows up.
	writeJSON(w, http.StatusCreated, h.result(r, t, t.Child, pager.Init))
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	t, err := h.tasks.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "task", err)
		return
	}
	if t == nil {
		notFound(w, "task")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Delete removes a task, then refreshes the owning child's page in place.
// Deleting an unknown id succeeds and only the balance is returned.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	existing, err := h.tasks.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Warn("look up task before delete", "id", id, "error", err)
	}

	if err := h.tasks.Delete(r.Context(), id); err != nil {
		writeError(w, h.logger, "task", err)
		return
	}
	publish(r.Context(), h.events, events.EntityTask, events.ActionDeleted, id)

	child := ""
	if existing != nil {
		child = existing.Child
	}
	writeJSON(w, http.StatusOK, h.result(r, nil, child, pager.Refresh))
}

func (h *TaskHandler) result(r *http.Request, t *model.Task, child string, action pager.Action) taskResult {
	d := h.views.Get(auth.SessionID(r.Context()))
	res := taskResult{Task: t}
	if child != "" {
		if page, err := readPage(r.Context(), d, child, action, h.logger); err == nil {
			res.Page = &page
		}
	}
	res.Balance = readBalance(r.Context(), d, h.logger)
	return res
}
