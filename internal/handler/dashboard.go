package handler

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/starchart/internal/auth"
	"github.com/dukerupert/starchart/internal/model"
	"github.com/dukerupert/starchart/internal/pager"
	"github.com/dukerupert/starchart/internal/view"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"inc": func(n int) int { return n + 1 },
}).ParseFS(templateFS, "templates/*.html"))

// balanceResponse is the balance as a read returns it. A failed read still
// renders as zero with Degraded set.
type balanceResponse struct {
	model.Balance
	Degraded bool   `json:"degraded,omitempty"`
	Error    string `json:"error,omitempty"`
}

type pageResponse struct {
	pager.Page
	Degraded bool   `json:"degraded,omitempty"`
	Error    string `json:"error,omitempty"`
}

// DashboardHandler serves the signed-in session's own dashboard.
type DashboardHandler struct {
	views  *view.Registry
	roster model.Roster
	logger *slog.Logger
}

func NewDashboardHandler(views *view.Registry, roster model.Roster, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{views: views, roster: roster, logger: logger}
}

// Index renders the dashboard page.
func (h *DashboardHandler) Index(w http.ResponseWriter, r *http.Request) {
	snap := h.views.Get(auth.SessionID(r.Context())).Load(r.Context())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := templates.ExecuteTemplate(w, "dashboard.html", map[string]any{
		"Children": h.roster,
		"Snapshot": snap,
	})
	if err != nil {
		h.logger.Error("render dashboard", "error", err)
	}
}

// Snapshot loads every child's first page and the balance together.
func (h *DashboardHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	snap := h.views.Get(auth.SessionID(r.Context())).Load(r.Context())
	writeJSON(w, http.StatusOK, snap)
}

// Page moves one child's pager: ?action=init|next|prev|refresh.
func (h *DashboardHandler) Page(w http.ResponseWriter, r *http.Request) {
	child := strings.ToUpper(strings.TrimSpace(r.PathValue("child")))
	action, err := pager.ParseAction(r.URL.Query().Get("action"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	d := h.views.Get(auth.SessionID(r.Context()))
	resp, err := readPage(r.Context(), d, child, action, h.logger)
	if errors.Is(err, view.ErrUnknownChild) {
		notFound(w, "child")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *DashboardHandler) Balance(w http.ResponseWriter, r *http.Request) {
	d := h.views.Get(auth.SessionID(r.Context()))
	writeJSON(w, http.StatusOK, readBalance(r.Context(), d, h.logger))
}

// readPage applies action to child's pager. Fetch failures come back as a
// degraded empty page; only an unknown child is returned as an error.
func readPage(ctx context.Context, d *view.Dashboard, child string, action pager.Action, logger *slog.Logger) (pageResponse, error) {
	page, err := d.Page(ctx, child, action)
	if errors.Is(err, view.ErrUnknownChild) {
		return pageResponse{}, err
	}
	if err != nil {
		logger.Warn("read page", "child", child, "action", action, "error", err)
		return pageResponse{
			Page:     pager.Page{Child: child, Tasks: []model.Task{}},
			Degraded: true,
			Error:    "failed to load tasks",
		}, nil
	}
	return pageResponse{Page: page}, nil
}

func readBalance(ctx context.Context, d *view.Dashboard, logger *slog.Logger) balanceResponse {
	b, err := d.Balance(ctx)
	if err != nil {
		logger.Warn("read balance", "error", err)
		return balanceResponse{Balance: b, Degraded: true, Error: "failed to load balance"}
	}
	return balanceResponse{Balance: b}
}
