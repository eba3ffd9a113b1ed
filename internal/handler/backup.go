package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/starchart/internal/backup"
)

type BackupHandler struct {
	manager *backup.Manager
	logger  *slog.Logger
}

func NewBackupHandler(m *backup.Manager, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{manager: m, logger: logger}
}

func (h *BackupHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Status())
}

// Run takes a backup now and waits for it to finish.
func (h *BackupHandler) Run(w http.ResponseWriter, r *http.Request) {
	res, err := h.manager.Run(r.Context())
	switch {
	case errors.Is(err, backup.ErrDisabled):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	case errors.Is(err, backup.ErrInProgress):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case err != nil:
		h.logger.Error("manual backup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "backup failed"})
	default:
		writeJSON(w, http.StatusCreated, res)
	}
}

func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	names, err := h.manager.List(r.Context())
	if errors.Is(err, backup.ErrDisabled) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeList(w, h.logger, "backups", names, err)
}
