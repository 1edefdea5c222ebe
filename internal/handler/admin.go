package handler

import (
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jharjadi/docingest/internal/db"
	"github.com/jharjadi/docingest/internal/middleware"
	"github.com/jharjadi/docingest/internal/queue"
)

// AdminHandler handles the administrative termination endpoint (spec §4.9).
type AdminHandler struct {
	pool      *pgxpool.Pool
	zipQueue  *queue.Queue
	fileQueue *queue.Queue
}

func NewAdminHandler(pool *pgxpool.Pool, zipQueue, fileQueue *queue.Queue) *AdminHandler {
	return &AdminHandler{pool: pool, zipQueue: zipQueue, fileQueue: fileQueue}
}

type terminateResponse struct {
	Status string `json:"status"`
}

// Terminate handles POST /v1/admin/terminate -- terminateAll() (spec §4.9):
// flips every non-terminal row to TERMINATED in one transaction, then
// purges both queues. In-flight workers observe TERMINATED on their next
// status-conditional UPDATE and exit without side effects.
func (h *AdminHandler) Terminate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := middleware.AdminSubjectFromContext(ctx)

	if err := db.TerminateAll(ctx, h.pool); err != nil {
		slog.Error("terminate all failed", "error", err, "operator", subject)
		writeError(w, http.StatusInternalServerError, "internal", "failed to terminate jobs")
		return
	}

	if err := h.zipQueue.Purge(ctx); err != nil {
		slog.Error("failed to purge zip queue", "error", err, "operator", subject)
	}
	if err := h.fileQueue.Purge(ctx); err != nil {
		slog.Error("failed to purge file queue", "error", err, "operator", subject)
	}

	slog.Warn("terminate all executed", "event", "terminate_all", "operator", subject)
	writeJSON(w, http.StatusOK, terminateResponse{Status: "terminated"})
}
