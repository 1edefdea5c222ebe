package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jharjadi/docingest/internal/db"
	"github.com/jharjadi/docingest/internal/model"
)

// ViewHandler handles the read-only DocumentProcessingView endpoint
// (spec §3, SPEC_FULL §C), shaped on the teacher's document-list handler.
type ViewHandler struct {
	pool *pgxpool.Pool
}

func NewViewHandler(pool *pgxpool.Pool) *ViewHandler {
	return &ViewHandler{pool: pool}
}

type viewResponse struct {
	Rows []model.DocumentProcessingRow `json:"rows"`
}

// List handles GET /v1/admin/view?jobId=&page=&limit=.
func (h *ViewHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobID := r.URL.Query().Get("jobId")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	pg := model.DefaultPagination(page, limit)

	rows, err := db.ListDocumentProcessingView(ctx, h.pool, jobID, pg)
	if err != nil {
		slog.Error("failed to list document processing view", "error", err, "job_id", jobID)
		writeError(w, http.StatusInternalServerError, "internal", "failed to list documents")
		return
	}

	writeJSON(w, http.StatusOK, viewResponse{Rows: rows})
}
