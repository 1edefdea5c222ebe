package db

import (
	"context"
	"fmt"

	"github.com/jharjadi/docingest/internal/model"
)

// ListDocumentProcessingView returns the derived read-model that UNIONs
// FileMaster rows which never reached GX ("Ingestion") with GxMaster rows
// ("GroundX"), normalizing both into one displayStatus per row (spec §3,
// SPEC_FULL §C). jobID, when non-empty, scopes the view to one job.
func ListDocumentProcessingView(ctx context.Context, q Querier, jobID string, page model.Pagination) ([]model.DocumentProcessingRow, error) {
	rows, err := q.Query(ctx,
		`SELECT * FROM (
		   SELECT 'Ingestion' AS source,
		          fm.processing_job_id,
		          fm.id AS file_master_id,
		          NULL::bigint AS gx_master_id,
		          fm.file_name,
		          fm.file_processing_status::text AS display_status,
		          fm.error_message,
		          fm.created_at,
		          fm.updated_at
		   FROM file_masters fm
		   LEFT JOIN gx_masters gm ON gm.source_file_id = fm.id
		   WHERE gm.id IS NULL AND ($1 = '' OR fm.processing_job_id = $1)

		   UNION ALL

		   SELECT 'GroundX' AS source,
		          fm.processing_job_id,
		          fm.id AS file_master_id,
		          gm.id AS gx_master_id,
		          gm.processed_file_name AS file_name,
		          gm.gx_status::text AS display_status,
		          gm.error_message,
		          gm.created_at,
		          gm.created_at AS updated_at
		   FROM gx_masters gm
		   JOIN file_masters fm ON fm.id = gm.source_file_id
		   WHERE $1 = '' OR fm.processing_job_id = $1
		 ) combined
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		jobID, page.Limit, page.Offset(),
	)
	if err != nil {
		return nil, fmt.Errorf("list document processing view: %w", err)
	}
	defer rows.Close()

	var out []model.DocumentProcessingRow
	for rows.Next() {
		var r model.DocumentProcessingRow
		if err := rows.Scan(&r.Source, &r.ProcessingJobID, &r.FileMasterID, &r.GxMasterID, &r.FileName,
			&r.DisplayStatus, &r.ErrorMessage, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document processing row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
