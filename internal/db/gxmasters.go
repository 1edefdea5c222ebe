package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jharjadi/docingest/internal/model"
)

// CreateGxMaster inserts a GxMaster row in QUEUED_FOR_UPLOAD status, the
// artifact-publish step at the end of the per-file pipeline (spec §4.4).
func CreateGxMaster(ctx context.Context, q Querier, sourceFileID int64, gxBucketID *string, fileLocation, processedFileName string, fileSize int64, extension string) (*model.GxMaster, error) {
	g := &model.GxMaster{}
	err := q.QueryRow(ctx,
		`INSERT INTO gx_masters
		   (source_file_id, gx_bucket_id, file_location, processed_file_name, file_size, extension, gx_status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		 RETURNING id, source_file_id, gx_bucket_id, file_location, processed_file_name, file_size, extension, gx_status, gx_process_id, error_message, created_at`,
		sourceFileID, gxBucketID, fileLocation, processedFileName, fileSize, extension, model.GxQueuedForUpload,
	).Scan(&g.ID, &g.SourceFileID, &g.GxBucketID, &g.FileLocation, &g.ProcessedFileName, &g.FileSize,
		&g.Extension, &g.GxStatus, &g.GxProcessID, &g.ErrorMessage, &g.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create gx master: %w", err)
	}
	return g, nil
}

// GetGxMaster fetches a GxMaster by id.
func GetGxMaster(ctx context.Context, q Querier, id int64) (*model.GxMaster, error) {
	g := &model.GxMaster{}
	err := q.QueryRow(ctx,
		`SELECT id, source_file_id, gx_bucket_id, file_location, processed_file_name, file_size, extension, gx_status, gx_process_id, error_message, created_at
		 FROM gx_masters WHERE id = $1`,
		id,
	).Scan(&g.ID, &g.SourceFileID, &g.GxBucketID, &g.FileLocation, &g.ProcessedFileName, &g.FileSize,
		&g.Extension, &g.GxStatus, &g.GxProcessID, &g.ErrorMessage, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("gx master %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get gx master %d: %w", id, err)
	}
	return g, nil
}

// ListQueuedForUpload returns up to maxProcess GxMaster rows in
// QUEUED_FOR_UPLOAD status, oldest first, respecting the gx.maxProcess
// concurrency cap the upload scheduler enforces (spec §4.7).
func ListQueuedForUpload(ctx context.Context, q Querier, maxProcess int) ([]*model.GxMaster, error) {
	rows, err := q.Query(ctx,
		`SELECT id, source_file_id, gx_bucket_id, file_location, processed_file_name, file_size, extension, gx_status, gx_process_id, error_message, created_at
		 FROM gx_masters WHERE gx_status = $1 ORDER BY created_at ASC LIMIT $2`,
		model.GxQueuedForUpload, maxProcess,
	)
	if err != nil {
		return nil, fmt.Errorf("list queued-for-upload gx masters: %w", err)
	}
	defer rows.Close()

	var out []*model.GxMaster
	for rows.Next() {
		g := &model.GxMaster{}
		if err := rows.Scan(&g.ID, &g.SourceFileID, &g.GxBucketID, &g.FileLocation, &g.ProcessedFileName,
			&g.FileSize, &g.Extension, &g.GxStatus, &g.GxProcessID, &g.ErrorMessage, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan queued gx master: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// CountInFlight returns how many GxMaster rows are currently QUEUED or
// PROCESSING at GX, the live count the upload scheduler subtracts from
// gx.maxProcess before claiming more work.
func CountInFlight(ctx context.Context, q Querier) (int, error) {
	var n int
	err := q.QueryRow(ctx,
		`SELECT count(*) FROM gx_masters WHERE gx_status IN ('QUEUED', 'PROCESSING')`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count in-flight gx masters: %w", err)
	}
	return n, nil
}

// LockGxUpload claims a GxMaster for the upload scheduler via the
// status-conditional UPDATE QUEUED_FOR_UPLOAD -> QUEUED.
func LockGxUpload(ctx context.Context, q Querier, id int64) (bool, error) {
	tag, err := q.Exec(ctx,
		`UPDATE gx_masters SET gx_status = 'QUEUED' WHERE id = $1 AND gx_status = $2`,
		id, model.GxQueuedForUpload,
	)
	if err != nil {
		return false, fmt.Errorf("lock gx master %d for upload: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateGxStatus moves a GxMaster to a new status, optionally recording the
// GX processId assigned at upload time and/or an error message.
func UpdateGxStatus(ctx context.Context, q Querier, id int64, status model.GxStatus, processID *string, errMsg string) error {
	_, err := q.Exec(ctx,
		`UPDATE gx_masters SET gx_status = $1, gx_process_id = COALESCE($2, gx_process_id), error_message = $3 WHERE id = $4`,
		status, processID, errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("update gx master %d status to %s: %w", id, status, err)
	}
	return nil
}

// CountNonTerminalGx returns how many GxMaster rows under jobID have not
// yet reached a terminal status, used by job-completion determination
// (spec §4.2, §4.8) when skipGxProcess is false.
func CountNonTerminalGx(ctx context.Context, q Querier, jobID string) (int, error) {
	var n int
	err := q.QueryRow(ctx,
		`SELECT count(*) FROM gx_masters g JOIN file_masters f ON g.source_file_id = f.id
		 WHERE f.processing_job_id = $1
		   AND g.gx_status NOT IN ('COMPLETE', 'SKIPPED', 'ERROR', 'CANCELLED', 'TERMINATED')`,
		jobID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count non-terminal gx masters for job %s: %w", jobID, err)
	}
	return n, nil
}

// AnyGxFailed reports whether any GxMaster under jobID ended in a
// terminal-but-unsuccessful status (spec §4.2, §4.8 job outcome rule).
func AnyGxFailed(ctx context.Context, q Querier, jobID string) (bool, error) {
	var n int
	err := q.QueryRow(ctx,
		`SELECT count(*) FROM gx_masters g JOIN file_masters f ON g.source_file_id = f.id
		 WHERE f.processing_job_id = $1 AND g.gx_status IN ('ERROR', 'CANCELLED', 'TERMINATED')`,
		jobID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check failed gx masters for job %s: %w", jobID, err)
	}
	return n > 0, nil
}

// ListInFlightProcesses returns GxMaster rows whose gx_process_id has been
// assigned but which haven't reached a terminal status, for the lifecycle
// reconciler to poll GX about (spec §4.8).
func ListInFlightProcesses(ctx context.Context, q Querier, limit int) ([]*model.GxMaster, error) {
	rows, err := q.Query(ctx,
		`SELECT id, source_file_id, gx_bucket_id, file_location, processed_file_name, file_size, extension, gx_status, gx_process_id, error_message, created_at
		 FROM gx_masters
		 WHERE gx_process_id IS NOT NULL AND gx_status NOT IN ('COMPLETE', 'SKIPPED', 'ERROR', 'CANCELLED', 'TERMINATED')
		 ORDER BY created_at ASC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list in-flight gx processes: %w", err)
	}
	defer rows.Close()

	var out []*model.GxMaster
	for rows.Next() {
		g := &model.GxMaster{}
		if err := rows.Scan(&g.ID, &g.SourceFileID, &g.GxBucketID, &g.FileLocation, &g.ProcessedFileName,
			&g.FileSize, &g.Extension, &g.GxStatus, &g.GxProcessID, &g.ErrorMessage, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan in-flight gx master: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
