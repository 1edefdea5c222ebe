package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jharjadi/docingest/internal/model"
)

// CreateZipMaster inserts a ZipMaster row in QUEUED_FOR_EXTRACTION status.
func CreateZipMaster(ctx context.Context, q Querier, jobID string, gxBucketID *string, filePath, fileName string, fileSize int64) (*model.ZipMaster, error) {
	z := &model.ZipMaster{}
	err := q.QueryRow(ctx,
		`INSERT INTO zip_masters
		   (processing_job_id, gx_bucket_id, zip_processing_status, original_file_path, original_file_name, file_size, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		 RETURNING id, processing_job_id, gx_bucket_id, zip_processing_status, original_file_path, original_file_name, file_size, error_message, created_at, updated_at`,
		jobID, gxBucketID, model.ZipQueuedForExtraction, filePath, fileName, fileSize,
	).Scan(&z.ID, &z.ProcessingJobID, &z.GxBucketID, &z.ZipProcessingStatus, &z.OriginalFilePath,
		&z.OriginalFileName, &z.FileSize, &z.ErrorMessage, &z.CreatedAt, &z.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create zip master: %w", err)
	}
	return z, nil
}

// GetZipMaster fetches a ZipMaster by id.
func GetZipMaster(ctx context.Context, q Querier, id int64) (*model.ZipMaster, error) {
	z := &model.ZipMaster{}
	err := q.QueryRow(ctx,
		`SELECT id, processing_job_id, gx_bucket_id, zip_processing_status, original_file_path, original_file_name, file_size, error_message, created_at, updated_at
		 FROM zip_masters WHERE id = $1`,
		id,
	).Scan(&z.ID, &z.ProcessingJobID, &z.GxBucketID, &z.ZipProcessingStatus, &z.OriginalFilePath,
		&z.OriginalFileName, &z.FileSize, &z.ErrorMessage, &z.CreatedAt, &z.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("zip master %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get zip master %d: %w", id, err)
	}
	return z, nil
}

// LockZipMaster claims a ZipMaster for extraction via the status-conditional
// UPDATE QUEUED_FOR_EXTRACTION -> EXTRACTING (spec §4.3 step 1). Only the
// worker whose UPDATE actually affected the row owns the extraction; any
// other worker racing on the same row gets claimed=false and moves on.
func LockZipMaster(ctx context.Context, q Querier, id int64) (claimed bool, err error) {
	tag, err := q.Exec(ctx,
		`UPDATE zip_masters
		 SET zip_processing_status = 'EXTRACTING', updated_at = now()
		 WHERE id = $1 AND zip_processing_status = $2`,
		id, model.ZipQueuedForExtraction,
	)
	if err != nil {
		return false, fmt.Errorf("lock zip master %d: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateZipStatus moves a ZipMaster to a terminal or intermediate status,
// recording errMsg when non-empty.
func UpdateZipStatus(ctx context.Context, q Querier, id int64, status model.ZipStatus, errMsg string) error {
	_, err := q.Exec(ctx,
		`UPDATE zip_masters SET zip_processing_status = $1, error_message = $2, updated_at = now() WHERE id = $3`,
		status, errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("update zip master %d status to %s: %w", id, status, err)
	}
	return nil
}
