package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jharjadi/docingest/internal/model"
)

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanFileMaster reads one file_masters row, translating a NULL file_hash
// column (entries rejected before content hashing, spec §4.3 step 2) back
// to FileMaster.FileHash's zero value.
func scanFileMaster(s scanner, f *model.FileMaster) error {
	var hash *string
	if err := s.Scan(&f.ID, &f.ZipMasterID, &f.ProcessingJobID, &f.GxBucketID, &f.DuplicateOfFileID,
		&f.FileLocation, &f.FileName, &f.FileSize, &f.Extension, &hash, &f.FileProcessingStatus,
		&f.ErrorMessage, &f.SourceType, &f.Depth, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return err
	}
	if hash != nil {
		f.FileHash = *hash
	}
	return nil
}

// CreateFileMaster inserts a FileMaster, deduplicating on (dedup scope,
// file hash) via a partial unique index (spec §3, §4.3/§4.4). dedupScope is
// f.BucketKey(): the GX bucket id for bucketed jobs, or a synthetic
// "bulk-<jobID>" scope for bulk jobs, so dedup never crosses buckets.
//
// On a fresh hash the row is inserted QUEUED and returned with
// isDuplicate=false. On a conflict a new row is inserted instead, with
// status DUPLICATE, a NULL file_hash and duplicate_of_file_id pointing at
// the row already holding that scope+hash; that new row is returned with
// isDuplicate=true -- this mirrors the teacher's getOrCreateDocument
// insert-on-conflict pattern, generalized to the two-column dedup key.
func CreateFileMaster(ctx context.Context, q Querier, f *model.FileMaster) (*model.FileMaster, bool, error) {
	dedupScope := f.BucketKey()

	// An empty hash (entries rejected by name/extension validation before
	// content is ever hashed) must store as SQL NULL, not "", so distinct
	// rejected entries in the same scope never collide on the partial
	// unique index.
	var hash interface{}
	if f.FileHash != "" {
		hash = f.FileHash
	}

	row := &model.FileMaster{}
	err := scanFileMaster(q.QueryRow(ctx,
		`INSERT INTO file_masters
		   (zip_master_id, processing_job_id, gx_bucket_id, dedup_scope, file_location, file_name,
		    file_size, extension, file_hash, file_processing_status, source_type, depth, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
		 ON CONFLICT (dedup_scope, file_hash) WHERE file_hash IS NOT NULL DO NOTHING
		 RETURNING id, zip_master_id, processing_job_id, gx_bucket_id, duplicate_of_file_id, file_location,
		   file_name, file_size, extension, file_hash, file_processing_status, error_message, source_type,
		   depth, created_at, updated_at`,
		f.ZipMasterID, f.ProcessingJobID, f.GxBucketID, dedupScope, f.FileLocation, f.FileName,
		f.FileSize, f.Extension, hash, model.FileQueued, f.SourceType, f.Depth,
	), row)

	if err == nil {
		return row, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("create file master: %w", err)
	}

	// ON CONFLICT DO NOTHING produced no row: an existing file already
	// occupies this scope+hash. Find it and insert our row as a DUPLICATE
	// pointing at it.
	original := &model.FileMaster{}
	err = q.QueryRow(ctx,
		`SELECT id FROM file_masters WHERE dedup_scope = $1 AND file_hash = $2 AND file_processing_status != 'DUPLICATE' LIMIT 1`,
		dedupScope, f.FileHash,
	).Scan(&original.ID)
	if err != nil {
		return nil, false, fmt.Errorf("find dedup original for scope %s hash %s: %w", dedupScope, f.FileHash, err)
	}

	// A DUPLICATE row is stored with a NULL file_hash, not the real one:
	// the partial unique index only applies WHERE file_hash IS NOT NULL,
	// so a second (or third...) duplicate for the same scope+hash never
	// collides with this insert the way it would against the original's
	// own row.
	err = scanFileMaster(q.QueryRow(ctx,
		`INSERT INTO file_masters
		   (zip_master_id, processing_job_id, gx_bucket_id, dedup_scope, duplicate_of_file_id, file_location, file_name,
		    file_size, extension, file_hash, file_processing_status, source_type, depth, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULL, $10, $11, $12, now(), now())
		 RETURNING id, zip_master_id, processing_job_id, gx_bucket_id, duplicate_of_file_id, file_location,
		   file_name, file_size, extension, file_hash, file_processing_status, error_message, source_type,
		   depth, created_at, updated_at`,
		f.ZipMasterID, f.ProcessingJobID, f.GxBucketID, dedupScope, original.ID, f.FileLocation, f.FileName,
		f.FileSize, f.Extension, model.FileDuplicate, f.SourceType, f.Depth,
	), row)
	if err != nil {
		return nil, false, fmt.Errorf("create duplicate file master: %w", err)
	}
	return row, true, nil
}

// GetFileMaster fetches a FileMaster by id.
func GetFileMaster(ctx context.Context, q Querier, id int64) (*model.FileMaster, error) {
	f := &model.FileMaster{}
	err := scanFileMaster(q.QueryRow(ctx,
		`SELECT id, zip_master_id, processing_job_id, gx_bucket_id, duplicate_of_file_id, file_location,
		   file_name, file_size, extension, file_hash, file_processing_status, error_message, source_type,
		   depth, created_at, updated_at
		 FROM file_masters WHERE id = $1`,
		id,
	), f)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("file master %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get file master %d: %w", id, err)
	}
	return f, nil
}

// LockFile claims a FileMaster for processing via the status-conditional
// UPDATE QUEUED -> IN_PROGRESS (spec §4.4 step 1).
func LockFile(ctx context.Context, q Querier, id int64) (claimed bool, err error) {
	tag, err := q.Exec(ctx,
		`UPDATE file_masters SET file_processing_status = 'IN_PROGRESS', updated_at = now()
		 WHERE id = $1 AND file_processing_status = $2`,
		id, model.FileQueued,
	)
	if err != nil {
		return false, fmt.Errorf("lock file master %d: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateFileStatus moves a FileMaster to a terminal or intermediate status.
func UpdateFileStatus(ctx context.Context, q Querier, id int64, status model.FileStatus, errMsg string) error {
	_, err := q.Exec(ctx,
		`UPDATE file_masters SET file_processing_status = $1, error_message = $2, updated_at = now() WHERE id = $3`,
		status, errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("update file master %d status to %s: %w", id, status, err)
	}
	return nil
}

// CountNonTerminalFiles returns how many FileMaster rows under jobID have
// not yet reached a terminal status, used by the job-completion check
// (spec §4.2: a job completes once every file it owns is terminal).
func CountNonTerminalFiles(ctx context.Context, q Querier, jobID string) (int, error) {
	var n int
	err := q.QueryRow(ctx,
		`SELECT count(*) FROM file_masters
		 WHERE processing_job_id = $1
		   AND file_processing_status NOT IN ('COMPLETED', 'FAILED', 'DUPLICATE', 'IGNORED', 'TERMINATED')`,
		jobID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count non-terminal files for job %s: %w", jobID, err)
	}
	return n, nil
}

// AnyFileFailed reports whether any FileMaster under jobID ended FAILED,
// used to decide whether a completed job's overall outcome is COMPLETED
// or FAILED (spec §4.2).
func AnyFileFailed(ctx context.Context, q Querier, jobID string) (bool, error) {
	var n int
	err := q.QueryRow(ctx,
		`SELECT count(*) FROM file_masters WHERE processing_job_id = $1 AND file_processing_status = 'FAILED'`,
		jobID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check failed files for job %s: %w", jobID, err)
	}
	return n > 0, nil
}

// ListExtractedChildren returns every FileMaster row whose zip_master_id is
// zipMasterID, in id order: the archive's own entries plus any children
// fanned out from them, which inherit the same zip_master_id.
func ListExtractedChildren(ctx context.Context, q Querier, zipMasterID int64) ([]*model.FileMaster, error) {
	rows, err := q.Query(ctx,
		`SELECT id, zip_master_id, processing_job_id, gx_bucket_id, duplicate_of_file_id, file_location,
		   file_name, file_size, extension, file_hash, file_processing_status, error_message, source_type,
		   depth, created_at, updated_at
		 FROM file_masters WHERE zip_master_id = $1 ORDER BY id ASC`,
		zipMasterID,
	)
	if err != nil {
		return nil, fmt.Errorf("list extracted children of zip master %d: %w", zipMasterID, err)
	}
	defer rows.Close()

	var out []*model.FileMaster
	for rows.Next() {
		f := &model.FileMaster{}
		if err := scanFileMaster(rows, f); err != nil {
			return nil, fmt.Errorf("scan extracted child: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
