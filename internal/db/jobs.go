package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jharjadi/docingest/internal/model"
)

// CreateJob inserts a new ProcessingJob in PENDING_UPLOAD status.
func CreateJob(ctx context.Context, q Querier, id, originalFilename, fileLocation string, gxBucketID *string, skipGxProcess bool) (*model.ProcessingJob, error) {
	job := &model.ProcessingJob{}
	err := q.QueryRow(ctx,
		`INSERT INTO processing_jobs
		   (id, original_filename, file_location, status, current_stage, gx_bucket_id, skip_gx_process, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, 'UPLOAD', $5, $6, now(), now())
		 RETURNING id, original_filename, file_location, status, current_stage, error_message, gx_bucket_id, skip_gx_process, created_at, updated_at`,
		id, originalFilename, fileLocation, model.JobPendingUpload, gxBucketID, skipGxProcess,
	).Scan(&job.ID, &job.OriginalFilename, &job.FileLocation, &job.Status, &job.CurrentStage,
		&job.ErrorMessage, &job.GxBucketID, &job.SkipGxProcess, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

// GetJob fetches a ProcessingJob by id.
func GetJob(ctx context.Context, q Querier, id string) (*model.ProcessingJob, error) {
	job := &model.ProcessingJob{}
	err := q.QueryRow(ctx,
		`SELECT id, original_filename, file_location, status, current_stage, error_message, gx_bucket_id, skip_gx_process, created_at, updated_at
		 FROM processing_jobs WHERE id = $1`,
		id,
	).Scan(&job.ID, &job.OriginalFilename, &job.FileLocation, &job.Status, &job.CurrentStage,
		&job.ErrorMessage, &job.GxBucketID, &job.SkipGxProcess, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}

// TransitionJobStatus performs the status-conditional UPDATE used as the
// job's lock (spec §4.1/§4.2): it only moves from->to if the row is still
// in the expected status, so two callers racing on the same job can't both
// win. RowsAffected()==0 means the caller lost the race or the row doesn't
// exist.
func TransitionJobStatus(ctx context.Context, q Querier, id string, from, to model.ProcessingJobStatus, stage string) (bool, error) {
	tag, err := q.Exec(ctx,
		`UPDATE processing_jobs
		 SET status = $1, current_stage = $2, updated_at = now()
		 WHERE id = $3 AND status = $4`,
		to, stage, id, from,
	)
	if err != nil {
		return false, fmt.Errorf("transition job %s %s->%s: %w", id, from, to, err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkJobFailed moves a job to FAILED. The reason is idempotent: a job
// already FAILED keeps its first recorded error_message (spec §4.2 --
// "transitions into FAILED are idempotent, repeated failures keep the
// first recorded reason").
func MarkJobFailed(ctx context.Context, q Querier, id, reason string) error {
	_, err := q.Exec(ctx,
		`UPDATE processing_jobs
		 SET status = 'FAILED',
		     error_message = CASE WHEN status = 'FAILED' THEN error_message ELSE $2 END,
		     updated_at = now()
		 WHERE id = $1`,
		id, reason,
	)
	if err != nil {
		return fmt.Errorf("mark job %s failed: %w", id, err)
	}
	return nil
}

// MarkJobCompleted moves a job to COMPLETED, but only from IN_PROGRESS;
// a job already FAILED or TERMINATED stays there (terminal states don't
// get overwritten by a late completion signal).
func MarkJobCompleted(ctx context.Context, q Querier, id string) (bool, error) {
	tag, err := q.Exec(ctx,
		`UPDATE processing_jobs
		 SET status = 'COMPLETED', current_stage = 'DONE', updated_at = now()
		 WHERE id = $1 AND status = 'IN_PROGRESS'`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("mark job %s completed: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListQueuedJobIDs returns ids of jobs in QUEUED status, oldest first.
func ListQueuedJobIDs(ctx context.Context, q Querier, limit int) ([]string, error) {
	return listJobIDsByStatus(ctx, q, "QUEUED", limit)
}

// ListInProgressJobIDs returns ids of jobs in IN_PROGRESS status, oldest
// first, swept by the lifecycle reconciler on every tick (spec §4.8 step
// 2) to catch completion decisions that weren't triggered eagerly by a
// file or GX status transition.
func ListInProgressJobIDs(ctx context.Context, q Querier, limit int) ([]string, error) {
	return listJobIDsByStatus(ctx, q, "IN_PROGRESS", limit)
}

func listJobIDsByStatus(ctx context.Context, q Querier, status string, limit int) ([]string, error) {
	rows, err := q.Query(ctx,
		`SELECT id FROM processing_jobs WHERE status = $1 ORDER BY created_at ASC LIMIT $2`,
		status, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list %s jobs: %w", status, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s job id: %w", status, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
