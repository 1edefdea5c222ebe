// Package lifecycle implements the job-completion and failure-propagation
// logic shared by the per-file pipeline, the ZIP consumer, and the
// scheduled reconciler (spec §4.2, §4.8). A job transitions out of
// IN_PROGRESS only once every FileMaster and (unless skipGxProcess) every
// GxMaster it owns has reached a terminal status.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jharjadi/docingest/internal/db"
	"github.com/jharjadi/docingest/internal/model"
)

// Manager decides job outcomes against the pool directly rather than any
// caller's transaction, so a completion or failure decision stays durable
// even when the transaction that triggered it aborts (spec §4.8).
type Manager struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Manager {
	return &Manager{pool: pool}
}

// FailFile flips a FileMaster to FAILED and eagerly checks whether that
// was the job's last non-terminal child, so a single-file job fails
// immediately rather than waiting for the next reconciler tick (spec §4.4
// step 5, §8 scenario 5).
func (m *Manager) FailFile(ctx context.Context, fileMasterID int64, reason string) error {
	fm, err := db.GetFileMaster(ctx, m.pool, fileMasterID)
	if err != nil {
		return fmt.Errorf("load file master %d for failure: %w", fileMasterID, err)
	}
	if err := db.UpdateFileStatus(ctx, m.pool, fileMasterID, model.FileFailed, reason); err != nil {
		return err
	}
	return m.TryCompleteJob(ctx, fm.ProcessingJobID)
}

// FailGx flips a GxMaster to ERROR and, since that's a terminal status,
// checks whether it was the job's last non-terminal child (spec §4.7 error
// branches, §4.8 job outcome rule).
func (m *Manager) FailGx(ctx context.Context, gxMasterID int64, reason string) error {
	if err := db.UpdateGxStatus(ctx, m.pool, gxMasterID, model.GxError, nil, reason); err != nil {
		return err
	}
	return m.AfterGxTransition(ctx, gxMasterID)
}

// AfterGxTransition checks whether gxMasterID's current status is terminal
// and, if so, tries to complete the job that owns it. The upload
// scheduler (success and, through FailGx, failure) and the lifecycle
// reconciler's fetch-status update invoke it after their GxMaster status
// writes so a job completes as soon as
// its last child goes terminal rather than waiting for the next sweep.
func (m *Manager) AfterGxTransition(ctx context.Context, gxMasterID int64) error {
	g, err := db.GetGxMaster(ctx, m.pool, gxMasterID)
	if err != nil {
		return fmt.Errorf("load gx master %d: %w", gxMasterID, err)
	}
	if !model.TerminalGxStatuses[g.GxStatus] {
		return nil
	}
	fm, err := db.GetFileMaster(ctx, m.pool, g.SourceFileID)
	if err != nil {
		return fmt.Errorf("load file master %d for gx master %d: %w", g.SourceFileID, gxMasterID, err)
	}
	return m.TryCompleteJob(ctx, fm.ProcessingJobID)
}

// TryCompleteJob checks whether jobID's children are all terminal and, if
// so, moves the job to COMPLETED or FAILED (spec §4.2, §4.8 job outcome
// rule: "COMPLETED iff every terminal child is successful, FAILED
// otherwise"). It is a no-op if the job isn't IN_PROGRESS or still has
// non-terminal children.
func (m *Manager) TryCompleteJob(ctx context.Context, jobID string) error {
	job, err := db.GetJob(ctx, m.pool, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	if job.Status != model.JobInProgress {
		return nil
	}

	nFiles, err := db.CountNonTerminalFiles(ctx, m.pool, jobID)
	if err != nil {
		return err
	}
	if nFiles > 0 {
		return nil
	}

	filesFailed, err := db.AnyFileFailed(ctx, m.pool, jobID)
	if err != nil {
		return err
	}

	gxFailed := false
	if !job.SkipGxProcess {
		nGx, err := db.CountNonTerminalGx(ctx, m.pool, jobID)
		if err != nil {
			return err
		}
		if nGx > 0 {
			return nil
		}
		gxFailed, err = db.AnyGxFailed(ctx, m.pool, jobID)
		if err != nil {
			return err
		}
	}

	if filesFailed || gxFailed {
		slog.Warn("job failed", "event", "job_failed", "job_id", jobID)
		return db.MarkJobFailed(ctx, m.pool, jobID, "one or more files failed to process")
	}

	ok, err := db.MarkJobCompleted(ctx, m.pool, jobID)
	if err != nil {
		return err
	}
	if ok {
		slog.Info("job completed", "event", "job_completed", "job_id", jobID)
	}
	return nil
}
