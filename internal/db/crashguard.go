package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RunCrashGuard marks stale FileMaster/ZipMaster rows as failed on startup
// (SPEC_FULL §A, adapted from the teacher's ingestion_runs crash guard).
//
// A row stuck in an in-flight status past its staleness window means the
// worker that claimed it (via the status-conditional UPDATE, spec §4.3/§4.4)
// died without finishing. The guard itself uses a status-conditional UPDATE
// so it never clobbers a row a live worker is still legitimately processing
// within the window.
func RunCrashGuard(ctx context.Context, pool *pgxpool.Pool, queuedTTLHours, runningStaleMin int) error {
	tag, err := pool.Exec(ctx,
		`UPDATE file_masters
		 SET file_processing_status = 'FAILED',
		     error_message = 'interrupted -- worker stopped responding (no heartbeat)',
		     updated_at = now()
		 WHERE file_processing_status = 'IN_PROGRESS'
		   AND updated_at < now() - make_interval(mins => $1)`,
		runningStaleMin,
	)
	if err != nil {
		return fmt.Errorf("crash guard (file_masters): %w", err)
	}
	if tag.RowsAffected() > 0 {
		slog.Warn("crash guard: marked stale in-progress file masters as failed",
			"count", tag.RowsAffected(),
			"stale_minutes", runningStaleMin,
		)
	}

	tag, err = pool.Exec(ctx,
		`UPDATE zip_masters
		 SET zip_processing_status = 'EXTRACTION_FAILED',
		     error_message = 'interrupted -- worker stopped responding (no heartbeat)',
		     updated_at = now()
		 WHERE zip_processing_status = 'EXTRACTING'
		   AND updated_at < now() - make_interval(mins => $1)`,
		runningStaleMin,
	)
	if err != nil {
		return fmt.Errorf("crash guard (zip_masters): %w", err)
	}
	if tag.RowsAffected() > 0 {
		slog.Warn("crash guard: marked stale extracting zip masters as failed",
			"count", tag.RowsAffected(),
			"stale_minutes", runningStaleMin,
		)
	}

	// Jobs stuck QUEUED past queuedTTLHours never reached a worker at all
	// (e.g. the SQS send never happened because the process crashed between
	// commit and post-commit dispatch -- spec §5 post-commit scheduling).
	tag, err = pool.Exec(ctx,
		`UPDATE processing_jobs
		 SET status = 'FAILED',
		     error_message = 'interrupted -- job was never picked up (service restarted)',
		     updated_at = now()
		 WHERE status = 'QUEUED'
		   AND updated_at < now() - make_interval(hours => $1)`,
		queuedTTLHours,
	)
	if err != nil {
		return fmt.Errorf("crash guard (processing_jobs): %w", err)
	}
	if tag.RowsAffected() > 0 {
		slog.Warn("crash guard: marked stale queued jobs as failed",
			"count", tag.RowsAffected(),
			"ttl_hours", queuedTTLHours,
		)
	}

	slog.Info("crash guard complete")
	return nil
}
