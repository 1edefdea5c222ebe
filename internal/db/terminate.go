package db

import (
	"context"
	"fmt"
)

// TerminateAll switches every non-terminal ProcessingJob, FileMaster,
// GxMaster, and ZipMaster to TERMINATED in one transaction (spec §4.9). It
// does not touch the queues -- callers purge those separately once this
// commits, since queue purges aren't transactional with the database.
// In-flight workers observe TERMINATED on their next status-conditional
// UPDATE and exit without side effects; no explicit signalling is needed.
func TerminateAll(ctx context.Context, q Querier) error {
	statements := []string{
		`UPDATE processing_jobs SET status = 'TERMINATED', updated_at = now()
		 WHERE status NOT IN ('COMPLETED', 'FAILED', 'TERMINATED')`,
		`UPDATE file_masters SET file_processing_status = 'TERMINATED', updated_at = now()
		 WHERE file_processing_status NOT IN ('COMPLETED', 'FAILED', 'DUPLICATE', 'IGNORED', 'TERMINATED')`,
		`UPDATE gx_masters SET gx_status = 'TERMINATED'
		 WHERE gx_status NOT IN ('COMPLETE', 'SKIPPED', 'ERROR', 'CANCELLED', 'TERMINATED')`,
		`UPDATE zip_masters SET zip_processing_status = 'TERMINATED', updated_at = now()
		 WHERE zip_processing_status NOT IN ('EXTRACTED', 'EXTRACTION_FAILED', 'TERMINATED')`,
	}

	for _, stmt := range statements {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("terminate all: %w", err)
		}
	}
	return nil
}
