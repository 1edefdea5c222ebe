package scheduler

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jharjadi/docingest/internal/db"
	"github.com/jharjadi/docingest/internal/gxclient"
	"github.com/jharjadi/docingest/internal/lifecycle"
	"github.com/jharjadi/docingest/internal/model"
)

// LifecycleReconciler polls GX for in-flight processes and sweeps
// IN_PROGRESS jobs toward a terminal outcome (spec §4.8).
type LifecycleReconciler struct {
	pool      *pgxpool.Pool
	client    *gxclient.Client
	lifecycle *lifecycle.Manager
	batchSize int
}

func NewLifecycleReconciler(pool *pgxpool.Pool, client *gxclient.Client, lc *lifecycle.Manager, batchSize int) *LifecycleReconciler {
	return &LifecycleReconciler{pool: pool, client: client, lifecycle: lc, batchSize: batchSize}
}

// RunOnce executes one reconciler tick: fan GX status back onto every
// in-flight GxMaster (step 1), then sweep IN_PROGRESS jobs for completion
// (step 2) to catch any job whose last child went terminal without going
// through lifecycle.Manager directly -- e.g. after a restart.
func (r *LifecycleReconciler) RunOnce(ctx context.Context) error {
	inFlight, err := db.ListInFlightProcesses(ctx, r.pool, r.batchSize)
	if err != nil {
		return err
	}
	for _, g := range inFlight {
		r.pollOne(ctx, g)
	}

	jobIDs, err := db.ListInProgressJobIDs(ctx, r.pool, r.batchSize)
	if err != nil {
		return err
	}
	for _, jobID := range jobIDs {
		if err := r.lifecycle.TryCompleteJob(ctx, jobID); err != nil {
			slog.Error("lifecycle sweep failed to complete job", "job_id", jobID, "error", err)
		}
	}
	return nil
}

func (r *LifecycleReconciler) pollOne(ctx context.Context, g *model.GxMaster) {
	if g.GxProcessID == nil {
		return
	}

	resp, err := r.client.FetchStatus(ctx, *g.GxProcessID)
	if err != nil {
		slog.Warn("gx fetch status failed, retrying next cycle", "gx_master_id", g.ID, "gx_process_id", *g.GxProcessID, "error", err)
		return
	}

	status := mapGxStatus(resp.Ingest.Status)
	errMsg := ""
	if status == model.GxError {
		errMsg = "gx status: " + resp.Ingest.Status
		if resp.Ingest.StatusMessage != "" {
			errMsg = resp.Ingest.StatusMessage
		}
	}

	if err := db.UpdateGxStatus(ctx, r.pool, g.ID, status, nil, errMsg); err != nil {
		slog.Error("failed to record gx status", "gx_master_id", g.ID, "error", err)
		return
	}
	if err := r.lifecycle.AfterGxTransition(ctx, g.ID); err != nil {
		slog.Error("lifecycle check after gx transition failed", "gx_master_id", g.ID, "error", err)
	}
}
