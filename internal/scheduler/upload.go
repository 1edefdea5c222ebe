// Package scheduler implements the two periodic cron jobs that drive
// artifacts through GX and reconcile job lifecycle (spec §4.7, §4.8),
// wired with robfig/cron/v3 -- already the teacher's dependency for
// cron-scheduled housekeeping.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jharjadi/docingest/internal/db"
	"github.com/jharjadi/docingest/internal/gxclient"
	"github.com/jharjadi/docingest/internal/lifecycle"
	"github.com/jharjadi/docingest/internal/model"
	"github.com/jharjadi/docingest/internal/storage"
)

// UploadScheduler forwards artifacts sitting in QUEUED_FOR_UPLOAD to GX,
// subject to a global concurrency cap (spec §4.7).
type UploadScheduler struct {
	pool       *pgxpool.Pool
	store      *storage.Store
	client     *gxclient.Client
	lifecycle  *lifecycle.Manager
	maxProcess int
	presignTTL time.Duration
}

func NewUploadScheduler(pool *pgxpool.Pool, store *storage.Store, client *gxclient.Client, lc *lifecycle.Manager, maxProcess int, presignTTL time.Duration) *UploadScheduler {
	return &UploadScheduler{pool: pool, store: store, client: client, lifecycle: lc, maxProcess: maxProcess, presignTTL: presignTTL}
}

// RunOnce executes one scheduler tick. Each row is claimed with its own
// status-conditional UPDATE (the same lock-then-act idiom every other
// worker in this pipeline uses) rather than holding one long-lived
// transaction across the GX network round trip the tick makes per row.
func (s *UploadScheduler) RunOnce(ctx context.Context) error {
	inFlight, err := db.CountInFlight(ctx, s.pool)
	if err != nil {
		return err
	}
	available := s.maxProcess - inFlight
	if available <= 0 {
		return nil
	}

	queued, err := db.ListQueuedForUpload(ctx, s.pool, available)
	if err != nil {
		return err
	}

	for _, g := range queued {
		s.uploadOne(ctx, g)
	}
	return nil
}

func (s *UploadScheduler) uploadOne(ctx context.Context, g *model.GxMaster) {
	claimed, err := db.LockGxUpload(ctx, s.pool, g.ID)
	if err != nil {
		slog.Error("lock gx master for upload failed", "gx_master_id", g.ID, "error", err)
		return
	}
	if !claimed {
		return
	}

	url, err := s.store.PresignGet(ctx, g.FileLocation, s.presignTTL)
	if err != nil {
		s.requeue(ctx, g.ID, "presign artifact url: "+err.Error())
		return
	}

	bucketID := "bulk"
	if g.GxBucketID != nil {
		bucketID = *g.GxBucketID
	}

	resp, err := s.client.IngestUpload(ctx, gxclient.IngestUploadDocument{
		BucketID:  bucketID,
		FileName:  g.ProcessedFileName,
		FileType:  g.Extension,
		SourceURL: url,
	})
	if err != nil {
		s.handleUploadError(ctx, g.ID, err)
		return
	}

	switch {
	case resp.Ingest.ProcessID != "":
		processID := resp.Ingest.ProcessID
		status := mapGxStatus(resp.Ingest.Status)
		if status == model.GxError {
			if err := s.lifecycle.FailGx(ctx, g.ID, "unrecognized gx status: "+resp.Ingest.Status); err != nil {
				slog.Error("failed to record gx master error", "gx_master_id", g.ID, "error", err)
			}
			return
		}
		if err := db.UpdateGxStatus(ctx, s.pool, g.ID, status, &processID, ""); err != nil {
			slog.Error("failed to record gx upload result", "gx_master_id", g.ID, "error", err)
			return
		}
		if err := s.lifecycle.AfterGxTransition(ctx, g.ID); err != nil {
			slog.Error("failed to check job completion after gx upload", "gx_master_id", g.ID, "error", err)
		}
	case resp.Message != "":
		if err := s.lifecycle.FailGx(ctx, g.ID, resp.Message); err != nil {
			slog.Error("failed to record gx master error", "gx_master_id", g.ID, "error", err)
		}
	default:
		if err := s.lifecycle.FailGx(ctx, g.ID, "invalid response"); err != nil {
			slog.Error("failed to record gx master error", "gx_master_id", g.ID, "error", err)
		}
	}
}

// handleUploadError classifies a failed IngestUpload call: a 4xx status is
// a terminal GX rejection, everything else (5xx, timeout, network error)
// is transient and gets requeued for the next scheduler tick (spec §7
// "external-service failure").
func (s *UploadScheduler) handleUploadError(ctx context.Context, gxMasterID int64, err error) {
	var statusErr *gxclient.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode >= 400 && statusErr.StatusCode < 500 {
		if ferr := s.lifecycle.FailGx(ctx, gxMasterID, fmt.Sprintf("gx rejected upload: %s", statusErr.Error())); ferr != nil {
			slog.Error("failed to record gx master error", "gx_master_id", gxMasterID, "error", ferr)
		}
		return
	}
	s.requeue(ctx, gxMasterID, "gx upload failed: "+err.Error())
}

func (s *UploadScheduler) requeue(ctx context.Context, gxMasterID int64, reason string) {
	slog.Warn("gx upload deferred to next tick", "gx_master_id", gxMasterID, "reason", reason)
	if err := db.UpdateGxStatus(ctx, s.pool, gxMasterID, model.GxQueuedForUpload, nil, reason); err != nil {
		slog.Error("failed to requeue gx master", "gx_master_id", gxMasterID, "error", err)
	}
}
