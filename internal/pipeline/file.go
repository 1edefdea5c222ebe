package pipeline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jharjadi/docingest/internal/config"
	"github.com/jharjadi/docingest/internal/db"
	"github.com/jharjadi/docingest/internal/handler"
	"github.com/jharjadi/docingest/internal/lifecycle"
	"github.com/jharjadi/docingest/internal/model"
	"github.com/jharjadi/docingest/internal/pipeline/classify"
	"github.com/jharjadi/docingest/internal/queue"
	"github.com/jharjadi/docingest/internal/retry"
	"github.com/jharjadi/docingest/internal/storage"
)

// FileWorker processes FileMaster rows pulled off the file queue (spec
// §4.4): the per-file pipeline that dispatches to a Handler, fans out any
// extracted children, and publishes the terminal PDF artifact to GX.
type FileWorker struct {
	pool               *pgxpool.Pool
	store              *storage.Store
	fileQueue          *queue.Queue
	registry           *handler.Registry
	lifecycle          *lifecycle.Manager
	maxExtractionDepth int
	policies           map[string]retry.Policy
	defaultPolicy      retry.Policy
}

func NewFileWorker(pool *pgxpool.Pool, store *storage.Store, fileQueue *queue.Queue, registry *handler.Registry, lc *lifecycle.Manager, cfg *config.Config) *FileWorker {
	policies := map[string]retry.Policy{
		"zip": retry.NewPolicy(cfg.ZipHandlerRetry),
		"msg": retry.NewPolicy(cfg.MsgHandlerRetry),
		"pdf": retry.NewPolicy(cfg.OptimizerRetry),
	}
	officePolicy := retry.NewPolicy(cfg.LibreOfficeRetry)
	for ext := range cfg.ConvertibleExtensions {
		policies[ext] = officePolicy
	}

	return &FileWorker{
		pool:               pool,
		store:              store,
		fileQueue:          fileQueue,
		registry:           registry,
		lifecycle:          lc,
		maxExtractionDepth: cfg.MaxExtractionDepth,
		policies:           policies,
		defaultPolicy:      retry.NewPolicy(config.RetryConfig{Attempts: 1}),
	}
}

func (w *FileWorker) policyFor(ext string) retry.Policy {
	if p, ok := w.policies[ext]; ok {
		return p
	}
	return w.defaultPolicy
}

// ProcessFileMaster handles one {fileMasterId} message. A nil return
// acknowledges the message; a non-nil return signals a transient failure
// so the queue layer lets SQS redeliver (spec §4.4 step 5).
func (w *FileWorker) ProcessFileMaster(ctx context.Context, fileMasterID int64) error {
	claimed, err := db.LockFile(ctx, w.pool, fileMasterID)
	if err != nil {
		return fmt.Errorf("lock file master %d: %w", fileMasterID, err)
	}
	if !claimed {
		slog.Info("file master already claimed, skipping", "file_master_id", fileMasterID)
		return nil
	}

	fm, err := db.GetFileMaster(ctx, w.pool, fileMasterID)
	if err != nil {
		return fmt.Errorf("load file master %d: %w", fileMasterID, err)
	}

	job, err := db.GetJob(ctx, w.pool, fm.ProcessingJobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", fm.ProcessingJobID, err)
	}
	// First file master to reach a QUEUED job moves it to IN_PROGRESS;
	// every later one racing here is a no-op (spec §4.2).
	if _, err := db.TransitionJobStatus(ctx, w.pool, job.ID, model.JobQueued, model.JobInProgress, "PROCESSING"); err != nil {
		return fmt.Errorf("transition job %s to in-progress: %w", job.ID, err)
	}

	slog.Info("file processing started", "event", "file_processing_started", "file_master_id", fm.ID, "extension", fm.Extension)

	if job.SkipGxProcess && fm.Extension == "pdf" {
		return w.publishSkipped(ctx, fm)
	}

	h, ok := w.registry.Lookup(fm.Extension)
	if !ok {
		return w.lifecycle.FailFile(ctx, fm.ID, "unsupported extension: "+fm.Extension)
	}

	rc, err := w.store.GetStream(ctx, fm.FileLocation)
	if err != nil {
		return fmt.Errorf("download file master %d: %w", fm.ID, err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return fmt.Errorf("read file master %d: %w", fm.ID, err)
	}

	items, result := w.dispatch(ctx, h, w.policyFor(fm.Extension), data, fm)
	switch {
	case result.Outcome == classify.Ok:
		return w.handleResult(ctx, fm, job, data, items)
	case result.Outcome.Terminal():
		slog.Warn("file processing failed", "event", "file_processing_failed", "file_master_id", fm.ID, "reason", result.Reason)
		return w.lifecycle.FailFile(ctx, fm.ID, result.Reason)
	default:
		return fmt.Errorf("file master %d processing: %s", fm.ID, result.Reason)
	}
}

// dispatch runs h.Handle under policy, re-reading from the in-memory copy
// of the file on every retry attempt (spec §4.5 "every handler... is
// wrapped by an attempts/delay policy").
func (w *FileWorker) dispatch(ctx context.Context, h handler.Handler, policy retry.Policy, data []byte, fm *model.FileMaster) ([]model.ExtractedFileItem, classify.Result) {
	var items []model.ExtractedFileItem
	result := policy.Do(ctx, func(ctx context.Context) classify.Result {
		var res classify.Result
		items, res = h.Handle(ctx, bytes.NewReader(data), fm)
		return res
	})
	return items, result
}

// handleResult interprets a successful handler run per spec §4.4 step 3:
// an empty item list means the stored bytes are already a terminal PDF; a
// single item that is itself the source transformed into a same-named PDF
// means the handler transformed the file in place (office conversion, PDF
// optimization); anything else -- including a single extracted item that
// isn't that in-place transform, e.g. a one-attachment msg or a one-entry
// nested zip -- means the handler extracted children that must be queued
// separately.
func (w *FileWorker) handleResult(ctx context.Context, fm *model.FileMaster, job *model.ProcessingJob, data []byte, items []model.ExtractedFileItem) error {
	switch {
	case len(items) == 0:
		return w.publishArtifact(ctx, fm, fm.FileLocation, fm.FileName, fm.FileSize, fm.Extension)
	case len(items) == 1 && isInPlaceTransform(fm, items[0]):
		return w.publishTransformed(ctx, fm, items[0])
	default:
		return w.fanOutChildren(ctx, fm, job, items)
	}
}

// isInPlaceTransform reports whether item is the handler's own source file
// rewritten into a terminal PDF in place, rather than one of possibly
// several extracted children that happens to number one (spec §4.4 step
// 3): its extension must be pdf and its name must be the source file name
// with the extension replaced.
func isInPlaceTransform(fm *model.FileMaster, item model.ExtractedFileItem) bool {
	if extensionOf(item.Name) != "pdf" {
		return false
	}
	base := strings.TrimSuffix(fm.FileName, filepath.Ext(fm.FileName))
	return item.Name == base+".pdf"
}

// publishSkipped records a GxMaster in SKIPPED status for a PDF whose job
// opted out of GX processing (spec §4.4 step 2).
func (w *FileWorker) publishSkipped(ctx context.Context, fm *model.FileMaster) error {
	return db.InTx(ctx, w.pool, func(ctx context.Context, tx pgx.Tx, ac *db.AfterCommit) error {
		g, err := db.CreateGxMaster(ctx, tx, fm.ID, fm.GxBucketID, fm.FileLocation, fm.FileName, fm.FileSize, fm.Extension)
		if err != nil {
			return err
		}
		if err := db.UpdateGxStatus(ctx, tx, g.ID, model.GxSkipped, nil, ""); err != nil {
			return err
		}
		return db.UpdateFileStatus(ctx, tx, fm.ID, model.FileCompleted, "gx processing skipped")
	})
}

// publishTransformed uploads a handler's in-place transformation (office
// conversion, or an optimized same-named PDF) under the "files" namespace,
// then publishes the artifact from that new key. The FileMaster's own
// file_location is left unchanged.
func (w *FileWorker) publishTransformed(ctx context.Context, fm *model.FileMaster, item model.ExtractedFileItem) error {
	key := storage.ConstructKey(item.Name, fm.GxBucketID, fm.ProcessingJobID, storage.KeyTypeFiles)
	if err := w.store.Put(ctx, key, bytes.NewReader(item.Bytes), int64(len(item.Bytes))); err != nil {
		return fmt.Errorf("upload transformed file master %d: %w", fm.ID, err)
	}
	ext := extensionOf(item.Name)
	return w.publishArtifact(ctx, fm, key, item.Name, int64(len(item.Bytes)), ext)
}

// publishArtifact is the terminal step for a file that is now a PDF
// sitting at sourceKey: server-side copy into the "gxFiles" namespace,
// create a GxMaster in QUEUED_FOR_UPLOAD, mark the FileMaster COMPLETED
// (spec §4.4 step 4). The copy itself is deferred until after the
// publishing transaction commits.
func (w *FileWorker) publishArtifact(ctx context.Context, fm *model.FileMaster, sourceKey, processedName string, size int64, ext string) error {
	gxKey := storage.ConstructKey(processedName, fm.GxBucketID, fm.ProcessingJobID, storage.KeyTypeGxFiles)

	return db.InTx(ctx, w.pool, func(ctx context.Context, tx pgx.Tx, ac *db.AfterCommit) error {
		g, err := db.CreateGxMaster(ctx, tx, fm.ID, fm.GxBucketID, gxKey, processedName, size, ext)
		if err != nil {
			return err
		}
		if err := db.UpdateFileStatus(ctx, tx, fm.ID, model.FileCompleted, ""); err != nil {
			return err
		}

		ac.Defer(func() {
			if err := w.store.Copy(ctx, sourceKey, gxKey); err != nil {
				slog.Error("artifact copy failed", "event", "artifact_copy_failed", "gx_master_id", g.ID, "error", err)
				if err := db.UpdateGxStatus(ctx, w.pool, g.ID, model.GxError, nil, "artifact copy failed: "+err.Error()); err != nil {
					slog.Error("failed to mark gx master errored after copy failure", "gx_master_id", g.ID, "error", err)
				}
			}
		})
		return nil
	})
}

// fanOutChildren creates one new FileMaster per extracted item (depth+1),
// marks the parent COMPLETED, and defers each child's upload and SQS
// enqueue until after the creating transaction commits (spec §4.4 step 3
// "extracted children", mirroring the ZIP consumer's own fan-out).
func (w *FileWorker) fanOutChildren(ctx context.Context, fm *model.FileMaster, job *model.ProcessingJob, items []model.ExtractedFileItem) error {
	if fm.Depth+1 > w.maxExtractionDepth {
		return w.lifecycle.FailFile(ctx, fm.ID, "maximum extraction depth exceeded")
	}

	type pending struct {
		fm   *model.FileMaster
		key  string
		data []byte
	}

	return db.InTx(ctx, w.pool, func(ctx context.Context, tx pgx.Tx, ac *db.AfterCommit) error {
		var created []pending
		for _, item := range items {
			ext := extensionOf(item.Name)
			hash := sha256.Sum256(item.Bytes)
			key := storage.ConstructKey(item.Name, fm.GxBucketID, fm.ProcessingJobID, storage.KeyTypeFiles)

			child := &model.FileMaster{
				ZipMasterID:     fm.ZipMasterID,
				ProcessingJobID: fm.ProcessingJobID,
				GxBucketID:      fm.GxBucketID,
				FileLocation:    key,
				FileName:        item.Name,
				FileSize:        int64(len(item.Bytes)),
				Extension:       ext,
				FileHash:        hex.EncodeToString(hash[:]),
				SourceType:      model.SourceExtracted,
				Depth:           fm.Depth + 1,
			}

			row, isDuplicate, err := db.CreateFileMaster(ctx, tx, child)
			if err != nil {
				return fmt.Errorf("create child file master for %s: %w", item.Name, err)
			}
			if !isDuplicate {
				created = append(created, pending{fm: row, key: key, data: item.Bytes})
			}
		}

		if err := db.UpdateFileStatus(ctx, tx, fm.ID, model.FileCompleted, fmt.Sprintf("extracted %d", len(items))); err != nil {
			return err
		}

		groupID := fm.BucketKey()
		ac.Defer(func() {
			for _, p := range created {
				w.publishChild(ctx, p.fm, p.key, p.data, groupID)
			}
		})
		return nil
	})
}

// publishChild runs after the fan-out transaction commits: uploads the
// child's bytes and enqueues its per-file message, using a random
// deduplication id since the table's (dedup_scope, file_hash) unique index
// already rules out true duplicates at creation time (spec §4.4 "message
// attributes").
func (w *FileWorker) publishChild(ctx context.Context, child *model.FileMaster, key string, data []byte, groupID string) {
	if err := w.store.Put(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
		w.failChild(ctx, child.ID, "upload extracted child: "+err.Error())
		return
	}

	dedupID := fmt.Sprintf("file-master-%d-%s", child.ID, uuid.New().String())
	msg := fmt.Sprintf(`{"fileMasterId":%d}`, child.ID)
	if err := w.fileQueue.Send(ctx, queue.SendParams{Body: msg, GroupID: groupID, DeduplicationID: dedupID}); err != nil {
		w.failChild(ctx, child.ID, "enqueue extracted child message: "+err.Error())
	}
}

func (w *FileWorker) failChild(ctx context.Context, fileMasterID int64, reason string) {
	slog.Error("post-commit child publish failed", "event", "child_publish_failed", "file_master_id", fileMasterID, "reason", reason)
	if err := w.lifecycle.FailFile(ctx, fileMasterID, reason); err != nil {
		slog.Error("failed to mark child file master failed after publish error", "file_master_id", fileMasterID, "error", err)
	}
}

func extensionOf(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}
