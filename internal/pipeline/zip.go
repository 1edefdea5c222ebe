// Package pipeline implements the two queue-driven workers that own the
// bulk of the ingestion pipeline's state machine: the ZIP consumer (spec
// §4.3) and the per-file pipeline (spec §4.4). Both follow the same
// shape -- lock via a status-conditional UPDATE, do the work, schedule
// side effects for after the owning transaction commits.
package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jharjadi/docingest/internal/db"
	"github.com/jharjadi/docingest/internal/handler"
	"github.com/jharjadi/docingest/internal/lifecycle"
	"github.com/jharjadi/docingest/internal/model"
	"github.com/jharjadi/docingest/internal/queue"
	"github.com/jharjadi/docingest/internal/storage"
)

// ZipWorker processes ZipMaster rows pulled off the zip queue (spec §4.3).
type ZipWorker struct {
	pool      *pgxpool.Pool
	store     *storage.Store
	fileQueue *queue.Queue
	registry  *handler.Registry
	lifecycle *lifecycle.Manager
	tempDir   string
}

func NewZipWorker(pool *pgxpool.Pool, store *storage.Store, fileQueue *queue.Queue, registry *handler.Registry, lc *lifecycle.Manager, tempDir string) *ZipWorker {
	return &ZipWorker{pool: pool, store: store, fileQueue: fileQueue, registry: registry, lifecycle: lc, tempDir: tempDir}
}

// ProcessZipMaster handles one {zipMasterId} message. A nil return
// acknowledges the message (success or a terminal, non-retryable
// failure); a non-nil return signals a transient failure so the queue
// layer lets SQS redeliver (spec §4.3 "terminal vs. transient").
func (w *ZipWorker) ProcessZipMaster(ctx context.Context, zipMasterID int64) error {
	claimed, err := db.LockZipMaster(ctx, w.pool, zipMasterID)
	if err != nil {
		return fmt.Errorf("lock zip master %d: %w", zipMasterID, err)
	}
	if !claimed {
		slog.Info("zip master already claimed, skipping", "zip_master_id", zipMasterID)
		return nil
	}

	zm, err := db.GetZipMaster(ctx, w.pool, zipMasterID)
	if err != nil {
		return fmt.Errorf("load zip master %d: %w", zipMasterID, err)
	}

	// Moves the owning job out of QUEUED the moment its one ZipMaster is
	// claimed (spec §4.2); unlike the per-file worker there's no race with
	// siblings here since a job owns at most one ZipMaster.
	if _, err := db.TransitionJobStatus(ctx, w.pool, zm.ProcessingJobID, model.JobQueued, model.JobInProgress, "EXTRACTING"); err != nil {
		return fmt.Errorf("transition job %s to in-progress: %w", zm.ProcessingJobID, err)
	}

	slog.Info("zip extraction started", "event", "zip_extraction_started", "zip_master_id", zm.ID, "job_id", zm.ProcessingJobID)

	localPath, cleanup, err := w.downloadToTemp(ctx, zm.OriginalFilePath)
	if err != nil {
		return fmt.Errorf("download zip %s: %w", zm.OriginalFilePath, err)
	}
	defer cleanup()

	failReason, transientErr := w.extract(ctx, zm, localPath)
	if transientErr != nil {
		return transientErr
	}
	if failReason != "" {
		slog.Warn("zip extraction failed", "event", "zip_extraction_failed", "zip_master_id", zm.ID, "reason", failReason)
		return db.UpdateZipStatus(ctx, w.pool, zm.ID, model.ZipExtractionFailed, failReason)
	}

	slog.Info("zip extraction completed", "event", "zip_extraction_completed", "zip_master_id", zm.ID)
	return db.UpdateZipStatus(ctx, w.pool, zm.ID, model.ZipExtracted, "")
}

// downloadToTemp streams the archive from object storage into a local
// file. archive/zip needs random access to read the central directory,
// so the content is spooled to disk rather than buffered in memory
// (spec §4.3 "do not load entirely in memory").
func (w *ZipWorker) downloadToTemp(ctx context.Context, key string) (localPath string, cleanup func(), err error) {
	rc, err := w.store.GetStream(ctx, key)
	if err != nil {
		return "", nil, err
	}
	defer rc.Close()

	f, err := os.CreateTemp(w.tempDir, "zip-consumer-*.zip")
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("spool zip to disk: %w", err)
	}
	f.Close()

	return f.Name(), func() { os.Remove(f.Name()) }, nil
}

// extract walks every entry of the archive at localPath, creating a
// FileMaster per non-directory entry (spec §4.3 step 2). It returns a
// non-empty failReason for a terminal archive-level failure (malformed
// ZIP), or a non-nil err for a retryable I/O failure.
func (w *ZipWorker) extract(ctx context.Context, zm *model.ZipMaster, localPath string) (failReason string, err error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("reopen spooled zip: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat spooled zip: %w", err)
	}

	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return "not a valid zip archive: " + err.Error(), nil
	}

	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		if err := w.extractEntry(ctx, zm, entry); err != nil {
			return "", err
		}
	}
	return "", nil
}

func (w *ZipWorker) extractEntry(ctx context.Context, zm *model.ZipMaster, entry *zip.File) error {
	name, ext, rejectReason := validateEntryName(entry.Name, w.registry)
	if rejectReason != "" {
		fm := &model.FileMaster{
			ZipMasterID:     &zm.ID,
			ProcessingJobID: zm.ProcessingJobID,
			GxBucketID:      zm.GxBucketID,
			FileName:        entry.Name,
			FileSize:        int64(entry.UncompressedSize64),
			SourceType:      model.SourceExtracted,
		}
		return db.InTx(ctx, w.pool, func(ctx context.Context, tx pgx.Tx, ac *db.AfterCommit) error {
			created, _, err := db.CreateFileMaster(ctx, tx, fm)
			if err != nil {
				return fmt.Errorf("record ignored entry %s: %w", entry.Name, err)
			}
			return db.UpdateFileStatus(ctx, tx, created.ID, model.FileIgnored, rejectReason)
		})
	}

	rc, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open zip entry %s: %w", entry.Name, err)
	}
	defer rc.Close()

	hasher := sha256.New()
	tee := io.TeeReader(rc, hasher)

	tmp, err := os.CreateTemp(w.tempDir, "zip-entry-*")
	if err != nil {
		return fmt.Errorf("create temp file for entry %s: %w", entry.Name, err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	size, err := io.Copy(tmp, tee)
	if err != nil {
		return fmt.Errorf("spool zip entry %s: %w", entry.Name, err)
	}
	hash := hex.EncodeToString(hasher.Sum(nil))

	key := storage.ConstructKey(name, zm.GxBucketID, zm.ProcessingJobID, storage.KeyTypeFiles)

	fm := &model.FileMaster{
		ZipMasterID:     &zm.ID,
		ProcessingJobID: zm.ProcessingJobID,
		GxBucketID:      zm.GxBucketID,
		FileLocation:    key,
		FileName:        name,
		FileSize:        size,
		Extension:       ext,
		FileHash:        hash,
		SourceType:      model.SourceExtracted,
	}

	return db.InTx(ctx, w.pool, func(ctx context.Context, tx pgx.Tx, ac *db.AfterCommit) error {
		created, isDuplicate, err := db.CreateFileMaster(ctx, tx, fm)
		if err != nil {
			return fmt.Errorf("create file master for entry %s: %w", entry.Name, err)
		}
		if isDuplicate {
			return nil
		}

		groupID := zm.GxBucketIDOrBulk()
		ac.Defer(func() {
			w.publishUploaded(ctx, created, tmp.Name(), key, groupID)
		})
		return nil
	})
}

// publishUploaded runs after the creating transaction commits: it
// uploads the entry bytes and, on success, enqueues the per-file
// message; on failure it flips the FileMaster straight to FAILED (spec
// §4.3 step 2 post-commit callback).
func (w *ZipWorker) publishUploaded(ctx context.Context, fm *model.FileMaster, localPath, key, groupID string) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		w.failUploadedEntry(ctx, fm.ID, "re-read spooled entry: "+err.Error())
		return
	}

	if err := w.store.Put(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
		w.failUploadedEntry(ctx, fm.ID, "upload entry: "+err.Error())
		return
	}

	dedupID := groupID + "-" + fm.FileHash
	msg := fmt.Sprintf(`{"fileMasterId":%d}`, fm.ID)
	if err := w.fileQueue.Send(ctx, queue.SendParams{Body: msg, GroupID: groupID, DeduplicationID: dedupID}); err != nil {
		w.failUploadedEntry(ctx, fm.ID, "enqueue file message: "+err.Error())
		return
	}
}

func (w *ZipWorker) failUploadedEntry(ctx context.Context, fileMasterID int64, reason string) {
	slog.Error("post-commit publish failed", "event", "zip_entry_publish_failed", "file_master_id", fileMasterID, "reason", reason)
	if err := w.lifecycle.FailFile(ctx, fileMasterID, reason); err != nil {
		slog.Error("failed to mark file master failed after publish error", "file_master_id", fileMasterID, "error", err)
	}
}

// validateEntryName normalizes a raw ZIP entry path and reports the
// reason it must be rejected (empty, dot-file, traversal, unsupported
// extension), or "" when it is acceptable for processing (spec §4.3
// step 2 "Validate name").
func validateEntryName(raw string, registry *handler.Registry) (name, ext, rejectReason string) {
	clean := path.Clean(strings.ReplaceAll(raw, "\\", "/"))
	if clean == "" || clean == "." || strings.HasPrefix(clean, "../") || strings.HasPrefix(clean, "/") {
		return "", "", "invalid entry name"
	}
	base := path.Base(clean)
	if base == "" || strings.HasPrefix(base, ".") {
		return "", "", "hidden or empty entry name"
	}

	ext = strings.ToLower(strings.TrimPrefix(path.Ext(base), "."))
	if ext == "" {
		return "", "", "missing file extension"
	}
	if _, ok := registry.Lookup(ext); !ok {
		return "", "", "unsupported extension: " + ext
	}
	return clean, ext, ""
}
