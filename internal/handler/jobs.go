package handler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jharjadi/docingest/internal/config"
	"github.com/jharjadi/docingest/internal/db"
	"github.com/jharjadi/docingest/internal/model"
	"github.com/jharjadi/docingest/internal/queue"
	"github.com/jharjadi/docingest/internal/storage"
)

// JobHandler handles the job orchestration endpoints: direct/multipart
// upload setup and processing trigger (spec §4.1).
type JobHandler struct {
	cfg       *config.Config
	pool      *pgxpool.Pool
	store     *storage.Store
	zipQueue  *queue.Queue
	fileQueue *queue.Queue
}

func NewJobHandler(cfg *config.Config, pool *pgxpool.Pool, store *storage.Store, zipQueue, fileQueue *queue.Queue) *JobHandler {
	return &JobHandler{cfg: cfg, pool: pool, store: store, zipQueue: zipQueue, fileQueue: fileQueue}
}

type createJobRequest struct {
	FileName   string  `json:"fileName"`
	GxBucketID *string `json:"gxBucketId"`
	SkipGx     bool    `json:"skipGx"`
}

type createJobResponse struct {
	JobID           string `json:"jobId"`
	PresignedPutURL string `json:"presignedPutUrl"`
}

// CreateForDirectUpload handles POST /v1/jobs -- createJobForDirectUpload
// (spec §4.1): persists the job row and returns a presigned PUT for the
// client to upload straight to object storage.
func (h *JobHandler) CreateForDirectUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.FileName == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "fileName is required")
		return
	}

	jobID := uuid.New().String()
	key := storage.ConstructKey(req.FileName, req.GxBucketID, jobID, storage.KeyTypeSource)

	if _, err := db.CreateJob(ctx, h.pool, jobID, req.FileName, key, req.GxBucketID, req.SkipGx); err != nil {
		slog.Error("failed to create job", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to create job")
		return
	}

	url, err := h.store.PresignPut(ctx, key, h.cfg.PresignedURLTTL())
	if err != nil {
		slog.Error("failed to presign upload url", "error", err, "job_id", jobID)
		writeError(w, http.StatusInternalServerError, "internal", "failed to presign upload url")
		return
	}

	writeJSON(w, http.StatusCreated, createJobResponse{JobID: jobID, PresignedPutURL: url})
}

type initiateMultipartResponse struct {
	JobID    string `json:"jobId"`
	UploadID string `json:"uploadId"`
}

// InitiateMultipart handles POST /v1/jobs/multipart -- initiateMultipart
// (spec §4.1).
func (h *JobHandler) InitiateMultipart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.FileName == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "fileName is required")
		return
	}

	jobID := uuid.New().String()
	key := storage.ConstructKey(req.FileName, req.GxBucketID, jobID, storage.KeyTypeSource)

	if _, err := db.CreateJob(ctx, h.pool, jobID, req.FileName, key, req.GxBucketID, req.SkipGx); err != nil {
		slog.Error("failed to create job", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to create job")
		return
	}

	uploadID, err := h.store.InitiateMultipart(ctx, key)
	if err != nil {
		slog.Error("failed to initiate multipart upload", "error", err, "job_id", jobID)
		writeError(w, http.StatusInternalServerError, "internal", "failed to initiate multipart upload")
		return
	}

	writeJSON(w, http.StatusCreated, initiateMultipartResponse{JobID: jobID, UploadID: uploadID})
}

type presignPartResponse struct {
	URL string `json:"url"`
}

// PresignPart handles GET /v1/jobs/{jobId}/multipart/{uploadId}/parts/{partNumber}
// -- presignPart (spec §4.1).
func (h *JobHandler) PresignPart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "jobId")
	uploadID := chi.URLParam(r, "uploadId")

	n, err := strconv.Atoi(chi.URLParam(r, "partNumber"))
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", "partNumber must be a positive integer")
		return
	}

	job, err := db.GetJob(ctx, h.pool, jobID)
	if err != nil {
		writeJobLookupError(w, jobID, err)
		return
	}

	url, err := h.store.PresignPart(ctx, job.FileLocation, uploadID, int32(n), h.cfg.PresignedURLTTL())
	if err != nil {
		slog.Error("failed to presign part", "error", err, "job_id", jobID, "part", n)
		writeError(w, http.StatusInternalServerError, "internal", "failed to presign part")
		return
	}

	writeJSON(w, http.StatusOK, presignPartResponse{URL: url})
}

type completeMultipartRequest struct {
	Parts []storage.CompletedPart `json:"parts"`
}

// CompleteMultipart handles POST /v1/jobs/{jobId}/multipart/{uploadId}/complete
// -- completeMultipart (spec §4.1). It also moves the job to UPLOAD_COMPLETE
// so triggerProcessing can validate against it.
func (h *JobHandler) CompleteMultipart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "jobId")
	uploadID := chi.URLParam(r, "uploadId")

	var req completeMultipartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	job, err := db.GetJob(ctx, h.pool, jobID)
	if err != nil {
		writeJobLookupError(w, jobID, err)
		return
	}

	if err := h.store.CompleteMultipart(ctx, job.FileLocation, uploadID, req.Parts); err != nil {
		slog.Error("failed to complete multipart upload", "error", err, "job_id", jobID)
		writeError(w, http.StatusInternalServerError, "internal", "failed to complete multipart upload")
		return
	}

	ok, err := db.TransitionJobStatus(ctx, h.pool, jobID, model.JobPendingUpload, model.JobUploadComplete, "UPLOAD")
	if err != nil {
		slog.Error("failed to transition job after multipart complete", "error", err, "job_id", jobID)
		writeError(w, http.StatusInternalServerError, "internal", "failed to record upload completion")
		return
	}
	if !ok {
		writeError(w, http.StatusConflict, "conflict", "job is not awaiting upload")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TriggerProcessing handles POST /v1/jobs/{jobId}/trigger -- triggerProcessing
// (spec §4.1): validates the job's status, routes BULK uploads through the
// ZIP consumer and everything else through the per-file pipeline, and
// schedules the queue trigger message for after the transaction commits
// (spec §5), exactly as the ZIP and file workers schedule their own
// post-commit sends.
func (h *JobHandler) TriggerProcessing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "jobId")

	job, err := db.GetJob(ctx, h.pool, jobID)
	if err != nil {
		writeJobLookupError(w, jobID, err)
		return
	}

	if job.Status != model.JobPendingUpload && job.Status != model.JobUploadComplete {
		writeError(w, http.StatusConflict, "conflict", "job is not awaiting processing trigger")
		return
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(job.OriginalFilename), "."))

	if job.IsBulk() && ext != "zip" {
		if err := db.MarkJobFailed(ctx, h.pool, jobID, "bulk uploads must be a zip archive"); err != nil {
			slog.Error("failed to mark job failed", "error", err, "job_id", jobID)
		}
		writeError(w, http.StatusUnprocessableEntity, "unprocessable", "bulk uploads must be a zip archive")
		return
	}

	fileSize, err := h.store.Stat(ctx, job.FileLocation)
	if err != nil {
		slog.Error("failed to stat uploaded object", "error", err, "job_id", jobID)
		writeError(w, http.StatusUnprocessableEntity, "unprocessable", "uploaded object not found")
		return
	}

	var fileHash string
	if !job.IsBulk() {
		fileHash, err = h.hashUploadedObject(ctx, job.FileLocation)
		if err != nil {
			slog.Error("failed to hash uploaded object", "error", err, "job_id", jobID)
			writeError(w, http.StatusUnprocessableEntity, "unprocessable", "uploaded object not found")
			return
		}
	}

	err = db.InTx(ctx, h.pool, func(ctx context.Context, tx pgx.Tx, ac *db.AfterCommit) error {
		ok, err := db.TransitionJobStatus(ctx, tx, jobID, job.Status, model.JobQueued, "QUEUED")
		if err != nil {
			return err
		}
		if !ok {
			return errJobRaced
		}

		if job.IsBulk() {
			z, err := db.CreateZipMaster(ctx, tx, jobID, job.GxBucketID, job.FileLocation, job.OriginalFilename, fileSize)
			if err != nil {
				return err
			}
			groupID := job.BucketKey()
			ac.Defer(func() {
				h.sendTrigger(ctx, h.zipQueue, `{"zipMasterId":`+strconv.FormatInt(z.ID, 10)+`}`, groupID, "zip-master-"+strconv.FormatInt(z.ID, 10))
			})
			return nil
		}

		fm := &model.FileMaster{
			ProcessingJobID: jobID,
			GxBucketID:      job.GxBucketID,
			FileLocation:    job.FileLocation,
			FileName:        job.OriginalFilename,
			FileSize:        fileSize,
			Extension:       ext,
			FileHash:        fileHash,
			SourceType:      model.SourceUploaded,
			Depth:           0,
		}
		created, isDuplicate, err := db.CreateFileMaster(ctx, tx, fm)
		if err != nil {
			return err
		}
		if isDuplicate {
			return nil
		}
		groupID := job.BucketKey()
		dedupID := groupID + "-" + created.FileHash
		ac.Defer(func() {
			h.sendTrigger(ctx, h.fileQueue, `{"fileMasterId":`+strconv.FormatInt(created.ID, 10)+`}`, groupID, dedupID)
		})
		return nil
	})

	if errors.Is(err, errJobRaced) {
		writeError(w, http.StatusConflict, "conflict", "job is not awaiting processing trigger")
		return
	}
	if err != nil {
		slog.Error("failed to trigger processing", "error", err, "job_id", jobID)
		writeError(w, http.StatusInternalServerError, "internal", "failed to trigger processing")
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

var errJobRaced = errors.New("job status changed concurrently")

// hashUploadedObject streams the object at key through SHA-256, the same
// content hash used for dedup everywhere else in the pipeline (spec §4.3
// step 2, §4.4 SQS message attributes "dedup = group + fileHash for
// uploaded files").
func (h *JobHandler) hashUploadedObject(ctx context.Context, key string) (string, error) {
	body, err := h.store.GetStream(ctx, key)
	if err != nil {
		return "", err
	}
	defer body.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, body); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func (h *JobHandler) sendTrigger(ctx context.Context, q *queue.Queue, body, groupID, dedupID string) {
	if err := q.Send(ctx, queue.SendParams{Body: body, GroupID: groupID, DeduplicationID: dedupID}); err != nil {
		slog.Error("failed to send trigger message", "error", err, "group_id", groupID)
	}
}

func writeJobLookupError(w http.ResponseWriter, jobID string, err error) {
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	slog.Error("failed to load job", "error", err, "job_id", jobID)
	writeError(w, http.StatusInternalServerError, "internal", "failed to load job")
}
