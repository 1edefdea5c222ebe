// Package model defines the domain types for the ingestion pipeline.
package model

import "time"

// ProcessingJobStatus is the lifecycle state of a ProcessingJob (spec §4.2).
type ProcessingJobStatus string

const (
	JobPendingUpload  ProcessingJobStatus = "PENDING_UPLOAD"
	JobUploadComplete ProcessingJobStatus = "UPLOAD_COMPLETE"
	JobQueued         ProcessingJobStatus = "QUEUED"
	JobInProgress     ProcessingJobStatus = "IN_PROGRESS"
	JobCompleted      ProcessingJobStatus = "COMPLETED"
	JobFailed         ProcessingJobStatus = "FAILED"
	JobTerminated     ProcessingJobStatus = "TERMINATED"
)

// ZipStatus is the lifecycle state of a ZipMaster.
type ZipStatus string

const (
	ZipQueuedForExtraction ZipStatus = "QUEUED_FOR_EXTRACTION"
	ZipExtracting          ZipStatus = "EXTRACTING"
	ZipExtracted           ZipStatus = "EXTRACTED"
	ZipExtractionFailed    ZipStatus = "EXTRACTION_FAILED"
	ZipTerminated          ZipStatus = "TERMINATED"
)

// FileStatus is the lifecycle state of a FileMaster.
type FileStatus string

const (
	FileQueued     FileStatus = "QUEUED"
	FileInProgress FileStatus = "IN_PROGRESS"
	FileCompleted  FileStatus = "COMPLETED"
	FileFailed     FileStatus = "FAILED"
	FileDuplicate  FileStatus = "DUPLICATE"
	FileIgnored    FileStatus = "IGNORED"
	FileTerminated FileStatus = "TERMINATED"
)

// SourceType distinguishes files the client uploaded from ones a handler extracted.
type SourceType string

const (
	SourceUploaded  SourceType = "UPLOADED"
	SourceExtracted SourceType = "EXTRACTED"
)

// GxStatus is the lifecycle state of a GxMaster.
type GxStatus string

const (
	GxQueuedForUpload GxStatus = "QUEUED_FOR_UPLOAD"
	GxQueued          GxStatus = "QUEUED"
	GxProcessing      GxStatus = "PROCESSING"
	GxActive          GxStatus = "ACTIVE"
	GxComplete        GxStatus = "COMPLETE"
	GxSkipped         GxStatus = "SKIPPED"
	GxError           GxStatus = "ERROR"
	GxCancelled       GxStatus = "CANCELLED"
	GxTerminated      GxStatus = "TERMINATED"
)

// TerminalFileStatuses are FileMaster statuses from which no automatic transition occurs.
var TerminalFileStatuses = map[FileStatus]bool{
	FileCompleted:  true,
	FileFailed:     true,
	FileDuplicate:  true,
	FileIgnored:    true,
	FileTerminated: true,
}

// TerminalGxStatuses are GxMaster statuses from which no automatic transition occurs.
var TerminalGxStatuses = map[GxStatus]bool{
	GxComplete:   true,
	GxSkipped:    true,
	GxError:      true,
	GxCancelled:  true,
	GxTerminated: true,
}

// SuccessfulTerminalFileStatuses count toward a job's COMPLETED determination (spec §4.2, §9 open question).
var SuccessfulTerminalFileStatuses = map[FileStatus]bool{
	FileCompleted: true,
	FileDuplicate: true,
	FileIgnored:   true,
}

// SuccessfulTerminalGxStatuses count toward a job's COMPLETED determination.
// SKIPPED counts as success per spec §9's adopted open-question answer.
var SuccessfulTerminalGxStatuses = map[GxStatus]bool{
	GxComplete: true,
	GxSkipped:  true,
}

// ProcessingJob is the unit the client sees (spec §3).
type ProcessingJob struct {
	ID               string
	OriginalFilename string
	FileLocation     string
	Status           ProcessingJobStatus
	CurrentStage     string
	ErrorMessage     string
	GxBucketID       *string // nil => BULK job
	SkipGxProcess    bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsBulk reports whether the job is a BULK (no gxBucketId, must be a ZIP) job.
func (j *ProcessingJob) IsBulk() bool {
	return j.GxBucketID == nil
}

// BucketKey returns the SQS message-group-id for this job's children:
// gxBucketId if set, else "bulk-<jobID>" (spec §4.4 SQS message attributes).
func (j *ProcessingJob) BucketKey() string {
	if j.GxBucketID != nil {
		return *j.GxBucketID
	}
	return "bulk-" + j.ID
}

// ZipMaster is created once per ZIP ProcessingJob (spec §3).
type ZipMaster struct {
	ID                  int64
	ProcessingJobID     string
	GxBucketID          *string
	ZipProcessingStatus ZipStatus
	OriginalFilePath    string
	OriginalFileName    string
	FileSize            int64
	ErrorMessage        string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// GxBucketIDOrBulk returns the SQS message-group-id for entries extracted
// from this archive: the bucket id, or "bulk-<jobID>" for BULK jobs
// (spec §4.4 "SQS message attributes").
func (z *ZipMaster) GxBucketIDOrBulk() string {
	if z.GxBucketID != nil {
		return *z.GxBucketID
	}
	return "bulk-" + z.ProcessingJobID
}

// FileMaster is created once per file that needs normalizing (spec §3).
type FileMaster struct {
	ID                   int64
	ZipMasterID          *int64
	ProcessingJobID      string
	GxBucketID           *string
	DuplicateOfFileID    *int64
	FileLocation         string
	FileName             string
	FileSize             int64
	Extension            string
	FileHash             string
	FileProcessingStatus FileStatus
	ErrorMessage         string
	SourceType           SourceType
	Depth                int // recursion depth via parent chain (SPEC_FULL §C zip-bomb guard)
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// BucketKey returns the dedup scope: gxBucketId if set, else "bulk-<jobID>" (spec §4.4, §9 open question).
func (f *FileMaster) BucketKey() string {
	if f.GxBucketID != nil {
		return *f.GxBucketID
	}
	return "bulk-" + f.ProcessingJobID
}

// GxMaster is created once per terminal PDF artifact to be indexed (spec §3).
type GxMaster struct {
	ID                int64
	SourceFileID      int64
	GxBucketID        *string
	FileLocation      string
	ProcessedFileName string
	FileSize          int64
	Extension         string
	GxStatus          GxStatus
	GxProcessID       *string
	ErrorMessage      string
	CreatedAt         time.Time
}

// ExtractedFileItem is produced by a Handler: a transformation or an extracted child (spec §4.5).
type ExtractedFileItem struct {
	Name  string
	Bytes []byte
}

// DocumentProcessingRow is one row of the derived DocumentProcessingView (spec §3).
// It UNIONs FileMaster rows without a GxMaster ("Ingestion") with GxMaster rows ("GroundX").
type DocumentProcessingRow struct {
	Source          string // "Ingestion" | "GroundX"
	ProcessingJobID string
	FileMasterID    int64
	GxMasterID      *int64
	FileName        string
	DisplayStatus   string
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Pagination describes a bounded page request/response window.
type Pagination struct {
	Page  int
	Limit int
}

// DefaultPagination normalizes page/limit query params to sane bounds.
func DefaultPagination(page, limit int) Pagination {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	return Pagination{Page: page, Limit: limit}
}

// Offset returns the SQL OFFSET for this page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// ErrorResponse is the standard JSON error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
