package handler

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jharjadi/docingest/internal/model"
	"github.com/jharjadi/docingest/internal/pdf"
	"github.com/jharjadi/docingest/internal/pipeline/classify"
)

// PDFHandler loads a PDF, splits it when it exceeds the configured page or
// size limits, and optionally optimizes the result (spec §4.5).
type PDFHandler struct {
	maxPages     int
	maxFileSize  int64
	optimizer    pdf.Optimizer
	tempDir      string
	splitTimeout time.Duration
}

func NewPDFHandler(maxPages int, maxFileSize int64, optimizer pdf.Optimizer, tempDir string, splitTimeout time.Duration) *PDFHandler {
	return &PDFHandler{
		maxPages:     maxPages,
		maxFileSize:  maxFileSize,
		optimizer:    optimizer,
		tempDir:      tempDir,
		splitTimeout: splitTimeout,
	}
}

func (h *PDFHandler) Supports(ext string) bool { return ext == "pdf" }

func (h *PDFHandler) Handle(ctx context.Context, stream io.Reader, fm *model.FileMaster) ([]model.ExtractedFileItem, classify.Result) {
	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, classify.TransientIOErr("read pdf input: " + err.Error())
	}

	workDir := filepath.Join(h.tempDir, "pdf-"+uuid.New().String())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, classify.TransientIOErr("create pdf work dir: " + err.Error())
	}
	defer os.RemoveAll(workDir)

	inPath, err := pdf.WriteTemp(workDir, "input-*.pdf", data)
	if err != nil {
		return nil, classify.TransientIOErr(err.Error())
	}

	pageCount, err := pdf.PageCount(inPath)
	if err != nil {
		if err == pdf.ErrPasswordProtected {
			return nil, classify.Protected("file is password protected")
		}
		return nil, classify.Malformed("unreadable pdf: " + err.Error())
	}

	needsSplit := pageCount > h.maxPages || int64(len(data)) > h.maxFileSize
	base := strings.TrimSuffix(fm.FileName, filepath.Ext(fm.FileName))

	if !needsSplit {
		optimized, result := h.maybeOptimize(ctx, data, workDir)
		if result.Outcome != classify.Ok {
			return nil, result
		}
		if len(optimized) == len(data) {
			// Unchanged: treat as the already-terminal original (spec §4.4
			// step 3, empty-list case).
			return nil, classify.OkResult()
		}
		return []model.ExtractedFileItem{{Name: fm.FileName, Bytes: optimized}}, classify.OkResult()
	}

	chunks, err := pdf.Split(ctx, inPath, h.maxPages, h.splitTimeout)
	if err != nil {
		return nil, classify.TransientExternalErr("pdf split failed: " + err.Error())
	}

	items := make([]model.ExtractedFileItem, 0, len(chunks))
	for i, chunk := range chunks {
		optimized, result := h.maybeOptimize(ctx, chunk, workDir)
		if result.Outcome != classify.Ok {
			return nil, result
		}
		items = append(items, model.ExtractedFileItem{
			Name:  fmt.Sprintf("%s_part%d.pdf", base, i+1),
			Bytes: optimized,
		})
	}
	return items, classify.OkResult()
}

func (h *PDFHandler) maybeOptimize(ctx context.Context, data []byte, workDir string) ([]byte, classify.Result) {
	if h.optimizer == nil {
		return data, classify.OkResult()
	}
	return pdf.ApplyIfSmaller(ctx, h.optimizer, data, workDir)
}
