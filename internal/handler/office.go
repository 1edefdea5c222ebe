package handler

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jharjadi/docingest/internal/model"
	"github.com/jharjadi/docingest/internal/pipeline/classify"
	"github.com/jharjadi/docingest/internal/process"
)

// OfficeHandler converts office documents to PDF via a headless LibreOffice
// subprocess, isolating each conversion in its own temp user profile
// directory so the office suite's inherent singleton-ness per host doesn't
// let concurrent conversions corrupt each other's state (spec §5, §4.5).
type OfficeHandler struct {
	extensions map[string]bool
	tempDir    string
	timeout    time.Duration
}

func NewOfficeHandler(extensions map[string]bool, tempDir string, timeout time.Duration) *OfficeHandler {
	return &OfficeHandler{extensions: extensions, tempDir: tempDir, timeout: timeout}
}

func (h *OfficeHandler) Supports(ext string) bool { return h.extensions[ext] }

func (h *OfficeHandler) Handle(ctx context.Context, stream io.Reader, fm *model.FileMaster) ([]model.ExtractedFileItem, classify.Result) {
	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, classify.TransientIOErr("read office input: " + err.Error())
	}

	workDir := filepath.Join(h.tempDir, "office-"+uuid.New().String())
	profileDir := filepath.Join(workDir, "profile")
	if err := os.MkdirAll(profileDir, 0o755); err != nil {
		return nil, classify.TransientIOErr("create office work dir: " + err.Error())
	}
	defer os.RemoveAll(workDir)

	inputPath := filepath.Join(workDir, fm.FileName)
	if err := os.WriteFile(inputPath, data, 0o644); err != nil {
		return nil, classify.TransientIOErr("write office input: " + err.Error())
	}

	args := []string{
		"--headless",
		"--norestore",
		"-env:UserInstallation=file://" + profileDir,
		"--convert-to", "pdf",
		"--outdir", workDir,
		inputPath,
	}

	res, err := process.Run(ctx, "office-convert", "soffice", args, h.timeout)
	if err != nil {
		return nil, classify.TransientExternalErr("soffice invocation failed: " + err.Error())
	}
	if res.ExitCode != 0 {
		return nil, classify.ClassifyProcessFailure(res.ExitCode, res.Stderr)
	}

	base := strings.TrimSuffix(fm.FileName, filepath.Ext(fm.FileName))
	outputPath := filepath.Join(workDir, base+".pdf")
	pdfBytes, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, classify.Malformed("office conversion produced no pdf output: " + err.Error())
	}

	return []model.ExtractedFileItem{{Name: base + ".pdf", Bytes: pdfBytes}}, classify.OkResult()
}
