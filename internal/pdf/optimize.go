package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jharjadi/docingest/internal/pipeline/classify"
	"github.com/jharjadi/docingest/internal/process"
)

// Optimizer compresses a PDF's bytes, returning the candidate bytes. The
// caller (not the optimizer) enforces the "never return larger/empty"
// invariant (spec §8), since that check is identical across strategies.
type Optimizer interface {
	Optimize(ctx context.Context, input []byte, workDir string) ([]byte, classify.Result)
}

// NoopOptimizer returns the input unchanged, used when
// config.OptimizerNone is selected.
type NoopOptimizer struct{}

func (NoopOptimizer) Optimize(ctx context.Context, input []byte, workDir string) ([]byte, classify.Result) {
	return input, classify.OkResult()
}

// GhostscriptOptimizer recompresses via ghostscript's PDF-to-PDF device
// with a configurable quality preset (e.g. "/ebook").
type GhostscriptOptimizer struct {
	Preset  string
	Timeout time.Duration
}

func (g GhostscriptOptimizer) Optimize(ctx context.Context, input []byte, workDir string) ([]byte, classify.Result) {
	inPath, outPath, cleanup, err := prepTempPaths(workDir, input)
	if err != nil {
		return nil, classify.TransientIOErr(err.Error())
	}
	defer cleanup()

	args := []string{
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=1.4",
		"-dPDFSETTINGS=" + g.Preset,
		"-dNOPAUSE", "-dBATCH", "-dQUIET",
		"-sOutputFile=" + outPath,
		inPath,
	}

	res, err := process.Run(ctx, "pdf-optimize-gs", "gs", args, g.Timeout)
	if err != nil {
		return nil, classify.TransientExternalErr("ghostscript invocation failed: " + err.Error())
	}
	if res.ExitCode != 0 {
		return nil, classify.ClassifyProcessFailure(res.ExitCode, res.Stderr)
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, classify.Malformed("ghostscript produced no output: " + err.Error())
	}
	return out, classify.OkResult()
}

// QPDFOptimizer recompresses via qpdf with configurable argv fragments
// (e.g. "--optimize-images", "--compress-streams=y").
type QPDFOptimizer struct {
	Options []string
	Timeout time.Duration
}

func (q QPDFOptimizer) Optimize(ctx context.Context, input []byte, workDir string) ([]byte, classify.Result) {
	inPath, outPath, cleanup, err := prepTempPaths(workDir, input)
	if err != nil {
		return nil, classify.TransientIOErr(err.Error())
	}
	defer cleanup()

	args := append(append([]string{}, q.Options...), inPath, outPath)

	res, err := process.Run(ctx, "pdf-optimize-qpdf", "qpdf", args, q.Timeout)
	if err != nil {
		return nil, classify.TransientExternalErr("qpdf invocation failed: " + err.Error())
	}
	if res.ExitCode != 0 {
		return nil, classify.ClassifyProcessFailure(res.ExitCode, res.Stderr)
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, classify.Malformed("qpdf produced no output: " + err.Error())
	}
	return out, classify.OkResult()
}

func prepTempPaths(workDir string, input []byte) (inPath, outPath string, cleanup func(), err error) {
	id := uuid.New().String()
	inPath = filepath.Join(workDir, id+"-in.pdf")
	outPath = filepath.Join(workDir, id+"-out.pdf")
	if err = os.WriteFile(inPath, input, 0o644); err != nil {
		return "", "", nil, fmt.Errorf("write optimizer input: %w", err)
	}
	cleanup = func() {
		os.Remove(inPath)
		os.Remove(outPath)
	}
	return inPath, outPath, cleanup, nil
}

// ApplyIfSmaller runs opt and keeps the candidate only if it is strictly
// smaller and non-empty (spec §4.5, §8); otherwise the original is
// retained.
func ApplyIfSmaller(ctx context.Context, opt Optimizer, original []byte, workDir string) ([]byte, classify.Result) {
	candidate, result := opt.Optimize(ctx, original, workDir)
	if result.Outcome != classify.Ok {
		return original, result
	}
	if len(candidate) == 0 || len(candidate) >= len(original) {
		return original, classify.OkResult()
	}
	return candidate, classify.OkResult()
}
