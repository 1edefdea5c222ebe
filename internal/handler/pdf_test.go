package handler

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/jharjadi/docingest/internal/model"
	"github.com/jharjadi/docingest/internal/pipeline/classify"
)

type fakeOptimizer struct {
	shrinkBy int
	result   classify.Result
}

func (f fakeOptimizer) Optimize(ctx context.Context, input []byte, workDir string) ([]byte, classify.Result) {
	if f.result.Outcome != classify.Ok {
		return nil, f.result
	}
	if f.shrinkBy >= len(input) {
		return []byte{}, classify.OkResult()
	}
	return input[:len(input)-f.shrinkBy], classify.OkResult()
}

func TestPDFHandler_Supports(t *testing.T) {
	h := NewPDFHandler(10, 1<<20, nil, t.TempDir(), 5*time.Second)
	if !h.Supports("pdf") {
		t.Error("expected Supports(\"pdf\") to be true")
	}
	if h.Supports("docx") {
		t.Error("expected Supports(\"docx\") to be false")
	}
}

func TestPDFHandler_Handle_MalformedInput(t *testing.T) {
	h := NewPDFHandler(10, 1<<20, nil, t.TempDir(), 5*time.Second)
	fm := &model.FileMaster{FileName: "garbage.pdf", FileSize: 7}

	items, result := h.Handle(context.Background(), bytes.NewReader([]byte("not-pdf")), fm)
	if result.Outcome != classify.TerminalMalformed {
		t.Fatalf("expected TerminalMalformed, got %v (%s)", result.Outcome, result.Reason)
	}
	if items != nil {
		t.Errorf("expected no items for a malformed input, got %d", len(items))
	}
}

func TestMaybeOptimize_NilOptimizer(t *testing.T) {
	h := &PDFHandler{}
	data := []byte("original-bytes")
	out, result := h.maybeOptimize(context.Background(), data, t.TempDir())
	if result.Outcome != classify.Ok {
		t.Fatalf("expected Ok, got %v", result.Outcome)
	}
	if !bytes.Equal(out, data) {
		t.Error("expected passthrough when no optimizer is configured")
	}
}

func TestMaybeOptimize_AppliesSmallerCandidate(t *testing.T) {
	h := &PDFHandler{optimizer: fakeOptimizer{shrinkBy: 4}}
	data := []byte("original-bytes")
	out, result := h.maybeOptimize(context.Background(), data, t.TempDir())
	if result.Outcome != classify.Ok {
		t.Fatalf("expected Ok, got %v", result.Outcome)
	}
	if len(out) != len(data)-4 {
		t.Errorf("expected shrunk output, got len %d", len(out))
	}
}

func TestMaybeOptimize_KeepsOriginalWhenCandidateEmpty(t *testing.T) {
	h := &PDFHandler{optimizer: fakeOptimizer{shrinkBy: 1000}}
	data := []byte("small")
	out, result := h.maybeOptimize(context.Background(), data, t.TempDir())
	if result.Outcome != classify.Ok {
		t.Fatalf("expected Ok, got %v", result.Outcome)
	}
	if !bytes.Equal(out, data) {
		t.Error("expected original bytes retained when candidate is empty")
	}
}

func TestMaybeOptimize_PropagatesOptimizerFailure(t *testing.T) {
	h := &PDFHandler{optimizer: fakeOptimizer{result: classify.Protected("file is password protected")}}
	_, result := h.maybeOptimize(context.Background(), []byte("data"), t.TempDir())
	if result.Outcome != classify.TerminalProtected {
		t.Fatalf("expected TerminalProtected, got %v", result.Outcome)
	}
}
