package pipeline

import (
	"testing"

	"github.com/jharjadi/docingest/internal/config"
	"github.com/jharjadi/docingest/internal/model"
)

func TestExtensionOf(t *testing.T) {
	tests := map[string]string{
		"report.PDF":     "pdf",
		"archive.tar.gz": "gz",
		"noext":          "",
		"sub/dir.docx":   "docx",
	}
	for name, want := range tests {
		if got := extensionOf(name); got != want {
			t.Errorf("extensionOf(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestFileWorker_PolicyFor(t *testing.T) {
	cfg := &config.Config{
		ZipHandlerRetry:       config.RetryConfig{Attempts: 3, DelayMS: 10},
		MsgHandlerRetry:       config.RetryConfig{Attempts: 2, DelayMS: 10},
		OptimizerRetry:        config.RetryConfig{Attempts: 1, DelayMS: 10},
		LibreOfficeRetry:      config.RetryConfig{Attempts: 4, DelayMS: 10},
		ConvertibleExtensions: map[string]bool{"docx": true},
		MaxExtractionDepth:    4,
	}
	w := NewFileWorker(nil, nil, nil, nil, nil, cfg)

	if got := w.policyFor("zip"); got != w.policies["zip"] {
		t.Errorf("expected zip extension to use the zip handler policy")
	}
	if _, ok := w.policies["docx"]; !ok {
		t.Error("expected a convertible extension to have a mapped office retry policy")
	}
	if got := w.policyFor("unknown"); got != w.defaultPolicy {
		t.Errorf("expected an unmapped extension to fall back to the default policy")
	}
}

func TestIsInPlaceTransform(t *testing.T) {
	fm := &model.FileMaster{FileName: "report.docx"}

	if !isInPlaceTransform(fm, model.ExtractedFileItem{Name: "report.pdf"}) {
		t.Error("same-base pdf should count as an in-place transform")
	}
	if isInPlaceTransform(fm, model.ExtractedFileItem{Name: "attachment.pdf"}) {
		t.Error("a differently-named pdf is an extracted child, not a transform")
	}
	if isInPlaceTransform(fm, model.ExtractedFileItem{Name: "report.docx"}) {
		t.Error("a non-pdf item, even same-named, is not a transform")
	}
}
