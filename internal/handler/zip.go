package handler

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"path"
	"strings"

	"github.com/jharjadi/docingest/internal/model"
	"github.com/jharjadi/docingest/internal/pipeline/classify"
)

// ZipHandler extracts a nested ZIP archive encountered inside another
// archive (distinct from the top-level ZIP consumer in spec §4.3, which
// locks and owns the ZipMaster). Reads entries via stdlib archive/zip --
// the corpus's own idiom, since no third-party ZIP library appears
// anywhere in the example pack. The whole archive is read into memory
// before its central directory is parsed; it is not streamed.
type ZipHandler struct{}

func NewZipHandler() *ZipHandler { return &ZipHandler{} }

func (h *ZipHandler) Supports(ext string) bool { return ext == "zip" }

func (h *ZipHandler) Handle(ctx context.Context, stream io.Reader, fm *model.FileMaster) ([]model.ExtractedFileItem, classify.Result) {
	buf, err := io.ReadAll(stream)
	if err != nil {
		return nil, classify.TransientIOErr("read zip stream: " + err.Error())
	}

	zr, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, classify.Malformed("not a valid zip archive: " + err.Error())
	}

	var items []model.ExtractedFileItem
	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		name := normalizeEntryName(entry.Name)
		if name == "" {
			continue
		}

		rc, err := entry.Open()
		if err != nil {
			return nil, classify.TransientIOErr("open zip entry " + entry.Name + ": " + err.Error())
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, classify.TransientIOErr("read zip entry " + entry.Name + ": " + err.Error())
		}

		items = append(items, model.ExtractedFileItem{Name: name, Bytes: data})
	}

	return items, classify.OkResult()
}

// normalizeEntryName rejects path traversal and hidden/empty names,
// returning "" for anything that must be skipped (spec §4.3).
func normalizeEntryName(raw string) string {
	clean := path.Clean(strings.ReplaceAll(raw, "\\", "/"))
	if clean == "" || clean == "." || strings.HasPrefix(clean, "../") || strings.HasPrefix(clean, "/") {
		return ""
	}
	base := path.Base(clean)
	if base == "" || strings.HasPrefix(base, ".") {
		return ""
	}
	return clean
}
