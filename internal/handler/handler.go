// Package handler implements the per-extension handler contract (spec
// §4.5): ZIP, OFFICE, MSG, and PDF, dispatched through a registry keyed by
// file extension.
package handler

import (
	"context"
	"io"

	"github.com/jharjadi/docingest/internal/model"
	"github.com/jharjadi/docingest/internal/pipeline/classify"
)

// Handler is the common contract every file-type handler implements.
type Handler interface {
	// Supports reports whether this handler handles the given lowercase
	// extension (without the leading dot).
	Supports(ext string) bool
	// Handle reads stream (the file's bytes) and returns the items it
	// produces: empty when the input is already a terminal PDF, one
	// "<source-base>.pdf" item when the handler transforms the input in
	// place (e.g. office->pdf), or one or more extracted children otherwise
	// (zip entries, msg attachments, split chunks).
	Handle(ctx context.Context, stream io.Reader, fm *model.FileMaster) ([]model.ExtractedFileItem, classify.Result)
}

// Registry maps a file extension to the handler that processes it.
type Registry struct {
	handlers []Handler
}

func NewRegistry(handlers ...Handler) *Registry {
	return &Registry{handlers: handlers}
}

// Lookup finds the handler registered for ext, or false if the extension is
// unsupported (spec §2: "rejects unknown extensions as a validation error").
func (r *Registry) Lookup(ext string) (Handler, bool) {
	for _, h := range r.handlers {
		if h.Supports(ext) {
			return h, true
		}
	}
	return nil, false
}
