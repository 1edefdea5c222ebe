package handler

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/jharjadi/docingest/internal/db"
)

func TestWriteJobLookupError_NotFoundWrapped(t *testing.T) {
	rr := httptest.NewRecorder()
	writeJobLookupError(rr, "job-1", fmt.Errorf("job %s: %w", "job-1", db.ErrNotFound))

	if rr.Code != 404 {
		t.Fatalf("expected 404 for a wrapped ErrNotFound, got %d", rr.Code)
	}
}

func TestWriteJobLookupError_NotFound(t *testing.T) {
	rr := httptest.NewRecorder()
	writeJobLookupError(rr, "job-1", db.ErrNotFound)

	if rr.Code != 404 {
		t.Fatalf("expected 404 for db.ErrNotFound, got %d", rr.Code)
	}
}

func TestWriteJobLookupError_InternalError(t *testing.T) {
	rr := httptest.NewRecorder()
	writeJobLookupError(rr, "job-1", errors.New("connection reset"))

	if rr.Code != 500 {
		t.Fatalf("expected 500 for an unrelated error, got %d", rr.Code)
	}
}
