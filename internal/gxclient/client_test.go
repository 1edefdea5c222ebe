package gxclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateBucket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bucket" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "secret" {
			t.Errorf("missing auth header, got %q", r.Header.Get("X-Api-Key"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"bucket": map[string]string{"bucketId": "b-1"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "X-Api-Key", "secret")
	out, err := c.CreateBucket(t.Context(), "my-bucket")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Bucket.BucketID != "b-1" {
		t.Errorf("expected bucketId b-1, got %q", out.Bucket.BucketID)
	}
}

func TestIngestUpload_SuccessWithProcessID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"ingest": map[string]string{"processId": "p-1", "status": "QUEUED"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "X-Api-Key", "secret")
	out, err := c.IngestUpload(t.Context(), IngestUploadDocument{
		BucketID: "b-1", FileName: "doc.pdf", FileType: "pdf", SourceURL: "https://example.com/doc.pdf",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Ingest.ProcessID != "p-1" {
		t.Errorf("expected processId p-1, got %q", out.Ingest.ProcessID)
	}
}

func TestFetchStatus_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("unavailable"))
	}))
	defer srv.Close()

	c := New(srv.URL, "X-Api-Key", "secret")
	_, err := c.FetchStatus(t.Context(), "p-1")
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
}

func TestStatusError_CarriesCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad request"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "X-Api-Key", "secret")
	_, err := c.CreateBucket(t.Context(), "x")
	var statusErr *StatusError
	if !asStatusError(err, &statusErr) {
		t.Fatalf("expected wrapped *StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", statusErr.StatusCode)
	}
}

func asStatusError(err error, target **StatusError) bool {
	for err != nil {
		if se, ok := err.(*StatusError); ok {
			*target = se
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
