// Package gxclient is an HTTP client for the GX semantic-indexing service's
// three operations (spec §6): create bucket, ingest-by-URL, and fetch
// status. Shaped directly on the teacher's LLMService HTTP client
// (internal/service/llm.go): a thin struct around *http.Client, one method
// per external operation, JSON marshal/send/read/unmarshal with wrapped
// errors at each step.
package gxclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client calls the GX HTTP API using a single static auth header.
type Client struct {
	baseURL    string
	authHeader string
	authValue  string
	client     *http.Client
}

func New(baseURL, authHeaderName, authHeaderValue string) *Client {
	return &Client{
		baseURL:    baseURL,
		authHeader: authHeaderName,
		authValue:  authHeaderValue,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// StatusError is returned when GX responds with a non-2xx status, carrying
// the code so callers can classify it (spec §7: 4xx terminal, 5xx/timeout
// transient).
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gx returned %d: %s", e.StatusCode, e.Body)
}

type CreateBucketResponse struct {
	Bucket struct {
		BucketID string `json:"bucketId"`
	} `json:"bucket"`
}

// CreateBucket calls POST /bucket {name}.
func (c *Client) CreateBucket(ctx context.Context, name string) (*CreateBucketResponse, error) {
	var out CreateBucketResponse
	if err := c.do(ctx, http.MethodPost, "/bucket", map[string]string{"name": name}, &out); err != nil {
		return nil, fmt.Errorf("create bucket %q: %w", name, err)
	}
	return &out, nil
}

// IngestUploadDocument is one entry in an /ingest/upload request.
type IngestUploadDocument struct {
	BucketID  string `json:"bucketId"`
	FileName  string `json:"fileName"`
	FileType  string `json:"fileType"`
	SourceURL string `json:"sourceUrl"`
}

type IngestUploadResponse struct {
	Ingest struct {
		ProcessID string `json:"processId"`
		Status    string `json:"status"`
	} `json:"ingest"`
	Message string `json:"message,omitempty"`
}

// IngestUpload calls POST /ingest/upload with a single document, matching
// the GX upload scheduler's one-document-per-call usage (spec §4.7).
func (c *Client) IngestUpload(ctx context.Context, doc IngestUploadDocument) (*IngestUploadResponse, error) {
	body := map[string]any{"documents": []IngestUploadDocument{doc}}
	var out IngestUploadResponse
	if err := c.do(ctx, http.MethodPost, "/ingest/upload", body, &out); err != nil {
		return nil, fmt.Errorf("ingest upload %s: %w", doc.FileName, err)
	}
	return &out, nil
}

type IngestStatusResponse struct {
	Ingest struct {
		ID            string `json:"id"`
		ProcessID     string `json:"processId"`
		Progress      float64 `json:"progress"`
		Status        string `json:"status"`
		StatusMessage string `json:"statusMessage"`
	} `json:"ingest"`
}

// FetchStatus calls GET /ingest/status/{processId}.
func (c *Client) FetchStatus(ctx context.Context, processID string) (*IngestStatusResponse, error) {
	var out IngestStatusResponse
	if err := c.do(ctx, http.MethodGet, "/ingest/status/"+processID, nil, &out); err != nil {
		return nil, fmt.Errorf("fetch status %s: %w", processID, err)
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, reqBody any, out any) error {
	var bodyReader io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(c.authHeader, c.authValue)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
