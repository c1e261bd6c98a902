package stan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vk/stanbenchgo/internal/ctxlog"
)

// errorBodyLimit caps how much of a failed response is read back for the
// error message.
const errorBodyLimit = 4 * 1024

// Client talks to a single httpstan-compatible server.
type Client struct {
	hc      *http.Client
	baseURL string
}

// NewClient validates the server URL and returns a client with a pooled
// transport. A zero timeout disables the per-request deadline; callers then
// control cancellation through the context alone.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse server URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server URL %q must use http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("server URL %q has no host", baseURL)
	}

	hc := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	return &Client{hc: hc, baseURL: strings.TrimRight(u.String(), "/")}, nil
}

// BaseURL returns the normalized server URL the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CreateModel asks the server to compile a Stan program and returns the
// model it is published under. Compilation results are cached server-side,
// so repeated calls with the same program are cheap.
func (c *Client) CreateModel(ctx context.Context, programCode string) (*Model, error) {
	body := struct {
		ProgramCode string `json:"program_code"`
	}{ProgramCode: programCode}

	var model Model
	if err := c.postJSON(ctx, "/v1/models", body, &model); err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}
	if model.Name == "" {
		return nil, fmt.Errorf("create model response carries no model name")
	}
	return &model, nil
}

// CreateFit launches a sampling job against a compiled model. The returned
// operation is the handle to poll; its metadata names the fit artifact that
// will hold the draws.
func (c *Client) CreateFit(ctx context.Context, modelName string, req FitRequest) (*Operation, error) {
	var op Operation
	if err := c.postJSON(ctx, "/v1/"+modelName+"/fits", req, &op); err != nil {
		return nil, fmt.Errorf("failed to create fit: %w", err)
	}
	if op.Name == "" {
		return nil, fmt.Errorf("create fit response carries no operation name")
	}
	if op.Metadata.Fit.Name == "" {
		return nil, fmt.Errorf("create fit response carries no fit name")
	}
	return &op, nil
}

// GetOperation fetches the current state of an operation.
func (c *Client) GetOperation(ctx context.Context, operationName string) (*Operation, error) {
	var op Operation
	if err := c.getJSON(ctx, "/v1/"+operationName, &op); err != nil {
		return nil, fmt.Errorf("failed to get operation %s: %w", operationName, err)
	}
	return &op, nil
}

// DownloadFit streams the fit artifact into w exactly as the server sent it
// and reports how many bytes were written.
func (c *Client) DownloadFit(ctx context.Context, fitName string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/"+fitName, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return 0, fmt.Errorf("failed to download fit %s: %w", fitName, newAPIError(resp, raw))
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to stream fit body: %w", err)
	}
	return n, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(ctx, req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.doJSON(ctx, req, out)
}

func (c *Client) doJSON(ctx context.Context, req *http.Request, out any) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Sending request.", "method", req.Method, "url", req.URL.String())

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	logger.Debug("Received response.", "status", resp.Status, "bytes", len(raw))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// APIError is returned when the server answers with a non-success status.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server returned %s: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server returned %s", e.Status)
}

// newAPIError lifts the server's message out of an error body. httpstan
// replies with {"code","status","message"}; other servers may nest the
// message under an "error" object, and some send plain text.
func newAPIError(resp *http.Response, body []byte) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode, Status: resp.Status}

	var payload struct {
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			apiErr.Message = payload.Message
		} else if payload.Error.Message != "" {
			apiErr.Message = payload.Error.Message
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}
