package stan

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL, 5*time.Second)
	require.NoError(t, err)
	return client, srv
}

// TestNewClient_RejectsInvalidURL verifies that malformed server URLs are
// caught at construction time rather than on the first request.
func TestNewClient_RejectsInvalidURL(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		url  string
	}{
		{name: "empty", url: ""},
		{name: "no scheme", url: "localhost:8080"},
		{name: "wrong scheme", url: "ftp://localhost:8080"},
		{name: "no host", url: "http://"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewClient(tc.url, time.Second)
			require.Error(t, err, "URL %q should be rejected", tc.url)
		})
	}
}

// TestCreateModel_Success verifies the request shape of the compile call and
// that the returned model name is surfaced.
func TestCreateModel_Success(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/models", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body struct {
			ProgramCode string `json:"program_code"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "parameters { real mu; } model { mu ~ normal(0, 1); }", body.ProgramCode)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"name":"models/abc123","compiler_output":""}`))
	}))

	// --- Act ---
	model, err := client.CreateModel(context.Background(), "parameters { real mu; } model { mu ~ normal(0, 1); }")

	// --- Assert ---
	require.NoError(t, err)
	require.Equal(t, "models/abc123", model.Name)
}

// TestCreateModel_ServerError verifies that an error body is decoded into an
// APIError carrying the server's message.
func TestCreateModel_ServerError(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":400,"status":"Bad Request","message":"program does not compile"}`))
	}))

	// --- Act ---
	_, err := client.CreateModel(context.Background(), "broken program")

	// --- Assert ---
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr, "error should unwrap to an APIError")
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.Equal(t, "program does not compile", apiErr.Message)
	require.Contains(t, err.Error(), "program does not compile")
}

// TestCreateFit_Success verifies the fit request lands on the model's fits
// collection with the sampling parameters intact.
func TestCreateFit_Success(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/models/abc123/fits", r.URL.Path)

		var body struct {
			Function   string         `json:"function"`
			Data       map[string]any `json:"data"`
			NumWarmup  int            `json:"num_warmup"`
			NumSamples int            `json:"num_samples"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "stan::services::sample::hmc_nuts_diag_e_adapt", body.Function)
		require.Equal(t, 1000, body.NumWarmup)
		require.Equal(t, 1000, body.NumSamples)
		require.Equal(t, float64(800), body.Data["J"], "JSON numbers decode as float64")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{
			"name": "operations/op1",
			"done": false,
			"metadata": {"fit": {"name": "models/abc123/fits/fit1"}}
		}`))
	}))

	req := FitRequest{
		Function:   "stan::services::sample::hmc_nuts_diag_e_adapt",
		Data:       map[string]any{"J": int64(800)},
		NumWarmup:  1000,
		NumSamples: 1000,
	}

	// --- Act ---
	op, err := client.CreateFit(context.Background(), "models/abc123", req)

	// --- Assert ---
	require.NoError(t, err)
	require.Equal(t, "operations/op1", op.Name)
	require.False(t, op.Done)
	require.Equal(t, "models/abc123/fits/fit1", op.Metadata.Fit.Name)
}

// TestCreateFit_MissingFitName verifies that a response without the fit
// handle is rejected instead of silently producing an empty download path.
func TestCreateFit_MissingFitName(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"name":"operations/op1","done":false,"metadata":{}}`))
	}))

	// --- Act ---
	_, err := client.CreateFit(context.Background(), "models/abc123", FitRequest{Function: "f"})

	// --- Assert ---
	require.Error(t, err)
	require.Contains(t, err.Error(), "no fit name")
}

// TestWaitOperation_PollsUntilDone verifies the fixed-interval loop keeps
// asking until the first done response and counts every request it made.
func TestWaitOperation_PollsUntilDone(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	var requests atomic.Int64
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/v1/operations/op1", r.URL.Path)

		n := requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if n < 3 {
			_, _ = w.Write([]byte(`{"name":"operations/op1","done":false,"metadata":{"fit":{"name":"models/m/fits/f"}}}`))
			return
		}
		_, _ = w.Write([]byte(`{"name":"operations/op1","done":true,"metadata":{"fit":{"name":"models/m/fits/f"}},"result":{"name":"models/m/fits/f"}}`))
	}))

	// --- Act ---
	op, polls, err := client.WaitOperation(context.Background(), "operations/op1", time.Millisecond)

	// --- Assert ---
	require.NoError(t, err)
	require.True(t, op.Done)
	require.Equal(t, 3, polls)
	require.EqualValues(t, 3, requests.Load(), "every poll should hit the server exactly once")
}

// TestWaitOperation_ImmediateDone verifies that even an already-finished
// operation is queried at least once.
func TestWaitOperation_ImmediateDone(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"operations/op1","done":true,"metadata":{"fit":{"name":"models/m/fits/f"}}}`))
	}))

	// --- Act ---
	op, polls, err := client.WaitOperation(context.Background(), "operations/op1", time.Hour)

	// --- Assert ---
	require.NoError(t, err)
	require.True(t, op.Done)
	require.Equal(t, 1, polls)
}

// TestWaitOperation_ContextCancelled verifies the loop is abandoned once the
// context expires instead of polling forever.
func TestWaitOperation_ContextCancelled(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"operations/op1","done":false,"metadata":{"fit":{"name":"models/m/fits/f"}}}`))
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// --- Act ---
	_, polls, err := client.WaitOperation(ctx, "operations/op1", 5*time.Millisecond)

	// --- Assert ---
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.GreaterOrEqual(t, polls, 1, "the loop always issues at least one request")
}

// TestDownloadFit_StreamsBodyVerbatim verifies the artifact bytes reach the
// writer untouched, including bytes that are not valid UTF-8.
func TestDownloadFit_StreamsBodyVerbatim(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	payload := []byte{0x08, 0x03, 0x12, 0x00, 0xFF, 0xFE, 0x00, 0x7F, 0x80, 0x01}
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/v1/models/abc123/fits/fit1", r.URL.Path)

		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(payload)
	}))

	var buf bytes.Buffer

	// --- Act ---
	n, err := client.DownloadFit(context.Background(), "models/abc123/fits/fit1", &buf)

	// --- Assert ---
	require.NoError(t, err)
	require.EqualValues(t, len(payload), n)
	require.Equal(t, payload, buf.Bytes(), "downloaded bytes must match the response body exactly")
}

// TestDownloadFit_ServerError verifies a missing fit surfaces as an APIError
// instead of binary garbage being written out.
func TestDownloadFit_ServerError(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":404,"status":"Not Found","message":"fit not found"}`))
	}))

	var buf bytes.Buffer

	// --- Act ---
	n, err := client.DownloadFit(context.Background(), "models/abc123/fits/missing", &buf)

	// --- Assert ---
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	require.Zero(t, n)
	require.Zero(t, buf.Len(), "nothing should be written on a failed download")
}

// TestAPIError_MessageFallbacks verifies the error body shapes we accept.
func TestAPIError_MessageFallbacks(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		body string
		want string
	}{
		{name: "flat message", body: `{"message":"boom"}`, want: "boom"},
		{name: "nested error", body: `{"error":{"message":"nested boom"}}`, want: "nested boom"},
		{name: "plain text", body: "upstream exploded", want: "upstream exploded"},
		{name: "empty body", body: "", want: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			resp := &http.Response{StatusCode: http.StatusInternalServerError, Status: "500 Internal Server Error"}
			apiErr := newAPIError(resp, []byte(tc.body))
			require.Equal(t, tc.want, apiErr.Message)
			require.Contains(t, apiErr.Error(), "500")
		})
	}
}
