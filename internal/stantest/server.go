// Package stantest runs an in-process fake of an httpstan-compatible server
// so client and runner tests can exercise the full compile, fit, poll and
// download flow without a Stan toolchain.
package stantest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/vk/stanbenchgo/internal/draws"
)

// maxFixtureDraws caps how many sample messages a fake artifact holds, so a
// scenario asking for thousands of draws still produces a small fixture.
const maxFixtureDraws = 64

// Server is the fake. All state is in memory and every response is
// deterministic for a given request sequence.
type Server struct {
	srv *httptest.Server

	mu              sync.Mutex
	pollsBeforeDone int
	nextFit         int
	models          map[string]string
	fits            map[string][]byte
	ops             map[string]*operationState
	requests        []string
}

type operationState struct {
	fitName   string
	remaining int
}

// Option adjusts the fake's behavior before it starts serving.
type Option func(*Server)

// WithPollsBeforeDone makes every operation report done only on the n+1th
// status request. The default is zero: done on the first poll.
func WithPollsBeforeDone(n int) Option {
	return func(s *Server) {
		s.pollsBeforeDone = n
	}
}

// NewServer starts the fake and registers its shutdown with the test.
func NewServer(t *testing.T, opts ...Option) *Server {
	t.Helper()

	s := &Server{
		models: map[string]string{},
		fits:   map[string][]byte{},
		ops:    map[string]*operationState{},
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/models", s.handleCreateModel)
	mux.HandleFunc("POST /v1/models/{model}/fits", s.handleCreateFit)
	mux.HandleFunc("GET /v1/operations/{op}", s.handleGetOperation)
	mux.HandleFunc("GET /v1/models/{model}/fits/{fit}", s.handleGetFit)

	s.srv = httptest.NewServer(mux)
	t.Cleanup(s.srv.Close)
	return s
}

// URL returns the base URL clients should be pointed at.
func (s *Server) URL() string {
	return s.srv.URL
}

// Requests returns every request seen so far as "METHOD path", in arrival
// order. Tests use it to assert the strict compile, fit, poll, download
// sequence.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.requests))
	copy(out, s.requests)
	return out
}

// Artifact returns the exact bytes the fake serves for a fit, for comparing
// against what a client wrote to disk.
func (s *Server) Artifact(fitName string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.fits[fitName]...)
}

// ModelName returns the deterministic name the fake assigns to a program.
func ModelName(programCode string) string {
	sum := sha256.Sum256([]byte(programCode))
	return "models/" + hex.EncodeToString(sum[:])[:10]
}

func (s *Server) record(r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)
}

func (s *Server) handleCreateModel(w http.ResponseWriter, r *http.Request) {
	s.record(r)

	var body struct {
		ProgramCode string `json:"program_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "request body is not valid JSON")
		return
	}
	if body.ProgramCode == "" {
		writeError(w, http.StatusUnprocessableEntity, "program_code is required")
		return
	}

	name := ModelName(body.ProgramCode)
	s.mu.Lock()
	s.models[name] = body.ProgramCode
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{
		"name":            name,
		"compiler_output": "",
	})
}

func (s *Server) handleCreateFit(w http.ResponseWriter, r *http.Request) {
	s.record(r)
	modelName := "models/" + r.PathValue("model")

	var body struct {
		Function   string         `json:"function"`
		Data       map[string]any `json:"data"`
		NumWarmup  int            `json:"num_warmup"`
		NumSamples int            `json:"num_samples"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "request body is not valid JSON")
		return
	}
	if body.Function == "" {
		writeError(w, http.StatusUnprocessableEntity, "function is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.models[modelName]; !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("model %s not found", modelName))
		return
	}

	s.nextFit++
	fitName := fmt.Sprintf("%s/fits/fit%d", modelName, s.nextFit)
	opName := fmt.Sprintf("operations/op%d", s.nextFit)
	s.fits[fitName] = buildArtifact(body.NumSamples)
	s.ops[opName] = &operationState{fitName: fitName, remaining: s.pollsBeforeDone}

	writeJSON(w, http.StatusCreated, map[string]any{
		"name":     opName,
		"done":     false,
		"metadata": map[string]any{"fit": map[string]any{"name": fitName}},
	})
}

func (s *Server) handleGetOperation(w http.ResponseWriter, r *http.Request) {
	s.record(r)
	opName := "operations/" + r.PathValue("op")

	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.ops[opName]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("operation %s not found", opName))
		return
	}

	resp := map[string]any{
		"name":     opName,
		"done":     false,
		"metadata": map[string]any{"fit": map[string]any{"name": op.fitName}},
	}
	if op.remaining > 0 {
		op.remaining--
	} else {
		resp["done"] = true
		resp["result"] = map[string]any{"name": op.fitName}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetFit(w http.ResponseWriter, r *http.Request) {
	s.record(r)
	fitName := fmt.Sprintf("models/%s/fits/%s", r.PathValue("model"), r.PathValue("fit"))

	s.mu.Lock()
	artifact, ok := s.fits[fitName]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("fit %s not found", fitName))
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(artifact)
}

// buildArtifact produces a small but structurally faithful fit artifact:
// logger chatter, an initialization message, the draws, and one diagnostic.
func buildArtifact(numSamples int) []byte {
	n := numSamples
	if n > maxFixtureDraws {
		n = maxFixtureDraws
	}

	var buf bytes.Buffer
	enc := draws.NewEncoder(&buf)

	must(enc.Encode(&draws.WriterMessage{
		Topic: draws.TopicLogger,
		Features: []draws.Feature{
			{Name: "message", StringList: []string{"info:Gradient evaluation took 0.000124 seconds"}},
		},
	}))
	must(enc.Encode(&draws.WriterMessage{
		Topic: draws.TopicInitialization,
		Features: []draws.Feature{
			{Name: "inv_metric", DoubleList: []float64{0.94, 1.02}},
		},
	}))
	for i := 0; i < n; i++ {
		must(enc.Encode(&draws.WriterMessage{
			Topic: draws.TopicSample,
			Features: []draws.Feature{
				{Name: "lp__", DoubleList: []float64{-8.0 - float64(i)*0.01}},
				{Name: "mu", DoubleList: []float64{4.0 + float64(i)*0.005}},
				{Name: "tau", DoubleList: []float64{3.0}},
			},
		}))
	}
	must(enc.Encode(&draws.WriterMessage{
		Topic: draws.TopicDiagnostic,
		Features: []draws.Feature{
			{Name: "divergent__", DoubleList: []float64{0}},
		},
	}))
	return buf.Bytes()
}

// must panics on encode failures; bytes.Buffer writes cannot fail, so a
// panic here means the fixture builder itself is broken.
func must(err error) {
	if err != nil {
		panic(err)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"code":    status,
		"status":  http.StatusText(status),
		"message": message,
	})
}
