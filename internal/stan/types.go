package stan

import "encoding/json"

// Model identifies a compiled Stan program held by the server.
type Model struct {
	Name string `json:"name"`
}

// FitRequest describes a sampling job for a previously compiled model.
type FitRequest struct {
	Function   string         `json:"function"`
	Data       map[string]any `json:"data"`
	NumWarmup  int            `json:"num_warmup"`
	NumSamples int            `json:"num_samples"`
}

// Operation is the server-side handle for an asynchronous fit job.
type Operation struct {
	Name     string            `json:"name"`
	Done     bool              `json:"done"`
	Metadata OperationMetadata `json:"metadata"`

	// Result carries the server's final payload once the operation is done.
	// It is kept raw because its shape differs between success and failure.
	Result json.RawMessage `json:"result,omitempty"`
}

// OperationMetadata is attached to an operation at creation time.
type OperationMetadata struct {
	Fit Fit `json:"fit"`
}

// Fit identifies the artifact a finished operation produced.
type Fit struct {
	Name string `json:"name"`
}
