package bench

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/vk/stanbenchgo/internal/draws"
)

// Duration marshals as its String form so reports stay readable without a
// nanosecond-to-human conversion step.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("failed to parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Phases breaks the run down by protocol step.
type Phases struct {
	Compile   Duration `json:"compile"`
	CreateFit Duration `json:"create_fit"`
	Wait      Duration `json:"wait"`
	Download  Duration `json:"download"`
	Total     Duration `json:"total"`
}

// Result records one scenario run end to end.
type Result struct {
	RunID      string    `json:"run_id"`
	Scenario   string    `json:"scenario"`
	Server     string    `json:"server"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	ModelName     string `json:"model_name"`
	OperationName string `json:"operation_name"`
	FitName       string `json:"fit_name"`

	Polls         int    `json:"polls"`
	ArtifactBytes int64  `json:"artifact_bytes"`
	OutputPath    string `json:"output_path"`

	Phases  Phases         `json:"phases"`
	Summary *draws.Summary `json:"summary,omitempty"`
}

// WriteReport stores the result as indented JSON at path.
func (r *Result) WriteReport(path string) error {
	payload, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	payload = append(payload, '\n')

	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
