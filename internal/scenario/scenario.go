package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultPollInterval is the fixed delay between operation status requests
// when a scenario does not override it.
const DefaultPollInterval = 10 * time.Millisecond

// Scenario is a fully resolved benchmark definition: the program source has
// been read, the dataset built and replicated, and durations parsed.
type Scenario struct {
	Name       string
	SourcePath string

	ProgramCode string

	Data Data

	Function     string
	NumWarmup    int
	NumSamples   int
	PollInterval time.Duration

	OutputPath string
	ReportPath string
	Summarize  bool
}

// translate resolves a raw scenario block from gridPath into a Scenario,
// validating the one-of constraints along the way.
func translate(block *scenarioBlock, gridPath string) (*Scenario, error) {
	if block.Model == nil {
		return nil, fmt.Errorf("scenario %q: missing required model block", block.Name)
	}
	if block.Data == nil {
		return nil, fmt.Errorf("scenario %q: missing required data block", block.Name)
	}
	if block.Sample == nil {
		return nil, fmt.Errorf("scenario %q: missing required sample block", block.Name)
	}
	if block.Output == nil {
		return nil, fmt.Errorf("scenario %q: missing required output block", block.Name)
	}

	s := &Scenario{
		Name:       block.Name,
		SourcePath: gridPath,
	}

	if err := s.resolveModel(block.Model); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", block.Name, err)
	}
	if err := s.resolveData(block.Data); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", block.Name, err)
	}
	if err := s.resolveSample(block.Sample); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", block.Name, err)
	}
	if err := s.resolveOutput(block.Output); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", block.Name, err)
	}
	return s, nil
}

func (s *Scenario) resolveModel(block *modelBlock) error {
	switch {
	case block.Program != "" && block.ProgramFile != "":
		return fmt.Errorf("model block declares both program and program_file; exactly one is allowed")
	case block.Program != "":
		s.ProgramCode = block.Program
	case block.ProgramFile != "":
		path := s.resolvePath(block.ProgramFile)
		code, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read program_file: %w", err)
		}
		s.ProgramCode = string(code)
	default:
		return fmt.Errorf("model block declares neither program nor program_file; exactly one is required")
	}
	return nil
}

func (s *Scenario) resolveData(block *dataBlock) error {
	replicate := 1
	if block.Replicate != nil {
		if *block.Replicate < 1 {
			return fmt.Errorf("data replicate must be >= 1, got %d", *block.Replicate)
		}
		replicate = *block.Replicate
	}

	hasValues := !block.Values.IsNull()
	hasFile := block.File != ""
	switch {
	case hasValues && hasFile:
		return fmt.Errorf("data block declares both values and file; exactly one is allowed")
	case hasValues:
		data, err := fromCty(block.Values, replicate)
		if err != nil {
			return err
		}
		s.Data = data
	case hasFile:
		data, err := fromFile(s.resolvePath(block.File), replicate)
		if err != nil {
			return err
		}
		s.Data = data
	default:
		return fmt.Errorf("data block declares neither values nor file; exactly one is required")
	}
	return nil
}

func (s *Scenario) resolveSample(block *sampleBlock) error {
	if block.Function == "" {
		return fmt.Errorf("sample function must not be empty")
	}
	if block.NumWarmup < 0 {
		return fmt.Errorf("sample num_warmup must be >= 0, got %d", block.NumWarmup)
	}
	if block.NumSamples < 0 {
		return fmt.Errorf("sample num_samples must be >= 0, got %d", block.NumSamples)
	}

	s.Function = block.Function
	s.NumWarmup = block.NumWarmup
	s.NumSamples = block.NumSamples

	s.PollInterval = DefaultPollInterval
	if block.PollInterval != "" {
		interval, err := time.ParseDuration(block.PollInterval)
		if err != nil {
			return fmt.Errorf("invalid sample poll_interval: %w", err)
		}
		if interval <= 0 {
			return fmt.Errorf("sample poll_interval must be positive, got %s", interval)
		}
		s.PollInterval = interval
	}
	return nil
}

func (s *Scenario) resolveOutput(block *outputBlock) error {
	if block.Path == "" {
		return fmt.Errorf("output path must not be empty")
	}
	s.OutputPath = block.Path
	s.ReportPath = block.ReportPath
	s.Summarize = block.Summarize
	return nil
}

// resolvePath makes file references relative to the grid file that declared
// them.
func (s *Scenario) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(s.SourcePath), path)
}
