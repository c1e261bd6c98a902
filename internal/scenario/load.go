package scenario

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/stanbenchgo/internal/ctxlog"
	"github.com/vk/stanbenchgo/internal/fsutil"
)

// Loader parses grid files into resolved scenarios. It keeps a single HCL
// parser so diagnostics can reference every file it has seen.
type Loader struct {
	parser *hclparse.Parser
}

// NewLoader creates a new scenario loader.
func NewLoader() *Loader {
	return &Loader{parser: hclparse.NewParser()}
}

// LoadPath loads every scenario under the given grid path. The path may be a
// single .hcl file or a directory searched recursively. Scenarios are
// returned in deterministic order: sorted by file, then by declaration order
// within each file.
func (l *Loader) LoadPath(ctx context.Context, path string) ([]*Scenario, error) {
	logger := ctxlog.FromContext(ctx)

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat grid path: %w", err)
	}

	files := []string{path}
	if info.IsDir() {
		files, err = fsutil.FindFilesByExtension(path, ".hcl")
		if err != nil {
			return nil, fmt.Errorf("failed to walk grid directory: %w", err)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl grid files found under %s", path)
	}
	logger.Debug("Found grid files to load.", "files", files)

	var scenarios []*Scenario
	declaredIn := make(map[string]string)
	for _, file := range files {
		loaded, err := l.loadFile(ctx, file)
		if err != nil {
			return nil, err
		}
		for _, s := range loaded {
			if prev, ok := declaredIn[s.Name]; ok {
				return nil, fmt.Errorf("duplicate scenario %q declared in both %s and %s", s.Name, prev, file)
			}
			declaredIn[s.Name] = file
			scenarios = append(scenarios, s)
		}
	}

	if len(scenarios) == 0 {
		return nil, fmt.Errorf("no scenario blocks found under %s", path)
	}

	logger.Info("Scenarios loaded successfully.", "count", len(scenarios))
	return scenarios, nil
}

// loadFile parses and resolves all scenario blocks in one grid file.
func (l *Loader) loadFile(ctx context.Context, path string) ([]*Scenario, error) {
	logger := ctxlog.FromContext(ctx)

	hclFile, diags := l.parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse grid file %s: %w", path, diags)
	}

	var file gridFile
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &file); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode grid file %s: %w", path, diags)
	}

	scenarios := make([]*Scenario, 0, len(file.Scenarios))
	for _, block := range file.Scenarios {
		s, err := translate(block, path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}

	logger.Debug("Loaded definitions from grid file.", "file", path, "scenarios", len(scenarios))
	return scenarios, nil
}
