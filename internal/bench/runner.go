package bench

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/vk/stanbenchgo/internal/ctxlog"
	"github.com/vk/stanbenchgo/internal/draws"
	"github.com/vk/stanbenchgo/internal/scenario"
	"github.com/vk/stanbenchgo/internal/stan"
)

// Runner executes scenarios one at a time against a single server.
type Runner struct {
	client *stan.Client
}

func NewRunner(client *stan.Client) *Runner {
	return &Runner{client: client}
}

// Run executes one scenario end to end. The four protocol steps run strictly
// in order and nothing is retried; the first failure aborts the scenario.
func (r *Runner) Run(ctx context.Context, sc *scenario.Scenario) (*Result, error) {
	logger := ctxlog.FromContext(ctx).With("scenario", sc.Name)
	ctx = ctxlog.WithLogger(ctx, logger)

	res := &Result{
		RunID:      uuid.NewString(),
		Scenario:   sc.Name,
		Server:     r.client.BaseURL(),
		StartedAt:  time.Now().UTC(),
		OutputPath: sc.OutputPath,
	}

	logger.Info("▶️ Compiling model")
	start := time.Now()
	model, err := r.client.CreateModel(ctx, sc.ProgramCode)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", sc.Name, err)
	}
	res.ModelName = model.Name
	res.Phases.Compile = Duration(time.Since(start))
	logger.Info("✅ Model ready", "model", model.Name, "duration", time.Since(start).String())

	logger.Info("▶️ Creating fit")
	start = time.Now()
	op, err := r.client.CreateFit(ctx, model.Name, stan.FitRequest{
		Function:   sc.Function,
		Data:       sc.Data,
		NumWarmup:  sc.NumWarmup,
		NumSamples: sc.NumSamples,
	})
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", sc.Name, err)
	}
	res.OperationName = op.Name
	res.FitName = op.Metadata.Fit.Name
	res.Phases.CreateFit = Duration(time.Since(start))
	logger.Info("✅ Fit created", "operation", op.Name, "fit", op.Metadata.Fit.Name)

	logger.Info("▶️ Waiting for sampling to finish", "poll_interval", sc.PollInterval.String())
	start = time.Now()
	final, polls, err := r.client.WaitOperation(ctx, op.Name, sc.PollInterval)
	res.Polls = polls
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", sc.Name, err)
	}
	res.Phases.Wait = Duration(time.Since(start))
	logger.Info("✅ Sampling finished", "polls", polls, "duration", time.Since(start).String())

	// The fit name from the create response is authoritative, but a finished
	// operation repeats it; prefer the fresher copy when present.
	if final.Metadata.Fit.Name != "" {
		res.FitName = final.Metadata.Fit.Name
	}

	logger.Info("▶️ Downloading fit", "path", sc.OutputPath)
	start = time.Now()
	n, err := r.download(ctx, res.FitName, sc.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", sc.Name, err)
	}
	res.ArtifactBytes = n
	res.Phases.Download = Duration(time.Since(start))
	logger.Info("✅ Artifact written", "path", sc.OutputPath, "bytes", n)

	if sc.Summarize {
		summary, err := summarizeFile(sc.OutputPath)
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", sc.Name, err)
		}
		res.Summary = summary
		logger.Info("✅ Artifact summarized", "messages", summary.Messages, "draws", summary.Draws)
	}

	res.FinishedAt = time.Now().UTC()
	res.Phases.Total = Duration(res.FinishedAt.Sub(res.StartedAt))

	if sc.ReportPath != "" {
		if err := res.WriteReport(sc.ReportPath); err != nil {
			return nil, fmt.Errorf("scenario %q: %w", sc.Name, err)
		}
		logger.Info("✅ Report written", "path", sc.ReportPath)
	}

	logger.Info("🏁 Scenario finished", "run_id", res.RunID, "total", time.Duration(res.Phases.Total).String())
	return res, nil
}

// download streams the artifact straight to disk so the file holds exactly
// the bytes the server sent, with nothing buffered or re-encoded in between.
func (r *Runner) download(ctx context.Context, fitName, path string) (int64, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}

	n, err := r.client.DownloadFit(ctx, fitName, f)
	if err != nil {
		f.Close()
		return n, err
	}
	if err := f.Close(); err != nil {
		return n, fmt.Errorf("failed to close output file: %w", err)
	}
	return n, nil
}

func summarizeFile(path string) (*draws.Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact for summary: %w", err)
	}
	defer f.Close()

	summary, err := draws.Summarize(f)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize artifact: %w", err)
	}
	return summary, nil
}
