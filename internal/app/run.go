package app

import (
	"context"
	"fmt"

	"github.com/vk/stanbenchgo/internal/bench"
	"github.com/vk/stanbenchgo/internal/ctxlog"
)

// Run executes every loaded scenario, one at a time and in load order. The
// first failing scenario aborts the run; nothing is retried.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.HealthcheckPort > 0 {
		a.startHealthcheckServer(a.config.HealthcheckPort)
	}

	a.logger.Info("🚀 Starting benchmark run...", "scenarios", len(a.scenarios), "server", a.client.BaseURL())
	runner := bench.NewRunner(a.client)
	for _, sc := range a.scenarios {
		result, err := runner.Run(ctx, sc)
		if err != nil {
			return fmt.Errorf("benchmark run failed: %w", err)
		}
		a.results = append(a.results, result)
	}
	a.logger.Info("🏁 Benchmark run finished.", "scenarios", len(a.results))

	a.logger.Debug("App.Run method finished.")
	return nil
}
