package stan

import (
	"context"
	"time"

	"github.com/vk/stanbenchgo/internal/ctxlog"
)

// WaitOperation polls an operation at a fixed interval until the server
// reports it done, then returns the final operation state together with the
// number of status requests issued. At least one request is always made, and
// the loop never gives up on its own; cancel the context to abandon a fit
// that will not finish.
func (c *Client) WaitOperation(ctx context.Context, operationName string, interval time.Duration) (*Operation, int, error) {
	logger := ctxlog.FromContext(ctx)

	polls := 0
	for {
		op, err := c.GetOperation(ctx, operationName)
		polls++
		if err != nil {
			return nil, polls, err
		}
		if op.Done {
			logger.Debug("Operation finished.", "operation", operationName, "polls", polls)
			return op, polls, nil
		}
		logger.Debug("Operation still running.", "operation", operationName, "polls", polls)

		select {
		case <-ctx.Done():
			return nil, polls, ctx.Err()
		case <-time.After(interval):
		}
	}
}
