// internal/conductor/dispatch.go
package conductor

import (
	"context"

	"golang.org/x/sync/errgroup"

	"conversation-orchestrator/internal/models"
)

type dispatchTask struct {
	specialist Specialist
	query      models.Query
}

// dispatch runs every task once and returns the outcomes in task order.
// Tasks run one after another unless parallel dispatch is enabled.
func (c *Conductor) dispatch(ctx context.Context, tasks []dispatchTask) []models.Outcome {
	outcomes := make([]models.Outcome, len(tasks))

	if !c.config.ParallelDispatch || len(tasks) < 2 {
		for i, t := range tasks {
			outcomes[i] = t.specialist.Process(ctx, t.query)
		}
		return outcomes
	}

	g, gctx := errgroup.WithContext(ctx)
	if c.config.MaxParallel > 0 {
		g.SetLimit(c.config.MaxParallel)
	}
	for i, t := range tasks {
		g.Go(func() error {
			outcomes[i] = t.specialist.Process(gctx, t.query)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}
