package importer

import (
	"context"
	"log/slog"
	"time"

	"github.com/stravapress/server/pkg/fault"
)

// BatchItem is the outcome of one activity in a batch import.
type BatchItem struct {
	ActivityID string  `json:"activity_id"`
	Result     *Result `json:"result,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Queue imports activities strictly one at a time with a fixed delay
// between them, keeping batch imports inside Strava's rate limits.
type Queue struct {
	orchestrator *Orchestrator
	delay        time.Duration
	logger       *slog.Logger
}

func NewQueue(orchestrator *Orchestrator, delay time.Duration) *Queue {
	return &Queue{
		orchestrator: orchestrator,
		delay:        delay,
		logger:       slog.Default().With("component", "import-queue"),
	}
}

// Run imports every activity in order. Individual failures are recorded
// per item and never stop the batch; only context cancellation does, in
// which case the items processed so far are returned with the error.
func (q *Queue) Run(ctx context.Context, activityIDs []string) ([]BatchItem, error) {
	items := make([]BatchItem, 0, len(activityIDs))

	for i, activityID := range activityIDs {
		if i > 0 && q.delay > 0 {
			select {
			case <-time.After(q.delay):
			case <-ctx.Done():
				return items, ctx.Err()
			}
		}
		if ctx.Err() != nil {
			return items, ctx.Err()
		}

		item := BatchItem{ActivityID: activityID}
		result, err := q.orchestrator.Import(ctx, activityID)
		if err != nil {
			item.Error = err.Error()
			q.logger.Warn("Batch item failed",
				"activity_id", activityID, "kind", fault.KindOf(err).String(), "error", err)
		} else {
			item.Result = result
		}
		items = append(items, item)
	}

	return items, nil
}
