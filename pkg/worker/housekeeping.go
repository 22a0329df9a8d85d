package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// housekeeping re-logs worker identity and current load on a cron schedule,
// for liveness dashboards that scrape logs instead of the status endpoint.
type housekeeping struct {
	schedule cron.Schedule
}

func newHousekeeping(spec string) (*housekeeping, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("worker: invalid housekeeping schedule %q: %w", spec, err)
	}
	return &housekeeping{schedule: schedule}, nil
}

func (h *housekeeping) run(ctx context.Context, w *Worker) {
	for {
		next := h.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			w.logger.Info("housekeeping",
				"region", w.identity.Region,
				"version", w.identity.Version.String(),
				"operation", w.identity.Operation,
				"running", w.gate.Running(),
				"limit", w.identity.Limit)
		}
	}
}
