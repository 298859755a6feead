package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/your-org/photoflow/internal/models"
)

// nightlySweepHour is the local hour at which the nightly recognition
// sweep is enqueued.
const nightlySweepHour = 2

// Scheduler enqueues the nightly recognition sweep. The sweep itself
// decides whether anything changed since the last run and skips if not.
type Scheduler struct {
	jobs *Manager
}

func NewScheduler(jobs *Manager) *Scheduler {
	return &Scheduler{jobs: jobs}
}

// Run blocks until the context is cancelled, firing once per night.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		wait := time.Until(nextRun(time.Now()))
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		err := s.jobs.Enqueue(ctx, Job{
			Name: JobQueueFacialRecognition,
			Data: models.SweepJob{Nightly: true},
		})
		if err != nil {
			slog.Error("enqueue nightly recognition sweep", "error", err)
			continue
		}
		slog.Info("enqueued nightly recognition sweep")
	}
}

func nextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), nightlySweepHour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
