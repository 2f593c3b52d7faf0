package jobs

import (
	"context"
	"time"

	"shop-api/logger"

	"github.com/robfig/cron/v3"
)

// ViewPruner deletes product views recorded before a cutoff.
type ViewPruner interface {
	PruneViews(ctx context.Context, before time.Time) (int64, error)
}

// Scheduler runs housekeeping jobs on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	now    func() time.Time
}

func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		ctx:    ctx,
		cancel: cancel,
		now:    time.Now,
	}
}

// AddViewRetention prunes views older than retention on schedule. A zero or
// negative retention keeps views forever and schedules nothing.
func (s *Scheduler) AddViewRetention(schedule string, retention time.Duration, pruner ViewPruner) error {
	if retention <= 0 {
		logger.Debug.Printf("view retention disabled, product views are kept forever")
		return nil
	}
	_, err := s.cron.AddFunc(schedule, func() {
		s.pruneViews(retention, pruner)
	})
	return err
}

func (s *Scheduler) pruneViews(retention time.Duration, pruner ViewPruner) {
	cutoff := s.now().Add(-retention)
	n, err := pruner.PruneViews(s.ctx, cutoff)
	if err != nil {
		logger.Error.Printf("prune product views before %s: %v", cutoff.Format(time.RFC3339), err)
		return
	}
	logger.Debug.Printf("pruned %d product views before %s", n, cutoff.Format(time.RFC3339))
}

// Start runs the scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Debug.Printf("scheduler started with %d jobs", len(s.cron.Entries()))
}

// Stop waits for running jobs to finish and cancels their context.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.cancel()
	logger.Debug.Printf("scheduler stopped")
}
