// Package scheduler runs the periodic sweep of the round engine.
package scheduler

import (
	"Quizrace/services/engine"
	"Quizrace/utils/logger"
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

type Sweeper interface {
	Sweep(ctx context.Context) (engine.SweepReport, error)
}

type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	timeout time.Duration
}

// New builds a scheduler whose sweeps never overlap; a run that is still
// going when the next tick fires makes that tick a no-op.
func New(sweeper Sweeper, timeout time.Duration) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		sweeper: sweeper,
		timeout: timeout,
	}
}

// Start registers the sweep under spec ("@every 10s", "*/1 * * * *") and
// starts the cron loop.
func (s *Scheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.RunSweepNow); err != nil {
		return fmt.Errorf("error scheduling sweep %q: %v", spec, err)
	}
	s.cron.Start()
	logger.Infof("[SCHEDULER] Sweeper scheduled at %q", spec)
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("[SCHEDULER] Sweeper stopped")
}

// RunSweepNow runs one sweep synchronously.
func (s *Scheduler) RunSweepNow() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.sweeper.Sweep(ctx); err != nil {
		logger.Errorf("[SCHEDULER-ERROR] Sweep failed: %v", err)
	}
}
