// Package scheduler triggers ingestion runs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/akhbar-mr/akhbar-harvester/internal/domain"
	"github.com/akhbar-mr/akhbar-harvester/internal/logger"
)

const defaultRunTimeout = 10 * time.Minute

// Job performs one ingestion run.
type Job func(ctx context.Context) domain.RunSummary

// Scheduler runs a Job on a cron spec and on demand. Runs never overlap: a trigger that
// arrives while a run is in progress is skipped.
type Scheduler struct {
	cron    *cron.Cron
	job     Job
	timeout time.Duration
	running sync.Mutex
	log     logger.Logger
}

// New registers job under spec (standard five-field cron syntax).
func New(spec string, job Job, timeout time.Duration, log logger.Logger) (*Scheduler, error) {
	if job == nil {
		return nil, fmt.Errorf("scheduler job is nil")
	}
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}

	s := &Scheduler{
		cron:    cron.New(),
		job:     job,
		timeout: timeout,
		log:     logger.Ensure(log),
	}
	if _, err := s.cron.AddFunc(spec, s.scheduled); err != nil {
		return nil, fmt.Errorf("add cron %q: %w", spec, err)
	}
	return s, nil
}

// Cron exposes the underlying cron for extra jobs.
func (s *Scheduler) Cron() *cron.Cron { return s.cron }

// Start begins the cron loop. It does not block.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", zap.Int("entries", len(s.cron.Entries())))
}

// Stop halts the cron loop; the returned context is done once a running job finishes.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) scheduled() {
	if _, ok := s.RunOnce(context.Background()); !ok {
		s.log.Warn("scheduled run skipped: previous run still in progress")
	}
}

// RunOnce runs the job now unless a run is already in progress, in which case it returns
// false without waiting.
func (s *Scheduler) RunOnce(ctx context.Context) (domain.RunSummary, bool) {
	if !s.running.TryLock() {
		return domain.RunSummary{}, false
	}
	defer s.running.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	summary := s.job(ctx)
	s.log.InfoObj("ingestion job done", "job", map[string]any{
		"scraped":    summary.Scraped,
		"saved":      summary.Saved,
		"elapsed_ms": time.Since(started).Milliseconds(),
	})
	return summary, true
}
