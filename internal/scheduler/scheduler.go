package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cryptoSignalAgent/internal/ports"

	"github.com/robfig/cron/v3"
)

// DefaultPollInterval is how often the wall clock is compared against the next fire time.
const DefaultPollInterval = 15 * time.Second

// maxCatchUp bounds how many missed fire times are counted after a long pause.
const maxCatchUp = 10000

// Job is the work run on each fire.
type Job func(ctx context.Context) error

// Scheduler runs a job on a cron schedule by polling the wall clock and keeping
// explicit next-fire bookkeeping. Fire times missed while the process was
// paused are coalesced into a single run.
type Scheduler struct {
	spec     string
	schedule cron.Schedule
	poll     time.Duration
	job      Job
	logger   ports.Logger
	now      func() time.Time

	mu   sync.Mutex
	next time.Time
	runs int
}

// New parses a standard five-field cron expression (descriptors such as
// "@every 4h" are accepted too) and returns a scheduler for job.
func New(spec string, poll time.Duration, job Job, logger ports.Logger) (*Scheduler, error) {
	if job == nil || logger == nil {
		return nil, fmt.Errorf("scheduler requires a job and a logger")
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Scheduler{
		spec:     spec,
		schedule: schedule,
		poll:     poll,
		job:      job,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Next returns the next fire time, or the zero time before the first Tick.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Runs returns how many times the job has been started.
func (s *Scheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

// Tick compares the clock with the next fire time and runs the job when it is
// due. It returns whether the job ran and how many earlier fire times were
// folded into this run.
func (s *Scheduler) Tick(ctx context.Context) (ran bool, skipped int) {
	now := s.now()

	s.mu.Lock()
	switch {
	case s.next.IsZero():
		s.next = s.schedule.Next(now)
		s.mu.Unlock()
		s.logger.Info(ctx, "Scheduler armed", map[string]interface{}{"schedule": s.spec, "next": s.next})
		return false, 0
	case s.schedule.Next(now).Before(s.next):
		// Clock moved backwards past the previous fire time.
		stale := s.next
		s.next = s.schedule.Next(now)
		s.mu.Unlock()
		s.logger.Warn(ctx, "Clock moved backwards, rescheduling", map[string]interface{}{"previous": stale, "next": s.next})
		return false, 0
	case now.Before(s.next):
		s.mu.Unlock()
		return false, 0
	}

	due := s.next
	next := s.schedule.Next(due)
	for !next.After(now) && skipped < maxCatchUp {
		skipped++
		next = s.schedule.Next(next)
	}
	if !next.After(now) {
		next = s.schedule.Next(now)
	}
	s.next = next
	s.runs++
	s.mu.Unlock()

	fields := map[string]interface{}{"due": due, "next": next}
	if skipped > 0 {
		fields["skipped"] = skipped
		s.logger.Warn(ctx, "Missed scheduled runs coalesced", fields)
	}
	if err := s.job(ctx); err != nil {
		s.logger.Error(ctx, err, "Scheduled job failed", fields)
	} else {
		s.logger.Debug(ctx, "Scheduled job finished", fields)
	}
	return true, skipped
}

// Run polls until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}
