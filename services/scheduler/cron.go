package schedulersvc

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	rcron "github.com/robfig/cron/v3"

	"github.com/heroesdelapatria/portal/core"
)

// Scheduler runs named jobs on cron schedules (standard 5-field specs or descriptors like "@every 5m").
type Scheduler struct {
	cron   *rcron.Cron
	logger core.Logger

	mu      sync.Mutex
	jobs    map[string]rcron.EntryID
	running bool
}

func NewScheduler(logger core.Logger) *Scheduler {
	return &Scheduler{
		cron:   rcron.New(),
		logger: logger,
		jobs:   make(map[string]rcron.EntryID),
	}
}

// AddJob registers fn under name. Panics raised by fn are logged and swallowed.
func (s *Scheduler) AddJob(name, spec string, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[name]; ok {
		return errors.Errorf("job %q already registered", name)
	}
	id, err := s.cron.AddFunc(spec, func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error(fmt.Sprintf("job %s panicked", name), errors.Errorf("%v", r))
			}
		}()
		fn()
	})
	if err != nil {
		return errors.Wrapf(err, "parsing schedule of job %s", name)
	}
	s.jobs[name] = id
	return nil
}

// Jobs returns the names of the registered jobs.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

// Start runs the scheduler in its own goroutine. It is a no-op without jobs.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running || len(s.jobs) == 0 {
		return
	}
	s.cron.Start()
	s.running = true
	s.logger.Info(fmt.Sprintf("scheduler started with %d job(s)", len(s.jobs)))
}

// Stop stops the scheduler and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for running jobs")
	}
}

// CacheSweeper drops expired cache entries.
type CacheSweeper interface {
	PurgeExpiredCache() int
}

// CacheSweepJob is the name of the expired cache sweep job.
const CacheSweepJob = "cache-sweep"

// RegisterCacheSweep schedules sweeper on spec. An empty spec disables the job.
func RegisterCacheSweep(s *Scheduler, spec string, sweeper CacheSweeper) error {
	if spec == "" {
		return nil
	}
	return s.AddJob(CacheSweepJob, spec, func() {
		if n := sweeper.PurgeExpiredCache(); n > 0 {
			s.logger.Debug(fmt.Sprintf("purged %d expired cache entries", n))
		}
	})
}
