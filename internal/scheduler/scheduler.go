// Package scheduler runs the background jobs that keep channel data,
// rankings, growth metrics and the daily blog post fresh.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/grvbrk/toptube_server/internal/models"
	"github.com/grvbrk/toptube_server/internal/store"
	"github.com/rs/zerolog"
)

var (
	ErrUnknownJob = errors.New("unknown job")
	ErrJobRunning = errors.New("job already running")
	ErrStopped    = errors.New("scheduler stopped")
)

// RunFunc performs one job run and reports how many items it touched.
type RunFunc func(ctx context.Context) (int, error)

// Recorder observes finished job runs.
type Recorder interface {
	JobRun(job string, took time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) JobRun(string, time.Duration, error) {}

type job struct {
	id         string
	name       string
	interval   time.Duration
	dailyAt    time.Duration // UTC time of day, used when interval is zero
	run        RunFunc
	invalidate bool

	running atomic.Bool
	mu      sync.Mutex
	nextRun time.Time
}

func (j *job) next(from time.Time) time.Time {
	if j.interval > 0 {
		return from.Add(j.interval)
	}
	return nextDaily(from, j.dailyAt)
}

func (j *job) setNext(t time.Time) {
	j.mu.Lock()
	j.nextRun = t
	j.mu.Unlock()
}

func (j *job) getNext() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.nextRun
}

// nextDaily returns the first instant strictly after from that falls on
// the given UTC time of day.
func nextDaily(from time.Time, at time.Duration) time.Time {
	from = from.UTC()
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	next := day.Add(at)
	if !next.After(from) {
		next = day.AddDate(0, 0, 1).Add(at)
	}
	return next
}

type Scheduler struct {
	jobs     []*job
	byID     map[string]*job
	status   store.StatusStore
	cache    store.Cache
	recorder Recorder
	logger   zerolog.Logger
	now      func() time.Time

	// mu guards the lifecycle fields below and orders wg.Add against
	// the wg.Wait in Stop.
	mu      sync.Mutex
	started bool
	stopped bool
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(status store.StatusStore, cache store.Cache, logger zerolog.Logger) *Scheduler {
	s := &Scheduler{
		byID:     make(map[string]*job),
		status:   status,
		cache:    cache,
		recorder: nopRecorder{},
		logger:   logger.With().Str("component", "scheduler").Logger(),
		now:      time.Now,
	}
	s.baseCtx, s.cancel = context.WithCancel(context.Background())
	return s
}

func (s *Scheduler) SetRecorder(r Recorder) {
	if r != nil {
		s.recorder = r
	}
}

// Every registers a job that runs each interval after Start.
func (s *Scheduler) Every(id, name string, interval time.Duration, invalidate bool, run RunFunc) {
	s.add(&job{id: id, name: name, interval: interval, invalidate: invalidate, run: run})
}

// DailyAt registers a job that runs once a day at hour:minute UTC.
func (s *Scheduler) DailyAt(id, name string, hour, minute int, run RunFunc) {
	at := time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute
	s.add(&job{id: id, name: name, dailyAt: at, run: run})
}

func (s *Scheduler) add(j *job) {
	if _, dup := s.byID[j.id]; dup {
		panic("scheduler: duplicate job " + j.id)
	}
	s.jobs = append(s.jobs, j)
	s.byID[j.id] = j
}

// Start launches one loop per job. Cancelling ctx or calling Stop ends
// them all.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true

	ctx, cancel := context.WithCancel(ctx)
	prev := s.cancel
	s.baseCtx = ctx
	s.cancel = func() {
		cancel()
		prev()
	}

	for _, j := range s.jobs {
		j.setNext(j.next(s.now()))
		s.wg.Add(1)
		go s.loop(ctx, j)
	}

	s.logger.Info().Int("jobs", len(s.jobs)).Msg("scheduler started")
}

// Stop cancels every loop and waits for running and triggered jobs to
// return. Later triggers fail with ErrStopped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, j *job) {
	defer s.wg.Done()

	for {
		timer := time.NewTimer(time.Until(j.getNext()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if err := s.Run(ctx, j.id); err != nil && !errors.Is(err, ErrJobRunning) {
			s.logger.Error().Err(err).Str("job", j.id).Msg("job failed")
		}
		j.setNext(j.next(s.now()))
	}
}

// Run executes a job now and waits for it. A job that is already running
// is skipped with ErrJobRunning.
func (s *Scheduler) Run(ctx context.Context, id string) error {
	j, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	if !j.running.CompareAndSwap(false, true) {
		s.logger.Warn().Str("job", id).Msg("job already in progress, skipping")
		return ErrJobRunning
	}
	defer j.running.Store(false)

	start := s.now()
	s.logger.Info().Str("job", id).Msg("job started")

	n, err := j.run(ctx)
	took := s.now().Sub(start)
	s.recorder.JobRun(id, took, err)
	if err != nil {
		return fmt.Errorf("%s: %w", id, err)
	}

	if err := s.status.MarkJobRun(ctx, id, s.now().UTC(), n); err != nil {
		s.logger.Warn().Err(err).Str("job", id).Msg("failed to record job run")
	}
	if j.invalidate && s.cache != nil {
		if err := s.cache.InvalidateAll(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("cache invalidation failed")
		}
	}

	s.logger.Info().Str("job", id).Int("items", n).Dur("took", took).Msg("job finished")
	return nil
}

// Trigger starts a job in the background and returns at once.
func (s *Scheduler) Trigger(id string) error {
	j, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	if j.running.Load() {
		return ErrJobRunning
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	ctx := s.baseCtx
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		if err := s.Run(ctx, id); err != nil && !errors.Is(err, ErrJobRunning) {
			s.logger.Error().Err(err).Str("job", id).Msg("triggered job failed")
		}
	}()
	return nil
}

func (s *Scheduler) IsRunning(id string) bool {
	j, ok := s.byID[id]
	return ok && j.running.Load()
}

type JobInfo struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	NextRun  *time.Time `json:"next_run"`
	Interval string     `json:"interval"`
	Running  bool       `json:"running"`
}

type Status struct {
	IsRunning    bool                    `json:"is_running"`
	IsRefreshing bool                    `json:"is_refreshing"`
	IsRanking    bool                    `json:"is_ranking"`
	Jobs         []JobInfo               `json:"jobs"`
	LastRuns     *models.SchedulerStatus `json:"last_runs"`
}

// Status reports the live job state plus the last recorded runs.
func (s *Scheduler) Status(ctx context.Context) (Status, error) {
	s.mu.Lock()
	running := s.started && !s.stopped
	s.mu.Unlock()

	st := Status{
		IsRunning:    running,
		IsRefreshing: s.IsRunning(store.JobRefreshChannels),
		IsRanking:    s.IsRunning(store.JobUpdateRankings),
		Jobs:         make([]JobInfo, 0, len(s.jobs)),
	}

	for _, j := range s.jobs {
		info := JobInfo{ID: j.id, Name: j.name, Running: j.running.Load()}
		if next := j.getNext(); !next.IsZero() && st.IsRunning {
			info.NextRun = &next
		}
		if j.interval > 0 {
			info.Interval = j.interval.String()
		} else {
			info.Interval = fmt.Sprintf("daily at %02d:%02d UTC", int(j.dailyAt.Hours()), int(j.dailyAt.Minutes())%60)
		}
		st.Jobs = append(st.Jobs, info)
	}

	last, err := s.status.GetStatus(ctx)
	if err != nil {
		return st, err
	}
	st.LastRuns = last
	return st, nil
}
