// Package scheduler serializes archive jobs through a single worker and
// resolves each submitter's request once its job reaches a final state.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"call-audit-go/internal/apierr"
	"call-audit-go/internal/metrics"
	"call-audit-go/internal/types"
)

var ErrShuttingDown = errors.New("service shutting down")

const (
	msgNoAudio    = "No supported audio files found in ZIP."
	msgPreprocess = "Failed to pre-process ZIP/duration"
	msgSent       = "Data sent to callback URL."
)

type Fetcher interface {
	Fetch(ctx context.Context, url, dir string) ([]string, error)
}

type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

type HealthChecker interface {
	Check(ctx context.Context) bool
}

type Waiter interface {
	Wait(ctx context.Context) error
}

type Runner interface {
	Run(ctx context.Context, job types.Job, files []string, workDir string) error
}

type Options struct {
	MaxAudioSeconds float64
	// MaxJobAttempts caps whole-job attempts after transient failures. 0 is unlimited.
	MaxJobAttempts int
	// TempRoot is where per-attempt work dirs are created; empty uses os.TempDir.
	TempRoot string
}

type Scheduler struct {
	fetcher Fetcher
	prober  DurationProber
	health  HealthChecker
	waiter  Waiter
	runner  Runner
	opts    Options
	metrics *metrics.Metrics
	log     *logrus.Entry
	queue   *Queue
}

func New(f Fetcher, p DurationProber, h HealthChecker, w Waiter, r Runner, opts Options, m *metrics.Metrics, log *logrus.Entry) *Scheduler {
	if m == nil {
		m = metrics.NewMetrics()
	}
	return &Scheduler{
		fetcher: f,
		prober:  p,
		health:  h,
		waiter:  w,
		runner:  r,
		opts:    opts,
		metrics: m,
		log:     log.WithField("component", "scheduler"),
		queue:   NewQueue(),
	}
}

// Submit queues the request and blocks until its job resolves. If ctx ends
// first the job stays queued and ctx.Err() is returned.
func (s *Scheduler) Submit(ctx context.Context, req types.SubmitRequest) (types.JobResult, error) {
	e := &entry{
		job: types.Job{
			ID:               uuid.NewString(),
			OpportunityID:    req.OpportunityID,
			SourceArchiveURL: req.FileURL,
			CallbackURL:      req.CallbackURL,
			SubmittedAt:      time.Now(),
		},
		fut: newFuture(),
	}
	e.fut.onResolve = func(res types.JobResult) { s.resolved(e.job, res) }
	if err := s.queue.push(e); err != nil {
		return types.JobResult{}, err
	}
	s.metrics.IncrementSubmittedJobs()
	s.metrics.SetQueueDepth(s.queue.Len())
	s.log.WithFields(logrus.Fields{
		"job_id":         e.job.ID,
		"opportunity_id": e.job.OpportunityID,
		"state":          types.StatePending,
	}).Info("job queued")

	select {
	case res := <-e.fut.ch:
		return res, nil
	case <-ctx.Done():
		return types.JobResult{}, ctx.Err()
	}
}

// Run consumes the queue until ctx is done or Shutdown is called.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("background worker online")
	for {
		e, err := s.queue.pop(ctx)
		if err != nil {
			if errors.Is(err, ErrShuttingDown) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		s.metrics.SetQueueDepth(s.queue.Len())
		s.process(ctx, e)
	}
}

// Shutdown stops accepting jobs and fails every job still waiting in the queue.
func (s *Scheduler) Shutdown() {
	left := s.queue.close()
	for _, e := range left {
		e.fut.resolve(types.Failed(ErrShuttingDown.Error()))
	}
	s.metrics.SetQueueDepth(0)
	s.log.WithField("dropped", len(left)).Info("scheduler stopped")
}

func (s *Scheduler) process(ctx context.Context, e *entry) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("job_id", e.job.ID).WithField("panic", fmt.Sprint(r)).Error("job panicked")
			e.fut.resolve(types.Failed(fmt.Sprintf("internal error: %v", r)))
		}
	}()
	e.fut.resolve(s.execute(ctx, e.job))
}

func (s *Scheduler) resolved(job types.Job, res types.JobResult) {
	s.metrics.RecordOutcome(res)

	state := types.StateFailed
	switch res.Status {
	case types.StatusSuccess:
		state = types.StateSucceeded
	case types.StatusSkipped:
		state = types.StateSkipped
	}
	s.log.WithFields(logrus.Fields{
		"job_id":  job.ID,
		"state":   state,
		"message": res.Message,
	}).Info("job resolved")
}

func (s *Scheduler) execute(ctx context.Context, job types.Job) types.JobResult {
	log := s.log.WithFields(logrus.Fields{
		"job_id":         job.ID,
		"opportunity_id": job.OpportunityID,
	})
	log.WithField("file_url", job.SourceArchiveURL).
		WithField("callback_url", job.CallbackURL).
		Info("processing started")

	log.WithField("state", types.StateHealthGate).Debug("job state")
	if !s.health.Check(ctx) {
		log.Warn("pre-processing check failed, backend seems down")
		if err := s.waiter.Wait(ctx); err != nil {
			return types.Failed(ErrShuttingDown.Error())
		}
	}

	for attempt := 1; ; attempt++ {
		alog := log.WithField("attempt", attempt)
		alog.WithField("state", types.StateRunning).Debug("job state")

		res, err := s.attempt(ctx, alog, job)
		if err == nil {
			return res
		}
		if ctx.Err() != nil {
			return types.Failed(ErrShuttingDown.Error())
		}
		if !apierr.IsTransient(err) {
			alog.WithField("error", err.Error()).Error("worker error (non-transient)")
			return types.Failed(err.Error())
		}
		if limit := s.opts.MaxJobAttempts; limit > 0 && attempt >= limit {
			alog.WithField("error", err.Error()).Error("giving up after transient failures")
			return types.Failed(err.Error())
		}

		alog.WithField("error", err.Error()).Warn("backend transient failure during processing")
		s.metrics.IncrementRetriedJobs()
		if !s.health.Check(ctx) {
			alog.Warn("backend unhealthy")
		}
		if err := s.waiter.Wait(ctx); err != nil {
			return types.Failed(ErrShuttingDown.Error())
		}
	}
}

// attempt runs one pass over the job in a fresh work dir. A returned error is
// a processing failure for the caller to classify; pre-flight outcomes come
// back as a result.
func (s *Scheduler) attempt(ctx context.Context, log *logrus.Entry, job types.Job) (types.JobResult, error) {
	dir, err := os.MkdirTemp(s.opts.TempRoot, "zipproc_*")
	if err != nil {
		return types.JobResult{}, fmt.Errorf("create work dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			log.WithField("dir", dir).WithField("error", err.Error()).Warn("work dir cleanup failed")
		}
	}()

	files, err := s.fetcher.Fetch(ctx, job.SourceArchiveURL, dir)
	if err != nil {
		if serverUnavailable(err) {
			return types.JobResult{}, err
		}
		if ctx.Err() != nil {
			return types.JobResult{}, ctx.Err()
		}
		log.WithField("error", err.Error()).Error("pre-processing failed")
		return types.Failed(msgPreprocess), nil
	}
	if len(files) == 0 {
		log.Warn(msgNoAudio)
		return types.Failed(msgNoAudio), nil
	}

	for _, f := range files {
		name := filepath.Base(f)
		d, err := s.prober.Duration(ctx, f)
		if err != nil {
			log.WithField("file", name).WithField("error", err.Error()).Error("duration probe failed")
			return types.Failed("Failed to read duration for " + name), nil
		}
		if d > s.opts.MaxAudioSeconds {
			msg := fmt.Sprintf("Skipped: %s is %.1f mins (exceeds %d-minute limit).",
				name, d/60, int(s.opts.MaxAudioSeconds/60))
			log.Warn(msg)
			return types.Skipped(msg), nil
		}
	}

	if err := s.runner.Run(ctx, job, files, dir); err != nil {
		return types.JobResult{}, err
	}
	return types.Success(msgSent), nil
}

// serverUnavailable reports a 5xx from the archive host, the only fetch
// failure worth waiting out.
func serverUnavailable(err error) bool {
	var se *apierr.StatusError
	return errors.As(err, &se) && se.Code >= 500 && se.Code < 600
}
