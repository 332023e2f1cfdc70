// Package health probes the speech backend and paces job retries while it is down.
package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// State holds the last probe outcome. Only Probe writes it.
type State struct {
	healthy atomic.Bool
	checked atomic.Int64
}

func (s *State) Healthy() bool { return s.healthy.Load() }

// LastChecked is the zero time until the first probe completes.
func (s *State) LastChecked() time.Time {
	ns := s.checked.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (s *State) record(ok bool, at time.Time) {
	s.healthy.Store(ok)
	s.checked.Store(at.UnixNano())
}

type Probe struct {
	URL            string
	Method         string
	ExpectedStatus int

	HTTP  *http.Client
	State *State
	Log   *logrus.Entry
}

func NewProbe(url, method string, expected int, timeout time.Duration, state *State, log *logrus.Entry) *Probe {
	if method == "" {
		method = http.MethodGet
	}
	if state == nil {
		state = &State{}
	}
	return &Probe{
		URL:            url,
		Method:         method,
		ExpectedStatus: expected,
		HTTP:           &http.Client{Timeout: timeout},
		State:          state,
		Log:            log.WithField("component", "health"),
	}
}

// Check reports whether the backend answered with the expected status.
// Any request error counts as unhealthy.
func (p *Probe) Check(ctx context.Context) bool {
	ok := p.check(ctx)
	p.State.record(ok, time.Now())
	return ok
}

func (p *Probe) check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, p.Method, p.URL, nil)
	if err != nil {
		p.Log.WithField("url", p.URL).WithField("error", err.Error()).Error("health check failed")
		return false
	}
	resp, err := p.HTTP.Do(req)
	if err != nil {
		p.Log.WithField("url", p.URL).WithField("error", err.Error()).Error("health check failed")
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != p.ExpectedStatus {
		p.Log.WithField("status", resp.StatusCode).
			WithField("expected", p.ExpectedStatus).
			Warn("health check non-OK status")
		return false
	}
	return true
}

// Backoff is the fixed pause taken while the backend is unhealthy.
type Backoff struct {
	Delay time.Duration
}

// Wait sleeps for Delay or until ctx is done.
func (b Backoff) Wait(ctx context.Context) error {
	if b.Delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(b.Delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Monitor refreshes State on a cron schedule between jobs so /healthz reflects
// the backend even while the queue is idle.
type Monitor struct {
	probe *Probe
	cron  *cron.Cron
	log   *logrus.Entry
}

func NewMonitor(p *Probe, log *logrus.Entry) *Monitor {
	return &Monitor{probe: p, cron: cron.New(), log: log.WithField("component", "health-monitor")}
}

// Start schedules the probe. schedule accepts cron specs and descriptors such as "@every 1m".
func (m *Monitor) Start(schedule string) error {
	if schedule == "" {
		schedule = "@every 1m"
	}
	_, err := m.cron.AddFunc(schedule, m.run)
	if err != nil {
		return err
	}
	m.cron.Start()
	m.log.WithField("schedule", schedule).Info("health monitor started")
	return nil
}

func (m *Monitor) Stop() {
	<-m.cron.Stop().Done()
	m.log.Info("health monitor stopped")
}

func (m *Monitor) run() {
	ctx, cancel := context.WithTimeout(context.Background(), m.probe.HTTP.Timeout+time.Second)
	defer cancel()
	if !m.probe.Check(ctx) {
		m.log.Warn("speech backend unhealthy")
	}
}
