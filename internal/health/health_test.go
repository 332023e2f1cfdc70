package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-audit-go/internal/logger"
)

func TestProbeRecordsOutcome(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	state := &State{}
	assert.False(t, state.Healthy())
	assert.True(t, state.LastChecked().IsZero())

	p := NewProbe(srv.URL, http.MethodHead, http.StatusOK, time.Second, state, logger.Discard().Entry)
	assert.True(t, p.Check(context.Background()))
	assert.True(t, state.Healthy())
	assert.False(t, state.LastChecked().IsZero())

	status.Store(http.StatusServiceUnavailable)
	assert.False(t, p.Check(context.Background()))
	assert.False(t, state.Healthy())
}

func TestProbeUnreachableIsUnhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	p := NewProbe(url, "", http.StatusOK, time.Second, nil, logger.Discard().Entry)
	assert.False(t, p.Check(context.Background()))
	assert.False(t, p.State.Healthy())
}

func TestProbeTimeoutIsUnhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	p := NewProbe(srv.URL, http.MethodGet, http.StatusOK, 50*time.Millisecond, nil, logger.Discard().Entry)
	assert.False(t, p.Check(context.Background()))
}

func TestBackoffWait(t *testing.T) {
	start := time.Now()
	require.NoError(t, Backoff{Delay: 20 * time.Millisecond}.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Backoff{Delay: time.Hour}.Wait(ctx), context.Canceled)
}

func TestMonitorRefreshesState(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	p := NewProbe(srv.URL, http.MethodGet, http.StatusOK, time.Second, nil, logger.Discard().Entry)
	m := NewMonitor(p, logger.Discard().Entry)
	require.NoError(t, m.Start("@every 1s"))
	defer m.Stop()

	require.Eventually(t, func() bool { return hits.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	assert.Eventually(t, p.State.Healthy, time.Second, 10*time.Millisecond)
}

func TestMonitorRejectsBadSchedule(t *testing.T) {
	p := NewProbe("http://localhost", http.MethodGet, http.StatusOK, time.Second, nil, logger.Discard().Entry)
	assert.Error(t, NewMonitor(p, logger.Discard().Entry).Start("not a schedule"))
}
