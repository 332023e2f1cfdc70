package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-audit-go/internal/logger"
	"call-audit-go/internal/metrics"
	"call-audit-go/internal/scheduler"
	"call-audit-go/internal/types"
)

type fakeSubmitter struct {
	res types.JobResult
	err error
	got []types.SubmitRequest
}

func (f *fakeSubmitter) Submit(_ context.Context, req types.SubmitRequest) (types.JobResult, error) {
	f.got = append(f.got, req)
	return f.res, f.err
}

type fakeBackend struct {
	healthy bool
	at      time.Time
}

func (f fakeBackend) Healthy() bool          { return f.healthy }
func (f fakeBackend) LastChecked() time.Time { return f.at }

const validBody = `{"opportunity_id":"opp-1","fileURL":"https://files.example/a.zip","callback_url":"https://cb.example/hook"}`

func newTestHandler(sub Submitter) *Handler {
	return NewHandler(sub, fakeBackend{}, metrics.NewMetrics(), logger.Discard())
}

func TestTranscribeZipReturnsJobResult(t *testing.T) {
	for _, res := range []types.JobResult{
		types.Success("Data sent to callback URL."),
		types.Skipped("Skipped: a.wav is 45.0 mins (exceeds 40-minute limit)."),
		types.Failed("No supported audio files found in ZIP."),
	} {
		t.Run(res.Status, func(t *testing.T) {
			sub := &fakeSubmitter{res: res}
			rec := httptest.NewRecorder()
			newTestHandler(sub).Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/transcribe-zip", strings.NewReader(validBody)))

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			var got types.JobResult
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, res, got)

			require.Len(t, sub.got, 1)
			assert.Equal(t, types.SubmitRequest{
				OpportunityID: "opp-1",
				FileURL:       "https://files.example/a.zip",
				CallbackURL:   "https://cb.example/hook",
			}, sub.got[0])
		})
	}
}

func TestTranscribeZipRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"missing opportunity", `{"fileURL":"https://f.example/a.zip","callback_url":"https://cb.example/x"}`},
		{"bad file url", `{"opportunity_id":"o","fileURL":"not a url","callback_url":"https://cb.example/x"}`},
		{"missing callback", `{"opportunity_id":"o","fileURL":"https://f.example/a.zip"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &fakeSubmitter{}
			rec := httptest.NewRecorder()
			newTestHandler(sub).TranscribeZip(rec, httptest.NewRequest(http.MethodPost, "/transcribe-zip", strings.NewReader(tt.body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, sub.got)
		})
	}
}

func TestTranscribeZipMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(&fakeSubmitter{}).TranscribeZip(rec, httptest.NewRequest(http.MethodGet, "/transcribe-zip", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestTranscribeZipShuttingDown(t *testing.T) {
	rec := httptest.NewRecorder()
	h := newTestHandler(&fakeSubmitter{err: scheduler.ErrShuttingDown})
	h.TranscribeZip(rec, httptest.NewRequest(http.MethodPost, "/transcribe-zip", strings.NewReader(validBody)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "service shutting down")
}

func TestHealthz(t *testing.T) {
	at := time.Date(2025, 9, 18, 11, 38, 20, 0, time.UTC)
	tests := []struct {
		name    string
		backend fakeBackend
		want    string
	}{
		{"never probed", fakeBackend{}, "ok\nbackend=unknown last_checked=never\n"},
		{"up", fakeBackend{healthy: true, at: at}, "ok\nbackend=up last_checked=2025-09-18T11:38:20Z\n"},
		{"down", fakeBackend{at: at}, "ok\nbackend=down last_checked=2025-09-18T11:38:20Z\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&fakeSubmitter{}, tt.backend, metrics.NewMetrics(), logger.Discard())
			rec := httptest.NewRecorder()
			h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, rec.Body.String())
		})
	}
}

func TestMetrics(t *testing.T) {
	m := metrics.NewMetrics()
	m.IncrementSubmittedJobs()
	m.RecordOutcome(types.Success("done"))
	h := NewHandler(&fakeSubmitter{}, fakeBackend{}, m, logger.Discard())

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var snap map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.EqualValues(t, 1, snap["submitted_jobs"])
	assert.EqualValues(t, 1, snap["succeeded_jobs"])
	assert.Contains(t, snap, "queue_depth")
}
