package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-audit-go/internal/types"
)

func bufferedLogger() (*logrus.Entry, *bytes.Buffer) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.JSONFormatter{})
	return logrus.NewEntry(l), &buf
}

func samplePayload() types.ResultPayload {
	return types.ResultPayload{
		OpportunityID: "opp-1",
		Calls: []types.CallRecord{{
			CallID:     "call_2025_01_02",
			CallDate:   "2025-01-02",
			Duration:   61.5,
			Evidence:   []types.EvidenceEntry{{Label: "Closure", Text: "asked for more help"}},
			Transcript: "hello there",
		}},
	}
}

func TestPostDeliversJSON(t *testing.T) {
	var got types.ResultPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	log, buf := bufferedLogger()
	NewClient(time.Second, log).Post(context.Background(), srv.URL, samplePayload(), time.Now().Add(-3*time.Second))

	assert.Equal(t, samplePayload(), got)
	assert.Contains(t, buf.String(), `"msg":"callback result"`)
	assert.Contains(t, buf.String(), `"msg":"Total time"`)
}

func TestPostLogsFailuresWithoutPanicking(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(bytes.Repeat([]byte("x"), 2000))
	}))
	defer srv.Close()

	log, buf := bufferedLogger()
	NewClient(time.Second, log).Post(context.Background(), srv.URL, samplePayload(), time.Now())

	out := buf.String()
	assert.Contains(t, out, `"status":500`)
	assert.Contains(t, out, `"level":"error"`)
	assert.Contains(t, out, `"msg":"Total time"`)
	assert.NotContains(t, out, string(bytes.Repeat([]byte("x"), 501)))
}

func TestPostUnreachableStillLogsElapsed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	log, buf := bufferedLogger()
	NewClient(time.Second, log).Post(context.Background(), url, samplePayload(), time.Now())

	require.Contains(t, buf.String(), `"msg":"callback error"`)
	assert.Contains(t, buf.String(), `"msg":"Total time"`)
}
