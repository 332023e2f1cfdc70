package metrics

import (
	"sync"

	"call-audit-go/internal/types"
)

// Metrics tracks job and call counters for /metrics.
type Metrics struct {
	mu sync.RWMutex

	submittedJobs  int64
	succeededJobs  int64
	skippedJobs    int64
	failedJobs     int64
	retriedJobs    int64
	processedCalls int64
	droppedChunks  int64
	queueDepth     int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncrementSubmittedJobs() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submittedJobs++
}

// RecordOutcome counts a resolved job under its final status.
func (m *Metrics) RecordOutcome(res types.JobResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch res.Status {
	case types.StatusSuccess:
		m.succeededJobs++
	case types.StatusSkipped:
		m.skippedJobs++
	default:
		m.failedJobs++
	}
}

// IncrementRetriedJobs counts a whole-job retry after a transient failure.
func (m *Metrics) IncrementRetriedJobs() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retriedJobs++
}

func (m *Metrics) IncrementProcessedCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processedCalls++
}

func (m *Metrics) AddDroppedChunks(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.droppedChunks += int64(n)
}

func (m *Metrics) SetQueueDepth(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queueDepth = int64(n)
}

// GetSnapshot returns a snapshot of all metrics
func (m *Metrics) GetSnapshot() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]int64{
		"submitted_jobs":  m.submittedJobs,
		"succeeded_jobs":  m.succeededJobs,
		"skipped_jobs":    m.skippedJobs,
		"failed_jobs":     m.failedJobs,
		"retried_jobs":    m.retriedJobs,
		"processed_calls": m.processedCalls,
		"dropped_chunks":  m.droppedChunks,
		"queue_depth":     m.queueDepth,
	}
}
