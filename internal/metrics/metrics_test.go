package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"call-audit-go/internal/types"
)

func TestMetrics_RecordOutcome(t *testing.T) {
	m := NewMetrics()
	m.RecordOutcome(types.Success("ok"))
	m.RecordOutcome(types.Skipped("too long"))
	m.RecordOutcome(types.Failed("boom"))
	m.RecordOutcome(types.Failed("boom again"))

	s := m.GetSnapshot()
	assert.EqualValues(t, 1, s["succeeded_jobs"])
	assert.EqualValues(t, 1, s["skipped_jobs"])
	assert.EqualValues(t, 2, s["failed_jobs"])
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()
	m.IncrementSubmittedJobs()
	m.IncrementRetriedJobs()
	m.IncrementProcessedCalls()
	m.AddDroppedChunks(3)
	m.SetQueueDepth(4)
	m.SetQueueDepth(2)

	assert.Equal(t, map[string]int64{
		"submitted_jobs":  1,
		"succeeded_jobs":  0,
		"skipped_jobs":    0,
		"failed_jobs":     0,
		"retried_jobs":    1,
		"processed_calls": 1,
		"dropped_chunks":  3,
		"queue_depth":     2,
	}, m.GetSnapshot())
}

func TestMetrics_ConcurrentAccess(t *testing.T) {
	m := NewMetrics()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncrementSubmittedJobs()
			m.RecordOutcome(types.Success("ok"))
			m.IncrementProcessedCalls()
		}()
	}
	wg.Wait()

	s := m.GetSnapshot()
	assert.EqualValues(t, 100, s["submitted_jobs"])
	assert.EqualValues(t, 100, s["succeeded_jobs"])
	assert.EqualValues(t, 100, s["processed_calls"])
}
