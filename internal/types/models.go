package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// SubmitRequest is the body accepted by /transcribe-zip.
type SubmitRequest struct {
	OpportunityID string `json:"opportunity_id" validate:"required"`
	FileURL       string `json:"fileURL" validate:"required,url"`
	CallbackURL   string `json:"callback_url" validate:"required,url"`
}

// Job is one queued archive. ID only correlates log lines.
type Job struct {
	ID               string
	OpportunityID    string
	SourceArchiveURL string
	CallbackURL      string
	SubmittedAt      time.Time
}

type JobState string

const (
	StatePending    JobState = "PENDING"
	StateHealthGate JobState = "HEALTH_GATE"
	StateRunning    JobState = "RUNNING"
	StateSucceeded  JobState = "SUCCEEDED"
	StateSkipped    JobState = "SKIPPED"
	StateFailed     JobState = "FAILED"
)

// Result statuses returned to the submitter.
const (
	StatusSuccess = "success"
	StatusSkipped = "skipped"
	StatusError   = "error"
)

// JobResult is what the submitter receives once the job resolves.
type JobResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func Success(msg string) JobResult { return JobResult{Status: StatusSuccess, Message: msg} }
func Skipped(msg string) JobResult { return JobResult{Status: StatusSkipped, Message: msg} }
func Failed(msg string) JobResult  { return JobResult{Status: StatusError, Message: msg} }

// EvidenceEntry is one labeled QA answer. It serializes as {"<label>": "<text>"}.
type EvidenceEntry struct {
	Label string
	Text  string
}

func (e EvidenceEntry) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	key, err := json.Marshal(e.Label)
	if err != nil {
		return nil, err
	}
	val, err := json.Marshal(e.Text)
	if err != nil {
		return nil, err
	}
	buf.WriteByte('{')
	buf.Write(key)
	buf.WriteByte(':')
	buf.Write(val)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (e *EvidenceEntry) UnmarshalJSON(data []byte) error {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if len(m) != 1 {
		return fmt.Errorf("evidence entry must have exactly one key, got %d", len(m))
	}
	for k, v := range m {
		e.Label, e.Text = k, v
	}
	return nil
}

type CallRecord struct {
	CallID     string          `json:"call_id"`
	CallDate   string          `json:"call_date"`
	Duration   float64         `json:"duration"`
	Evidence   []EvidenceEntry `json:"evidence_data"`
	Transcript string          `json:"transcript"`
}

// ResultPayload is the callback body for one job.
type ResultPayload struct {
	OpportunityID string       `json:"opportunity_id"`
	Calls         []CallRecord `json:"calls"`
}
