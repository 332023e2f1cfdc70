package pipeline

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"call-audit-go/internal/aggregator"
	"call-audit-go/internal/types"
)

type CallProcessor interface {
	ProcessCall(ctx context.Context, path, workDir string) (types.CallRecord, error)
}

type Poster interface {
	Post(ctx context.Context, url string, payload types.ResultPayload, startedAt time.Time)
}

type Reporter interface {
	Write(jobID string, p types.ResultPayload) (string, error)
}

// Pipeline processes every call of a job and delivers the combined payload.
type Pipeline struct {
	Calls    CallProcessor
	Callback Poster
	Report   Reporter // optional
	Log      *logrus.Entry
}

// Run processes files in order. The first call error aborts the job and is
// returned unchanged so the scheduler can classify it.
func (p *Pipeline) Run(ctx context.Context, job types.Job, files []string, workDir string) error {
	log := p.Log.WithField("job_id", job.ID).WithField("opportunity_id", job.OpportunityID)

	calls := make([]types.CallRecord, 0, len(files))
	for _, f := range files {
		rec, err := p.Calls.ProcessCall(ctx, f, workDir)
		if err != nil {
			return err
		}
		calls = append(calls, rec)
	}

	payload := aggregator.Build(job.OpportunityID, calls)
	summary := aggregator.Summarize(payload)
	log.WithFields(logrus.Fields{
		"calls":              summary.Calls,
		"total_duration_sec": summary.TotalDurationSec,
		"empty_transcripts":  summary.EmptyTranscripts,
	}).Info("job aggregated")

	if p.Report != nil {
		if _, err := p.Report.Write(job.ID, payload); err != nil {
			log.WithField("error", err.Error()).Warn("audit report failed")
		}
	}

	p.Callback.Post(ctx, job.CallbackURL, payload, job.SubmittedAt)
	return nil
}
