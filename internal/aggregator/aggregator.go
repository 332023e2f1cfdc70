package aggregator

import "call-audit-go/internal/types"

// Build assembles the callback payload. Calls keep the order given, which is
// archive discovery order.
func Build(opportunityID string, calls []types.CallRecord) types.ResultPayload {
	if calls == nil {
		calls = []types.CallRecord{}
	}
	return types.ResultPayload{OpportunityID: opportunityID, Calls: calls}
}

// Summary is a per-job rollup used for logging and the audit report.
type Summary struct {
	Calls            int            `json:"calls"`
	TotalDurationSec float64        `json:"total_duration_sec"`
	EmptyTranscripts int            `json:"empty_transcripts"`
	EvidenceCoverage map[string]int `json:"evidence_coverage"`
	Labels           []string       `json:"labels"`
}

// Summarize counts, per evidence label, how many calls produced an answer.
// Labels are listed in order of first appearance.
func Summarize(p types.ResultPayload) Summary {
	s := Summary{Calls: len(p.Calls), EvidenceCoverage: map[string]int{}}
	for _, c := range p.Calls {
		s.TotalDurationSec += c.Duration
		if c.Transcript == "" {
			s.EmptyTranscripts++
		}
		for _, e := range c.Evidence {
			if _, seen := s.EvidenceCoverage[e.Label]; !seen {
				s.Labels = append(s.Labels, e.Label)
			}
			s.EvidenceCoverage[e.Label]++
		}
	}
	return s
}

// Coverage is the share of calls that produced evidence for label.
func (s Summary) Coverage(label string) float64 {
	if s.Calls == 0 {
		return 0
	}
	return float64(s.EvidenceCoverage[label]) / float64(s.Calls)
}
