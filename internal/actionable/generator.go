package actionable

import (
	"fmt"

	"call-audit-go/internal/aggregator"
)

// LowCoverage is the evidence share below which a label gets flagged.
const LowCoverage = 0.5

type ActionCard struct {
	Insight string `json:"insight"`
	Action  string `json:"action"`
	Impact  string `json:"impact"`
}

// Generate turns a job summary into follow-ups for the audit team. Cards come
// out in label order, with the transcript card last.
func Generate(s aggregator.Summary) []ActionCard {
	var cards []ActionCard
	for _, l := range s.Labels {
		cov := s.Coverage(l)
		if cov >= LowCoverage {
			continue
		}
		cards = append(cards, ActionCard{
			Insight: fmt.Sprintf("Low %s coverage (%.0f%% of calls)", l, cov*100),
			Action:  fmt.Sprintf("Review calls without %s evidence and coach agents on that step", l),
			Impact:  "Raises audit pass rate for the opportunity",
		})
	}
	if s.EmptyTranscripts > 0 {
		cards = append(cards, ActionCard{
			Insight: fmt.Sprintf("%d of %d calls produced no transcript", s.EmptyTranscripts, s.Calls),
			Action:  "Check recording quality and resubmit the affected calls",
			Impact:  "Restores evidence for calls that could not be audited",
		})
	}
	if len(cards) == 0 {
		return []ActionCard{{
			Insight: "No coverage gaps detected",
			Action:  "Monitor and collect more data",
			Impact:  "Low immediate intervention",
		}}
	}
	return cards
}
