package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallRecordJSONShape(t *testing.T) {
	rec := CallRecord{
		CallID:   "agent_2025_09_18_11_38_20",
		CallDate: "2025-09-18",
		Duration: 61.5,
		Evidence: []EvidenceEntry{
			{Label: "First Question", Text: "agent introduced themselves"},
			{Label: "Closure", Text: "call closed politely"},
		},
		Transcript: "hello there",
	}
	b, err := json.Marshal(ResultPayload{OpportunityID: "opp-1", Calls: []CallRecord{rec}})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"opportunity_id": "opp-1",
		"calls": [{
			"call_id": "agent_2025_09_18_11_38_20",
			"call_date": "2025-09-18",
			"duration": 61.5,
			"evidence_data": [
				{"First Question": "agent introduced themselves"},
				{"Closure": "call closed politely"}
			],
			"transcript": "hello there"
		}]
	}`, string(b))

	var back ResultPayload
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, rec, back.Calls[0])
}

func TestEvidenceEntryRejectsMultipleKeys(t *testing.T) {
	var e EvidenceEntry
	assert.Error(t, json.Unmarshal([]byte(`{"a":"1","b":"2"}`), &e))
}
