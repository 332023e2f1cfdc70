package report

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"call-audit-go/internal/logger"
	"call-audit-go/internal/types"
)

func TestWriteProducesCallsAndSummarySheets(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, logger.Discard().Entry)

	path, err := w.Write("0123456789abcdef", types.ResultPayload{
		OpportunityID: "opp/42",
		Calls: []types.CallRecord{
			{
				CallID:     "call_a",
				CallDate:   "2025-09-18",
				Duration:   120,
				Transcript: "hello",
				Evidence: []types.EvidenceEntry{
					{Label: "First Question", Text: "agent introduced"},
					{Label: "Closure", Text: "asked for help"},
				},
			},
			{
				CallID:   "call_b",
				Duration: 60,
				Evidence: []types.EvidenceEntry{{Label: "Closure", Text: "no survey"}},
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "opp_42_01234567.xlsx"), path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Calls", "Summary", "Actions"}, f.GetSheetList())

	rows, err := f.GetRows("Calls")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"call_id", "call_date", "duration_sec", "transcript", "First Question", "Closure"}, rows[0])
	assert.Equal(t, []string{"call_a", "2025-09-18", "120", "hello", "agent introduced", "asked for help"}, rows[1])
	assert.Equal(t, "call_b", rows[2][0])
	assert.Equal(t, "no survey", rows[2][5])

	calls, err := f.GetCellValue("Summary", "B2")
	require.NoError(t, err)
	assert.Equal(t, "2", calls)
	closure, err := f.GetCellValue("Summary", "B8")
	require.NoError(t, err)
	assert.Equal(t, "2", closure)

	actions, err := f.GetRows("Actions")
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, []string{"insight", "action", "impact"}, actions[0])
	assert.Equal(t, "1 of 2 calls produced no transcript", actions[1][0])
}

func TestWriteDisabled(t *testing.T) {
	path, err := NewWriter("", logger.Discard().Entry).Write("id", types.ResultPayload{})
	require.NoError(t, err)
	assert.Empty(t, path)

	var w *Writer
	assert.False(t, w.Enabled())
}
