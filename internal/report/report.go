// Package report writes a per-job XLSX audit of the delivered payload.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"call-audit-go/internal/actionable"
	"call-audit-go/internal/aggregator"
	"call-audit-go/internal/types"
)

const (
	callsSheet   = "Calls"
	summarySheet = "Summary"
	actionsSheet = "Actions"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Writer saves reports under Dir. A zero Dir disables reporting.
type Writer struct {
	Dir string
	Log *logrus.Entry
}

func NewWriter(dir string, log *logrus.Entry) *Writer {
	return &Writer{Dir: dir, Log: log.WithField("component", "report")}
}

func (w *Writer) Enabled() bool { return w != nil && w.Dir != "" }

// Write stores the payload as <opportunity>_<job>.xlsx and returns the path.
func (w *Writer) Write(jobID string, p types.ResultPayload) (string, error) {
	if !w.Enabled() {
		return "", nil
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	name := unsafeName.ReplaceAllString(p.OpportunityID, "_")
	if len(jobID) > 8 {
		jobID = jobID[:8]
	}
	path := filepath.Join(w.Dir, fmt.Sprintf("%s_%s.xlsx", name, jobID))

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	summary := aggregator.Summarize(p)
	if err := writeCalls(f, p, summary.Labels); err != nil {
		return "", err
	}
	if err := writeSummary(f, p.OpportunityID, summary); err != nil {
		return "", err
	}
	if err := writeActions(f, actionable.Generate(summary)); err != nil {
		return "", err
	}
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}
	w.Log.WithField("path", path).WithField("calls", summary.Calls).Info("audit report written")
	return path, nil
}

func writeCalls(f *excelize.File, p types.ResultPayload, labels []string) error {
	if err := f.SetSheetName("Sheet1", callsSheet); err != nil {
		return err
	}
	header := []interface{}{"call_id", "call_date", "duration_sec", "transcript"}
	for _, l := range labels {
		header = append(header, l)
	}
	if err := f.SetSheetRow(callsSheet, "A1", &header); err != nil {
		return err
	}
	if err := boldRow(f, callsSheet, len(header)); err != nil {
		return err
	}

	for i, c := range p.Calls {
		byLabel := make(map[string]string, len(c.Evidence))
		for _, e := range c.Evidence {
			byLabel[e.Label] = e.Text
		}
		row := []interface{}{c.CallID, c.CallDate, c.Duration, c.Transcript}
		for _, l := range labels {
			row = append(row, byLabel[l])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(callsSheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SetColWidth(callsSheet, "D", "D", 80)
}

func writeSummary(f *excelize.File, opportunityID string, s aggregator.Summary) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}
	rows := [][]interface{}{
		{"opportunity_id", opportunityID},
		{"calls", s.Calls},
		{"total_duration_sec", s.TotalDurationSec},
		{"empty_transcripts", s.EmptyTranscripts},
		{},
		{"label", "calls_with_evidence", "coverage"},
	}
	for _, l := range s.Labels {
		rows = append(rows, []interface{}{l, s.EvidenceCoverage[l], s.Coverage(l)})
	}
	for i := range rows {
		if len(rows[i]) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &rows[i]); err != nil {
			return err
		}
	}
	return f.SetColWidth(summarySheet, "A", "A", 30)
}

func writeActions(f *excelize.File, cards []actionable.ActionCard) error {
	if _, err := f.NewSheet(actionsSheet); err != nil {
		return err
	}
	header := []interface{}{"insight", "action", "impact"}
	if err := f.SetSheetRow(actionsSheet, "A1", &header); err != nil {
		return err
	}
	if err := boldRow(f, actionsSheet, len(header)); err != nil {
		return err
	}
	for i, c := range cards {
		row := []interface{}{c.Insight, c.Action, c.Impact}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(actionsSheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SetColWidth(actionsSheet, "A", "C", 60)
}

func boldRow(f *excelize.File, sheet string, cols int) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(cols, 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}
