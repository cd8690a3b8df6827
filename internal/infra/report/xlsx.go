package report

import (
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/bryanwahyu/ddq-validator/internal/domain/ddq"
)

const (
	reportSheet  = "Report"
	summarySheet = "Summary"
)

var statusFill = map[ddq.Status]string{
	ddq.StatusFlagged:   "F8CBAD",
	ddq.StatusEscalated: "FFE699",
	ddq.StatusSkipped:   "D9D9D9",
}

// WriteXLSX writes the report and its summary as a two-sheet workbook.
func WriteXLSX(w io.Writer, rep ddq.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", reportSheet); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	fills := make(map[ddq.Status]int, len(statusFill))
	for st, color := range statusFill {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
		})
		if err != nil {
			return err
		}
		fills[st] = id
	}

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(reportSheet, "A1", &header); err != nil {
		return err
	}
	if err := f.SetRowStyle(reportSheet, 1, 1, bold); err != nil {
		return err
	}

	for i, r := range rep.Rows {
		rec, err := record(r)
		if err != nil {
			return err
		}
		row := make([]any, len(rec))
		for j, v := range rec {
			row[j] = v
		}
		row[1] = r.Row.RowIndex
		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(reportSheet, axis, &row); err != nil {
			return err
		}
		if id, ok := fills[r.Status]; ok {
			// status column
			cellName, _ := excelize.CoordinatesToCellName(4, i+2)
			if err := f.SetCellStyle(reportSheet, cellName, cellName, id); err != nil {
				return err
			}
		}
	}
	if err := f.SetPanes(reportSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}
	lines := [][]any{
		{"total_rows", rep.Summary.TotalRows},
		{"total_flagged", rep.Summary.TotalFlagged},
	}
	statuses := make([]string, 0, len(rep.Summary.ByStatus))
	for st := range rep.Summary.ByStatus {
		statuses = append(statuses, st)
	}
	sort.Strings(statuses)
	for _, st := range statuses {
		lines = append(lines, []any{st, rep.Summary.ByStatus[st]})
	}
	for i, l := range lines {
		axis, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, axis, &l); err != nil {
			return err
		}
	}

	_, err = f.WriteTo(w)
	return err
}
