package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bryanwahyu/ddq-validator/internal/domain/ddq"
)

// Header is the column order of the tabular report.
var Header = []string{
	"sheet",
	"row_index",
	"question_id",
	"status",
	"reason",
	"question_text",
	"answer_text",
	"expected_text",
	"kind",
	"deterministic_reason",
	"note",
	"details_json",
}

func record(r ddq.RowResult) ([]string, error) {
	details := ""
	if r.Verdict != nil {
		b, err := json.Marshal(r.Verdict)
		if err != nil {
			return nil, err
		}
		details = string(b)
	}
	return []string{
		r.Row.Sheet,
		strconv.Itoa(r.Row.RowIndex),
		r.Row.QuestionID,
		string(r.Status),
		r.Reason,
		r.Row.QuestionText,
		r.Row.AnswerText,
		r.Row.ExpectedText,
		string(r.Kind),
		r.DeterministicReason,
		r.Note,
		details,
	}, nil
}

// WriteCSV writes one line per row result, in the given order.
func WriteCSV(w io.Writer, rows []ddq.RowResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range rows {
		rec, err := record(r)
		if err != nil {
			return fmt.Errorf("row %s:%d: %w", r.Row.Sheet, r.Row.RowIndex, err)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a report written by WriteCSV.
func ReadCSV(r io.Reader) ([]ddq.RowResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, h := range Header {
		if head[i] != h {
			return nil, fmt.Errorf("unexpected column %d: %q, want %q", i+1, head[i], h)
		}
	}

	var out []ddq.RowResult
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		idx, err := strconv.Atoi(rec[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: row_index: %w", line, err)
		}
		res := ddq.RowResult{
			Row: ddq.QuestionRow{
				Sheet:        rec[0],
				RowIndex:     idx,
				QuestionID:   rec[2],
				QuestionText: rec[5],
				AnswerText:   rec[6],
				ExpectedText: rec[7],
			},
			Status:              ddq.Status(rec[3]),
			Reason:              rec[4],
			Kind:                ddq.FindingKind(rec[8]),
			DeterministicReason: rec[9],
			Note:                rec[10],
		}
		if rec[11] != "" {
			var v ddq.Verdict
			if err := json.Unmarshal([]byte(rec[11]), &v); err != nil {
				return nil, fmt.Errorf("line %d: details_json: %w", line, err)
			}
			res.Verdict = &v
		}
		out = append(out, res)
	}
}

// MarshalSummary renders the summary as indented JSON. Keys of by_status are sorted.
func MarshalSummary(s ddq.Summary) ([]byte, error) {
	if s.ByStatus == nil {
		s.ByStatus = map[string]int{}
	}
	return json.MarshalIndent(s, "", "  ")
}

// Rendered holds the serialized forms of a report for callers that persist them.
type Rendered struct {
	CSV         []byte
	SummaryJSON []byte
}

func Render(rep ddq.Report) (Rendered, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, rep.Rows); err != nil {
		return Rendered{}, err
	}
	sum, err := MarshalSummary(rep.Summary)
	if err != nil {
		return Rendered{}, err
	}
	return Rendered{CSV: buf.Bytes(), SummaryJSON: sum}, nil
}

// Paths of the files written by WriteDir.
type Paths struct {
	ReportCSV   string `json:"report_csv"`
	SummaryJSON string `json:"summary_json"`
	ReportXLSX  string `json:"report_xlsx,omitempty"`
}

// WriteDir writes report.csv and summary.json, plus report.xlsx when withXLSX is set.
func WriteDir(dir string, rep ddq.Report, withXLSX bool) (Paths, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Paths{}, err
	}
	r, err := Render(rep)
	if err != nil {
		return Paths{}, err
	}

	p := Paths{
		ReportCSV:   filepath.Join(dir, "report.csv"),
		SummaryJSON: filepath.Join(dir, "summary.json"),
	}
	if err := os.WriteFile(p.ReportCSV, r.CSV, 0o644); err != nil {
		return Paths{}, err
	}
	if err := os.WriteFile(p.SummaryJSON, r.SummaryJSON, 0o644); err != nil {
		return Paths{}, err
	}
	if !withXLSX {
		return p, nil
	}

	p.ReportXLSX = filepath.Join(dir, "report.xlsx")
	f, err := os.Create(p.ReportXLSX)
	if err != nil {
		return Paths{}, err
	}
	if err := WriteXLSX(f, rep); err != nil {
		f.Close()
		return Paths{}, err
	}
	return p, f.Close()
}
