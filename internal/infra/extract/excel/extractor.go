package excel

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/bryanwahyu/ddq-validator/internal/domain/ddq"
)

// Columns maps the semantic fields to spreadsheet column letters.
// QuestionID may be empty for layouts without an id column.
type Columns struct {
	QuestionID string
	Question   string
	Answer     string
	Expected   string
}

type Options struct {
	Columns Columns
	// Sheets limits extraction to the named sheets, in this order. Empty means every sheet.
	Sheets   []string
	StartRow int
	// MaxRowsPerSheet stops reading after this sheet row number, 0 = unlimited.
	MaxRowsPerSheet int
}

type colIndex struct {
	id, question, answer, expected int // 0 = not mapped
}

func (c Columns) resolve() (colIndex, error) {
	var out colIndex
	for _, m := range []struct {
		name     string
		letter   string
		dst      *int
		required bool
	}{
		{"question_id", c.QuestionID, &out.id, false},
		{"question", c.Question, &out.question, true},
		{"answer", c.Answer, &out.answer, true},
		{"expected", c.Expected, &out.expected, false},
	} {
		letter := strings.TrimSpace(m.letter)
		if letter == "" {
			if m.required {
				return out, fmt.Errorf("%w: %s column is required", ddq.ErrInvalidColumns, m.name)
			}
			continue
		}
		n, err := excelize.ColumnNameToNumber(letter)
		if err != nil {
			return out, fmt.Errorf("%w: %s column %q: %v", ddq.ErrInvalidColumns, m.name, letter, err)
		}
		*m.dst = n
	}
	return out, nil
}

// Extractor reads the filled workbook into ordered QuestionRows.
type Extractor struct {
	opts Options
	cols colIndex
	log  *zap.Logger
}

func NewExtractor(opts Options, log *zap.Logger) (*Extractor, error) {
	cols, err := opts.Columns.resolve()
	if err != nil {
		return nil, err
	}
	if opts.StartRow <= 0 {
		opts.StartRow = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{opts: opts, cols: cols, log: log}, nil
}

// Extract walks the selected sheets sheet-major then row-major. Model answers come
// from ref when given, otherwise from the expected column of the filled workbook.
// Rows with nothing in the id, question and answer columns are not questions and are left out.
func (e *Extractor) Extract(ctx context.Context, filled io.Reader, ref *ddq.ReferenceSet) ([]ddq.QuestionRow, error) {
	f, err := excelize.OpenReader(filled)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ddq.ErrWorkbookUnreadable, err)
	}
	defer f.Close()

	sheets, err := selectSheets(f, e.opts.Sheets)
	if err != nil {
		return nil, err
	}

	var out []ddq.QuestionRow
	for _, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("%w: sheet %q: %v", ddq.ErrWorkbookUnreadable, sheet, err)
		}

		before := len(out)
		last := len(rows)
		if e.opts.MaxRowsPerSheet > 0 && e.opts.MaxRowsPerSheet < last {
			last = e.opts.MaxRowsPerSheet
		}
		for r := e.opts.StartRow; r <= last; r++ {
			cells := rows[r-1]
			qr := ddq.QuestionRow{
				Sheet:        sheet,
				RowIndex:     r,
				QuestionID:   cell(cells, e.cols.id),
				QuestionText: cell(cells, e.cols.question),
				AnswerText:   cell(cells, e.cols.answer),
			}
			if qr.QuestionID == "" && qr.QuestionText == "" && qr.AnswerText == "" {
				continue
			}

			if ref != nil {
				qr.ExpectedText, qr.ExtractErr = ref.Expected(sheet, r, qr.QuestionID)
			} else {
				qr.ExpectedText = cell(cells, e.cols.expected)
			}
			if qr.ExtractErr == nil {
				qr.ExtractErr = cellErrors(f, sheet, r, e.cols, qr)
			}
			out = append(out, qr)
		}
		e.log.Debug("sheet extracted", zap.String("sheet", sheet), zap.Int("rows", len(out)-before))
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: check that the workbook uses the configured column layout", ddq.ErrNoRows)
	}
	return out, nil
}

// LoadReference reads model answers from a reference workbook, keyed by position and question id.
func LoadReference(ctx context.Context, r io.Reader, opts Options, strict bool) (*ddq.ReferenceSet, error) {
	cols, err := opts.Columns.resolve()
	if err != nil {
		return nil, err
	}
	if cols.expected == 0 {
		return nil, fmt.Errorf("%w: expected column is required for a reference workbook", ddq.ErrInvalidColumns)
	}
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reference: %v", ddq.ErrWorkbookUnreadable, err)
	}
	defer f.Close()

	sheets, err := selectSheets(f, opts.Sheets)
	if err != nil {
		return nil, err
	}
	start := opts.StartRow
	if start <= 0 {
		start = 1
	}

	set := ddq.NewReferenceSet(strict)
	for _, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("%w: reference sheet %q: %v", ddq.ErrWorkbookUnreadable, sheet, err)
		}
		for r := start; r <= len(rows); r++ {
			expected := cell(rows[r-1], cols.expected)
			if expected == "" {
				continue
			}
			set.AddRow(sheet, r, cell(rows[r-1], cols.id), expected)
		}
	}
	return set, nil
}

// WorkbookReference loads model answers from a workbook kept in a WorkbookSource.
type WorkbookReference struct {
	Source  ddq.WorkbookSource
	Key     string
	Options Options
	Strict  bool
}

// Check opens the reference workbook without parsing it.
func (w WorkbookReference) Check(ctx context.Context) error {
	rc, err := w.Source.Open(ctx, w.Key)
	if err != nil {
		return fmt.Errorf("reference workbook %s: %w", w.Key, err)
	}
	return rc.Close()
}

func (w WorkbookReference) LoadReference(ctx context.Context) (*ddq.ReferenceSet, error) {
	rc, err := w.Source.Open(ctx, w.Key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ddq.ErrReferenceSource, err)
	}
	defer rc.Close()
	return LoadReference(ctx, rc, w.Options, w.Strict)
}

func selectSheets(f *excelize.File, want []string) ([]string, error) {
	all := f.GetSheetList()
	if len(want) == 0 {
		return all, nil
	}
	have := make(map[string]bool, len(all))
	for _, s := range all {
		have[s] = true
	}
	for _, s := range want {
		if !have[s] {
			return nil, fmt.Errorf("%w: %q", ddq.ErrSheetNotFound, s)
		}
	}
	return want, nil
}

func cell(cells []string, col int) string {
	if col <= 0 || col > len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[col-1])
}

// cellErrors reports formula error values (#REF!, #VALUE!, ...) in the mapped cells.
func cellErrors(f *excelize.File, sheet string, row int, cols colIndex, qr ddq.QuestionRow) error {
	for _, c := range []struct {
		col int
		val string
	}{
		{cols.id, qr.QuestionID},
		{cols.question, qr.QuestionText},
		{cols.answer, qr.AnswerText},
	} {
		if c.col == 0 || !strings.HasPrefix(c.val, "#") {
			continue
		}
		axis, err := excelize.CoordinatesToCellName(c.col, row)
		if err != nil {
			return err
		}
		typ, err := f.GetCellType(sheet, axis)
		if err != nil {
			return fmt.Errorf("cell %s: %v", axis, err)
		}
		if typ == excelize.CellTypeError {
			return fmt.Errorf("cell %s holds %s", axis, c.val)
		}
	}
	return nil
}
