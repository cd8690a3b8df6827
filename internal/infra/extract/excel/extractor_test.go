package excel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/bryanwahyu/ddq-validator/internal/domain/ddq"
)

var defaultColumns = Columns{QuestionID: "A", Question: "B", Answer: "C", Expected: "D"}

// workbook builds an xlsx in memory; sheets are created in the order given.
func workbook(t *testing.T, sheets []string, rows map[string][][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, name := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, vals := range rows[name] {
			if len(vals) == 0 {
				continue
			}
			axis, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			row := vals
			require.NoError(t, f.SetSheetRow(name, axis, &row))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func newExtractor(t *testing.T, opts Options) *Extractor {
	t.Helper()
	if opts.Columns == (Columns{}) {
		opts.Columns = defaultColumns
	}
	e, err := NewExtractor(opts, nil)
	require.NoError(t, err)
	return e
}

func TestExtractOrderAndEmptyRows(t *testing.T) {
	buf := workbook(t, []string{"General", "Directors"}, map[string][][]any{
		"General": {
			{"1.1", "Company name?", "ACME GmbH", "Legal name"},
			{},
			{"", "", "", "orphan model answer"},
			{"1.2", "Please describe your AML controls.", "  We screen all clients.  "},
		},
		"Directors": {
			{"2.1", "Directors", "", "All directors disclosed"},
		},
	})

	rows, err := newExtractor(t, Options{}).Extract(context.Background(), buf, nil)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, ddq.QuestionRow{Sheet: "General", RowIndex: 1, QuestionID: "1.1", QuestionText: "Company name?", AnswerText: "ACME GmbH", ExpectedText: "Legal name"}, rows[0])
	assert.Equal(t, 4, rows[1].RowIndex)
	assert.Equal(t, "We screen all clients.", rows[1].AnswerText)
	assert.Empty(t, rows[1].ExpectedText)
	assert.Equal(t, "Directors", rows[2].Sheet)
	assert.Equal(t, "All directors disclosed", rows[2].ExpectedText)
}

func TestExtractWithReferenceWorkbook(t *testing.T) {
	filled := workbook(t, []string{"General"}, map[string][][]any{
		"General": {
			{"ID", "Question", "Answer"},
			{"1.1", "Company name?", "ACME GmbH"},
			{"1.2", "Describe the board.", "tbd"},
		},
	})
	// reference rows are shifted by one but carry ids
	reference := workbook(t, []string{"General"}, map[string][][]any{
		"General": {
			{"ID", "Question", "", "Model answer"},
			{},
			{"1.1", "Company name?", "", "Registered legal name"},
			{"1.2", "Describe the board.", "", "[TEXT] composition and mandates"},
		},
	})

	opts := Options{Columns: defaultColumns, StartRow: 2}
	ref, err := LoadReference(context.Background(), reference, opts, false)
	require.NoError(t, err)
	assert.Equal(t, 2, ref.Len())

	rows, err := newExtractor(t, opts).Extract(context.Background(), filled, ref)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Registered legal name", rows[0].ExpectedText)
	assert.Equal(t, "[TEXT] composition and mandates", rows[1].ExpectedText)
}

func TestExtractStrictReferenceMarksRow(t *testing.T) {
	filled := workbook(t, []string{"General", "Extra"}, map[string][][]any{
		"General": {{"1.1", "Q?", "A"}},
		"Extra":   {{"9.1", "Q?", "A"}},
	})
	ref := ddq.NewReferenceSet(true)
	ref.AddRow("General", 1, "1.1", "model")

	rows, err := newExtractor(t, Options{}).Extract(context.Background(), filled, ref)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.NoError(t, rows[0].ExtractErr)
	require.Error(t, rows[1].ExtractErr)
	assert.Contains(t, rows[1].ExtractErr.Error(), `"Extra"`)
}

func TestExtractMaxRowsAndSheetSelection(t *testing.T) {
	var general [][]any
	for i := 1; i <= 10; i++ {
		general = append(general, []any{fmt.Sprintf("1.%d", i), "Q?", "A"})
	}
	sheets := []string{"General", "Tax"}
	data := map[string][][]any{"General": general, "Tax": {{"3.1", "Q?", "A"}}}

	rows, err := newExtractor(t, Options{MaxRowsPerSheet: 4}).Extract(context.Background(), workbook(t, sheets, data), nil)
	require.NoError(t, err)
	assert.Len(t, rows, 5)

	rows, err = newExtractor(t, Options{Sheets: []string{"Tax"}}).Extract(context.Background(), workbook(t, sheets, data), nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Tax", rows[0].Sheet)

	_, err = newExtractor(t, Options{Sheets: []string{"Missing"}}).Extract(context.Background(), workbook(t, sheets, data), nil)
	assert.True(t, errors.Is(err, ddq.ErrSheetNotFound))
}

func TestExtractRunLevelErrors(t *testing.T) {
	e := newExtractor(t, Options{})

	_, err := e.Extract(context.Background(), strings.NewReader("not a workbook"), nil)
	assert.True(t, errors.Is(err, ddq.ErrWorkbookUnreadable))

	empty := workbook(t, []string{"General"}, map[string][][]any{})
	_, err = e.Extract(context.Background(), empty, nil)
	assert.True(t, errors.Is(err, ddq.ErrNoRows))

	_, err = NewExtractor(Options{Columns: Columns{Question: "B", Answer: "1C"}}, nil)
	assert.True(t, errors.Is(err, ddq.ErrInvalidColumns))
	_, err = NewExtractor(Options{Columns: Columns{Question: "B"}}, nil)
	assert.True(t, errors.Is(err, ddq.ErrInvalidColumns))

	_, err = LoadReference(context.Background(), empty, Options{Columns: Columns{Question: "B", Answer: "C"}}, false)
	assert.True(t, errors.Is(err, ddq.ErrInvalidColumns))
}

func TestExtractTextErrorLiteralIsNotCellError(t *testing.T) {
	buf := workbook(t, []string{"General"}, map[string][][]any{
		"General": {{"1.1", "Q?", "#N/A"}},
	})
	rows, err := newExtractor(t, Options{}).Extract(context.Background(), buf, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NoError(t, rows[0].ExtractErr)
	assert.Equal(t, "#N/A", rows[0].AnswerText)
}

func TestExtractHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	buf := workbook(t, []string{"General"}, map[string][][]any{"General": {{"1.1", "Q?", "A"}}})
	_, err := newExtractor(t, Options{}).Extract(ctx, buf, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

type memSource map[string][]byte

func (m memSource) Open(_ context.Context, key string) (io.ReadCloser, error) {
	b, ok := m[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func TestWorkbookReference(t *testing.T) {
	ref := workbook(t, []string{"General"}, map[string][][]any{
		"General": {{"1.1", "Q?", "", "model"}},
	})
	src := memSource{"ref.xlsx": ref.Bytes()}

	set, err := WorkbookReference{Source: src, Key: "ref.xlsx", Options: Options{Columns: defaultColumns}}.LoadReference(context.Background())
	require.NoError(t, err)
	got, err := set.Expected("General", 7, "1.1")
	require.NoError(t, err)
	assert.Equal(t, "model", got)

	_, err = WorkbookReference{Source: src, Key: "missing.xlsx", Options: Options{Columns: defaultColumns}}.LoadReference(context.Background())
	assert.True(t, errors.Is(err, ddq.ErrReferenceSource))
}
