package validation

import (
	"strings"
	"unicode/utf8"

	"github.com/bryanwahyu/ddq-validator/internal/domain/ddq"
)

// Text is a cell value prepared for matching.
// Display keeps the original casing; Folded is what rules compare against.
type Text struct {
	Display string
	Folded  string
}

// Normalize trims, collapses whitespace runs and case-folds s.
func Normalize(s string) Text {
	display := strings.Join(strings.Fields(s), " ")
	return Text{Display: display, Folded: strings.ToLower(display)}
}

// Empty reports whether nothing but whitespace was given.
func (t Text) Empty() bool { return t.Folded == "" }

// Len counts characters, not bytes.
func (t Text) Len() int { return utf8.RuneCountInString(t.Folded) }

// Words counts whitespace separated words.
func (t Text) Words() int {
	if t.Folded == "" {
		return 0
	}
	return strings.Count(t.Folded, " ") + 1
}

// NormalizedRow is the input every rule consumes.
type NormalizedRow struct {
	Row      ddq.QuestionRow
	ID       Text
	Question Text
	Answer   Text
	Expected Text
}

// NormalizeRow normalizes all text fields of row.
func NormalizeRow(row ddq.QuestionRow) NormalizedRow {
	return NormalizedRow{
		Row:      row,
		ID:       Normalize(row.QuestionID),
		Question: Normalize(row.QuestionText),
		Answer:   Normalize(row.AnswerText),
		Expected: Normalize(row.ExpectedText),
	}
}
