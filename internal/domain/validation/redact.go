package validation

import (
	"regexp"

	"github.com/bryanwahyu/ddq-validator/internal/domain/ddq"
)

const redacted = "[REDACTED]"

var (
	nameLabelRe = regexp.MustCompile(`\b((?i:name|contact|prepared by|author|signed by|signatory|respondent))\b\s*[:\-]\s*[A-Z][a-z]+(?:[\s\-'.][A-Z][a-z]+){0,3}`)
	titleRe     = regexp.MustCompile(`\b(Mr|Ms|Mrs|Dr|Prof)\.?\s+[A-Z][a-z]+(?:[\s\-'.][A-Z][a-z]+){0,3}`)
	byFromRe    = regexp.MustCompile(`\b((?i:by|from|attn|attention))\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+){1,3}`)
)

// RedactNames masks personal names in labelled, titled and "by/from" positions.
func RedactNames(s string) string {
	if s == "" {
		return s
	}
	s = nameLabelRe.ReplaceAllString(s, "${1}: "+redacted)
	s = titleRe.ReplaceAllString(s, "${1} "+redacted)
	s = byFromRe.ReplaceAllString(s, "${1} "+redacted)
	return s
}

// RedactRow returns a copy of row with names masked in every text field.
func RedactRow(row ddq.QuestionRow) ddq.QuestionRow {
	row.QuestionText = RedactNames(row.QuestionText)
	row.AnswerText = RedactNames(row.AnswerText)
	row.ExpectedText = RedactNames(row.ExpectedText)
	return row
}
