package validation

import (
	"regexp"
	"strings"
)

// QuestionClassifier decides whether a question expects a descriptive
// (free text) answer rather than a yes/no or numeric one.
type QuestionClassifier interface {
	Descriptive(r NormalizedRow) bool
}

// ClassifierFunc adapts a plain function.
type ClassifierFunc func(r NormalizedRow) bool

func (f ClassifierFunc) Descriptive(r NormalizedRow) bool { return f(r) }

// PatternClassifier classifies by question text patterns, markers in the
// model answer (e.g. "[text]") and explicitly listed question ids.
// An id entry also covers its children: "2.2" matches "2.2.1".
type PatternClassifier struct {
	QuestionPatterns []*regexp.Regexp
	ExpectedMarkers  []string
	QuestionIDs      []string
}

func (c PatternClassifier) Descriptive(r NormalizedRow) bool {
	for _, p := range c.QuestionPatterns {
		if p.MatchString(r.Question.Folded) {
			return true
		}
	}
	for _, m := range c.ExpectedMarkers {
		if m != "" && strings.Contains(r.Expected.Folded, strings.ToLower(m)) {
			return true
		}
	}
	id := r.ID.Folded
	if id == "" {
		return false
	}
	for _, want := range c.QuestionIDs {
		want = strings.ToLower(strings.TrimSpace(want))
		if want == "" {
			continue
		}
		if id == want || strings.HasPrefix(id, strings.TrimSuffix(want, ".")+".") {
			return true
		}
	}
	return false
}
