package validation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/bryanwahyu/ddq-validator/internal/domain/ddq"
)

// Rule is one deterministic check. Check must be total over normalized input
// and must not look at any other rule's outcome.
type Rule interface {
	Name() string
	Check(r NormalizedRow) *ddq.Finding
}

// EmptyRule fires when the answer is empty after normalization.
type EmptyRule struct{}

func (EmptyRule) Name() string { return "empty" }

func (EmptyRule) Check(r NormalizedRow) *ddq.Finding {
	if !r.Answer.Empty() {
		return nil
	}
	return &ddq.Finding{Kind: ddq.KindEmpty, Detail: "Answer is empty."}
}

// PlaceholderRule fires when the answer consists only of forbidden tokens
// (separated by whitespace, punctuation or symbols), or has no letter or digit at all.
// A token inside a longer sentence does not fire.
type PlaceholderRule struct {
	only *regexp.Regexp
}

const tokenSep = `[\s\p{P}\p{S}]`

// NewPlaceholderRule builds the whole-answer matcher from tokens.
func NewPlaceholderRule(tokens []string) PlaceholderRule {
	alts := make([]string, 0, len(tokens))
	seen := map[string]bool{}
	for _, tok := range tokens {
		t := Normalize(tok).Folded
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		alts = append(alts, regexp.QuoteMeta(t))
	}
	if len(alts) == 0 {
		return PlaceholderRule{}
	}
	// longest first so "not applicable" is not shadowed by a shorter prefix
	sort.SliceStable(alts, func(i, j int) bool { return len(alts[i]) > len(alts[j]) })
	tok := "(?:" + strings.Join(alts, "|") + ")"
	pattern := `^` + tokenSep + `*(` + tok + `)(?:` + tokenSep + `+` + tok + `)*` + tokenSep + `*$`
	return PlaceholderRule{only: regexp.MustCompile(pattern)}
}

func (PlaceholderRule) Name() string { return "placeholder" }

func (p PlaceholderRule) Check(r NormalizedRow) *ddq.Finding {
	a := r.Answer.Folded
	if a == "" {
		return nil
	}
	if p.only != nil {
		if m := p.only.FindStringSubmatch(a); m != nil {
			return &ddq.Finding{
				Kind:   ddq.KindPlaceholder,
				Detail: fmt.Sprintf("Answer contains forbidden placeholder: '%s'.", m[1]),
			}
		}
	}
	if !hasLetterOrDigit(a) {
		return &ddq.Finding{
			Kind:   ddq.KindPlaceholder,
			Detail: fmt.Sprintf("Answer has no letters or digits: '%s'.", r.Answer.Display),
		}
	}
	return nil
}

func hasLetterOrDigit(s string) bool {
	for _, c := range s {
		if unicode.IsLetter(c) || unicode.IsDigit(c) {
			return true
		}
	}
	return false
}

// TooShortRule fires when a descriptive question got a short answer.
type TooShortRule struct {
	MinLength  int
	MinWords   int
	Classifier QuestionClassifier
}

func (TooShortRule) Name() string { return "too_short" }

func (t TooShortRule) Check(r NormalizedRow) *ddq.Finding {
	if t.Classifier == nil || !t.Classifier.Descriptive(r) {
		return nil
	}
	if t.MinLength > 0 && r.Answer.Len() < t.MinLength {
		return &ddq.Finding{
			Kind: ddq.KindTooShort,
			Detail: fmt.Sprintf("Answer is too short for a descriptive question (%d chars, min %d).",
				r.Answer.Len(), t.MinLength),
		}
	}
	if t.MinWords > 0 && r.Answer.Words() < t.MinWords {
		return &ddq.Finding{
			Kind: ddq.KindTooShort,
			Detail: fmt.Sprintf("Answer is too short for a descriptive question (%d words, min %d).",
				r.Answer.Words(), t.MinWords),
		}
	}
	return nil
}

// CrossReferenceRule fires when the answer defers to another document or section.
// When the model answer carries one of ForbidMarkers the finding is marked
// ForbiddenByModel and no policy can accept it.
type CrossReferenceRule struct {
	Patterns      []*regexp.Regexp
	ForbidMarkers []string
}

func (CrossReferenceRule) Name() string { return "cross_reference" }

func (c CrossReferenceRule) Check(r NormalizedRow) *ddq.Finding {
	if r.Answer.Empty() {
		return nil
	}
	for _, p := range c.Patterns {
		if m := p.FindString(r.Answer.Folded); m != "" {
			if containsAny(r.Expected.Folded, c.ForbidMarkers) {
				return &ddq.Finding{
					Kind:             ddq.KindCrossReference,
					Detail:           fmt.Sprintf("Reference-only answers are not acceptable for this question ('%s'); provide substantive text.", m),
					ForbiddenByModel: true,
				}
			}
			return &ddq.Finding{
				Kind:   ddq.KindCrossReference,
				Detail: fmt.Sprintf("Answer references another document/section ('%s'); requires document evidence.", m),
			}
		}
	}
	return nil
}

// RefusalRule fires when the answer declines to respond although the model
// answer says a refusal is not acceptable. It surfaces as a placeholder.
type RefusalRule struct {
	Markers  []string
	Patterns []*regexp.Regexp
}

func (RefusalRule) Name() string { return "refusal" }

func (f RefusalRule) Check(r NormalizedRow) *ddq.Finding {
	if r.Answer.Empty() || !containsAny(r.Expected.Folded, f.Markers) {
		return nil
	}
	for _, p := range f.Patterns {
		if m := p.FindString(r.Answer.Folded); m != "" {
			return &ddq.Finding{
				Kind:             ddq.KindPlaceholder,
				Detail:           fmt.Sprintf("Refusal-style answers are not acceptable for this question ('%s').", m),
				ForbiddenByModel: true,
			}
		}
	}
	return nil
}

// containsAny reports whether folded text holds one of the markers.
func containsAny(folded string, markers []string) bool {
	if folded == "" {
		return false
	}
	for _, m := range markers {
		if m != "" && strings.Contains(folded, m) {
			return true
		}
	}
	return false
}
