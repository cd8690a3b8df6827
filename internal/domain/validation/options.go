package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// CrossReferencePolicy decides how a row whose strongest finding is a
// cross-reference resolves.
type CrossReferencePolicy string

const (
	// CrossReferenceFlag keeps such rows FLAGGED, since the deferred evidence cannot be checked here.
	CrossReferenceFlag CrossReferencePolicy = "flag"
	// CrossReferenceOK accepts such rows as OK; the detail stays as an informational reason.
	CrossReferenceOK CrossReferencePolicy = "ok"
)

var (
	DefaultForbiddenTokens = []string{
		"n/a", "n.a.", "n.a", "na", "not applicable",
		"tbd", "to be defined", "to be determined", "later", "unknown",
		"k.a.", "k.a", "keine angabe", "nicht zutreffend", "entfällt",
		"folgt", "wird nachgereicht", "später",
	}

	DefaultCrossReferencePatterns = []string{
		`\b(?:see|refer(?:s|red|ring)?\s+to|please\s+find|cf\.)(?:\s+\S+){0,2}?\s+(?:the\s+)?(?:attach(?:ed|ments?)|enclos(?:ed|ure)|appendix|annex|section|chapter|exhibit|schedule|document(?:ation)?)\b`,
		`\b(?:siehe|vgl\.|verweis(?:e|en)?\s+auf)(?:\s+\S+){0,2}?\s+(?:anhang|anlage|abschnitt|kapitel|ziffer|dokument|beigefügt)`,
		`\b(?:section|chapter|abschnitt|kapitel|ziffer)\s*\d+(?:\.\d+)*\b`,
		`\b\d+\.\d+\.\d+(?:\.\d+)*\b`,
	}

	DefaultDescriptiveQuestionPatterns = []string{
		`\b(?:describe|explain|elaborate|outline|detail|summari[sz]e|provide\s+(?:a\s+)?(?:details|description|overview))\b`,
		`\b(?:beschreiben|beschreibung|erläutern|erläuterung|detaillieren|darlegen|darstellen)\b`,
	}

	DefaultDescriptiveExpectedMarkers = []string{"[text]"}

	DefaultReferenceForbiddenMarkers = []string{
		"reference to a document is not acceptable",
		"reference to another document is not acceptable",
		"only reference to another document is also not acceptable",
	}

	DefaultRefusalForbiddenMarkers = []string{
		"refusal is not acceptable",
	}

	DefaultRefusalPatterns = []string{
		`\b(?:refusal|refuse[sd]?|declined?|not to answer|no answer)\b`,
	}

	DefaultGuidancePrefixes = []string{
		"please note", "bitte beachten", "hinweis", "note:", "the following documents",
	}
)

// RuleOptions is the data form of the rule set, as it appears in configuration.
type RuleOptions struct {
	ForbiddenTokens             []string `yaml:"forbidden_tokens"`
	CrossReferencePatterns      []string `yaml:"cross_reference_patterns"`
	MinAnswerLength             int      `yaml:"min_answer_length"`
	MinAnswerWords              int      `yaml:"min_answer_words"`
	DescriptiveQuestionPatterns []string `yaml:"descriptive_question_patterns"`
	DescriptiveExpectedMarkers  []string `yaml:"descriptive_expected_markers"`
	DescriptiveQuestionIDs      []string `yaml:"descriptive_question_ids"`
	CrossReferencePolicy        string   `yaml:"cross_reference_policy"`
	SkipGuidanceRows            bool     `yaml:"skip_guidance_rows"`
	GuidancePrefixes            []string `yaml:"guidance_prefixes"`

	// Phrases in a model answer that rule out reference-only or refusal answers.
	ReferenceForbiddenMarkers []string `yaml:"reference_forbidden_markers"`
	RefusalForbiddenMarkers   []string `yaml:"refusal_forbidden_markers"`
	RefusalPatterns           []string `yaml:"refusal_patterns"`
}

// DefaultRuleOptions returns the built-in English/German rule set.
func DefaultRuleOptions() RuleOptions {
	return RuleOptions{
		ForbiddenTokens:             append([]string(nil), DefaultForbiddenTokens...),
		CrossReferencePatterns:      append([]string(nil), DefaultCrossReferencePatterns...),
		MinAnswerLength:             20,
		DescriptiveQuestionPatterns: append([]string(nil), DefaultDescriptiveQuestionPatterns...),
		DescriptiveExpectedMarkers:  append([]string(nil), DefaultDescriptiveExpectedMarkers...),
		CrossReferencePolicy:        string(CrossReferenceFlag),
		GuidancePrefixes:            append([]string(nil), DefaultGuidancePrefixes...),
		ReferenceForbiddenMarkers:   append([]string(nil), DefaultReferenceForbiddenMarkers...),
		RefusalForbiddenMarkers:     append([]string(nil), DefaultRefusalForbiddenMarkers...),
		RefusalPatterns:             append([]string(nil), DefaultRefusalPatterns...),
	}
}

// RuleConfig is the compiled rule set.
type RuleConfig struct {
	Placeholder          PlaceholderRule
	Refusal              RefusalRule
	TooShort             TooShortRule
	CrossReference       CrossReferenceRule
	CrossReferencePolicy CrossReferencePolicy
	SkipGuidanceRows     bool
	GuidancePrefixes     []string
}

// Compile validates the options and compiles every pattern once.
func (o RuleOptions) Compile() (RuleConfig, error) {
	policy := CrossReferencePolicy(strings.ToLower(strings.TrimSpace(o.CrossReferencePolicy)))
	switch policy {
	case "":
		policy = CrossReferenceFlag
	case CrossReferenceFlag, CrossReferenceOK:
	default:
		return RuleConfig{}, fmt.Errorf("cross_reference_policy: unknown value %q (allowed: flag, ok)", o.CrossReferencePolicy)
	}
	if o.MinAnswerLength < 0 || o.MinAnswerWords < 0 {
		return RuleConfig{}, fmt.Errorf("min_answer_length and min_answer_words must not be negative")
	}

	xref, err := compileAll("cross_reference_patterns", o.CrossReferencePatterns)
	if err != nil {
		return RuleConfig{}, err
	}
	desc, err := compileAll("descriptive_question_patterns", o.DescriptiveQuestionPatterns)
	if err != nil {
		return RuleConfig{}, err
	}

	refusal, err := compileAll("refusal_patterns", o.RefusalPatterns)
	if err != nil {
		return RuleConfig{}, err
	}

	return RuleConfig{
		Placeholder: NewPlaceholderRule(o.ForbiddenTokens),
		Refusal: RefusalRule{
			Markers:  foldAll(o.RefusalForbiddenMarkers),
			Patterns: refusal,
		},
		TooShort: TooShortRule{
			MinLength: o.MinAnswerLength,
			MinWords:  o.MinAnswerWords,
			Classifier: PatternClassifier{
				QuestionPatterns: desc,
				ExpectedMarkers:  o.DescriptiveExpectedMarkers,
				QuestionIDs:      o.DescriptiveQuestionIDs,
			},
		},
		CrossReference: CrossReferenceRule{
			Patterns:      xref,
			ForbidMarkers: foldAll(o.ReferenceForbiddenMarkers),
		},
		CrossReferencePolicy: policy,
		SkipGuidanceRows:     o.SkipGuidanceRows,
		GuidancePrefixes:     foldAll(o.GuidancePrefixes),
	}, nil
}

// MustCompile is Compile for options known to be valid, such as the defaults.
func (o RuleOptions) MustCompile() RuleConfig {
	cfg, err := o.Compile()
	if err != nil {
		panic(err)
	}
	return cfg
}

func compileAll(field string, patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for i, p := range patterns {
		if strings.TrimSpace(p) == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", field, i, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func foldAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = Normalize(s).Folded; s != "" {
			out = append(out, s)
		}
	}
	return out
}
