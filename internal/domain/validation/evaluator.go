package validation

import (
	"fmt"
	"strings"

	"github.com/bryanwahyu/ddq-validator/internal/domain/ddq"
)

// Evaluator runs the rule set against one row at a time.
// It holds no mutable state and is safe for concurrent use.
type Evaluator struct {
	cfg   RuleConfig
	rules []Rule
}

// NewEvaluator wires the rules in priority order.
func NewEvaluator(cfg RuleConfig) *Evaluator {
	return &Evaluator{
		cfg: cfg,
		rules: []Rule{
			EmptyRule{},
			cfg.Placeholder,
			cfg.Refusal,
			cfg.TooShort,
			cfg.CrossReference,
		},
	}
}

// Rules returns the configured rules, strongest first.
func (e *Evaluator) Rules() []Rule { return e.rules }

// Evaluate resolves a row to a single status. Absent fields count as empty text.
func (e *Evaluator) Evaluate(row ddq.QuestionRow) ddq.RowResult {
	if row.ExtractErr != nil {
		return ddq.RowResult{
			Row:    row,
			Status: ddq.StatusSkipped,
			Reason: fmt.Sprintf("Extraction failed: %v", row.ExtractErr),
		}
	}

	nr := NormalizeRow(row)
	if e.cfg.SkipGuidanceRows && e.isGuidance(nr) {
		return ddq.RowResult{
			Row:    row,
			Status: ddq.StatusSkipped,
			Reason: "Row is not a question or validation rule does not apply.",
		}
	}

	var best *ddq.Finding
	for _, rule := range e.rules {
		f := rule.Check(nr)
		if f == nil {
			continue
		}
		if best == nil || f.Kind.Priority() < best.Kind.Priority() {
			best = f
		}
	}

	if best == nil {
		return ddq.RowResult{Row: row, Status: ddq.StatusOK, Kind: ddq.KindOK}
	}
	res := ddq.RowResult{
		Row:              row,
		Status:           ddq.StatusFlagged,
		Kind:             best.Kind,
		Reason:           best.Detail,
		ForbiddenByModel: best.ForbiddenByModel,
	}
	if best.Kind == ddq.KindCrossReference && !best.ForbiddenByModel && e.cfg.CrossReferencePolicy == CrossReferenceOK {
		res.Status = ddq.StatusOK
	}
	return res
}

// SafeEvaluate is Evaluate with a rule panic turned into ErrRuleDefect.
func (e *Evaluator) SafeEvaluate(row ddq.QuestionRow) (res ddq.RowResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: sheet=%s row=%d: %v", ddq.ErrRuleDefect, row.Sheet, row.RowIndex, p)
		}
	}()
	return e.Evaluate(row), nil
}

// isGuidance spots note lines and bare section headings that are not meant to be answered.
func (e *Evaluator) isGuidance(r NormalizedRow) bool {
	for _, p := range e.cfg.GuidancePrefixes {
		if strings.HasPrefix(r.Expected.Folded, p) {
			return true
		}
	}
	heading := r.Answer.Empty() && r.Expected.Empty() && r.ID.Empty() &&
		!r.Question.Empty() && !strings.Contains(r.Question.Folded, "?") && r.Question.Words() <= 3
	return heading
}
