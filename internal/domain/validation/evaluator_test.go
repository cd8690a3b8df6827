package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/ddq-validator/internal/domain/ddq"
)

func newTestEvaluator(t *testing.T, mutate func(*RuleOptions)) *Evaluator {
	t.Helper()
	opts := DefaultRuleOptions()
	if mutate != nil {
		mutate(&opts)
	}
	cfg, err := opts.Compile()
	require.NoError(t, err)
	return NewEvaluator(cfg)
}

func TestEvaluateEmptyRegardlessOfContext(t *testing.T) {
	ev := newTestEvaluator(t, nil)
	for _, q := range []string{"", "Please describe your governance.", "Organisation"} {
		for _, e := range []string{"", "All directors disclosed", "[TEXT]"} {
			for _, a := range []string{"", "   ", "\n\t"} {
				res := ev.Evaluate(ddq.QuestionRow{QuestionText: q, AnswerText: a, ExpectedText: e})
				assert.Equal(t, ddq.StatusFlagged, res.Status)
				assert.Equal(t, ddq.KindEmpty, res.Kind)
			}
		}
	}
}

func TestEvaluatePriority(t *testing.T) {
	ev := newTestEvaluator(t, nil)

	// placeholder and too-short both fire
	res := ev.Evaluate(ddq.QuestionRow{QuestionText: "Please describe the process.", AnswerText: "TBD"})
	assert.Equal(t, ddq.KindPlaceholder, res.Kind)
	assert.Equal(t, ddq.StatusFlagged, res.Status)

	// too-short beats cross-reference
	res = ev.Evaluate(ddq.QuestionRow{QuestionText: "Please describe the process.", AnswerText: "see 4.1.9"})
	assert.Equal(t, ddq.KindTooShort, res.Kind)

	// cross-reference alone
	res = ev.Evaluate(ddq.QuestionRow{QuestionText: "Please describe the process.", AnswerText: "Please refer to section 4.1.9 of our compliance manual"})
	assert.Equal(t, ddq.KindCrossReference, res.Kind)
	assert.Equal(t, ddq.StatusFlagged, res.Status)
	assert.Contains(t, res.Reason, "refer to section")
}

func TestEvaluateOK(t *testing.T) {
	ev := newTestEvaluator(t, nil)
	res := ev.Evaluate(ddq.QuestionRow{QuestionText: "Do you have a compliance officer?", AnswerText: "Yes"})
	assert.Equal(t, ddq.StatusOK, res.Status)
	assert.Equal(t, ddq.KindOK, res.Kind)
	assert.Empty(t, res.Reason)
}

func TestEvaluateCrossReferencePolicyOK(t *testing.T) {
	ev := newTestEvaluator(t, func(o *RuleOptions) { o.CrossReferencePolicy = "ok" })
	res := ev.Evaluate(ddq.QuestionRow{AnswerText: "See attached org chart"})
	assert.Equal(t, ddq.StatusOK, res.Status)
	assert.Equal(t, ddq.KindCrossReference, res.Kind)
	assert.NotEmpty(t, res.Reason)

	// stronger findings are unaffected by the policy
	res = ev.Evaluate(ddq.QuestionRow{AnswerText: "n/a"})
	assert.Equal(t, ddq.StatusFlagged, res.Status)
}

func TestEvaluateModelAnswerForbidsReference(t *testing.T) {
	ev := newTestEvaluator(t, func(o *RuleOptions) { o.CrossReferencePolicy = "ok" })
	res := ev.Evaluate(ddq.QuestionRow{
		QuestionText: "Outline the investment process.",
		AnswerText:   "Please refer to the attached investment manual for all details.",
		ExpectedText: "Reference to another document is not acceptable.",
	})
	assert.Equal(t, ddq.StatusFlagged, res.Status, "policy ok cannot accept what the model answer forbids")
	assert.Equal(t, ddq.KindCrossReference, res.Kind)
	assert.True(t, res.ForbiddenByModel)
}

func TestEvaluateRefusal(t *testing.T) {
	ev := newTestEvaluator(t, nil)
	res := ev.Evaluate(ddq.QuestionRow{
		QuestionText: "Name your auditor.",
		AnswerText:   "We decline to disclose our auditor.",
		ExpectedText: "Refusal is not acceptable.",
	})
	assert.Equal(t, ddq.StatusFlagged, res.Status)
	assert.Equal(t, ddq.KindPlaceholder, res.Kind)
	assert.Contains(t, res.Reason, "decline")

	res = ev.Evaluate(ddq.QuestionRow{QuestionText: "Name your auditor.", AnswerText: "We decline to disclose our auditor."})
	assert.Equal(t, ddq.StatusOK, res.Status, "refusal words alone are fine without the model answer marker")
}

func TestEvaluateExtractionErrorIsSkipped(t *testing.T) {
	ev := newTestEvaluator(t, nil)
	res := ev.Evaluate(ddq.QuestionRow{Sheet: "S", RowIndex: 4, ExtractErr: errors.New("cell C4 holds #REF!")})
	assert.Equal(t, ddq.StatusSkipped, res.Status)
	assert.Contains(t, res.Reason, "#REF!")
	assert.Empty(t, res.Kind)
}

func TestEvaluateGuidanceRows(t *testing.T) {
	note := ddq.QuestionRow{QuestionText: "Prozesse", ExpectedText: "Please note: the following section is informational"}
	heading := ddq.QuestionRow{QuestionText: "Governance"}

	off := newTestEvaluator(t, nil)
	assert.Equal(t, ddq.StatusFlagged, off.Evaluate(note).Status)
	assert.Equal(t, ddq.StatusFlagged, off.Evaluate(heading).Status)

	on := newTestEvaluator(t, func(o *RuleOptions) { o.SkipGuidanceRows = true })
	assert.Equal(t, ddq.StatusSkipped, on.Evaluate(note).Status)
	assert.Equal(t, ddq.StatusSkipped, on.Evaluate(heading).Status)

	// a real question stays in scope
	q := ddq.QuestionRow{QuestionID: "1.1", QuestionText: "Governance", ExpectedText: "All directors disclosed"}
	assert.Equal(t, ddq.StatusFlagged, on.Evaluate(q).Status)
}

func TestSafeEvaluateReportsRuleDefect(t *testing.T) {
	cfg := DefaultRuleOptions().MustCompile()
	cfg.TooShort.Classifier = ClassifierFunc(func(NormalizedRow) bool { panic("boom") })
	ev := NewEvaluator(cfg)

	_, err := ev.SafeEvaluate(ddq.QuestionRow{Sheet: "S", RowIndex: 2, AnswerText: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ddq.ErrRuleDefect))
	assert.Contains(t, err.Error(), "row=2")
}

func TestEvaluateEndToEndScenario(t *testing.T) {
	ev := newTestEvaluator(t, nil)
	rows := []ddq.QuestionRow{
		{Sheet: "Directors", RowIndex: 1, AnswerText: "", ExpectedText: "All directors disclosed"},
		{Sheet: "Directors", RowIndex: 2, AnswerText: "See attached org chart", ExpectedText: "List of directors"},
	}

	agg := NewAggregator()
	for i, r := range rows {
		agg.Add(i, ev.Evaluate(r))
	}
	rep := agg.Finalize()

	require.Len(t, rep.Rows, 2)
	assert.Equal(t, ddq.StatusFlagged, rep.Rows[0].Status)
	assert.Equal(t, ddq.KindEmpty, rep.Rows[0].Kind)
	assert.Equal(t, ddq.StatusFlagged, rep.Rows[1].Status)
	assert.Equal(t, ddq.KindCrossReference, rep.Rows[1].Kind)
	assert.Equal(t, ddq.Summary{TotalRows: 2, TotalFlagged: 2, ByStatus: map[string]int{"FLAGGED": 2}}, rep.Summary)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	ev := newTestEvaluator(t, nil)
	r := ddq.QuestionRow{QuestionText: "Please describe.", AnswerText: "siehe Anhang 3"}
	assert.Equal(t, ev.Evaluate(r), ev.Evaluate(r))
}
