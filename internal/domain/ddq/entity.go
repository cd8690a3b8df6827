package ddq

// Status is the final verdict of a row
type Status string

const (
	StatusOK        Status = "OK"
	StatusFlagged   Status = "FLAGGED"
	StatusSkipped   Status = "SKIPPED"
	StatusEscalated Status = "ESCALATED"
)

// Flagged reports whether the status counts towards total_flagged.
func (s Status) Flagged() bool {
	return s == StatusFlagged || s == StatusEscalated
}

// FindingKind enum
type FindingKind string

const (
	KindEmpty          FindingKind = "EMPTY"
	KindPlaceholder    FindingKind = "PLACEHOLDER"
	KindTooShort       FindingKind = "TOO_SHORT"
	KindCrossReference FindingKind = "CROSS_REFERENCE"
	KindOK             FindingKind = "OK"
)

// Priority returns the resolution rank of a kind; lower wins.
func (k FindingKind) Priority() int {
	switch k {
	case KindEmpty:
		return 0
	case KindPlaceholder:
		return 1
	case KindTooShort:
		return 2
	case KindCrossReference:
		return 3
	default:
		return 4
	}
}

// QuestionRow is one (question, answer, model answer) triple from a workbook.
type QuestionRow struct {
	Sheet        string `json:"sheet"`
	RowIndex     int    `json:"row_index"`
	QuestionID   string `json:"question_id"`
	QuestionText string `json:"question_text"`
	AnswerText   string `json:"answer_text"`
	ExpectedText string `json:"expected_text"`

	// ExtractErr is set when the row could be located but not read cleanly.
	ExtractErr error `json:"-"`
}

// Finding value object
type Finding struct {
	Kind   FindingKind `json:"kind"`
	Detail string      `json:"detail"`

	// ForbiddenByModel is set when the model answer itself rules this kind of answer out.
	ForbiddenByModel bool `json:"forbidden_by_model,omitempty"`
}

// Verdict is the structured answer of the secondary assessor.
type Verdict struct {
	Status          string   `json:"status"`
	Reason          string   `json:"reason"`
	MissingPoints   []string `json:"missing_points,omitempty"`
	CustomerRequest string   `json:"customer_request,omitempty"`
	Model           string   `json:"model,omitempty"`
}

// RowResult is the verdict for a single QuestionRow
type RowResult struct {
	Row    QuestionRow `json:"row"`
	Status Status      `json:"status"`
	Reason string      `json:"reason"`

	// Kind of the surfaced finding, empty for SKIPPED rows.
	Kind FindingKind `json:"kind,omitempty"`
	// DeterministicReason keeps the rule reason once an assessor verdict replaced Reason.
	DeterministicReason string   `json:"deterministic_reason,omitempty"`
	ForbiddenByModel    bool     `json:"forbidden_by_model,omitempty"`
	Note                string   `json:"note,omitempty"`
	Verdict             *Verdict `json:"verdict,omitempty"`
}

// Summary aggregate
type Summary struct {
	TotalRows    int            `json:"total_rows"`
	TotalFlagged int            `json:"total_flagged"`
	ByStatus     map[string]int `json:"by_status"`
}

// Report is the ordered outcome of one run.
type Report struct {
	RunID   string      `json:"run_id,omitempty"`
	Rows    []RowResult `json:"report"`
	Summary Summary     `json:"summary"`
	// Partial is set when the run was cancelled before every row was finished.
	Partial bool `json:"partial,omitempty"`
}
