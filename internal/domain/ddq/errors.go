package ddq

import "errors"

// Run-level failures. The caller sees one of these instead of a report.
var (
	ErrWorkbookUnreadable = errors.New("workbook unreadable")
	ErrSheetNotFound      = errors.New("sheet not found")
	ErrInvalidColumns     = errors.New("invalid column mapping")
	ErrNoRows             = errors.New("no rows were extracted")
	ErrReferenceSource    = errors.New("reference source unavailable")

	// ErrRuleDefect means a rule failed on normalized input; the run must stop.
	ErrRuleDefect = errors.New("rule evaluation defect")
)

// Row-level escalation failures. They never abort a run.
var (
	ErrAssessorUnavailable = errors.New("assessor unavailable")
	ErrMalformedVerdict    = errors.New("malformed assessor verdict")
	// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
	ErrQuotaExceeded = errors.New("ai quota exceeded")
)
