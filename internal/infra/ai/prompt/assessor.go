package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bryanwahyu/ddq-validator/internal/domain/ddq"
)

const systemPrompt = "You are an internal due-diligence questionnaire (DDQ) validator. " +
	"Be strict, factual, and concise. Do not cite regulations unless they are explicitly provided in the expected/model text. " +
	"Return ONLY valid JSON matching the requested schema."

// verdict statuses the model may answer with
var verdictStatuses = map[string]bool{
	"OK":             true,
	"INCOMPLETE":     true,
	"REJECTED":       true,
	"NEEDS_EVIDENCE": true,
}

func GetAssessorSystemPrompt() string { return systemPrompt }

type outputSchema struct {
	Status          string   `json:"status"`
	Reason          string   `json:"reason"`
	MissingPoints   []string `json:"missing_points"`
	CustomerRequest string   `json:"customer_request"`
}

type userPrompt struct {
	QuestionID       string       `json:"question_id,omitempty"`
	Question         string       `json:"question"`
	CustomerAnswer   string       `json:"customer_answer"`
	Expected         string       `json:"expected"`
	CurrentStatus    string       `json:"current_status"`
	CurrentReason    string       `json:"current_reason"`
	ForbiddenByModel bool         `json:"forbidden_by_model_answer,omitempty"`
	Task             string       `json:"task"`
	OutputSchema     outputSchema `json:"output_schema"`
}

// GetAssessorUserPrompt renders the row and its rule finding as the JSON task for the model.
func GetAssessorUserPrompt(row ddq.QuestionRow, finding ddq.Finding) string {
	p := userPrompt{
		QuestionID:       row.QuestionID,
		Question:         row.QuestionText,
		CustomerAnswer:   row.AnswerText,
		Expected:         row.ExpectedText,
		CurrentStatus:    string(finding.Kind),
		CurrentReason:    finding.Detail,
		ForbiddenByModel: finding.ForbiddenByModel,
		Task:             "Refine the assessment and suggest what exactly the customer must add/fix.",
		OutputSchema: outputSchema{
			Status:          "OK | INCOMPLETE | REJECTED | NEEDS_EVIDENCE",
			Reason:          "short explanation",
			MissingPoints:   []string{"..."},
			CustomerRequest: "one short instruction to the customer",
		},
	}
	b, _ := json.Marshal(p)
	return string(b)
}

// ParseVerdict decodes the model output. Code fences around the JSON are tolerated.
func ParseVerdict(content string) (ddq.Verdict, error) {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	if start, end := strings.Index(s, "{"), strings.LastIndex(s, "}"); start >= 0 && end > start {
		s = s[start : end+1]
	}

	var out outputSchema
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return ddq.Verdict{}, fmt.Errorf("%w: %v", ddq.ErrMalformedVerdict, err)
	}
	out.Status = strings.ToUpper(strings.TrimSpace(out.Status))
	if !verdictStatuses[out.Status] {
		return ddq.Verdict{}, fmt.Errorf("%w: unknown status %q", ddq.ErrMalformedVerdict, out.Status)
	}
	if strings.TrimSpace(out.Reason) == "" {
		return ddq.Verdict{}, fmt.Errorf("%w: empty reason", ddq.ErrMalformedVerdict)
	}

	v := ddq.Verdict{
		Status:          out.Status,
		Reason:          strings.TrimSpace(out.Reason),
		CustomerRequest: strings.TrimSpace(out.CustomerRequest),
	}
	for _, p := range out.MissingPoints {
		if p = strings.TrimSpace(p); p != "" && p != "..." {
			v.MissingPoints = append(v.MissingPoints, p)
		}
	}
	return v, nil
}
