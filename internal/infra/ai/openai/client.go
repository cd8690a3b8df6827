package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/ddq-validator/internal/domain/ddq"
	"github.com/bryanwahyu/ddq-validator/internal/infra/ai/prompt"
)

const (
	maxTokens    = 2048
	DefaultModel = "gpt-5.2"
)

// Client is the secondary assessor backed by the OpenAI chat completions API.
type Client struct {
	*openai.Client
	Model string
}

func NewClient(apiKey, model string) *Client {
	return NewClientWithConfig(openai.DefaultConfig(apiKey), model)
}

// NewClientWithConfig allows a custom base URL or HTTP client.
func NewClientWithConfig(cfg openai.ClientConfig, model string) *Client {
	return &Client{Client: openai.NewClientWithConfig(cfg), Model: model}
}

// New returns nil when no API key is configured, which leaves escalation disabled.
func New(apiKey, baseURL, model string) ddq.Assessor {
	if strings.TrimSpace(apiKey) == "" {
		return nil
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return NewClientWithConfig(cfg, model)
}

func (c *Client) model() string {
	if c.Model == "" {
		return DefaultModel
	}
	return c.Model
}

// reasoning models (o1/o3/o4/gpt-5*) take MaxCompletionTokens and reject temperature
func isReasoningModel(model string) bool {
	for _, p := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

func (c *Client) request(row ddq.QuestionRow, finding ddq.Finding) openai.ChatCompletionRequest {
	model := c.model()
	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.GetAssessorSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: prompt.GetAssessorUserPrompt(row, finding)},
		},
	}
	if isReasoningModel(model) {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
		req.Temperature = 0
	}
	return req
}

func (c *Client) Assess(ctx context.Context, row ddq.QuestionRow, finding ddq.Finding) (ddq.Verdict, error) {
	resp, err := c.CreateChatCompletion(ctx, c.request(row, finding))
	if err != nil {
		if ctx.Err() != nil {
			return ddq.Verdict{}, ctx.Err()
		}
		if isQuota(err) {
			return ddq.Verdict{}, fmt.Errorf("%w: %v", ddq.ErrQuotaExceeded, err)
		}
		return ddq.Verdict{}, fmt.Errorf("%w: %v", ddq.ErrAssessorUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return ddq.Verdict{}, fmt.Errorf("%w: no choices returned", ddq.ErrMalformedVerdict)
	}

	v, err := prompt.ParseVerdict(resp.Choices[0].Message.Content)
	if err != nil {
		return ddq.Verdict{}, err
	}
	v.Model = c.model()
	return v, nil
}

func isQuota(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.Type == "insufficient_quota"
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}
