package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/ddq-validator/internal/domain/ddq"
)

func completion(content string) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	}
}

func newTestClient(t *testing.T, model string, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := openai.DefaultConfig("sk-test")
	cfg.BaseURL = srv.URL + "/v1"
	return NewClientWithConfig(cfg, model)
}

var testRow = ddq.QuestionRow{Sheet: "Directors", RowIndex: 2, AnswerText: "See attached org chart", ExpectedText: "List of directors"}

func TestAssessReturnsVerdict(t *testing.T) {
	var got openai.ChatCompletionRequest
	c := newTestClient(t, "gpt-4o-mini", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion(`{"status":"NEEDS_EVIDENCE","reason":"Org chart not provided.","customer_request":"Upload the org chart."}`))
	})

	v, err := c.Assess(context.Background(), testRow, ddq.Finding{Kind: ddq.KindCrossReference, Detail: "defers"})
	require.NoError(t, err)
	assert.Equal(t, "NEEDS_EVIDENCE", v.Status)
	assert.Equal(t, "Org chart not provided.", v.Reason)
	assert.Equal(t, "gpt-4o-mini", v.Model)

	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, maxTokens, got.MaxTokens)
	assert.Zero(t, got.MaxCompletionTokens)
	require.Len(t, got.Messages, 2)
	assert.Contains(t, got.Messages[1].Content, "See attached org chart")
}

func TestReasoningModelTokenLimit(t *testing.T) {
	c := &Client{Model: "gpt-5.2"}
	req := c.request(testRow, ddq.Finding{})
	assert.Equal(t, maxTokens, req.MaxCompletionTokens)
	assert.Zero(t, req.MaxTokens)

	c.Model = "o3-mini"
	assert.Equal(t, maxTokens, c.request(testRow, ddq.Finding{}).MaxCompletionTokens)

	c.Model = ""
	assert.Equal(t, DefaultModel, c.request(testRow, ddq.Finding{}).Model)
}

func TestAssessErrors(t *testing.T) {
	cases := map[string]struct {
		status int
		body   any
		want   error
	}{
		"quota":     {http.StatusTooManyRequests, map[string]any{"error": map[string]any{"message": "slow down", "type": "insufficient_quota"}}, ddq.ErrQuotaExceeded},
		"server":    {http.StatusInternalServerError, map[string]any{"error": map[string]any{"message": "boom", "type": "server_error"}}, ddq.ErrAssessorUnavailable},
		"non-json":  {http.StatusOK, completion("I think it is fine"), ddq.ErrMalformedVerdict},
		"no choice": {http.StatusOK, map[string]any{"id": "x", "choices": []any{}}, ddq.ErrMalformedVerdict},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, "gpt-4o", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_ = json.NewEncoder(w).Encode(tc.body)
			})
			_, err := c.Assess(context.Background(), testRow, ddq.Finding{})
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestAssessHonoursDeadline(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, "gpt-4o", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Assess(ctx, testRow, ddq.Finding{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewWithoutKeyIsAbsent(t *testing.T) {
	assert.Nil(t, New("", "", "gpt-5.2"))
	assert.Nil(t, New("   ", "", ""))
	assert.NotNil(t, New("sk-test", "http://localhost:1/v1", ""))
}
