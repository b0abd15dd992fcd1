package post

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudhubibi/gtmchat/models"
	"github.com/google/go-cmp/cmp"
	"github.com/tmc/langchaingo/llms"
)

type stubLLM struct {
	calls  [][]llms.MessageContent
	opts   llms.CallOptions
	resp   *llms.ContentResponse
	err    error
	panics bool
}

func (s *stubLLM) GenerateContent(ctx context.Context, msgs []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	s.calls = append(s.calls, msgs)
	for _, o := range options {
		o(&s.opts)
	}
	if s.panics {
		panic("boom")
	}
	return s.resp, s.err
}

func (s *stubLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

func textResponse(s string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: s}},
	}
}

type rateLimitError struct{}

func (rateLimitError) Error() string { return "slow down" }
func (rateLimitError) RateLimited() bool { return true }

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func post(t *testing.T, h http.Handler, body string) (int, models.ChatPostResponse) {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	var resp models.ChatPostResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return w.Code, resp
}

func TestHandler(t *testing.T) {
	tests := []struct {
		name           string
		llm            *stubLLM
		body           string
		expectedStatus int
		expected       models.ChatPostResponse
		expectedCalls  int
	}{
		{
			name:           "the first choice is returned",
			llm:            &stubLLM{resp: textResponse("Sure, what's your company name?")},
			body:           `{"message":"Book Consultation"}`,
			expectedStatus: http.StatusOK,
			expected:       models.ChatPostResponse{Message: "Sure, what's your company name?", Success: true},
			expectedCalls:  1,
		},
		{
			name:           "empty choices use the fallback reply",
			llm:            &stubLLM{resp: &llms.ContentResponse{}},
			body:           `{"message":"hi"}`,
			expectedStatus: http.StatusOK,
			expected:       models.ChatPostResponse{Message: DefaultFallbackReply, Success: true},
			expectedCalls:  1,
		},
		{
			name:           "empty text uses the fallback reply",
			llm:            &stubLLM{resp: textResponse("")},
			body:           `{"message":"hi"}`,
			expectedStatus: http.StatusOK,
			expected:       models.ChatPostResponse{Message: DefaultFallbackReply, Success: true},
			expectedCalls:  1,
		},
		{
			name:           "a nil response uses the fallback reply",
			llm:            &stubLLM{},
			body:           `{"message":"hi"}`,
			expectedStatus: http.StatusOK,
			expected:       models.ChatPostResponse{Message: DefaultFallbackReply, Success: true},
			expectedCalls:  1,
		},
		{
			name:           "a missing message is rejected without calling the model",
			llm:            &stubLLM{resp: textResponse("unused")},
			body:           `{"conversation":[]}`,
			expectedStatus: http.StatusBadRequest,
			expected:       models.ChatPostResponse{Message: DefaultFallbackReply, Error: errMessageRequired},
		},
		{
			name:           "an empty message is rejected without calling the model",
			llm:            &stubLLM{resp: textResponse("unused")},
			body:           `{"message":""}`,
			expectedStatus: http.StatusBadRequest,
			expected:       models.ChatPostResponse{Message: DefaultFallbackReply, Error: errMessageRequired},
		},
		{
			name:           "invalid JSON is rejected without calling the model",
			llm:            &stubLLM{resp: textResponse("unused")},
			body:           `{`,
			expectedStatus: http.StatusBadRequest,
			expected:       models.ChatPostResponse{Message: DefaultFallbackReply, Error: "failed to decode body"},
		},
		{
			name:           "unknown roles are rejected without calling the model",
			llm:            &stubLLM{resp: textResponse("unused")},
			body:           `{"message":"hi","conversation":[{"role":"wizard","content":"x"}]}`,
			expectedStatus: http.StatusBadRequest,
			expected:       models.ChatPostResponse{Message: DefaultFallbackReply, Error: `conversation[0]: unknown role "wizard"`},
		},
		{
			name:           "rate limit errors return 429",
			llm:            &stubLLM{err: rateLimitError{}},
			body:           `{"message":"hi"}`,
			expectedStatus: http.StatusTooManyRequests,
			expected:       models.ChatPostResponse{Message: DefaultFallbackReply, Error: errRateLimited},
			expectedCalls:  1,
		},
		{
			name:           "provider status codes of 429 return 429",
			llm:            &stubLLM{err: errors.New("API returned unexpected status code: 429: quota exceeded")},
			body:           `{"message":"hi"}`,
			expectedStatus: http.StatusTooManyRequests,
			expected:       models.ChatPostResponse{Message: DefaultFallbackReply, Error: errRateLimited},
			expectedCalls:  1,
		},
		{
			name:           "other errors return 500",
			llm:            &stubLLM{err: errors.New("connection refused")},
			body:           `{"message":"hi"}`,
			expectedStatus: http.StatusInternalServerError,
			expected:       models.ChatPostResponse{Message: DefaultFallbackReply, Error: errUpstream},
			expectedCalls:  1,
		},
		{
			name:           "panics in the model return 500",
			llm:            &stubLLM{panics: true},
			body:           `{"message":"hi"}`,
			expectedStatus: http.StatusInternalServerError,
			expected:       models.ChatPostResponse{Message: DefaultFallbackReply, Error: errUpstream},
			expectedCalls:  1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(discard, tt.llm, Options{SystemPrompt: "system"})
			status, resp := post(t, h, tt.body)
			if status != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, status)
			}
			if diff := cmp.Diff(tt.expected, resp); diff != "" {
				t.Error(diff)
			}
			if len(tt.llm.calls) != tt.expectedCalls {
				t.Errorf("expected %d calls to the model, got %d", tt.expectedCalls, len(tt.llm.calls))
			}
		})
	}
}

func TestHandlerMessageConstruction(t *testing.T) {
	llm := &stubLLM{resp: textResponse("ok")}
	h := New(discard, llm, Options{SystemPrompt: "You are a GTM consultant."})

	status, _ := post(t, h, `{
		"message": "and pricing?",
		"conversation": [
			{"role": "user", "content": "hello"},
			{"role": "assistant", "content": "hi there"}
		]
	}`)
	if status != http.StatusOK {
		t.Fatalf("expected status 200, got %d", status)
	}
	if len(llm.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(llm.calls))
	}

	expected := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, "You are a GTM consultant."),
		llms.TextParts(llms.ChatMessageTypeHuman, "hello"),
		llms.TextParts(llms.ChatMessageTypeAI, "hi there"),
		llms.TextParts(llms.ChatMessageTypeHuman, "and pricing?"),
	}
	if diff := cmp.Diff(expected, llm.calls[0]); diff != "" {
		t.Error(diff)
	}
}

func TestHandlerCallOptions(t *testing.T) {
	llm := &stubLLM{resp: textResponse("ok")}
	h := New(discard, llm, Options{Temperature: DefaultTemperature})
	post(t, h, `{"message":"hi"}`)

	if llm.opts.Model != DefaultModel {
		t.Errorf("expected model %q, got %q", DefaultModel, llm.opts.Model)
	}
	if llm.opts.MaxTokens != DefaultMaxTokens {
		t.Errorf("expected max tokens %d, got %d", DefaultMaxTokens, llm.opts.MaxTokens)
	}
	if llm.opts.Temperature != DefaultTemperature {
		t.Errorf("expected temperature %v, got %v", DefaultTemperature, llm.opts.Temperature)
	}
}

func TestHandlerSendsZeroTemperature(t *testing.T) {
	llm := &stubLLM{resp: textResponse("ok")}
	llm.opts.Temperature = 1
	h := New(discard, llm, Options{})
	post(t, h, `{"message":"hi"}`)

	if llm.opts.Temperature != 0 {
		t.Errorf("expected a zero temperature to be sent, got %v", llm.opts.Temperature)
	}
}

func TestHandlerIsStateless(t *testing.T) {
	llm := &stubLLM{resp: textResponse("ok")}
	h := New(discard, llm, Options{SystemPrompt: "system"})
	post(t, h, `{"message":"first"}`)
	post(t, h, `{"message":"second"}`)

	expected := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, "system"),
		llms.TextParts(llms.ChatMessageTypeHuman, "second"),
	}
	if diff := cmp.Diff(expected, llm.calls[1]); diff != "" {
		t.Errorf("second request carried state from the first: %v", diff)
	}
}
