package post

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/a-h/respond"
	"github.com/cloudhubibi/gtmchat/models"
	"github.com/tmc/langchaingo/llms"
)

const (
	DefaultModel         = "gpt-4o-mini"
	DefaultMaxTokens     = 500
	DefaultTemperature   = 0.7
	DefaultFallbackReply = "I'm here to help with your GTM strategy."
)

const (
	errMessageRequired = "Message required"
	errUpstream        = "Failed to get AI response. Please try again."
	errRateLimited     = "The AI service is receiving too many requests. Please try again shortly."
)

type Options struct {
	// SystemPrompt is sent as the first turn of every request.
	SystemPrompt string
	Model        string
	MaxTokens    int
	// Temperature is sent as given. Zero is a valid temperature, so it has
	// no default; use DefaultTemperature for the usual setting.
	Temperature float64
	// FallbackReply is returned when the model produces no text, and as
	// the message of every failed response.
	FallbackReply string
}

func New(log *slog.Logger, llm llms.Model, opts Options) Handler {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.FallbackReply == "" {
		opts.FallbackReply = DefaultFallbackReply
	}
	return Handler{
		log:  log,
		llm:  llm,
		opts: opts,
	}
}

type Handler struct {
	log  *slog.Logger
	llm  llms.Model
	opts Options
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if p := recover(); p != nil {
			h.log.Error("panic while generating content", slog.Any("panic", p))
			h.fail(w, errUpstream, http.StatusInternalServerError)
		}
	}()

	var req models.ChatPostRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		h.log.Error("failed to decode body", slog.Any("error", err))
		h.fail(w, "failed to decode body", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		h.fail(w, errMessageRequired, http.StatusBadRequest)
		return
	}

	msgs, err := h.messages(req)
	if err != nil {
		h.log.Warn("invalid conversation", slog.Any("error", err))
		h.fail(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.log.Debug("generating content", slog.Int("turns", len(msgs)))

	resp, err := h.llm.GenerateContent(r.Context(), msgs,
		llms.WithModel(h.opts.Model),
		llms.WithMaxTokens(h.opts.MaxTokens),
		llms.WithTemperature(h.opts.Temperature),
	)
	if err != nil {
		if IsRateLimited(err) {
			h.log.Warn("upstream rate limited", slog.Any("error", err))
			h.fail(w, errRateLimited, http.StatusTooManyRequests)
			return
		}
		h.log.Error("failed to generate content", slog.Any("error", err))
		h.fail(w, errUpstream, http.StatusInternalServerError)
		return
	}

	respond.WithJSON(w, models.ChatPostResponse{
		Message: h.reply(resp),
		Success: true,
	}, http.StatusOK)
}

// messages builds the system turn, then the caller's history in order,
// then the new user message.
func (h Handler) messages(req models.ChatPostRequest) (msgs []llms.MessageContent, err error) {
	msgs = make([]llms.MessageContent, 0, len(req.Conversation)+2)
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, h.opts.SystemPrompt))
	for i, t := range req.Conversation {
		mt, ok := roleToMessageType[t.Role]
		if !ok {
			return nil, fmt.Errorf("conversation[%d]: unknown role %q", i, t.Role)
		}
		msgs = append(msgs, llms.TextParts(mt, t.Content))
	}
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, req.Message))
	return msgs, nil
}

var roleToMessageType = map[models.Role]llms.ChatMessageType{
	models.RoleSystem:    llms.ChatMessageTypeSystem,
	models.RoleUser:      llms.ChatMessageTypeHuman,
	models.RoleAssistant: llms.ChatMessageTypeAI,
}

func (h Handler) reply(resp *llms.ContentResponse) string {
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return h.opts.FallbackReply
	}
	if resp.Choices[0].Content == "" {
		return h.opts.FallbackReply
	}
	return resp.Choices[0].Content
}

func (h Handler) fail(w http.ResponseWriter, cause string, status int) {
	respond.WithJSON(w, models.ChatPostResponse{
		Message: h.opts.FallbackReply,
		Success: false,
		Error:   cause,
	}, status)
}
