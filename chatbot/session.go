package chatbot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cloudhubibi/gtmchat/models"
)

// FallbackReply is appended in place of an assistant reply when the relay
// call fails for any reason.
const FallbackReply = "I apologize, but I'm having trouble connecting to the chat service."

const TimestampFormat = "15:04"

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrComposing    = errors.New("a reply is already being composed")
)

// Message is an entry in the visible chat log. Messages are never modified
// after they're appended.
type Message struct {
	ID        int
	Text      string
	IsBot     bool
	Timestamp string
	// Options is only set on the welcome message.
	Options []string
}

// Relay is the chat service. client.Client satisfies it.
type Relay interface {
	Health(ctx context.Context) error
	ChatPost(ctx context.Context, req models.ChatPostRequest) (models.ChatPostResponse, error)
}

type Options struct {
	// Script defaults to DefaultScript when it has neither a welcome nor
	// quick replies. A script with a welcome but no quick replies has no
	// menu.
	Script Script
	Log    *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

func New(relay Relay, opts Options) *Session {
	if opts.Log == nil {
		opts.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Script.Welcome == "" && opts.Script.QuickReplies == nil {
		opts.Script = DefaultScript()
	}
	if opts.Script.Welcome == "" {
		opts.Script.Welcome = DefaultWelcome
	}
	s := &Session{
		relay:        relay,
		log:          opts.Log,
		now:          opts.Now,
		quickReplies: opts.Script.QuickReplies,
	}
	s.append(opts.Script.Welcome, true, s.quickReplies.Labels())
	s.showQuickReplies = len(s.quickReplies) > 0
	return s
}

// Session is the client side of a chat. At most one relay call is
// outstanding at a time: sends made while a reply is being composed are
// rejected with ErrComposing.
type Session struct {
	relay        Relay
	log          *slog.Logger
	now          func() time.Time
	quickReplies QuickReplies

	m                sync.Mutex
	messages         []Message
	composing        bool
	showQuickReplies bool
	// historyStart is the index of the first message sent upstream as
	// conversation history.
	historyStart int
	// clearOnReply is set when ClearHistory is called while composing.
	clearOnReply bool
}

// append must be called with s.m held.
func (s *Session) append(text string, isBot bool, options []string) Message {
	msg := Message{
		ID:        len(s.messages) + 1,
		Text:      text,
		IsBot:     isBot,
		Timestamp: s.now().Format(TimestampFormat),
	}
	if len(options) > 0 {
		msg.Options = options
	}
	s.messages = append(s.messages, msg)
	return msg
}

func (s *Session) Messages() []Message {
	s.m.Lock()
	defer s.m.Unlock()
	msgs := slices.Clone(s.messages)
	for i := range msgs {
		msgs[i].Options = slices.Clone(msgs[i].Options)
	}
	return msgs
}

// Composing is true while a relay call is outstanding.
func (s *Session) Composing() bool {
	s.m.Lock()
	defer s.m.Unlock()
	return s.composing
}

// QuickRepliesVisible is true until the first message is sent.
func (s *Session) QuickRepliesVisible() bool {
	s.m.Lock()
	defer s.m.Unlock()
	return s.showQuickReplies
}

func (s *Session) QuickReplies() QuickReplies {
	return s.quickReplies
}

// History is the conversation that would be sent with the next message:
// every logged message since the last ClearHistory, including the welcome
// and any FallbackReply left by a failed exchange.
func (s *Session) History() []models.Turn {
	s.m.Lock()
	defer s.m.Unlock()
	return s.history()
}

func (s *Session) history() (turns []models.Turn) {
	turns = make([]models.Turn, 0, len(s.messages)-s.historyStart)
	for _, msg := range s.messages[s.historyStart:] {
		role := models.RoleUser
		if msg.IsBot {
			role = models.RoleAssistant
		}
		turns = append(turns, models.Turn{Role: role, Content: msg.Text})
	}
	return turns
}

// ClearHistory stops messages logged so far from being sent upstream with
// future requests. The visible log is unchanged. While composing, the
// pending reply is cleared along with its user message once it arrives.
func (s *Session) ClearHistory() {
	s.m.Lock()
	defer s.m.Unlock()
	if s.composing {
		s.clearOnReply = true
		return
	}
	s.historyStart = len(s.messages)
}

// Exchange is a single outstanding relay call started by Start.
type Exchange struct {
	session *Session
	req     models.ChatPostRequest
	once    sync.Once
	reply   Message
}

// Start appends the user message, marks the session as composing and
// returns the pending exchange. Complete must be called to release the
// session.
func (s *Session) Start(text string) (*Exchange, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	s.m.Lock()
	defer s.m.Unlock()
	if s.composing {
		return nil, ErrComposing
	}
	req := models.ChatPostRequest{
		Message:      text,
		Conversation: s.history(),
	}
	s.append(text, false, nil)
	s.composing = true
	s.showQuickReplies = false
	return &Exchange{session: s, req: req}, nil
}

// Request is the request the exchange sends to the relay.
func (e *Exchange) Request() models.ChatPostRequest {
	return e.req
}

// Complete calls the relay and appends its reply, or FallbackReply if the
// call fails. It is safe to call more than once; only the first call
// contacts the relay.
func (e *Exchange) Complete(ctx context.Context) Message {
	e.once.Do(func() {
		text, err := e.call(ctx)
		if err != nil {
			e.session.log.Warn("chat request failed", slog.Any("error", err))
			text = FallbackReply
		}
		e.reply = e.session.finish(text)
	})
	return e.reply
}

func (e *Exchange) call(ctx context.Context) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("relay panicked: %v", p)
		}
	}()
	if err = e.session.relay.Health(ctx); err != nil {
		return "", fmt.Errorf("health check failed: %w", err)
	}
	resp, err := e.session.relay.ChatPost(ctx, e.req)
	if err != nil {
		return "", err
	}
	if !resp.Success {
		return "", fmt.Errorf("chat service reported failure: %s", resp.Error)
	}
	return resp.Message, nil
}

func (s *Session) finish(text string) Message {
	s.m.Lock()
	defer s.m.Unlock()
	msg := s.append(text, true, nil)
	s.composing = false
	if s.clearOnReply {
		s.historyStart = len(s.messages)
		s.clearOnReply = false
	}
	return msg
}

// SendMessage sends text and waits for the reply. Relay failures are
// logged and replaced with FallbackReply, so the only errors returned are
// ErrEmptyMessage and ErrComposing.
func (s *Session) SendMessage(ctx context.Context, text string) error {
	e, err := s.Start(text)
	if err != nil {
		return err
	}
	e.Complete(ctx)
	return nil
}

// StartQuickReply is Start with the outbound text for a quick-reply label.
func (s *Session) StartQuickReply(label string) (*Exchange, error) {
	return s.Start(s.quickReplies.Text(label))
}

// SelectQuickReply is SendMessage with the outbound text for a quick-reply
// label.
func (s *Session) SelectQuickReply(ctx context.Context, label string) error {
	return s.SendMessage(ctx, s.quickReplies.Text(label))
}
