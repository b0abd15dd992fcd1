package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloudhubibi/gtmchat/chatbot"
	"github.com/cloudhubibi/gtmchat/client"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

type ChatCommand struct {
	ChatServerURL    string `help:"The URL of the chat relay server." env:"CHAT_SERVER_URL" default:"http://localhost:3001"`
	QuickRepliesFile string `help:"A YAML file containing the welcome message and quick replies." env:"QUICK_REPLIES_FILE" default:""`
	LogLevel         string `help:"The log level to use." env:"LOG_LEVEL" default:"error"`
}

func (c ChatCommand) Run(ctx context.Context) (err error) {
	script, err := chatbot.LoadScriptFile(c.QuickRepliesFile)
	if err != nil {
		return err
	}
	session := chatbot.New(client.New(c.ChatServerURL), chatbot.Options{
		Script: script,
		Log:    getLogger(c.LogLevel),
	})

	p := tea.NewProgram(newModel(ctx, session), tea.WithContext(ctx))
	if _, err = p.Run(); err != nil {
		return err
	}
	return nil
}

// Dracula color scheme.
var (
	Background = lipgloss.Color("#282a36")
	Comment    = lipgloss.Color("#6272a4")
	Cyan       = lipgloss.Color("#8be9fd")
	Green      = lipgloss.Color("#50fa7b")
	Pink       = lipgloss.Color("#ff79c6")
	Purple     = lipgloss.Color("#bd93f9")
	Red        = lipgloss.Color("#ff5555")
)

var (
	botStyle       = lipgloss.NewStyle().Padding(1).Margin(1).MarginBottom(0).Background(Background).Foreground(Cyan)
	userStyle      = lipgloss.NewStyle().Padding(1).Margin(1).MarginBottom(0).Background(Background).Foreground(Pink)
	timestampStyle = lipgloss.NewStyle().Foreground(Comment).MarginLeft(2)
	optionStyle    = lipgloss.NewStyle().Foreground(Green).MarginLeft(3)
	statusStyle    = lipgloss.NewStyle().Foreground(Purple).MarginLeft(1)
	errorStyle     = lipgloss.NewStyle().Foreground(Red).MarginLeft(1)
)

type model struct {
	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model
	err      error
	status   string
	ctx      context.Context
	session  *chatbot.Session
}

// replyMsg is sent when an exchange completes.
type replyMsg chatbot.Message

func newModel(ctx context.Context, session *chatbot.Session) model {
	ta := textarea.New()
	ta.Placeholder = "Type your message..."
	ta.Focus()

	ta.Prompt = "┃ "
	ta.CharLimit = 1000

	ta.SetHeight(3)

	// Remove cursor line styling
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()

	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	vp := viewport.New(80, 20)

	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(lipgloss.NewStyle().Foreground(Purple)))

	m := model{
		ctx:      ctx,
		textarea: ta,
		viewport: vp,
		spinner:  sp,
		session:  session,
	}
	m.refresh()
	return m
}

func (m model) Init() tea.Cmd {
	return textarea.Blink
}

func formatMessage(msg chatbot.Message, width int) string {
	style, icon := userStyle, "🧑"
	if msg.IsBot {
		style, icon = botStyle, "✨"
	}
	wrapped := wordwrap.String(strings.TrimSpace(icon+" "+msg.Text), width)
	return style.Render(wrapped) + "\n" + timestampStyle.Render(msg.Timestamp)
}

func formatOptions(options []string) string {
	var sb strings.Builder
	for i, o := range options {
		sb.WriteString(optionStyle.Render(fmt.Sprintf("[%d] %s", i+1, o)))
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderLog renders messages. Options are rendered only while the quick
// replies are still available.
func renderLog(msgs []chatbot.Message, showOptions bool, width int) string {
	var sb strings.Builder
	for _, msg := range msgs {
		sb.WriteString(formatMessage(msg, width))
		sb.WriteString("\n")
		if showOptions && len(msg.Options) > 0 {
			sb.WriteString(formatOptions(msg.Options))
		}
	}
	return sb.String()
}

func (m *model) refresh() {
	width := m.viewport.Width - 6
	if width < 20 {
		width = 20
	}
	m.viewport.SetContent(renderLog(m.session.Messages(), m.session.QuickRepliesVisible(), width))
	m.viewport.GotoBottom()
}

func (m model) complete(e *chatbot.Exchange) tea.Cmd {
	return func() tea.Msg {
		return replyMsg(e.Complete(m.ctx))
	}
}

func (m model) start(e *chatbot.Exchange, err error) (tea.Model, tea.Cmd) {
	if err != nil {
		m.err = err
		return m, nil
	}
	m.err = nil
	m.status = ""
	m.textarea.Reset()
	m.textarea.Blur()
	m.refresh()
	return m, tea.Batch(m.complete(e), m.spinner.Tick)
}

// quickReply returns the label for a numeric key press, if the menu is
// showing and the input is empty.
func (m model) quickReply(key string) (label string, ok bool) {
	if m.textarea.Value() != "" || !m.session.QuickRepliesVisible() {
		return "", false
	}
	n, err := strconv.Atoi(key)
	if err != nil {
		return "", false
	}
	labels := m.session.QuickReplies().Labels()
	if n < 1 || n > len(labels) {
		return "", false
	}
	return labels[n-1], true
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case replyMsg:
		m.refresh()
		m.textarea.Focus()
		return m, textarea.Blink
	case spinner.TickMsg:
		if !m.session.Composing() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - m.textarea.Height() - 4
		m.textarea.SetWidth(msg.Width)
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "ctrl+c":
			return m, tea.Quit
		}
		if m.session.Composing() {
			// Input is disabled until the reply arrives.
			return m, nil
		}
		switch msg.String() {
		case "ctrl+l":
			m.session.ClearHistory()
			m.status = "Conversation history cleared."
			return m, nil
		case "enter":
			v := strings.TrimSpace(m.textarea.Value())
			if v == "" {
				// Don't send empty messages.
				return m, nil
			}
			return m.start(m.session.Start(v))
		}
		if label, ok := m.quickReply(msg.String()); ok {
			return m.start(m.session.StartQuickReply(label))
		}
		// Send all other keypresses to the textarea.
		var cmd tea.Cmd
		m.textarea, cmd = m.textarea.Update(msg)
		return m, cmd

	case cursor.BlinkMsg:
		// Textarea should also process cursor blinks.
		var cmd tea.Cmd
		m.textarea, cmd = m.textarea.Update(msg)
		return m, cmd

	default:
		return m, nil
	}
}

func (m model) statusLine() string {
	switch {
	case m.err != nil:
		return errorStyle.Render(m.err.Error())
	case m.session.Composing():
		return statusStyle.Render(m.spinner.View() + " typing...")
	case m.status != "":
		return statusStyle.Render(m.status)
	default:
		return statusStyle.Foreground(Comment).Render("enter: send • ctrl+l: clear history • esc: quit")
	}
}

func (m model) View() string {
	return fmt.Sprintf("%s\n%s\n%s",
		m.viewport.View(),
		m.statusLine(),
		m.textarea.View(),
	) + "\n\n"
}
