package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Contextable/ag-ui-4k-sub001/agent"
	"github.com/Contextable/ag-ui-4k-sub001/event"
	"github.com/Contextable/ag-ui-4k-sub001/tool"
	"github.com/Contextable/ag-ui-4k-sub001/transport"
)

// tuiTheme holds the small set of styles the chat view uses, the same
// "struct of lipgloss styles" shape the teacher-adjacent CLI keeps for its
// much larger theme.
type tuiTheme struct {
	user      lipgloss.Style
	assistant lipgloss.Style
	system    lipgloss.Style
	errStyle  lipgloss.Style
	prompt    lipgloss.Style
}

func defaultTUITheme() tuiTheme {
	return tuiTheme{
		user:      lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "25", Dark: "117"}).Bold(true),
		assistant: lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "22", Dark: "120"}),
		system:    lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "244"}).Italic(true),
		errStyle:  lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "160", Dark: "203"}).Bold(true),
		prompt:    lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "90", Dark: "213"}),
	}
}

// chatLine is one rendered line of transcript, kept separately from its
// styled form so the whole transcript can be re-wrapped on resize.
type chatLine struct {
	style lipgloss.Style
	text  string
}

type (
	// streamDeltaMsg carries one TEXT_MESSAGE_CONTENT delta.
	streamDeltaMsg struct{ text string }
	// streamLineMsg appends a finished, self-contained transcript line
	// (tool activity, confirmations, system notices).
	streamLineMsg struct{ line chatLine }
	// streamDoneMsg signals the run's event channel closed.
	streamDoneMsg struct{}
	// confirmRequestMsg asks the user to approve or decline a tool call.
	confirmRequestMsg struct {
		prompt string
		respCh chan<- tool.ConfirmationResponse
	}
)

// tuiModel is the bubbletea Model driving aguichat's interactive mode. It is
// deliberately a fraction of the size of the teacher-adjacent example's
// interactive_tui.go: one scrollback viewport, one input box, and a single
// pending-confirmation prompt, enough to demonstrate the facade end to end.
type tuiModel struct {
	facade   *agent.Stateful
	threadID string

	theme    tuiTheme
	chatView viewport.Model
	input    textarea.Model
	lines    []chatLine

	streaming  bool
	streamBuf  strings.Builder
	streamCh   chan tea.Msg
	cancelRun  context.CancelFunc

	pendingConfirm *confirmRequestMsg

	width, height int
	quitting      bool
	statusLine    string

	program *tea.Program
}

// runTUI starts the bubbletea program. It owns the confirmation handler
// itself, since a pending confirmation must be rendered inside the TUI
// rather than prompted on a terminal bubbletea already controls.
func runTUI(opts *options) error {
	confirmCh := make(chan confirmRequestMsg)
	registry, err := newRegistry(tuiConfirmationHandler(confirmCh))
	if err != nil {
		return err
	}

	client := opts.httpClient()
	facade := agent.NewStateful(transport.NewRateLimited(client, 5, 10), opts.agentConfig(registry))

	m := newTUIModel(facade, opts.ThreadID)
	program := tea.NewProgram(m, tea.WithAltScreen())
	m.program = program

	go forwardConfirmations(confirmCh, program)

	_, err = program.Run()
	return err
}

// forwardConfirmations relays confirmation prompts from the mediator's
// goroutine into the bubbletea event loop via Program.Send, the same
// external-channel-to-tea.Msg bridge pumpEvents uses for run events.
func forwardConfirmations(confirmCh <-chan confirmRequestMsg, program *tea.Program) {
	for req := range confirmCh {
		program.Send(req)
	}
}

func newTUIModel(facade *agent.Stateful, threadID string) *tuiModel {
	input := textarea.New()
	input.Placeholder = "Say something..."
	input.Focus()
	input.CharLimit = 0
	input.SetHeight(3)
	input.ShowLineNumbers = false

	chatView := viewport.New(20, 10)

	return &tuiModel{
		facade:     facade,
		threadID:   threadID,
		theme:      defaultTUITheme(),
		chatView:   chatView,
		input:      input,
		statusLine: "ready",
	}
}

func (m *tuiModel) Init() tea.Cmd {
	return textarea.Blink
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.applySize(typed)
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(typed)
	case streamDeltaMsg:
		m.streamBuf.WriteString(typed.text)
		m.refresh()
		return m, m.listenStream()
	case streamLineMsg:
		m.flushStreamBuffer()
		m.lines = append(m.lines, typed.line)
		m.refresh()
		return m, m.listenStream()
	case streamDoneMsg:
		m.flushStreamBuffer()
		m.streaming = false
		m.statusLine = "ready"
		m.refresh()
		return m, nil
	case confirmRequestMsg:
		m.pendingConfirm = &typed
		m.statusLine = "waiting for confirmation (y/n)"
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.pendingConfirm != nil {
		switch msg.String() {
		case "y", "Y":
			m.resolveConfirm(true)
			return m, nil
		case "n", "N", "esc":
			m.resolveConfirm(false)
			return m, nil
		}
		return m, nil
	}

	switch msg.String() {
	case "ctrl+c":
		if m.cancelRun != nil {
			m.cancelRun()
		}
		m.quitting = true
		return m, tea.Quit
	case "enter":
		if m.streaming {
			return m, nil
		}
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.input.Reset()
		return m.startTurn(text)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *tuiModel) resolveConfirm(ok bool) {
	req := m.pendingConfirm
	m.pendingConfirm = nil
	m.statusLine = "ready"
	resp := tool.ConfirmationResponse{Confirmed: ok}
	if !ok {
		resp.Reason = "declined via TUI"
	}
	req.respCh <- resp
}

func (m *tuiModel) startTurn(text string) (tea.Model, tea.Cmd) {
	m.lines = append(m.lines, chatLine{style: m.theme.user, text: "you: " + text})
	m.streaming = true
	m.statusLine = "streaming..."

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelRun = cancel
	m.streamCh = make(chan tea.Msg, 64)

	handle, err := m.facade.Chat(ctx, text, m.threadID)
	if err != nil {
		m.lines = append(m.lines, chatLine{style: m.theme.errStyle, text: "error: " + err.Error()})
		m.streaming = false
		return m, nil
	}

	go pumpEvents(handle.Events(), m.streamCh)

	m.refresh()
	return m, m.listenStream()
}

// pumpEvents translates the pipeline's typed events into tea.Msg values,
// the same adaptation the teacher-adjacent CLI performs between its agent
// runner and streamCh, scaled to this facade's event set.
func pumpEvents(events <-chan event.Event, out chan<- tea.Msg) {
	defer close(out)
	for ev := range events {
		switch e := ev.(type) {
		case *event.TextMessageContent:
			out <- streamDeltaMsg{text: e.Delta}
		case *event.RunError:
			out <- streamLineMsg{line: chatLine{style: errStyleFor(), text: fmt.Sprintf("run error [%s]: %s", e.Code, e.Message)}}
		case *event.StepStarted:
			out <- streamLineMsg{line: chatLine{style: sysStyleFor(), text: "step: " + e.StepName}}
		}
	}
	out <- streamDoneMsg{}
}

func errStyleFor() lipgloss.Style { return defaultTUITheme().errStyle }
func sysStyleFor() lipgloss.Style { return defaultTUITheme().system }

func (m *tuiModel) listenStream() tea.Cmd {
	ch := m.streamCh
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func (m *tuiModel) flushStreamBuffer() {
	if m.streamBuf.Len() == 0 {
		return
	}
	m.lines = append(m.lines, chatLine{style: m.theme.assistant, text: "assistant: " + m.streamBuf.String()})
	m.streamBuf.Reset()
}

func (m *tuiModel) applySize(msg tea.WindowSizeMsg) {
	m.width, m.height = msg.Width, msg.Height
	inputHeight := 5
	m.chatView.Width = msg.Width
	m.chatView.Height = msg.Height - inputHeight
	m.input.SetWidth(msg.Width)
	m.refresh()
}

func (m *tuiModel) refresh() {
	var b strings.Builder
	for _, l := range m.lines {
		b.WriteString(l.style.Render(l.text))
		b.WriteString("\n")
	}
	if m.streamBuf.Len() > 0 {
		b.WriteString(m.theme.assistant.Render("assistant: " + m.streamBuf.String()))
	}
	m.chatView.SetContent(b.String())
	m.chatView.GotoBottom()
}

func (m *tuiModel) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "initializing..."
	}
	status := m.theme.system.Render(m.statusLine)
	if m.pendingConfirm != nil {
		status = m.theme.prompt.Render("confirm: "+m.pendingConfirm.prompt) + "  (y/n)"
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.chatView.View(), status, m.input.View())
}

// tuiConfirmationHandler adapts the TUI's confirmRequestMsg rendezvous to
// the tool.ConfirmationHandler signature the mediator invokes from its own
// goroutine, outside the bubbletea Update loop.
func tuiConfirmationHandler(confirmCh chan<- confirmRequestMsg) tool.ConfirmationHandler {
	return func(ctx context.Context, req tool.ConfirmationRequest) (tool.ConfirmationResponse, error) {
		respCh := make(chan tool.ConfirmationResponse, 1)
		select {
		case confirmCh <- confirmRequestMsg{prompt: req.Prompt, respCh: respCh}:
		case <-ctx.Done():
			return tool.ConfirmationResponse{}, ctx.Err()
		}
		select {
		case resp := <-respCh:
			return resp, nil
		case <-ctx.Done():
			return tool.ConfirmationResponse{}, ctx.Err()
		}
	}
}
