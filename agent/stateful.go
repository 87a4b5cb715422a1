package agent

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Contextable/ag-ui-4k-sub001/event"
	"github.com/Contextable/ag-ui-4k-sub001/reduce"
	"github.com/Contextable/ag-ui-4k-sub001/transport"
)

type (
	// Stateful retains per-thread message history and state across calls.
	// Chat appends to history, sends the full history on each run, and
	// mirrors TEXT_MESSAGE_* and STATE_* events from the response back into
	// the stored history/state as they stream in.
	Stateful struct {
		transport transport.Transport
		cfg       Config
		ids       *idSource

		mu         sync.Mutex
		threads    map[string]*threadState
	}

	threadState struct {
		messages     []event.Message
		state        json.RawMessage
		toolsSent    bool
		systemSeeded bool
	}
)

// NewStateful constructs a Stateful facade over the given transport.
func NewStateful(t transport.Transport, cfg Config) *Stateful {
	return &Stateful{
		transport: t,
		cfg:       cfg.normalized(),
		ids:       newIDSource(),
		threads:   make(map[string]*threadState),
	}
}

// Chat appends text as a user message to threadID's history (default
// "default" when empty), sends the full history, and starts the run's
// pipeline. The returned handle mirrors the response's TEXT_MESSAGE_* and
// STATE_* events into the thread's stored history and state as they arrive.
func (s *Stateful) Chat(ctx context.Context, text string, threadID string) (*RunHandle, error) {
	if threadID == "" {
		threadID = "default"
	}

	s.mu.Lock()
	th := s.threadFor(threadID)
	userID := s.cfg.UserID
	if userID == "" {
		userID = s.ids.messageID()
	}
	th.messages = append(th.messages, event.Message{ID: userID, Role: event.RoleUser, Content: &text})
	messages := append([]event.Message(nil), th.messages...)
	tools := s.toolsForThread(th)
	state := th.state
	s.mu.Unlock()

	runID := s.ids.runID()
	input := event.RunInput{
		ThreadID:       threadID,
		RunID:          runID,
		State:          state,
		Messages:       messages,
		Tools:          tools,
		Context:        s.cfg.Context,
		ForwardedProps: s.cfg.ForwardedProps,
	}

	sess, err := s.transport.StartRun(ctx, input, s.cfg.authHeaders())
	if err != nil {
		return failedRun(threadID, runID, err), nil
	}

	inner := runPipeline(ctx, sess, threadID, runID, s.cfg)
	return s.mirror(threadID, inner), nil
}

// threadFor returns threadID's state, creating it (and seeding the system
// prompt) on first use. Callers must hold s.mu.
func (s *Stateful) threadFor(threadID string) *threadState {
	th, ok := s.threads[threadID]
	if ok {
		return th
	}
	th = &threadState{state: json.RawMessage("null")}
	if s.cfg.SystemPrompt != "" {
		sys := s.cfg.SystemPrompt
		th.messages = append(th.messages, event.Message{ID: s.ids.messageID(), Role: event.RoleSystem, Content: &sys})
		th.systemSeeded = true
	}
	s.threads[threadID] = th
	return th
}

// toolsForThread implements the same send-once tool catalogue optimisation
// as the stateless facade, scoped to this Stateful instance. Callers must
// hold s.mu.
func (s *Stateful) toolsForThread(th *threadState) []event.Tool {
	if th.toolsSent {
		return []event.Tool{}
	}
	th.toolsSent = true
	return specsToTools(s.cfg.ToolRegistry)
}

// ClearThreadToolsTracking forgets that threadID previously received the
// tool catalogue, so its next Chat call carries the full catalogue again.
func (s *Stateful) ClearThreadToolsTracking(threadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if th, ok := s.threads[threadID]; ok {
		th.toolsSent = false
	}
}

// Reset discards threadID's retained history and state entirely.
func (s *Stateful) Reset(threadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, threadID)
}

// mirror wraps inner so that, as its events stream past, TEXT_MESSAGE_* and
// STATE_* events are folded into the thread's stored history/state. The
// host still observes every event inner produced, in the same order.
func (s *Stateful) mirror(threadID string, inner *RunHandle) *RunHandle {
	outEvents := make(chan event.Event, 16)
	done := make(chan struct{})

	go func() {
		defer close(outEvents)
		defer close(done)
		for ev := range inner.events {
			s.applyMirror(threadID, ev)
			outEvents <- ev
		}
		s.trimHistory(threadID)
	}()

	return &RunHandle{
		events:    outEvents,
		snapshots: inner.snapshots,
		mediator:  inner.mediator,
		session:   inner.session,
		cancel:    inner.cancel,
		done:      done,
	}
}

func (s *Stateful) applyMirror(threadID string, ev event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	th, ok := s.threads[threadID]
	if !ok {
		return
	}

	switch e := ev.(type) {
	case *event.TextMessageStart:
		content := ""
		th.messages = append(th.messages, event.Message{ID: e.MessageID, Role: roleOrAssistant(e.Role), Content: &content})
	case *event.TextMessageContent:
		if n := len(th.messages); n > 0 {
			last := &th.messages[n-1]
			if last.ID == e.MessageID {
				extended := derefOr(last.Content) + e.Delta
				last.Content = &extended
			}
		}
	case *event.StateSnapshot:
		th.state = append(json.RawMessage(nil), e.Snapshot...)
	case *event.StateDelta:
		if next, err := reduce.ApplyPatch(th.state, e.Delta); err == nil {
			th.state = next
		}
	case *event.MessagesSnapshot:
		th.messages = append([]event.Message(nil), e.Messages...)
	}
}

// trimHistory drops the oldest non-system messages once the thread exceeds
// MaxHistoryLength.
func (s *Stateful) trimHistory(threadID string) {
	if s.cfg.MaxHistoryLength < 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	th, ok := s.threads[threadID]
	if !ok || len(th.messages) <= s.cfg.MaxHistoryLength {
		return
	}

	var system []event.Message
	var rest []event.Message
	for _, m := range th.messages {
		if m.Role == event.RoleSystem {
			system = append(system, m)
		} else {
			rest = append(rest, m)
		}
	}
	overflow := len(th.messages) - s.cfg.MaxHistoryLength
	if overflow > len(rest) {
		overflow = len(rest)
	}
	rest = rest[overflow:]
	th.messages = append(system, rest...)
}

func roleOrAssistant(r event.Role) event.Role {
	if r == "" {
		return event.RoleAssistant
	}
	return r
}

func derefOr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
