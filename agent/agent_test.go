package agent_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Contextable/ag-ui-4k-sub001/agent"
	"github.com/Contextable/ag-ui-4k-sub001/event"
	"github.com/Contextable/ag-ui-4k-sub001/tool"
	"github.com/Contextable/ag-ui-4k-sub001/transport"
)

type fakeSession struct {
	events chan event.Event
	errs   chan error

	mu   sync.Mutex
	sent []event.RunInput
}

func newFakeSession(events []event.Event) *fakeSession {
	s := &fakeSession{
		events: make(chan event.Event, len(events)+1),
		errs:   make(chan error, 1),
	}
	for _, e := range events {
		s.events <- e
	}
	close(s.events)
	s.errs <- nil
	close(s.errs)
	return s
}

func (s *fakeSession) Events() <-chan event.Event { return s.events }
func (s *fakeSession) Errors() <-chan error        { return s.errs }
func (s *fakeSession) SendMessage(_ context.Context, in event.RunInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, in)
	return nil
}
func (s *fakeSession) Close() error { return nil }
func (s *fakeSession) Active() bool { return true }

func (s *fakeSession) sentInputs() []event.RunInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.RunInput(nil), s.sent...)
}

type fakeTransport struct {
	mu       sync.Mutex
	sessions []*fakeSession
	inputs   []event.RunInput
	next     int
	script   [][]event.Event
}

func newFakeTransport(runs ...[]event.Event) *fakeTransport {
	return &fakeTransport{script: runs}
}

func (t *fakeTransport) StartRun(_ context.Context, input event.RunInput, _ map[string]string) (transport.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputs = append(t.inputs, input)
	idx := t.next
	t.next++
	var events []event.Event
	if idx < len(t.script) {
		events = t.script[idx]
	}
	sess := newFakeSession(events)
	t.sessions = append(t.sessions, sess)
	return sess, nil
}

func helloWorldEvents() []event.Event {
	return []event.Event{
		&event.RunStarted{ThreadID: "t1", RunID: "r1"},
		&event.TextMessageStart{MessageID: "m1"},
		&event.TextMessageContent{MessageID: "m1", Delta: "Hello, "},
		&event.TextMessageContent{MessageID: "m1", Delta: "world!"},
		&event.TextMessageEnd{MessageID: "m1"},
		&event.RunFinished{ThreadID: "t1", RunID: "r1"},
	}
}

func drainEvents(h *agent.RunHandle) []event.Event {
	var got []event.Event
	for ev := range h.Events() {
		got = append(got, ev)
	}
	return got
}

func TestFacadeHelloWorld(t *testing.T) {
	ft := newFakeTransport(helloWorldEvents())
	facade := agent.NewFacade(ft, agent.Config{})

	handle, _, err := facade.SendMessage(context.Background(), "hi")
	require.NoError(t, err)

	events := drainEvents(handle)
	require.Len(t, events, 6)
	require.Equal(t, event.TypeRunFinished, events[len(events)-1].Kind())
}

func TestFacadeProtocolViolationSurfacesAsRunError(t *testing.T) {
	ft := newFakeTransport([]event.Event{
		&event.RunStarted{ThreadID: "t1", RunID: "r1"},
		&event.TextMessageStart{MessageID: "m1"},
		&event.ToolCallStart{ToolCallID: "tc1", ToolCallName: "t"},
	})
	facade := agent.NewFacade(ft, agent.Config{})

	handle, _, err := facade.SendMessage(context.Background(), "hi")
	require.NoError(t, err)

	events := drainEvents(handle)
	last := events[len(events)-1].(*event.RunError)
	require.Equal(t, "PROTOCOL_VIOLATION", last.Code)
	require.Contains(t, last.Message, "Cannot send event type 'TOOL_CALL_START' after 'TEXT_MESSAGE_START'")
}

func TestStatelessToolCatalogueOptimisation(t *testing.T) {
	ft := newFakeTransport(helloWorldEvents(), helloWorldEvents(), helloWorldEvents())
	registry := newEchoRegistry(t)
	facade := agent.NewFacade(ft, agent.Config{ToolRegistry: registry})

	h1, threadID, err := facade.SendMessage(context.Background(), "hi", agent.WithThreadID("T"))
	require.NoError(t, err)
	drainEvents(h1)

	h2, _, err := facade.SendMessage(context.Background(), "hi again", agent.WithThreadID(threadID))
	require.NoError(t, err)
	drainEvents(h2)

	facade.ClearThreadToolsTracking(threadID)
	h3, _, err := facade.SendMessage(context.Background(), "hi thrice", agent.WithThreadID(threadID))
	require.NoError(t, err)
	drainEvents(h3)

	require.Len(t, ft.inputs, 3)
	require.Greater(t, len(ft.inputs[0].Tools), 0)
	require.Len(t, ft.inputs[1].Tools, 0)
	require.Greater(t, len(ft.inputs[2].Tools), 0)
}

func TestStatefulChatMirrorsHistoryAndState(t *testing.T) {
	ft := newFakeTransport(stateStreamEvents())
	stateful := agent.NewStateful(ft, agent.Config{})

	handle, err := stateful.Chat(context.Background(), "hi", "thread-a")
	require.NoError(t, err)
	drainEvents(handle)

	handle2, err := stateful.Chat(context.Background(), "again", "thread-a")
	require.NoError(t, err)
	drainEvents(handle2)

	require.Len(t, ft.inputs, 2)
	// Second call's history should include the user's first message, the
	// assistant's streamed reply, and the new user message.
	require.GreaterOrEqual(t, len(ft.inputs[1].Messages), 3)
	// The first run's STATE_SNAPSHOT is carried as the second run's state.
	require.JSONEq(t, `{"seen":1}`, string(ft.inputs[1].State))
}

func stateStreamEvents() []event.Event {
	return []event.Event{
		&event.RunStarted{ThreadID: "thread-a", RunID: "r1"},
		&event.TextMessageStart{MessageID: "m1"},
		&event.TextMessageContent{MessageID: "m1", Delta: "ack"},
		&event.TextMessageEnd{MessageID: "m1"},
		&event.StateSnapshot{Snapshot: json.RawMessage(`{"seen":1}`)},
		&event.RunFinished{ThreadID: "thread-a", RunID: "r1"},
	}
}

func newEchoRegistry(t *testing.T) *tool.Registry {
	t.Helper()
	registry := tool.NewRegistry()
	spec, err := tool.NewSpec("echo", "echoes back", nil)
	require.NoError(t, err)
	registry.Register(spec, tool.ExecutorFunc(func(cc tool.CallContext) (tool.Result, error) {
		return tool.Result{Success: true}, nil
	}), 0)
	return registry
}
