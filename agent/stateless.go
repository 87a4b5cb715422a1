package agent

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Contextable/ag-ui-4k-sub001/event"
	"github.com/Contextable/ag-ui-4k-sub001/reduce"
	"github.com/Contextable/ag-ui-4k-sub001/tool"
	"github.com/Contextable/ag-ui-4k-sub001/transport"
)

type (
	// Facade is the stateless entry point: every call builds a fresh turn
	// from scratch and retains no history across calls. It is safe for
	// concurrent use; each call runs its own independent pipeline.
	Facade struct {
		transport transport.Transport
		cfg       Config
		ids       *idSource

		mu            sync.Mutex
		sentToolsFor  map[string]bool
	}

	// SendOption configures one call to SendMessage.
	SendOption func(*sendOptions)

	sendOptions struct {
		threadID string
		runID    string
		state    json.RawMessage
	}
)

// WithThreadID pins the thread id for this call instead of generating one.
func WithThreadID(id string) SendOption {
	return func(o *sendOptions) { o.threadID = id }
}

// WithRunID pins the run id for this call instead of generating one.
func WithRunID(id string) SendOption {
	return func(o *sendOptions) { o.runID = id }
}

// WithState attaches initial state to the outbound run.
func WithState(state json.RawMessage) SendOption {
	return func(o *sendOptions) { o.state = state }
}

// NewFacade constructs a stateless Facade over the given transport.
func NewFacade(t transport.Transport, cfg Config) *Facade {
	return &Facade{
		transport:    t,
		cfg:          cfg.normalized(),
		ids:          newIDSource(),
		sentToolsFor: make(map[string]bool),
	}
}

// SendMessage builds a fresh {messages: [system?, user]} run from text and
// starts its pipeline. No history from prior calls is retained or reused.
func (f *Facade) SendMessage(ctx context.Context, text string, opts ...SendOption) (*RunHandle, string, error) {
	o := sendOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.threadID == "" {
		o.threadID = f.ids.threadID()
	}
	if o.runID == "" {
		o.runID = f.ids.runID()
	}

	messages := f.freshMessages(text)
	input := event.RunInput{
		ThreadID:       o.threadID,
		RunID:          o.runID,
		State:          o.state,
		Messages:       messages,
		Tools:          f.toolsForThread(o.threadID),
		Context:        f.cfg.Context,
		ForwardedProps: f.cfg.ForwardedProps,
	}

	sess, err := f.transport.StartRun(ctx, input, f.cfg.authHeaders())
	if err != nil {
		return failedRun(o.threadID, o.runID, err), o.threadID, nil
	}
	return runPipeline(ctx, sess, o.threadID, o.runID, f.cfg), o.threadID, nil
}

func (f *Facade) freshMessages(text string) []event.Message {
	var messages []event.Message
	if f.cfg.SystemPrompt != "" {
		sys := f.cfg.SystemPrompt
		messages = append(messages, event.Message{ID: f.ids.messageID(), Role: event.RoleSystem, Content: &sys})
	}
	userID := f.cfg.UserID
	if userID == "" {
		userID = f.ids.messageID()
	}
	messages = append(messages, event.Message{ID: userID, Role: event.RoleUser, Content: &text})
	return messages
}

// toolsForThread implements the stateless-agent tool catalogue optimisation:
// only the first run on a thread carries the full catalogue; subsequent
// runs send an empty list until ClearThreadToolsTracking is called.
func (f *Facade) toolsForThread(threadID string) []event.Tool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sentToolsFor[threadID] {
		return []event.Tool{}
	}
	f.sentToolsFor[threadID] = true
	return specsToTools(f.cfg.ToolRegistry)
}

func specsToTools(registry *tool.Registry) []event.Tool {
	if registry == nil {
		return []event.Tool{}
	}
	specs := registry.Specs()
	out := make([]event.Tool, 0, len(specs))
	for _, s := range specs {
		out = append(out, s.Advertisement())
	}
	return out
}

// ClearThreadToolsTracking forgets that thread previously received the tool
// catalogue, so its next run carries the full catalogue again.
func (f *Facade) ClearThreadToolsTracking(threadID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sentToolsFor, threadID)
}

// ClearAllThreadToolsTracking resets tool catalogue tracking for every
// thread.
func (f *Facade) ClearAllThreadToolsTracking() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sentToolsFor = make(map[string]bool)
}

func failedRun(threadID, runID string, err error) *RunHandle {
	events := make(chan event.Event, 1)
	snapshots := make(chan reduce.Snapshot)
	done := make(chan struct{})
	events <- translateTransportError(err)
	close(events)
	close(snapshots)
	close(done)
	return &RunHandle{
		events:    events,
		snapshots: snapshots,
		mediator:  tool.NewMediator(threadID, runID, tool.NewRegistry(), noopSender{}),
		cancel:    func() {},
		done:      done,
	}
}

type noopSender struct{}

func (noopSender) SendToolResult(context.Context, string, string, event.Message) error { return nil }
