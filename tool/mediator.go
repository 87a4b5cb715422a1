package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Contextable/ag-ui-4k-sub001/event"
	"github.com/Contextable/ag-ui-4k-sub001/telemetry"
)

type (
	// Sender delivers a follow-up message to the agent on behalf of the
	// mediator. Sends are fire-and-forget from the perspective of the
	// current event stream: the mediator does not await a reply to the
	// follow-up run it triggers.
	Sender interface {
		SendToolResult(ctx context.Context, threadID, runID string, msg event.Message) error
	}

	// accumulator tracks one in-flight tool call's streamed metadata.
	accumulator struct {
		toolName  string
		arguments string
	}

	// Mediator sits between the verifier and the host in the event stream.
	// For each TOOL_CALL_START it opens an accumulator; for each
	// TOOL_CALL_ARGS it appends; on TOOL_CALL_END it validates, executes (or
	// forwards, if the tool is unregistered), and sends the tool result
	// back through Sender.
	//
	// Mediator owns no state shared across runs: construct one per run.
	Mediator struct {
		threadID string
		runID    string

		registry *Registry
		sender   Sender
		logger   telemetry.Logger

		mu    sync.Mutex
		calls map[string]*accumulator

		pending sync.WaitGroup
	}

	// Option configures a Mediator at construction time.
	Option func(*Mediator)
)

// WithLogger installs the logger used to report tool lookup, validation,
// and execution failures.
func WithLogger(l telemetry.Logger) Option {
	return func(m *Mediator) { m.logger = l }
}

// NewMediator constructs a Mediator for one run.
func NewMediator(threadID, runID string, registry *Registry, sender Sender, opts ...Option) *Mediator {
	m := &Mediator{
		threadID: threadID,
		runID:    runID,
		registry: registry,
		sender:   sender,
		logger:   telemetry.NoopLogger(),
		calls:    make(map[string]*accumulator),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Observe feeds one verified event to the mediator. It never returns an
// error: tool failures are materialised into tool-result messages rather
// than propagated to the caller, per the Protocol's error taxonomy.
func (m *Mediator) Observe(ctx context.Context, e event.Event) {
	switch ev := e.(type) {
	case *event.ToolCallStart:
		m.mu.Lock()
		m.calls[ev.ToolCallID] = &accumulator{toolName: ev.ToolCallName}
		m.mu.Unlock()

	case *event.ToolCallArgs:
		m.mu.Lock()
		if acc, ok := m.calls[ev.ToolCallID]; ok {
			acc.arguments += ev.Delta
		}
		m.mu.Unlock()

	case *event.ToolCallEnd:
		m.mu.Lock()
		acc, ok := m.calls[ev.ToolCallID]
		if ok {
			delete(m.calls, ev.ToolCallID)
		}
		m.mu.Unlock()
		if !ok {
			return
		}
		m.dispatch(ctx, ev.ToolCallID, acc)
	}
}

// Wait blocks until every tool execution and result send started by this
// mediator has finished. Callers should invoke this when tearing down a run
// to avoid orphaning in-flight executions.
func (m *Mediator) Wait() {
	m.pending.Wait()
}

func (m *Mediator) dispatch(ctx context.Context, toolCallID string, acc *accumulator) {
	spec, executor, maxExecution, found := m.registry.Lookup(acc.toolName)
	if !found {
		// TOOL_NOT_FOUND: forwarded, the host is responsible.
		m.logger.Warn(ctx, "agui: tool call for unregistered tool", "tool", acc.toolName, "tool_call_id", toolCallID)
		return
	}

	// A call that streamed no TOOL_CALL_ARGS carries an empty argument object.
	arguments := acc.arguments
	if strings.TrimSpace(arguments) == "" {
		arguments = "{}"
	}

	validation := spec.Validate(arguments)
	if !validation.OK {
		m.sendResult(ctx, toolCallID, Result{Success: false, Error: fmt.Sprintf("invalid arguments: %v", validation.Errors)})
		return
	}

	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		m.execute(ctx, toolCallID, acc.toolName, arguments, executor, maxExecution)
	}()
}

func (m *Mediator) execute(ctx context.Context, toolCallID, toolName, argumentsJSON string, executor Executor, maxExecution time.Duration) {
	execCtx := ctx
	var cancel context.CancelFunc
	if maxExecution > 0 {
		execCtx, cancel = context.WithTimeout(ctx, maxExecution)
		defer cancel()
	}

	cc := CallContext{
		Context:       execCtx,
		ThreadID:      m.threadID,
		RunID:         m.runID,
		ToolCallID:    toolCallID,
		ToolName:      toolName,
		ArgumentsJSON: argumentsJSON,
	}

	resultCh := make(chan Result, 1)
	errCh := make(chan error, 1)
	go func() {
		res, err := executor.Execute(cc)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- res
	}()

	var result Result
	select {
	case res := <-resultCh:
		result = res
	case err := <-errCh:
		result = Result{Success: false, Error: err.Error()}
	case <-execCtx.Done():
		result = Result{Success: false, Error: "tool execution timed out or was canceled: " + execCtx.Err().Error()}
	}

	m.sendResult(ctx, toolCallID, result)
}

func (m *Mediator) sendResult(ctx context.Context, toolCallID string, result Result) {
	content, err := json.Marshal(result)
	if err != nil {
		content = []byte(`{"success":false,"error":"failed to encode tool result"}`)
	}
	contentStr := string(content)
	msg := event.Message{
		ID:         toolCallID,
		Role:       event.RoleTool,
		Content:    &contentStr,
		ToolCallID: toolCallID,
	}
	if err := m.sender.SendToolResult(ctx, m.threadID, m.runID, msg); err != nil {
		m.logger.Error(ctx, "agui: failed to send tool result", "tool_call_id", toolCallID, "error", err)
	}
}
