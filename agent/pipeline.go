package agent

import (
	"context"
	"errors"

	"github.com/Contextable/ag-ui-4k-sub001/event"
	"github.com/Contextable/ag-ui-4k-sub001/reduce"
	"github.com/Contextable/ag-ui-4k-sub001/tool"
	"github.com/Contextable/ag-ui-4k-sub001/transport"
	"github.com/Contextable/ag-ui-4k-sub001/verify"
)

type (
	// RunHandle is the host-facing view of one run's pipeline: the verified
	// event stream exactly as received (the verifier only observes; it
	// never filters a legal event), and the reducer's snapshot stream for
	// hosts that want the projection instead of raw events.
	RunHandle struct {
		events    chan event.Event
		snapshots chan reduce.Snapshot
		mediator  *tool.Mediator
		session   transport.Session
		cancel    context.CancelFunc
		done      chan struct{}
	}

	sessionSender struct {
		session transport.Session
	}
)

// Events returns the verified event stream, in the order received from the
// server. Closed when the run ends.
func (h *RunHandle) Events() <-chan event.Event { return h.events }

// Snapshots returns the reducer's projection stream. Closed when the run
// ends.
func (h *RunHandle) Snapshots() <-chan reduce.Snapshot { return h.snapshots }

// Cancel terminates the run: closes the underlying session, which
// terminates the event stream and any in-flight tool executions and pending
// confirmations. Cancel blocks until the pipeline goroutine and all
// dispatched tool executions have finished.
func (h *RunHandle) Cancel() {
	h.cancel()
	if h.session != nil {
		_ = h.session.Close()
	}
	<-h.done
	h.mediator.Wait()
}

func (s sessionSender) SendToolResult(ctx context.Context, threadID, runID string, msg event.Message) error {
	return s.session.SendMessage(ctx, event.RunInput{
		ThreadID: threadID,
		RunID:    runID,
		Messages: []event.Message{msg},
	})
}

// runPipeline composes the verifier, reducer, and tool mediator over one
// session's event stream, per the Protocol's data-flow description: the
// verified stream forks into the reducer and the mediator, and the final
// event stream is exposed to the host verbatim.
func runPipeline(ctx context.Context, sess transport.Session, threadID, runID string, cfg Config) *RunHandle {
	runCtx, cancel := context.WithCancel(ctx)

	registry := cfg.ToolRegistry
	if registry == nil {
		registry = tool.NewRegistry()
	}

	v := verify.New()
	r := reduce.New(reduce.WithPatchErrorHandler(func(pe *reduce.PatchError) {
		cfg.Logger.Error(runCtx, "agui: state delta failed to apply", "error", pe.Error())
	}))
	mediator := tool.NewMediator(threadID, runID, registry, sessionSender{session: sess}, tool.WithLogger(cfg.Logger))

	h := &RunHandle{
		events:    make(chan event.Event, 16),
		snapshots: make(chan reduce.Snapshot, 16),
		mediator:  mediator,
		session:   sess,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	go func() {
		defer close(h.done)
		defer close(h.events)
		defer close(h.snapshots)

		violated := false
		for ev := range sess.Events() {
			if violated {
				continue
			}
			if err := v.Accept(ev); err != nil {
				h.events <- &event.RunError{Message: err.Error(), Code: "PROTOCOL_VIOLATION"}
				violated = true
				_ = sess.Close()
				continue
			}
			h.events <- ev
			if snap, changed := r.Apply(ev); changed {
				h.snapshots <- snap
			}
			mediator.Observe(runCtx, ev)
		}

		if violated {
			return
		}
		if err, ok := <-sess.Errors(); ok && err != nil {
			h.events <- translateTransportError(err)
		}
	}()

	return h
}

func translateTransportError(err error) *event.RunError {
	var terr *transport.Error
	if errors.As(err, &terr) {
		return &event.RunError{Message: terr.Error(), Code: string(terr.Kind)}
	}
	if errors.Is(err, context.Canceled) {
		return &event.RunError{Message: "run canceled", Code: "SESSION_CLOSED"}
	}
	return &event.RunError{Message: err.Error(), Code: "RUN_ERROR"}
}
