// Package verify implements the Protocol's state machine: it accepts the
// decoded event stream one record at a time and fails fast the moment an
// event would put a run into an illegal state. The verifier never repairs or
// drops an event; a violation terminates the stream.
package verify

import (
	"fmt"

	"github.com/Contextable/ag-ui-4k-sub001/event"
)

// Error reports a Protocol violation. The stream must not be fed further
// events once an Error is returned; the verifier's state is no longer
// trustworthy.
type Error struct {
	Message string
}

func (e *Error) Error() string { return "agui: protocol violation: " + e.Message }

func violation(format string, args ...any) error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// Verifier is a single-run instance of the Protocol's finite state machine.
// It is not safe for concurrent use: a run has exactly one pipeline and the
// verifier is owned exclusively by it.
type Verifier struct {
	firstEventSeen  bool
	runFinished     bool
	runErrored      bool
	activeMessageID string
	activeToolCall  string
	activeSteps     map[string]struct{}
}

// New returns a Verifier ready to accept the first event of a run.
func New() *Verifier {
	return &Verifier{activeSteps: make(map[string]struct{})}
}

// Accept validates one decoded event against the current state and, if
// legal, advances the state machine. It returns a *Error describing the
// violated rule on failure; the caller must treat the stream as terminated
// at that point.
func (v *Verifier) Accept(e event.Event) error {
	if v.runErrored {
		return violation("no events after RUN_ERROR")
	}
	if v.runFinished && e.Kind() != event.TypeRunError {
		return violation("events after RUN_FINISHED")
	}

	if !v.firstEventSeen {
		switch e.Kind() {
		case event.TypeRunStarted, event.TypeRunError:
			v.firstEventSeen = true
		default:
			return violation("first event must be RUN_STARTED or RUN_ERROR, got %q", e.Kind())
		}
	} else if e.Kind() == event.TypeRunStarted {
		return violation("duplicate RUN_STARTED")
	}

	if err := v.checkActiveMessage(e); err != nil {
		return err
	}
	if err := v.checkActiveToolCall(e); err != nil {
		return err
	}

	switch ev := e.(type) {
	case *event.RunError:
		v.runErrored = true
	case *event.RunFinished:
		if len(v.activeSteps) > 0 {
			return violation("unfinished steps: %s", joinSteps(v.activeSteps))
		}
		v.runFinished = true
	case *event.TextMessageStart:
		if v.activeMessageID != "" {
			return violation("TEXT_MESSAGE_START while message %q is active", v.activeMessageID)
		}
		v.activeMessageID = ev.MessageID
	case *event.TextMessageEnd:
		v.activeMessageID = ""
	case *event.ToolCallStart:
		if v.activeToolCall != "" {
			return violation("TOOL_CALL_START while tool call %q is active", v.activeToolCall)
		}
		v.activeToolCall = ev.ToolCallID
	case *event.ToolCallEnd:
		v.activeToolCall = ""
	case *event.StepStarted:
		if _, active := v.activeSteps[ev.StepName]; active {
			return violation("STEP_STARTED for already-active step %q", ev.StepName)
		}
		v.activeSteps[ev.StepName] = struct{}{}
	case *event.StepFinished:
		if _, active := v.activeSteps[ev.StepName]; !active {
			return violation("STEP_FINISHED for unknown step %q", ev.StepName)
		}
		delete(v.activeSteps, ev.StepName)
	}

	return nil
}

// checkActiveMessage enforces rule 4 and 6: while a message is active, only
// content/end events addressed to it, or RAW, may occur.
func (v *Verifier) checkActiveMessage(e event.Event) error {
	if v.activeMessageID == "" {
		return nil
	}
	switch ev := e.(type) {
	case *event.TextMessageContent:
		if ev.MessageID != v.activeMessageID {
			return violation("message id mismatch: active %q, got %q", v.activeMessageID, ev.MessageID)
		}
	case *event.TextMessageEnd:
		if ev.MessageID != v.activeMessageID {
			return violation("message id mismatch: active %q, got %q", v.activeMessageID, ev.MessageID)
		}
	case *event.Raw:
		// always legal
	default:
		return violation("Cannot send event type '%s' after 'TEXT_MESSAGE_START'", e.Kind())
	}
	return nil
}

// checkActiveToolCall enforces rule 5 and 7: while a tool call is active,
// only args/end events addressed to it, or RAW, may occur.
func (v *Verifier) checkActiveToolCall(e event.Event) error {
	if v.activeToolCall == "" {
		return nil
	}
	switch ev := e.(type) {
	case *event.ToolCallArgs:
		if ev.ToolCallID != v.activeToolCall {
			return violation("tool call id mismatch: active %q, got %q", v.activeToolCall, ev.ToolCallID)
		}
	case *event.ToolCallEnd:
		if ev.ToolCallID != v.activeToolCall {
			return violation("tool call id mismatch: active %q, got %q", v.activeToolCall, ev.ToolCallID)
		}
	case *event.Raw:
	default:
		return violation("Cannot send event type '%s' after 'TOOL_CALL_START'", e.Kind())
	}
	return nil
}

func joinSteps(steps map[string]struct{}) string {
	out := ""
	for name := range steps {
		if out != "" {
			out += ", "
		}
		out += name
	}
	return out
}
