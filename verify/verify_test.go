package verify_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Contextable/ag-ui-4k-sub001/event"
	"github.com/Contextable/ag-ui-4k-sub001/verify"
)

func accept(t *testing.T, v *verify.Verifier, events ...event.Event) error {
	t.Helper()
	for _, e := range events {
		if err := v.Accept(e); err != nil {
			return err
		}
	}
	return nil
}

func TestHelloWorldSequenceIsLegal(t *testing.T) {
	v := verify.New()
	err := accept(t, v,
		&event.RunStarted{ThreadID: "t1", RunID: "r1"},
		&event.TextMessageStart{MessageID: "m1"},
		&event.TextMessageContent{MessageID: "m1", Delta: "Hello, "},
		&event.TextMessageContent{MessageID: "m1", Delta: "world!"},
		&event.TextMessageEnd{MessageID: "m1"},
		&event.RunFinished{ThreadID: "t1", RunID: "r1"},
	)
	require.NoError(t, err)
}

func TestFirstEventMustBeRunStartedOrRunError(t *testing.T) {
	v := verify.New()
	err := v.Accept(&event.TextMessageStart{MessageID: "m1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "first event")
}

func TestFirstEventRunErrorIsLegal(t *testing.T) {
	v := verify.New()
	err := v.Accept(&event.RunError{Message: "boom"})
	require.NoError(t, err)
}

func TestDuplicateRunStartedFails(t *testing.T) {
	v := verify.New()
	err := accept(t, v,
		&event.RunStarted{ThreadID: "t1", RunID: "r1"},
		&event.RunStarted{ThreadID: "t1", RunID: "r1"},
	)
	require.ErrorContains(t, err, "duplicate RUN_STARTED")
}

func TestNoEventsAfterRunFinished(t *testing.T) {
	v := verify.New()
	err := accept(t, v,
		&event.RunStarted{ThreadID: "t1", RunID: "r1"},
		&event.RunFinished{ThreadID: "t1", RunID: "r1"},
		&event.TextMessageStart{MessageID: "m1"},
	)
	require.ErrorContains(t, err, "events after RUN_FINISHED")
}

func TestNoEventsAfterRunError(t *testing.T) {
	v := verify.New()
	err := accept(t, v,
		&event.RunStarted{ThreadID: "t1", RunID: "r1"},
		&event.RunError{Message: "boom"},
		&event.RunFinished{ThreadID: "t1", RunID: "r1"},
	)
	require.ErrorContains(t, err, "no events after RUN_ERROR")
}

func TestRunErrorAfterRunErrorIsStillRejected(t *testing.T) {
	// Rule 1 takes priority: once errored, RUN_ERROR itself is also illegal again.
	v := verify.New()
	err := accept(t, v,
		&event.RunStarted{ThreadID: "t1", RunID: "r1"},
		&event.RunError{Message: "boom"},
		&event.RunError{Message: "again"},
	)
	require.ErrorContains(t, err, "no events after RUN_ERROR")
}

func TestProtocolViolationMessageMatchesScenario3(t *testing.T) {
	v := verify.New()
	err := accept(t, v,
		&event.RunStarted{ThreadID: "t1", RunID: "r1"},
		&event.TextMessageStart{MessageID: "m1"},
		&event.ToolCallStart{ToolCallID: "tc1", ToolCallName: "t"},
	)
	require.ErrorContains(t, err, "Cannot send event type 'TOOL_CALL_START' after 'TEXT_MESSAGE_START'")
}

func TestMessageIDMismatchFails(t *testing.T) {
	v := verify.New()
	err := accept(t, v,
		&event.RunStarted{ThreadID: "t1", RunID: "r1"},
		&event.TextMessageStart{MessageID: "m1"},
		&event.TextMessageContent{MessageID: "m2", Delta: "x"},
	)
	require.ErrorContains(t, err, "message id mismatch")
}

func TestToolCallIDMismatchFails(t *testing.T) {
	v := verify.New()
	err := accept(t, v,
		&event.RunStarted{ThreadID: "t1", RunID: "r1"},
		&event.ToolCallStart{ToolCallID: "tc1", ToolCallName: "echo"},
		&event.ToolCallArgs{ToolCallID: "tc2", Delta: "x"},
	)
	require.ErrorContains(t, err, "tool call id mismatch")
}

func TestSecondToolCallStartFails(t *testing.T) {
	v := verify.New()
	err := accept(t, v,
		&event.RunStarted{ThreadID: "t1", RunID: "r1"},
		&event.ToolCallStart{ToolCallID: "tc1", ToolCallName: "echo"},
		&event.ToolCallStart{ToolCallID: "tc2", ToolCallName: "echo2"},
	)
	require.Error(t, err)
}

func TestTextMessageStartWhileActiveFails(t *testing.T) {
	v := verify.New()
	err := accept(t, v,
		&event.RunStarted{ThreadID: "t1", RunID: "r1"},
		&event.TextMessageStart{MessageID: "m1"},
		&event.TextMessageStart{MessageID: "m2"},
	)
	require.Error(t, err)
}

func TestStepFinishedForUnknownStepFails(t *testing.T) {
	v := verify.New()
	err := accept(t, v,
		&event.RunStarted{ThreadID: "t1", RunID: "r1"},
		&event.StepFinished{StepName: "plan"},
	)
	require.ErrorContains(t, err, "unknown step")
}

func TestStepStartedTwiceFails(t *testing.T) {
	v := verify.New()
	err := accept(t, v,
		&event.RunStarted{ThreadID: "t1", RunID: "r1"},
		&event.StepStarted{StepName: "plan"},
		&event.StepStarted{StepName: "plan"},
	)
	require.ErrorContains(t, err, "already-active step")
}

func TestRunFinishedWithActiveStepFails(t *testing.T) {
	v := verify.New()
	err := accept(t, v,
		&event.RunStarted{ThreadID: "t1", RunID: "r1"},
		&event.StepStarted{StepName: "plan"},
		&event.RunFinished{ThreadID: "t1", RunID: "r1"},
	)
	require.ErrorContains(t, err, "unfinished steps")
}

func TestRawAlwaysLegalWhileMessageActive(t *testing.T) {
	v := verify.New()
	err := accept(t, v,
		&event.RunStarted{ThreadID: "t1", RunID: "r1"},
		&event.TextMessageStart{MessageID: "m1"},
		&event.Raw{RawPayload: []byte(`{}`)},
		&event.TextMessageEnd{MessageID: "m1"},
	)
	require.NoError(t, err)
}

func TestToolRoundtripSequenceIsLegal(t *testing.T) {
	v := verify.New()
	err := accept(t, v,
		&event.RunStarted{ThreadID: "t1", RunID: "r1"},
		&event.ToolCallStart{ToolCallID: "tc1", ToolCallName: "echo"},
		&event.ToolCallArgs{ToolCallID: "tc1", Delta: `{"x":1}`},
		&event.ToolCallEnd{ToolCallID: "tc1"},
		&event.RunFinished{ThreadID: "t1", RunID: "r1"},
	)
	require.NoError(t, err)
}
