package reduce_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Contextable/ag-ui-4k-sub001/event"
	"github.com/Contextable/ag-ui-4k-sub001/reduce"
)

func TestHelloWorldProjection(t *testing.T) {
	r := reduce.New()

	events := []event.Event{
		&event.TextMessageStart{MessageID: "m1"},
		&event.TextMessageContent{MessageID: "m1", Delta: "Hello, "},
		&event.TextMessageContent{MessageID: "m1", Delta: "world!"},
		&event.TextMessageEnd{MessageID: "m1"},
	}
	var last reduce.Snapshot
	for _, e := range events {
		if snap, changed := r.Apply(e); changed {
			last = snap
		}
	}

	require.Len(t, last.Messages, 1)
	require.Equal(t, "Hello, world!", *last.Messages[0].Content)
}

func TestToolCallStartsFreshMessageWithoutParent(t *testing.T) {
	r := reduce.New()
	r.Apply(&event.ToolCallStart{ToolCallID: "tc1", ToolCallName: "echo"})
	r.Apply(&event.ToolCallArgs{ToolCallID: "tc1", Delta: `{"x":1}`})
	snap := r.Snapshot()

	require.Len(t, snap.Messages, 1)
	require.Len(t, snap.Messages[0].ToolCalls, 1)
	require.Equal(t, "echo", snap.Messages[0].ToolCalls[0].Function.Name)
	require.Equal(t, `{"x":1}`, snap.Messages[0].ToolCalls[0].Function.Arguments)
}

func TestToolCallAttachesToMatchingParentMessage(t *testing.T) {
	r := reduce.New()
	r.Apply(&event.TextMessageStart{MessageID: "m1"})
	r.Apply(&event.TextMessageEnd{MessageID: "m1"})
	// The active message must still be last for attachment; simulate an
	// assistant message already present when the tool call starts.
	r.Apply(&event.ToolCallStart{ToolCallID: "tc1", ToolCallName: "echo", ParentMessageID: "m1"})

	snap := r.Snapshot()
	require.Len(t, snap.Messages, 1)
	require.Len(t, snap.Messages[0].ToolCalls, 1)
}

func TestStateSnapshotReplacesWholesale(t *testing.T) {
	r := reduce.New(reduce.WithInitialState(json.RawMessage(`{"old":true}`)))
	r.Apply(&event.StateSnapshot{Snapshot: json.RawMessage(`{"new":1}`)})
	snap := r.Snapshot()
	require.JSONEq(t, `{"new":1}`, string(snap.State))
}

func TestStateDeltaAppliesRFC6902(t *testing.T) {
	r := reduce.New(reduce.WithInitialState(json.RawMessage(`{"count":1,"items":["a","b"]}`)))
	ops := json.RawMessage(`[{"op":"replace","path":"/count","value":2},{"op":"add","path":"/items/2","value":"c"}]`)
	snap, changed := r.Apply(&event.StateDelta{Delta: ops})
	require.True(t, changed)
	require.JSONEq(t, `{"count":2,"items":["a","b","c"]}`, string(snap.State))
}

func TestStateDeltaFailureLeavesStateUnchangedAndReportsError(t *testing.T) {
	var reported *reduce.PatchError
	r := reduce.New(
		reduce.WithInitialState(json.RawMessage(`{"count":1}`)),
		reduce.WithPatchErrorHandler(func(pe *reduce.PatchError) { reported = pe }),
	)
	badOps := json.RawMessage(`[{"op":"replace","path":"/missing/deep","value":1}]`)
	_, changed := r.Apply(&event.StateDelta{Delta: badOps})
	require.False(t, changed)
	require.NotNil(t, reported)
	require.JSONEq(t, `{"count":1}`, string(r.Snapshot().State))
}

func TestMessagesSnapshotReplacesWholesale(t *testing.T) {
	r := reduce.New()
	r.Apply(&event.TextMessageStart{MessageID: "m1"})
	content := "fixed"
	r.Apply(&event.MessagesSnapshot{Messages: []event.Message{{ID: "m9", Role: event.RoleUser, Content: &content}}})
	snap := r.Snapshot()
	require.Len(t, snap.Messages, 1)
	require.Equal(t, "m9", snap.Messages[0].ID)
}

func TestPredictiveStateSplicesOnValidJSON(t *testing.T) {
	r := reduce.New()
	rules := json.RawMessage(`[{"state_key":"draft","tool":"write_doc","tool_argument":"body"}]`)
	r.Apply(&event.Custom{Name: "PredictState", Value: rules})

	r.Apply(&event.ToolCallStart{ToolCallID: "tc", ToolCallName: "write_doc"})
	// The first delta leaves mid-token JSON (`{"body":"he`), which is not
	// valid JSON yet, so predictive state must not populate "draft" early.
	midSnap, midChanged := r.Apply(&event.ToolCallArgs{ToolCallID: "tc", Delta: `{"body":"he`})
	require.True(t, midChanged)
	require.False(t, midSnap.StateChanged)
	require.JSONEq(t, `null`, string(r.Snapshot().State))

	snap, changed := r.Apply(&event.ToolCallArgs{ToolCallID: "tc", Delta: `llo"}`})
	require.True(t, changed)
	require.True(t, snap.StateChanged)
	require.JSONEq(t, `{"draft":"hello"}`, string(snap.State))
}

func TestPredictiveStateClearedOnStepFinished(t *testing.T) {
	r := reduce.New()
	rules := json.RawMessage(`[{"state_key":"draft","tool":"write_doc","tool_argument":"body"}]`)
	r.Apply(&event.Custom{Name: "PredictState", Value: rules})
	r.Apply(&event.StepFinished{StepName: "s"})

	r.Apply(&event.ToolCallStart{ToolCallID: "tc", ToolCallName: "write_doc"})
	r.Apply(&event.ToolCallArgs{ToolCallID: "tc", Delta: `{"body":"hello"}`})

	snap := r.Snapshot()
	require.JSONEq(t, `null`, string(snap.State))
}

func TestJSONPointerEncodeDecodeIsIdentity(t *testing.T) {
	segments := []string{"a/b", "c~d", "plain", ""}
	for _, s := range segments {
		require.Equal(t, s, reduce.DecodeSegment(reduce.EncodeSegment(s)))
	}
}

func TestJSONPointerEvaluate(t *testing.T) {
	doc := json.RawMessage(`{"a":{"b":[1,2,3]},"c~d":"escaped"}`)

	v, err := reduce.Evaluate(doc, "/a/b/1")
	require.NoError(t, err)
	require.Equal(t, "2", string(v))

	v, err = reduce.Evaluate(doc, "/"+reduce.EncodeSegment("c~d"))
	require.NoError(t, err)
	require.Equal(t, `"escaped"`, string(v))

	v, err = reduce.Evaluate(doc, "")
	require.NoError(t, err)
	require.JSONEq(t, string(doc), string(v))
}
