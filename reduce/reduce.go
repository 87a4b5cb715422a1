// Package reduce folds a verified event stream into a running (messages,
// state) projection, mirroring the Protocol's required reducer semantics:
// message accumulation, tool-call argument accumulation, JSON-Patch state
// deltas, and predictive-state splicing of in-flight tool arguments.
//
// A Reducer is owned by exactly one run and is not safe for concurrent use.
// It is pure modulo its own mutable fields: given the same sequence of
// events it produces the same sequence of snapshots.
package reduce

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/Contextable/ag-ui-4k-sub001/event"
)

type (
	// Snapshot is an immutable view of the projection published after a
	// mutating event. Callers must not mutate its contents.
	Snapshot struct {
		Messages []event.Message
		State    json.RawMessage
		// MessagesChanged and StateChanged report which halves of the
		// projection this snapshot actually updated, so subscribers that
		// only care about one half can skip redundant work.
		MessagesChanged bool
		StateChanged    bool
	}

	// PredictStateRule configures one tool argument to splice into state
	// while its call is still streaming. StateKey names the destination
	// field in state; Tool names the tool call to watch; ToolArgument, when
	// set, names the single argument field to splice (otherwise the whole
	// parsed argument object is spliced).
	PredictStateRule struct {
		StateKey     string `json:"state_key"`
		Tool         string `json:"tool"`
		ToolArgument string `json:"tool_argument,omitempty"`
	}

	// PatchError reports that a STATE_DELTA event's JSON Patch failed to
	// apply. Per the Protocol, this is non-fatal: state is left unchanged
	// and the stream continues.
	PatchError struct {
		Cause error
	}

	// Reducer holds the mutable working projection (tool-call arguments
	// accumulate on the messages themselves) and the per-run predictive-state
	// config. It is constructed fresh for every run.
	Reducer struct {
		messages []event.Message
		state    json.RawMessage

		predictRules []PredictStateRule

		onPatchError func(*PatchError)
	}

	// Option configures a Reducer at construction time.
	Option func(*Reducer)
)

func (e *PatchError) Error() string {
	return fmt.Sprintf("reduce: state delta failed to apply: %v", e.Cause)
}

// WithPatchErrorHandler installs a callback invoked whenever a STATE_DELTA
// fails to apply. If omitted, patch errors are silently swallowed (state is
// still left unchanged, per the Protocol).
func WithPatchErrorHandler(fn func(*PatchError)) Option {
	return func(r *Reducer) { r.onPatchError = fn }
}

// WithInitialState seeds the projection's state before any events arrive.
func WithInitialState(state json.RawMessage) Option {
	return func(r *Reducer) {
		if len(state) > 0 {
			r.state = append(json.RawMessage(nil), state...)
		}
	}
}

// WithInitialMessages seeds the projection's message list before any events
// arrive.
func WithInitialMessages(msgs []event.Message) Option {
	return func(r *Reducer) {
		r.messages = append([]event.Message(nil), msgs...)
	}
}

// New constructs a Reducer with an empty projection: no messages, state
// "null".
func New(opts ...Option) *Reducer {
	r := &Reducer{state: json.RawMessage("null")}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Snapshot returns the current projection without mutating it.
func (r *Reducer) Snapshot() Snapshot {
	return Snapshot{
		Messages: append([]event.Message(nil), r.messages...),
		State:    append(json.RawMessage(nil), r.state...),
	}
}

// Apply folds one verified event into the projection. It returns the zero
// Snapshot and false for events that do not mutate the projection.
func (r *Reducer) Apply(e event.Event) (Snapshot, bool) {
	switch ev := e.(type) {
	case *event.TextMessageStart:
		content := ""
		r.messages = append(r.messages, event.Message{
			ID:      ev.MessageID,
			Role:    roleOrDefault(ev.Role),
			Content: &content,
		})
		return r.snapshotMessages(), true

	case *event.TextMessageContent:
		if n := len(r.messages); n > 0 {
			last := &r.messages[n-1]
			if last.Role == event.RoleAssistant && last.ID == ev.MessageID {
				extended := derefOr(last.Content, "") + ev.Delta
				last.Content = &extended
				return r.snapshotMessages(), true
			}
		}
		return Snapshot{}, false

	case *event.ToolCallStart:
		r.applyToolCallStart(ev)
		return r.snapshotMessages(), true

	case *event.ToolCallArgs:
		changed, statePredicted := r.applyToolCallArgs(ev)
		if !changed {
			return Snapshot{}, false
		}
		s := r.snapshotMessages()
		s.StateChanged = statePredicted
		return s, true

	case *event.StateSnapshot:
		r.state = append(json.RawMessage(nil), ev.Snapshot...)
		return r.snapshotState(), true

	case *event.StateDelta:
		if !r.applyStateDelta(ev) {
			return Snapshot{}, false
		}
		return r.snapshotState(), true

	case *event.MessagesSnapshot:
		r.messages = append([]event.Message(nil), ev.Messages...)
		return r.snapshotMessages(), true

	case *event.Custom:
		if ev.Name == "PredictState" {
			r.installPredictState(ev.Value)
			return Snapshot{}, false
		}
		return Snapshot{}, false

	case *event.StepFinished:
		r.predictRules = nil
		return Snapshot{}, false
	}

	return Snapshot{}, false
}

func (r *Reducer) applyToolCallStart(ev *event.ToolCallStart) {
	call := event.NewToolCall(ev.ToolCallID, ev.ToolCallName)

	if n := len(r.messages); n > 0 {
		last := &r.messages[n-1]
		if last.Role == event.RoleAssistant && ev.ParentMessageID != "" && last.ID == ev.ParentMessageID {
			last.ToolCalls = append(last.ToolCalls, call)
			return
		}
	}

	id := ev.ParentMessageID
	if id == "" {
		id = ev.ToolCallID
	}
	r.messages = append(r.messages, event.Message{
		ID:        id,
		Role:      event.RoleAssistant,
		ToolCalls: []event.ToolCall{call},
	})
}

func (r *Reducer) applyToolCallArgs(ev *event.ToolCallArgs) (changed bool, statePredicted bool) {
	tc, ok := r.findToolCall(ev.ToolCallID)
	if !ok {
		return false, false
	}
	tc.Function.Arguments += ev.Delta
	statePredicted = r.tryPredictState(ev.ToolCallID, tc.Function.Name, tc.Function.Arguments)
	return true, statePredicted
}

func (r *Reducer) findToolCall(id string) (*event.ToolCall, bool) {
	for i := range r.messages {
		calls := r.messages[i].ToolCalls
		for j := range calls {
			if calls[j].ID == id {
				return &r.messages[i].ToolCalls[j], true
			}
		}
	}
	return nil, false
}

// ApplyPatch applies an RFC 6902 JSON Patch document to state and returns
// the result. It is exposed standalone (outside of a Reducer) for callers
// that mirror STATE_DELTA events into storage they own, such as the
// stateful facade's per-thread history.
func ApplyPatch(state json.RawMessage, delta json.RawMessage) (json.RawMessage, error) {
	patch, err := jsonpatch.DecodePatch(delta)
	if err != nil {
		return nil, err
	}
	return patch.Apply(state)
}

func (r *Reducer) applyStateDelta(ev *event.StateDelta) bool {
	patch, err := jsonpatch.DecodePatch(ev.Delta)
	if err != nil {
		r.reportPatchError(err)
		return false
	}
	next, err := patch.Apply(r.state)
	if err != nil {
		r.reportPatchError(err)
		return false
	}
	r.state = next
	return true
}

func (r *Reducer) reportPatchError(cause error) {
	if r.onPatchError != nil {
		r.onPatchError(&PatchError{Cause: cause})
	}
}

// installPredictState parses the PredictState CUSTOM event's value, which is
// a JSON array of PredictStateRule objects.
func (r *Reducer) installPredictState(raw json.RawMessage) {
	var rules []PredictStateRule
	if err := json.Unmarshal(raw, &rules); err != nil {
		return
	}
	r.predictRules = rules
}

// tryPredictState attempts to splice the accumulated arguments of a
// streaming tool call into state, per any PredictState rule watching that
// tool. The accumulated buffer is parsed strictly as JSON; a mid-token
// delta (e.g. `{"body":"he`) is syntactically invalid and silently waits
// for more deltas, as the Protocol requires. It reports whether state was
// actually spliced, so callers can report StateChanged accurately.
func (r *Reducer) tryPredictState(_ string, toolName, argsJSON string) bool {
	if len(r.predictRules) == 0 {
		return false
	}
	parsed, ok := parsePartialArgs(argsJSON)
	if !ok {
		return false
	}
	spliced := false
	for _, rule := range r.predictRules {
		if rule.Tool != toolName {
			continue
		}
		var value json.RawMessage
		if rule.ToolArgument != "" {
			v, ok := parsed[rule.ToolArgument]
			if !ok {
				continue
			}
			value = v
		} else {
			whole, err := json.Marshal(parsed)
			if err != nil {
				continue
			}
			value = whole
		}
		r.state = spliceState(r.state, rule.StateKey, value)
		spliced = true
	}
	return spliced
}

// parsePartialArgs unmarshals a streaming tool call's accumulated arguments
// buffer. Partial or otherwise invalid JSON reports ok=false, leaving the
// caller to wait for the next delta; there is no repair attempt, per the
// Protocol's "invalid JSON during streaming silently waits" boundary.
func parsePartialArgs(argsJSON string) (map[string]json.RawMessage, bool) {
	var parsed map[string]json.RawMessage
	if err := json.Unmarshal([]byte(argsJSON), &parsed); err != nil {
		return nil, false
	}
	return parsed, true
}

// spliceState sets state[key] = value, treating a non-object current state
// as an empty object.
func spliceState(state json.RawMessage, key string, value json.RawMessage) json.RawMessage {
	obj := map[string]json.RawMessage{}
	_ = json.Unmarshal(state, &obj)
	if obj == nil {
		obj = map[string]json.RawMessage{}
	}
	obj[key] = value
	out, err := json.Marshal(obj)
	if err != nil {
		return state
	}
	return out
}

func (r *Reducer) snapshotMessages() Snapshot {
	s := r.Snapshot()
	s.MessagesChanged = true
	return s
}

func (r *Reducer) snapshotState() Snapshot {
	s := r.Snapshot()
	s.StateChanged = true
	return s
}

func roleOrDefault(role event.Role) event.Role {
	if role == "" {
		return event.RoleAssistant
	}
	return role
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
