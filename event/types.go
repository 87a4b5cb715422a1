// Package event defines the wire-level event and message model for the
// Protocol. Events are a tagged union of 16 variants describing run
// lifecycle, streaming text, tool-call deltas, and state mutations. All
// concrete event types embed Base, which carries the fields common to every
// variant; each type reports its discriminator through Kind.
//
// Concrete event types are immutable once constructed and safe to pass
// between goroutines. Encoding and decoding live in codec.go.
package event

import "encoding/json"

// Type identifies one of the 16 event variants by its wire discriminator.
// Wire values are SCREAMING_SNAKE_CASE; Go constants spell out the variant
// name for readability at call sites.
type Type string

// The 16 Protocol event variants, grouped by category.
const (
	TypeRunStarted   Type = "RUN_STARTED"
	TypeRunFinished  Type = "RUN_FINISHED"
	TypeRunError     Type = "RUN_ERROR"
	TypeStepStarted  Type = "STEP_STARTED"
	TypeStepFinished Type = "STEP_FINISHED"

	TypeTextMessageStart   Type = "TEXT_MESSAGE_START"
	TypeTextMessageContent Type = "TEXT_MESSAGE_CONTENT"
	TypeTextMessageEnd     Type = "TEXT_MESSAGE_END"

	TypeToolCallStart Type = "TOOL_CALL_START"
	TypeToolCallArgs  Type = "TOOL_CALL_ARGS"
	TypeToolCallEnd   Type = "TOOL_CALL_END"

	TypeStateSnapshot   Type = "STATE_SNAPSHOT"
	TypeStateDelta      Type = "STATE_DELTA"
	TypeMessageSnapshot Type = "MESSAGES_SNAPSHOT"

	TypeRaw    Type = "RAW"
	TypeCustom Type = "CUSTOM"
)

// Role is a message participant role. The wire form is always lowercase.
type Role string

const (
	RoleDeveloper Role = "developer"
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
	RoleTool      Role = "tool"
)

type (
	// Event is implemented by every concrete event variant. Subscribers use
	// Kind to route without a type switch when they only need the
	// discriminator, and type-assert to the concrete struct for field access.
	Event interface {
		// Kind returns the wire discriminator for this event.
		Kind() Type
		// Meta returns the fields shared by every variant (timestamp, raw copy).
		Meta() Base
	}

	// Base carries the fields every event variant may populate regardless of
	// its discriminator: an optional wall-clock timestamp in epoch
	// milliseconds, and an optional verbatim copy of the record as received
	// on the wire (useful for debugging decode mismatches).
	Base struct {
		Timestamp *int64          `json:"timestamp,omitempty"`
		RawEvent  json.RawMessage `json:"raw_event,omitempty"`
	}

	// RunStarted opens a run. It is always legal as the first event, and is
	// the only variant (besides RunError) that may occupy that position.
	RunStarted struct {
		Base
		ThreadID string `json:"thread_id"`
		RunID    string `json:"run_id"`
	}

	// RunFinished closes a run successfully. At most one of RunFinished and
	// RunError occurs per run, and whichever occurs is the final event.
	RunFinished struct {
		Base
		ThreadID string `json:"thread_id"`
		RunID    string `json:"run_id"`
	}

	// RunError reports a run-terminating failure. It may appear as the very
	// first event (the run never really started) or as the terminal event of
	// an otherwise in-progress run.
	RunError struct {
		Base
		Message string `json:"message"`
		Code    string `json:"code,omitempty"`
	}

	// StepStarted opens a named logical step within a run. Steps may overlap;
	// the verifier tracks the set of currently active step names.
	StepStarted struct {
		Base
		StepName string `json:"step_name"`
	}

	// StepFinished closes a named step previously opened by StepStarted.
	StepFinished struct {
		Base
		StepName string `json:"step_name"`
	}

	// TextMessageStart opens a new assistant (by default) text message.
	// While a message is active, only TextMessageContent/End for the same
	// id, or RAW, are legal.
	TextMessageStart struct {
		Base
		MessageID string `json:"message_id"`
		Role      Role   `json:"role,omitempty"`
	}

	// textMessageStartWire is the encode-time shape for TextMessageStart: the
	// default role ("assistant") is treated as absent so encoding only ever
	// emits Role when it diverges from the default, per the Protocol's
	// "only non-default fields" encoding rule.
	textMessageStartWire struct {
		Base
		MessageID string `json:"message_id"`
		Role      Role   `json:"role,omitempty"`
	}

	// TextMessageContent appends Delta to the active message's content.
	TextMessageContent struct {
		Base
		MessageID string `json:"message_id"`
		Delta     string `json:"delta"`
	}

	// TextMessageEnd closes the active message.
	TextMessageEnd struct {
		Base
		MessageID string `json:"message_id"`
	}

	// ToolCallStart opens a new tool call. ParentMessageID optionally
	// identifies the assistant message the call is attached to; when absent
	// or when the active message does not match, the reducer starts a fresh
	// assistant message to host the call.
	ToolCallStart struct {
		Base
		ToolCallID      string `json:"tool_call_id"`
		ToolCallName    string `json:"tool_call_name"`
		ParentMessageID string `json:"parent_message_id,omitempty"`
	}

	// ToolCallArgs appends Delta to the active tool call's accumulated,
	// JSON-serialised arguments string.
	ToolCallArgs struct {
		Base
		ToolCallID string `json:"tool_call_id"`
		Delta      string `json:"delta"`
	}

	// ToolCallEnd closes the active tool call. The mediator acts on this
	// event to dispatch execution.
	ToolCallEnd struct {
		Base
		ToolCallID string `json:"tool_call_id"`
	}

	// StateSnapshot wholesale-replaces the projection's state value.
	StateSnapshot struct {
		Base
		Snapshot json.RawMessage `json:"snapshot"`
	}

	// StateDelta applies an RFC 6902 JSON Patch document to the projection's
	// state. Decode accepts either a JSON array of patch operation objects
	// or (for forward compatibility with older producers) the same shape
	// wrapped in a string-encoded form; encode always emits the canonical
	// array-of-objects shape.
	StateDelta struct {
		Base
		Delta json.RawMessage `json:"delta"`
	}

	// MessagesSnapshot wholesale-replaces the projection's message list.
	MessagesSnapshot struct {
		Base
		Messages []Message `json:"messages"`
	}

	// Raw carries an opaque, transport-defined event that has no typed
	// representation in the Protocol. Source optionally names the origin
	// (for example, a provider-specific debug channel).
	Raw struct {
		Base
		RawPayload json.RawMessage `json:"event"`
		Source     string          `json:"source,omitempty"`
	}

	// Custom carries an application-defined, named payload. The Protocol
	// uses the reserved Name "PredictState" to install predictive-state
	// configuration in the reducer; all other names are opaque to the core.
	Custom struct {
		Base
		Name  string          `json:"name"`
		Value json.RawMessage `json:"value,omitempty"`
	}
)

func (e RunStarted) Kind() Type        { return TypeRunStarted }
func (e RunFinished) Kind() Type       { return TypeRunFinished }
func (e RunError) Kind() Type          { return TypeRunError }
func (e StepStarted) Kind() Type       { return TypeStepStarted }
func (e StepFinished) Kind() Type      { return TypeStepFinished }
func (e TextMessageStart) Kind() Type  { return TypeTextMessageStart }
func (e TextMessageContent) Kind() Type{ return TypeTextMessageContent }
func (e TextMessageEnd) Kind() Type    { return TypeTextMessageEnd }
func (e ToolCallStart) Kind() Type     { return TypeToolCallStart }
func (e ToolCallArgs) Kind() Type      { return TypeToolCallArgs }
func (e ToolCallEnd) Kind() Type       { return TypeToolCallEnd }
func (e StateSnapshot) Kind() Type     { return TypeStateSnapshot }
func (e StateDelta) Kind() Type        { return TypeStateDelta }
func (e MessagesSnapshot) Kind() Type  { return TypeMessageSnapshot }
func (e Raw) Kind() Type               { return TypeRaw }
func (e Custom) Kind() Type            { return TypeCustom }

func (e RunStarted) Meta() Base         { return e.Base }
func (e RunFinished) Meta() Base        { return e.Base }
func (e RunError) Meta() Base           { return e.Base }
func (e StepStarted) Meta() Base        { return e.Base }
func (e StepFinished) Meta() Base       { return e.Base }
func (e TextMessageStart) Meta() Base   { return e.Base }
func (e TextMessageContent) Meta() Base { return e.Base }
func (e TextMessageEnd) Meta() Base     { return e.Base }
func (e ToolCallStart) Meta() Base      { return e.Base }
func (e ToolCallArgs) Meta() Base       { return e.Base }
func (e ToolCallEnd) Meta() Base        { return e.Base }
func (e StateSnapshot) Meta() Base      { return e.Base }
func (e StateDelta) Meta() Base         { return e.Base }
func (e MessagesSnapshot) Meta() Base   { return e.Base }
func (e Raw) Meta() Base                { return e.Base }
func (e Custom) Meta() Base             { return e.Base }
