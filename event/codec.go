package event

import (
	"encoding/json"
	"fmt"
)

// envelope reads only the discriminator shared by every event. Decode first
// reads it to pick a concrete type, then unmarshals the full record into it.
type envelope struct {
	Type Type `json:"type"`
}

// DecodeError reports that a single record could not be decoded into a known
// event variant. The caller (typically the stream decoder) is expected to
// skip the offending record and continue; DecodeError is never fatal to the
// stream.
type DecodeError struct {
	Raw    []byte
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("event: decode error: %s", e.Reason)
}

// Decode parses one complete JSON record into its typed Event. Unknown
// discriminator values, malformed JSON, and structurally invalid records for
// a known discriminator all return a *DecodeError; callers should treat this
// as "drop this record" rather than a stream-ending failure.
func Decode(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &DecodeError{Raw: raw, Reason: err.Error()}
	}

	decodeInto := func(v Event) (Event, error) {
		if err := json.Unmarshal(raw, v); err != nil {
			return nil, &DecodeError{Raw: raw, Reason: err.Error()}
		}
		return v, nil
	}

	switch env.Type {
	case TypeRunStarted:
		return decodeInto(&RunStarted{})
	case TypeRunFinished:
		return decodeInto(&RunFinished{})
	case TypeRunError:
		return decodeInto(&RunError{})
	case TypeStepStarted:
		return decodeInto(&StepStarted{})
	case TypeStepFinished:
		return decodeInto(&StepFinished{})
	case TypeTextMessageStart:
		e := &TextMessageStart{Role: RoleAssistant}
		return decodeInto(e)
	case TypeTextMessageContent:
		return decodeInto(&TextMessageContent{})
	case TypeTextMessageEnd:
		return decodeInto(&TextMessageEnd{})
	case TypeToolCallStart:
		return decodeInto(&ToolCallStart{})
	case TypeToolCallArgs:
		return decodeInto(&ToolCallArgs{})
	case TypeToolCallEnd:
		return decodeInto(&ToolCallEnd{})
	case TypeStateSnapshot:
		return decodeInto(&StateSnapshot{})
	case TypeStateDelta:
		return decodeStateDelta(raw)
	case TypeMessageSnapshot:
		return decodeInto(&MessagesSnapshot{})
	case TypeRaw:
		return decodeInto(&Raw{})
	case TypeCustom:
		return decodeInto(&Custom{})
	case "":
		return nil, &DecodeError{Raw: raw, Reason: "missing discriminator field \"type\""}
	default:
		return nil, &DecodeError{Raw: raw, Reason: fmt.Sprintf("unknown event type %q", env.Type)}
	}
}

// stateDeltaWire mirrors StateDelta but accepts Delta encoded either as a
// JSON array of patch operations or as a JSON string containing the same
// array, per the open question in the design notes about producers that
// serialise StateDeltaEvent.delta inconsistently.
type stateDeltaWire struct {
	Base
	Delta json.RawMessage `json:"delta"`
}

func decodeStateDelta(raw []byte) (Event, error) {
	var w stateDeltaWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, &DecodeError{Raw: raw, Reason: err.Error()}
	}
	delta := w.Delta
	trimmed := jsonTrimSpace(delta)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var asString string
		if err := json.Unmarshal(delta, &asString); err != nil {
			return nil, &DecodeError{Raw: raw, Reason: "state delta: " + err.Error()}
		}
		delta = json.RawMessage(asString)
	}
	if !json.Valid(delta) {
		return nil, &DecodeError{Raw: raw, Reason: "state delta: patch is not valid JSON"}
	}
	return &StateDelta{Base: w.Base, Delta: delta}, nil
}

func jsonTrimSpace(b []byte) []byte {
	start := 0
	for start < len(b) {
		switch b[start] {
		case ' ', '\t', '\n', '\r':
			start++
			continue
		}
		break
	}
	return b[start:]
}

// MarshalJSON omits Role when it is the default "assistant", so encoding
// only ever carries Role when it diverges from the default.
func (e TextMessageStart) MarshalJSON() ([]byte, error) {
	w := textMessageStartWire{Base: e.Base, MessageID: e.MessageID, Role: e.Role}
	if w.Role == RoleAssistant {
		w.Role = ""
	}
	return json.Marshal(w)
}

// Encode serialises an Event to its wire JSON form: the discriminator plus
// only the non-null, non-default variant fields. Each concrete type's
// MarshalJSON (derived from its json tags) already implements this via
// omitempty; Encode adds the "type" discriminator that the struct tags do
// not carry.
func Encode(e Event) ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(body, &merged); err != nil {
		return nil, err
	}
	typeJSON, err := json.Marshal(e.Kind())
	if err != nil {
		return nil, err
	}
	merged["type"] = typeJSON
	return json.Marshal(merged)
}
