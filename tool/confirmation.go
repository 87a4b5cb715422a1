package tool

import (
	"context"
	"encoding/json"
)

const ConfirmationToolName = "user_confirmation"

type (
	// ConfirmationRequest describes what the host should ask the user to
	// confirm.
	ConfirmationRequest struct {
		Prompt string `json:"prompt"`
	}

	// ConfirmationResponse is the tool's output: whether the user
	// confirmed, and an optional reason (typically populated on decline).
	ConfirmationResponse struct {
		Confirmed bool   `json:"confirmed"`
		Reason    string `json:"reason,omitempty"`
	}

	// ConfirmationHandler is supplied by the host. It suspends until the
	// user resolves the confirmation or ctx is canceled (run cancellation),
	// in which case it must return ctx.Err() promptly.
	ConfirmationHandler func(ctx context.Context, req ConfirmationRequest) (ConfirmationResponse, error)

	confirmationExecutor struct {
		handler ConfirmationHandler
	}
)

// NewConfirmationSpec returns the Spec for the built-in user_confirmation
// tool: a single required "prompt" string argument.
func NewConfirmationSpec() (*Spec, error) {
	schema := json.RawMessage(`{
		"type": "object",
		"properties": {"prompt": {"type": "string"}},
		"required": ["prompt"]
	}`)
	return NewSpec(ConfirmationToolName, "Ask the user to confirm or decline an action.", schema)
}

// NewConfirmationExecutor wraps a host-supplied ConfirmationHandler as an
// Executor suitable for registration under ConfirmationToolName. Execute
// suspends on the handler and is cancellable through CallContext.Context:
// when the run is canceled, the pending confirmation is aborted and Execute
// returns an error rather than hanging indefinitely.
func NewConfirmationExecutor(handler ConfirmationHandler) Executor {
	return confirmationExecutor{handler: handler}
}

func (e confirmationExecutor) Execute(cc CallContext) (Result, error) {
	var req ConfirmationRequest
	if err := json.Unmarshal([]byte(cc.ArgumentsJSON), &req); err != nil {
		return Result{}, err
	}

	resp, err := e.handler(cc.Context, req)
	if err != nil {
		return Result{}, err
	}

	return Result{Success: true, Result: resp}, nil
}
