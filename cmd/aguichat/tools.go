package main

import (
	"github.com/Contextable/ag-ui-4k-sub001/tool"
)

// agentRegistry bundles the tool catalogue aguichat advertises to the
// agent. The only built-in tool is user_confirmation; hosts embedding the
// library would register their own alongside it, but a demonstration
// client has nothing else to offer.
type agentRegistry struct {
	*tool.Registry
}

// newRegistry wires the confirmation tool to handler, which the caller
// supplies as either the plain stdin prompt or the TUI's modal prompt.
func newRegistry(handler tool.ConfirmationHandler) (*agentRegistry, error) {
	reg := tool.NewRegistry()
	spec, err := tool.NewConfirmationSpec()
	if err != nil {
		return nil, err
	}
	reg.Register(spec, tool.NewConfirmationExecutor(handler), 0)
	return &agentRegistry{Registry: reg}, nil
}
