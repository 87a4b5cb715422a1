package tool

import (
	"context"
	"sync"
	"time"
)

type (
	// CallContext is the execution context handed to an Executor. It never
	// outlives the tool call it describes.
	CallContext struct {
		Context    context.Context
		ThreadID   string
		RunID      string
		ToolCallID string
		ToolName   string
		// ArgumentsJSON is the fully accumulated, validated call arguments.
		ArgumentsJSON string
	}

	// Result is the outcome of one tool execution, serialised as the
	// content of the tool message sent back to the agent.
	Result struct {
		Success bool   `json:"success"`
		Result  any    `json:"result,omitempty"`
		Error   string `json:"error,omitempty"`
	}

	// Executor runs a registered tool's logic and is cancellable: when the
	// call context is canceled (run cancellation), Execute must return
	// promptly rather than leak work past the suspension point.
	Executor interface {
		Execute(cc CallContext) (Result, error)
	}

	// ExecutorFunc adapts a plain function to the Executor interface.
	ExecutorFunc func(cc CallContext) (Result, error)

	// registration pairs a Spec with its Executor and optional execution
	// deadline.
	registration struct {
		spec            *Spec
		executor        Executor
		maxExecution    time.Duration
	}

	// Registry is a read-only-after-construction mapping from tool name to
	// executor. It is safe for concurrent reads from multiple run
	// pipelines; registration is intended to happen once at startup but is
	// also safe to call concurrently and is idempotent on name.
	Registry struct {
		mu    sync.RWMutex
		tools map[string]registration
	}
)

func (f ExecutorFunc) Execute(cc CallContext) (Result, error) { return f(cc) }

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]registration)}
}

// Register adds or replaces the executor for spec.Name. Registration is
// idempotent on name: registering the same name again overwrites the prior
// registration rather than erroring, so hosts can redefine tools during
// development without restarting.
func (r *Registry) Register(spec *Spec, executor Executor, maxExecutionTime time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[spec.Name] = registration{spec: spec, executor: executor, maxExecution: maxExecutionTime}
}

// Lookup returns the spec and executor registered for name, if any.
func (r *Registry) Lookup(name string) (*Spec, Executor, time.Duration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.tools[name]
	if !ok {
		return nil, nil, 0, false
	}
	return reg.spec, reg.executor, reg.maxExecution, true
}

// Specs returns the Spec of every registered tool, in no particular order.
// The facade turns each into its wire advertisement for RunInput.Tools.
func (r *Registry) Specs() []*Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Spec, 0, len(r.tools))
	for _, reg := range r.tools {
		out = append(out, reg.spec)
	}
	return out
}
