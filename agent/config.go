// Package agent composes the decode/verify/reduce/tool subsystems into the
// two entry points a host actually calls: a stateless Facade that builds a
// fresh turn per call, and a Stateful facade that layers per-thread history
// retention on top of it. Neither mode implements an agent; both only talk
// to one over a transport.Transport.
package agent

import (
	"encoding/json"
	"time"

	"github.com/Contextable/ag-ui-4k-sub001/event"
	"github.com/Contextable/ag-ui-4k-sub001/telemetry"
	"github.com/Contextable/ag-ui-4k-sub001/tool"
	"github.com/Contextable/ag-ui-4k-sub001/transport"
)

// Config enumerates every knob the Protocol defines for a facade instance.
type Config struct {
	// BearerToken, when set, is sent as "Authorization: Bearer <token>".
	// At most one of BearerToken and APIKey should be set.
	BearerToken string
	// APIKey, when set, is sent under APIKeyHeader.
	APIKey string
	// APIKeyHeader names the header APIKey is sent under. Defaults to
	// "X-API-Key".
	APIKeyHeader string
	// Headers are additional caller-supplied headers attached to every
	// outbound request, merged underneath the auth header.
	Headers map[string]string

	// SystemPrompt, when set, is prepended as a system message to every
	// fresh turn (stateless) or seeded once into a thread's history
	// (stateful).
	SystemPrompt string
	// UserID is the stable id assigned to user messages. When empty, a fresh
	// id is generated for each user message.
	UserID string

	// Debug is carried on the configuration; the facades do not read it,
	// and setting it does not change what is logged.
	Debug bool

	// ToolRegistry supplies the tool catalogue advertised to the agent and
	// the executors invoked when the agent calls them. Nil means no tools.
	ToolRegistry *tool.Registry

	// Context is free-form contextual information forwarded on every run.
	Context []event.ContextEntry
	// ForwardedProps is opaque JSON forwarded on every run.
	ForwardedProps json.RawMessage

	// RequestTimeout and ConnectTimeout are recorded on the configuration
	// (defaulting to transport.DefaultTimeouts). The facades do not pass them
	// to the transport; the transport's own timeouts bound HTTP behavior.
	RequestTimeout time.Duration
	ConnectTimeout time.Duration

	// MaxHistoryLength bounds the stateful facade's retained history,
	// trimming oldest non-system messages once exceeded. Zero means the
	// default of 100; negative disables trimming.
	MaxHistoryLength int

	Logger telemetry.Logger
	Tracer telemetry.Tracer
}

// normalized returns a copy of cfg with every documented default applied.
func (cfg Config) normalized() Config {
	if cfg.APIKeyHeader == "" {
		cfg.APIKeyHeader = "X-API-Key"
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = transport.DefaultTimeouts().Request
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = transport.DefaultTimeouts().Connect
	}
	if cfg.MaxHistoryLength == 0 {
		cfg.MaxHistoryLength = 100
	}
	if cfg.Logger == nil {
		cfg.Logger = telemetry.NoopLogger()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = telemetry.NoopTracer()
	}
	return cfg
}

// authHeaders returns the headers carrying authentication, per the
// Protocol's "exactly one of bearer or api key" rule.
func (cfg Config) authHeaders() map[string]string {
	headers := make(map[string]string, len(cfg.Headers)+1)
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	switch {
	case cfg.BearerToken != "":
		headers["Authorization"] = "Bearer " + cfg.BearerToken
	case cfg.APIKey != "":
		headers[cfg.APIKeyHeader] = cfg.APIKey
	}
	return headers
}
