// Package transport defines the abstract post-and-stream contract the core
// depends on. The actual HTTP/SSE engine is an external collaborator whose
// interface is pinned here; package httpsse provides a concrete
// implementation, but callers may substitute their own (a fake for tests, a
// WebSocket-backed transport, etc.) as long as it satisfies Transport.
package transport

import (
	"context"
	"time"

	"github.com/Contextable/ag-ui-4k-sub001/event"
)

type (
	// Transport opens sessions against a remote agent endpoint. A Transport
	// is process-wide and shared across concurrent runs; implementations
	// must be safe for concurrent use.
	Transport interface {
		// StartRun posts input and returns a live Session streaming the
		// response. StartRun itself may retry according to the configured
		// RetryPolicy before the caller sees a result.
		StartRun(ctx context.Context, input event.RunInput, headers map[string]string) (Session, error)
	}

	// Session is a live connection bound to a single run. Events is
	// pull-based: consumption rate bounds the transport's read rate.
	Session interface {
		// Events returns the decoded event channel for this session. The
		// channel is closed when the stream ends (server close, RUN_FINISHED,
		// RUN_ERROR, or cancellation); Errors reports the terminal cause.
		Events() <-chan event.Event
		// Errors reports the terminal error for this session's event
		// stream, if any. It is closed after Events is closed and will have
		// delivered at most one value (nil on a clean end).
		Errors() <-chan error
		// SendMessage posts a follow-up message to the agent on the same
		// thread/run (used by the tool mediator to return tool results).
		// SendMessage may retry per policy since no event has necessarily
		// been delivered yet on this specific send.
		SendMessage(ctx context.Context, input event.RunInput) error
		// Close terminates the session and releases its resources. Close is
		// idempotent. Closing cancels any in-flight read and causes Events
		// to close promptly.
		Close() error
		// Active reports whether the session's underlying connection is
		// still open.
		Active() bool
	}

	// RetryPolicy governs retries of connection establishment and explicit
	// follow-up sends. The Protocol never retries after a session has
	// delivered any event to the caller, and never retries 4xx or decode
	// failures.
	RetryPolicy interface {
		MaxAttempts() int
		ShouldRetry(err error, attempt int) bool
		Delay(attempt int) time.Duration
	}

	// Timeouts bundles the three independently configurable timeouts the
	// Protocol defines for long-lived streaming connections.
	Timeouts struct {
		// Request bounds the entire run, connect through stream close.
		Request time.Duration
		// Connect bounds the connect phase, up to the arrival of response
		// headers. httpsse applies it as the HTTP transport's response-header
		// timeout; it does not set a separate dial or TLS handshake timeout.
		Connect time.Duration
		// SocketRead bounds the gap between two consecutive bytes on the
		// response body once the connection is established.
		SocketRead time.Duration
	}
)

// DefaultTimeouts returns the Protocol's defaults: long request/read
// timeouts appropriate for streams that may run for minutes, and a short
// connect timeout.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Request:    10 * time.Minute,
		Connect:    30 * time.Second,
		SocketRead: 10 * time.Minute,
	}
}
