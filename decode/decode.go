// Package decode turns a sequence of complete JSON text records, as framed
// by the transport, into typed Protocol events. It is restartable: callers
// construct a fresh Decoder per run, and it never buffers across records —
// framing (splitting the byte stream on record boundaries) is the
// transport's responsibility.
package decode

import (
	"context"

	"github.com/Contextable/ag-ui-4k-sub001/event"
)

// Logger is the minimal structured logging surface the decoder needs to
// report skipped records without crashing the run.
type Logger interface {
	Warn(ctx context.Context, msg string, keyvals ...any)
}

// NoopLogger discards everything. Useful as a default when the host has no
// observability stack wired up.
type NoopLogger struct{}

func (NoopLogger) Warn(context.Context, string, ...any) {}

// Decoder decodes one run's worth of raw records into events. It holds no
// cross-record state: each call to Decode is independent, so a Decoder is
// safe to reuse across records within a run and cheap to discard between
// runs.
type Decoder struct {
	logger Logger
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithLogger installs the logger used to report skipped records.
func WithLogger(l Logger) Option {
	return func(d *Decoder) { d.logger = l }
}

// New constructs a Decoder. With no options, decode failures are silently
// dropped (NoopLogger).
func New(opts ...Option) *Decoder {
	d := &Decoder{logger: NoopLogger{}}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode parses one complete raw record. On success it returns the typed
// event. On failure — invalid JSON, or an unrecognised discriminator — it
// logs a warning and returns (nil, false): the caller should skip this
// record and continue with the next one; a single bad record never ends the
// stream.
func (d *Decoder) Decode(ctx context.Context, raw []byte) (event.Event, bool) {
	ev, err := event.Decode(raw)
	if err != nil {
		d.logger.Warn(ctx, "agui: dropping undecodable record", "error", err, "bytes", len(raw))
		return nil, false
	}
	return ev, true
}

// Records is a pull-based source of raw record bytes, one per server-sent
// datum. The transport implements this; the decoder consumes it.
type Records interface {
	// Next returns the next raw record, or ok=false when the stream has
	// ended (either cleanly or via err). Next must not be called again
	// after returning ok=false.
	Next(ctx context.Context) (raw []byte, ok bool, err error)
}

// Events lazily decodes a Records source into a channel of events, skipping
// undecodable records. The returned channel is closed when Records is
// exhausted; the returned error channel receives the terminal error from
// Records, if any (nil on clean end). Events does not buffer beyond the channel's capacity
// of 1, so a slow consumer backpressures the upstream Records source.
func (d *Decoder) Events(ctx context.Context, records Records) (<-chan event.Event, <-chan error) {
	out := make(chan event.Event, 1)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)
		for {
			raw, ok, err := records.Next(ctx)
			if err != nil {
				errc <- err
				return
			}
			if !ok {
				errc <- nil
				return
			}
			ev, decoded := d.Decode(ctx, raw)
			if !decoded {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
	}()

	return out, errc
}
