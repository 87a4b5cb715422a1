package transport

import (
	"errors"
	"math/rand"
	"time"
)

// ErrorKind classifies a transport failure for retry decisions and for the
// RUN_ERROR code surfaced to the host when retries are exhausted.
type ErrorKind string

const (
	ErrorConnect  ErrorKind = "TRANSPORT_CONNECT"
	ErrorTimeout  ErrorKind = "TRANSPORT_TIMEOUT"
	ErrorHTTP     ErrorKind = "TRANSPORT_HTTP"
	ErrorDecode   ErrorKind = "DECODE_ERROR"
	ErrorExhausted ErrorKind = "RETRY_EXHAUSTED"
)

// Error is a typed transport failure. Status and Body are populated only for
// ErrorHTTP.
type Error struct {
	Kind   ErrorKind
	Status int
	Body   string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return string(e.Kind) + ": " + e.Cause.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// ExponentialBackoff is the Protocol's default retry policy: exponential
// backoff with jitter, 3 attempts, retrying connect/timeout/5xx failures and
// never 4xx, decode errors, or sends after a session has delivered an event.
type ExponentialBackoff struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

// NewExponentialBackoff returns the default policy: 3 attempts, 250ms base
// delay doubling each attempt, capped at 5s, plus up to 20% jitter.
func NewExponentialBackoff() ExponentialBackoff {
	return ExponentialBackoff{Attempts: 3, Base: 250 * time.Millisecond, Max: 5 * time.Second}
}

func (p ExponentialBackoff) MaxAttempts() int { return p.Attempts }

func (p ExponentialBackoff) ShouldRetry(err error, attempt int) bool {
	if attempt >= p.Attempts {
		return false
	}
	var terr *Error
	if !errors.As(err, &terr) {
		return false
	}
	switch terr.Kind {
	case ErrorConnect, ErrorTimeout:
		return true
	case ErrorHTTP:
		return terr.Status >= 500
	default:
		return false
	}
}

func (p ExponentialBackoff) Delay(attempt int) time.Duration {
	d := p.Base << uint(attempt-1)
	if d > p.Max || d <= 0 {
		d = p.Max
	}
	jitter := time.Duration(rand.Int63n(int64(d) / 5 + 1))
	return d + jitter
}
