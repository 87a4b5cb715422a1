package transport

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/Contextable/ag-ui-4k-sub001/event"
)

// RateLimited wraps a Transport with a process-local token bucket bounding
// how often StartRun and SendMessage may issue a new HTTP request. Unlike a
// provider-facing model client, the core has no token-cost model for a run
// (messages are opaque to it), so the limiter budgets requests rather than
// estimated tokens: one StartRun or SendMessage call costs exactly one
// token, the same shape as the teacher's AdaptiveRateLimiter but without the
// AIMD backoff loop, since there is no provider rate-limit signal to react
// to at this layer — that belongs to whatever sits behind the endpoint URL.
type RateLimited struct {
	next    Transport
	limiter *rate.Limiter
}

// NewRateLimited wraps next with a limiter allowing up to burst requests
// immediately and refilling at ratePerSecond thereafter.
func NewRateLimited(next Transport, ratePerSecond float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

// StartRun waits for limiter capacity, then delegates to the wrapped
// Transport. A canceled ctx aborts the wait without consuming a token.
func (r *RateLimited) StartRun(ctx context.Context, input event.RunInput, headers map[string]string) (Session, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, &Error{Kind: ErrorConnect, Cause: err}
	}
	sess, err := r.next.StartRun(ctx, input, headers)
	if err != nil {
		return nil, err
	}
	return rateLimitedSession{Session: sess, limiter: r.limiter}, nil
}

// rateLimitedSession wraps a Session so its SendMessage calls are also
// bounded by the owning Transport's limiter, matching StartRun.
type rateLimitedSession struct {
	Session
	limiter *rate.Limiter
}

func (s rateLimitedSession) SendMessage(ctx context.Context, input event.RunInput) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return &Error{Kind: ErrorConnect, Cause: err}
	}
	return s.Session.SendMessage(ctx, input)
}
