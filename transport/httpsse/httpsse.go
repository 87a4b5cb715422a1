// Package httpsse implements transport.Transport over HTTP POST with a
// server-sent-events response body. It is the default, production-shaped
// transport: the Protocol's core treats it as an external collaborator
// whose interface (transport.Transport) is pinned, not mandated, so callers
// may substitute their own implementation.
package httpsse

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Contextable/ag-ui-4k-sub001/decode"
	"github.com/Contextable/ag-ui-4k-sub001/event"
	"github.com/Contextable/ag-ui-4k-sub001/transport"
)

type (
	// Client is a transport.Transport backed by net/http. The underlying
	// *http.Client is safe for concurrent use across runs, matching the
	// Protocol's shared-resource policy.
	Client struct {
		url      string
		http     *http.Client
		timeouts transport.Timeouts
		retry    transport.RetryPolicy
		decoder  *decode.Decoder
	}

	// Option configures a Client at construction time.
	Option func(*Client)
)

// WithTimeouts overrides the default connect/request/read timeouts.
func WithTimeouts(t transport.Timeouts) Option {
	return func(c *Client) { c.timeouts = t }
}

// WithRetryPolicy overrides the default exponential backoff policy.
func WithRetryPolicy(p transport.RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

// WithHTTPClient overrides the underlying *http.Client, for example to
// inject a custom RoundTripper for testing or mTLS.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithDecoder overrides the event decoder (for example, to supply a
// Logger).
func WithDecoder(d *decode.Decoder) Option {
	return func(c *Client) { c.decoder = d }
}

// NewClient constructs a Client posting runs to url.
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:      url,
		timeouts: transport.DefaultTimeouts(),
		retry:    transport.NewExponentialBackoff(),
		decoder:  decode.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{
			Timeout:   c.timeouts.Request,
			Transport: &http.Transport{ResponseHeaderTimeout: c.timeouts.Connect},
		}
	}
	return c
}

// StartRun posts input and returns a streaming Session. Connection
// establishment is retried per the configured RetryPolicy; once the first
// byte of the response has been read and parsing has begun, StartRun never
// retries internally again.
func (c *Client) StartRun(ctx context.Context, input event.RunInput, headers map[string]string) (transport.Session, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts(); attempt++ {
		resp, err := c.post(ctx, input, headers)
		if err == nil {
			return c.newSession(ctx, resp), nil
		}
		lastErr = err
		if !c.retry.ShouldRetry(err, attempt) {
			if attempt < c.retry.MaxAttempts() {
				// The policy declined a non-retryable failure; it was not exhausted.
				return nil, err
			}
			break
		}
		select {
		case <-time.After(c.retry.Delay(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, &transport.Error{Kind: transport.ErrorExhausted, Cause: lastErr}
}

// post sends one request on ctx, which bounds the entire call including the
// response body stream for as long as the caller keeps reading it. The
// connect phase (up to response headers) is separately bounded by the
// client's Transport.ResponseHeaderTimeout, which — unlike a context
// deadline — stops applying once headers arrive and does not truncate the
// subsequent SSE stream.
func (c *Client) post(ctx context.Context, input event.RunInput, headers map[string]string) (*http.Response, error) {
	body, err := json.Marshal(normalizeRunInput(input))
	if err != nil {
		return nil, &transport.Error{Kind: transport.ErrorConnect, Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, &transport.Error{Kind: transport.ErrorConnect, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, &transport.Error{Kind: transport.ErrorTimeout, Cause: err}
		}
		return nil, &transport.Error{Kind: transport.ErrorConnect, Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		resp.Body.Close()
		return nil, &transport.Error{Kind: transport.ErrorHTTP, Status: resp.StatusCode, Body: string(respBody)}
	}

	return resp, nil
}

// isTimeout reports whether err (as returned by http.Client.Do) represents a
// deadline/timeout rather than a connection failure.
func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// normalizeRunInput ensures empty-but-present collections serialize as
// stable [] / {} shapes rather than null, per the Protocol's wire contract.
func normalizeRunInput(in event.RunInput) event.RunInput {
	if in.Messages == nil {
		in.Messages = []event.Message{}
	}
	if in.Tools == nil {
		in.Tools = []event.Tool{}
	}
	if in.Context == nil {
		in.Context = []event.ContextEntry{}
	}
	if len(in.State) == 0 {
		in.State = json.RawMessage("{}")
	}
	if len(in.ForwardedProps) == 0 {
		in.ForwardedProps = json.RawMessage("{}")
	}
	return in
}

type session struct {
	client *Client
	resp   *http.Response

	eventsCh chan event.Event
	errCh    chan error

	mu     sync.Mutex
	active bool
	cancel context.CancelFunc
}

func (c *Client) newSession(ctx context.Context, resp *http.Response) *session {
	runCtx, cancel := context.WithCancel(ctx)
	s := &session{
		client:   c,
		resp:     resp,
		eventsCh: make(chan event.Event, 16),
		errCh:    make(chan error, 1),
		active:   true,
		cancel:   cancel,
	}
	go s.pump(runCtx)
	return s
}

func (s *session) pump(ctx context.Context) {
	defer close(s.eventsCh)
	defer close(s.errCh)
	defer s.resp.Body.Close()
	defer s.setInactive()

	records := newSSEScanner(s.resp.Body, http.NewResponseController(s.resp), s.client.timeouts.SocketRead)
	for {
		raw, ok, err := records.Next(ctx)
		if err != nil {
			s.errCh <- &transport.Error{Kind: transport.ErrorTimeout, Cause: err}
			return
		}
		if !ok {
			s.errCh <- nil
			return
		}
		ev, decoded := s.client.decoder.Decode(ctx, raw)
		if !decoded {
			continue
		}
		select {
		case s.eventsCh <- ev:
		case <-ctx.Done():
			s.errCh <- ctx.Err()
			return
		}
		if k := ev.Kind(); k == event.TypeRunFinished || k == event.TypeRunError {
			s.errCh <- nil
			return
		}
	}
}

func (s *session) setInactive() {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
}

func (s *session) Events() <-chan event.Event { return s.eventsCh }
func (s *session) Errors() <-chan error       { return s.errCh }

func (s *session) SendMessage(ctx context.Context, input event.RunInput) error {
	resp, err := s.client.post(ctx, input, nil)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func (s *session) Close() error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil
	}
	s.active = false
	s.mu.Unlock()
	s.cancel()
	return nil
}

func (s *session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// sseScanner frames a raw byte stream into complete SSE records, yielding
// the concatenated "data:" payload for each event (one JSON record per
// Protocol event, as the wire format requires).
type sseScanner struct {
	scanner     *bufio.Scanner
	rc          *http.ResponseController
	idleTimeout time.Duration
}

func newSSEScanner(r io.Reader, rc *http.ResponseController, idleTimeout time.Duration) *sseScanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	return &sseScanner{scanner: sc, rc: rc, idleTimeout: idleTimeout}
}

// setDeadline extends the read deadline ahead of the next read, bounding the
// gap between two consecutive bytes without bounding the stream as a whole.
// Ignored when the underlying connection doesn't support deadlines (e.g. a
// fake transport used in tests).
func (s *sseScanner) setDeadline() {
	if s.idleTimeout <= 0 {
		return
	}
	_ = s.rc.SetReadDeadline(time.Now().Add(s.idleTimeout))
}

func (s *sseScanner) Next(ctx context.Context) ([]byte, bool, error) {
	var data []string
	for {
		s.setDeadline()
		if !s.scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		line := s.scanner.Text()
		if line == "" {
			if len(data) > 0 {
				return []byte(strings.Join(data, "\n")), true, nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue // comment/heartbeat
		}
		if payload, found := strings.CutPrefix(line, "data:"); found {
			data = append(data, strings.TrimPrefix(payload, " "))
		}
	}
	if err := s.scanner.Err(); err != nil {
		return nil, false, err
	}
	if len(data) > 0 {
		return []byte(strings.Join(data, "\n")), true, nil
	}
	return nil, false, nil
}
