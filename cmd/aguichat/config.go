package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/Contextable/ag-ui-4k-sub001/agent"
	"github.com/Contextable/ag-ui-4k-sub001/transport"
	"github.com/Contextable/ag-ui-4k-sub001/transport/httpsse"
)

// options holds every flag aguichat accepts, bound with pflag the same way
// the example Claude Code-compatible CLI binds its options struct.
type options struct {
	Endpoint       string
	BearerToken    string
	APIKey         string
	APIKeyHeader   string
	SystemPrompt   string
	ThreadID       string
	RequestTimeout time.Duration
	ConnectTimeout time.Duration
	EnvFile        string
	Plain          bool
}

// applyFlags defines aguichat's flags on flags, mirroring the
// teacher-adjacent CLI's "one function wires every flag" layout.
func applyFlags(flags *pflag.FlagSet, opts *options) {
	flags.StringVar(&opts.Endpoint, "endpoint", os.Getenv("AGUI_ENDPOINT"), "Agent run endpoint URL (env AGUI_ENDPOINT)")
	flags.StringVar(&opts.BearerToken, "bearer-token", os.Getenv("AGUI_BEARER_TOKEN"), "Bearer token sent as Authorization header (env AGUI_BEARER_TOKEN)")
	flags.StringVar(&opts.APIKey, "api-key", os.Getenv("AGUI_API_KEY"), "API key sent under --api-key-header (env AGUI_API_KEY)")
	flags.StringVar(&opts.APIKeyHeader, "api-key-header", envOr("AGUI_API_KEY_HEADER", "X-API-Key"), "Header name for --api-key")
	flags.StringVar(&opts.SystemPrompt, "system-prompt", os.Getenv("AGUI_SYSTEM_PROMPT"), "System prompt seeded into every new thread")
	flags.StringVar(&opts.ThreadID, "thread-id", "", "Thread id to resume; a fresh one is generated when empty")
	flags.DurationVar(&opts.RequestTimeout, "request-timeout", 0, "Overall per-run timeout (0 = library default)")
	flags.DurationVar(&opts.ConnectTimeout, "connect-timeout", 0, "Connect-phase timeout (0 = library default)")
	flags.StringVar(&opts.EnvFile, "env-file", ".env", "Optional dotenv file loaded before flags are read")
	flags.BoolVar(&opts.Plain, "plain", false, "Use the plain line-oriented chat loop instead of the TUI")
}

// envOr returns the named environment variable, or fallback when unset.
func envOr(name, fallback string) string {
	if v, ok := os.LookupEnv(name); ok {
		return v
	}
	return fallback
}

// loadDotenv loads path if present. A missing file is not an error; aguichat
// runs fine from plain environment variables or flags alone.
func loadDotenv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return godotenv.Load(path)
}

// validate checks the subset of options that must hold before a transport
// can be constructed.
func (o *options) validate() error {
	if o.Endpoint == "" {
		return fmt.Errorf("missing --endpoint (or AGUI_ENDPOINT)")
	}
	if _, err := url.ParseRequestURI(o.Endpoint); err != nil {
		return fmt.Errorf("invalid --endpoint %q: %w", o.Endpoint, err)
	}
	if o.BearerToken != "" && o.APIKey != "" {
		return fmt.Errorf("specify at most one of --bearer-token and --api-key")
	}
	return nil
}

// agentConfig builds the agent.Config these options describe.
func (o *options) agentConfig(registry *agentRegistry) agent.Config {
	return agent.Config{
		BearerToken:      o.BearerToken,
		APIKey:           o.APIKey,
		APIKeyHeader:     o.APIKeyHeader,
		SystemPrompt:     o.SystemPrompt,
		ToolRegistry:     registry.Registry,
		RequestTimeout:   o.RequestTimeout,
		ConnectTimeout:   o.ConnectTimeout,
		MaxHistoryLength: 200,
	}
}

// httpClient builds the SSE client for these options, applying
// --request-timeout/--connect-timeout over the library defaults when set.
func (o *options) httpClient() *httpsse.Client {
	timeouts := transport.DefaultTimeouts()
	if o.RequestTimeout > 0 {
		timeouts.Request = o.RequestTimeout
	}
	if o.ConnectTimeout > 0 {
		timeouts.Connect = o.ConnectTimeout
	}
	return httpsse.NewClient(o.Endpoint, httpsse.WithTimeouts(timeouts))
}

// probeEndpoint issues a lightweight HEAD request to confirm the endpoint is
// reachable, the way doctorCommand() in the teacher-adjacent CLI validates
// provider configuration before a real session starts. A non-2xx/3xx
// response is still reported as reachable: aguichat only wants to catch DNS
// and connection failures here, not application-level rejections.
func probeEndpoint(endpoint string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := &http.Client{Timeout: timeout}
	req, err := http.NewRequest(http.MethodHead, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	return nil
}
