package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Contextable/ag-ui-4k-sub001/agent"
	"github.com/Contextable/ag-ui-4k-sub001/event"
	"github.com/Contextable/ag-ui-4k-sub001/tool"
	"github.com/Contextable/ag-ui-4k-sub001/transport"
)

// runPlain is the non-TUI fallback: a line-oriented REPL reading prompts
// from stdin and printing the agent's streamed reply to stdout, with
// confirmations answered synchronously on the same terminal.
func runPlain(opts *options) error {
	registry, err := newRegistry(stdinConfirmation)
	if err != nil {
		return err
	}

	client := opts.httpClient()
	facade := agent.NewStateful(transport.NewRateLimited(client, 5, 10), opts.agentConfig(registry))

	threadID := opts.ThreadID
	fmt.Fprintln(os.Stdout, "aguichat — type a message and press enter; Ctrl-D to quit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(os.Stdout, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		ctx := context.Background()
		handle, err := facade.Chat(ctx, text, threadID)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}
		printEvents(handle.Events())
	}
}

// printEvents renders the pipeline's event stream as plain text, folding
// TEXT_MESSAGE_CONTENT deltas onto one line and surfacing RUN_ERROR.
func printEvents(events <-chan event.Event) {
	started := false
	for ev := range events {
		switch e := ev.(type) {
		case *event.TextMessageContent:
			if !started {
				started = true
			}
			fmt.Fprint(os.Stdout, e.Delta)
		case *event.TextMessageEnd:
			fmt.Fprintln(os.Stdout)
		case *event.RunError:
			fmt.Fprintf(os.Stderr, "\nrun error [%s]: %s\n", e.Code, e.Message)
		}
	}
}

// stdinConfirmation implements tool.ConfirmationHandler by prompting on the
// controlling terminal, for use outside the TUI.
func stdinConfirmation(ctx context.Context, req tool.ConfirmationRequest) (tool.ConfirmationResponse, error) {
	fmt.Fprintf(os.Stdout, "\nconfirm: %s [y/N] ", req.Prompt)
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return tool.ConfirmationResponse{Confirmed: false, Reason: "no input"}, scanner.Err()
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	if answer == "y" || answer == "yes" {
		return tool.ConfirmationResponse{Confirmed: true}, nil
	}
	return tool.ConfirmationResponse{Confirmed: false, Reason: "declined"}, nil
}
