// Command aguichat is a demonstration client for the Protocol runtime: a
// small CLI/TUI chat host that exercises agent.Stateful, tool.Registry, and
// transport/httpsse.Client together the way any real host would, wired with
// cobra the way dm-vev-OpenClaude/cmd/claude/main.go binds its own commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "aguichat:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "aguichat",
		Short: "Interactive chat client for an agent speaking the Protocol",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadDotenv(opts.EnvFile); err != nil {
				return fmt.Errorf("load env file: %w", err)
			}
			if err := opts.validate(); err != nil {
				return err
			}
			if opts.Plain {
				return runPlain(opts)
			}
			return runTUI(opts)
		},
	}
	applyFlags(root.Flags(), opts)
	root.AddCommand(newDoctorCmd(opts))
	return root
}

// newDoctorCmd validates transport configuration before a real session
// starts, the same preflight role doctorCommand() plays in the
// teacher-adjacent CLI.
func newDoctorCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate endpoint and auth configuration without starting a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadDotenv(opts.EnvFile); err != nil {
				return fmt.Errorf("load env file: %w", err)
			}
			if err := opts.validate(); err != nil {
				return err
			}
			if err := probeEndpoint(opts.Endpoint, opts.ConnectTimeout); err != nil {
				return fmt.Errorf("endpoint unreachable: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "endpoint %s reachable\n", opts.Endpoint)
			if opts.BearerToken == "" && opts.APIKey == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "warning: no --bearer-token or --api-key configured")
			}
			return nil
		},
	}
	applyFlags(cmd.Flags(), opts)
	return cmd
}
