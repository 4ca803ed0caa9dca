package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

type globalOptions struct {
	server  string
	secret  string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "onboardctl",
		Short: "Operate the voice tools onboarding service",
		Long: `onboardctl talks to a running voice tools server through its operator API.

Requests are signed with an operator key derived from SECRET_KEY when it is set.

Examples:
  onboardctl client get client_1234
  onboardctl client confirm client_1234 --payment-intent pi_123
  onboardctl outbox drain`,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.server, "server", defaultServer(),
		"Base URL of the voice tools server")
	rootCmd.PersistentFlags().StringVar(&opts.secret, "secret", os.Getenv("SECRET_KEY"),
		"Secret used to sign operator keys (defaults to SECRET_KEY)")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 90*time.Second,
		"Request timeout")

	rootCmd.AddCommand(newClientCmd(opts))
	rootCmd.AddCommand(newOutboxCmd(opts))
	rootCmd.AddCommand(newToolsCmd(opts))
	rootCmd.AddCommand(newKeyCmd(opts))
	return rootCmd
}

func defaultServer() string {
	if server := os.Getenv("ONBOARDCTL_SERVER"); server != "" {
		return server
	}
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}
	return fmt.Sprintf("http://localhost:%s", port)
}
