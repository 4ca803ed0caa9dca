package main

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ClareAI/astra-voice-tools/internal/domain"
	"github.com/ClareAI/astra-voice-tools/internal/handler"
	"github.com/spf13/cobra"
)

func newClientCmd(opts *globalOptions) *cobra.Command {
	clientCmd := &cobra.Command{
		Use:   "client",
		Short: "Inspect and confirm onboarding clients",
	}

	getCmd := &cobra.Command{
		Use:   "get <clientId>",
		Short: "Show a client record and its lifecycle state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newAPIClient(opts).call(cmd, http.MethodGet, "/api/clients/"+url.PathEscape(args[0]), nil)
		},
	}

	var paymentIntent string
	confirmCmd := &cobra.Command{
		Use:   "confirm <clientId>",
		Short: "Confirm a payment and provision the client's workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := domain.PaymentConfirmedRequest{ClientID: args[0], PaymentIntentID: paymentIntent}
			return newAPIClient(opts).call(cmd, http.MethodPost, "/webhook/payment-confirmed", body)
		},
	}
	confirmCmd.Flags().StringVar(&paymentIntent, "payment-intent", "", "Payment reference to record")

	clientCmd.AddCommand(getCmd, confirmCmd)
	return clientCmd
}

func newOutboxCmd(opts *globalOptions) *cobra.Command {
	outboxCmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and redeliver failed notifications",
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show pending and dead-lettered notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return newAPIClient(opts).call(cmd, http.MethodGet, "/api/outbox", nil)
		},
	}

	drainCmd := &cobra.Command{
		Use:   "drain",
		Short: "Redeliver pending notifications now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return newAPIClient(opts).call(cmd, http.MethodPost, "/api/outbox/drain", nil)
		},
	}

	outboxCmd.AddCommand(statusCmd, drainCmd)
	return outboxCmd
}

func newToolsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Print the tool definitions to configure on the voice assistant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return newAPIClient(opts).call(cmd, http.MethodGet, "/api/tools", nil)
		},
	}
}

func newKeyCmd(opts *globalOptions) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	keyCmd := &cobra.Command{
		Use:   "key",
		Short: "Issue an operator API key for the X-API-Key header",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.secret == "" {
				return fmt.Errorf("SECRET_KEY is not set; pass --secret")
			}
			key, err := handler.IssueOperatorKey(opts.secret, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
	keyCmd.Flags().StringVar(&subject, "subject", "operator", "Subject claim of the key")
	keyCmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Key lifetime")
	return keyCmd
}
