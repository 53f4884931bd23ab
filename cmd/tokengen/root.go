package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/reponote/storage/internal/auth"
)

func newRootCmd(defaultSecret string) *cobra.Command {
	var secret string

	cmd := &cobra.Command{
		Use:           "tokengen",
		Short:         "Mint and verify bearer tokens for the storage API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&secret, "secret", defaultSecret, "HS256 signing secret (defaults to JWT_SECRET)")

	cmd.AddCommand(
		newIssueCmd(&secret),
		newVerifyCmd(&secret),
	)
	return cmd
}

func newIssueCmd(secret *string) *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Print a signed token carrying the given user_id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(userID) == "" {
				return errors.New("--user-id is required")
			}
			token, err := auth.NewIssuer(*secret).Issue(userID, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "value of the user_id claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime; 0 omits the exp claim")
	return cmd
}

func newVerifyCmd(secret *string) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <token>",
		Short: "Check a token the way the API does and print its user_id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := auth.NewVerifier(*secret).Authenticate(args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", auth.Detail(err), err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), userID)
			return err
		},
	}
}
