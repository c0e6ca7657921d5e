// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/accountd/accountd/internal/account"
)

// NewLoginCmd creates the login command.
func NewLoginCmd(opts *globalOptions) *cobra.Command {
	var email, ipAddress, userAgent, fingerprint string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Verify a password and issue a session token",
		Long: `Verify an email and password, then issue a session token. The token is
printed once on stdout; only its SHA-256 digest is stored.`,
		Args: cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, _ []string, a *app) error {
			password, err := newPasswordReader(cmd).Read("Password: ")
			if err != nil {
				return err
			}

			user, err := a.service.LoginWithEmail(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			token, err := a.service.IssueToken(cmd.Context(), user.ID, ipAddress, userAgent, fingerprint)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		}),
	}

	cmd.Flags().StringVar(&email, "email", "", "email address (required)")
	cmd.Flags().StringVar(&ipAddress, "ip", "", "client IP recorded on the token")
	cmd.Flags().StringVar(&userAgent, "user-agent", "accountd-cli", "user agent recorded on the token")
	cmd.Flags().StringVar(&fingerprint, "fingerprint", "", "device fingerprint recorded on the token")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// NewTokenCmd creates the token command group.
func NewTokenCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Inspect session tokens",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "resolve <token>",
		Short: "Show the user owning a session token",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, a *app) error {
			user, err := a.service.ResolveToken(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printUser(cmd.OutOrStdout(), user)
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list <user-id>",
		Short: "List a user's session tokens, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			tokens, err := a.service.ListTokens(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printTokens(cmd.OutOrStdout(), tokens)
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <token-id|token>",
		Short: "Show one session token by its id or its plaintext value",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, a *app) error {
			var (
				token *account.SessionToken
				err   error
			)
			if id, parseErr := ulid.ParseStrict(args[0]); parseErr == nil {
				token, err = a.service.GetToken(cmd.Context(), id)
			} else {
				token, err = a.service.LookupToken(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			return printTokens(cmd.OutOrStdout(), []*account.SessionToken{token})
		}),
	})

	return cmd
}

func printTokens(w io.Writer, tokens []*account.SessionToken) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tUSER\tCREATED\tIP\tUSER AGENT\tFINGERPRINT")
	for _, t := range tokens {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n",
			t.ID, t.UserID, t.CreatedAt.Format(time.RFC3339), t.IPAddress, t.UserAgent, t.Fingerprint)
	}
	return tw.Flush()
}
