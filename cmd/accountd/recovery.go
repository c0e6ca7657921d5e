// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRecoveryCmd creates the recovery command group.
func NewRecoveryCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recovery",
		Short: "Issue and redeem password recovery secrets",
		Long: `Issue and redeem password recovery secrets. Issuing a new secret replaces
any pending one. Delivering the secret to the user is up to the caller.`,
	}

	var email string
	start := &cobra.Command{
		Use:   "start",
		Short: "Issue a recovery secret for an email address",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, _ []string, a *app) error {
			secret, err := a.service.StartRecoveryByEmail(cmd.Context(), email)
			if err != nil {
				return err
			}
			if secret == "" {
				cmd.PrintErrln("No account uses that email; nothing issued")
				return nil
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), secret)
			return err
		}),
	}
	start.Flags().StringVar(&email, "email", "", "email address (required)")
	_ = start.MarkFlagRequired("email")
	cmd.AddCommand(start)

	cmd.AddCommand(&cobra.Command{
		Use:   "issue <user-id>",
		Short: "Issue a recovery secret for a user id",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			secret, err := a.service.GenerateRecoveryHash(cmd.Context(), id)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), secret)
			return err
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "complete <secret>",
		Short: "Set a new password using a recovery secret",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, a *app) error {
			password, err := newPasswordReader(cmd).Read("New password: ")
			if err != nil {
				return err
			}
			if err := a.service.ChangePasswordUsingHash(cmd.Context(), args[0], password); err != nil {
				return err
			}
			cmd.PrintErrln("Password changed")
			return nil
		}),
	})

	return cmd
}

// NewPasswordCmd creates the password command group.
func NewPasswordCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Manage user passwords",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "change <user-id>",
		Short: "Change a password after verifying the current one",
		Long: `Change a password after verifying the current one. Without a terminal the
current and new passwords are read as the first two lines of stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			reader := newPasswordReader(cmd)
			current, err := reader.Read("Current password: ")
			if err != nil {
				return err
			}
			next, err := reader.Read("New password: ")
			if err != nil {
				return err
			}
			if err := a.service.ChangePassword(cmd.Context(), id, current, next); err != nil {
				return err
			}
			cmd.PrintErrln("Password changed")
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status <user-id>",
		Short: "Report whether a user has a password",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			has, err := a.service.HasPassword(cmd.Context(), id)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), has)
			return err
		}),
	})

	return cmd
}
