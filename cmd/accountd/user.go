// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/accountd/accountd/internal/account"
)

// NewUserCmd creates the user command group.
func NewUserCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Register, inspect and administer users",
	}

	cmd.AddCommand(newUserRegisterCmd(opts))
	cmd.AddCommand(newUserListCmd(opts))
	cmd.AddCommand(newUserShowCmd(opts))
	cmd.AddCommand(newUserUpdateCmd(opts))
	cmd.AddCommand(newUserAdminCmd(opts))
	cmd.AddCommand(newUserLinkCmd(opts))
	cmd.AddCommand(newUserSlugCmd(opts))
	return cmd
}

func newUserRegisterCmd(opts *globalOptions) *cobra.Command {
	var (
		input      account.RegisterInput
		noPassword bool
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new user",
		Long: `Register a new user. The password is read from the terminal, or from the
first line of stdin when piped. Use --no-password for accounts that sign in
through recovery only.`,
		Args: cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, _ []string, a *app) error {
			if !noPassword {
				password, err := newPasswordReader(cmd).Read("Password: ")
				if err != nil {
					return err
				}
				input.Password = password
			}

			user, err := a.service.Register(cmd.Context(), input)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Registered user %d (%s)\n", user.ID, user.Slug)
			return err
		}),
	}

	cmd.Flags().StringVar(&input.Email, "email", "", "email address (required)")
	cmd.Flags().StringVar(&input.Slug, "slug", "", "public handle (required)")
	cmd.Flags().StringVar(&input.ExternalID, "external-id", "", "billing customer id")
	cmd.Flags().BoolVar(&input.Admin, "admin", false, "grant the admin role")
	cmd.Flags().BoolVar(&noPassword, "no-password", false, "register without a password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("slug")
	return cmd
}

func newUserListCmd(opts *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users ordered by id",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, _ []string, a *app) error {
			users, err := a.service.ListUsers(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printUsers(cmd.OutOrStdout(), users)
		}),
	}

	cmd.Flags().IntVar(&limit, "limit", account.DefaultListLimit, "maximum number of users")
	return cmd
}

func newUserShowCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <user-id>",
		Short: "Show one user",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			user, err := a.service.GetUser(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printUser(cmd.OutOrStdout(), user)
		}),
	}
}

func newUserUpdateCmd(opts *globalOptions) *cobra.Command {
	var email, slug string

	cmd := &cobra.Command{
		Use:   "update <user-id>",
		Short: "Change a user's email or slug",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			var update account.ProfileUpdate
			if cmd.Flags().Changed("email") {
				update.Email = &email
			}
			if cmd.Flags().Changed("slug") {
				update.Slug = &slug
			}
			user, err := a.service.UpdateProfile(cmd.Context(), id, update)
			if err != nil {
				return err
			}
			return printUser(cmd.OutOrStdout(), user)
		}),
	}

	cmd.Flags().StringVar(&email, "email", "", "new email address")
	cmd.Flags().StringVar(&slug, "slug", "", "new slug")
	return cmd
}

func newUserAdminCmd(opts *globalOptions) *cobra.Command {
	var set bool

	cmd := &cobra.Command{
		Use:   "admin <user-id>",
		Short: "Grant or revoke the admin role",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			user, err := a.service.SetAdmin(cmd.Context(), id, set)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "User %d admin: %t\n", user.ID, user.Admin)
			return err
		}),
	}

	cmd.Flags().BoolVar(&set, "set", true, "admin role state")
	return cmd
}

func newUserLinkCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "link <user-id> [external-id]",
		Short: "Link a billing customer id, or unlink when omitted",
		Args:  cobra.RangeArgs(1, 2),
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			var externalID string
			if len(args) == 2 {
				externalID = args[1]
			}
			user, err := a.service.LinkExternalID(cmd.Context(), id, externalID)
			if err != nil {
				return err
			}
			return printUser(cmd.OutOrStdout(), user)
		}),
	}
}

func newUserSlugCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "slug-taken <user-id> <slug>",
		Short: "Report whether another user holds a slug",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			taken, err := a.service.ExistSlug(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), taken)
			return err
		}),
	}
}

func printUsers(w io.Writer, users []*account.User) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tSLUG\tEMAIL\tADMIN\tPASSWORD\tEXTERNAL ID")
	for _, u := range users {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%t\t%s\n",
			u.ID, u.Slug, u.Email, u.Admin, u.HasPassword(), deref(u.ExternalID))
	}
	return tw.Flush()
}

func printUser(w io.Writer, u *account.User) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "ID:\t%d\n", u.ID)
	_, _ = fmt.Fprintf(tw, "Email:\t%s\n", u.Email)
	_, _ = fmt.Fprintf(tw, "Slug:\t%s\n", u.Slug)
	_, _ = fmt.Fprintf(tw, "Admin:\t%t\n", u.Admin)
	_, _ = fmt.Fprintf(tw, "Password set:\t%t\n", u.HasPassword())
	_, _ = fmt.Fprintf(tw, "Recovery pending:\t%t\n", u.HasActiveRecovery(time.Now()))
	_, _ = fmt.Fprintf(tw, "External ID:\t%s\n", deref(u.ExternalID))
	_, _ = fmt.Fprintf(tw, "Created:\t%s\n", u.CreatedAt.Format(time.RFC3339))
	_, _ = fmt.Fprintf(tw, "Updated:\t%s\n", u.UpdatedAt.Format(time.RFC3339))
	return tw.Flush()
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
