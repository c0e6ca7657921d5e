// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/accountd/accountd/internal/account"
	"github.com/accountd/accountd/internal/config"
)

// globalOptions holds flags that are not configuration keys.
type globalOptions struct {
	configFile  string
	metricsFile string
}

// NewRootCmd creates the root command for the accountd CLI.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "accountd",
		Short: "accountd - account and session administration",
		Long: `accountd manages first-party user accounts: registration, email/password
login, opaque session tokens, password changes and recovery secrets.
Accounts live in PostgreSQL or in an embedded SQLite database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file path (YAML)")
	flags.StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus counters to this file on exit")
	flags.String(config.KeyDatabaseURL, "", "database URL (postgres://, sqlite://<path>, file:<path>, or sqlite:// for the XDG data dir)")
	flags.String(config.KeyLogFormat, "json", "log format (json or text)")
	flags.Duration(config.KeyRecoveryTTL, account.DefaultRecoveryTTL, "lifetime of recovery secrets")
	flags.Int(config.KeyTokenAttempts, account.DefaultTokenAttempts, "token generation attempts on collision")
	flags.Uint32(config.KeyArgon2Memory, account.DefaultHasherParams.Memory, "argon2id memory in KiB")
	flags.Uint32(config.KeyArgon2Time, account.DefaultHasherParams.Time, "argon2id iterations")
	flags.Uint8(config.KeyArgon2Threads, account.DefaultHasherParams.Threads, "argon2id parallelism")
	flags.String(config.KeyOTLPEndpoint, "", "OTLP/HTTP trace collector URL (tracing is off when empty)")

	cmd.AddCommand(NewMigrateCmd(opts))
	cmd.AddCommand(NewUserCmd(opts))
	cmd.AddCommand(NewLoginCmd(opts))
	cmd.AddCommand(NewTokenCmd(opts))
	cmd.AddCommand(NewRecoveryCmd(opts))
	cmd.AddCommand(NewPasswordCmd(opts))
	cmd.AddCommand(NewServeCmd(opts))

	return cmd
}

// withApp wraps a command body that needs the account service.
func withApp(opts *globalOptions, run func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, opts)
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd, args, a)
	}
}
