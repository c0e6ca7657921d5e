// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/accountd/accountd/internal/observability"
)

// Default values for serve command flags.
const (
	defaultMetricsAddr     = "127.0.0.1:9100"
	defaultShutdownTimeout = 5 * time.Second
)

// NewServeCmd creates the serve command.
func NewServeCmd(opts *globalOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve metrics and database health probes",
		Long: `Serve /metrics, /healthz/liveness and /healthz/readiness until interrupted.
Readiness pings the account database.`,
		Args: cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, _ []string, a *app) error {
			return runServe(cmd.Context(), a, addr)
		}),
	}

	cmd.Flags().StringVar(&addr, "metrics-addr", defaultMetricsAddr, "metrics/health HTTP address")
	return cmd
}

func runServe(ctx context.Context, a *app, addr string) error {
	registry := observability.NewRegistry()
	for _, c := range a.backend.collectors {
		registry.MustRegister(c)
	}

	server := observability.NewServer(addr, registry, a.backend.ping, a.logger)
	errCh, err := server.Start()
	if err != nil {
		return err
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultShutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		return err
	}
	return serveErr
}
