// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/accountd/accountd/internal/account"
	"github.com/accountd/accountd/internal/account/postgres"
	"github.com/accountd/accountd/internal/account/sqlite"
	"github.com/accountd/accountd/internal/config"
	"github.com/accountd/accountd/internal/logging"
	"github.com/accountd/accountd/internal/observability"
	"github.com/accountd/accountd/internal/store"
)

// serviceName identifies accountd in logs and traces.
const serviceName = "accountd"

// tracingFlushTimeout bounds the span flush on exit.
const tracingFlushTimeout = 5 * time.Second

// backend bundles the repositories of one database with its lifecycle hooks.
type backend struct {
	users      account.UserRepository
	tokens     account.TokenRepository
	tx         account.Transactor
	ping       func(ctx context.Context) error
	collectors []prometheus.Collector
	close      func()
}

// openBackend selects a store by the scheme of databaseURL.
func openBackend(ctx context.Context, databaseURL string) (*backend, error) {
	switch {
	case store.IsPostgresURL(databaseURL):
		pool, err := store.OpenPool(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		return &backend{
			users:  postgres.NewUserRepository(pool),
			tokens: postgres.NewTokenRepository(pool),
			tx:     postgres.NewTransactor(pool),
			ping:   pool.Ping,
			close:  pool.Close,
		}, nil
	case sqlite.IsSQLiteURL(databaseURL):
		db, err := sqlite.Open(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		return &backend{
			users:      sqlite.NewUserRepository(db),
			tokens:     sqlite.NewTokenRepository(db),
			tx:         db,
			ping:       db.Ping,
			collectors: []prometheus.Collector{collectors.NewDBStatsCollector(db.DB(), serviceName)},
			close:      func() { _ = db.Close() },
		}, nil
	default:
		return nil, oops.Code("CONFIG_INVALID").
			With("scheme", urlScheme(databaseURL)).
			Errorf("unsupported database url: want postgres://, postgresql://, sqlite:// or file:")
	}
}

// urlScheme returns the part before the first colon so credentials never reach logs.
func urlScheme(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, ":")
	if !found {
		return ""
	}
	return scheme
}

// app is everything a command needs to talk to the account core.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	service  *account.Service
	backend  *backend
	registry *prometheus.Registry

	metricsFile     string
	shutdownTracing observability.ShutdownFunc
}

// openApp loads configuration from the command's flags and wires the service.
func openApp(cmd *cobra.Command, opts *globalOptions) (*app, error) {
	cfg, err := config.Load(opts.configFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}

	logger := logging.New(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.LogFormat,
		Writer:  cmd.ErrOrStderr(),
	})

	hasher, err := account.NewArgon2idHasherWithParams(cfg.HasherParams())
	if err != nil {
		return nil, err
	}

	shutdownTracing, err := observability.SetupTracing(cmd.Context(), serviceName, version, cfg.OTLPEndpoint)
	if err != nil {
		return nil, err
	}

	b, err := openBackend(cmd.Context(), cfg.DatabaseURL)
	if err != nil {
		_ = shutdownTracing(context.Background())
		return nil, err
	}

	svc, err := account.NewService(account.ServiceConfig{
		Users:         b.users,
		Tokens:        b.tokens,
		Transactor:    b.tx,
		Hasher:        hasher,
		Logger:        logger,
		RecoveryTTL:   cfg.RecoveryTTL,
		TokenAttempts: cfg.TokenAttempts,
	})
	if err != nil {
		b.close()
		_ = shutdownTracing(context.Background())
		return nil, err
	}

	registry := prometheus.NewRegistry()
	account.RegisterMetrics(registry)

	return &app{
		cfg:             cfg,
		logger:          logger,
		service:         svc,
		backend:         b,
		registry:        registry,
		metricsFile:     opts.metricsFile,
		shutdownTracing: shutdownTracing,
	}, nil
}

// Close flushes metrics when requested and releases the database.
func (a *app) Close() {
	if a.metricsFile != "" {
		if err := prometheus.WriteToTextfile(a.metricsFile, a.registry); err != nil {
			a.logger.Warn("metrics file not written", "path", a.metricsFile, "error", err)
		}
	}
	a.backend.close()

	ctx, cancel := context.WithTimeout(context.Background(), tracingFlushTimeout)
	defer cancel()
	if err := a.shutdownTracing(ctx); err != nil {
		a.logger.Warn("trace export not flushed", "error", err)
	}
}

// passwordReader reads passwords from a terminal without echo, or one per
// line from piped input.
type passwordReader struct {
	out         io.Writer
	lines       *bufio.Scanner
	fd          int
	interactive bool
}

func newPasswordReader(cmd *cobra.Command) *passwordReader {
	in := cmd.InOrStdin()
	r := &passwordReader{out: cmd.ErrOrStderr(), lines: bufio.NewScanner(in)}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		r.fd = int(f.Fd())
		r.interactive = true
	}
	return r
}

// Read returns the next password. prompt is shown only on a terminal.
func (r *passwordReader) Read(prompt string) (string, error) {
	if r.interactive {
		_, _ = fmt.Fprint(r.out, prompt)
		b, err := term.ReadPassword(r.fd)
		_, _ = fmt.Fprintln(r.out)
		if err != nil {
			return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
		}
		return string(b), nil
	}

	if !r.lines.Scan() {
		if err := r.lines.Err(); err != nil {
			return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
		}
		return "", oops.Code("PASSWORD_READ_FAILED").Errorf("expected a password on stdin")
	}
	return strings.TrimSuffix(r.lines.Text(), "\r"), nil
}

// parseUserID parses a positive user ID argument.
func parseUserID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, oops.Code("INVALID_USER_ID").
			With("input", arg).
			Errorf("user id must be a positive integer, got %q", arg)
	}
	return id, nil
}
