// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package config loads accountd settings from defaults, an optional YAML file,
// the environment and command-line flags, in increasing order of precedence.
package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/accountd/accountd/internal/account"
	"github.com/accountd/accountd/internal/xdg"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "ACCOUNTD_"

// Keys shared by the YAML file, the environment and the flags.
const (
	KeyDatabaseURL   = "database-url"
	KeyLogFormat     = "log-format"
	KeyRecoveryTTL   = "recovery-ttl"
	KeyTokenAttempts = "token-attempts"
	KeyArgon2Memory  = "argon2-memory"
	KeyArgon2Time    = "argon2-time"
	KeyArgon2Threads = "argon2-threads"
	KeyOTLPEndpoint  = "otlp-endpoint"
)

// Config holds the runtime settings of accountd.
type Config struct {
	DatabaseURL   string        `koanf:"database-url"`
	LogFormat     string        `koanf:"log-format"`
	RecoveryTTL   time.Duration `koanf:"recovery-ttl"`
	TokenAttempts int           `koanf:"token-attempts"`
	Argon2Memory  uint32        `koanf:"argon2-memory"`
	Argon2Time    uint32        `koanf:"argon2-time"`
	Argon2Threads uint8         `koanf:"argon2-threads"`
	OTLPEndpoint  string        `koanf:"otlp-endpoint"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogFormat:     "json",
		RecoveryTTL:   account.DefaultRecoveryTTL,
		TokenAttempts: account.DefaultTokenAttempts,
		Argon2Memory:  account.DefaultHasherParams.Memory,
		Argon2Time:    account.DefaultHasherParams.Time,
		Argon2Threads: account.DefaultHasherParams.Threads,
	}
}

func (c Config) values() map[string]any {
	return map[string]any{
		KeyDatabaseURL:   c.DatabaseURL,
		KeyLogFormat:     c.LogFormat,
		KeyRecoveryTTL:   c.RecoveryTTL.String(),
		KeyTokenAttempts: c.TokenAttempts,
		KeyArgon2Memory:  c.Argon2Memory,
		KeyArgon2Time:    c.Argon2Time,
		KeyArgon2Threads: c.Argon2Threads,
		KeyOTLPEndpoint:  c.OTLPEndpoint,
	}
}

// LocalSQLiteURL selects the SQLite database in the XDG data directory.
const LocalSQLiteURL = "sqlite://"

// Load builds a Config. An empty path falls back to config.yaml in the XDG
// config directory when it exists. flags may be nil; only flags changed on the
// command line override earlier sources.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		if found, ok, err := xdg.ConfigFile(); err == nil && ok {
			path = found
		}
	}

	if err := k.Load(confmap.Provider(Default().values(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").
			With("source", "defaults").
			Wrap(err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("source", "file").
				With("path", path).
				Wrap(err)
		}
	}

	if err := loadEnv(k); err != nil {
		return nil, err
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("source", "flags").
				Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").
			With("operation", "unmarshal").
			Wrap(err)
	}
	if cfg.DatabaseURL == LocalSQLiteURL {
		dbPath, err := xdg.DefaultSQLitePath()
		if err != nil {
			return nil, err
		}
		cfg.DatabaseURL = LocalSQLiteURL + dbPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadEnv loads non-empty ACCOUNTD_<KEY> variables for known keys. A bare DATABASE_URL
// is loaded first so ACCOUNTD_DATABASE_URL wins when both are set.
func loadEnv(k *koanf.Koanf) error {
	known := Default().values()

	bare := env.Provider(".", env.Opt{
		Prefix: "DATABASE_URL",
		TransformFunc: func(name, value string) (string, any) {
			if name != "DATABASE_URL" || value == "" {
				return "", nil
			}
			return KeyDatabaseURL, value
		},
	})
	if err := k.Load(bare, nil); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").
			With("source", "env").
			With("variable", "DATABASE_URL").
			Wrap(err)
	}

	prefixed := env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(name, value string) (string, any) {
			key := envKey(name)
			if _, ok := known[key]; !ok || value == "" {
				return "", nil
			}
			return key, value
		},
	})
	if err := k.Load(prefixed, nil); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").
			With("source", "env").
			With("prefix", EnvPrefix).
			Wrap(err)
	}
	return nil
}

// envKey maps ACCOUNTD_ARGON2_MEMORY to argon2-memory.
func envKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), "_", "-")
}

// EnvName returns the environment variable read for key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").
			With("log_format", c.LogFormat).
			Errorf("log-format must be 'json' or 'text', got %q", c.LogFormat)
	}
	if c.RecoveryTTL <= 0 {
		return oops.Code("CONFIG_INVALID").
			With("recovery_ttl", c.RecoveryTTL).
			Errorf("recovery-ttl must be positive")
	}
	if c.TokenAttempts < 1 {
		return oops.Code("CONFIG_INVALID").
			With("token_attempts", c.TokenAttempts).
			Errorf("token-attempts must be at least 1")
	}
	if _, err := account.NewArgon2idHasherWithParams(c.HasherParams()); err != nil {
		return oops.Code("CONFIG_INVALID").
			With("argon2_memory", c.Argon2Memory).
			With("argon2_time", c.Argon2Time).
			With("argon2_threads", c.Argon2Threads).
			Wrap(err)
	}
	if c.OTLPEndpoint != "" {
		u, err := url.Parse(c.OTLPEndpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return oops.Code("CONFIG_INVALID").
				With("otlp_endpoint", c.OTLPEndpoint).
				Errorf("otlp-endpoint must be an http(s) URL")
		}
	}
	return nil
}

// HasherParams returns the argon2id parameters. Salt and key lengths keep their defaults.
func (c *Config) HasherParams() account.HasherParams {
	p := account.DefaultHasherParams
	p.Memory = c.Argon2Memory
	p.Time = c.Argon2Time
	p.Threads = c.Argon2Threads
	return p
}

// RequireDatabase returns an error when no database URL is configured.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").
			Errorf("database-url is required (flag --database-url or DATABASE_URL)")
	}
	return nil
}
