// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package account

import "github.com/prometheus/client_golang/prometheus"

// Result label values.
const (
	ResultSuccess = "success"
)

// Recovery stage label values.
const (
	StageIssue    = "issue"
	StageComplete = "complete"
)

// LoginAttempts counts email/password login attempts by result.
// Use RegisterMetrics to register this with a Prometheus registry.
var LoginAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "accountd_logins_total",
		Help: "Total number of email/password login attempts",
	},
	[]string{"result"},
)

// TokensIssued counts session tokens persisted.
// Use RegisterMetrics to register this with a Prometheus registry.
var TokensIssued = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "accountd_tokens_issued_total",
		Help: "Total number of session tokens issued",
	},
)

// Recoveries counts recovery hash issuance and completion by result.
// Use RegisterMetrics to register this with a Prometheus registry.
var Recoveries = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "accountd_recoveries_total",
		Help: "Total number of password recovery operations",
	},
	[]string{"stage", "result"},
)

// RegisterMetrics registers account metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(LoginAttempts)
	reg.MustRegister(TokensIssued)
	reg.MustRegister(Recoveries)
}

// resultLabel maps an operation error to a metric label.
func resultLabel(err error) string {
	if err == nil {
		return ResultSuccess
	}
	return KindOf(err).String()
}

func recordLogin(err error) {
	LoginAttempts.WithLabelValues(resultLabel(err)).Inc()
}

func recordTokenIssued() {
	TokensIssued.Inc()
}

func recordRecovery(stage string, err error) {
	Recoveries.WithLabelValues(stage, resultLabel(err)).Inc()
}
