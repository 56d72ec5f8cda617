// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package session

import "github.com/prometheus/client_golang/prometheus"

// Login outcomes recorded by LoginAttempts.
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusSuspended = "suspended"
	StatusError     = "error"
)

// LoginAttempts counts login attempts by outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var LoginAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "procauth_logins_total",
		Help: "Total number of login attempts",
	},
	[]string{"status"},
)

// RegisterMetrics registers session metrics with reg. Panics if registration
// fails.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(LoginAttempts)
}

func recordLogin(status string) {
	LoginAttempts.WithLabelValues(status).Inc()
}
