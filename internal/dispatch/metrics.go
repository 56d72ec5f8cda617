// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package dispatch

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/holomush/procauth/internal/procedure"
	"github.com/holomush/procauth/internal/security"
)

// Status constants for procedure call metrics.
const (
	StatusSuccess          = "success"
	StatusError            = "error"
	StatusNotFound         = "not_found"
	StatusInvalidArgs      = "invalid_args"
	StatusPermissionDenied = "permission_denied"
	StatusSessionInvalid   = "session_invalid"
	StatusCancelled        = "cancelled"
)

// unknownProcedure labels calls to names that are not registered so that
// arbitrary input cannot grow the label set.
const unknownProcedure = "unknown"

// ProcedureCalls is the counter for procedure calls.
// Use RegisterMetrics to register this with a Prometheus registry.
var ProcedureCalls = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "procauth_procedure_calls_total",
		Help: "Total number of procedure calls",
	},
	[]string{"procedure", "status"},
)

// ProcedureDuration is the histogram for procedure call duration.
// Use RegisterMetrics to register this with a Prometheus registry.
var ProcedureDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "procauth_procedure_duration_seconds",
		Help:    "Procedure call duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"procedure"},
)

// RegisterMetrics registers dispatch metrics with reg. Panics if
// registration fails.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(ProcedureCalls)
	reg.MustRegister(ProcedureDuration)
}

func recordCall(procedureName, status string, duration time.Duration) {
	ProcedureCalls.WithLabelValues(procedureName, status).Inc()
	ProcedureDuration.WithLabelValues(procedureName).Observe(duration.Seconds())
}

// statusOf classifies a call error for the status label.
func statusOf(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, ErrCancelled):
		return StatusCancelled
	case errors.Is(err, ErrSessionInvalid):
		return StatusSessionInvalid
	case errors.Is(err, procedure.ErrProcedureNotFound):
		return StatusNotFound
	case errors.Is(err, procedure.ErrInvalidArgs):
		return StatusInvalidArgs
	case errors.Is(err, security.ErrPermissionDenied):
		return StatusPermissionDenied
	default:
		return StatusError
	}
}
