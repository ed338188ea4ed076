package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qrcode_dashboard",
		Name:      "scans_total",
		Help:      "Scanned QR payloads by processing outcome.",
	}, []string{"source", "outcome"})

	RemoteCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qrcode_dashboard",
		Name:      "qrcode_api_calls_total",
		Help:      "Calls to the remote QR code service by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})

	RemoteCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "qrcode_dashboard",
		Name:      "qrcode_api_call_duration_seconds",
		Help:      "Latency of calls to the remote QR code service.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})

	MemberMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qrcode_dashboard",
		Name:      "member_mutations_total",
		Help:      "Member create/delete operations by outcome.",
	}, []string{"operation", "outcome"})
)

const (
	OutcomeSuccess    = "success"
	OutcomeError      = "error"
	OutcomeRejected   = "rejected"
	OutcomeRolledBack = "rolled_back"
	OutcomeDiscarded  = "discarded"
	OutcomeMalformed  = "malformed"
)
