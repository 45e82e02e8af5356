package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsOpened counts sessions opened by presenters.
	SessionsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campusattend_sessions_opened_total",
		Help: "Sessions opened by presenters.",
	})

	// ClaimsAccepted counts accepted claims by status.
	ClaimsAccepted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusattend_claims_accepted_total",
		Help: "Accepted attendance claims by status.",
	}, []string{"status"})

	// ClaimsRejected counts rejected claims by reason.
	ClaimsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusattend_claims_rejected_total",
		Help: "Rejected attendance claims by reason.",
	}, []string{"reason"})

	// DiscoveryPolls counts discovery poll requests.
	DiscoveryPolls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campusattend_discovery_polls_total",
		Help: "Active-session discovery polls served.",
	})
)
