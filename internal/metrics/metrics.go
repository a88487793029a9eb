package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	availabilityFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clinic_portal",
			Name:      "availability_fetch_total",
			Help:      "Count of availability fetches by outcome.",
		},
		[]string{"outcome"},
	)

	staleAvailability = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clinic_portal",
			Name:      "availability_stale_discarded_total",
			Help:      "Count of availability results discarded because the doctor changed.",
		},
	)

	submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clinic_portal",
			Name:      "booking_submissions_total",
			Help:      "Count of booking submissions by channel and outcome.",
		},
		[]string{"channel", "outcome"},
	)

	validationRejects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clinic_portal",
			Name:      "wizard_validation_rejects_total",
			Help:      "Count of forward transitions rejected by validation.",
		},
		[]string{"step", "reason"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clinic_portal",
			Name:      "http_requests_total",
			Help:      "Count of API requests by route.",
		},
		[]string{"route"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(availabilityFetches, staleAvailability, submissions, validationRejects, httpRequests)
	})
}

func IncAvailabilityFetch(outcome string) {
	availabilityFetches.WithLabelValues(outcome).Inc()
}

func IncStaleAvailability() {
	staleAvailability.Inc()
}

func IncSubmission(channel, outcome string) {
	submissions.WithLabelValues(channel, outcome).Inc()
}

func IncValidationReject(step, reason string) {
	validationRejects.WithLabelValues(step, reason).Inc()
}

func IncHTTP(route string) {
	httpRequests.WithLabelValues(route).Inc()
}
