package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "massagebot",
			Name:      "booking_created_total",
			Help:      "Count of bookings successfully allocated.",
		},
	)

	bookingCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "massagebot",
			Name:      "booking_cancelled_total",
			Help:      "Count of bookings cancelled.",
		},
	)

	bookingUpdated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "massagebot",
			Name:      "booking_updated_total",
			Help:      "Count of bookings rescheduled or edited.",
		},
	)

	allocationRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "massagebot",
			Name:      "allocation_rejected_total",
			Help:      "Count of allocation attempts rejected, by reason.",
		},
		[]string{"reason"},
	)

	remindersSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "massagebot",
			Name:      "reminders_sent_total",
			Help:      "Count of reminders delivered, by kind.",
		},
		[]string{"kind"},
	)

	sideEffectFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "massagebot",
			Name:      "side_effect_failures_total",
			Help:      "Count of best-effort side effect failures, by adapter.",
		},
		[]string{"adapter"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingCreated, bookingCancelled, bookingUpdated,
			allocationRejected, remindersSent, sideEffectFailures,
		)
	})
}

func IncBookingCreated()             { bookingCreated.Inc() }
func IncBookingCancelled()           { bookingCancelled.Inc() }
func IncBookingUpdated()             { bookingUpdated.Inc() }
func IncAllocationRejected(r string) { allocationRejected.WithLabelValues(r).Inc() }
func IncReminderSent(kind string)    { remindersSent.WithLabelValues(kind).Inc() }
func IncSideEffectFailure(ad string) { sideEffectFailures.WithLabelValues(ad).Inc() }
