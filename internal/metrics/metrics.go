package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sobytnik",
			Name:      "booking_requests_total",
			Help:      "Booking requests by outcome.",
		},
		[]string{"outcome"},
	)

	promotions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sobytnik",
			Name:      "waiting_list_promotions_total",
			Help:      "Waiting-list and reservation promotions to confirmed.",
		},
	)

	cancellations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sobytnik",
			Name:      "booking_cancellations_total",
			Help:      "Cancelled bookings.",
		},
	)

	reservations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sobytnik",
			Name:      "group_reservations_total",
			Help:      "Group reservation batches by outcome.",
		},
		[]string{"outcome"},
	)

	notifyFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sobytnik",
			Name:      "notification_failures_total",
			Help:      "Notification deliveries that failed after commit.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sobytnik",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingRequests, promotions, cancellations,
			reservations, notifyFailures, httpRequests)
	})
}

// IncBooking increments the booking request counter for an outcome label.
func IncBooking(outcome string) {
	bookingRequests.WithLabelValues(outcome).Inc()
}

// IncPromotion counts a successful promotion to CONFIRMED.
func IncPromotion() {
	promotions.Inc()
}

// IncCancellation counts a cancelled booking.
func IncCancellation() {
	cancellations.Inc()
}

// IncReservation increments the reservation batch counter for an outcome label.
func IncReservation(outcome string) {
	reservations.WithLabelValues(outcome).Inc()
}

// IncNotifyFailure counts a swallowed post-commit notification failure.
func IncNotifyFailure() {
	notifyFailures.Inc()
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}
