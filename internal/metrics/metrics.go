package metrics

import (
	"sync"
	"time"

	"topicvote/internal/events"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "topicvote"

var (
	once sync.Once

	domainEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Count of persisted state changes by event type.",
		},
		[]string{"type"},
	)

	updatesHandled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Count of handled Telegram updates by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	updateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "update_duration_seconds",
			Help:      "Time spent handling one update.",
			Buckets:   []float64{.005, .01, .05, .1, .5, 1, 2},
		},
	)

	openSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_sessions",
			Help:      "Number of interaction flows in progress.",
		},
	)

	sendErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_errors_total",
			Help:      "Count of failed Telegram API calls.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(domainEvents, updatesHandled, updateDuration, openSessions, sendErrors)
	})
}

// Subscribe counts every event published on bus.
func Subscribe(bus *events.EventBus) {
	bus.SubscribeAll(func(e events.Event) error {
		IncEvent(e.Type)
		return nil
	})
}

func IncEvent(evType string) {
	domainEvents.WithLabelValues(evType).Inc()
}

func ObserveUpdate(kind, outcome string, took time.Duration) {
	updatesHandled.WithLabelValues(kind, outcome).Inc()
	updateDuration.Observe(took.Seconds())
}

func SetOpenSessions(n int) {
	openSessions.Set(float64(n))
}

func IncSendError() {
	sendErrors.Inc()
}
