package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "medtrack"

// Metrics agrupa los collectors del servicio sobre un registry propio
// (no el global) para que los tests puedan crear instancias aisladas.
// Todos los métodos aceptan receiver nil: sin métricas => no-op.
type Metrics struct {
	registry *prometheus.Registry

	doseTransitions  *prometheus.CounterVec
	dosesGenerated   prometheus.Counter
	dosesSwept       prometheus.Counter
	reminderIntents  *prometheus.CounterVec
	schedulerTick    prometheus.Histogram
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	notifyDeliveries *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		doseTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dose_transitions_total",
				Help:      "Dose status transitions attempted, by target status and result",
			},
			[]string{"to", "result"},
		),
		dosesGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "doses_generated_total",
			Help:      "Dose rows created by the schedule generator",
		}),
		dosesSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "doses_auto_missed_total",
			Help:      "Pending doses promoted to missed by the grace-period sweep",
		}),
		reminderIntents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reminder_intents_total",
				Help:      "Reminder intents emitted to the notification sink",
			},
			[]string{"suppressed"},
		),
		schedulerTick: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_tick_seconds",
			Help:      "Duration of one reminder scheduler tick",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests served",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		notifyDeliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notify_deliveries_total",
				Help:      "Outbound notification sink deliveries, by sink and result",
			},
			[]string{"sink", "result"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.doseTransitions,
		m.dosesGenerated,
		m.dosesSwept,
		m.reminderIntents,
		m.schedulerTick,
		m.httpRequests,
		m.httpDuration,
		m.notifyDeliveries,
	)
	return m
}

// Handler expone /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry permite a los tests leer valores con testutil.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveTransition(to, result string) {
	if m == nil {
		return
	}
	m.doseTransitions.WithLabelValues(to, result).Inc()
}

func (m *Metrics) AddGenerated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dosesGenerated.Add(float64(n))
}

func (m *Metrics) AddSwept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dosesSwept.Add(float64(n))
}

func (m *Metrics) ObserveIntent(suppressed bool) {
	if m == nil {
		return
	}
	m.reminderIntents.WithLabelValues(strconv.FormatBool(suppressed)).Inc()
}

func (m *Metrics) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.schedulerTick.Observe(d.Seconds())
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) ObserveDelivery(sink, result string) {
	if m == nil {
		return
	}
	m.notifyDeliveries.WithLabelValues(sink, result).Inc()
}
