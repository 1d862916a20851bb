package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "companion"

// Metrics groups all Prometheus instruments used by the service. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	QueuePending    prometheus.Gauge
	QueueMessages   prometheus.Counter
	QueueFlushes    prometheus.Counter
	QueueDropped    *prometheus.CounterVec
	LLMAttempts     *prometheus.CounterVec
	LLMLatency      prometheus.Histogram
	MemoryTurns     prometheus.Counter
	Consolidations  *prometheus.CounterVec
	CommandsHandled *prometheus.CounterVec
}

// NewMetrics registers all instruments on reg. A nil reg builds working
// but unregistered instruments.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	if reg != nil {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	return &Metrics{
		registry: reg,
		QueuePending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_pending",
			Help:      "Number of keys with a buffered aggregation.",
		}),
		QueueMessages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_messages_total",
			Help:      "Messages accepted by the aggregator.",
		}),
		QueueFlushes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_flushes_total",
			Help:      "Batches handed to the chat pipeline.",
		}),
		QueueDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_dropped_total",
			Help:      "Batches dropped by reason.",
		}, []string{"reason"}),
		LLMAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_attempts_total",
			Help:      "LLM attempts by outcome.",
		}, []string{"outcome"}),
		LLMLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_seconds",
			Help:      "Latency of a single LLM attempt.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 60, 120},
		}),
		MemoryTurns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_turns_total",
			Help:      "Turns written to short-term memory.",
		}),
		Consolidations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_consolidations_total",
			Help:      "Core memory consolidations by result.",
		}, []string{"result"}),
		CommandsHandled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Debug commands by name.",
		}, []string{"command"}),
	}
}

func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.QueuePending.Set(float64(n))
}

func (m *Metrics) MessageQueued() {
	if m == nil {
		return
	}
	m.QueueMessages.Inc()
}

func (m *Metrics) BatchFlushed() {
	if m == nil {
		return
	}
	m.QueueFlushes.Inc()
}

func (m *Metrics) BatchDropped(reason string) {
	if m == nil {
		return
	}
	m.QueueDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveAttempt(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.LLMAttempts.WithLabelValues(outcome).Inc()
	m.LLMLatency.Observe(d.Seconds())
}

func (m *Metrics) TurnRecorded() {
	if m == nil {
		return
	}
	m.MemoryTurns.Inc()
}

func (m *Metrics) Consolidated(result string) {
	if m == nil {
		return
	}
	m.Consolidations.WithLabelValues(result).Inc()
}

func (m *Metrics) CommandHandled(name string) {
	if m == nil {
		return
	}
	m.CommandsHandled.WithLabelValues(name).Inc()
}

// Handler exposes the registry, or the default gatherer when none was set.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
