package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// RouterMetrics aggregates the Prometheus collectors for route execution.
type RouterMetrics struct {
	ExecutionsStarted   prometheus.Counter
	ExecutionsCompleted prometheus.Counter
	ExecutionsAborted   *prometheus.CounterVec
	CallbacksProcessed  *prometheus.CounterVec
	OutboundCalls       *prometheus.CounterVec
	FeesCharged         prometheus.Counter
	QuoteRequests       *prometheus.CounterVec
}

var (
	routerMetricsOnce sync.Once
	routerRegistry    *RouterMetrics
)

// Metrics returns the lazily-initialised router metrics, registered with the
// supplied registerer on first use.
func Metrics(reg prometheus.Registerer) *RouterMetrics {
	routerMetricsOnce.Do(func() {
		routerRegistry = newRouterMetrics()
		if reg != nil {
			routerRegistry.register(reg)
		}
	})
	return routerRegistry
}

func newRouterMetrics() *RouterMetrics {
	return &RouterMetrics{
		ExecutionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "swaproute",
			Subsystem: "router",
			Name:      "executions_started_total",
			Help:      "Route executions accepted and dispatched.",
		}),
		ExecutionsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "swaproute",
			Subsystem: "router",
			Name:      "executions_completed_total",
			Help:      "Route executions that reached final settlement.",
		}),
		ExecutionsAborted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swaproute",
			Subsystem: "router",
			Name:      "executions_aborted_total",
			Help:      "Route executions aborted, segmented by reason.",
		}, []string{"reason"}),
		CallbacksProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swaproute",
			Subsystem: "router",
			Name:      "callbacks_processed_total",
			Help:      "Settlement callbacks applied, segmented by outcome.",
		}, []string{"outcome"}),
		OutboundCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swaproute",
			Subsystem: "router",
			Name:      "outbound_calls_total",
			Help:      "Outbound venue and adapter calls, segmented by kind.",
		}, []string{"kind"}),
		FeesCharged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "swaproute",
			Subsystem: "router",
			Name:      "fees_charged_total",
			Help:      "Fee transfers forwarded to the collector.",
		}),
		QuoteRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swaproute",
			Subsystem: "gateway",
			Name:      "quote_requests_total",
			Help:      "Quote simulations served, segmented by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *RouterMetrics) register(reg prometheus.Registerer) {
	reg.MustRegister(
		m.ExecutionsStarted,
		m.ExecutionsCompleted,
		m.ExecutionsAborted,
		m.CallbacksProcessed,
		m.OutboundCalls,
		m.FeesCharged,
		m.QuoteRequests,
	)
}
