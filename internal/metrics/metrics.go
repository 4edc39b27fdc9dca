// Package metrics holds the Prometheus collectors of the service.
//
// Collectors live on their own registry so tests and multiple servers in one
// process never collide on the default registerer.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "staff_ordering"

var Registry = prometheus.NewRegistry()

var (
	OrdersPlaced = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orders",
		Name:      "placed_total",
		Help:      "Orders placed successfully.",
	})

	// OrderRejections counts failed order operations by error kind.
	OrderRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "rejections_total",
			Help:      "Order operations that failed, by operation and error kind.",
		},
		[]string{"operation", "kind"},
	)

	OrderTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "transitions_total",
			Help:      "Applied order status transitions.",
		},
		[]string{"from", "to"},
	)

	// StockMovedKg tracks kilograms taken from or returned to stock.
	StockMovedKg = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stock",
			Name:      "moved_kg_total",
			Help:      "Kilograms decremented from or returned to product stock.",
		},
		[]string{"direction"},
	)

	AccountGuardRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "accounts",
			Name:      "guard_rejections_total",
			Help:      "Account status changes or removals rejected by the guard.",
		},
		[]string{"operation"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		OrdersPlaced,
		OrderRejections,
		OrderTransitions,
		StockMovedKg,
		AccountGuardRejections,
		RequestDuration,
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one served HTTP request.
func ObserveRequest(method, route string, status int, elapsed time.Duration) {
	RequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
