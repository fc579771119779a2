package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "roombook"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status class.",
		},
		[]string{"endpoint", "code"},
	)

	grpcRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "gRPC requests by method and status code.",
		},
		[]string{"method", "code"},
	)

	quotes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_total",
			Help:      "Priced items by outcome.",
		},
		[]string{"outcome"},
	)

	holds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "holds_total",
			Help:      "Check-and-hold attempts by outcome.",
		},
		[]string{"outcome"},
	)

	conflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflicts_total",
			Help:      "Availability conflicts by reason.",
		},
		[]string{"reason"},
	)

	confirmations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirmations_total",
			Help:      "Reservation confirmations by outcome.",
		},
		[]string{"outcome"},
	)

	catalogFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_fallbacks_total",
			Help:      "Catalog reads served from a fallback source.",
		},
		[]string{"source"},
	)

	sweptHolds = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "holds_swept_total",
			Help:      "Expired holds removed by the sweeper.",
		},
	)

	workerTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_tasks_total",
			Help:      "Reconcile worker tasks by type and result.",
		},
		[]string{"type", "result"},
	)

	botCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bot_commands_total",
			Help:      "Operator bot commands by command and result.",
		},
		[]string{"command", "result"},
	)

	botUpdateTime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bot_update_processing_seconds",
			Help:      "Time spent processing Telegram updates.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	lockWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resource_lock_wait_seconds",
			Help:      "Time spent acquiring per-resource locks.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			grpcRequests,
			quotes,
			holds,
			conflicts,
			confirmations,
			catalogFallbacks,
			sweptHolds,
			workerTasks,
			lockWait,
			botCommands,
			botUpdateTime,
		)
	})
}

func IncHTTP(endpoint, code string) {
	httpRequests.WithLabelValues(endpoint, code).Inc()
}

func IncGRPC(method, code string) {
	grpcRequests.WithLabelValues(method, code).Inc()
}

func IncQuote(outcome string) {
	quotes.WithLabelValues(outcome).Inc()
}

func IncHold(outcome string) {
	holds.WithLabelValues(outcome).Inc()
}

func IncConflict(reason string) {
	conflicts.WithLabelValues(reason).Inc()
}

func IncConfirmation(outcome string) {
	confirmations.WithLabelValues(outcome).Inc()
}

func IncCatalogFallback(source string) {
	catalogFallbacks.WithLabelValues(source).Inc()
}

func AddSweptHolds(n int64) {
	if n > 0 {
		sweptHolds.Add(float64(n))
	}
}

func IncWorkerTask(taskType, result string) {
	workerTasks.WithLabelValues(taskType, result).Inc()
}

func ObserveLockWait(seconds float64) {
	lockWait.Observe(seconds)
}

func IncBotCommand(command, result string) {
	botCommands.WithLabelValues(command, result).Inc()
}

func ObserveBotUpdate(seconds float64) {
	botUpdateTime.Observe(seconds)
}
