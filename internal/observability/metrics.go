// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bot-sim-lab/internal/domain"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Simulation metrics
	RunsTotal        *prometheus.CounterVec
	RunDuration      *prometheus.HistogramVec
	CandlesReplayed  *prometheus.CounterVec
	DealsClosed      *prometheus.CounterVec
	RunErrors        *prometheus.CounterVec
	RunsDeduplicated prometheus.Counter

	// Verification and reporting
	VerificationsTotal *prometheus.CounterVec
	ReportsGenerated   prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg selects the default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "bot_sim_lab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "runs_total",
			Help:      "Total number of completed runs by bot type and gate decision",
		}, []string{"bot_type", "decision"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "run_duration_seconds",
			Help:      "Simulation duration in seconds, persistence included",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"bot_type"}),
		CandlesReplayed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "candles_replayed_total",
			Help:      "Total number of candles fed to simulators",
		}, []string{"bot_type"}),
		DealsClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "deals_closed_total",
			Help:      "Total number of closed deals by bot type and exit reason",
		}, []string{"bot_type", "exit_reason"}),
		RunErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "run_errors_total",
			Help:      "Total number of failed runs by stage",
		}, []string{"stage"}),
		RunsDeduplicated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "runs_deduplicated_total",
			Help:      "Total number of runs already present in storage",
		}),

		VerificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "replays_total",
			Help:      "Total number of replay verifications by outcome",
		}, []string{"outcome"}),
		ReportsGenerated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reporting",
			Name:      "reports_generated_total",
			Help:      "Total number of reports generated",
		}),

		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"store", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"store", "operation"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status code",
		}, []string{"route", "code"}),

		LastSuccessfulRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordRun records a completed run and its closed deals.
func RecordRun(res *domain.BotResult, candles int, decision string, durationSeconds float64) {
	bt := string(res.BotType)
	DefaultMetrics.RunsTotal.WithLabelValues(bt, decision).Inc()
	DefaultMetrics.RunDuration.WithLabelValues(bt).Observe(durationSeconds)
	DefaultMetrics.CandlesReplayed.WithLabelValues(bt).Add(float64(candles))
	for _, d := range res.Deals {
		DefaultMetrics.DealsClosed.WithLabelValues(bt, string(d.ExitReason)).Inc()
	}
}

// RecordRunError records a failed run at the given stage.
func RecordRunError(stage string) {
	DefaultMetrics.RunErrors.WithLabelValues(stage).Inc()
}

// RecordRunDeduplicated records a run that was already stored.
func RecordRunDeduplicated() {
	DefaultMetrics.RunsDeduplicated.Inc()
}

// RecordVerification records a replay verification outcome.
func RecordVerification(passed bool) {
	outcome := "pass"
	if !passed {
		outcome = "fail"
	}
	DefaultMetrics.VerificationsTotal.WithLabelValues(outcome).Inc()
}

// RecordReportGenerated increments the reports counter.
func RecordReportGenerated() {
	DefaultMetrics.ReportsGenerated.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(store, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(store, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(store, operation).Inc()
	}
}

// RecordHTTPRequest records a served request.
func RecordHTTPRequest(route, code string) {
	DefaultMetrics.HTTPRequests.WithLabelValues(route, code).Inc()
}

// SetLastSuccessfulRun updates the health gauge.
func SetLastSuccessfulRun(unixSeconds int64) {
	DefaultMetrics.LastSuccessfulRun.Set(float64(unixSeconds))
}
