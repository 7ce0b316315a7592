package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the accounts service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	resolutions     *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec
	gatewayCalls    *prometheus.CounterVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		resolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounts_resolutions_total",
				Help: "Account resolutions by resulting state.",
			},
			[]string{"account_type", "state"},
		),
		gatewayDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "accounts_gateway_call_duration_seconds",
				Help:    "Duration of payment gateway operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"gateway", "operation"},
		),
		gatewayCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounts_gateway_calls_total",
				Help: "Payment gateway operations by outcome.",
			},
			[]string{"gateway", "operation", "status"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounts_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounts_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounts_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
	}
}

// RecordResolution counts one account resolution.
func (m *Metrics) RecordResolution(accountType, state string) {
	m.resolutions.WithLabelValues(accountType, state).Inc()
}

// RecordGatewayCall records the outcome and duration of a gateway operation.
func (m *Metrics) RecordGatewayCall(gateway, operation, status string, d time.Duration) {
	m.gatewayDuration.WithLabelValues(gateway, operation).Observe(d.Seconds())
	m.gatewayCalls.WithLabelValues(gateway, operation, status).Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// ResolutionSnapshot is returned by GET /v1/metrics/accounts.
type ResolutionSnapshot struct {
	Bound        int64   `json:"bound"`
	AutoBound    int64   `json:"auto_bound"`
	Unbound      int64   `json:"unbound"`
	Unclassified int64   `json:"unclassified"`
	BindRate     float64 `json:"bind_rate"`
}

// Snapshot sums resolution counters across account types.
func (m *Metrics) Snapshot() *ResolutionSnapshot {
	totals := map[string]float64{}
	ch := make(chan prometheus.Metric, 64)
	go func() {
		m.resolutions.Collect(ch)
		close(ch)
	}()
	for metric := range ch {
		pb := &dto.Metric{}
		if err := metric.Write(pb); err != nil || pb.Counter == nil {
			continue
		}
		for _, lp := range pb.GetLabel() {
			if lp.GetName() == "state" {
				totals[lp.GetValue()] += pb.Counter.GetValue()
			}
		}
	}

	s := &ResolutionSnapshot{
		Bound:        int64(totals["bound"]),
		AutoBound:    int64(totals["auto_bound"]),
		Unbound:      int64(totals["unbound"]),
		Unclassified: int64(totals["unclassified"]),
	}
	total := totals["bound"] + totals["auto_bound"] + totals["unbound"] + totals["unclassified"]
	if total > 0 {
		s.BindRate = (totals["bound"] + totals["auto_bound"]) / total
	}
	return s
}
