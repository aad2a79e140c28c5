// Package metrics holds the Prometheus collectors for the service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "portfolio_risk"

// Registry holds every collector. All recording methods are safe on a nil
// receiver so components can run without metrics.
type Registry struct {
	registry *prometheus.Registry

	HTTPRequestDuration *prometheus.HistogramVec
	ProviderRequests    *prometheus.CounterVec
	PriceCacheLookups   *prometheus.CounterVec
	RiskAnalyses        *prometheus.CounterVec
	AlertTicks          prometheus.Counter
	AlertTickDuration   prometheus.Histogram
	AlertChecks         *prometheus.CounterVec
	AlertTriggers       *prometheus.CounterVec
	ActiveAlerts        prometheus.Gauge
	EmailDispatches     *prometheus.CounterVec
}

// NewRegistry creates the collectors and registers them on a private registry
func NewRegistry() *Registry {
	m := &Registry{
		registry: prometheus.NewRegistry(),

		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests by route and status",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"route", "method", "status"},
		),
		ProviderRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_requests_total",
				Help:      "Outbound market data requests by provider, operation and result",
			},
			[]string{"provider", "operation", "result"},
		),
		PriceCacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "price_cache_lookups_total",
				Help:      "Price cache lookups by result",
			},
			[]string{"result"},
		),
		RiskAnalyses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "risk_analyses_total",
				Help:      "Portfolio risk analyses by chain and outcome",
			},
			[]string{"chain", "outcome"},
		),
		AlertTicks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alert_monitor_ticks_total",
				Help:      "Completed alert monitor ticks",
			},
		),
		AlertTickDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "alert_monitor_tick_duration_seconds",
				Help:      "Wall time of one alert monitor tick",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		AlertChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alert_checks_total",
				Help:      "Per-alert price checks by result",
			},
			[]string{"result"},
		),
		AlertTriggers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alert_triggers_total",
				Help:      "Alert transitions to triggered by threshold type",
			},
			[]string{"threshold"},
		),
		ActiveAlerts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "alerts_active",
				Help:      "Alerts currently waiting for a threshold crossing",
			},
		),
		EmailDispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alert_email_dispatches_total",
				Help:      "Alert email dispatch attempts by result",
			},
			[]string{"result"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestDuration,
		m.ProviderRequests,
		m.PriceCacheLookups,
		m.RiskAnalyses,
		m.AlertTicks,
		m.AlertTickDuration,
		m.AlertChecks,
		m.AlertTriggers,
		m.ActiveAlerts,
		m.EmailDispatches,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Registry) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTPRequest records one served request
func (m *Registry) ObserveHTTPRequest(route, method, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(route, method, status).Observe(d.Seconds())
}

// RecordProviderRequest counts one outbound call
func (m *Registry) RecordProviderRequest(provider, operation, result string) {
	if m == nil {
		return
	}
	m.ProviderRequests.WithLabelValues(provider, operation, result).Inc()
}

// RecordCacheLookup counts a price cache hit or miss
func (m *Registry) RecordCacheLookup(result string) {
	if m == nil {
		return
	}
	m.PriceCacheLookups.WithLabelValues(result).Inc()
}

// RecordRiskAnalysis counts a completed analysis
func (m *Registry) RecordRiskAnalysis(chain, outcome string) {
	if m == nil {
		return
	}
	m.RiskAnalyses.WithLabelValues(chain, outcome).Inc()
}

// ObserveAlertTick records a finished monitor tick
func (m *Registry) ObserveAlertTick(d time.Duration, active int) {
	if m == nil {
		return
	}
	m.AlertTicks.Inc()
	m.AlertTickDuration.Observe(d.Seconds())
	m.ActiveAlerts.Set(float64(active))
}

// RecordAlertCheck counts one per-alert check
func (m *Registry) RecordAlertCheck(result string) {
	if m == nil {
		return
	}
	m.AlertChecks.WithLabelValues(result).Inc()
}

// RecordAlertTrigger counts one transition
func (m *Registry) RecordAlertTrigger(threshold string) {
	if m == nil {
		return
	}
	m.AlertTriggers.WithLabelValues(threshold).Inc()
}

// RecordEmailDispatch counts one email attempt
func (m *Registry) RecordEmailDispatch(result string) {
	if m == nil {
		return
	}
	m.EmailDispatches.WithLabelValues(result).Inc()
}
