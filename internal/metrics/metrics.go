// Package metrics exposes Prometheus counters for ingest, claims and push delivery.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Recorder interface {
	IncIngest(result string)
	IncClaim(result string)
	IncPushSend(platform, outcome string)
	ObserveDispatch(d time.Duration)
	IncCacheHit(cache string)
	IncCacheMiss(cache string)
	Handler() http.Handler
}

// Ingest and claim results.
const (
	ResultAccepted = "accepted"
	ResultIgnored  = "ignored"
	ResultRejected = "rejected"
	ResultClaimed  = "claimed"
	ResultRepeat   = "already_claimed"
	ResultError    = "error"
)

// Push send outcomes.
const (
	OutcomeDelivered = "delivered"
	OutcomeRevoked   = "revoked"
	OutcomeFailed    = "failed"
)

type promRecorder struct {
	reg          *prometheus.Registry
	ingests      *prometheus.CounterVec
	claims       *prometheus.CounterVec
	pushSends    *prometheus.CounterVec
	dispatchPass prometheus.Histogram
	cacheLookups *prometheus.CounterVec
}

// New returns a recorder on a private registry, or a no-op one when disabled.
func New(enabled bool) Recorder {
	if !enabled {
		return Noop()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &promRecorder{
		reg: reg,
		ingests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fitcollector_ingests_total",
			Help: "Step reports by result",
		}, []string{"result"}),
		claims: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fitcollector_claims_total",
			Help: "Reward claims by result",
		}, []string{"result"}),
		pushSends: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fitcollector_push_sends_total",
			Help: "Push provider calls by platform and outcome",
		}, []string{"platform", "outcome"}),
		dispatchPass: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "fitcollector_dispatch_pass_seconds",
			Help:    "Duration of one push dispatch pass",
			Buckets: prometheus.DefBuckets,
		}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fitcollector_cache_lookups_total",
			Help: "Cache lookups by cache and hit or miss",
		}, []string{"cache", "result"}),
	}
}

func (m *promRecorder) IncIngest(result string) { m.ingests.WithLabelValues(result).Inc() }

func (m *promRecorder) IncClaim(result string) { m.claims.WithLabelValues(result).Inc() }

func (m *promRecorder) IncPushSend(platform, outcome string) {
	m.pushSends.WithLabelValues(platform, outcome).Inc()
}

func (m *promRecorder) ObserveDispatch(d time.Duration) { m.dispatchPass.Observe(d.Seconds()) }

func (m *promRecorder) IncCacheHit(cache string) { m.cacheLookups.WithLabelValues(cache, "hit").Inc() }

func (m *promRecorder) IncCacheMiss(cache string) {
	m.cacheLookups.WithLabelValues(cache, "miss").Inc()
}

func (m *promRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Noop returns a recorder that drops everything.
func Noop() Recorder { return noopRecorder{} }

type noopRecorder struct{}

func (noopRecorder) IncIngest(_ string)              {}
func (noopRecorder) IncClaim(_ string)               {}
func (noopRecorder) IncPushSend(_, _ string)         {}
func (noopRecorder) ObserveDispatch(_ time.Duration) {}
func (noopRecorder) IncCacheHit(_ string)            {}
func (noopRecorder) IncCacheMiss(_ string)           {}
func (noopRecorder) Handler() http.Handler           { return http.NotFoundHandler() }
