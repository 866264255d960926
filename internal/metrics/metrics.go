package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Pipeline metrics
	Generations        *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
	SectionsGenerated  prometheus.Counter
	ContentIncluded    prometheus.Counter
	CampaignsSent      prometheus.Counter
	Deliveries         *prometheus.CounterVec
	AIRequests         *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers every metric on reg. Pass prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		Generations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "newsletter_generations_total",
			Help: "Draft generations by outcome",
		}, []string{"outcome"}),
		GenerationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "newsletter_generation_duration_seconds",
			Help:    "End-to-end draft generation latency",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 90, 120},
		}),
		SectionsGenerated: f.NewCounter(prometheus.CounterOpts{
			Name: "newsletter_sections_generated_total",
			Help: "Sections written by draft generation",
		}),
		ContentIncluded: f.NewCounter(prometheus.CounterOpts{
			Name: "newsletter_content_items_included_total",
			Help: "Inbox items absorbed into a campaign",
		}),
		CampaignsSent: f.NewCounter(prometheus.CounterOpts{
			Name: "newsletter_campaigns_sent_total",
			Help: "Campaigns moved to sent",
		}),
		Deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "newsletter_deliveries_total",
			Help: "Delivery attempts by audience and status",
		}, []string{"audience", "status"}),
		AIRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "newsletter_ai_requests_total",
			Help: "AI helper calls by kind and outcome",
		}, []string{"kind", "outcome"}),

		gatherer: reg,
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency keyed by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// The Record helpers are no-ops on a nil *Metrics.

func (m *Metrics) RecordGeneration(outcome string, d time.Duration, sections, included int) {
	if m == nil {
		return
	}
	m.Generations.WithLabelValues(outcome).Inc()
	m.GenerationDuration.Observe(d.Seconds())
	m.SectionsGenerated.Add(float64(sections))
	m.ContentIncluded.Add(float64(included))
}

func (m *Metrics) RecordSend() {
	if m == nil {
		return
	}
	m.CampaignsSent.Inc()
}

func (m *Metrics) RecordContentIncluded(n int) {
	if m == nil {
		return
	}
	m.ContentIncluded.Add(float64(n))
}

func (m *Metrics) RecordDelivery(audience, status string) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(audience, status).Inc()
}

func (m *Metrics) RecordAIRequest(kind string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.AIRequests.WithLabelValues(kind, outcome).Inc()
}
