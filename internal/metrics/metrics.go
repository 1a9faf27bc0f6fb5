package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the indicator pipeline. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec // labels: mode, status
	RequestDuration  *prometheus.HistogramVec
	BarsFetched      prometheus.Histogram
	IndicatorErrors  *prometheus.CounterVec // labels: family
	WarningsTotal    *prometheus.CounterVec // labels: code
	ProviderRequests *prometheus.CounterVec // labels: status
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indicators_requests_total",
			Help: "Pipeline requests by mode and outcome",
		}, []string{"mode", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "indicators_request_duration_seconds",
			Help:    "Pipeline request latency including the bar fetch",
			Buckets: prometheus.DefBuckets,
		}, []string{"mode"}),
		BarsFetched: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "indicators_bars_fetched",
			Help:    "Bars returned by the market data provider per request",
			Buckets: prometheus.ExponentialBuckets(10, 2, 8),
		}),
		IndicatorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indicators_computation_errors_total",
			Help: "Indicators that produced no finite value",
		}, []string{"family"}),
		WarningsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indicators_warnings_total",
			Help: "Warnings attached to pipeline responses",
		}, []string{"code"}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indicators_provider_requests_total",
			Help: "Bar fetches by outcome",
		}, []string{"status"}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.BarsFetched,
		m.IndicatorErrors,
		m.WarningsTotal,
		m.ProviderRequests,
	)

	return m
}

func (m *Metrics) ObserveRequest(mode string, ok bool, d time.Duration) {
	if m == nil {
		return
	}

	status := "ok"
	if !ok {
		status = "error"
	}
	m.RequestsTotal.WithLabelValues(mode, status).Inc()
	m.RequestDuration.WithLabelValues(mode).Observe(d.Seconds())
}

func (m *Metrics) ObserveFetch(bars int, err error) {
	if m == nil {
		return
	}

	if err != nil {
		m.ProviderRequests.WithLabelValues("error").Inc()
		return
	}
	m.ProviderRequests.WithLabelValues("ok").Inc()
	m.BarsFetched.Observe(float64(bars))
}

func (m *Metrics) IndicatorFailed(family string) {
	if m == nil {
		return
	}
	m.IndicatorErrors.WithLabelValues(family).Inc()
}

func (m *Metrics) Warning(code string) {
	if m == nil {
		return
	}
	m.WarningsTotal.WithLabelValues(code).Inc()
}

// Server exposes /metrics over HTTP.
type Server struct {
	log *slog.Logger
	srv *http.Server
}

func NewServer(log *slog.Logger, addr string, g prometheus.Gatherer) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	return &Server{
		log: log,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

func (s *Server) Start() {
	go func() {
		s.log.Info("metrics server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("metrics server stopped", "error", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
