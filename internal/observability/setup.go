package observability

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
)

const TracerName = "github.com/iamwavecut/ngguard"

var (
	registerOnce sync.Once

	tracerProvider *trace.TracerProvider

	ruleTriggeredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ngguard_rule_triggered_total",
			Help: "Total number of moderation rule firings",
		},
		[]string{"rule"},
	)

	actionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ngguard_actions_total",
			Help: "Total number of executed moderation actions",
		},
		[]string{"kind", "status"},
	)

	pipelineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ngguard_pipeline_duration_seconds",
			Help:    "Time spent evaluating one inbound event",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"pipeline"},
	)

	rateWindows = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ngguard_rate_windows",
			Help: "Number of keys currently tracked by a rate window",
		},
		[]string{"tracker"},
	)
)

// Init registers metrics and installs the tracer provider. Safe to call more than once.
func Init(_ context.Context) {
	registerOnce.Do(func() {
		prometheus.MustRegister(ruleTriggeredTotal, actionsTotal, pipelineDuration, rateWindows)

		tracerProvider = trace.NewTracerProvider()
		otel.SetTracerProvider(tracerProvider)
	})
}

// Shutdown flushes the tracer provider.
func Shutdown(ctx context.Context) error {
	if tracerProvider == nil {
		return nil
	}
	return tracerProvider.Shutdown(ctx)
}

func RecordRuleTriggered(rule string) {
	ruleTriggeredTotal.WithLabelValues(rule).Inc()
}

func RecordAction(kind, status string) {
	actionsTotal.WithLabelValues(kind, status).Inc()
}

func SetRateWindows(tracker string, keys int) {
	rateWindows.WithLabelValues(tracker).Set(float64(keys))
}

// StartPipeline returns a function that records how long the named pipeline ran.
func StartPipeline(pipeline string) func() {
	timer := prometheus.NewTimer(pipelineDuration.WithLabelValues(pipeline))
	return func() {
		timer.ObserveDuration()
	}
}

// MetricsServer exposes /metrics as a lifecycle component.
type MetricsServer struct {
	addr string

	mu  sync.Mutex
	srv *http.Server
}

func NewMetricsServer(addr string) *MetricsServer {
	return &MetricsServer{addr: addr}
}

func (m *MetricsServer) Start(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.srv != nil || m.addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	m.srv = &http.Server{
		Addr:              m.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv := m.srv
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithField("error", err.Error()).Error("metrics server failed")
		}
	}()
	return nil
}

func (m *MetricsServer) Stop(ctx context.Context) error {
	m.mu.Lock()
	srv := m.srv
	m.srv = nil
	m.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
