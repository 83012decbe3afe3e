package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/gin-gonic/contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/scusemua/offer-ranking/common/utils"
)

const (
	Namespace = "offer_ranking"

	MetricsRoute = "/metrics"
)

var (
	ErrPrometheusManagerAlreadyRunning = errors.New("RankingPrometheusManager is already running")
	ErrPrometheusManagerNotRunning     = errors.New("RankingPrometheusManager is not running")
)

// RankingPrometheusManager exposes the measurements of an HTTP offer set as Prometheus metrics.
//
// Metrics are registered with a registry owned by the manager, so several managers may exist in one
// process. They can be recorded before the manager is started; Start only begins serving them.
type RankingPrometheusManager struct {
	log logger.Logger

	registry          *prometheus.Registry
	prometheusHandler http.Handler
	engine            *gin.Engine
	httpServer        *http.Server

	// LatencyMicrosecondsVec is the latency, in microseconds, of exchanges with the ranking service.
	//
	// This metric requires the "outcome" label, which is either "success" or "failure".
	LatencyMicrosecondsVec *prometheus.HistogramVec

	// FailuresCounterVec counts failed ranking requests by the "kind" of failure.
	FailuresCounterVec *prometheus.CounterVec

	// FallbacksCounterVec counts requests that were answered with the fallback ordering, by "reason".
	FallbacksCounterVec *prometheus.CounterVec

	// EnabledGauge is 1 while the ranking service is consulted and 0 once it has been disabled.
	EnabledGauge prometheus.Gauge

	port int
	mu   sync.Mutex

	// serving indicates whether the manager has been started.
	serving bool
}

// NewRankingPrometheusManager creates a new RankingPrometheusManager that serves on the given port.
//
// If port is not positive, Start does not serve anything and the metrics are only reachable through Handler.
func NewRankingPrometheusManager(port int) *RankingPrometheusManager {
	manager := &RankingPrometheusManager{
		port:     port,
		registry: prometheus.NewRegistry(),
	}
	config.InitLogger(&manager.log, manager)

	manager.prometheusHandler = promhttp.HandlerFor(manager.registry, promhttp.HandlerOpts{Registry: manager.registry})
	manager.initializeMetrics()
	manager.initializeEngine()

	return manager
}

func (m *RankingPrometheusManager) initializeMetrics() {
	m.LatencyMicrosecondsVec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "latency_microseconds",
		Help:      "Latency in microseconds of requests to the external ranking service, from encoding the request to decoding the response.",
		Buckets:   []float64{100, 500, 1000, 2500, 5000, 10e3, 25e3, 50e3, 100e3, 250e3, 500e3, 1e6, 5e6},
	}, []string{"outcome"})

	m.FailuresCounterVec = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "failures_total",
		Help:      "The number of ranking requests that failed and were counted against the ranking service.",
	}, []string{"kind"})

	m.FallbacksCounterVec = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "fallbacks_total",
		Help:      "The number of scheduling attempts that used the fallback ordering of offers.",
	}, []string{"reason"})

	m.EnabledGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "enabled",
		Help:      "1 if the external ranking service is consulted, 0 if it has been disabled.",
	})

	m.registry.MustRegister(m.LatencyMicrosecondsVec, m.FailuresCounterVec, m.FallbacksCounterVec, m.EnabledGauge)
}

func (m *RankingPrometheusManager) initializeEngine() {
	m.engine = gin.New()

	// m.engine.Use(gin.Logger())
	m.engine.Use(gin.Recovery())
	m.engine.Use(cors.Default())

	m.engine.GET(MetricsRoute, m.HandleRequest)
}

// Handler returns the http.Handler that serves the metrics.
func (m *RankingPrometheusManager) Handler() http.Handler {
	return m.engine
}

// HandleRequest handles Prometheus HTTP requests (when Prometheus is scraping for metrics).
func (m *RankingPrometheusManager) HandleRequest(c *gin.Context) {
	m.prometheusHandler.ServeHTTP(c.Writer, c.Request)
}

// IsRunning returns true if the manager has been started.
func (m *RankingPrometheusManager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.serving
}

// Start begins serving the metrics via an HTTP endpoint.
func (m *RankingPrometheusManager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.serving {
		m.log.Warn("RankingPrometheusManager is already running.")
		return ErrPrometheusManagerAlreadyRunning
	}

	m.serving = true

	if m.port <= 0 {
		m.log.Debug("Prometheus Port is set to %d. Not serving HTTP server.", m.port)
		return nil
	}

	address := fmt.Sprintf("0.0.0.0:%d", m.port)
	m.httpServer = &http.Server{
		Addr:    address,
		Handler: m.engine,
	}

	go func(server *http.Server) {
		m.log.Debug("Serving Prometheus metrics at %s", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Error(utils.RedStyle.Render("HTTP Server failed to listen on '%s'. Error: %v"), address, err)
		}
	}(m.httpServer)

	return nil
}

// Stop shuts down the HTTP server of the manager.
func (m *RankingPrometheusManager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.serving {
		m.log.Warn("RankingPrometheusManager is not running.")
		return ErrPrometheusManagerNotRunning
	}

	m.serving = false
	if m.httpServer == nil {
		return nil
	}

	server := m.httpServer
	m.httpServer = nil
	if err := server.Shutdown(context.Background()); err != nil {
		m.log.Error("Failed to cleanly shutdown the HTTP server: %v", err)
		return err
	}

	return nil
}

// ObserveLatency records the duration of one exchange with the ranking service.
func (m *RankingPrometheusManager) ObserveLatency(latency time.Duration, outcome string) {
	m.LatencyMicrosecondsVec.With(prometheus.Labels{"outcome": outcome}).Observe(float64(latency.Microseconds()))
}

// RecordFailure counts a failed ranking request.
func (m *RankingPrometheusManager) RecordFailure(kind string) {
	m.FailuresCounterVec.With(prometheus.Labels{"kind": kind}).Inc()
}

// RecordFallback counts a request that was answered with the fallback ordering.
func (m *RankingPrometheusManager) RecordFallback(reason string) {
	m.FallbacksCounterVec.With(prometheus.Labels{"reason": reason}).Inc()
}

func (m *RankingPrometheusManager) SetEnabled(enabled bool) {
	if enabled {
		m.EnabledGauge.Set(1)
	} else {
		m.EnabledGauge.Set(0)
	}
}
