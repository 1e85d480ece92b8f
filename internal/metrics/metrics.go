package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Collector owns the engine's Prometheus instruments. All instruments hang
// off a private registry so tests can run collectors side by side.
type Collector struct {
	registry *prometheus.Registry

	frameTime     prometheus.Histogram
	phaseTime     *prometheus.HistogramVec
	systemRuntime *prometheus.GaugeVec
	taskOutcomes  *prometheus.CounterVec
	framesTotal   prometheus.Counter

	server *http.Server
	log    *zap.Logger
}

func NewCollector(log *zap.Logger) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		log:      log,
		frameTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "voksel",
			Name:      "frame_seconds",
			Help:      "Wall-clock duration of one full frame.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		phaseTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voksel",
			Name:      "phase_seconds",
			Help:      "Wall-clock duration of one orchestrator phase.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}, []string{"phase"}),
		systemRuntime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "voksel",
			Name:      "system_runtime_seconds",
			Help:      "Most recent runtime of each registered system.",
		}, []string{"system"}),
		taskOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voksel",
			Name:      "task_outcomes_total",
			Help:      "Terminal task states, by outcome.",
		}, []string{"outcome"}),
		framesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voksel",
			Name:      "frames_total",
			Help:      "Frames executed since start.",
		}),
	}
	c.registry.MustRegister(
		c.frameTime, c.phaseTime, c.systemRuntime, c.taskOutcomes, c.framesTotal)
	return c
}

func (c *Collector) ObserveFrame(d time.Duration) {
	c.frameTime.Observe(d.Seconds())
	c.framesTotal.Inc()
}

func (c *Collector) ObservePhase(phase string, d time.Duration) {
	c.phaseTime.WithLabelValues(phase).Observe(d.Seconds())
}

func (c *Collector) SetSystemRuntime(system string, d time.Duration) {
	c.systemRuntime.WithLabelValues(system).Set(d.Seconds())
}

func (c *Collector) AddTaskOutcomes(outcome string, n int) {
	if n > 0 {
		c.taskOutcomes.WithLabelValues(outcome).Add(float64(n))
	}
}

// Serve exposes /metrics on addr until Shutdown. Runs in its own goroutine.
func (c *Collector) Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	c.server = &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := c.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.log.Error("metrics endpoint failed", zap.Error(err))
		}
	}()
	c.log.Info("metrics endpoint listening", zap.String("addr", addr))
}

func (c *Collector) Shutdown(ctx context.Context) {
	if c.server == nil {
		return
	}
	if err := c.server.Shutdown(ctx); err != nil {
		c.log.Warn("metrics endpoint shutdown", zap.Error(err))
	}
}
