// Package metrics exports world loop signals to Prometheus.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"factorysim.ai/internal/sim/events"
)

const (
	namespace = "factorysim"
	subsystem = "world"
)

// WorldCollector implements world.MetricsSink on top of Prometheus vectors.
type WorldCollector struct {
	registry *prometheus.Registry

	stepDuration prometheus.Histogram
	eventsTotal  *prometheus.CounterVec
	queueDepth   *prometheus.GaugeVec
	poolSize     *prometheus.GaugeVec
	poolActive   *prometheus.GaugeVec
	tasks        prometheus.Gauge
	violations   *prometheus.CounterVec
}

// NewWorldCollector creates the collector and a private registry holding it plus the Go runtime
// collectors.
func NewWorldCollector(worldID string) (*WorldCollector, error) {
	labels := prometheus.Labels{"world": worldID}
	c := &WorldCollector{
		registry: prometheus.NewRegistry(),

		stepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "step_duration_seconds",
			Help:        "Wall time spent in one world step",
			ConstLabels: labels,
			Buckets:     []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "events_total",
			Help:        "Simulation events by type",
			ConstLabels: labels,
		}, []string{"type"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "facility_queue_depth",
			Help:        "Items waiting in a facility queue",
			ConstLabels: labels,
		}, []string{"facility"}),
		poolSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "pool_size",
			Help:        "Instances owned by an item pool",
			ConstLabels: labels,
		}, []string{"kind"}),
		poolActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "pool_active",
			Help:        "Pool instances currently handed out",
			ConstLabels: labels,
		}, []string{"kind"}),
		tasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "scheduled_tasks",
			Help:        "Tasks alive in the tick scheduler",
			ConstLabels: labels,
		}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "invariant_violations_total",
			Help:        "Runtime invariant violations by kind",
			ConstLabels: labels,
		}, []string{"kind"}),
	}

	cs := []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.stepDuration,
		c.eventsTotal,
		c.queueDepth,
		c.poolSize,
		c.poolActive,
		c.tasks,
		c.violations,
	}
	for _, m := range cs {
		if err := c.registry.Register(m); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return nil, err
		}
	}
	return c, nil
}

func (c *WorldCollector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the exposition format.
func (c *WorldCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *WorldCollector) ObserveStep(d time.Duration) { c.stepDuration.Observe(d.Seconds()) }

func (c *WorldCollector) CountEvents(counts map[events.Type]int) {
	for t, n := range counts {
		c.eventsTotal.WithLabelValues(string(t)).Add(float64(n))
	}
}

func (c *WorldCollector) SetQueueDepth(facility string, depth int) {
	c.queueDepth.WithLabelValues(facility).Set(float64(depth))
}

func (c *WorldCollector) SetPool(kind string, size, active int) {
	c.poolSize.WithLabelValues(kind).Set(float64(size))
	c.poolActive.WithLabelValues(kind).Set(float64(active))
}

func (c *WorldCollector) SetTasks(n int) { c.tasks.Set(float64(n)) }

func (c *WorldCollector) InvariantViolation(kind string) {
	c.violations.WithLabelValues(kind).Inc()
}
