package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fieldops/logistics-simulator/core"
)

// RunCollector bundles Prometheus metrics for a simulation run and exposes
// a /metrics handler. It observes the engine through the event log's
// observer hook, so the engine itself stays metrics-agnostic.
type RunCollector struct {
	gatherer prometheus.Gatherer

	EventsTotal      *prometheus.CounterVec
	DispatchesTotal  *prometheus.CounterVec
	StockoutsTotal   prometheus.Counter
	CasualtyWaitMins prometheus.Histogram
	QueueDepth       *prometheus.GaugeVec
	IdleVehicles     *prometheus.GaugeVec
}

// NewRunCollector registers run metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewRunCollector(reg prometheus.Registerer) (*RunCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_events_total",
		Help: "Total simulation events recorded, labeled by event kind.",
	}, []string{"kind"})
	events, err := registerCounterVec(reg, events, "sim_events_total")
	if err != nil {
		return nil, err
	}

	dispatches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_dispatches_total",
		Help: "Vehicle dispatches, labeled by mission type.",
	}, []string{"mission"})
	dispatches, err = registerCounterVec(reg, dispatches, "sim_dispatches_total")
	if err != nil {
		return nil, err
	}

	stockouts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_stockouts_total",
		Help: "Ammunition requests dropped because no supply point could issue stock.",
	})
	stockouts, err = registerCounter(reg, stockouts, "sim_stockouts_total")
	if err != nil {
		return nil, err
	}

	waitHist := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_casualty_wait_mins",
		Help:    "Casualty wait time from generation to collection, in simulated minutes.",
		Buckets: []float64{5, 10, 20, 30, 45, 60, 90, 120, 180, 240},
	})
	waitHist, err = registerHistogram(reg, waitHist, "sim_casualty_wait_mins")
	if err != nil {
		return nil, err
	}

	queueDepth := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sim_dispatch_queue_depth",
		Help: "Pending requests per dispatch queue.",
	}, []string{"queue"})
	queueDepth, err = registerGaugeVec(reg, queueDepth, "sim_dispatch_queue_depth")
	if err != nil {
		return nil, err
	}

	idleVehicles := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sim_idle_vehicles",
		Help: "Vehicles currently in an idle dispatch pool, labeled by role.",
	}, []string{"role"})
	idleVehicles, err = registerGaugeVec(reg, idleVehicles, "sim_idle_vehicles")
	if err != nil {
		return nil, err
	}

	return &RunCollector{
		gatherer:         gatherer,
		EventsTotal:      events,
		DispatchesTotal:  dispatches,
		StockoutsTotal:   stockouts,
		CasualtyWaitMins: waitHist,
		QueueDepth:       queueDepth,
		IdleVehicles:     idleVehicles,
	}, nil
}

// ObserveEvent updates metrics from one simulation event. Wire it to the
// log with EventLog.SetObserver.
func (c *RunCollector) ObserveEvent(ev core.Event) {
	if c == nil {
		return
	}
	if c.EventsTotal != nil {
		c.EventsTotal.WithLabelValues(string(ev.Kind)).Inc()
	}

	switch ev.Kind {
	case core.EventVehicleDispatched:
		if c.DispatchesTotal != nil {
			c.DispatchesTotal.WithLabelValues(missionType(ev)).Inc()
		}
	case core.EventStockout:
		if c.StockoutsTotal != nil {
			c.StockoutsTotal.Inc()
		}
	case core.EventCasualtyCollected:
		if c.CasualtyWaitMins == nil {
			return
		}
		if wait, ok := ev.Details["wait_time_mins"].(float64); ok {
			c.CasualtyWaitMins.Observe(wait)
		}
	}
}

// SetQueueDepths updates the dispatch-queue depth gauges.
func (c *RunCollector) SetQueueDepths(casualty, recovery, ammo int) {
	if c == nil || c.QueueDepth == nil {
		return
	}
	c.QueueDepth.WithLabelValues("casualty").Set(float64(casualty))
	c.QueueDepth.WithLabelValues("recovery").Set(float64(recovery))
	c.QueueDepth.WithLabelValues("ammo").Set(float64(ammo))
}

// SetIdleVehicles updates the idle-pool gauges.
func (c *RunCollector) SetIdleVehicles(ambulance, recovery, logistics int) {
	if c == nil || c.IdleVehicles == nil {
		return
	}
	c.IdleVehicles.WithLabelValues("ambulance").Set(float64(ambulance))
	c.IdleVehicles.WithLabelValues("recovery").Set(float64(recovery))
	c.IdleVehicles.WithLabelValues("logistics").Set(float64(logistics))
}

// WatchEngine returns an event observer that feeds the counters and, on
// every event, refreshes the queue-depth and idle-pool gauges from the
// engine. Wire it with EventLog.SetObserver.
func (c *RunCollector) WatchEngine(engine *core.Engine) func(core.Event) {
	return func(ev core.Event) {
		c.ObserveEvent(ev)
		c.SetQueueDepths(engine.QueueDepths())
		c.SetIdleVehicles(engine.IdleVehicles())
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *RunCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func missionType(ev core.Event) string {
	switch {
	case ev.Details["casualty_id"] != nil:
		return "casualty"
	case ev.Details["breakdown_id"] != nil:
		return "recovery"
	case ev.Details["ammo_request_id"] != nil:
		return "ammo"
	default:
		return "unknown"
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}
