package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/fieldops/logistics-simulator/internal/logging"
	"github.com/fieldops/logistics-simulator/model"
)

// RunState tracks the engine lifecycle. A single engine instance executes
// exactly one run.
type RunState string

const (
	RunSetup   RunState = "setup"
	RunRunning RunState = "running"
	RunEnded   RunState = "ended"
	RunAborted RunState = "aborted"
)

var (
	// ErrNilScenario is returned when the engine is constructed without a
	// scenario.
	ErrNilScenario = errors.New("core: scenario is nil")

	// ErrAlreadyRun is returned when Run is called more than once on the
	// same engine.
	ErrAlreadyRun = errors.New("core: engine has already run")
)

// VehicleRuntime is the mutable per-vehicle state during a run. Exactly one
// logical process mutates it at a time, enforced by the scheduler's strict
// handoff.
type VehicleRuntime struct {
	ID       string
	Callsign string
	Type     *model.VehicleType

	State    model.VehicleState
	Location string

	// Statistics
	DistanceKm float64
	BusyMins   float64
	Missions   int

	// Extended-operations tracking
	opsStartMins float64

	// outOfService is held by whichever modulator pulled the vehicle out
	// (crew rest, maintenance, breakdown). While set, mission completion
	// does not return the vehicle to its idle pool.
	outOfService bool
}

// Engine orchestrates one simulation run: it owns the scheduler, the
// routing graph, the node resources, the vehicle registry and idle pools,
// and the dispatch queues. The scenario is treated as read-only input.
type Engine struct {
	scenario *model.Scenario
	logger   logging.Logger
	ctx      context.Context

	sched *Scheduler
	graph *Graph
	rng   *rand.Rand
	log   *EventLog

	treatmentSlots map[string]*Resource
	repairBays     map[string]*Resource
	ammoStock      map[string]int

	casualtyQueue *dispatchQueue[*Casualty]
	recoveryQueue *dispatchQueue[*Breakdown]
	ammoQueue     *dispatchQueue[*AmmoRequest]

	vehicles     map[string]*VehicleRuntime
	vehicleOrder []string

	idleAmbulances []string
	idleRecovery   map[model.VehicleClass][]string
	idleLogistics  []string

	state   RunState
	aborted bool
}

// NewEngine validates the scenario and prepares a run. The logger may be
// nil, in which case engine diagnostics are dropped.
func NewEngine(scenario *model.Scenario, logger logging.Logger) (*Engine, error) {
	if scenario == nil {
		return nil, ErrNilScenario
	}
	if err := scenario.Validate(); err != nil {
		return nil, fmt.Errorf("core: invalid scenario: %w", err)
	}
	if logger == nil {
		logger = logging.Noop()
	}

	e := &Engine{
		scenario:       scenario,
		logger:         logger,
		sched:          NewScheduler(),
		graph:          BuildGraph(scenario),
		rng:            rand.New(rand.NewSource(scenario.Config.RandomSeed)),
		log:            NewEventLog(),
		treatmentSlots: make(map[string]*Resource),
		repairBays:     make(map[string]*Resource),
		ammoStock:      make(map[string]int),
		casualtyQueue:  newDispatchQueue[*Casualty](),
		recoveryQueue:  newDispatchQueue[*Breakdown](),
		ammoQueue:      newDispatchQueue[*AmmoRequest](),
		vehicles:       make(map[string]*VehicleRuntime),
		idleRecovery: map[model.VehicleClass][]string{
			model.ClassLight:  nil,
			model.ClassMedium: nil,
			model.ClassHeavy:  nil,
		},
		state: RunSetup,
	}

	e.createResources()
	e.initVehicles()
	return e, nil
}

// Log exposes the event log. It is safe to read after Run returns; during
// a run it reflects events recorded so far.
func (e *Engine) Log() *EventLog { return e.log }

// State returns the engine lifecycle state.
func (e *Engine) State() RunState { return e.state }

// ClockMins returns the current simulation clock in virtual minutes.
func (e *Engine) ClockMins() float64 { return e.sched.Now() }

// Vehicles returns the runtime registry, keyed by vehicle ID.
func (e *Engine) Vehicles() map[string]*VehicleRuntime { return e.vehicles }

// QueueDepths reports the pending entries per dispatch queue.
func (e *Engine) QueueDepths() (casualty, recovery, ammo int) {
	return e.casualtyQueue.Len(), e.recoveryQueue.Len(), e.ammoQueue.Len()
}

// IdleVehicles reports vehicles currently in an idle dispatch pool, by
// role. Vehicles held out by rest, maintenance or breakdown are absent
// from every pool and therefore not counted.
func (e *Engine) IdleVehicles() (ambulance, recovery, logistics int) {
	for _, pool := range e.idleRecovery {
		recovery += len(pool)
	}
	return len(e.idleAmbulances), recovery, len(e.idleLogistics)
}

// Run executes the simulation to the configured duration (or until the
// event cap trips) and returns the completed event log. A second call
// returns ErrAlreadyRun.
func (e *Engine) Run(ctx context.Context) (*EventLog, error) {
	if e.state != RunSetup {
		return nil, ErrAlreadyRun
	}
	e.state = RunRunning
	e.ctx = ctx

	cfg := &e.scenario.Config
	e.logger.Info(ctx, "simulation starting",
		logging.String("scenario", e.scenario.Name),
		logging.Any("seed", cfg.RandomSeed),
		logging.Any("duration_hours", cfg.Duration()),
	)

	e.record(EventSimulationStarted, "SYSTEM", "", map[string]any{
		"duration_hours": cfg.Duration(),
		"seed":           cfg.RandomSeed,
	})

	e.startDemandGenerators()
	e.startVehicleProcesses()
	e.startExtendedOperations()

	e.sched.Run(cfg.DurationMins())
	e.sched.Shutdown()

	if e.aborted {
		e.state = RunAborted
	} else {
		e.state = RunEnded
		e.record(EventSimulationEnded, "SYSTEM", "", map[string]any{
			"total_events":     len(e.log.Events()),
			"total_casualties": len(e.log.Casualties()),
		})
	}

	e.logger.Info(ctx, "simulation finished",
		logging.String("state", string(e.state)),
		logging.Int("events", len(e.log.Events())),
		logging.Any("clock_mins", e.sched.Now()),
	)
	return e.log, nil
}

// record appends an event and enforces the event-count safety cap.
func (e *Engine) record(kind EventKind, entityID, location string, details map[string]any) {
	e.log.Record(e.sched.Now(), kind, entityID, location, details)

	if !e.aborted && len(e.log.Events()) >= e.scenario.Config.EventCap() {
		e.aborted = true
		e.logger.Warn(e.ctx, "event cap reached, aborting run",
			logging.Int("max_events", e.scenario.Config.EventCap()),
			logging.Any("clock_mins", e.sched.Now()),
		)
		e.log.Record(e.sched.Now(), EventSimulationAborted, "SYSTEM", "", map[string]any{
			"max_events": e.scenario.Config.EventCap(),
		})
		e.sched.Stop()
	}
}

// === Setup ===

func (e *Engine) createResources() {
	for i := range e.scenario.Nodes {
		node := &e.scenario.Nodes[i]
		switch node.Type {
		case model.NodeMedicalRole1, model.NodeMedicalRole2:
			if c := node.Capacity.TreatmentSlots; c != nil && *c > 0 {
				e.treatmentSlots[node.ID] = NewResource(e.sched, *c)
			}
		case model.NodeRepairWorkshop:
			if c := node.Capacity.RepairBays; c != nil && *c > 0 {
				e.repairBays[node.ID] = NewResource(e.sched, *c)
			}
		case model.NodeAmmoPoint, model.NodeForwardArming:
			if s := node.Properties.InitialAmmoStock; s != nil {
				e.ammoStock[node.ID] = *s
			}
		}
	}
}

func (e *Engine) initVehicles() {
	for i := range e.scenario.Vehicles {
		v := &e.scenario.Vehicles[i]
		vtype := e.scenario.VehicleTypeByID(v.TypeID)

		rt := &VehicleRuntime{
			ID:       v.ID,
			Callsign: v.Callsign,
			Type:     vtype,
			State:    v.StartState(),
			Location: v.StartLocation,
		}
		e.vehicles[v.ID] = rt
		e.vehicleOrder = append(e.vehicleOrder, v.ID)

		if rt.State == model.StateIdle {
			e.addToIdlePool(v.ID)
		}
	}
}

func (e *Engine) startDemandGenerators() {
	switch e.scenario.Demand.Mode {
	case model.DemandManual:
		e.sched.Spawn(0, e.manualDemandGenerator)
	case model.DemandRateBased:
		for i := range e.scenario.Demand.RateBased {
			spec := &e.scenario.Demand.RateBased[i]
			e.sched.Spawn(0, func(p *Proc) { e.rateBasedGenerator(p, spec) })
		}
	}

	// Supply points with a configured resupply cycle receive stock
	// periodically for the whole run.
	for i := range e.scenario.Nodes {
		node := &e.scenario.Nodes[i]
		if _, tracked := e.ammoStock[node.ID]; !tracked {
			continue
		}
		interval := node.Properties.ResupplyIntervalHours
		qty := node.Properties.ResupplyQuantity
		if interval == nil || *interval <= 0 || qty == nil || *qty <= 0 {
			continue
		}
		e.sched.Spawn(0, func(p *Proc) { e.resupplyProcess(p, node.ID, *interval*60, *qty) })
	}
}

func (e *Engine) startVehicleProcesses() {
	for _, vid := range e.vehicleOrder {
		rt := e.vehicles[vid]
		switch rt.Type.Role {
		case model.RoleAmbulance:
			e.sched.Spawn(0, func(p *Proc) { e.ambulanceProcess(p, rt) })
		case model.RoleRecovery:
			e.sched.Spawn(0, func(p *Proc) { e.recoveryProcess(p, rt) })
		case model.RoleAmmoLogistics:
			e.sched.Spawn(0, func(p *Proc) { e.logisticsProcess(p, rt) })
		default:
			// Fuel and general logistics vehicles hold position; no demand
			// pipeline targets them yet.
		}
	}
}

func (e *Engine) startExtendedOperations() {
	cfg := &e.scenario.Config

	if cfg.EnableCrewFatigue {
		for _, vid := range e.vehicleOrder {
			rt := e.vehicles[vid]
			e.sched.Spawn(0, func(p *Proc) { e.crewFatigueMonitor(p, rt) })
		}
	}

	if cfg.EnableVehicleMaintenance {
		for _, vid := range e.vehicleOrder {
			rt := e.vehicles[vid]
			if rt.Type.MTBFHours == nil {
				continue
			}
			// Stagger first maintenance with a random offset up to half the
			// interval, drawn in registry order for reproducibility.
			interval := *rt.Type.MTBFHours * 60 * 0.8
			offset := e.rng.Float64() * interval / 2
			e.sched.Spawn(0, func(p *Proc) { e.maintenanceScheduler(p, rt, offset, interval) })
		}
	}

	if cfg.EnableBreakdowns {
		for _, vid := range e.vehicleOrder {
			rt := e.vehicles[vid]
			if rt.Type.MTBFHours == nil {
				continue
			}
			e.sched.Spawn(0, func(p *Proc) { e.breakdownGenerator(p, rt) })
		}
	}
}

// === Demand generation ===

func (e *Engine) manualDemandGenerator(p *Proc) {
	events := make([]model.ManualDemandEvent, len(e.scenario.Demand.ManualEvents))
	copy(events, e.scenario.Demand.ManualEvents)
	sort.SliceStable(events, func(i, j int) bool { return events[i].TimeMins < events[j].TimeMins })

	for i := range events {
		ev := &events[i]
		if ev.TimeMins > p.Now() {
			p.Sleep(ev.TimeMins - p.Now())
		}

		switch ev.Type {
		case model.DemandCasualty:
			for n := 0; n < ev.Qty(); n++ {
				e.generateCasualty(ev.Location, ev.EffectivePriority(), ev.Properties["mechanism"])
			}
		case model.DemandVehicleBreakdown:
			vid := ev.Properties["vehicle_id"]
			if _, ok := e.vehicles[vid]; !ok {
				e.logger.Warn(e.ctx, "breakdown event references unknown vehicle",
					logging.String("vehicle_id", vid),
					logging.String("location", ev.Location),
				)
				continue
			}
			e.generateBreakdown(vid, ev.Location, ev.EffectivePriority())
		case model.DemandAmmoRequest:
			e.generateAmmoRequest(ev.Location, ev.Qty(), ev.EffectivePriority())
		default:
			e.logger.Warn(e.ctx, "unsupported manual demand type",
				logging.String("type", string(ev.Type)),
				logging.String("location", ev.Location),
			)
		}
	}
}

func (e *Engine) rateBasedGenerator(p *Proc, spec *model.RateBasedDemand) {
	if spec.ActiveFromMins > 0 {
		p.Sleep(spec.ActiveFromMins)
	}

	meanInterval := 60.0 / spec.RatePerHour
	endMins := e.scenario.Config.DurationMins()
	if spec.ActiveUntilMins != nil {
		endMins = math.Min(endMins, *spec.ActiveUntilMins)
	}

	for p.Now() < endMins {
		p.Sleep(e.rng.ExpFloat64() * meanInterval)
		if p.Now() >= endMins {
			break
		}

		priority := e.samplePriority(spec)
		lo, hi := spec.QuantityRange()
		qty := lo + e.rng.Intn(hi-lo+1)

		switch spec.Type {
		case model.DemandCasualty:
			for n := 0; n < qty; n++ {
				e.generateCasualty(spec.Location, priority, "")
			}
		case model.DemandAmmoRequest:
			e.generateAmmoRequest(spec.Location, qty, priority)
		default:
			e.logger.Warn(e.ctx, "unsupported rate-based demand type",
				logging.String("type", string(spec.Type)),
				logging.String("location", spec.Location),
			)
			return
		}
	}
}

// resupplyProcess tops up a supply point's stock on a fixed cycle.
func (e *Engine) resupplyProcess(p *Proc, nodeID string, intervalMins float64, qty int) {
	for {
		p.Sleep(intervalMins)
		e.ammoStock[nodeID] += qty
		e.record(EventStockReplenished, nodeID, nodeID, map[string]any{
			"quantity":  qty,
			"new_stock": e.ammoStock[nodeID],
		})
	}
}

// samplePriority draws a priority level from the configured weight table,
// consuming exactly one random variate per call.
func (e *Engine) samplePriority(spec *model.RateBasedDemand) model.Priority {
	levels := spec.SortedPriorities()
	weights := spec.Weights()

	total := 0.0
	for _, lvl := range levels {
		total += weights[lvl]
	}
	x := e.rng.Float64() * total
	for _, lvl := range levels {
		x -= weights[lvl]
		if x < 0 {
			return model.Priority(lvl)
		}
	}
	return model.Priority(levels[len(levels)-1])
}

func (e *Engine) generateCasualty(location string, priority model.Priority, mechanism string) {
	if mechanism == "" {
		mechanism = "unknown"
	}
	c := e.log.NewCasualty(Casualty{
		Priority:      priority,
		OriginNode:    location,
		TimeGenerated: e.sched.Now(),
		Mechanism:     mechanism,
	})
	e.record(EventCasualtyGenerated, c.ID, location, map[string]any{
		"priority":  int(priority),
		"mechanism": mechanism,
	})
	e.casualtyQueue.Push(priority, c)
}

func (e *Engine) generateBreakdown(vehicleID, location string, priority model.Priority) {
	rt := e.vehicles[vehicleID]
	if rt == nil {
		return
	}

	rt.State = model.StateBrokenDown
	rt.Location = location
	rt.outOfService = true
	e.removeFromIdlePool(vehicleID)

	b := e.log.NewBreakdown(Breakdown{
		VehicleID:    vehicleID,
		VehicleClass: rt.Type.VehicleClass,
		Location:     location,
		TimeOccurred: e.sched.Now(),
		Priority:     priority,
	})
	e.record(EventBreakdownOccurred, b.ID, location, map[string]any{
		"vehicle_id":    vehicleID,
		"vehicle_class": string(rt.Type.VehicleClass),
		"priority":      int(priority),
	})
	e.recoveryQueue.Push(priority, b)
}

func (e *Engine) generateAmmoRequest(location string, quantity int, priority model.Priority) {
	a := e.log.NewAmmoRequest(AmmoRequest{
		Location:          location,
		QuantityRequested: quantity,
		TimeRequested:     e.sched.Now(),
		Priority:          priority,
	})
	e.record(EventAmmoRequestGenerated, a.ID, location, map[string]any{
		"quantity": quantity,
		"priority": int(priority),
	})
	e.ammoQueue.Push(priority, a)
}

// === Idle pools ===

func (e *Engine) addToIdlePool(vehicleID string) {
	rt := e.vehicles[vehicleID]
	switch rt.Type.Role {
	case model.RoleAmbulance:
		if !containsID(e.idleAmbulances, vehicleID) {
			e.idleAmbulances = append(e.idleAmbulances, vehicleID)
		}
	case model.RoleRecovery:
		tc := rt.Type.TowClass()
		if !containsID(e.idleRecovery[tc], vehicleID) {
			e.idleRecovery[tc] = append(e.idleRecovery[tc], vehicleID)
		}
	case model.RoleAmmoLogistics:
		if !containsID(e.idleLogistics, vehicleID) {
			e.idleLogistics = append(e.idleLogistics, vehicleID)
		}
	}
}

func (e *Engine) removeFromIdlePool(vehicleID string) {
	rt := e.vehicles[vehicleID]
	switch rt.Type.Role {
	case model.RoleAmbulance:
		e.idleAmbulances = removeID(e.idleAmbulances, vehicleID)
	case model.RoleRecovery:
		tc := rt.Type.TowClass()
		e.idleRecovery[tc] = removeID(e.idleRecovery[tc], vehicleID)
	case model.RoleAmmoLogistics:
		e.idleLogistics = removeID(e.idleLogistics, vehicleID)
	}
}

// returnToService marks a vehicle idle at its current location and places
// it back in its role pool. A vehicle held out of service by a modulator
// stays out of the pool until that modulator releases it.
func (e *Engine) returnToService(vehicleID string) {
	rt := e.vehicles[vehicleID]
	if rt.outOfService {
		return
	}
	rt.State = model.StateIdle
	e.addToIdlePool(vehicleID)
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// === Routing helpers ===

// travel moves a vehicle to the destination, sleeping for the routed
// transit time. When no route exists the mission stalls permanently: the
// process parks past the end of the run and never resumes, leaving the
// request pending. Routing failures are degenerate in validated scenarios.
func (e *Engine) travel(p *Proc, rt *VehicleRuntime, to string, laden bool) {
	speed := rt.Type.Speed.Speed(laden)
	tt := e.graph.TravelTimeMins(rt.Location, to, speed)
	if math.IsInf(tt, 1) {
		e.logger.Warn(e.ctx, "no route between nodes, vehicle stalled",
			logging.String("vehicle_id", rt.ID),
			logging.String("from", rt.Location),
			logging.String("to", to),
		)
		p.Sleep(math.Inf(1))
	}
	rt.DistanceKm += e.graph.ShortestPathKm(rt.Location, to)
	if tt > 0 {
		p.Sleep(tt)
	}
	rt.Location = to
}

// nearestStockedAmmoPoint finds the closest supply point that can issue
// ammunition. Points without stock tracking are treated as unlimited;
// tracked points must hold at least one unit. Ties break on scenario
// node order.
func (e *Engine) nearestStockedAmmoPoint(from string) (string, bool) {
	best := ""
	bestKm := math.Inf(1)
	for i := range e.scenario.Nodes {
		node := &e.scenario.Nodes[i]
		if node.Type != model.NodeAmmoPoint && node.Type != model.NodeForwardArming {
			continue
		}
		if stock, tracked := e.ammoStock[node.ID]; tracked && stock <= 0 {
			continue
		}
		km := e.graph.ShortestPathKm(from, node.ID)
		if km < bestKm {
			bestKm = km
			best = node.ID
		}
	}
	return best, best != ""
}
