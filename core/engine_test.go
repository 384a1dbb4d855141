package core

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/fieldops/logistics-simulator/model"
)

func intPtr(v int) *int                                 { return &v }
func f64Ptr(v float64) *float64                         { return &v }
func classPtr(c model.VehicleClass) *model.VehicleClass { return &c }

func ambulanceType(id string) model.VehicleType {
	return model.VehicleType{
		ID:               id,
		Name:             "Light ambulance",
		Role:             model.RoleAmbulance,
		VehicleClass:     model.ClassLight,
		CasualtyCapacity: intPtr(1),
		Speed:            model.SpeedProfile{UnladenKmh: 60, LadenKmh: 40},
		ServiceTimes:     model.ServiceTimes{LoadTimeMins: 5, UnloadTimeMins: 5},
	}
}

// medevacScenario is the 4-node evacuation scenario: two combat positions
// feeding one role-1 aid station, two light ambulances starting at the aid
// station, and three manual casualty events at T=30, T=60 and T=120.
func medevacScenario() *model.Scenario {
	return &model.Scenario{
		Name: "medevac-4node",
		Nodes: []model.Node{
			{ID: "pos_a", Name: "Position A", Type: model.NodeCombat},
			{ID: "pos_b", Name: "Position B", Type: model.NodeCombat},
			{ID: "aid1", Name: "Aid Station", Type: model.NodeMedicalRole1,
				Properties: model.NodeProperties{TreatmentTimeMins: f64Ptr(30)}},
			{ID: "hq", Name: "HQ", Type: model.NodeHQ},
		},
		Edges: []model.Edge{
			{FromNode: "pos_a", ToNode: "aid1", DistanceKm: 10},
			{FromNode: "pos_b", ToNode: "aid1", DistanceKm: 15},
			{FromNode: "aid1", ToNode: "hq", DistanceKm: 5},
		},
		VehicleTypes: []model.VehicleType{ambulanceType("amb_light")},
		Vehicles: []model.Vehicle{
			{ID: "AMB1", TypeID: "amb_light", StartLocation: "aid1"},
			{ID: "AMB2", TypeID: "amb_light", StartLocation: "aid1"},
		},
		Demand: model.DemandConfiguration{
			Mode: model.DemandManual,
			ManualEvents: []model.ManualDemandEvent{
				{TimeMins: 30, Type: model.DemandCasualty, Location: "pos_a", Quantity: 1, Priority: 2},
				{TimeMins: 60, Type: model.DemandCasualty, Location: "pos_b", Quantity: 2, Priority: 1},
				{TimeMins: 120, Type: model.DemandCasualty, Location: "pos_a", Quantity: 1, Priority: 3},
			},
		},
		Config: model.SimulationConfig{DurationHours: 4, RandomSeed: 42},
	}
}

func runScenario(t *testing.T, s *model.Scenario) (*Engine, *EventLog) {
	t.Helper()
	engine, err := NewEngine(s, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	log, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return engine, log
}

// assertDispatchPriorityOrder replays the log and fails if any casualty was
// dispatched while a strictly more urgent casualty was still waiting.
func assertDispatchPriorityOrder(t *testing.T, log *EventLog) {
	t.Helper()

	pending := make(map[string]int)
	for _, ev := range log.Events() {
		switch ev.Kind {
		case EventCasualtyGenerated:
			pending[ev.EntityID] = ev.Details["priority"].(int)
		case EventVehicleDispatched:
			cid, ok := ev.Details["casualty_id"].(string)
			if !ok {
				continue
			}
			chosen := pending[cid]
			for other, priority := range pending {
				if priority < chosen {
					t.Fatalf("at t=%v dispatched %s (P%d) while %s (P%d) was pending",
						ev.TimeMins, cid, chosen, other, priority)
				}
			}
			delete(pending, cid)
		}
	}
}

func TestEngineMedevacScenario(t *testing.T) {
	engine, log := runScenario(t, medevacScenario())

	if engine.State() != RunEnded {
		t.Fatalf("engine state = %s, want %s", engine.State(), RunEnded)
	}

	casualties := log.Casualties()
	if len(casualties) != 4 {
		t.Fatalf("generated %d casualties, want 4", len(casualties))
	}
	for _, c := range casualties {
		if c.TimeTreatmentCompleted == nil {
			t.Fatalf("casualty %s never completed treatment", c.ID)
		}
	}

	events := log.Events()
	if events[len(events)-1].Kind != EventSimulationEnded {
		t.Fatalf("last event = %s, want %s", events[len(events)-1].Kind, EventSimulationEnded)
	}

	assertDispatchPriorityOrder(t, log)

	missions := 0
	for _, rt := range engine.Vehicles() {
		missions += rt.Missions
		if rt.Missions > 0 && (rt.BusyMins <= 0 || rt.DistanceKm <= 0) {
			t.Fatalf("vehicle %s ran %d missions with busy=%v km=%v",
				rt.ID, rt.Missions, rt.BusyMins, rt.DistanceKm)
		}
	}
	if missions != 4 {
		t.Fatalf("total ambulance missions = %d, want 4", missions)
	}
}

func TestEngineCausalOrdering(t *testing.T) {
	_, log := runScenario(t, medevacScenario())

	for _, c := range log.Casualties() {
		last := c.TimeGenerated
		for _, ts := range []*float64{
			c.TimeCollected, c.TimeDelivered, c.TimeTreatmentStarted, c.TimeTreatmentCompleted,
		} {
			if ts == nil {
				continue
			}
			if *ts < last {
				t.Fatalf("casualty %s: timestamp %v precedes %v", c.ID, *ts, last)
			}
			last = *ts
		}
	}
}

// kitchenSinkScenario exercises every stochastic draw in one run: rate-based
// demand at two positions, plus fatigue, maintenance and MTBF breakdowns.
func kitchenSinkScenario() *model.Scenario {
	amb := ambulanceType("amb_light")
	amb.MTBFHours = f64Ptr(4)
	amb.MaxContinuousOpsHrs = 6

	rec := model.VehicleType{
		ID:               "rec_heavy",
		Name:             "Heavy recovery",
		Role:             model.RoleRecovery,
		VehicleClass:     model.ClassHeavy,
		TowCapacityClass: classPtr(model.ClassHeavy),
		Speed:            model.SpeedProfile{UnladenKmh: 40, LadenKmh: 25},
		ServiceTimes:     model.ServiceTimes{LoadTimeMins: 5, UnloadTimeMins: 5, HookupTimeMins: f64Ptr(15)},
	}

	return &model.Scenario{
		Name: "kitchen-sink",
		Nodes: []model.Node{
			{ID: "pos_a", Name: "Position A", Type: model.NodeCombat},
			{ID: "pos_b", Name: "Position B", Type: model.NodeCombat},
			{ID: "aid1", Name: "Aid Station", Type: model.NodeMedicalRole1,
				Capacity:   model.NodeCapacity{TreatmentSlots: intPtr(2)},
				Properties: model.NodeProperties{TreatmentTimeMins: f64Ptr(45)}},
			{ID: "wksp", Name: "Workshop", Type: model.NodeRepairWorkshop,
				Capacity:   model.NodeCapacity{RepairBays: intPtr(1)},
				Properties: model.NodeProperties{RepairTimeLightMins: f64Ptr(60)}},
		},
		Edges: []model.Edge{
			{FromNode: "pos_a", ToNode: "aid1", DistanceKm: 12},
			{FromNode: "pos_b", ToNode: "aid1", DistanceKm: 18, Properties: model.EdgeProperties{TerrainFactor: 1.5}},
			{FromNode: "aid1", ToNode: "wksp", DistanceKm: 8},
		},
		VehicleTypes: []model.VehicleType{amb, rec},
		Vehicles: []model.Vehicle{
			{ID: "AMB1", TypeID: "amb_light", StartLocation: "aid1"},
			{ID: "AMB2", TypeID: "amb_light", StartLocation: "aid1"},
			{ID: "REC1", TypeID: "rec_heavy", StartLocation: "wksp"},
		},
		Demand: model.DemandConfiguration{
			Mode: model.DemandRateBased,
			RateBased: []model.RateBasedDemand{
				{Type: model.DemandCasualty, Location: "pos_a", RatePerHour: 3,
					PriorityWeights: map[int]float64{1: 0.2, 2: 0.3, 3: 0.5}},
				{Type: model.DemandCasualty, Location: "pos_b", RatePerHour: 2,
					PriorityWeights: map[int]float64{1: 0.1, 2: 0.4, 3: 0.5}},
			},
		},
		Config: model.SimulationConfig{
			DurationHours:            6,
			RandomSeed:               99,
			EnableCrewFatigue:        true,
			EnableVehicleMaintenance: true,
			EnableBreakdowns:         true,
		},
	}
}

func TestEngineDeterminism(t *testing.T) {
	scenario := kitchenSinkScenario()

	_, first := runScenario(t, scenario)
	_, second := runScenario(t, scenario)

	if len(first.Events()) != len(second.Events()) {
		t.Fatalf("event counts differ: %d vs %d", len(first.Events()), len(second.Events()))
	}
	if !reflect.DeepEqual(first.Events(), second.Events()) {
		for i := range first.Events() {
			a, b := first.Events()[i], second.Events()[i]
			if !reflect.DeepEqual(a, b) {
				t.Fatalf("runs diverge at event %d: %+v vs %+v", i, a, b)
			}
		}
		t.Fatal("runs diverge")
	}
	if len(first.Casualties()) != len(second.Casualties()) ||
		len(first.Breakdowns()) != len(second.Breakdowns()) ||
		len(first.AmmoRequests()) != len(second.AmmoRequests()) {
		t.Fatal("entity registry counts differ between seeded runs")
	}
}

func TestTreatmentCapacityBackpressure(t *testing.T) {
	s := medevacScenario()
	s.Nodes[2].Capacity = model.NodeCapacity{TreatmentSlots: intPtr(1)}
	s.Nodes[2].Properties = model.NodeProperties{TreatmentTimeMins: f64Ptr(60)}
	s.Vehicles = append(s.Vehicles, model.Vehicle{ID: "AMB3", TypeID: "amb_light", StartLocation: "aid1"})
	s.Demand.ManualEvents = []model.ManualDemandEvent{
		{TimeMins: 0, Type: model.DemandCasualty, Location: "pos_a", Quantity: 3, Priority: 1},
	}
	s.Config.DurationHours = 8

	_, log := runScenario(t, s)

	started := log.EventsByKind(EventTreatmentStarted)
	if len(started) != 3 {
		t.Fatalf("treatment_started count = %d, want 3", len(started))
	}

	// With a single slot at most one treatment may be active at a time.
	active := 0
	for _, ev := range log.Events() {
		switch ev.Kind {
		case EventTreatmentStarted:
			active++
			if active > 1 {
				t.Fatalf("two treatments active at t=%v", ev.TimeMins)
			}
		case EventTreatmentCompleted:
			active--
		}
	}

	// Each later casualty starts no earlier than the previous completion.
	var lastCompleted float64
	for _, c := range log.Casualties() {
		if c.TimeTreatmentStarted == nil || c.TimeTreatmentCompleted == nil {
			t.Fatalf("casualty %s not treated within the run", c.ID)
		}
	}
	for _, ev := range log.Events() {
		switch ev.Kind {
		case EventTreatmentStarted:
			if ev.TimeMins < lastCompleted {
				t.Fatalf("treatment at t=%v started before prior completion at t=%v", ev.TimeMins, lastCompleted)
			}
		case EventTreatmentCompleted:
			lastCompleted = ev.TimeMins
		}
	}
}

func recoveryScenario() *model.Scenario {
	amb := ambulanceType("amb_light")
	return &model.Scenario{
		Name: "recovery-compat",
		Nodes: []model.Node{
			{ID: "pos_a", Name: "Position A", Type: model.NodeCombat},
			{ID: "wksp", Name: "Workshop", Type: model.NodeRepairWorkshop,
				Capacity: model.NodeCapacity{RepairBays: intPtr(1)},
				Properties: model.NodeProperties{
					RepairTimeLightMins: f64Ptr(45),
					RepairTimeHeavyMins: f64Ptr(90),
				}},
		},
		Edges: []model.Edge{
			{FromNode: "pos_a", ToNode: "wksp", DistanceKm: 10},
		},
		VehicleTypes: []model.VehicleType{
			amb,
			{ID: "rec_light", Name: "Light recovery", Role: model.RoleRecovery,
				VehicleClass: model.ClassLight, TowCapacityClass: classPtr(model.ClassLight),
				Speed:        model.SpeedProfile{UnladenKmh: 50, LadenKmh: 35},
				ServiceTimes: model.ServiceTimes{LoadTimeMins: 5, UnloadTimeMins: 5, HookupTimeMins: f64Ptr(10)}},
			{ID: "rec_heavy", Name: "Heavy recovery", Role: model.RoleRecovery,
				VehicleClass: model.ClassHeavy, TowCapacityClass: classPtr(model.ClassHeavy),
				Speed:        model.SpeedProfile{UnladenKmh: 40, LadenKmh: 25},
				ServiceTimes: model.ServiceTimes{LoadTimeMins: 5, UnloadTimeMins: 5, HookupTimeMins: f64Ptr(15)}},
			{ID: "truck_heavy", Name: "Heavy truck", Role: model.RoleAmmoLogistics,
				VehicleClass: model.ClassHeavy, AmmoCapacityUnits: intPtr(100),
				Speed:        model.SpeedProfile{UnladenKmh: 50, LadenKmh: 40},
				ServiceTimes: model.ServiceTimes{LoadTimeMins: 10, UnloadTimeMins: 10}},
		},
		Vehicles: []model.Vehicle{
			{ID: "RECL", TypeID: "rec_light", StartLocation: "wksp"},
			{ID: "RECH", TypeID: "rec_heavy", StartLocation: "wksp"},
			{ID: "TRUCK1", TypeID: "truck_heavy", StartLocation: "pos_a"},
			{ID: "AMB1", TypeID: "amb_light", StartLocation: "pos_a"},
		},
		Demand: model.DemandConfiguration{
			Mode: model.DemandManual,
			ManualEvents: []model.ManualDemandEvent{
				{TimeMins: 10, Type: model.DemandVehicleBreakdown, Location: "pos_a", Priority: 2,
					Properties: map[string]string{"vehicle_id": "TRUCK1"}},
				{TimeMins: 20, Type: model.DemandVehicleBreakdown, Location: "pos_a", Priority: 2,
					Properties: map[string]string{"vehicle_id": "AMB1"}},
			},
		},
		Config: model.SimulationConfig{DurationHours: 8, RandomSeed: 5},
	}
}

func TestRecoveryTowClassCompatibility(t *testing.T) {
	engine, log := runScenario(t, recoveryScenario())

	breakdowns := log.Breakdowns()
	if len(breakdowns) != 2 {
		t.Fatalf("breakdown count = %d, want 2", len(breakdowns))
	}

	types := map[string]model.VehicleClass{"RECL": model.ClassLight, "RECH": model.ClassHeavy}
	for _, b := range breakdowns {
		if b.RecoveredBy == "" {
			t.Fatalf("breakdown %s never recovered", b.ID)
		}
		towClass := types[b.RecoveredBy]
		if towClass.Ordinal() < b.VehicleClass.Ordinal() {
			t.Fatalf("%s (%s wreck) towed by %s (tow class %s)",
				b.ID, b.VehicleClass, b.RecoveredBy, towClass)
		}
	}

	// The heavy wreck must go to the heavy recovery vehicle even though the
	// light one polls first.
	if breakdowns[0].VehicleClass != model.ClassHeavy || breakdowns[0].RecoveredBy != "RECH" {
		t.Fatalf("heavy wreck recovered by %s, want RECH", breakdowns[0].RecoveredBy)
	}
	if breakdowns[1].RecoveredBy != "RECL" {
		t.Fatalf("light wreck recovered by %s, want RECL", breakdowns[1].RecoveredBy)
	}

	for _, b := range breakdowns {
		if b.TimeRepairCompleted == nil {
			t.Fatalf("breakdown %s never repaired", b.ID)
		}
	}

	// Repaired vehicles return to service at the workshop, not their
	// breakdown site.
	truck := engine.Vehicles()["TRUCK1"]
	if truck.Location != "wksp" || truck.State != model.StateIdle {
		t.Fatalf("TRUCK1 ended at %s in state %s, want idle at wksp", truck.Location, truck.State)
	}
}

func resupplyScenario() *model.Scenario {
	return &model.Scenario{
		Name: "resupply",
		Nodes: []model.Node{
			{ID: "cp", Name: "Combat position", Type: model.NodeCombat},
			{ID: "ap", Name: "Ammo point", Type: model.NodeAmmoPoint,
				Properties: model.NodeProperties{
					InitialAmmoStock:      intPtr(10),
					ResupplyIntervalHours: f64Ptr(1),
					ResupplyQuantity:      intPtr(20),
				}},
		},
		Edges: []model.Edge{
			{FromNode: "cp", ToNode: "ap", DistanceKm: 10},
		},
		VehicleTypes: []model.VehicleType{
			{ID: "truck", Name: "Ammo truck", Role: model.RoleAmmoLogistics,
				VehicleClass: model.ClassMedium, AmmoCapacityUnits: intPtr(100),
				Speed:        model.SpeedProfile{UnladenKmh: 50, LadenKmh: 40},
				ServiceTimes: model.ServiceTimes{LoadTimeMins: 10, UnloadTimeMins: 10}},
		},
		Vehicles: []model.Vehicle{
			{ID: "TRUCK1", TypeID: "truck", StartLocation: "ap"},
		},
		Demand: model.DemandConfiguration{
			Mode: model.DemandManual,
			ManualEvents: []model.ManualDemandEvent{
				{TimeMins: 0, Type: model.DemandAmmoRequest, Location: "cp", Quantity: 50, Priority: 2},
				{TimeMins: 120, Type: model.DemandAmmoRequest, Location: "cp", Quantity: 15, Priority: 2},
			},
		},
		Config: model.SimulationConfig{DurationHours: 8, RandomSeed: 11},
	}
}

func TestAmmoConservationAndPartialDelivery(t *testing.T) {
	_, log := runScenario(t, resupplyScenario())

	requests := log.AmmoRequests()
	if len(requests) != 2 {
		t.Fatalf("request count = %d, want 2", len(requests))
	}
	for _, a := range requests {
		if a.QuantityDelivered < 0 || a.QuantityDelivered > a.QuantityRequested {
			t.Fatalf("%s delivered %d of %d requested", a.ID, a.QuantityDelivered, a.QuantityRequested)
		}
		if a.Fulfilled() != (a.QuantityDelivered >= a.QuantityRequested) {
			t.Fatalf("%s fulfillment flag inconsistent", a.ID)
		}
	}

	// Only 10 units are in stock at T=0, so the first request is partial.
	if requests[0].QuantityDelivered != 10 || requests[0].Fulfilled() {
		t.Fatalf("first request delivered %d (fulfilled=%v), want partial 10",
			requests[0].QuantityDelivered, requests[0].Fulfilled())
	}
	// Hourly resupply restores stock before the second request.
	if !requests[1].Fulfilled() || requests[1].QuantityDelivered != 15 {
		t.Fatalf("second request delivered %d (fulfilled=%v), want full 15",
			requests[1].QuantityDelivered, requests[1].Fulfilled())
	}

	if replenished := log.EventsByKind(EventStockReplenished); len(replenished) < 2 {
		t.Fatalf("stock_replenished count = %d, want >= 2", len(replenished))
	}
}

func TestStockoutDropsRequestPermanently(t *testing.T) {
	s := resupplyScenario()
	// No ammo point anywhere: requests cannot be sourced.
	s.Nodes[1].Type = model.NodeHQ
	s.Nodes[1].Properties = model.NodeProperties{}
	s.Demand.ManualEvents = s.Demand.ManualEvents[:1]
	s.Config.DurationHours = 4

	engine, log := runScenario(t, s)

	if stockouts := log.EventsByKind(EventStockout); len(stockouts) != 1 {
		t.Fatalf("stockout count = %d, want exactly 1 (request must not be requeued)", len(stockouts))
	}

	a := log.AmmoRequests()[0]
	if a.TimeDelivered != nil || a.QuantityDelivered != 0 {
		t.Fatalf("dropped request was delivered: qty=%d", a.QuantityDelivered)
	}

	if rt := engine.Vehicles()["TRUCK1"]; rt.State != model.StateIdle {
		t.Fatalf("truck state after stockout = %s, want idle", rt.State)
	}
}

func TestUnreachableDemandStallsWithoutAborting(t *testing.T) {
	s := medevacScenario()
	s.Nodes = append(s.Nodes, model.Node{ID: "island", Name: "Cut-off position", Type: model.NodeCombat})
	// Intentionally no edge to island.
	s.Vehicles = s.Vehicles[:1]
	s.Demand.ManualEvents = []model.ManualDemandEvent{
		{TimeMins: 0, Type: model.DemandCasualty, Location: "island", Quantity: 1, Priority: 1},
	}
	s.Config.DurationHours = 2

	engine, log := runScenario(t, s)

	if engine.State() != RunEnded {
		t.Fatalf("engine state = %s, want %s", engine.State(), RunEnded)
	}
	if got := engine.ClockMins(); got != 120 {
		t.Fatalf("clock = %v, want 120", got)
	}

	c := log.Casualties()[0]
	if c.TimeCollected != nil {
		t.Fatal("unreachable casualty was collected")
	}
	if math.IsInf(c.TimeGenerated, 0) {
		t.Fatal("bogus generation time")
	}
}

func TestEventCapAbortsRun(t *testing.T) {
	s := medevacScenario()
	s.Config.MaxEvents = 10

	engine, log := runScenario(t, s)

	if engine.State() != RunAborted {
		t.Fatalf("engine state = %s, want %s", engine.State(), RunAborted)
	}

	events := log.Events()
	if events[len(events)-1].Kind != EventSimulationAborted {
		t.Fatalf("last event = %s, want %s", events[len(events)-1].Kind, EventSimulationAborted)
	}
	if len(log.EventsByKind(EventSimulationEnded)) != 0 {
		t.Fatal("aborted run also recorded simulation_ended")
	}
}

func TestEngineRunIsSingleUse(t *testing.T) {
	engine, _ := runScenario(t, medevacScenario())

	if _, err := engine.Run(context.Background()); !errors.Is(err, ErrAlreadyRun) {
		t.Fatalf("second Run error = %v, want ErrAlreadyRun", err)
	}
}

func TestNewEngineRejectsBadInput(t *testing.T) {
	if _, err := NewEngine(nil, nil); !errors.Is(err, ErrNilScenario) {
		t.Fatalf("nil scenario error = %v, want ErrNilScenario", err)
	}

	s := medevacScenario()
	s.Vehicles[0].StartLocation = "nowhere"
	if _, err := NewEngine(s, nil); err == nil {
		t.Fatal("invalid scenario accepted")
	}
}
