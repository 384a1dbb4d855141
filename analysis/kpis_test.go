package analysis

import (
	"math"
	"strings"
	"testing"

	"github.com/fieldops/logistics-simulator/core"
	"github.com/fieldops/logistics-simulator/model"
)

func ptr(v float64) *float64 { return &v }

func approx(got, want float64) bool { return math.Abs(got-want) < 1e-9 }

// syntheticLog builds a log with known lifecycle timings so the reducers'
// arithmetic can be checked exactly.
func syntheticLog() *core.EventLog {
	log := core.NewEventLog()

	// Casualties: two fully treated, one collected only, one untouched.
	c1 := log.NewCasualty(core.Casualty{Priority: model.PriorityUrgent, OriginNode: "cp1", TimeGenerated: 0})
	c1.TimeCollected = ptr(10)
	c1.TimeDelivered = ptr(30)
	c1.TimeTreatmentCompleted = ptr(60)

	c2 := log.NewCasualty(core.Casualty{Priority: model.PriorityRoutine, OriginNode: "cp1", TimeGenerated: 20})
	c2.TimeCollected = ptr(50) // wait 30
	c2.TimeDelivered = ptr(70) // evac 50
	c2.TimeTreatmentCompleted = ptr(100)

	c3 := log.NewCasualty(core.Casualty{Priority: model.PriorityUrgent, OriginNode: "cp2", TimeGenerated: 40})
	c3.TimeCollected = ptr(60) // wait 20, never delivered

	log.NewCasualty(core.Casualty{Priority: model.PriorityRoutine, OriginNode: "cp2", TimeGenerated: 90})

	// Breakdowns: one repaired, one stranded.
	b1 := log.NewBreakdown(core.Breakdown{VehicleID: "TRK1", TimeOccurred: 15})
	b1.TimeRecoveryArrived = ptr(35) // response 20
	b1.TimeArrivedWorkshop = ptr(55) // recovery 40
	b1.TimeRepairStarted = ptr(55)
	b1.TimeRepairCompleted = ptr(115) // repair 60, downtime 100

	log.NewBreakdown(core.Breakdown{VehicleID: "TRK2", TimeOccurred: 80})

	// Ammo: one fulfilled, one partial, one pending.
	a1 := log.NewAmmoRequest(core.AmmoRequest{Location: "cp1", QuantityRequested: 40, TimeRequested: 0})
	a1.QuantityDelivered = 40
	a1.TimeDispatched = ptr(5)
	a1.TimeDelivered = ptr(45) // delivery 45

	a2 := log.NewAmmoRequest(core.AmmoRequest{Location: "cp2", QuantityRequested: 60, TimeRequested: 30})
	a2.QuantityDelivered = 20
	a2.TimeDispatched = ptr(40)
	a2.TimeDelivered = ptr(85) // delivery 55

	log.NewAmmoRequest(core.AmmoRequest{Location: "cp1", QuantityRequested: 10, TimeRequested: 100})

	// Dispatch events carry a detail key naming the mission type.
	log.Record(5, core.EventVehicleDispatched, "AMB1", "med1", map[string]any{"casualty_id": "CAS_0001"})
	log.Record(40, core.EventVehicleDispatched, "AMB1", "med1", map[string]any{"casualty_id": "CAS_0002"})
	log.Record(20, core.EventVehicleDispatched, "REC1", "wksp", map[string]any{"breakdown_id": "BD_0001"})
	log.Record(5, core.EventVehicleDispatched, "TRK9", "ap1", map[string]any{"ammo_request_id": "AMMO_0001"})
	log.Record(40, core.EventVehicleDispatched, "TRK9", "ap1", map[string]any{"ammo_request_id": "AMMO_0002"})
	log.Record(90, core.EventStockout, "AMMO_0003", "ap1", nil)

	return log
}

func TestComputeMedevacKPIs(t *testing.T) {
	k := ComputeMedevacKPIs(syntheticLog())

	if k.TotalCasualties != 4 || k.CasualtiesCollected != 3 ||
		k.CasualtiesDelivered != 2 || k.CasualtiesTreated != 2 || k.CasualtiesPending != 2 {
		t.Fatalf("counts = %+v", k)
	}
	if k.AmbulanceMissions != 2 {
		t.Fatalf("AmbulanceMissions = %d, want 2", k.AmbulanceMissions)
	}

	// Waits: 10, 30, 20 -> mean 20, median 20, max 30.
	if k.WaitTime.Mean == nil || !approx(*k.WaitTime.Mean, 20) {
		t.Fatalf("wait mean = %v, want 20", k.WaitTime.Mean)
	}
	if !approx(*k.WaitTime.Median, 20) || !approx(*k.WaitTime.Max, 30) {
		t.Fatalf("wait median/max = %v/%v", *k.WaitTime.Median, *k.WaitTime.Max)
	}
	// Sorted waits [10 20 30]: p90 interpolates at position 1.8 -> 28.
	if !approx(*k.WaitTime.P90, 28) {
		t.Fatalf("wait p90 = %v, want 28", *k.WaitTime.P90)
	}

	// Evacs: 30, 50 -> mean 40.
	if !approx(*k.EvacuationTime.Mean, 40) {
		t.Fatalf("evac mean = %v, want 40", *k.EvacuationTime.Mean)
	}

	p1 := k.ByPriority[1]
	if p1.Count != 2 || p1.Collected != 2 || p1.Delivered != 1 || p1.Treated != 1 {
		t.Fatalf("P1 stats = %+v", p1)
	}
	if p1.MeanWait == nil || !approx(*p1.MeanWait, 15) { // 10 and 20
		t.Fatalf("P1 mean wait = %v, want 15", p1.MeanWait)
	}
	p3 := k.ByPriority[3]
	if p3.Count != 2 || p3.Treated != 1 {
		t.Fatalf("P3 stats = %+v", p3)
	}
}

func TestComputeRecoveryKPIs(t *testing.T) {
	k := ComputeRecoveryKPIs(syntheticLog())

	if k.TotalBreakdowns != 2 || k.VehiclesRecovered != 1 ||
		k.VehiclesRepaired != 1 || k.VehiclesPending != 1 {
		t.Fatalf("counts = %+v", k)
	}
	if k.RecoveryMissions != 1 {
		t.Fatalf("RecoveryMissions = %d, want 1", k.RecoveryMissions)
	}
	if k.ResponseTime.Mean == nil || !approx(*k.ResponseTime.Mean, 20) {
		t.Fatalf("response mean = %v, want 20", k.ResponseTime.Mean)
	}
	if !approx(*k.RecoveryTime.Mean, 40) || !approx(*k.RepairTime.Mean, 60) || !approx(*k.Downtime.Mean, 100) {
		t.Fatalf("recovery/repair/downtime = %v/%v/%v",
			*k.RecoveryTime.Mean, *k.RepairTime.Mean, *k.Downtime.Mean)
	}
}

func TestComputeResupplyKPIs(t *testing.T) {
	k := ComputeResupplyKPIs(syntheticLog())

	if k.TotalRequests != 3 || k.RequestsFulfilled != 1 ||
		k.RequestsPartial != 1 || k.RequestsPending != 1 {
		t.Fatalf("counts = %+v", k)
	}
	if k.TotalRequested != 110 || k.TotalDelivered != 60 {
		t.Fatalf("quantities = %d/%d", k.TotalRequested, k.TotalDelivered)
	}
	if k.FulfillmentRate == nil || !approx(*k.FulfillmentRate, 60.0/110.0*100) {
		t.Fatalf("fulfillment rate = %v", k.FulfillmentRate)
	}
	if k.StockoutEvents != 1 || k.LogisticsMissions != 2 {
		t.Fatalf("stockouts/missions = %d/%d", k.StockoutEvents, k.LogisticsMissions)
	}
	// Delivery times: 45, 55 -> mean 50.
	if !approx(*k.DeliveryTime.Mean, 50) {
		t.Fatalf("delivery mean = %v, want 50", *k.DeliveryTime.Mean)
	}
}

func TestTimeStatsEmptySample(t *testing.T) {
	s := newTimeStats(nil)
	if s.Mean != nil || s.Median != nil || s.Max != nil || s.P90 != nil {
		t.Fatalf("empty sample produced stats: %+v", s)
	}

	single := newTimeStats([]float64{42})
	if *single.Mean != 42 || *single.Median != 42 || *single.Max != 42 || *single.P90 != 42 {
		t.Fatalf("single sample stats: %+v", single)
	}
}

func TestQuantileInterpolation(t *testing.T) {
	sorted := []float64{0, 10, 20, 30, 40}
	cases := []struct{ q, want float64 }{
		{0, 0},
		{0.5, 20},
		{0.9, 36},
		{1, 40},
	}
	for _, tc := range cases {
		if got := quantile(sorted, tc.q); !approx(got, tc.want) {
			t.Errorf("quantile(%v) = %v, want %v", tc.q, got, tc.want)
		}
	}
}

func TestSummaryMentionsAllSections(t *testing.T) {
	text := ComputeAllKPIs(syntheticLog()).Summary()

	for _, want := range []string{
		"=== MEDEVAC ===",
		"=== Recovery ===",
		"=== Resupply ===",
		"Casualties: total 4, collected 3, delivered 2, treated 2, pending 2",
		"Breakdowns: total 2, recovered 1, repaired 1, pending 1",
		"Requests: total 3, fulfilled 1, partial 1, pending 1",
		"Ambulance missions: 2",
		"Stockouts: 1, logistics missions: 2",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("summary missing %q:\n%s", want, text)
		}
	}
}
