// Package analysis computes key performance indicators from a completed
// simulation event log. All reducers are pure: they read the log and
// entity registries and never mutate them.
package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fieldops/logistics-simulator/core"
)

// TimeStats summarises a sample of durations in minutes. Fields are nil
// when the sample is empty.
type TimeStats struct {
	Mean   *float64 `json:"mean_mins,omitempty"`
	Median *float64 `json:"median_mins,omitempty"`
	Max    *float64 `json:"max_mins,omitempty"`
	P90    *float64 `json:"p90_mins,omitempty"`
}

func newTimeStats(sample []float64) TimeStats {
	if len(sample) == 0 {
		return TimeStats{}
	}
	sorted := make([]float64, len(sample))
	copy(sorted, sample)
	sort.Float64s(sorted)

	mean := 0.0
	for _, v := range sorted {
		mean += v
	}
	mean /= float64(len(sorted))

	median := quantile(sorted, 0.5)
	max := sorted[len(sorted)-1]
	p90 := quantile(sorted, 0.9)
	return TimeStats{Mean: &mean, Median: &median, Max: &max, P90: &p90}
}

// quantile interpolates linearly between order statistics; input must be
// sorted ascending and non-empty.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// PriorityStats is the per-priority MEDEVAC breakdown.
type PriorityStats struct {
	Count     int      `json:"count"`
	Collected int      `json:"collected"`
	Delivered int      `json:"delivered"`
	Treated   int      `json:"treated"`
	MeanWait  *float64 `json:"mean_wait_mins,omitempty"`
	MeanEvac  *float64 `json:"mean_evac_mins,omitempty"`
	MaxEvac   *float64 `json:"max_evac_mins,omitempty"`
}

// MedevacKPIs aggregates casualty-evacuation performance.
type MedevacKPIs struct {
	TotalCasualties     int `json:"total_casualties"`
	CasualtiesCollected int `json:"casualties_collected"`
	CasualtiesDelivered int `json:"casualties_delivered"`
	CasualtiesTreated   int `json:"casualties_treated"`
	CasualtiesPending   int `json:"casualties_pending"`

	WaitTime       TimeStats `json:"wait_time"`
	EvacuationTime TimeStats `json:"evacuation_time"`
	TotalTime      TimeStats `json:"total_time"`

	ByPriority map[int]PriorityStats `json:"by_priority,omitempty"`

	AmbulanceMissions int `json:"ambulance_missions"`
}

// ComputeMedevacKPIs reduces the log's casualty registry.
func ComputeMedevacKPIs(log *core.EventLog) MedevacKPIs {
	kpis := MedevacKPIs{ByPriority: make(map[int]PriorityStats)}
	casualties := log.Casualties()
	kpis.TotalCasualties = len(casualties)

	var waits, evacs, totals []float64
	perPriority := make(map[int][]*core.Casualty)

	for _, c := range casualties {
		if c.TimeCollected != nil {
			kpis.CasualtiesCollected++
		}
		if c.TimeDelivered != nil {
			kpis.CasualtiesDelivered++
		}
		if c.TimeTreatmentCompleted != nil {
			kpis.CasualtiesTreated++
		}
		if w, ok := c.WaitTimeMins(); ok {
			waits = append(waits, w)
		}
		if ev, ok := c.EvacuationTimeMins(); ok {
			evacs = append(evacs, ev)
		}
		if t, ok := c.TotalTimeMins(); ok {
			totals = append(totals, t)
		}
		perPriority[int(c.Priority)] = append(perPriority[int(c.Priority)], c)
	}
	kpis.CasualtiesPending = kpis.TotalCasualties - kpis.CasualtiesTreated

	kpis.WaitTime = newTimeStats(waits)
	kpis.EvacuationTime = newTimeStats(evacs)
	kpis.TotalTime = newTimeStats(totals)

	for priority, group := range perPriority {
		var pwaits, pevacs []float64
		stats := PriorityStats{Count: len(group)}
		for _, c := range group {
			if c.TimeCollected != nil {
				stats.Collected++
			}
			if c.TimeDelivered != nil {
				stats.Delivered++
			}
			if c.TimeTreatmentCompleted != nil {
				stats.Treated++
			}
			if w, ok := c.WaitTimeMins(); ok {
				pwaits = append(pwaits, w)
			}
			if ev, ok := c.EvacuationTimeMins(); ok {
				pevacs = append(pevacs, ev)
			}
		}
		ws := newTimeStats(pwaits)
		es := newTimeStats(pevacs)
		stats.MeanWait = ws.Mean
		stats.MeanEvac = es.Mean
		stats.MaxEvac = es.Max
		kpis.ByPriority[priority] = stats
	}

	kpis.AmbulanceMissions = countDispatches(log, "casualty_id")
	return kpis
}

// RecoveryKPIs aggregates vehicle-recovery performance.
type RecoveryKPIs struct {
	TotalBreakdowns   int `json:"total_breakdowns"`
	VehiclesRecovered int `json:"vehicles_recovered"`
	VehiclesRepaired  int `json:"vehicles_repaired"`
	VehiclesPending   int `json:"vehicles_pending"`

	ResponseTime TimeStats `json:"response_time"`
	RecoveryTime TimeStats `json:"recovery_time"`
	RepairTime   TimeStats `json:"repair_time"`
	Downtime     TimeStats `json:"downtime"`

	RecoveryMissions int `json:"recovery_missions"`
}

// ComputeRecoveryKPIs reduces the log's breakdown registry.
func ComputeRecoveryKPIs(log *core.EventLog) RecoveryKPIs {
	var kpis RecoveryKPIs
	breakdowns := log.Breakdowns()
	kpis.TotalBreakdowns = len(breakdowns)

	var responses, recoveries, repairs, downtimes []float64
	for _, b := range breakdowns {
		if b.TimeArrivedWorkshop != nil {
			kpis.VehiclesRecovered++
		}
		if b.TimeRepairCompleted != nil {
			kpis.VehiclesRepaired++
		}
		if r, ok := b.ResponseTimeMins(); ok {
			responses = append(responses, r)
		}
		if r, ok := b.RecoveryTimeMins(); ok {
			recoveries = append(recoveries, r)
		}
		if r, ok := b.RepairTimeMins(); ok {
			repairs = append(repairs, r)
		}
		if d, ok := b.DowntimeMins(); ok {
			downtimes = append(downtimes, d)
		}
	}
	kpis.VehiclesPending = kpis.TotalBreakdowns - kpis.VehiclesRepaired

	kpis.ResponseTime = newTimeStats(responses)
	kpis.RecoveryTime = newTimeStats(recoveries)
	kpis.RepairTime = newTimeStats(repairs)
	kpis.Downtime = newTimeStats(downtimes)

	kpis.RecoveryMissions = countDispatches(log, "breakdown_id")
	return kpis
}

// ResupplyKPIs aggregates ammunition-resupply performance.
type ResupplyKPIs struct {
	TotalRequests     int `json:"total_requests"`
	RequestsFulfilled int `json:"requests_fulfilled"`
	RequestsPartial   int `json:"requests_partial"`
	RequestsPending   int `json:"requests_pending"`

	TotalRequested  int      `json:"total_requested"`
	TotalDelivered  int      `json:"total_delivered"`
	FulfillmentRate *float64 `json:"fulfillment_rate_pct,omitempty"`

	WaitTime     TimeStats `json:"wait_time"`
	DeliveryTime TimeStats `json:"delivery_time"`

	StockoutEvents    int `json:"stockout_events"`
	LogisticsMissions int `json:"logistics_missions"`
}

// ComputeResupplyKPIs reduces the log's ammo-request registry.
func ComputeResupplyKPIs(log *core.EventLog) ResupplyKPIs {
	var kpis ResupplyKPIs
	requests := log.AmmoRequests()
	kpis.TotalRequests = len(requests)

	var waits, deliveries []float64
	delivered := 0
	for _, a := range requests {
		kpis.TotalRequested += a.QuantityRequested
		kpis.TotalDelivered += a.QuantityDelivered
		if a.Fulfilled() {
			kpis.RequestsFulfilled++
		}
		if a.TimeDelivered != nil {
			delivered++
			if !a.Fulfilled() {
				kpis.RequestsPartial++
			}
		}
		if w, ok := a.WaitTimeMins(); ok {
			waits = append(waits, w)
		}
		if d, ok := a.DeliveryTimeMins(); ok {
			deliveries = append(deliveries, d)
		}
	}
	kpis.RequestsPending = kpis.TotalRequests - delivered

	if kpis.TotalRequested > 0 {
		rate := float64(kpis.TotalDelivered) / float64(kpis.TotalRequested) * 100
		kpis.FulfillmentRate = &rate
	}

	kpis.WaitTime = newTimeStats(waits)
	kpis.DeliveryTime = newTimeStats(deliveries)

	kpis.StockoutEvents = len(log.EventsByKind(core.EventStockout))
	kpis.LogisticsMissions = countDispatches(log, "ammo_request_id")
	return kpis
}

// countDispatches counts vehicle_dispatched events tagged with the given
// detail key, which distinguishes mission types.
func countDispatches(log *core.EventLog, detailKey string) int {
	count := 0
	for _, ev := range log.EventsByKind(core.EventVehicleDispatched) {
		if _, ok := ev.Details[detailKey]; ok {
			count++
		}
	}
	return count
}

// AllKPIs bundles every subsystem's indicators for serialisation.
type AllKPIs struct {
	Medevac  MedevacKPIs  `json:"medevac"`
	Recovery RecoveryKPIs `json:"recovery"`
	Resupply ResupplyKPIs `json:"resupply"`
}

// ComputeAllKPIs runs every reducer over the log.
func ComputeAllKPIs(log *core.EventLog) AllKPIs {
	return AllKPIs{
		Medevac:  ComputeMedevacKPIs(log),
		Recovery: ComputeRecoveryKPIs(log),
		Resupply: ComputeResupplyKPIs(log),
	}
}

// Summary renders a human-readable report of all KPIs.
func (k AllKPIs) Summary() string {
	var b strings.Builder

	fmt.Fprintln(&b, "=== MEDEVAC ===")
	fmt.Fprintf(&b, "Casualties: total %d, collected %d, delivered %d, treated %d, pending %d\n",
		k.Medevac.TotalCasualties, k.Medevac.CasualtiesCollected, k.Medevac.CasualtiesDelivered,
		k.Medevac.CasualtiesTreated, k.Medevac.CasualtiesPending)
	writeStats(&b, "Wait time (generation -> collection)", k.Medevac.WaitTime)
	writeStats(&b, "Evacuation time (generation -> delivery)", k.Medevac.EvacuationTime)
	writeStats(&b, "Total time (generation -> treated)", k.Medevac.TotalTime)
	fmt.Fprintf(&b, "Ambulance missions: %d\n", k.Medevac.AmbulanceMissions)

	priorities := make([]int, 0, len(k.Medevac.ByPriority))
	for p := range k.Medevac.ByPriority {
		priorities = append(priorities, p)
	}
	sort.Ints(priorities)
	for _, p := range priorities {
		s := k.Medevac.ByPriority[p]
		fmt.Fprintf(&b, "  P%d: %d casualties, mean evac %s mins\n", p, s.Count, fmtOpt(s.MeanEvac))
	}

	fmt.Fprintln(&b, "\n=== Recovery ===")
	fmt.Fprintf(&b, "Breakdowns: total %d, recovered %d, repaired %d, pending %d\n",
		k.Recovery.TotalBreakdowns, k.Recovery.VehiclesRecovered, k.Recovery.VehiclesRepaired,
		k.Recovery.VehiclesPending)
	writeStats(&b, "Response time (breakdown -> arrival)", k.Recovery.ResponseTime)
	writeStats(&b, "Downtime (breakdown -> repaired)", k.Recovery.Downtime)
	fmt.Fprintf(&b, "Recovery missions: %d\n", k.Recovery.RecoveryMissions)

	fmt.Fprintln(&b, "\n=== Resupply ===")
	fmt.Fprintf(&b, "Requests: total %d, fulfilled %d, partial %d, pending %d\n",
		k.Resupply.TotalRequests, k.Resupply.RequestsFulfilled, k.Resupply.RequestsPartial,
		k.Resupply.RequestsPending)
	fmt.Fprintf(&b, "Quantities: requested %d, delivered %d, fulfillment %s%%\n",
		k.Resupply.TotalRequested, k.Resupply.TotalDelivered, fmtOpt(k.Resupply.FulfillmentRate))
	writeStats(&b, "Delivery time (request -> delivery)", k.Resupply.DeliveryTime)
	fmt.Fprintf(&b, "Stockouts: %d, logistics missions: %d\n",
		k.Resupply.StockoutEvents, k.Resupply.LogisticsMissions)

	return b.String()
}

func writeStats(b *strings.Builder, label string, s TimeStats) {
	fmt.Fprintf(b, "%s: mean %s, median %s, max %s, p90 %s\n",
		label, fmtOpt(s.Mean), fmtOpt(s.Median), fmtOpt(s.Max), fmtOpt(s.P90))
}

func fmtOpt(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f", *v)
}
