package core

import "github.com/fieldops/logistics-simulator/model"

const (
	fatiguePollMins     = 15.0
	crewRestMins        = 8 * 60.0
	maintenancePollMins = 5.0
	maintenanceMins     = 120.0
)

// crewFatigueMonitor enforces mandatory rest once a crew has operated
// continuously past its type's limit. The monitor interacts with dispatch
// only through idle-pool membership: a resting vehicle simply cannot be
// popped.
func (e *Engine) crewFatigueMonitor(p *Proc, rt *VehicleRuntime) {
	maxOpsMins := rt.Type.MaxOpsHours() * 60

	for {
		p.Sleep(fatiguePollMins)

		switch rt.State {
		case model.StateCrewRest, model.StateBrokenDown, model.StateUnderRepair, model.StateMaintenance:
			rt.opsStartMins = p.Now()
			continue
		case model.StateIdle:
			rt.opsStartMins = p.Now()
			continue
		}

		opsMins := p.Now() - rt.opsStartMins
		if opsMins < maxOpsMins {
			continue
		}

		rt.State = model.StateCrewRest
		rt.outOfService = true
		e.removeFromIdlePool(rt.ID)
		e.record(EventCrewRestStarted, rt.ID, rt.Location, map[string]any{
			"ops_time_mins": opsMins,
		})

		p.Sleep(crewRestMins)

		rt.opsStartMins = p.Now()
		rt.outOfService = false
		e.returnToService(rt.ID)
		e.record(EventCrewRestEnded, rt.ID, rt.Location, nil)
	}
}

// maintenanceScheduler pulls a vehicle out of service for periodic
// maintenance. Maintenance only starts when the vehicle is idle, polled at
// a short interval; the cycle repeats at 80% of the type's MTBF.
func (e *Engine) maintenanceScheduler(p *Proc, rt *VehicleRuntime, offsetMins, intervalMins float64) {
	if offsetMins > 0 {
		p.Sleep(offsetMins)
	}

	for {
		for rt.State != model.StateIdle {
			p.Sleep(maintenancePollMins)
		}

		rt.State = model.StateMaintenance
		rt.outOfService = true
		e.removeFromIdlePool(rt.ID)
		e.record(EventMaintenanceStarted, rt.ID, rt.Location, nil)

		p.Sleep(maintenanceMins)

		rt.outOfService = false
		e.returnToService(rt.ID)
		e.record(EventMaintenanceCompleted, rt.ID, rt.Location, nil)

		p.Sleep(intervalMins)
	}
}

// breakdownGenerator injects random failures with exponentially distributed
// time-to-failure at the type's MTBF. A vehicle that is already broken,
// resting or in maintenance skips the failure and the clock rearms.
func (e *Engine) breakdownGenerator(p *Proc, rt *VehicleRuntime) {
	mtbfMins := *rt.Type.MTBFHours * 60

	for {
		p.Sleep(e.rng.ExpFloat64() * mtbfMins)

		switch rt.State {
		case model.StateBrokenDown, model.StateUnderRepair, model.StateCrewRest, model.StateMaintenance:
			continue
		}

		e.generateBreakdown(rt.ID, rt.Location, model.PriorityPriority)
	}
}
