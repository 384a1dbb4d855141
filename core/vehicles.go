package core

import (
	"github.com/fieldops/logistics-simulator/internal/logging"
	"github.com/fieldops/logistics-simulator/model"
)

const (
	defaultTreatmentMins = 30.0
	defaultRepairMins    = 60.0
	defaultHookupMins    = 15.0
)

// ambulanceProcess is the main loop for one ambulance: pop the most urgent
// casualty, drive to it, load, deliver to the nearest medical facility,
// hand the casualty to a detached treatment process, then go idle at the
// delivery point.
func (e *Engine) ambulanceProcess(p *Proc, rt *VehicleRuntime) {
	step := e.scenario.Config.TimeStep()

	for {
		for e.casualtyQueue.Len() == 0 {
			p.Sleep(step)
		}
		if !containsID(e.idleAmbulances, rt.ID) {
			p.Sleep(step)
			continue
		}

		c, _ := e.casualtyQueue.Pop()
		missionStart := p.Now()

		e.removeFromIdlePool(rt.ID)
		rt.State = model.StateTransitingUnladen

		e.record(EventVehicleDispatched, rt.ID, rt.Location, map[string]any{
			"destination": c.OriginNode,
			"casualty_id": c.ID,
		})
		e.travel(p, rt, c.OriginNode, false)
		e.record(EventVehicleArrived, rt.ID, rt.Location, nil)

		rt.State = model.StateLoading
		e.record(EventLoadingStarted, rt.ID, rt.Location, map[string]any{
			"casualty_id": c.ID,
		})
		p.Sleep(rt.Type.ServiceTimes.LoadTimeMins)

		collected := p.Now()
		c.TimeCollected = &collected
		c.CollectedBy = rt.ID
		wait, _ := c.WaitTimeMins()
		e.record(EventCasualtyCollected, c.ID, rt.Location, map[string]any{
			"vehicle_id":     rt.ID,
			"wait_time_mins": wait,
		})

		dest, ok := e.graph.NearestNodeOfType(rt.Location, model.NodeMedicalRole1, model.NodeMedicalRole2)
		if !ok {
			e.logger.Warn(e.ctx, "no reachable medical facility, casualty stranded",
				logging.String("casualty_id", c.ID),
				logging.String("location", rt.Location),
			)
			e.returnToService(rt.ID)
			continue
		}

		rt.State = model.StateTransitingLaden
		e.record(EventVehicleDeparted, rt.ID, rt.Location, map[string]any{
			"destination": dest,
		})
		e.travel(p, rt, dest, true)
		e.record(EventVehicleArrived, rt.ID, rt.Location, nil)

		rt.State = model.StateUnloading
		e.record(EventUnloadingStarted, rt.ID, rt.Location, nil)
		p.Sleep(rt.Type.ServiceTimes.UnloadTimeMins)

		delivered := p.Now()
		c.TimeDelivered = &delivered
		c.DeliveredTo = dest
		evac, _ := c.EvacuationTimeMins()
		e.record(EventCasualtyDelivered, c.ID, dest, map[string]any{
			"vehicle_id":           rt.ID,
			"evacuation_time_mins": evac,
		})

		// Treatment runs detached; the ambulance is free immediately.
		e.sched.SpawnNow(func(tp *Proc) { e.treatmentProcess(tp, c, dest) })

		rt.Missions++
		rt.BusyMins += p.Now() - missionStart
		e.returnToService(rt.ID)
		e.record(EventVehicleReturned, rt.ID, rt.Location, nil)
	}
}

// treatmentProcess takes a delivered casualty through treatment. Nodes
// with a treatment-slot limit queue casualties FIFO; unlimited nodes
// treat immediately.
func (e *Engine) treatmentProcess(p *Proc, c *Casualty, nodeID string) {
	node := e.scenario.NodeByID(nodeID)
	if node == nil {
		return
	}

	treatMins := defaultTreatmentMins
	if t := node.Properties.TreatmentTimeMins; t != nil {
		treatMins = *t
	}

	if slots := e.treatmentSlots[nodeID]; slots != nil {
		slots.Acquire(p)
		defer slots.Release()
	}

	started := p.Now()
	c.TimeTreatmentStarted = &started
	queueMins := 0.0
	if c.TimeDelivered != nil {
		queueMins = started - *c.TimeDelivered
	}
	e.record(EventTreatmentStarted, c.ID, nodeID, map[string]any{
		"queue_time_mins": queueMins,
	})

	p.Sleep(treatMins)

	completed := p.Now()
	c.TimeTreatmentCompleted = &completed
	total, _ := c.TotalTimeMins()
	e.record(EventTreatmentCompleted, c.ID, nodeID, map[string]any{
		"total_time_mins": total,
	})
}

// recoveryProcess is the main loop for one recovery vehicle. It only
// accepts breakdowns its tow class can handle; heavier wrecks stay queued
// for a capable vehicle.
func (e *Engine) recoveryProcess(p *Proc, rt *VehicleRuntime) {
	step := e.scenario.Config.TimeStep()
	towClass := rt.Type.TowClass()

	hookupMins := defaultHookupMins
	if h := rt.Type.ServiceTimes.HookupTimeMins; h != nil {
		hookupMins = *h
	}

	for {
		for e.recoveryQueue.Len() == 0 {
			p.Sleep(step)
		}
		if !containsID(e.idleRecovery[towClass], rt.ID) {
			p.Sleep(step)
			continue
		}

		b, ok := e.recoveryQueue.PopMatching(func(b *Breakdown) bool {
			return towClass.Ordinal() >= b.VehicleClass.Ordinal()
		})
		if !ok {
			p.Sleep(step)
			continue
		}
		missionStart := p.Now()

		e.removeFromIdlePool(rt.ID)
		rt.State = model.StateTransitingUnladen

		dispatched := p.Now()
		b.TimeRecoveryDispatched = &dispatched
		b.RecoveredBy = rt.ID
		e.record(EventVehicleDispatched, rt.ID, rt.Location, map[string]any{
			"destination":  b.Location,
			"breakdown_id": b.ID,
		})

		e.travel(p, rt, b.Location, false)
		arrived := p.Now()
		b.TimeRecoveryArrived = &arrived
		e.record(EventVehicleArrived, rt.ID, rt.Location, nil)

		rt.State = model.StateHookup
		e.record(EventHookupStarted, rt.ID, rt.Location, map[string]any{
			"breakdown_id": b.ID,
		})
		p.Sleep(hookupMins)

		hooked := p.Now()
		b.TimeHookupCompleted = &hooked
		e.record(EventHookupCompleted, rt.ID, rt.Location, map[string]any{
			"breakdown_id": b.ID,
		})

		workshop, ok := e.graph.NearestNodeOfType(rt.Location, model.NodeRepairWorkshop)
		if !ok {
			e.logger.Warn(e.ctx, "no reachable workshop, wreck left in place",
				logging.String("breakdown_id", b.ID),
				logging.String("location", rt.Location),
			)
			e.returnToService(rt.ID)
			continue
		}

		rt.State = model.StateTransitingLaden
		e.record(EventVehicleDeparted, rt.ID, rt.Location, map[string]any{
			"destination": workshop,
		})
		e.travel(p, rt, workshop, true)

		atWorkshop := p.Now()
		b.TimeArrivedWorkshop = &atWorkshop
		b.RepairedAt = workshop
		e.record(EventVehicleArrived, rt.ID, rt.Location, nil)

		// Repair runs detached; it returns the broken vehicle to service
		// on completion. The recovery vehicle is free immediately.
		e.sched.SpawnNow(func(rp *Proc) { e.repairProcess(rp, b, workshop) })

		rt.Missions++
		rt.BusyMins += p.Now() - missionStart
		e.returnToService(rt.ID)
		e.record(EventVehicleReturned, rt.ID, rt.Location, nil)
	}
}

// repairProcess takes a recovered vehicle through repair at a workshop and
// returns it to its role's idle pool at the workshop location.
func (e *Engine) repairProcess(p *Proc, b *Breakdown, nodeID string) {
	node := e.scenario.NodeByID(nodeID)
	if node == nil {
		return
	}
	repairMins := repairTimeFor(node, b.VehicleClass)

	if bays := e.repairBays[nodeID]; bays != nil {
		bays.Acquire(p)
		defer bays.Release()
	}

	if broken := e.vehicles[b.VehicleID]; broken != nil {
		broken.State = model.StateUnderRepair
		broken.Location = nodeID
	}

	started := p.Now()
	b.TimeRepairStarted = &started
	e.record(EventRepairStarted, b.ID, nodeID, map[string]any{
		"vehicle_id": b.VehicleID,
	})

	p.Sleep(repairMins)

	completed := p.Now()
	b.TimeRepairCompleted = &completed
	downtime, _ := b.DowntimeMins()
	e.record(EventRepairCompleted, b.ID, nodeID, map[string]any{
		"vehicle_id":          b.VehicleID,
		"total_downtime_mins": downtime,
	})

	if broken := e.vehicles[b.VehicleID]; broken != nil {
		broken.Location = nodeID
		broken.outOfService = false
		e.returnToService(b.VehicleID)
	}
}

func repairTimeFor(node *model.Node, class model.VehicleClass) float64 {
	var t *float64
	switch class {
	case model.ClassLight:
		t = node.Properties.RepairTimeLightMins
	case model.ClassMedium:
		t = node.Properties.RepairTimeMediumMins
	case model.ClassHeavy:
		t = node.Properties.RepairTimeHeavyMins
	}
	if t != nil {
		return *t
	}
	return defaultRepairMins
}

// logisticsProcess is the main loop for one ammunition carrier: pop the
// most urgent request, load at the nearest stocked supply point, deliver,
// then go idle at the delivery point. A request with no issuing point is
// dropped as a stockout, not requeued.
func (e *Engine) logisticsProcess(p *Proc, rt *VehicleRuntime) {
	step := e.scenario.Config.TimeStep()

	for {
		for e.ammoQueue.Len() == 0 {
			p.Sleep(step)
		}
		if !containsID(e.idleLogistics, rt.ID) {
			p.Sleep(step)
			continue
		}

		a, _ := e.ammoQueue.Pop()
		missionStart := p.Now()

		e.removeFromIdlePool(rt.ID)
		rt.State = model.StateTransitingUnladen

		ammoPoint, ok := e.nearestStockedAmmoPoint(rt.Location)
		if !ok {
			e.record(EventStockout, a.ID, a.Location, map[string]any{
				"quantity_requested": a.QuantityRequested,
			})
			e.returnToService(rt.ID)
			continue
		}

		dispatched := p.Now()
		a.TimeDispatched = &dispatched
		a.FulfilledBy = rt.ID
		e.record(EventVehicleDispatched, rt.ID, rt.Location, map[string]any{
			"destination":     ammoPoint,
			"ammo_request_id": a.ID,
		})

		e.travel(p, rt, ammoPoint, false)
		e.record(EventVehicleArrived, rt.ID, rt.Location, nil)

		rt.State = model.StateLoading
		e.record(EventLoadingStarted, rt.ID, rt.Location, nil)
		p.Sleep(rt.Type.ServiceTimes.LoadTimeMins)

		loaded := p.Now()
		a.TimeLoaded = &loaded
		a.LoadedFrom = ammoPoint

		qty := a.QuantityRequested
		if limit := rt.Type.AmmoCapacityUnits; limit != nil && qty > *limit {
			qty = *limit
		}
		if stock, tracked := e.ammoStock[ammoPoint]; tracked {
			if qty > stock {
				qty = stock
			}
			e.ammoStock[ammoPoint] = stock - qty
		}
		e.record(EventAmmoLoaded, rt.ID, ammoPoint, map[string]any{
			"quantity": qty,
		})

		rt.State = model.StateTransitingLaden
		e.record(EventVehicleDeparted, rt.ID, rt.Location, map[string]any{
			"destination": a.Location,
		})
		e.travel(p, rt, a.Location, true)
		e.record(EventVehicleArrived, rt.ID, rt.Location, nil)

		rt.State = model.StateUnloading
		e.record(EventUnloadingStarted, rt.ID, rt.Location, nil)
		p.Sleep(rt.Type.ServiceTimes.UnloadTimeMins)

		deliveredAt := p.Now()
		a.TimeDelivered = &deliveredAt
		a.QuantityDelivered = qty
		deliveryMins, _ := a.DeliveryTimeMins()
		e.record(EventAmmoDelivered, a.ID, a.Location, map[string]any{
			"vehicle_id":         rt.ID,
			"quantity":           qty,
			"delivery_time_mins": deliveryMins,
		})

		rt.Missions++
		rt.BusyMins += p.Now() - missionStart
		e.returnToService(rt.ID)
		e.record(EventVehicleReturned, rt.ID, rt.Location, nil)
	}
}
