package core

import "fmt"

// EventKind names one observable simulation occurrence. Kinds are stable
// identifiers used in the event log, metrics labels and export files.
type EventKind string

const (
	EventSimulationStarted EventKind = "simulation_started"
	EventSimulationEnded   EventKind = "simulation_ended"
	EventSimulationAborted EventKind = "simulation_aborted"

	EventCasualtyGenerated    EventKind = "casualty_generated"
	EventCasualtyCollected    EventKind = "casualty_collected"
	EventCasualtyDelivered    EventKind = "casualty_delivered"
	EventTreatmentStarted     EventKind = "treatment_started"
	EventTreatmentCompleted   EventKind = "treatment_completed"
	EventBreakdownOccurred    EventKind = "breakdown_occurred"
	EventHookupStarted        EventKind = "hookup_started"
	EventHookupCompleted      EventKind = "hookup_completed"
	EventRepairStarted        EventKind = "repair_started"
	EventRepairCompleted      EventKind = "repair_completed"
	EventAmmoRequestGenerated EventKind = "ammo_request_generated"
	EventAmmoLoaded           EventKind = "ammo_loaded"
	EventAmmoDelivered        EventKind = "ammo_delivered"
	EventStockout             EventKind = "stockout"
	EventStockReplenished     EventKind = "stock_replenished"

	EventVehicleDispatched EventKind = "vehicle_dispatched"
	EventVehicleDeparted   EventKind = "vehicle_departed"
	EventVehicleArrived    EventKind = "vehicle_arrived"
	EventVehicleReturned   EventKind = "vehicle_returned"
	EventLoadingStarted    EventKind = "loading_started"
	EventUnloadingStarted  EventKind = "unloading_started"

	EventCrewRestStarted      EventKind = "crew_rest_started"
	EventCrewRestEnded        EventKind = "crew_rest_ended"
	EventMaintenanceStarted   EventKind = "maintenance_started"
	EventMaintenanceCompleted EventKind = "maintenance_completed"
)

// Event is one append-only record in the simulation event log.
type Event struct {
	Seq      int            `json:"seq"`
	TimeMins float64        `json:"time_mins"`
	Kind     EventKind      `json:"kind"`
	EntityID string         `json:"entity_id,omitempty"`
	Location string         `json:"location,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
}

// EventLog accumulates events and entity records for one run. It also
// mints the sequential entity identifiers. All access happens from the
// scheduler's single active process, so no locking is needed.
type EventLog struct {
	events []Event

	casualties   []*Casualty
	breakdowns   []*Breakdown
	ammoRequests []*AmmoRequest

	onEvent func(Event)
}

func NewEventLog() *EventLog {
	return &EventLog{}
}

// SetObserver registers a callback invoked for every appended event.
// Used to feed metrics without coupling the log to a collector.
func (l *EventLog) SetObserver(fn func(Event)) { l.onEvent = fn }

// Record appends an event to the log and returns it.
func (l *EventLog) Record(timeMins float64, kind EventKind, entityID, location string, details map[string]any) Event {
	ev := Event{
		Seq:      len(l.events),
		TimeMins: timeMins,
		Kind:     kind,
		EntityID: entityID,
		Location: location,
		Details:  details,
	}
	l.events = append(l.events, ev)
	if l.onEvent != nil {
		l.onEvent(ev)
	}
	return ev
}

// NewCasualty registers a casualty and assigns its identifier.
func (l *EventLog) NewCasualty(c Casualty) *Casualty {
	c.ID = fmt.Sprintf("CAS_%04d", len(l.casualties)+1)
	rec := &c
	l.casualties = append(l.casualties, rec)
	return rec
}

// NewBreakdown registers a breakdown and assigns its identifier.
func (l *EventLog) NewBreakdown(b Breakdown) *Breakdown {
	b.ID = fmt.Sprintf("BD_%04d", len(l.breakdowns)+1)
	rec := &b
	l.breakdowns = append(l.breakdowns, rec)
	return rec
}

// NewAmmoRequest registers an ammo request and assigns its identifier.
func (l *EventLog) NewAmmoRequest(a AmmoRequest) *AmmoRequest {
	a.ID = fmt.Sprintf("AMMO_%04d", len(l.ammoRequests)+1)
	rec := &a
	l.ammoRequests = append(l.ammoRequests, rec)
	return rec
}

// Events returns the full log in append order.
func (l *EventLog) Events() []Event { return l.events }

// Casualties returns every registered casualty in creation order.
func (l *EventLog) Casualties() []*Casualty { return l.casualties }

// Breakdowns returns every registered breakdown in creation order.
func (l *EventLog) Breakdowns() []*Breakdown { return l.breakdowns }

// AmmoRequests returns every registered ammo request in creation order.
func (l *EventLog) AmmoRequests() []*AmmoRequest { return l.ammoRequests }

// EventsByKind returns events of the given kind in append order.
func (l *EventLog) EventsByKind(kind EventKind) []Event {
	var out []Event
	for _, ev := range l.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// EventsForEntity returns events tagged with the given entity identifier.
func (l *EventLog) EventsForEntity(entityID string) []Event {
	var out []Event
	for _, ev := range l.events {
		if ev.EntityID == entityID {
			out = append(out, ev)
		}
	}
	return out
}

// EventsAtLocation returns events recorded at the given node.
func (l *EventLog) EventsAtLocation(nodeID string) []Event {
	var out []Event
	for _, ev := range l.events {
		if ev.Location == nodeID {
			out = append(out, ev)
		}
	}
	return out
}

// EventsInWindow returns events with fromMins <= time < toMins.
func (l *EventLog) EventsInWindow(fromMins, toMins float64) []Event {
	var out []Event
	for _, ev := range l.events {
		if ev.TimeMins >= fromMins && ev.TimeMins < toMins {
			out = append(out, ev)
		}
	}
	return out
}

// CountByKind tallies the log by event kind.
func (l *EventLog) CountByKind() map[EventKind]int {
	counts := make(map[EventKind]int)
	for _, ev := range l.events {
		counts[ev.Kind]++
	}
	return counts
}
