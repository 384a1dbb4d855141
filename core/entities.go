package core

import "github.com/fieldops/logistics-simulator/model"

// Casualty tracks one casualty through the evacuation chain. Timestamp
// fields are nil until the corresponding lifecycle step happens; each is
// set exactly once. Records are never deleted during a run.
type Casualty struct {
	ID            string         `json:"id"`
	Priority      model.Priority `json:"priority"`
	OriginNode    string         `json:"origin_node"`
	TimeGenerated float64        `json:"time_generated"`
	Mechanism     string         `json:"mechanism"`

	TimeCollected          *float64 `json:"time_collected,omitempty"`
	TimeDelivered          *float64 `json:"time_delivered,omitempty"`
	TimeTreatmentStarted   *float64 `json:"time_treatment_started,omitempty"`
	TimeTreatmentCompleted *float64 `json:"time_treatment_completed,omitempty"`

	CollectedBy string `json:"collected_by,omitempty"`
	DeliveredTo string `json:"delivered_to,omitempty"`
}

// WaitTimeMins is the time from generation to collection.
func (c *Casualty) WaitTimeMins() (float64, bool) {
	if c.TimeCollected == nil {
		return 0, false
	}
	return *c.TimeCollected - c.TimeGenerated, true
}

// EvacuationTimeMins is the time from generation to facility delivery.
func (c *Casualty) EvacuationTimeMins() (float64, bool) {
	if c.TimeDelivered == nil {
		return 0, false
	}
	return *c.TimeDelivered - c.TimeGenerated, true
}

// TotalTimeMins is the time from generation to treatment completion.
func (c *Casualty) TotalTimeMins() (float64, bool) {
	if c.TimeTreatmentCompleted == nil {
		return 0, false
	}
	return *c.TimeTreatmentCompleted - c.TimeGenerated, true
}

// Breakdown tracks a broken-down vehicle through recovery and repair.
type Breakdown struct {
	ID           string             `json:"id"`
	VehicleID    string             `json:"vehicle_id"`
	VehicleClass model.VehicleClass `json:"vehicle_class"`
	Location     string             `json:"location"`
	TimeOccurred float64            `json:"time_occurred"`
	Priority     model.Priority     `json:"priority"`

	TimeRecoveryDispatched *float64 `json:"time_recovery_dispatched,omitempty"`
	TimeRecoveryArrived    *float64 `json:"time_recovery_arrived,omitempty"`
	TimeHookupCompleted    *float64 `json:"time_hookup_completed,omitempty"`
	TimeArrivedWorkshop    *float64 `json:"time_arrived_workshop,omitempty"`
	TimeRepairStarted      *float64 `json:"time_repair_started,omitempty"`
	TimeRepairCompleted    *float64 `json:"time_repair_completed,omitempty"`

	RecoveredBy string `json:"recovered_by,omitempty"`
	RepairedAt  string `json:"repaired_at,omitempty"`
}

// ResponseTimeMins is the time from breakdown to recovery arrival on scene.
func (b *Breakdown) ResponseTimeMins() (float64, bool) {
	if b.TimeRecoveryArrived == nil {
		return 0, false
	}
	return *b.TimeRecoveryArrived - b.TimeOccurred, true
}

// RecoveryTimeMins is the time from breakdown to arrival at a workshop.
func (b *Breakdown) RecoveryTimeMins() (float64, bool) {
	if b.TimeArrivedWorkshop == nil {
		return 0, false
	}
	return *b.TimeArrivedWorkshop - b.TimeOccurred, true
}

// RepairTimeMins is the time spent in repair.
func (b *Breakdown) RepairTimeMins() (float64, bool) {
	if b.TimeRepairStarted == nil || b.TimeRepairCompleted == nil {
		return 0, false
	}
	return *b.TimeRepairCompleted - *b.TimeRepairStarted, true
}

// DowntimeMins is the total time from breakdown to return to service.
func (b *Breakdown) DowntimeMins() (float64, bool) {
	if b.TimeRepairCompleted == nil {
		return 0, false
	}
	return *b.TimeRepairCompleted - b.TimeOccurred, true
}

// AmmoRequest tracks an ammunition resupply request through fulfillment.
type AmmoRequest struct {
	ID                string         `json:"id"`
	Location          string         `json:"location"`
	QuantityRequested int            `json:"quantity_requested"`
	TimeRequested     float64        `json:"time_requested"`
	Priority          model.Priority `json:"priority"`

	QuantityDelivered int `json:"quantity_delivered"`

	TimeDispatched *float64 `json:"time_dispatched,omitempty"`
	TimeLoaded     *float64 `json:"time_loaded,omitempty"`
	TimeDelivered  *float64 `json:"time_delivered,omitempty"`

	FulfilledBy string `json:"fulfilled_by,omitempty"`
	LoadedFrom  string `json:"loaded_from,omitempty"`
}

// WaitTimeMins is the time from request to vehicle dispatch.
func (a *AmmoRequest) WaitTimeMins() (float64, bool) {
	if a.TimeDispatched == nil {
		return 0, false
	}
	return *a.TimeDispatched - a.TimeRequested, true
}

// DeliveryTimeMins is the time from request to delivery.
func (a *AmmoRequest) DeliveryTimeMins() (float64, bool) {
	if a.TimeDelivered == nil {
		return 0, false
	}
	return *a.TimeDelivered - a.TimeRequested, true
}

// Fulfilled reports whether the full requested quantity was delivered.
func (a *AmmoRequest) Fulfilled() bool {
	return a.QuantityDelivered >= a.QuantityRequested
}
