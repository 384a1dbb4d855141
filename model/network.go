package model

import (
	"fmt"
	"math"
	"strings"
)

// Coordinates is a simple 2D grid position used for placement and
// visualisation. Routing uses edge distances, not coordinates.
type Coordinates struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// DistanceTo returns the Euclidean distance to another point.
func (c Coordinates) DistanceTo(other Coordinates) float64 {
	return math.Hypot(c.X-other.X, c.Y-other.Y)
}

// NodeCapacity holds optional resource limits for a node. A nil field means
// unlimited / not applicable for the node's type.
type NodeCapacity struct {
	TreatmentSlots    *int `json:"treatment_slots,omitempty" yaml:"treatment_slots,omitempty"`
	RepairBays        *int `json:"repair_bays,omitempty" yaml:"repair_bays,omitempty"`
	StorageAmmo       *int `json:"storage_ammo,omitempty" yaml:"storage_ammo,omitempty"`
	StorageFuel       *int `json:"storage_fuel,omitempty" yaml:"storage_fuel,omitempty"`
	HoldingCasualties *int `json:"holding_casualties,omitempty" yaml:"holding_casualties,omitempty"`
	ParkingVehicles   *int `json:"parking_vehicles,omitempty" yaml:"parking_vehicles,omitempty"`
	LoadingBays       *int `json:"loading_bays,omitempty" yaml:"loading_bays,omitempty"`
}

// NodeProperties carries type-specific operational parameters. Each node
// type reads only the subset that applies to it.
type NodeProperties struct {
	// Medical
	TreatmentTimeMins *float64 `json:"treatment_time_mins,omitempty" yaml:"treatment_time_mins,omitempty"`
	TriageTimeMins    *float64 `json:"triage_time_mins,omitempty" yaml:"triage_time_mins,omitempty"`

	// Workshop, by broken-vehicle class
	RepairTimeLightMins  *float64 `json:"repair_time_light_mins,omitempty" yaml:"repair_time_light_mins,omitempty"`
	RepairTimeMediumMins *float64 `json:"repair_time_medium_mins,omitempty" yaml:"repair_time_medium_mins,omitempty"`
	RepairTimeHeavyMins  *float64 `json:"repair_time_heavy_mins,omitempty" yaml:"repair_time_heavy_mins,omitempty"`

	// Supply points
	InitialAmmoStock      *int     `json:"initial_ammo_stock,omitempty" yaml:"initial_ammo_stock,omitempty"`
	InitialFuelStock      *int     `json:"initial_fuel_stock,omitempty" yaml:"initial_fuel_stock,omitempty"`
	ResupplyIntervalHours *float64 `json:"resupply_interval_hours,omitempty" yaml:"resupply_interval_hours,omitempty"`
	ResupplyQuantity      *int     `json:"resupply_quantity,omitempty" yaml:"resupply_quantity,omitempty"`

	// Combat nodes
	AmmoConsumptionRate *float64 `json:"ammo_consumption_rate,omitempty" yaml:"ammo_consumption_rate,omitempty"`
	FuelConsumptionRate *float64 `json:"fuel_consumption_rate,omitempty" yaml:"fuel_consumption_rate,omitempty"`
}

// Node is a location in the logistics network: a facility or position that
// vehicles travel between and where service operations occur. Immutable
// once the scenario has been validated.
type Node struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Type        NodeType       `json:"type" yaml:"type"`
	Coordinates Coordinates    `json:"coordinates" yaml:"coordinates"`
	Capacity    NodeCapacity   `json:"capacity,omitempty" yaml:"capacity,omitempty"`
	Properties  NodeProperties `json:"properties,omitempty" yaml:"properties,omitempty"`
}

func (n *Node) validate(path string, problems *[]string) {
	if strings.TrimSpace(n.ID) == "" {
		*problems = append(*problems, fmt.Sprintf("%s: id must not be empty", path))
	}
	if strings.TrimSpace(n.Name) == "" {
		*problems = append(*problems, fmt.Sprintf("%s: name must not be empty", path))
	}
	if !n.Type.Valid() {
		*problems = append(*problems, fmt.Sprintf("%s: unknown node type %q", path, n.Type))
	}
}

// EdgeProperties describes route characteristics affecting transit.
type EdgeProperties struct {
	// TerrainFactor multiplies distance to form the routing weight.
	// 1.0 is a normal road; values above 1 model difficult terrain.
	TerrainFactor   float64      `json:"terrain_factor,omitempty" yaml:"terrain_factor,omitempty"`
	MaxVehicleClass VehicleClass `json:"max_vehicle_class,omitempty" yaml:"max_vehicle_class,omitempty"`
	IsOperational   *bool        `json:"is_operational,omitempty" yaml:"is_operational,omitempty"`
	RouteName       string       `json:"route_name,omitempty" yaml:"route_name,omitempty"`
}

// Edge is an undirected route between two nodes.
type Edge struct {
	FromNode   string         `json:"from" yaml:"from"`
	ToNode     string         `json:"to" yaml:"to"`
	DistanceKm float64        `json:"distance_km" yaml:"distance_km"`
	Properties EdgeProperties `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// TerrainFactor returns the configured terrain factor, defaulting to 1.0.
func (e *Edge) TerrainFactor() float64 {
	if e.Properties.TerrainFactor == 0 {
		return 1.0
	}
	return e.Properties.TerrainFactor
}

// EffectiveKm is the routing weight: distance scaled by terrain difficulty.
func (e *Edge) EffectiveKm() float64 {
	return e.DistanceKm * e.TerrainFactor()
}

// Operational reports whether the route is currently usable. Routes default
// to operational when the flag is absent.
func (e *Edge) Operational() bool {
	return e.Properties.IsOperational == nil || *e.Properties.IsOperational
}

func (e *Edge) validate(path string, problems *[]string) {
	if e.FromNode == "" || e.ToNode == "" {
		*problems = append(*problems, fmt.Sprintf("%s: from/to must not be empty", path))
	}
	if e.FromNode == e.ToNode && e.FromNode != "" {
		*problems = append(*problems, fmt.Sprintf("%s: self-loop (from=to=%q)", path, e.FromNode))
	}
	if e.DistanceKm <= 0 {
		*problems = append(*problems, fmt.Sprintf("%s: distance_km must be > 0, got %v", path, e.DistanceKm))
	}
	if f := e.Properties.TerrainFactor; f != 0 && (f <= 0 || f > 3.0) {
		*problems = append(*problems, fmt.Sprintf("%s: terrain_factor must be in (0, 3.0], got %v", path, f))
	}
	if c := e.Properties.MaxVehicleClass; c != "" && !c.Valid() {
		*problems = append(*problems, fmt.Sprintf("%s: unknown max_vehicle_class %q", path, c))
	}
}
