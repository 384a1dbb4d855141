package model

import (
	"fmt"
	"strings"
)

// SpeedProfile gives vehicle speeds by load state. Laden speed never
// exceeds unladen speed.
type SpeedProfile struct {
	UnladenKmh float64 `json:"unladen_kmh" yaml:"unladen_kmh"`
	LadenKmh   float64 `json:"laden_kmh" yaml:"laden_kmh"`
}

// Speed returns the speed for the given load state.
func (s SpeedProfile) Speed(laden bool) float64 {
	if laden {
		return s.LadenKmh
	}
	return s.UnladenKmh
}

func (s SpeedProfile) validate(path string, problems *[]string) {
	if s.UnladenKmh <= 0 || s.UnladenKmh > 150 {
		*problems = append(*problems, fmt.Sprintf("%s: unladen_kmh must be in (0, 150], got %v", path, s.UnladenKmh))
	}
	if s.LadenKmh <= 0 || s.LadenKmh > 150 {
		*problems = append(*problems, fmt.Sprintf("%s: laden_kmh must be in (0, 150], got %v", path, s.LadenKmh))
	}
	if s.LadenKmh > s.UnladenKmh {
		*problems = append(*problems, fmt.Sprintf(
			"%s: laden speed (%v km/h) cannot exceed unladen speed (%v km/h)", path, s.LadenKmh, s.UnladenKmh))
	}
}

// ServiceTimes holds the fixed durations for load/unload/hookup operations,
// in minutes. Roles use different subsets.
type ServiceTimes struct {
	LoadTimeMins   float64  `json:"load_time_mins" yaml:"load_time_mins"`
	UnloadTimeMins float64  `json:"unload_time_mins" yaml:"unload_time_mins"`
	HookupTimeMins *float64 `json:"hookup_time_mins,omitempty" yaml:"hookup_time_mins,omitempty"`
}

// VehicleType is a template defining a class of vehicle. Multiple vehicle
// instances can reference one type.
type VehicleType struct {
	ID           string       `json:"id" yaml:"id"`
	Name         string       `json:"name" yaml:"name"`
	Role         VehicleRole  `json:"role" yaml:"role"`
	VehicleClass VehicleClass `json:"vehicle_class" yaml:"vehicle_class"`

	// Capacities; each role requires its own.
	CasualtyCapacity   *int          `json:"casualty_capacity,omitempty" yaml:"casualty_capacity,omitempty"`
	CargoCapacityKg    *float64      `json:"cargo_capacity_kg,omitempty" yaml:"cargo_capacity_kg,omitempty"`
	AmmoCapacityUnits  *int          `json:"ammo_capacity_units,omitempty" yaml:"ammo_capacity_units,omitempty"`
	FuelCapacityLitres *float64      `json:"fuel_capacity_litres,omitempty" yaml:"fuel_capacity_litres,omitempty"`
	TowCapacityClass   *VehicleClass `json:"tow_capacity_class,omitempty" yaml:"tow_capacity_class,omitempty"`

	Speed        SpeedProfile `json:"speed" yaml:"speed"`
	ServiceTimes ServiceTimes `json:"service_times" yaml:"service_times"`

	// MTBFHours parameterises random breakdown injection and maintenance
	// scheduling. Nil disables both for this type.
	MTBFHours *float64 `json:"mtbf_hours,omitempty" yaml:"mtbf_hours,omitempty"`

	CrewSize            int     `json:"crew_size,omitempty" yaml:"crew_size,omitempty"`
	MaxContinuousOpsHrs float64 `json:"max_continuous_ops_hours,omitempty" yaml:"max_continuous_ops_hours,omitempty"`
}

// MaxOpsHours returns the continuous-operations limit, defaulting to 12h.
func (vt *VehicleType) MaxOpsHours() float64 {
	if vt.MaxContinuousOpsHrs == 0 {
		return 12.0
	}
	return vt.MaxContinuousOpsHrs
}

// TowClass returns the tow capacity class, defaulting to light when unset.
func (vt *VehicleType) TowClass() VehicleClass {
	if vt.TowCapacityClass == nil {
		return ClassLight
	}
	return *vt.TowCapacityClass
}

func (vt *VehicleType) validate(path string, problems *[]string) {
	if strings.TrimSpace(vt.ID) == "" {
		*problems = append(*problems, fmt.Sprintf("%s: id must not be empty", path))
	}
	if !vt.Role.Valid() {
		*problems = append(*problems, fmt.Sprintf("%s: unknown role %q", path, vt.Role))
	}
	if !vt.VehicleClass.Valid() {
		*problems = append(*problems, fmt.Sprintf("%s: unknown vehicle_class %q", path, vt.VehicleClass))
	}
	vt.Speed.validate(path+".speed", problems)

	switch vt.Role {
	case RoleAmbulance:
		if vt.CasualtyCapacity == nil || *vt.CasualtyCapacity < 1 {
			*problems = append(*problems, fmt.Sprintf("%s: ambulance must have casualty_capacity >= 1", path))
		}
	case RoleRecovery:
		if vt.TowCapacityClass == nil {
			*problems = append(*problems, fmt.Sprintf("%s: recovery vehicle must specify tow_capacity_class", path))
		} else if !vt.TowCapacityClass.Valid() {
			*problems = append(*problems, fmt.Sprintf("%s: unknown tow_capacity_class %q", path, *vt.TowCapacityClass))
		}
		if vt.ServiceTimes.HookupTimeMins == nil {
			*problems = append(*problems, fmt.Sprintf("%s: recovery vehicle must specify hookup_time_mins", path))
		}
	case RoleAmmoLogistics:
		if vt.AmmoCapacityUnits == nil || *vt.AmmoCapacityUnits < 1 {
			*problems = append(*problems, fmt.Sprintf("%s: ammo logistics vehicle must have ammo_capacity_units >= 1", path))
		}
	case RoleFuelLogistics:
		if vt.FuelCapacityLitres == nil || *vt.FuelCapacityLitres < 1 {
			*problems = append(*problems, fmt.Sprintf("%s: fuel logistics vehicle must have fuel_capacity_litres >= 1", path))
		}
	}

	if vt.MTBFHours != nil && *vt.MTBFHours <= 0 {
		*problems = append(*problems, fmt.Sprintf("%s: mtbf_hours must be > 0, got %v", path, *vt.MTBFHours))
	}
	if vt.CrewSize < 0 || vt.CrewSize > 10 {
		*problems = append(*problems, fmt.Sprintf("%s: crew_size must be in [0, 10], got %d", path, vt.CrewSize))
	}
	if vt.MaxContinuousOpsHrs < 0 || vt.MaxContinuousOpsHrs > 24 {
		*problems = append(*problems, fmt.Sprintf("%s: max_continuous_ops_hours must be in (0, 24], got %v", path, vt.MaxContinuousOpsHrs))
	}
}

// Vehicle is an individual vehicle instance placed in the scenario.
type Vehicle struct {
	ID            string       `json:"id" yaml:"id"`
	TypeID        string       `json:"type_id" yaml:"type_id"`
	Callsign      string       `json:"callsign,omitempty" yaml:"callsign,omitempty"`
	StartLocation string       `json:"start_location" yaml:"start_location"`
	InitialState  VehicleState `json:"initial_state,omitempty" yaml:"initial_state,omitempty"`

	// InitialLoadFraction is the starting load as a fraction of capacity.
	InitialLoadFraction float64 `json:"initial_load_fraction,omitempty" yaml:"initial_load_fraction,omitempty"`
}

// StartState returns the initial state, defaulting to idle.
func (v *Vehicle) StartState() VehicleState {
	if v.InitialState == "" {
		return StateIdle
	}
	return v.InitialState
}

func (v *Vehicle) validate(path string, problems *[]string) {
	if strings.TrimSpace(v.ID) == "" {
		*problems = append(*problems, fmt.Sprintf("%s: id must not be empty", path))
	}
	if v.TypeID == "" {
		*problems = append(*problems, fmt.Sprintf("%s: type_id must not be empty", path))
	}
	if v.StartLocation == "" {
		*problems = append(*problems, fmt.Sprintf("%s: start_location must not be empty", path))
	}
	if v.InitialLoadFraction < 0 || v.InitialLoadFraction > 1 {
		*problems = append(*problems, fmt.Sprintf("%s: initial_load_fraction must be in [0, 1], got %v", path, v.InitialLoadFraction))
	}
}
