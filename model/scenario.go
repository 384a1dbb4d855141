package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SimulationConfig holds global run control parameters.
type SimulationConfig struct {
	DurationHours float64 `json:"duration_hours,omitempty" yaml:"duration_hours,omitempty"`
	RandomSeed    int64   `json:"random_seed,omitempty" yaml:"random_seed,omitempty"`

	// TimeStepMins is the minimum time resolution used by processes that
	// poll for work (dispatch queues, fatigue checks).
	TimeStepMins float64 `json:"time_step_mins,omitempty" yaml:"time_step_mins,omitempty"`

	EnableCrewFatigue        bool `json:"enable_crew_fatigue,omitempty" yaml:"enable_crew_fatigue,omitempty"`
	EnableVehicleMaintenance bool `json:"enable_vehicle_maintenance,omitempty" yaml:"enable_vehicle_maintenance,omitempty"`
	EnableBreakdowns         bool `json:"enable_breakdowns,omitempty" yaml:"enable_breakdowns,omitempty"`

	// MaxEvents is a safety valve against runaway event generation. The
	// run terminates early once the event log reaches this size.
	MaxEvents int `json:"max_events,omitempty" yaml:"max_events,omitempty"`
}

const (
	defaultDurationHours = 8.0
	defaultTimeStepMins  = 1.0
	defaultMaxEvents     = 1_000_000
)

// Duration returns the configured duration, defaulting to 8 hours.
func (c *SimulationConfig) Duration() float64 {
	if c.DurationHours == 0 {
		return defaultDurationHours
	}
	return c.DurationHours
}

// DurationMins is the simulation duration in minutes.
func (c *SimulationConfig) DurationMins() float64 {
	return c.Duration() * 60
}

// TimeStep returns the polling resolution, defaulting to 1 minute.
func (c *SimulationConfig) TimeStep() float64 {
	if c.TimeStepMins == 0 {
		return defaultTimeStepMins
	}
	return c.TimeStepMins
}

// EventCap returns the safety limit on total logged events.
func (c *SimulationConfig) EventCap() int {
	if c.MaxEvents == 0 {
		return defaultMaxEvents
	}
	return c.MaxEvents
}

func (c *SimulationConfig) validate(path string, problems *[]string) {
	if c.DurationHours < 0 || c.DurationHours > 168 {
		*problems = append(*problems, fmt.Sprintf("%s: duration_hours must be in (0, 168], got %v", path, c.DurationHours))
	}
	if c.TimeStepMins < 0 || c.TimeStepMins > 60 {
		*problems = append(*problems, fmt.Sprintf("%s: time_step_mins must be in (0, 60], got %v", path, c.TimeStepMins))
	}
	if c.MaxEvents < 0 {
		*problems = append(*problems, fmt.Sprintf("%s: max_events must be >= 0, got %d", path, c.MaxEvents))
	}
}

// Scenario is the complete input to a simulation run: network topology,
// fleet, demand, and control parameters. The engine consumes it read-only
// after validation.
type Scenario struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string `json:"version,omitempty" yaml:"version,omitempty"`

	Nodes        []Node        `json:"nodes" yaml:"nodes"`
	Edges        []Edge        `json:"edges" yaml:"edges"`
	VehicleTypes []VehicleType `json:"vehicle_types" yaml:"vehicle_types"`
	Vehicles     []Vehicle     `json:"vehicles" yaml:"vehicles"`

	Demand DemandConfiguration `json:"demand" yaml:"demand"`
	Config SimulationConfig    `json:"config,omitempty" yaml:"config,omitempty"`
}

// ValidationError aggregates every problem found in a scenario so callers
// see the full list, not just the first violation.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("scenario validation failed with %d error(s):\n  - %s",
		len(e.Problems), strings.Join(e.Problems, "\n  - "))
}

// Validate checks structural invariants and cross-references. It returns
// nil for a valid scenario and a *ValidationError listing every violation
// otherwise. Validating an already-valid scenario is idempotent.
func (s *Scenario) Validate() error {
	var problems []string

	if strings.TrimSpace(s.Name) == "" {
		problems = append(problems, "name must not be empty")
	}
	if len(s.Nodes) == 0 {
		problems = append(problems, "scenario must define at least one node")
	}
	if len(s.Edges) == 0 {
		problems = append(problems, "scenario must define at least one edge")
	}
	if len(s.VehicleTypes) == 0 {
		problems = append(problems, "scenario must define at least one vehicle type")
	}
	if len(s.Vehicles) == 0 {
		problems = append(problems, "scenario must define at least one vehicle")
	}

	nodeIDs := make(map[string]bool, len(s.Nodes))
	for i := range s.Nodes {
		n := &s.Nodes[i]
		n.validate(fmt.Sprintf("nodes[%d]", i), &problems)
		if n.ID != "" {
			if nodeIDs[n.ID] {
				problems = append(problems, fmt.Sprintf("nodes[%d]: duplicate node id %q", i, n.ID))
			}
			nodeIDs[n.ID] = true
		}
	}

	for i := range s.Edges {
		e := &s.Edges[i]
		path := fmt.Sprintf("edges[%d]", i)
		e.validate(path, &problems)
		if e.FromNode != "" && !nodeIDs[e.FromNode] {
			problems = append(problems, fmt.Sprintf("%s: references unknown source node %q", path, e.FromNode))
		}
		if e.ToNode != "" && !nodeIDs[e.ToNode] {
			problems = append(problems, fmt.Sprintf("%s: references unknown destination node %q", path, e.ToNode))
		}
	}

	typeIDs := make(map[string]bool, len(s.VehicleTypes))
	for i := range s.VehicleTypes {
		vt := &s.VehicleTypes[i]
		vt.validate(fmt.Sprintf("vehicle_types[%d]", i), &problems)
		if vt.ID != "" {
			if typeIDs[vt.ID] {
				problems = append(problems, fmt.Sprintf("vehicle_types[%d]: duplicate type id %q", i, vt.ID))
			}
			typeIDs[vt.ID] = true
		}
	}

	vehicleIDs := make(map[string]bool, len(s.Vehicles))
	for i := range s.Vehicles {
		v := &s.Vehicles[i]
		path := fmt.Sprintf("vehicles[%d]", i)
		v.validate(path, &problems)
		if v.ID != "" {
			if vehicleIDs[v.ID] {
				problems = append(problems, fmt.Sprintf("%s: duplicate vehicle id %q", path, v.ID))
			}
			vehicleIDs[v.ID] = true
		}
		if v.TypeID != "" && !typeIDs[v.TypeID] {
			problems = append(problems, fmt.Sprintf("%s: vehicle %q references unknown type %q", path, v.ID, v.TypeID))
		}
		if v.StartLocation != "" && !nodeIDs[v.StartLocation] {
			problems = append(problems, fmt.Sprintf("%s: vehicle %q starts at unknown node %q", path, v.ID, v.StartLocation))
		}
	}

	s.Demand.validate("demand", &problems)
	for _, loc := range s.Demand.Locations() {
		if !nodeIDs[loc] {
			problems = append(problems, fmt.Sprintf("demand: references unknown node %q", loc))
		}
	}

	s.Config.validate("config", &problems)

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// NodeByID looks up a node by its ID, or nil if absent.
func (s *Scenario) NodeByID(id string) *Node {
	for i := range s.Nodes {
		if s.Nodes[i].ID == id {
			return &s.Nodes[i]
		}
	}
	return nil
}

// VehicleTypeByID looks up a vehicle type by its ID, or nil if absent.
func (s *Scenario) VehicleTypeByID(id string) *VehicleType {
	for i := range s.VehicleTypes {
		if s.VehicleTypes[i].ID == id {
			return &s.VehicleTypes[i]
		}
	}
	return nil
}

// VehiclesByRole returns the vehicles whose type has the given role.
func (s *Scenario) VehiclesByRole(role VehicleRole) []Vehicle {
	var out []Vehicle
	for i := range s.Vehicles {
		vt := s.VehicleTypeByID(s.Vehicles[i].TypeID)
		if vt != nil && vt.Role == role {
			out = append(out, s.Vehicles[i])
		}
	}
	return out
}

// Summary renders a short human-readable description of the scenario.
func (s *Scenario) Summary() string {
	lines := []string{
		fmt.Sprintf("Scenario: %s", s.Name),
		fmt.Sprintf("  Duration: %v hours", s.Config.Duration()),
		fmt.Sprintf("  Nodes: %d", len(s.Nodes)),
		fmt.Sprintf("  Edges: %d", len(s.Edges)),
		fmt.Sprintf("  Vehicle types: %d", len(s.VehicleTypes)),
		fmt.Sprintf("  Vehicles: %d", len(s.Vehicles)),
		fmt.Sprintf("  Demand mode: %s", s.Demand.Mode),
	}
	if s.Demand.Mode == DemandManual {
		lines = append(lines, fmt.Sprintf("  Manual events: %d", len(s.Demand.ManualEvents)))
	} else {
		lines = append(lines, fmt.Sprintf("  Rate configs: %d", len(s.Demand.RateBased)))
	}
	return strings.Join(lines, "\n")
}

// LoadScenario reads and validates a scenario from a JSON or YAML file,
// selected by extension (.yaml/.yml vs anything else).
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %q: %w", path, err)
	}

	var s Scenario
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("parse scenario %q: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("parse scenario %q: %w", path, err)
		}
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveScenario writes a scenario to a JSON file with stable indentation.
func SaveScenario(s *Scenario, path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode scenario: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write scenario %q: %w", path, err)
	}
	return nil
}
