package model

import (
	"fmt"
	"math"
	"sort"
)

// ManualDemandEvent is a demand occurrence at a known time, used in manual
// demand mode.
type ManualDemandEvent struct {
	TimeMins float64    `json:"time_mins" yaml:"time_mins"`
	Type     DemandType `json:"type" yaml:"type"`
	Location string     `json:"location" yaml:"location"`
	Quantity int        `json:"quantity,omitempty" yaml:"quantity,omitempty"`
	Priority Priority   `json:"priority,omitempty" yaml:"priority,omitempty"`

	// Properties carries event-specific extras, e.g. "vehicle_id" for
	// breakdown events or "mechanism" for casualties.
	Properties map[string]string `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// Qty returns the event quantity, defaulting to 1.
func (e *ManualDemandEvent) Qty() int {
	if e.Quantity == 0 {
		return 1
	}
	return e.Quantity
}

// EffectivePriority returns the event priority, defaulting to P2.
func (e *ManualDemandEvent) EffectivePriority() Priority {
	if e.Priority == 0 {
		return PriorityPriority
	}
	return e.Priority
}

func (e *ManualDemandEvent) validate(path string, problems *[]string) {
	if e.TimeMins < 0 {
		*problems = append(*problems, fmt.Sprintf("%s: time_mins must be >= 0, got %v", path, e.TimeMins))
	}
	if !e.Type.Valid() {
		*problems = append(*problems, fmt.Sprintf("%s: unknown demand type %q", path, e.Type))
	}
	if e.Location == "" {
		*problems = append(*problems, fmt.Sprintf("%s: location must not be empty", path))
	}
	if e.Quantity < 0 {
		*problems = append(*problems, fmt.Sprintf("%s: quantity must be >= 1, got %d", path, e.Quantity))
	}
	if e.Priority != 0 && !e.Priority.Valid() {
		*problems = append(*problems, fmt.Sprintf("%s: priority must be in [1, 4], got %d", path, e.Priority))
	}
}

// RateBasedDemand configures stochastic demand generation: Poisson arrivals
// at the given rate within an active window, with priority sampled from a
// weighted distribution and quantity sampled uniformly from a range.
type RateBasedDemand struct {
	Type        DemandType `json:"type" yaml:"type"`
	Location    string     `json:"location" yaml:"location"`
	RatePerHour float64    `json:"rate_per_hour" yaml:"rate_per_hour"`

	// PriorityWeights maps priority level to sampling probability. The
	// weights must sum to 1 within ±0.01; slightly-off weights are
	// rejected at validation time rather than normalized at runtime.
	PriorityWeights map[int]float64 `json:"priority_weights,omitempty" yaml:"priority_weights,omitempty"`

	ActiveFromMins  float64  `json:"active_from_mins,omitempty" yaml:"active_from_mins,omitempty"`
	ActiveUntilMins *float64 `json:"active_until_mins,omitempty" yaml:"active_until_mins,omitempty"`

	MinQuantity int `json:"min_quantity,omitempty" yaml:"min_quantity,omitempty"`
	MaxQuantity int `json:"max_quantity,omitempty" yaml:"max_quantity,omitempty"`
}

// Weights returns the priority weight table, defaulting to the standard
// 10% P1 / 30% P2 / 60% P3 split when unset.
func (r *RateBasedDemand) Weights() map[int]float64 {
	if len(r.PriorityWeights) == 0 {
		return map[int]float64{1: 0.1, 2: 0.3, 3: 0.6}
	}
	return r.PriorityWeights
}

// SortedPriorities returns the configured priority levels in ascending
// order so sampling consumes randomness in a deterministic order.
func (r *RateBasedDemand) SortedPriorities() []int {
	w := r.Weights()
	levels := make([]int, 0, len(w))
	for p := range w {
		levels = append(levels, p)
	}
	sort.Ints(levels)
	return levels
}

// QuantityRange returns the [min, max] quantity bounds, defaulting to [1, 1].
func (r *RateBasedDemand) QuantityRange() (int, int) {
	lo, hi := r.MinQuantity, r.MaxQuantity
	if lo == 0 {
		lo = 1
	}
	if hi == 0 {
		hi = lo
	}
	return lo, hi
}

func (r *RateBasedDemand) validate(path string, problems *[]string) {
	if !r.Type.Valid() {
		*problems = append(*problems, fmt.Sprintf("%s: unknown demand type %q", path, r.Type))
	}
	if r.Location == "" {
		*problems = append(*problems, fmt.Sprintf("%s: location must not be empty", path))
	}
	if r.RatePerHour <= 0 {
		*problems = append(*problems, fmt.Sprintf("%s: rate_per_hour must be > 0, got %v", path, r.RatePerHour))
	}

	total := 0.0
	for p, w := range r.Weights() {
		if !Priority(p).Valid() {
			*problems = append(*problems, fmt.Sprintf("%s: invalid priority %d in priority_weights", path, p))
		}
		if w < 0 {
			*problems = append(*problems, fmt.Sprintf("%s: negative weight %v for priority %d", path, w, p))
		}
		total += w
	}
	if math.Abs(total-1.0) > 0.01 {
		*problems = append(*problems, fmt.Sprintf("%s: priority_weights must sum to 1.0, got %.3f", path, total))
	}

	if r.ActiveFromMins < 0 {
		*problems = append(*problems, fmt.Sprintf("%s: active_from_mins must be >= 0, got %v", path, r.ActiveFromMins))
	}
	if r.ActiveUntilMins != nil && *r.ActiveUntilMins <= r.ActiveFromMins {
		*problems = append(*problems, fmt.Sprintf(
			"%s: active_until_mins (%v) must be > active_from_mins (%v)", path, *r.ActiveUntilMins, r.ActiveFromMins))
	}

	lo, hi := r.QuantityRange()
	if lo < 1 {
		*problems = append(*problems, fmt.Sprintf("%s: min_quantity must be >= 1, got %d", path, lo))
	}
	if hi < lo {
		*problems = append(*problems, fmt.Sprintf("%s: max_quantity (%d) must be >= min_quantity (%d)", path, hi, lo))
	}
}

// DemandConfiguration is the complete demand specification for a scenario.
// Exactly one mode's data is consumed, selected by Mode.
type DemandConfiguration struct {
	Mode         DemandMode          `json:"mode" yaml:"mode"`
	ManualEvents []ManualDemandEvent `json:"manual_events,omitempty" yaml:"manual_events,omitempty"`
	RateBased    []RateBasedDemand   `json:"rate_based,omitempty" yaml:"rate_based,omitempty"`
}

// Locations returns every node ID referenced by the demand configuration.
func (d *DemandConfiguration) Locations() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(loc string) {
		if loc != "" && !seen[loc] {
			seen[loc] = true
			out = append(out, loc)
		}
	}
	for i := range d.ManualEvents {
		add(d.ManualEvents[i].Location)
	}
	for i := range d.RateBased {
		add(d.RateBased[i].Location)
	}
	return out
}

func (d *DemandConfiguration) validate(path string, problems *[]string) {
	switch d.Mode {
	case DemandManual:
		if len(d.ManualEvents) == 0 {
			*problems = append(*problems, fmt.Sprintf("%s: manual mode requires at least one event in manual_events", path))
		}
		for i := range d.ManualEvents {
			d.ManualEvents[i].validate(fmt.Sprintf("%s.manual_events[%d]", path, i), problems)
		}
	case DemandRateBased:
		if len(d.RateBased) == 0 {
			*problems = append(*problems, fmt.Sprintf("%s: rate-based mode requires at least one config in rate_based", path))
		}
		for i := range d.RateBased {
			d.RateBased[i].validate(fmt.Sprintf("%s.rate_based[%d]", path, i), problems)
		}
	default:
		*problems = append(*problems, fmt.Sprintf("%s: unknown demand mode %q", path, d.Mode))
	}
}
