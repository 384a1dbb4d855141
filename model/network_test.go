package model

import (
	"math"
	"strings"
	"testing"
)

func TestEdgeDefaults(t *testing.T) {
	e := Edge{FromNode: "a", ToNode: "b", DistanceKm: 10}

	if e.TerrainFactor() != 1.0 {
		t.Fatalf("TerrainFactor default = %v, want 1.0", e.TerrainFactor())
	}
	if e.EffectiveKm() != 10 {
		t.Fatalf("EffectiveKm = %v, want 10", e.EffectiveKm())
	}
	if !e.Operational() {
		t.Fatal("edges default to operational")
	}

	e.Properties.TerrainFactor = 2.5
	if e.EffectiveKm() != 25 {
		t.Fatalf("EffectiveKm = %v, want 25", e.EffectiveKm())
	}

	closed := false
	e.Properties.IsOperational = &closed
	if e.Operational() {
		t.Fatal("closed edge reported operational")
	}
}

func TestEdgeValidation(t *testing.T) {
	cases := []struct {
		name    string
		edge    Edge
		problem string
	}{
		{
			name:    "self loop",
			edge:    Edge{FromNode: "a", ToNode: "a", DistanceKm: 5},
			problem: "self-loop",
		},
		{
			name:    "zero distance",
			edge:    Edge{FromNode: "a", ToNode: "b"},
			problem: "distance_km must be > 0",
		},
		{
			name: "terrain factor too high",
			edge: Edge{FromNode: "a", ToNode: "b", DistanceKm: 5,
				Properties: EdgeProperties{TerrainFactor: 3.5}},
			problem: "terrain_factor must be in (0, 3.0]",
		},
		{
			name: "unknown max vehicle class",
			edge: Edge{FromNode: "a", ToNode: "b", DistanceKm: 5,
				Properties: EdgeProperties{MaxVehicleClass: "superheavy"}},
			problem: `unknown max_vehicle_class "superheavy"`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var problems []string
			tc.edge.validate("edges[0]", &problems)
			if len(problems) == 0 {
				t.Fatal("validate accepted an invalid edge")
			}
			joined := strings.Join(problems, "; ")
			if !strings.Contains(joined, tc.problem) {
				t.Fatalf("problems %q do not mention %q", joined, tc.problem)
			}
		})
	}
}

func TestNodeValidation(t *testing.T) {
	var problems []string
	n := Node{Type: "volcano"}
	n.validate("nodes[0]", &problems)

	joined := strings.Join(problems, "; ")
	for _, want := range []string{
		"id must not be empty",
		"name must not be empty",
		`unknown node type "volcano"`,
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("problems %q missing %q", joined, want)
		}
	}
}

func TestCoordinatesDistance(t *testing.T) {
	a := Coordinates{X: 0, Y: 0}
	b := Coordinates{X: 3, Y: 4}
	if d := a.DistanceTo(b); d != 5 {
		t.Fatalf("DistanceTo = %v, want 5", d)
	}
	if d := a.DistanceTo(a); d != 0 {
		t.Fatalf("DistanceTo(self) = %v, want 0", d)
	}
	if d := b.DistanceTo(a); math.Abs(d-5) > 1e-12 {
		t.Fatalf("DistanceTo is not symmetric: %v", d)
	}
}

func TestVehicleClassOrdinal(t *testing.T) {
	if ClassLight.Ordinal() != 0 || ClassMedium.Ordinal() != 1 || ClassHeavy.Ordinal() != 2 {
		t.Fatal("class ordinals out of order")
	}
	if VehicleClass("unknown").Ordinal() != 0 {
		t.Fatal("unknown class should compare as light")
	}
	if ClassHeavy.Ordinal() <= ClassMedium.Ordinal() {
		t.Fatal("heavy must outrank medium")
	}
}
