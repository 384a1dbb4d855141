package core

import (
	"math"
	"testing"

	"github.com/fieldops/logistics-simulator/model"
)

func boolPtr(v bool) *bool { return &v }

func routingScenario() *model.Scenario {
	return &model.Scenario{
		Nodes: []model.Node{
			{ID: "cp1", Type: model.NodeCombat},
			{ID: "med1", Type: model.NodeMedicalRole1},
			{ID: "med2", Type: model.NodeMedicalRole2},
			{ID: "wksp", Type: model.NodeRepairWorkshop},
			{ID: "island", Type: model.NodeCombat},
		},
		Edges: []model.Edge{
			{FromNode: "cp1", ToNode: "med1", DistanceKm: 10},
			{FromNode: "cp1", ToNode: "med2", DistanceKm: 8,
				Properties: model.EdgeProperties{TerrainFactor: 2.0}},
			{FromNode: "med1", ToNode: "wksp", DistanceKm: 5},
			{FromNode: "med2", ToNode: "wksp", DistanceKm: 12,
				Properties: model.EdgeProperties{IsOperational: boolPtr(false)}},
		},
	}
}

func TestShortestPathUsesEffectiveDistance(t *testing.T) {
	g := BuildGraph(routingScenario())

	// Direct cp1->med2 costs 8*2.0=16; no cheaper route exists.
	if got := g.ShortestPathKm("cp1", "med2"); got != 16 {
		t.Fatalf("ShortestPathKm(cp1, med2) = %v, want 16", got)
	}
	// cp1->med1->wksp = 10+5 = 15.
	if got := g.ShortestPathKm("cp1", "wksp"); got != 15 {
		t.Fatalf("ShortestPathKm(cp1, wksp) = %v, want 15", got)
	}
}

func TestShortestPathSameNodeIsZero(t *testing.T) {
	g := BuildGraph(routingScenario())
	if got := g.ShortestPathKm("cp1", "cp1"); got != 0 {
		t.Fatalf("ShortestPathKm(cp1, cp1) = %v, want 0", got)
	}
}

func TestShortestPathUnreachableIsInfinite(t *testing.T) {
	g := BuildGraph(routingScenario())
	if got := g.ShortestPathKm("cp1", "island"); !math.IsInf(got, 1) {
		t.Fatalf("ShortestPathKm to isolated node = %v, want +Inf", got)
	}
}

func TestShortestPathSymmetric(t *testing.T) {
	g := BuildGraph(routingScenario())
	fwd := g.ShortestPathKm("cp1", "wksp")
	rev := g.ShortestPathKm("wksp", "cp1")
	if fwd != rev {
		t.Fatalf("asymmetric distances: %v vs %v", fwd, rev)
	}
}

func TestNonOperationalEdgeExcluded(t *testing.T) {
	g := BuildGraph(routingScenario())
	// med2->wksp is closed; the detour med2->cp1->med1->wksp costs
	// 16 + 10 + 5 = 31.
	if got := g.ShortestPathKm("med2", "wksp"); got != 31 {
		t.Fatalf("ShortestPathKm(med2, wksp) = %v, want 31 (closed edge must not be used)", got)
	}
}

func TestTravelTimeMins(t *testing.T) {
	g := BuildGraph(routingScenario())

	// 15 km at 60 km/h = 15 minutes.
	if got := g.TravelTimeMins("cp1", "wksp", 60); got != 15 {
		t.Fatalf("TravelTimeMins(cp1, wksp, 60) = %v, want 15", got)
	}
	if got := g.TravelTimeMins("cp1", "cp1", 60); got != 0 {
		t.Fatalf("TravelTimeMins same node = %v, want 0", got)
	}
	if got := g.TravelTimeMins("cp1", "island", 60); !math.IsInf(got, 1) {
		t.Fatalf("TravelTimeMins unreachable = %v, want +Inf", got)
	}
}

func TestNearestNodeOfTypePicksMinimumDistance(t *testing.T) {
	g := BuildGraph(routingScenario())

	// From cp1: med1 at 10, med2 at 16.
	id, ok := g.NearestNodeOfType("cp1", model.NodeMedicalRole1, model.NodeMedicalRole2)
	if !ok || id != "med1" {
		t.Fatalf("NearestNodeOfType = %q, %v; want med1, true", id, ok)
	}
}

func TestNearestNodeOfTypeTieBreaksByDeclarationOrder(t *testing.T) {
	s := &model.Scenario{
		Nodes: []model.Node{
			{ID: "origin", Type: model.NodeCombat},
			{ID: "first", Type: model.NodeAmmoPoint},
			{ID: "second", Type: model.NodeAmmoPoint},
		},
		Edges: []model.Edge{
			{FromNode: "origin", ToNode: "first", DistanceKm: 10},
			{FromNode: "origin", ToNode: "second", DistanceKm: 10},
		},
	}
	g := BuildGraph(s)

	id, ok := g.NearestNodeOfType("origin", model.NodeAmmoPoint)
	if !ok || id != "first" {
		t.Fatalf("tie broke to %q, want first-declared node", id)
	}
}

func TestNearestNodeOfTypeUnreachable(t *testing.T) {
	g := BuildGraph(routingScenario())

	// No fuel points exist anywhere.
	if id, ok := g.NearestNodeOfType("cp1", model.NodeFuelPoint); ok {
		t.Fatalf("found %q, want no match", id)
	}
	// A facility type that exists but is unreachable from an isolated node.
	if id, ok := g.NearestNodeOfType("island", model.NodeRepairWorkshop); ok {
		t.Fatalf("found %q from isolated node, want no match", id)
	}
}
