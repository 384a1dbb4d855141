package core

import (
	"container/heap"
	"math"

	"github.com/fieldops/logistics-simulator/model"
)

// Graph is the routing view of a scenario's network: an undirected graph
// weighted by effective distance (edge distance × terrain factor). The
// graph is immutable for the duration of a run, so shortest-path results
// are cached per source node.
type Graph struct {
	order     []string // node IDs in scenario order; fixes tie-breaks
	nodes     map[string]*model.Node
	adjacency map[string][]arc
	distCache map[string]map[string]float64
}

type arc struct {
	to string
	km float64 // effective distance
}

// BuildGraph constructs the routing graph from a validated scenario.
// Edges flagged non-operational are excluded from routing.
func BuildGraph(s *model.Scenario) *Graph {
	g := &Graph{
		nodes:     make(map[string]*model.Node, len(s.Nodes)),
		adjacency: make(map[string][]arc, len(s.Nodes)),
		distCache: make(map[string]map[string]float64),
	}
	for i := range s.Nodes {
		n := &s.Nodes[i]
		g.order = append(g.order, n.ID)
		g.nodes[n.ID] = n
	}
	for i := range s.Edges {
		e := &s.Edges[i]
		if !e.Operational() {
			continue
		}
		km := e.EffectiveKm()
		g.adjacency[e.FromNode] = append(g.adjacency[e.FromNode], arc{to: e.ToNode, km: km})
		g.adjacency[e.ToNode] = append(g.adjacency[e.ToNode], arc{to: e.FromNode, km: km})
	}
	return g
}

// ShortestPathKm returns the effective-distance length of the shortest
// path between two nodes, or +Inf when no path exists.
func (g *Graph) ShortestPathKm(from, to string) float64 {
	if from == to {
		return 0
	}
	dists, ok := g.distCache[from]
	if !ok {
		dists = g.dijkstra(from)
		g.distCache[from] = dists
	}
	if d, ok := dists[to]; ok {
		return d
	}
	return math.Inf(1)
}

// TravelTimeMins converts the shortest-path distance between two nodes to
// minutes at the given speed. Same-node queries return 0; unreachable
// pairs return +Inf.
func (g *Graph) TravelTimeMins(from, to string, speedKmh float64) float64 {
	if from == to {
		return 0
	}
	km := g.ShortestPathKm(from, to)
	if math.IsInf(km, 1) {
		return math.Inf(1)
	}
	return km / speedKmh * 60
}

// NearestNodeOfType returns the reachable node of one of the requested
// types with the minimum shortest-path distance from the origin. Ties are
// broken by scenario declaration order (first found); this is deliberate
// and not randomized. The second return is false when no candidate is
// reachable.
func (g *Graph) NearestNodeOfType(from string, types ...model.NodeType) (string, bool) {
	want := make(map[model.NodeType]bool, len(types))
	for _, t := range types {
		want[t] = true
	}

	best := ""
	bestKm := math.Inf(1)
	for _, id := range g.order {
		if !want[g.nodes[id].Type] {
			continue
		}
		if d := g.ShortestPathKm(from, id); d < bestKm {
			bestKm = d
			best = id
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}

// Node returns the scenario node for an ID, or nil if unknown.
func (g *Graph) Node(id string) *model.Node { return g.nodes[id] }

// dijkstra computes shortest effective distances from a single source.
func (g *Graph) dijkstra(from string) map[string]float64 {
	dist := map[string]float64{from: 0}
	pq := pathHeap{{id: from, km: 0}}

	for len(pq) > 0 {
		cur := heap.Pop(&pq).(pathEntry)
		if cur.km > dist[cur.id] {
			continue // stale entry
		}
		for _, a := range g.adjacency[cur.id] {
			next := cur.km + a.km
			if d, seen := dist[a.to]; !seen || next < d {
				dist[a.to] = next
				heap.Push(&pq, pathEntry{id: a.to, km: next})
			}
		}
	}
	return dist
}

type pathEntry struct {
	id string
	km float64
}

type pathHeap []pathEntry

func (h pathHeap) Len() int            { return len(h) }
func (h pathHeap) Less(i, j int) bool  { return h[i].km < h[j].km }
func (h pathHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *pathHeap) Push(x any)         { *h = append(*h, x.(pathEntry)) }
func (h *pathHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}
