// Package topology implements the Router's topology graph: discovered
// nodes and edges, drop-weight accounting, and crashed-node exclusion for
// shortest-weight path computation.
//
// Per the teacher's design-notes convention (core/dedupe, core/multipart:
// state keyed by plain identifiers rather than pointers, to sidestep
// ownership cycles), vertices and edges are both keyed by core.NodeId,
// never by node references.
package topology

import (
	"container/heap"
	"errors"

	"github.com/overlaynet/endpoint/core"
)

// ErrUnreachable is returned by ShortestPath when no path exists to the
// destination under the current exclusion rules.
var ErrUnreachable = errors.New("destination unreachable")

// baseEdgeCost is the fixed per-hop cost added to a drop-weight-biased
// edge before path weights are compared.
const baseEdgeCost = 1.0

type vertex struct {
	kind    core.NodeKind
	crashed bool
}

type edgeKey struct {
	a, b core.NodeId // always stored with a < b
}

func newEdgeKey(a, b core.NodeId) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

// Graph is an undirected topology graph of discovered overlay nodes.
type Graph struct {
	vertices map[core.NodeId]*vertex
	edges    map[edgeKey]float64 // drop_weight per edge
	adj      map[core.NodeId]map[core.NodeId]struct{}
}

// New creates an empty topology graph.
func New() *Graph {
	return &Graph{
		vertices: make(map[core.NodeId]*vertex),
		edges:    make(map[edgeKey]float64),
		adj:      make(map[core.NodeId]map[core.NodeId]struct{}),
	}
}

// AddNode registers a vertex if not already known, updating its kind.
// Re-adding a known node with a different kind updates the recorded kind
// (used when a later flood response reports the node more precisely).
func (g *Graph) AddNode(id core.NodeId, kind core.NodeKind) {
	if v, ok := g.vertices[id]; ok {
		v.kind = kind
		return
	}
	g.vertices[id] = &vertex{kind: kind}
	g.adj[id] = make(map[core.NodeId]struct{})
}

// Kind returns the recorded kind of a node, if known.
func (g *Graph) Kind(id core.NodeId) (core.NodeKind, bool) {
	v, ok := g.vertices[id]
	if !ok {
		return 0, false
	}
	return v.kind, true
}

// AddEdge records a discovered edge between a and b, registering both
// endpoints if new. A new edge starts with zero drop_weight; re-adding an
// existing edge is a no-op on its weight.
func (g *Graph) AddEdge(a core.NodeId, aKind core.NodeKind, b core.NodeId, bKind core.NodeKind) {
	g.AddNode(a, aKind)
	g.AddNode(b, bKind)
	key := newEdgeKey(a, b)
	if _, ok := g.edges[key]; !ok {
		g.edges[key] = 0
	}
	g.adj[a][b] = struct{}{}
	g.adj[b][a] = struct{}{}
}

// MarkCrashed marks id as crashed; subsequent ShortestPath calls exclude
// it from consideration entirely (including as source or destination).
func (g *Graph) MarkCrashed(id core.NodeId) {
	if v, ok := g.vertices[id]; ok {
		v.crashed = true
	}
}

// IsCrashed reports whether id is marked crashed.
func (g *Graph) IsCrashed(id core.NodeId) bool {
	v, ok := g.vertices[id]
	return ok && v.crashed
}

// BumpDropWeight increments the drop_weight of every edge incident to
// nackSrc, biasing future path computations away from routing through or
// adjacent to that neighbour.
func (g *Graph) BumpDropWeight(nackSrc core.NodeId) {
	for peer := range g.adj[nackSrc] {
		key := newEdgeKey(nackSrc, peer)
		g.edges[key]++
	}
}

// Clear removes every vertex and edge, as performed by reinit.
func (g *Graph) Clear() {
	g.vertices = make(map[core.NodeId]*vertex)
	g.edges = make(map[edgeKey]float64)
	g.adj = make(map[core.NodeId]map[core.NodeId]struct{})
}

// Vertices returns a snapshot of every known node id, sorted ascending,
// for deterministic iteration (log dumps, tests).
func (g *Graph) Vertices() []core.NodeId {
	ids := make([]core.NodeId, 0, len(g.vertices))
	for id := range g.vertices {
		ids = append(ids, id)
	}
	sortNodeIds(ids)
	return ids
}

// Edge is one discovered topology edge and its accumulated drop_weight,
// as returned by Edges.
type Edge struct {
	A, B       core.NodeId
	DropWeight float64
}

// Edges returns a snapshot of every known edge with its current
// drop_weight, sorted ascending by endpoint ids for deterministic
// iteration (log dumps, tests).
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, 0, len(g.edges))
	for key, weight := range g.edges {
		edges = append(edges, Edge{A: key.a, B: key.b, DropWeight: weight})
	}
	for i := 1; i < len(edges); i++ {
		for j := i; j > 0 && lessEdge(edges[j], edges[j-1]); j-- {
			edges[j-1], edges[j] = edges[j], edges[j-1]
		}
	}
	return edges
}

func lessEdge(a, b Edge) bool {
	if a.A != b.A {
		return a.A < b.A
	}
	return a.B < b.B
}

func sortNodeIds(ids []core.NodeId) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}

// pqItem is one candidate in the shortest-path priority queue.
type pqItem struct {
	id   core.NodeId
	cost float64
}

type priorityQueue []pqItem

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].cost != pq[j].cost {
		return pq[i].cost < pq[j].cost
	}
	// Deterministic tie-break: lower node id wins.
	return pq[i].id < pq[j].id
}
func (pq priorityQueue) Swap(i, j int)      { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x any)        { *pq = append(*pq, x.(pqItem)) }
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// ShortestPath computes a minimum-weight path from self to dest where
// edge weight is baseEdgeCost plus the edge's accumulated drop_weight,
// excluding crashed vertices and requiring every intermediate hop (every
// vertex other than self and dest) to be a Drone. Ties are broken toward
// the lower node id at each relaxation step, making the result
// deterministic. Returns ErrUnreachable if no such path exists.
func (g *Graph) ShortestPath(self, dest core.NodeId) ([]core.NodeId, error) {
	if g.IsCrashed(self) || g.IsCrashed(dest) {
		return nil, ErrUnreachable
	}
	if self == dest {
		return []core.NodeId{self}, nil
	}
	if _, ok := g.vertices[self]; !ok {
		return nil, ErrUnreachable
	}
	if _, ok := g.vertices[dest]; !ok {
		return nil, ErrUnreachable
	}

	dist := map[core.NodeId]float64{self: 0}
	prev := map[core.NodeId]core.NodeId{}
	visited := map[core.NodeId]bool{}

	pq := &priorityQueue{{id: self, cost: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(pqItem)
		if visited[cur.id] {
			continue
		}
		visited[cur.id] = true

		if cur.id == dest {
			break
		}

		for peer := range g.adj[cur.id] {
			if visited[peer] || g.IsCrashed(peer) {
				continue
			}
			// Only self and dest may be non-Drone; every other vertex
			// considered as a hop must be a Drone.
			if peer != dest {
				if kind, ok := g.Kind(peer); !ok || kind != core.Drone {
					continue
				}
			}
			weight := baseEdgeCost + g.edges[newEdgeKey(cur.id, peer)]
			next := cur.cost + weight
			if existing, ok := dist[peer]; !ok || next < existing {
				dist[peer] = next
				prev[peer] = cur.id
				heap.Push(pq, pqItem{id: peer, cost: next})
			}
		}
	}

	if !visited[dest] {
		return nil, ErrUnreachable
	}

	path := []core.NodeId{dest}
	for cur := dest; cur != self; {
		p, ok := prev[cur]
		if !ok {
			return nil, ErrUnreachable
		}
		path = append(path, p)
		cur = p
	}
	// reverse into self->dest order
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}
