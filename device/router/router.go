// Package router maintains the topology graph and produces the routing
// decisions the rest of the endpoint needs: fresh flood requests, the
// source-routing header toward a destination, and per-neighbour drop
// accounting driven by NACKs.
//
// This corresponds to the teacher's device/router.Router: the same
// package-per-concern split (Config struct, New(cfg), slog.WithGroup
// logger, sync.RWMutex-guarded state), generalized from MeshCore's
// blind-flood-plus-dedupe forwarding onto the spec's weighted topology
// graph and explicit flood_id/path_trace protocol.
package router

import (
	"log/slog"
	"sync"

	"github.com/overlaynet/endpoint/core"
	"github.com/overlaynet/endpoint/core/packet"
	"github.com/overlaynet/endpoint/core/topology"
)

// Config configures a Router.
type Config struct {
	// SelfID is this endpoint's own node id.
	SelfID core.NodeId

	// SelfKind is this endpoint's own node kind, recorded in the graph so
	// other nodes' flood responses can route through it if it is a Drone.
	SelfKind core.NodeKind

	// Logger for routing events. Falls back to slog.Default() if nil.
	Logger *slog.Logger
}

// Router holds the topology graph, the flood id counter, and the set of
// directly reachable neighbours for one endpoint.
type Router struct {
	cfg Config
	log *slog.Logger

	graph *topology.Graph

	mu         sync.RWMutex
	neighbours map[core.NodeId]core.NodeKind
	floodID    uint64
}

// New creates a Router with the given configuration.
func New(cfg Config) *Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	g := topology.New()
	g.AddNode(cfg.SelfID, cfg.SelfKind)

	return &Router{
		cfg:        cfg,
		log:        logger.WithGroup("router"),
		graph:      g,
		neighbours: make(map[core.NodeId]core.NodeKind),
	}
}

// FloodRequests returns n FloodRequest packets sharing one freshly minted
// flood id, each with an empty path trace. The caller pairs each packet
// with one known neighbour sender; this is the reinit primitive.
func (r *Router) FloodRequests(n int) []*packet.FloodRequest {
	r.mu.Lock()
	r.floodID++
	id := r.floodID
	r.mu.Unlock()

	reqs := make([]*packet.FloodRequest, n)
	for i := range reqs {
		reqs[i] = &packet.FloodRequest{
			FloodID:     id,
			InitiatorID: r.cfg.SelfID,
			PathTrace:   nil,
		}
	}
	return reqs
}

// HandleFloodResponse walks resp's path trace as a polyline and records
// each consecutive edge, along with the kind of each endpoint. New edges
// start at zero drop weight.
func (r *Router) HandleFloodResponse(resp *packet.FloodResponse) {
	trace := resp.PathTrace
	for i := 0; i < len(trace); i++ {
		r.graph.AddNode(trace[i].ID, trace[i].Kind)
	}
	for i := 0; i+1 < len(trace); i++ {
		a, b := trace[i], trace[i+1]
		r.graph.AddEdge(a.ID, a.Kind, b.ID, b.Kind)
	}
}

// RoutingHeaderTo computes a shortest-weight path from self to dest,
// excluding crashed vertices and restricting intermediate hops to Drones.
// Returns topology.ErrUnreachable when no such path exists.
func (r *Router) RoutingHeaderTo(dest core.NodeId) (packet.RoutingHeader, error) {
	path, err := r.graph.ShortestPath(r.cfg.SelfID, dest)
	if err != nil {
		return packet.RoutingHeader{}, err
	}
	return packet.WithFirstHop(path), nil
}

// DroneCrashed marks id as crashed; subsequent routing excludes it.
func (r *Router) DroneCrashed(id core.NodeId) {
	r.graph.MarkCrashed(id)
	r.log.Info("marked node crashed", "node", id)
}

// DroppedFragment increments the drop weight on edges incident to
// nackSrc, biasing future routing away from it. Tie-breaks among equal-
// weight paths favor the lower node id.
func (r *Router) DroppedFragment(nackSrc core.NodeId) {
	r.graph.BumpDropWeight(nackSrc)
}

// AddNeighbour records id as a directly reachable neighbour, kept as a
// set separate from the topology graph: the graph is rebuilt purely from
// flood responses, and a reinit (which clears the graph) always follows
// an AddNeighbour at the call site, so an edge recorded here would be
// discarded immediately anyway.
func (r *Router) AddNeighbour(id core.NodeId, kind core.NodeKind) {
	r.mu.Lock()
	r.neighbours[id] = kind
	r.mu.Unlock()
}

// RemoveNeighbour drops id from the neighbour set. Pairs with a reflood
// at the call site.
func (r *Router) RemoveNeighbour(id core.NodeId) {
	r.mu.Lock()
	delete(r.neighbours, id)
	r.mu.Unlock()
}

// Neighbours returns the current neighbour set's node ids.
func (r *Router) Neighbours() []core.NodeId {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]core.NodeId, 0, len(r.neighbours))
	for id := range r.neighbours {
		ids = append(ids, id)
	}
	return ids
}

// NeighbourCount reports how many neighbours are currently known.
func (r *Router) NeighbourCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.neighbours)
}

// ClearTopology discards every discovered vertex and edge, re-registering
// only self. Used by ControlPlane's reinit before a reflood.
func (r *Router) ClearTopology() {
	r.graph.Clear()
	r.graph.AddNode(r.cfg.SelfID, r.cfg.SelfKind)
}

// LogTopology dumps the current topology to log: one line per known
// vertex, then one line per discovered edge with its accumulated
// drop_weight.
func (r *Router) LogTopology(log *slog.Logger) {
	for _, id := range r.graph.Vertices() {
		kind, _ := r.graph.Kind(id)
		log.Info("topology vertex", "node", id, "kind", kind, "crashed", r.graph.IsCrashed(id))
	}
	for _, e := range r.graph.Edges() {
		log.Info("topology edge", "a", e.A, "b", e.B, "drop_weight", e.DropWeight)
	}
}
