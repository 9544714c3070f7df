package endpoint

import (
	"github.com/overlaynet/endpoint/core"
	"github.com/overlaynet/endpoint/core/appmsg"
	"github.com/overlaynet/endpoint/core/packet"
)

func isAdministrative(k packet.Kind) bool {
	switch k {
	case packet.KindAck, packet.KindNack, packet.KindFloodResponse:
		return true
	default:
		return false
	}
}

// emit is the dispatcher's shared send primitive: it resolves the
// packet's current hop to a neighbour channel and sends on it. A
// self-destined administrative packet (no further hop to reach) is
// shortcut straight to the controller instead of attempted on a channel
// that does not exist.
func (e *Endpoint) emit(pkt *packet.Packet) {
	next, ok := pkt.RoutingHeader.CurrentHop()
	if !ok {
		e.emitEvent(Event{Kind: SendError, Packet: pkt})
		return
	}
	if next == e.cfg.SelfID && isAdministrative(pkt.Kind) {
		e.emitEvent(Event{Kind: ControllerShortcut, Packet: pkt})
		return
	}
	e.sendToNeighbour(next, pkt)
}

// sendToNeighbour sends pkt directly on id's registered channel, bypassing
// routing-header resolution — used for flood requests, which are paired
// with a neighbour sender rather than routed.
func (e *Endpoint) sendToNeighbour(id core.NodeId, pkt *packet.Packet) {
	e.mu.RLock()
	ch, ok := e.senders[id]
	e.mu.RUnlock()
	if !ok {
		e.emitEvent(Event{Kind: SendError, Packet: pkt, NodeID: id})
		return
	}
	select {
	case ch <- pkt:
	default:
		e.emitEvent(Event{Kind: SendError, Packet: pkt, NodeID: id})
	}
}

// reflood emits one FloodRequest, sharing a fresh flood id, to every
// known neighbour. Every trigger path (startup, control-plane reinit,
// a threshold-breaching NACK) requires the flood to happen
// unconditionally in the same step, so this is never rate-limited.
func (e *Endpoint) reflood() {
	if e.cfg.Metrics != nil {
		e.cfg.Metrics.RecordReflood()
	}

	ids := e.router.Neighbours()
	reqs := e.router.FloodRequests(len(ids))
	for i, id := range ids {
		pkt := &packet.Packet{
			RoutingHeader: packet.WithFirstHop([]core.NodeId{e.cfg.SelfID, id}),
			Kind:          packet.KindFloodRequest,
			FloodRequest:  reqs[i],
		}
		e.sendToNeighbour(id, pkt)
	}
}

// Reply is the ApplicationLayer's shared outbound reply procedure:
// resolve a route to dest, fragment the server message, insert every
// fragment into the cache before emission, then emit each fragment.
func (e *Endpoint) Reply(dest core.NodeId, sm appmsg.ServerMessage) {
	hdr, err := e.router.RoutingHeaderTo(dest)
	if err != nil {
		e.log.Warn("dropping reply to unreachable destination", "dest", dest, "kind", sm.Kind, "error", err)
		e.emitEvent(Event{Kind: UnreachableNode, NodeID: dest})
		return
	}

	sessionID := e.factory.NextSessionID()
	env := appmsg.ApplicationMessage{
		SessionID:     sessionID,
		SourceID:      e.cfg.SelfID,
		DestinationID: dest,
		ContentKind:   appmsg.FromServer,
		Server:        sm,
	}
	payload, err := appmsg.Encode(env)
	if err != nil {
		e.log.Error("failed to encode reply", "dest", dest, "error", err)
		return
	}

	packets := e.factory.FragmentWithSession(payload, hdr, sessionID)
	for _, pkt := range packets {
		e.cache.Insert(pkt)
	}
	for _, pkt := range packets {
		e.emit(pkt)
	}
	e.log.Info("message sent", "destination", dest, "kind", sm.Kind)
}
