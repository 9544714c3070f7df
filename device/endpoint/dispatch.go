package endpoint

import (
	"github.com/overlaynet/endpoint/core"
	"github.com/overlaynet/endpoint/core/appmsg"
	"github.com/overlaynet/endpoint/core/packet"
)

// handlePacket is the PacketDispatcher entry point: a state machine on
// p.Kind.
func (e *Endpoint) handlePacket(p *packet.Packet) {
	switch p.Kind {
	case packet.KindMsgFragment:
		e.handleMsgFragment(p)
	case packet.KindAck:
		e.handleAck(p)
	case packet.KindNack:
		e.handleNack(p)
	case packet.KindFloodRequest:
		e.handleFloodRequest(p)
	case packet.KindFloodResponse:
		e.handleFloodResponse(p)
	}
}

// checkRouting reports whether self is the hop this header currently
// designates.
func (e *Endpoint) checkRouting(h packet.RoutingHeader) bool {
	hop, ok := h.CurrentHop()
	return ok && hop == e.cfg.SelfID
}

func (e *Endpoint) handleMsgFragment(p *packet.Packet) {
	if !e.checkRouting(p.RoutingHeader) {
		e.sendNack(p, packet.NackUnexpectedRecipient)
		return
	}

	origin, _ := p.RoutingHeader.Origin()
	assembled := e.factory.ReceiveFragment(p.Fragment, p.SessionID, origin)

	deliver := func() {
		if assembled == nil {
			return
		}
		env, err := appmsg.Decode(assembled)
		if err != nil {
			e.log.Warn("discarding malformed reassembled message", "session", p.SessionID, "error", err)
			return
		}
		if env.ContentKind != appmsg.FromClient {
			e.log.Warn("discarding non-client envelope", "session", p.SessionID, "source", origin)
			return
		}
		e.app.Handle(e, env.SessionID, origin, env.Client)
	}

	if e.cfg.DeliverBeforeAck {
		deliver()
		e.sendAck(p)
	} else {
		e.sendAck(p)
		deliver()
	}
}

func (e *Endpoint) sendAck(p *packet.Packet) {
	reply := &packet.Packet{
		SessionID:        p.SessionID,
		RoutingHeader:    p.RoutingHeader.Reversed(),
		Kind:             packet.KindAck,
		AckFragmentIndex: p.Fragment.FragmentIndex,
	}
	e.emit(reply)
}

func (e *Endpoint) sendNack(p *packet.Packet, kind packet.NackKind) {
	reply := &packet.Packet{
		SessionID:     p.SessionID,
		RoutingHeader: p.RoutingHeader.Reversed(),
		Kind:          packet.KindNack,
		Nack: &packet.Nack{
			FragmentIndex: p.Fragment.FragmentIndex,
			NackKind:      kind,
			NodeID:        e.cfg.SelfID,
		},
	}
	e.emit(reply)
}

func (e *Endpoint) handleAck(p *packet.Packet) {
	key := packet.CacheKey{SessionID: p.SessionID, FragmentIndex: p.AckFragmentIndex}
	e.cache.Take(key)
}

func (e *Endpoint) handleNack(p *packet.Packet) {
	sourceID, ok := p.RoutingHeader.Origin()
	if !ok {
		return
	}
	e.onNack(p.SessionID, p.Nack, sourceID)
}

// handleFloodRequest builds a FloodResponse by appending (self, SelfKind)
// to the request's path trace and emitting along the reversed node
// sequence, appending the initiator if it isn't already last.
func (e *Endpoint) handleFloodRequest(p *packet.Packet) {
	req := p.FloodRequest

	trace := make([]packet.PathEntry, len(req.PathTrace)+1)
	copy(trace, req.PathTrace)
	trace[len(trace)-1] = packet.PathEntry{ID: e.cfg.SelfID, Kind: e.cfg.SelfKind}

	hops := make([]core.NodeId, len(trace))
	for i, entry := range trace {
		hops[len(hops)-1-i] = entry.ID
	}
	if len(hops) == 0 || hops[len(hops)-1] != req.InitiatorID {
		hops = append(hops, req.InitiatorID)
	}

	resp := &packet.Packet{
		SessionID:     p.SessionID,
		RoutingHeader: packet.WithFirstHop(hops),
		Kind:          packet.KindFloodResponse,
		FloodResponse: &packet.FloodResponse{FloodID: req.FloodID, PathTrace: trace},
	}
	e.emit(resp)
}

func (e *Endpoint) handleFloodResponse(p *packet.Packet) {
	e.router.HandleFloodResponse(p.FloodResponse)
}
