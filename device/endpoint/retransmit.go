package endpoint

import (
	"github.com/overlaynet/endpoint/core"
	"github.com/overlaynet/endpoint/core/packet"
)

// onNack is the RetransmissionEngine entry point: branches on the NACK's
// kind, then (except for DestinationIsDrone) resends the cached fragment.
func (e *Endpoint) onNack(sessionID uint64, nack *packet.Nack, sourceID core.NodeId) {
	switch nack.NackKind {
	case packet.NackErrorInRouting:
		e.router.DroneCrashed(nack.NodeID)
		e.resend(sessionID, nack.FragmentIndex)
	case packet.NackDestinationIsDrone:
		e.emitEvent(Event{Kind: DestinationIsDrone, NodeID: nack.NodeID})
	case packet.NackUnexpectedRecipient:
		e.router.DroppedFragment(nack.NodeID)
		e.resend(sessionID, nack.FragmentIndex)
	case packet.NackDropped:
		e.router.DroppedFragment(sourceID)
		e.resend(sessionID, nack.FragmentIndex)
	}
}

// resend looks up the cached fragment, recomputes a fresh route to its
// original destination, and re-emits it. Once the cumulative NACK count
// for this key exceeds the reflood threshold, a reflood is triggered
// before the resend, in the same step.
func (e *Endpoint) resend(sessionID, fragmentIndex uint64) {
	key := packet.CacheKey{SessionID: sessionID, FragmentIndex: fragmentIndex}
	cached, count, ok := e.cache.GetAndBump(key)
	if !ok {
		e.emitEvent(Event{Kind: ErrorPacketCache, SessionID: sessionID, FragmentIndex: fragmentIndex})
		return
	}

	if count > e.cfg.RefloodThreshold {
		e.reflood()
	}

	dest, _ := cached.RoutingHeader.Destination()
	hdr, err := e.router.RoutingHeaderTo(dest)
	if err != nil {
		e.log.Warn("route to destination unavailable on resend", "dest", dest, "error", err)
		e.emitEvent(Event{Kind: UnreachableNode, NodeID: dest})
		if e.cfg.ResendOnStaleRoute {
			e.emit(cached.Clone())
		}
	} else {
		fresh := cached.Clone()
		fresh.RoutingHeader = hdr
		e.emit(fresh)
	}
}
