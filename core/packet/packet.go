// Package packet defines the overlay's wire unit: a tagged-union Packet
// carrying a source-routing header plus one of five payload kinds.
//
// This corresponds to the teacher's core/codec.Packet, adapted from a
// bit-packed radio frame to the simpler flat tagged union this overlay's
// in-process channels carry. Serialization (WriteTo/ReadFrom) exists for
// logging and tracing; the dispatch path never needs it since channels
// carry *Packet values directly.
package packet

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/overlaynet/endpoint/core"
)

// Kind identifies which payload a Packet carries.
type Kind uint8

const (
	KindMsgFragment Kind = iota
	KindAck
	KindNack
	KindFloodRequest
	KindFloodResponse
)

// String renders the packet kind for logging.
func (k Kind) String() string {
	switch k {
	case KindMsgFragment:
		return "MsgFragment"
	case KindAck:
		return "Ack"
	case KindNack:
		return "Nack"
	case KindFloodRequest:
		return "FloodRequest"
	case KindFloodResponse:
		return "FloodResponse"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// NackKind classifies why a fragment was negatively acknowledged.
type NackKind uint8

const (
	// NackDropped means an intermediate drone discarded the packet.
	NackDropped NackKind = iota
	// NackErrorInRouting means the named node has crashed.
	NackErrorInRouting
	// NackUnexpectedRecipient means the packet reached a node that was
	// not the hop its routing header designated.
	NackUnexpectedRecipient
	// NackDestinationIsDrone means the final hop resolved to a drone,
	// which can never be a message's true destination.
	NackDestinationIsDrone
)

func (k NackKind) String() string {
	switch k {
	case NackDropped:
		return "Dropped"
	case NackErrorInRouting:
		return "ErrorInRouting"
	case NackUnexpectedRecipient:
		return "UnexpectedRecipient"
	case NackDestinationIsDrone:
		return "DestinationIsDrone"
	default:
		return fmt.Sprintf("NackKind(%d)", uint8(k))
	}
}

// Fragment is one slice of a reassembled application message.
type Fragment struct {
	FragmentIndex   uint64
	TotalFragments  uint64
	Payload         []byte
}

// Clone returns a deep copy of the fragment.
func (f *Fragment) Clone() *Fragment {
	if f == nil {
		return nil
	}
	clone := *f
	if len(f.Payload) > 0 {
		clone.Payload = make([]byte, len(f.Payload))
		copy(clone.Payload, f.Payload)
	}
	return &clone
}

// Nack carries the reason a fragment was not delivered and, where
// meaningful, the node id the reason refers to.
type Nack struct {
	FragmentIndex uint64
	NackKind      NackKind
	NodeID        core.NodeId // meaningful for ErrorInRouting and UnexpectedRecipient
}

// PathEntry is one hop of a flood's path trace: the node that forwarded
// or originated the flood, and its kind.
type PathEntry struct {
	ID   core.NodeId
	Kind core.NodeKind
}

// FloodRequest is a discovery broadcast. Path traces grow as drones and
// servers append themselves while forwarding or responding to it.
type FloodRequest struct {
	FloodID     uint64
	InitiatorID core.NodeId
	PathTrace   []PathEntry
}

// FloodResponse carries the accumulated path trace back toward the flood's
// initiator, letting it rebuild its topology view.
type FloodResponse struct {
	FloodID   uint64
	PathTrace []PathEntry
}

// RoutingHeader is a source-routed path: hops lists every node the packet
// will traverse, in order, and HopIndex points at the node currently
// responsible for processing it.
//
// Invariants: Hops[0] is the originator; Hops[len(Hops)-1] is the intended
// destination; Hops[HopIndex] is the current processor.
type RoutingHeader struct {
	Hops     []core.NodeId
	HopIndex int
}

// CurrentHop returns the node this header designates as the current
// processor.
func (h RoutingHeader) CurrentHop() (core.NodeId, bool) {
	if h.HopIndex < 0 || h.HopIndex >= len(h.Hops) {
		return 0, false
	}
	return h.Hops[h.HopIndex], true
}

// Origin returns the packet's originating node.
func (h RoutingHeader) Origin() (core.NodeId, bool) {
	if len(h.Hops) == 0 {
		return 0, false
	}
	return h.Hops[0], true
}

// Destination returns the packet's intended final hop.
func (h RoutingHeader) Destination() (core.NodeId, bool) {
	if len(h.Hops) == 0 {
		return 0, false
	}
	return h.Hops[len(h.Hops)-1], true
}

// Reversed returns the reversed header used to route acks, nacks, and
// flood responses back toward the originator: the hop sequence is
// reversed and HopIndex is set to 1 (the next hop after the new origin).
func (h RoutingHeader) Reversed() RoutingHeader {
	hops := make([]core.NodeId, len(h.Hops))
	for i, hop := range h.Hops {
		hops[len(hops)-1-i] = hop
	}
	return RoutingHeader{Hops: hops, HopIndex: 1}
}

// WithFirstHop builds a header over the given hop sequence with HopIndex
// set to 1, matching the convention used for freshly originated packets
// (flood responses, administrative replies) whose first hop is implicit.
func WithFirstHop(hops []core.NodeId) RoutingHeader {
	cp := make([]core.NodeId, len(hops))
	copy(cp, hops)
	return RoutingHeader{Hops: cp, HopIndex: 1}
}

// Clone returns a deep copy of the header.
func (h RoutingHeader) Clone() RoutingHeader {
	hops := make([]core.NodeId, len(h.Hops))
	copy(hops, h.Hops)
	return RoutingHeader{Hops: hops, HopIndex: h.HopIndex}
}

// CacheKey identifies one outbound fragment in the PacketCache.
type CacheKey struct {
	SessionID     uint64
	FragmentIndex uint64
}

// Packet is the overlay's single wire unit: a session id, a routing
// header, and exactly one of the five payload kinds named by Kind.
type Packet struct {
	SessionID     uint64
	RoutingHeader RoutingHeader
	Kind          Kind

	Fragment         *Fragment      // set iff Kind == KindMsgFragment
	AckFragmentIndex uint64         // set iff Kind == KindAck
	Nack             *Nack          // set iff Kind == KindNack
	FloodRequest     *FloodRequest  // set iff Kind == KindFloodRequest
	FloodResponse    *FloodResponse // set iff Kind == KindFloodResponse
}

// CacheKey returns the (session_id, fragment_index) key this packet would
// be cached or acked under. Only meaningful for MsgFragment/Ack/Nack.
func (p *Packet) CacheKey() (CacheKey, bool) {
	switch p.Kind {
	case KindMsgFragment:
		return CacheKey{p.SessionID, p.Fragment.FragmentIndex}, true
	case KindAck:
		return CacheKey{p.SessionID, p.AckFragmentIndex}, true
	case KindNack:
		return CacheKey{p.SessionID, p.Nack.FragmentIndex}, true
	default:
		return CacheKey{}, false
	}
}

// Clone returns a deep copy of the packet, safe to mutate independently
// of the original (used when rerouting a cached packet for resend).
func (p *Packet) Clone() *Packet {
	clone := &Packet{
		SessionID:        p.SessionID,
		RoutingHeader:    p.RoutingHeader.Clone(),
		Kind:             p.Kind,
		AckFragmentIndex: p.AckFragmentIndex,
	}
	clone.Fragment = p.Fragment.Clone()
	if p.Nack != nil {
		n := *p.Nack
		clone.Nack = &n
	}
	if p.FloodRequest != nil {
		fr := *p.FloodRequest
		fr.PathTrace = append([]PathEntry(nil), p.FloodRequest.PathTrace...)
		clone.FloodRequest = &fr
	}
	if p.FloodResponse != nil {
		fr := *p.FloodResponse
		fr.PathTrace = append([]PathEntry(nil), p.FloodResponse.PathTrace...)
		clone.FloodResponse = &fr
	}
	return clone
}

var (
	ErrPacketTooShort = errors.New("packet too short")
	ErrUnknownKind    = errors.New("unknown packet kind")
)

// WriteTo encodes the packet to raw bytes, for logging/tracing only — the
// in-process dispatch path always carries *Packet values directly.
func (p *Packet) WriteTo() []byte {
	buf := make([]byte, 0, 32+len(p.RoutingHeader.Hops))
	var tmp [8]byte

	binary.BigEndian.PutUint64(tmp[:], p.SessionID)
	buf = append(buf, tmp[:]...)

	buf = append(buf, byte(len(p.RoutingHeader.Hops)))
	for _, h := range p.RoutingHeader.Hops {
		buf = append(buf, byte(h))
	}
	buf = append(buf, byte(p.RoutingHeader.HopIndex))

	buf = append(buf, byte(p.Kind))

	switch p.Kind {
	case KindMsgFragment:
		binary.BigEndian.PutUint64(tmp[:], p.Fragment.FragmentIndex)
		buf = append(buf, tmp[:]...)
		binary.BigEndian.PutUint64(tmp[:], p.Fragment.TotalFragments)
		buf = append(buf, tmp[:]...)
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(p.Fragment.Payload)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, p.Fragment.Payload...)
	case KindAck:
		binary.BigEndian.PutUint64(tmp[:], p.AckFragmentIndex)
		buf = append(buf, tmp[:]...)
	case KindNack:
		binary.BigEndian.PutUint64(tmp[:], p.Nack.FragmentIndex)
		buf = append(buf, tmp[:]...)
		buf = append(buf, byte(p.Nack.NackKind), byte(p.Nack.NodeID))
	case KindFloodRequest:
		binary.BigEndian.PutUint64(tmp[:], p.FloodRequest.FloodID)
		buf = append(buf, tmp[:]...)
		buf = append(buf, byte(p.FloodRequest.InitiatorID), byte(len(p.FloodRequest.PathTrace)))
		for _, e := range p.FloodRequest.PathTrace {
			buf = append(buf, byte(e.ID), byte(e.Kind))
		}
	case KindFloodResponse:
		binary.BigEndian.PutUint64(tmp[:], p.FloodResponse.FloodID)
		buf = append(buf, tmp[:]...)
		buf = append(buf, byte(len(p.FloodResponse.PathTrace)))
		for _, e := range p.FloodResponse.PathTrace {
			buf = append(buf, byte(e.ID), byte(e.Kind))
		}
	}
	return buf
}

// ReadFrom decodes a packet previously produced by WriteTo.
func ReadFrom(data []byte) (*Packet, error) {
	if len(data) < 10 {
		return nil, ErrPacketTooShort
	}
	i := 0
	p := &Packet{}
	p.SessionID = binary.BigEndian.Uint64(data[i:])
	i += 8

	hopCount := int(data[i])
	i++
	if len(data) < i+hopCount+1 {
		return nil, ErrPacketTooShort
	}
	var hops []core.NodeId
	if hopCount > 0 {
		hops = make([]core.NodeId, hopCount)
	}
	for j := 0; j < hopCount; j++ {
		hops[j] = core.NodeId(data[i+j])
	}
	i += hopCount
	hopIndex := int(data[i])
	i++
	p.RoutingHeader = RoutingHeader{Hops: hops, HopIndex: hopIndex}

	if len(data) < i+1 {
		return nil, ErrPacketTooShort
	}
	p.Kind = Kind(data[i])
	i++

	switch p.Kind {
	case KindMsgFragment:
		if len(data) < i+20 {
			return nil, ErrPacketTooShort
		}
		idx := binary.BigEndian.Uint64(data[i:])
		i += 8
		total := binary.BigEndian.Uint64(data[i:])
		i += 8
		plen := int(binary.BigEndian.Uint32(data[i:]))
		i += 4
		if len(data) < i+plen {
			return nil, ErrPacketTooShort
		}
		payload := make([]byte, plen)
		copy(payload, data[i:i+plen])
		p.Fragment = &Fragment{FragmentIndex: idx, TotalFragments: total, Payload: payload}
	case KindAck:
		if len(data) < i+8 {
			return nil, ErrPacketTooShort
		}
		p.AckFragmentIndex = binary.BigEndian.Uint64(data[i:])
	case KindNack:
		if len(data) < i+10 {
			return nil, ErrPacketTooShort
		}
		idx := binary.BigEndian.Uint64(data[i:])
		i += 8
		p.Nack = &Nack{FragmentIndex: idx, NackKind: NackKind(data[i]), NodeID: core.NodeId(data[i+1])}
	case KindFloodRequest:
		if len(data) < i+10 {
			return nil, ErrPacketTooShort
		}
		floodID := binary.BigEndian.Uint64(data[i:])
		i += 8
		initiator := core.NodeId(data[i])
		i++
		n := int(data[i])
		i++
		if len(data) < i+2*n {
			return nil, ErrPacketTooShort
		}
		trace := make([]PathEntry, n)
		for j := 0; j < n; j++ {
			trace[j] = PathEntry{ID: core.NodeId(data[i]), Kind: core.NodeKind(data[i+1])}
			i += 2
		}
		p.FloodRequest = &FloodRequest{FloodID: floodID, InitiatorID: initiator, PathTrace: trace}
	case KindFloodResponse:
		if len(data) < i+9 {
			return nil, ErrPacketTooShort
		}
		floodID := binary.BigEndian.Uint64(data[i:])
		i += 8
		n := int(data[i])
		i++
		if len(data) < i+2*n {
			return nil, ErrPacketTooShort
		}
		trace := make([]PathEntry, n)
		for j := 0; j < n; j++ {
			trace[j] = PathEntry{ID: core.NodeId(data[i]), Kind: core.NodeKind(data[i+1])}
			i += 2
		}
		p.FloodResponse = &FloodResponse{FloodID: floodID, PathTrace: trace}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, p.Kind)
	}
	return p, nil
}
