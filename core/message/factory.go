// Package message implements the MessageFactory: it fragments a
// serialized application message into MsgFragment packets and
// reassembles inbound fragments back into complete messages.
//
// The reassembly side is grounded on the teacher's core/multipart
// Reassembler (a pending-state map keyed by a composite identity,
// appended to as fragments arrive, assembled and removed once complete)
// adapted from MeshCore's fragment-count-remaining scheme to the spec's
// session/origin-keyed, explicit-total-fragments scheme.
package message

import (
	"sync"

	"github.com/overlaynet/endpoint/core"
	"github.com/overlaynet/endpoint/core/packet"
	"github.com/overlaynet/endpoint/core/session"
)

// MaxFragmentPayload bounds how many serialized bytes one MsgFragment
// packet carries, matching the teacher's MaxPacketPayload convention of
// a small, fixed per-packet ceiling.
const MaxFragmentPayload = 128

// pendingKey identifies one in-progress reassembly.
type pendingKey struct {
	sessionID uint64
	origin    core.NodeId
}

type pendingMessage struct {
	fragments map[uint64][]byte
	total     uint64
}

// Factory fragments outbound application messages and reassembles
// inbound fragments.
type Factory struct {
	sessions *session.Generator

	mu      sync.Mutex
	pending map[pendingKey]*pendingMessage
}

// New creates a Factory. seed need only differ across endpoints sharing a
// process; it does not need to be secret.
func New(seed uint64) *Factory {
	return &Factory{
		sessions: session.NewGenerator(seed),
		pending:  make(map[pendingKey]*pendingMessage),
	}
}

// Fragment splits payload into an ordered sequence of MsgFragment packets
// addressed via header, all sharing one freshly generated session id.
func (f *Factory) Fragment(payload []byte, header packet.RoutingHeader) []*packet.Packet {
	return f.FragmentWithSession(payload, header, f.NextSessionID())
}

// NextSessionID draws a fresh session id, for callers that must embed the
// id in the message payload before it is fragmented.
func (f *Factory) NextSessionID() uint64 {
	return f.sessions.Next()
}

// FragmentWithSession is Fragment with an explicit, caller-chosen session
// id rather than a freshly generated one — used when the session id must
// already be present in the serialized payload (the ApplicationMessage
// envelope carries it) before fragmentation happens.
func (f *Factory) FragmentWithSession(payload []byte, header packet.RoutingHeader, sessionID uint64) []*packet.Packet {
	total := uint64(1)
	if len(payload) > 0 {
		total = uint64((len(payload) + MaxFragmentPayload - 1) / MaxFragmentPayload)
	}

	packets := make([]*packet.Packet, 0, total)
	for i := uint64(0); i < total; i++ {
		start := i * MaxFragmentPayload
		end := start + MaxFragmentPayload
		if end > uint64(len(payload)) {
			end = uint64(len(payload))
		}
		chunk := make([]byte, end-start)
		copy(chunk, payload[start:end])

		packets = append(packets, &packet.Packet{
			SessionID:     sessionID,
			RoutingHeader: header.Clone(),
			Kind:          packet.KindMsgFragment,
			Fragment: &packet.Fragment{
				FragmentIndex:  i,
				TotalFragments: total,
				Payload:        chunk,
			},
		})
	}
	return packets
}

// ReceiveFragment inserts frag into the pending reassembly for
// (sessionID, origin). Returns the assembled payload once every fragment
// has arrived, or nil if more are expected. Duplicate fragments overwrite
// idempotently and never duplicate-count toward completion.
func (f *Factory) ReceiveFragment(frag *packet.Fragment, sessionID uint64, origin core.NodeId) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := pendingKey{sessionID: sessionID, origin: origin}
	state, ok := f.pending[key]
	if !ok {
		state = &pendingMessage{fragments: make(map[uint64][]byte), total: frag.TotalFragments}
		f.pending[key] = state
	}
	state.fragments[frag.FragmentIndex] = frag.Payload

	if uint64(len(state.fragments)) < state.total {
		return nil
	}

	assembled := make([]byte, 0)
	for i := uint64(0); i < state.total; i++ {
		assembled = append(assembled, state.fragments[i]...)
	}
	delete(f.pending, key)
	return assembled
}

// PendingCount returns the number of in-progress reassemblies, for tests
// and metrics.
func (f *Factory) PendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}
