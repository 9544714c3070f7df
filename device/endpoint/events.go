package endpoint

import (
	"github.com/overlaynet/endpoint/core"
	"github.com/overlaynet/endpoint/core/packet"
)

// EventKind enumerates the outbound notifications an Endpoint raises for
// its controller.
type EventKind uint8

const (
	// SendError reports that Packet could not be handed to its next-hop
	// channel (missing sender or a full/unbuffered channel).
	SendError EventKind = iota
	// ControllerShortcut reports that an administrative Packet (Ack, Nack
	// or FloodResponse) is self-destined with no further channel to send
	// on, and must be consumed by the controller directly.
	ControllerShortcut
	// DestinationIsDrone reports a NackDestinationIsDrone notification;
	// never retried.
	DestinationIsDrone
	// UnreachableNode reports that NodeID could not be reached by the
	// Router at the time of an outbound send or resend.
	UnreachableNode
	// ErrorPacketCache reports a cache miss for (SessionID, FragmentIndex)
	// on NACK; the fragment is abandoned.
	ErrorPacketCache
)

func (k EventKind) String() string {
	switch k {
	case SendError:
		return "SendError"
	case ControllerShortcut:
		return "ControllerShortcut"
	case DestinationIsDrone:
		return "DestinationIsDrone"
	case UnreachableNode:
		return "UnreachableNode"
	case ErrorPacketCache:
		return "ErrorPacketCache"
	default:
		return "Unknown"
	}
}

// Event is the tagged union emitted on the controller-facing event
// channel. Only the fields relevant to Kind are populated.
type Event struct {
	Kind          EventKind
	Packet        *packet.Packet
	NodeID        core.NodeId
	SessionID     uint64
	FragmentIndex uint64
}
