package endpoint

import (
	"github.com/overlaynet/endpoint/core"
	"github.com/overlaynet/endpoint/core/packet"
)

// CommandKind enumerates the control-plane command set.
type CommandKind uint8

const (
	// InitFlooding clears the routing table and refloods every neighbour.
	InitFlooding CommandKind = iota
	// LogNetwork dumps the current topology to the structured logger.
	LogNetwork
	// AddSender registers a neighbour's outbound channel and refloods.
	AddSender
	// RemoveSender deregisters a neighbour's outbound channel and refloods.
	RemoveSender
)

func (k CommandKind) String() string {
	switch k {
	case InitFlooding:
		return "InitFlooding"
	case LogNetwork:
		return "LogNetwork"
	case AddSender:
		return "AddSender"
	case RemoveSender:
		return "RemoveSender"
	default:
		return "Unknown"
	}
}

// Command is the tagged union accepted on the control channel.
type Command struct {
	Kind          CommandKind
	NodeID        core.NodeId
	NeighbourKind core.NodeKind         // AddSender only
	Channel       chan<- *packet.Packet // AddSender only
}
