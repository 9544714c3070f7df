package endpoint

import (
	"testing"

	"github.com/overlaynet/endpoint/core"
	"github.com/overlaynet/endpoint/core/packet"
)

func drainChannel(ch chan *packet.Packet) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func seedTwoRoutesTopology(t *testing.T, e *Endpoint) {
	t.Helper()
	e.handlePacket(&packet.Packet{
		Kind: packet.KindFloodResponse,
		FloodResponse: &packet.FloodResponse{PathTrace: []packet.PathEntry{
			{ID: 1, Kind: core.Client},
			{ID: 2, Kind: core.Drone},
			{ID: 3, Kind: core.Drone},
			{ID: 9, Kind: core.Server},
		}},
	})
	e.handlePacket(&packet.Packet{
		Kind: packet.KindFloodResponse,
		FloodResponse: &packet.FloodResponse{PathTrace: []packet.PathEntry{
			{ID: 1, Kind: core.Client},
			{ID: 4, Kind: core.Drone},
			{ID: 3, Kind: core.Drone},
			{ID: 9, Kind: core.Server},
		}},
	})
}

// TestNackDroppedReroutes mirrors scenario S3: a cached fragment is
// NACKed as Dropped by its first hop, the router penalizes that hop, and
// the resend takes the alternate route.
func TestNackDroppedReroutes(t *testing.T) {
	e, _ := newTestEndpoint(1, true, false)
	seedTwoRoutesTopology(t, e)
	ch4 := registerSender(e, 4, 1)

	cached := &packet.Packet{
		SessionID:     42,
		RoutingHeader: packet.WithFirstHop([]core.NodeId{1, 2, 3, 9}),
		Kind:          packet.KindMsgFragment,
		Fragment:      &packet.Fragment{FragmentIndex: 0, TotalFragments: 1},
	}
	e.cache.Insert(cached)

	e.handlePacket(&packet.Packet{
		SessionID:     42,
		RoutingHeader: packet.RoutingHeader{Hops: []core.NodeId{2, 1}, HopIndex: 1},
		Kind:          packet.KindNack,
		Nack:          &packet.Nack{FragmentIndex: 0, NackKind: packet.NackDropped, NodeID: 2},
	})

	if e.cache.Len() != 1 {
		t.Fatalf("cache.Len() = %d, want 1 (entry retained on resend)", e.cache.Len())
	}

	select {
	case pkt := <-ch4:
		want := []core.NodeId{1, 4, 3, 9}
		if len(pkt.RoutingHeader.Hops) != len(want) {
			t.Fatalf("rerouted Hops = %v, want %v", pkt.RoutingHeader.Hops, want)
		}
		for i, id := range want {
			if pkt.RoutingHeader.Hops[i] != id {
				t.Errorf("Hops[%d] = %d, want %d", i, pkt.RoutingHeader.Hops[i], id)
			}
		}
	default:
		t.Fatal("no rerouted resend was emitted")
	}
}

// TestRefloodThresholdTriggersFloodRequests mirrors scenario S4: once a
// cache key's nack_count exceeds the reflood threshold, the next NACK
// triggers flood requests to every neighbour before the resend.
func TestRefloodThresholdTriggersFloodRequests(t *testing.T) {
	e, _ := newTestEndpoint(1, true, false)
	e.cfg.RefloodThreshold = 2

	ch4 := make(chan *packet.Packet, 8)
	e.handleCommand(Command{Kind: AddSender, NodeID: 4, NeighbourKind: core.Drone, Channel: ch4})
	drainChannel(ch4) // discard the reflood AddSender itself triggers

	seedTwoRoutesTopology(t, e)

	cached := &packet.Packet{
		SessionID:     42,
		RoutingHeader: packet.WithFirstHop([]core.NodeId{1, 2, 3, 9}),
		Kind:          packet.KindMsgFragment,
		Fragment:      &packet.Fragment{FragmentIndex: 0, TotalFragments: 1},
	}
	e.cache.Insert(cached)

	nack := &packet.Packet{
		SessionID:     42,
		RoutingHeader: packet.RoutingHeader{Hops: []core.NodeId{2, 1}, HopIndex: 1},
		Kind:          packet.KindNack,
		Nack:          &packet.Nack{FragmentIndex: 0, NackKind: packet.NackDropped, NodeID: 2},
	}

	e.handlePacket(nack) // count=1
	e.handlePacket(nack) // count=2
	e.handlePacket(nack) // count=3 > threshold(2): reflood + resend

	sawFloodRequest := false
	for {
		select {
		case pkt := <-ch4:
			if pkt.Kind == packet.KindFloodRequest {
				sawFloodRequest = true
			}
			continue
		default:
		}
		break
	}
	if !sawFloodRequest {
		t.Error("expected a FloodRequest on the reflood triggered by the threshold breach")
	}
}

func TestNackDestinationIsDroneDoesNotResend(t *testing.T) {
	e, _ := newTestEndpoint(1, true, false)
	cached := &packet.Packet{
		SessionID:     1,
		RoutingHeader: packet.WithFirstHop([]core.NodeId{1, 9}),
		Kind:          packet.KindMsgFragment,
		Fragment:      &packet.Fragment{FragmentIndex: 0, TotalFragments: 1},
	}
	e.cache.Insert(cached)

	e.handlePacket(&packet.Packet{
		SessionID:     1,
		RoutingHeader: packet.RoutingHeader{Hops: []core.NodeId{9, 1}, HopIndex: 1},
		Kind:          packet.KindNack,
		Nack:          &packet.Nack{FragmentIndex: 0, NackKind: packet.NackDestinationIsDrone, NodeID: 9},
	})

	select {
	case ev := <-e.events:
		if ev.Kind != DestinationIsDrone {
			t.Errorf("got event %v, want DestinationIsDrone", ev.Kind)
		}
	default:
		t.Fatal("expected a DestinationIsDrone event")
	}
	if e.cache.Len() != 1 {
		t.Errorf("cache.Len() = %d, want 1 (entry untouched, no resend)", e.cache.Len())
	}
}

func TestErrorInRoutingMarksCrashedAndResends(t *testing.T) {
	e, _ := newTestEndpoint(1, true, false)
	seedTwoRoutesTopology(t, e)
	ch4 := registerSender(e, 4, 1)

	cached := &packet.Packet{
		SessionID:     7,
		RoutingHeader: packet.WithFirstHop([]core.NodeId{1, 2, 3, 9}),
		Kind:          packet.KindMsgFragment,
		Fragment:      &packet.Fragment{FragmentIndex: 0, TotalFragments: 1},
	}
	e.cache.Insert(cached)

	e.handlePacket(&packet.Packet{
		SessionID:     7,
		RoutingHeader: packet.RoutingHeader{Hops: []core.NodeId{2, 1}, HopIndex: 1},
		Kind:          packet.KindNack,
		Nack:          &packet.Nack{FragmentIndex: 0, NackKind: packet.NackErrorInRouting, NodeID: 2},
	})

	select {
	case pkt := <-ch4:
		for _, hop := range pkt.RoutingHeader.Hops {
			if hop == 2 {
				t.Errorf("resent route %v still traverses the crashed node", pkt.RoutingHeader.Hops)
			}
		}
	default:
		t.Error("expected a resend routed around the crashed node")
	}
}
