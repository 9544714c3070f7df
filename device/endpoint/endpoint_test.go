package endpoint

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/overlaynet/endpoint/core"
	"github.com/overlaynet/endpoint/core/appmsg"
	"github.com/overlaynet/endpoint/core/packet"
	"github.com/overlaynet/endpoint/internal/metrics"
)

type call struct {
	sessionID uint64
	source    core.NodeId
	msg       appmsg.ClientMessage
}

type recordingApp struct {
	calls []call
}

func (a *recordingApp) Handle(e *Endpoint, sessionID uint64, source core.NodeId, msg appmsg.ClientMessage) {
	a.calls = append(a.calls, call{sessionID, source, msg})
}

func newTestEndpoint(self core.NodeId, deliverBeforeAck, resendOnStale bool) (*Endpoint, *recordingApp) {
	app := &recordingApp{}
	e := New(Config{
		SelfID:           self,
		SelfKind:         core.Server,
		DeliverBeforeAck: deliverBeforeAck,
		ResendOnStaleRoute: resendOnStale,
		SessionSeed:      1,
	}, app)
	return e, app
}

// registerSender wires a buffered channel directly into the endpoint's
// neighbour table, bypassing the AddSender command (which also triggers a
// reflood) so tests can isolate the behavior under test.
func registerSender(e *Endpoint, id core.NodeId, buf int) chan *packet.Packet {
	ch := make(chan *packet.Packet, buf)
	e.mu.Lock()
	e.senders[id] = ch
	e.mu.Unlock()
	return ch
}

func TestRunServicesInboundPacket(t *testing.T) {
	e, _ := newTestEndpoint(9, true, false)
	ch3 := registerSender(e, 3, 4)

	ctx, cancel := context.WithCancel(context.Background())
	go e.Run(ctx)
	defer func() {
		cancel()
		e.Stop()
	}()

	e.Packets() <- &packet.Packet{
		RoutingHeader: packet.RoutingHeader{Hops: []core.NodeId{7, 3, 9}, HopIndex: 1},
		Kind:          packet.KindMsgFragment,
		Fragment:      &packet.Fragment{FragmentIndex: 0, TotalFragments: 1, Payload: []byte{1}},
	}

	select {
	case pkt := <-ch3:
		if pkt.Kind != packet.KindNack {
			t.Errorf("expected a Nack routed via node 3, got %v", pkt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the routed Nack")
	}
}

// TestMetricsRecordUnreachableReply confirms Config.Metrics is a genuine
// observer of endpoint events rather than unwired dead config: a Reply to
// a destination with no known route must both emit an UnreachableNode
// event and increment the Prometheus counter behind it.
func TestMetricsRecordUnreachableReply(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	app := &recordingApp{}
	e := New(Config{
		SelfID:      9,
		SelfKind:    core.Server,
		SessionSeed: 1,
		Metrics:     m,
	}, app)

	e.Reply(42, appmsg.ServerMessage{Kind: appmsg.ServerType})

	if got := testutil.ToFloat64(m.UnreachableDestinations); got != 1 {
		t.Errorf("UnreachableDestinations = %v, want 1", got)
	}

	select {
	case ev := <-e.Events():
		if ev.Kind != UnreachableNode {
			t.Errorf("expected UnreachableNode event, got %v", ev.Kind)
		}
	default:
		t.Fatal("expected an UnreachableNode event on the events channel")
	}
}

// TestMetricsRecordReflood confirms AddSender's triggered reflood is
// counted.
func TestMetricsRecordReflood(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	e, _ := newTestEndpoint(9, true, false)
	e.cfg.Metrics = m
	ch3 := make(chan *packet.Packet, 4)

	e.handleCommand(Command{Kind: AddSender, NodeID: 3, NeighbourKind: core.Drone, Channel: ch3})

	select {
	case <-ch3:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the flood request")
	}

	if got := testutil.ToFloat64(m.RefloodsTriggered); got != 1 {
		t.Errorf("RefloodsTriggered = %v, want 1", got)
	}
}
