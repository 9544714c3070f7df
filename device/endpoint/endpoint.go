// Package endpoint implements the generic server endpoint: one actor that
// owns a Router, a PacketCache and a MessageFactory, runs the packet
// dispatch state machine and retransmission engine, and drives a pluggable
// Application (chat or content) without duplicating any of that pipeline
// per variant (spec design note: factor the common pipeline, don't
// duplicate it).
//
// This corresponds to the teacher's device/router.Router plus
// device/connection.Manager: the Config-struct-into-New constructor, the
// slog.WithGroup logger, and the context.WithCancel + done-channel
// Start/Stop lifecycle are all carried over directly; what's new is the
// biased packet/command select loop and the flood back-off timer that
// replace the teacher's single-purpose drainLoop ticker.
package endpoint

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/overlaynet/endpoint/core"
	"github.com/overlaynet/endpoint/core/cache"
	"github.com/overlaynet/endpoint/core/message"
	"github.com/overlaynet/endpoint/core/packet"
	"github.com/overlaynet/endpoint/device/router"
	"github.com/overlaynet/endpoint/internal/metrics"
)

const (
	// DefaultRefloodThreshold is the NACK count above which a cache key
	// triggers a reflood before its next resend.
	DefaultRefloodThreshold = 100

	// DefaultFloodBackoff is the length of the back-off timer armed after
	// the initial flood. The loop services packets and commands while it
	// runs; its firing only removes it from the select.
	DefaultFloodBackoff = 2 * time.Second

	// DefaultPacketQueueSize and DefaultCommandQueueSize size the
	// endpoint's inbound channels.
	DefaultPacketQueueSize  = 64
	DefaultCommandQueueSize = 8
	DefaultEventQueueSize   = 64
)

// Config configures an Endpoint.
type Config struct {
	SelfID   core.NodeId
	SelfKind core.NodeKind

	// DeliverBeforeAck selects the MsgFragment ordering discipline: true
	// delivers the assembled message to the Application before sending
	// the Ack (the chat variant's contract); false sends the Ack first
	// (the content variant's contract, so a slow file read cannot stall
	// the sender's retransmission timer).
	DeliverBeforeAck bool

	// ResendOnStaleRoute selects the RetransmissionEngine's behavior when
	// a route recomputation fails during resend: true re-emits along the
	// stale header as a last-ditch attempt (content variant); false drops
	// the fragment (chat variant).
	ResendOnStaleRoute bool

	RefloodThreshold int
	FloodBackoff     time.Duration

	SessionSeed uint64

	Logger *slog.Logger

	// Metrics records per-event Prometheus counters/gauges if non-nil.
	// The event channel and Metrics are independent observers of the same
	// occurrences; leaving this nil only disables the Prometheus surface.
	Metrics *metrics.Metrics
}

// Endpoint is the generic server endpoint actor.
type Endpoint struct {
	cfg Config
	log *slog.Logger

	router  *router.Router
	cache   *cache.Cache
	factory *message.Factory
	app     Application

	mu      sync.RWMutex
	senders map[core.NodeId]chan<- *packet.Packet

	packets  chan *packet.Packet
	commands chan Command
	events   chan Event

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an Endpoint wired to app.
func New(cfg Config, app Application) *Endpoint {
	if cfg.RefloodThreshold <= 0 {
		cfg.RefloodThreshold = DefaultRefloodThreshold
	}
	if cfg.FloodBackoff <= 0 {
		cfg.FloodBackoff = DefaultFloodBackoff
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Endpoint{
		cfg: cfg,
		log: logger.WithGroup("endpoint"),
		router: router.New(router.Config{
			SelfID:   cfg.SelfID,
			SelfKind: cfg.SelfKind,
			Logger:   logger,
		}),
		cache:    cache.New(),
		factory:  message.New(cfg.SessionSeed),
		app:      app,
		senders:  make(map[core.NodeId]chan<- *packet.Packet),
		packets:  make(chan *packet.Packet, DefaultPacketQueueSize),
		commands: make(chan Command, DefaultCommandQueueSize),
		events:   make(chan Event, DefaultEventQueueSize),
	}
}

// SelfID returns this endpoint's own node id.
func (e *Endpoint) SelfID() core.NodeId { return e.cfg.SelfID }

// SelfKind returns this endpoint's own node kind.
func (e *Endpoint) SelfKind() core.NodeKind { return e.cfg.SelfKind }

// Log returns the endpoint's logger, for use by the plugged Application.
func (e *Endpoint) Log() *slog.Logger { return e.log }

// Packets returns the inbound packet channel.
func (e *Endpoint) Packets() chan<- *packet.Packet { return e.packets }

// Commands returns the inbound control-command channel.
func (e *Endpoint) Commands() chan<- Command { return e.commands }

// Events returns the outbound controller-notification channel.
func (e *Endpoint) Events() <-chan Event { return e.events }

func (e *Endpoint) emitEvent(ev Event) {
	e.recordMetric(ev)
	select {
	case e.events <- ev:
	default:
		e.log.Warn("event channel full, dropping event", "kind", ev.Kind)
	}
}

func (e *Endpoint) recordMetric(ev Event) {
	if e.cfg.Metrics == nil {
		return
	}
	switch ev.Kind {
	case SendError:
		e.cfg.Metrics.RecordSendError(ev.NodeID.String())
	case ControllerShortcut:
		e.cfg.Metrics.RecordControllerShortcut()
	case UnreachableNode:
		e.cfg.Metrics.RecordUnreachable()
	case ErrorPacketCache:
		e.cfg.Metrics.RecordCacheMiss()
	}
	e.cfg.Metrics.SetCacheEntriesInFlight(e.cache.Len())
}

// Run performs the initial flood, then services the packet and command
// channels in a biased loop until ctx is cancelled. The flood back-off
// timer is a lowest-priority select arm until it fires; it does not delay
// or hold back any packet or command handling. Run blocks; call it from
// its own goroutine.
func (e *Endpoint) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	defer close(e.done)

	e.reflood()

	backoff := time.NewTimer(e.cfg.FloodBackoff)
	defer backoff.Stop()
	backoffC := backoff.C

	for {
		// Drain every pending packet before considering a command, so a
		// burst of commands can never starve data already queued.
		select {
		case pkt := <-e.packets:
			e.handlePacket(pkt)
			continue
		default:
		}

		select {
		case pkt := <-e.packets:
			e.handlePacket(pkt)
		case cmd := <-e.commands:
			e.handleCommand(cmd)
		case <-backoffC:
			backoffC = nil
		case <-ctx.Done():
			return
		}
	}
}

// Stop cancels the run loop and waits for it to return.
func (e *Endpoint) Stop() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
		e.cancel = nil
	}
}
