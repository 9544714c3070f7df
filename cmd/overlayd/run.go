package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/overlaynet/endpoint/core"
	"github.com/overlaynet/endpoint/core/packet"
	"github.com/overlaynet/endpoint/device/endpoint"
	"github.com/overlaynet/endpoint/internal/config"
	"github.com/overlaynet/endpoint/internal/metrics"
)

// loadEndpointConfig loads and validates configPath, checking that the
// node is a server configured for wantVariant, and builds the logger the
// rest of the run uses.
func loadEndpointConfig(configPath string, wantVariant core.ServerKind) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.NodeKind() != core.Server {
		return nil, nil, fmt.Errorf("config node.kind is %q, this command requires server", cfg.Node.Kind)
	}
	if cfg.ServerKind() != wantVariant {
		return nil, nil, fmt.Errorf("config server.variant is %q, this command requires %q", cfg.Server.Variant, wantVariant)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
	return cfg, logger, nil
}

// runEndpoint wires an Endpoint running app and blocks until SIGINT or
// SIGTERM arrives, then shuts down gracefully.
func runEndpoint(cfg *config.Config, variant core.ServerKind, logger *slog.Logger, app endpoint.Application) error {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	if cfg.MetricsAddr != "" {
		srv := startMetricsServer(cfg.MetricsAddr, reg, logger)
		defer srv.Close()
	}

	e := endpoint.New(endpoint.Config{
		SelfID:   core.NodeId(cfg.Node.ID),
		SelfKind: core.Server,
		// Chat delivers to the Application before acking (no stalled
		// read on the hot path); content acks first so a slow file read
		// never stalls the sender's retransmission timer, and falls
		// back to the stale route on resend since it has no dynamic
		// topology of its own to recompute against.
		DeliverBeforeAck:   variant == core.ChatServer,
		ResendOnStaleRoute: variant != core.ChatServer,
		RefloodThreshold:   cfg.Endpoint.RefloodThreshold,
		FloodBackoff:       cfg.Endpoint.FloodBackoff,
		Logger:             logger,
		Metrics:            m,
	}, app)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)
	go logEvents(logger, e)

	seedNeighbours(e, logger, cfg.Neighbours)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("endpoint started", "node_id", cfg.Node.ID, "variant", variant, "neighbours", len(cfg.Neighbours))
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)

	cancel()
	e.Stop()
	return nil
}

func startMetricsServer(addr string, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("metrics listening", "addr", addr)
	return srv
}

func logEvents(logger *slog.Logger, e *endpoint.Endpoint) {
	for ev := range e.Events() {
		logger.Debug("endpoint event", "kind", ev.Kind, "node", ev.NodeID, "session", ev.SessionID)
	}
}

// seedNeighbours registers every statically configured neighbour as a
// buffered, self-draining channel. The overlay here is an in-process
// channel abstraction, not a physical network (spec.md's Non-goals put
// transport bindings out of scope), so a static neighbour stands in for
// a drone or client reachable over some external transport: outbound
// packets are logged, including a human-readable fragment size, rather
// than actually delivered anywhere.
func seedNeighbours(e *endpoint.Endpoint, logger *slog.Logger, neighbours []config.NeighbourConfig) {
	for _, n := range neighbours {
		id := core.NodeId(n.ID)
		ch := make(chan *packet.Packet, 16)
		go drainNeighbour(logger, id, ch)
		e.Commands() <- endpoint.Command{
			Kind:          endpoint.AddSender,
			NodeID:        id,
			NeighbourKind: n.NodeKind(),
			Channel:       ch,
		}
	}
}

func drainNeighbour(logger *slog.Logger, id core.NodeId, ch <-chan *packet.Packet) {
	for pkt := range ch {
		size := 0
		if pkt.Fragment != nil {
			size = len(pkt.Fragment.Payload)
		}
		logger.Debug("packet forwarded to static neighbour",
			"neighbour", id, "kind", pkt.Kind, "payload_size", humanize.Bytes(uint64(size)))
	}
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
