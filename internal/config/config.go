// Package config parses the YAML file that describes one endpoint
// instance's identity, variant and tuning parameters.
//
// Grounded on the teacher pack's Muti Metroo relay config
// (internal/config.Config): a single YAML-tagged struct, a Default()
// constructor, Load/Parse split (Parse takes raw bytes so tests don't
// need a file on disk), and a Validate pass returning every error found
// rather than stopping at the first.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/overlaynet/endpoint/core"
)

// Config describes one endpoint instance.
type Config struct {
	Node     NodeConfig     `yaml:"node"`
	Server   ServerConfig   `yaml:"server"`
	Endpoint EndpointConfig `yaml:"endpoint"`

	// Neighbours statically seeds the router's neighbour set, for
	// bootstrap or tests. It adds no topology edges; the topology is
	// still built from flood responses.
	Neighbours []NeighbourConfig `yaml:"neighbours"`

	LogLevel string `yaml:"log_level"`

	// MetricsAddr is the listen address for the Prometheus /metrics
	// endpoint. Empty disables the metrics HTTP server entirely.
	MetricsAddr string `yaml:"metrics_addr"`
}

// NodeConfig identifies this node on the overlay.
type NodeConfig struct {
	ID   uint8  `yaml:"id"`
	Kind string `yaml:"kind"` // client, drone, server
}

// ServerConfig selects the application variant and its arguments. Only
// meaningful when Node.Kind is "server".
type ServerConfig struct {
	Variant     string `yaml:"variant"` // chat, text, media
	CatalogRoot string `yaml:"catalog_root"`
}

// EndpointConfig tunes the generic endpoint actor.
type EndpointConfig struct {
	RefloodThreshold int           `yaml:"reflood_threshold"`
	FloodBackoff     time.Duration `yaml:"flood_backoff"`
}

// NeighbourConfig statically seeds one direct neighbour.
type NeighbourConfig struct {
	ID   uint8  `yaml:"id"`
	Kind string `yaml:"kind"`
}

// NodeKind parses this neighbour's configured kind.
func (n NeighbourConfig) NodeKind() core.NodeKind {
	k, _ := parseNodeKind(n.Kind)
	return k
}

// Default returns a Config with the endpoint's built-in defaults.
func Default() *Config {
	return &Config{
		Endpoint: EndpointConfig{
			RefloodThreshold: 100,
			FloodBackoff:     2 * time.Second,
		},
		LogLevel: "info",
	}
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors, collecting every problem
// found rather than stopping at the first.
func (c *Config) Validate() error {
	var errs []string

	if _, err := parseNodeKind(c.Node.Kind); err != nil {
		errs = append(errs, err.Error())
	}

	if c.Node.Kind == "server" {
		if _, err := parseServerKind(c.Server.Variant); err != nil {
			errs = append(errs, err.Error())
		}
		if (c.Server.Variant == "text" || c.Server.Variant == "media") && c.Server.CatalogRoot == "" {
			errs = append(errs, "server.catalog_root is required for the text and media variants")
		}
	}

	if c.Endpoint.RefloodThreshold < 0 {
		errs = append(errs, "endpoint.reflood_threshold must not be negative")
	}
	if c.Endpoint.FloodBackoff < 0 {
		errs = append(errs, "endpoint.flood_backoff must not be negative")
	}

	for i, n := range c.Neighbours {
		if _, err := parseNodeKind(n.Kind); err != nil {
			errs = append(errs, fmt.Sprintf("neighbours[%d]: %v", i, err))
		}
	}

	if !isValidLogLevel(c.LogLevel) {
		errs = append(errs, fmt.Sprintf("invalid log_level: %s (must be debug, info, warn, or error)", c.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// NodeKind parses the node's configured kind.
func (c *Config) NodeKind() core.NodeKind {
	k, _ := parseNodeKind(c.Node.Kind)
	return k
}

// ServerKind parses the server's configured variant.
func (c *Config) ServerKind() core.ServerKind {
	k, _ := parseServerKind(c.Server.Variant)
	return k
}

func parseNodeKind(s string) (core.NodeKind, error) {
	switch s {
	case "client":
		return core.Client, nil
	case "drone":
		return core.Drone, nil
	case "server":
		return core.Server, nil
	default:
		return 0, fmt.Errorf("invalid node kind: %q (must be client, drone, or server)", s)
	}
}

func parseServerKind(s string) (core.ServerKind, error) {
	switch s {
	case "chat":
		return core.ChatServer, nil
	case "text":
		return core.TextServer, nil
	case "media":
		return core.MediaServer, nil
	default:
		return 0, fmt.Errorf("invalid server variant: %q (must be chat, text, or media)", s)
	}
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}
