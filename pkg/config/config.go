package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nvme-mi/nvme-mi-go/pkg/log"
	"github.com/nvme-mi/nvme-mi-go/pkg/mi"
	"github.com/nvme-mi/nvme-mi-go/pkg/transport"
	"github.com/nvme-mi/nvme-mi-go/pkg/wire"
)

// Configuration errors.
var (
	ErrNoEndpoint      = errors.New("no endpoint configured")
	ErrUnknownEndpoint = errors.New("unknown endpoint")
	ErrInvalidConfig   = errors.New("invalid configuration")
)

// Config is the command configuration file.
type Config struct {
	// Default names the endpoint used when none is selected.
	Default string `yaml:"default"`

	// ProtocolLog is the path of the protocol capture file. Empty disables
	// capture.
	ProtocolLog string `yaml:"protocol_log"`

	// LogLevel is the operational log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	Endpoints map[string]EndpointConfig `yaml:"endpoints"`

	lines map[string]int
}

// EndpointConfig describes one management endpoint reachable over a stream
// binding.
type EndpointConfig struct {
	Address string `yaml:"address"`

	// Network is "tcp" or "unix". Empty means tcp.
	Network string `yaml:"network"`

	// MaxMessageSize is the NVMe-MI message limit, without the integrity
	// check. Zero uses the engine default.
	MaxMessageSize int `yaml:"max_message_size"`

	// Timeout bounds each exchange.
	Timeout time.Duration `yaml:"timeout"`

	// DialAttempts is the number of dials tried per exchange.
	DialAttempts int `yaml:"dial_attempts"`

	// Backoff spaces the dial attempts. Zero fields take the defaults.
	Backoff transport.BackoffConfig `yaml:"backoff"`

	// IntegrityCheck appends and verifies a CRC-32C on every message.
	IntegrityCheck bool `yaml:"integrity_check"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates configuration data.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	cfg.lines = endpointLines(&root)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// endpointLines maps endpoint names to the line they are declared on.
func endpointLines(root *yaml.Node) map[string]int {
	lines := make(map[string]int)
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return lines
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return lines
	}
	for i := 0; i < len(doc.Content)-1; i += 2 {
		key, value := doc.Content[i], doc.Content[i+1]
		if key.Value != "endpoints" || value.Kind != yaml.MappingNode {
			continue
		}
		for j := 0; j < len(value.Content)-1; j += 2 {
			lines[value.Content[j].Value] = value.Content[j].Line
		}
	}
	return lines
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Default != "" {
		if _, ok := c.Endpoints[c.Default]; !ok {
			return fmt.Errorf("%w: default %q: %w", ErrInvalidConfig, c.Default, ErrUnknownEndpoint)
		}
	}
	for _, name := range c.Names() {
		if err := c.Endpoints[name].validate(); err != nil {
			if line := c.lines[name]; line > 0 {
				return fmt.Errorf("%w: line %d: endpoint %q: %w", ErrInvalidConfig, line, name, err)
			}
			return fmt.Errorf("%w: endpoint %q: %w", ErrInvalidConfig, name, err)
		}
	}
	return nil
}

func (e EndpointConfig) validate() error {
	switch {
	case e.Address == "":
		return errors.New("missing address")
	case e.Network != "" && e.Network != "tcp" && e.Network != "unix":
		return fmt.Errorf("unsupported network %q", e.Network)
	case e.MaxMessageSize < 0:
		return fmt.Errorf("negative max_message_size %d", e.MaxMessageSize)
	case e.MaxMessageSize > 0 && e.MaxMessageSize < mi.MinMaxMessageSize:
		return fmt.Errorf("max_message_size %d below %d", e.MaxMessageSize, mi.MinMaxMessageSize)
	case e.Timeout < 0:
		return fmt.Errorf("negative timeout %s", e.Timeout)
	case e.DialAttempts < 0:
		return fmt.Errorf("negative dial_attempts %d", e.DialAttempts)
	case e.Backoff.Initial < 0 || e.Backoff.Max < 0:
		return errors.New("negative backoff delay")
	}
	return nil
}

// Names returns the endpoint names in sorted order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Endpoints))
	for name := range c.Endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Endpoint returns the named endpoint, or the default one when name is
// empty. A configuration with a single endpoint makes it the default.
func (c *Config) Endpoint(name string) (EndpointConfig, error) {
	if name == "" {
		name = c.Default
	}
	if name == "" && len(c.Endpoints) == 1 {
		name = c.Names()[0]
	}
	if name == "" {
		return EndpointConfig{}, ErrNoEndpoint
	}
	e, ok := c.Endpoints[name]
	if !ok {
		return EndpointConfig{}, fmt.Errorf("%w: %q", ErrUnknownEndpoint, name)
	}
	return e, nil
}

// StreamConfig returns the transport configuration for the endpoint. The
// binding limit includes the integrity check when enabled.
func (e EndpointConfig) StreamConfig() transport.StreamConfig {
	sc := transport.DefaultStreamConfig()
	sc.Address = e.Address
	if e.Network != "" {
		sc.Network = e.Network
	}
	if e.Timeout > 0 {
		sc.Timeout = e.Timeout
	}
	if e.DialAttempts > 0 {
		sc.DialAttempts = e.DialAttempts
	}
	sc.Backoff = e.Backoff
	sc.MaxMessageSize = e.MaxMessageSize
	if sc.MaxMessageSize == 0 {
		sc.MaxMessageSize = mi.DefaultMaxMessageSize
	}
	if e.IntegrityCheck {
		sc.MaxMessageSize += wire.MICSize
	}
	return sc
}

// Open connects the endpoint to root over a stream port. The loggers are
// attached to the port and may be nil.
func (e EndpointConfig) Open(root *mi.Root, logger *slog.Logger, protocol log.Logger) (*mi.Endpoint, error) {
	sc := e.StreamConfig()
	sc.Logger = logger
	sc.ProtocolLogger = protocol

	sp, err := transport.NewStreamPort(sc)
	if err != nil {
		return nil, err
	}
	var port transport.Port = sp
	if e.IntegrityCheck {
		port = transport.WithIntegrityCheck(sp)
	}

	ep, err := root.Open(port, mi.EndpointConfig{Address: e.Address, MaxMessageSize: e.MaxMessageSize})
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	return ep, nil
}

// ParseLevel parses an operational log level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: log level %q", ErrInvalidConfig, s)
	}
}
