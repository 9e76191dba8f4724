// Command nvme-mi talks to an NVMe-MI management endpoint.
//
// The endpoint is reached over the length-prefixed stream binding served by
// nvme-mi-sim, or an in-process simulator with -sim. Endpoints can be named
// in a YAML configuration file.
//
// Usage:
//
//	nvme-mi [flags] <command> [command flags] [args]
//
// Commands:
//
//	subsys      Show NVM subsystem information
//	port        Show port information
//	ctrl-list   List controllers in the subsystem
//	ctrl        Show controller information
//	health      Poll NVM subsystem health
//	identify    Run Identify on a controller
//	log         Read a log page
//	smart       Show the SMART / Health Information log
//	shell       Run commands interactively
//
// Examples:
//
//	# Subsystem health from the default configured endpoint
//	nvme-mi -config nvme-mi.yaml health
//
//	# Identify controller 1 on a simulator, capturing the protocol
//	nvme-mi -addr 127.0.0.1:7000 -protocol-log identify.mlog identify -ctrl 1
//
//	# Small messages to watch chunking, no server needed
//	nvme-mi -sim -max-msg 276 -log-level debug smart -ctrl 1
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nvme-mi/nvme-mi-go/cmd/nvme-mi/commands"
	"github.com/nvme-mi/nvme-mi-go/pkg/config"
	"github.com/nvme-mi/nvme-mi-go/pkg/log"
	"github.com/nvme-mi/nvme-mi-go/pkg/mi"
	"github.com/nvme-mi/nvme-mi-go/pkg/sim"
)

// Options holds the global command line.
type Options struct {
	ConfigFile     string
	Endpoint       string
	Address        string
	Network        string
	MaxMessageSize int
	Timeout        time.Duration
	IntegrityCheck bool
	Sim            bool
	ProtocolLog    string
	LogLevel       string
}

var opts Options

func init() {
	flag.StringVar(&opts.ConfigFile, "config", "", "Configuration file (YAML)")
	flag.StringVar(&opts.Endpoint, "endpoint", "", "Configured endpoint name")
	flag.StringVar(&opts.Address, "addr", "", "Endpoint address, overrides the configuration")
	flag.StringVar(&opts.Network, "network", "", "Endpoint network: tcp, unix")
	flag.IntVar(&opts.MaxMessageSize, "max-msg", 0, "Maximum NVMe-MI message size, 0 for the default")
	flag.DurationVar(&opts.Timeout, "timeout", 0, "Per-exchange timeout")
	flag.BoolVar(&opts.IntegrityCheck, "integrity-check", false, "Append and verify a message integrity check")
	flag.BoolVar(&opts.Sim, "sim", false, "Use an in-process simulated endpoint")
	flag.StringVar(&opts.ProtocolLog, "protocol-log", "", "Protocol capture file (.mlog)")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level: debug, info, warn, error")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "nvme-mi - NVMe-MI management client\n\nUsage:\n  nvme-mi [flags] <command> [command flags] [args]\n\nCommands:\n")
		commands.Usage(os.Stderr)
		fmt.Fprintf(os.Stderr, "  %-10s %s\n\nFlags:\n", "shell", "Run commands interactively")
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), flag.Args()[1:]); err != nil {
		if !errors.Is(err, commands.ErrUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(name string, args []string) error {
	var cfg *config.Config
	if opts.ConfigFile != "" {
		var err error
		if cfg, err = config.Load(opts.ConfigFile); err != nil {
			return err
		}
	}

	level, err := config.ParseLevel(firstNonEmpty(opts.LogLevel, cfgString(cfg, func(c *config.Config) string { return c.LogLevel })))
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var protocol log.Logger
	if path := firstNonEmpty(opts.ProtocolLog, cfgString(cfg, func(c *config.Config) string { return c.ProtocolLog })); path != "" {
		fl, err := log.NewFileLogger(path)
		if err != nil {
			return fmt.Errorf("open protocol log: %w", err)
		}
		defer func() {
			if n := fl.Dropped(); n > 0 {
				logger.Warn("protocol log dropped events", "count", n)
			}
			fl.Close()
		}()
		protocol = fl
	}

	root := mi.NewRoot(mi.RootConfig{Logger: logger, ProtocolLogger: protocol})
	defer root.Close()

	ep, err := openEndpoint(root, cfg, opts, logger, protocol)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	session := &commands.Session{Endpoint: ep, Out: os.Stdout, Logger: logger}
	if name == "shell" {
		sh, err := commands.NewShell(session, "nvme-mi> ")
		if err != nil {
			return err
		}
		sh.Run(ctx)
		return nil
	}
	return commands.Execute(ctx, session, name, args)
}

// openEndpoint opens the in-process simulator or the configured endpoint.
func openEndpoint(root *mi.Root, cfg *config.Config, o Options, logger *slog.Logger, protocol log.Logger) (*mi.Endpoint, error) {
	if o.Sim {
		simCfg := sim.DefaultConfig()
		simCfg.Logger = logger
		port := sim.NewPort(sim.NewEndpoint(simCfg), 0)
		return root.Open(port, mi.EndpointConfig{Address: "sim", MaxMessageSize: o.MaxMessageSize})
	}

	ec, err := endpointConfig(cfg, o)
	if err != nil {
		return nil, err
	}
	return ec.Open(root, logger, protocol)
}

// endpointConfig resolves the endpoint from the configuration file, then
// applies the command line overrides.
func endpointConfig(cfg *config.Config, o Options) (config.EndpointConfig, error) {
	var ec config.EndpointConfig
	if cfg != nil {
		var err error
		ec, err = cfg.Endpoint(o.Endpoint)
		if err != nil && !(errors.Is(err, config.ErrNoEndpoint) && o.Address != "") {
			return ec, err
		}
	} else if o.Endpoint != "" {
		return ec, fmt.Errorf("-endpoint %q needs -config", o.Endpoint)
	}

	if o.Address != "" {
		ec.Address = o.Address
	}
	if o.Network != "" {
		ec.Network = o.Network
	}
	if o.MaxMessageSize != 0 {
		ec.MaxMessageSize = o.MaxMessageSize
	}
	if o.Timeout != 0 {
		ec.Timeout = o.Timeout
	}
	if o.IntegrityCheck {
		ec.IntegrityCheck = true
	}
	if ec.Address == "" {
		return ec, fmt.Errorf("%w: use -addr, -config or -sim", config.ErrNoEndpoint)
	}
	return ec, nil
}

func cfgString(cfg *config.Config, get func(*config.Config) string) string {
	if cfg == nil {
		return ""
	}
	return get(cfg)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
