// Command nvme-mi-sim serves a simulated NVMe-MI management endpoint.
//
// The simulator answers NVMe-MI and Admin request messages over the
// length-prefixed stream binding used by nvme-mi. It is meant for trying the
// CLI and for integration testing without a drive.
//
// Usage:
//
//	nvme-mi-sim [flags]
//
// Flags:
//
//	-addr string           Listen address (default "127.0.0.1:7000")
//	-network string        Listen network: tcp, unix (default "tcp")
//	-controllers int       Number of simulated controllers (default 2)
//	-max-response int      Cap on Admin response data, 0 for none
//	-integrity-check       Expect and append a message integrity check
//	-simulate              Vary health and SMART data over time
//	-protocol-log string   Protocol capture file (.mlog)
//	-log-level string      Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	# Serve on the default address with debug logging
//	nvme-mi-sim -log-level debug
//
//	# Small responses to exercise chunking
//	nvme-mi-sim -max-response 256
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nvme-mi/nvme-mi-go/pkg/config"
	"github.com/nvme-mi/nvme-mi-go/pkg/log"
	"github.com/nvme-mi/nvme-mi-go/pkg/sim"
	"github.com/nvme-mi/nvme-mi-go/pkg/transport"
)

// Options holds the simulator command line.
type Options struct {
	Address        string
	Network        string
	Controllers    int
	MaxResponse    int
	IntegrityCheck bool
	Simulate       bool
	ProtocolLog    string
	LogLevel       string
}

var opts Options

func init() {
	flag.StringVar(&opts.Address, "addr", "127.0.0.1:7000", "Listen address")
	flag.StringVar(&opts.Network, "network", "tcp", "Listen network: tcp, unix")
	flag.IntVar(&opts.Controllers, "controllers", 2, "Number of simulated controllers")
	flag.IntVar(&opts.MaxResponse, "max-response", 0, "Cap on Admin response data, 0 for none")
	flag.BoolVar(&opts.IntegrityCheck, "integrity-check", false, "Expect and append a message integrity check")
	flag.BoolVar(&opts.Simulate, "simulate", false, "Vary health and SMART data over time")
	flag.StringVar(&opts.ProtocolLog, "protocol-log", "", "Protocol capture file (.mlog)")
	flag.StringVar(&opts.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	level, err := config.ParseLevel(opts.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := simConfig(opts)
	if err != nil {
		return err
	}
	cfg.Logger = logger
	target := sim.NewEndpoint(cfg)

	var handler transport.Handler = target
	if opts.IntegrityCheck {
		handler = transport.IntegrityHandler(handler)
	}

	var protocol log.Logger
	if opts.ProtocolLog != "" {
		fl, err := log.NewFileLogger(opts.ProtocolLog)
		if err != nil {
			return fmt.Errorf("open protocol log: %w", err)
		}
		defer fl.Close()
		protocol = fl
	}

	srv, err := transport.NewServer(transport.ServerConfig{
		Network:        opts.Network,
		Address:        opts.Address,
		Handler:        handler,
		Logger:         logger,
		ProtocolLogger: protocol,
		OnConnect: func(c *transport.ServerConn) {
			logger.Info("client connected", "conn", c.ConnID(), "remote", c.RemoteAddr())
		},
		OnDisconnect: func(c *transport.ServerConn) {
			logger.Info("client disconnected", "conn", c.ConnID())
		},
		OnError: func(c *transport.ServerConn, err error) {
			logger.Warn("server error", "error", err)
		},
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	logger.Info("simulated endpoint listening",
		"addr", srv.Addr().String(),
		"controllers", len(cfg.Controllers),
		"integrity_check", opts.IntegrityCheck)

	if opts.Simulate {
		go runSimulation(ctx, target, cfg, logger)
	}

	<-ctx.Done()
	logger.Info("shutting down")
	return srv.Stop()
}

// simConfig builds the simulated subsystem from the command line.
func simConfig(o Options) (sim.Config, error) {
	cfg := sim.DefaultConfig()
	if o.Controllers < 1 || o.Controllers > 64 {
		return cfg, fmt.Errorf("controllers must be 1-64, got %d", o.Controllers)
	}
	if o.MaxResponse < 0 || o.MaxResponse&0x3 != 0 {
		return cfg, fmt.Errorf("max-response must be a non-negative dword multiple, got %d", o.MaxResponse)
	}

	tmpl := cfg.Controllers[0]
	cfg.Controllers = cfg.Controllers[:0]
	for i := range o.Controllers {
		c := tmpl
		c.ID = uint16(i + 1)
		c.Identity.ControllerID = c.ID
		cfg.Controllers = append(cfg.Controllers, c)
	}
	cfg.MaxResponseData = o.MaxResponse
	return cfg, nil
}
