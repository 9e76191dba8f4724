package commands

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/nvme-mi/nvme-mi-go/pkg/mi"
	"github.com/nvme-mi/nvme-mi-go/pkg/nvme"
)

func init() {
	register(&Command{
		Name:    "subsys",
		Summary: "Show NVM subsystem information",
		Flags: func(*flag.FlagSet) func(context.Context, *Session, []string) error {
			return runSubsys
		},
	})
	register(&Command{
		Name:    "port",
		Summary: "Show port information",
		Args:    "<port-id>",
		Flags: func(*flag.FlagSet) func(context.Context, *Session, []string) error {
			return runPort
		},
	})
	register(&Command{
		Name:    "ctrl-list",
		Summary: "List controllers in the subsystem",
		Args:    "[flags]",
		Flags: func(fs *flag.FlagSet) func(context.Context, *Session, []string) error {
			start := fs.Uint("start", 0, "First controller ID to list")
			return func(ctx context.Context, s *Session, _ []string) error {
				return runCtrlList(ctx, s, *start)
			}
		},
	})
	register(&Command{
		Name:    "ctrl",
		Summary: "Show controller information",
		Args:    "<ctrl-id>",
		Flags: func(*flag.FlagSet) func(context.Context, *Session, []string) error {
			return runCtrl
		},
	})
	register(&Command{
		Name:    "health",
		Summary: "Poll NVM subsystem health",
		Args:    "[flags]",
		Flags: func(fs *flag.FlagSet) func(context.Context, *Session, []string) error {
			clearOnRead := fs.Bool("clear", false, "Clear change flags after reading")
			watch := fs.Duration("watch", 0, "Poll repeatedly at this interval")
			count := fs.Int("count", 0, "Stop after this many polls when watching (0: until interrupted)")
			return func(ctx context.Context, s *Session, _ []string) error {
				if *watch > 0 {
					return watchHealth(ctx, s, *watch, *count, *clearOnRead)
				}
				h, err := s.Endpoint.SubsystemHealthStatusPoll(ctx, *clearOnRead)
				if err != nil {
					return err
				}
				printHealth(s, h)
				return nil
			}
		},
	})
}

func runSubsys(ctx context.Context, s *Session, _ []string) error {
	info, err := s.Endpoint.ReadSubsystemInfo(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.Out, "NVM Subsystem:")
	field(s.Out, "NVMe-MI version", "%s", info.Version())
	field(s.Out, "Ports", "%d", info.NumPorts())
	return nil
}

func runPort(ctx context.Context, s *Session, args []string) error {
	id, err := argUint(args, "port-id", 0xff)
	if err != nil {
		return err
	}
	p, err := s.Endpoint.ReadPortInfo(ctx, uint8(id))
	if err != nil {
		return err
	}

	fmt.Fprintf(s.Out, "Port %d:\n", id)
	field(s.Out, "Type", "%s", p.Type)
	field(s.Out, "Max MCTP transmission", "%d", p.MaxMCTPTransmission)
	field(s.Out, "Management buffer", "%d", p.MEBSize)
	if p.PCIe != nil {
		field(s.Out, "Max payload size", "%d", p.PCIe.MaxPayloadSize)
		field(s.Out, "Supported link speeds", "0x%02x", p.PCIe.SupportedLinkSpeeds)
		field(s.Out, "Current link speed", "%d", p.PCIe.CurrentLinkSpeed)
		field(s.Out, "Link width", "x%d (max x%d)", p.PCIe.NegotiatedLinkWidth, p.PCIe.MaxLinkWidth)
		field(s.Out, "Port number", "%d", p.PCIe.PortNumber)
	}
	if p.SMBus != nil {
		field(s.Out, "VPD address", "0x%02x", p.SMBus.VPDAddress)
		field(s.Out, "Max VPD frequency", "%d", p.SMBus.MaxVPDFrequency)
		field(s.Out, "ME address", "0x%02x", p.SMBus.MEAddress)
		field(s.Out, "Max ME frequency", "%d", p.SMBus.MaxMEFrequency)
		field(s.Out, "Basic management", "%d", p.SMBus.NVMeBasicMgmt)
	}
	return nil
}

func runCtrlList(ctx context.Context, s *Session, start uint) error {
	if start > 0xffff {
		return usagef("start id %d out of range", start)
	}
	list, err := s.Endpoint.ReadControllerList(ctx, uint16(start))
	if err != nil {
		return err
	}
	fmt.Fprintf(s.Out, "Controllers (%d): %s\n", len(list.IDs), joinIDs(list.IDs))
	return nil
}

func runCtrl(ctx context.Context, s *Session, args []string) error {
	id, err := argUint(args, "ctrl-id", 0xffff)
	if err != nil {
		return err
	}
	c, err := s.Endpoint.ReadControllerInfo(ctx, uint16(id))
	if err != nil {
		return err
	}

	fmt.Fprintf(s.Out, "Controller %d:\n", id)
	field(s.Out, "Port", "%d", c.PortID)
	if c.RoutingIDValid() {
		field(s.Out, "Routing ID", "0x%04x", c.RoutingID)
	}
	field(s.Out, "PCI vendor/device", "%04x:%04x", c.VendorID, c.DeviceID)
	field(s.Out, "PCI subsystem", "%04x:%04x", c.SubsystemVendorID, c.SubsystemID)
	return nil
}

func printHealth(s *Session, h *nvme.SubsystemHealthStatus) {
	fmt.Fprintln(s.Out, "Subsystem Health:")
	field(s.Out, "Drive functional", "%t", h.DriveFunctional())
	if c, ok := h.Temperature(); ok {
		field(s.Out, "Composite temperature", "%d C", c)
	} else {
		field(s.Out, "Composite temperature", "unavailable")
	}
	field(s.Out, "Drive life used", "%d%%", h.PercentDriveLifeUsed)
	field(s.Out, "SMART warnings", "0x%02x", h.SMARTWarnings)
	field(s.Out, "Controller status", "0x%04x", h.ControllerStatus)
}

// watchHealth polls until count results have been printed or ctx is done.
func watchHealth(ctx context.Context, s *Session, interval time.Duration, count int, clearOnRead bool) error {
	cfg := mi.DefaultHealthMonitorConfig()
	cfg.Interval = interval
	cfg.ClearOnRead = clearOnRead
	cfg.Logger = s.Logger

	ctx, cancel := context.WithCancel(ctx)
	results := make(chan *nvme.SubsystemHealthStatus)
	faults := make(chan error, 1)
	m := mi.NewHealthMonitor(cfg, s.Endpoint,
		func(h *nvme.SubsystemHealthStatus) {
			select {
			case results <- h:
			case <-ctx.Done():
			}
		},
		func(err error) {
			select {
			case faults <- err:
			default:
			}
		})

	m.Start(ctx)
	defer func() {
		cancel()
		m.Stop()
	}()

	for n := 0; count == 0 || n < count; n++ {
		select {
		case <-ctx.Done():
			return nil
		case err := <-faults:
			return fmt.Errorf("health polling failed: %w", err)
		case h := <-results:
			fmt.Fprintf(s.Out, "%s %s\n", time.Now().Format(time.TimeOnly), h)
		}
	}
	return nil
}
