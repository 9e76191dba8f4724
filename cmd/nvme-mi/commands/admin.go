package commands

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"

	"github.com/nvme-mi/nvme-mi-go/pkg/mi"
	"github.com/nvme-mi/nvme-mi-go/pkg/nvme"
)

func init() {
	register(&Command{
		Name:    "identify",
		Summary: "Run Identify on a controller",
		Args:    "[flags]",
		Flags:   identifyFlags,
	})
	register(&Command{
		Name:    "log",
		Summary: "Read a log page",
		Args:    "[flags] <lid>",
		Flags:   logFlags,
	})
	register(&Command{
		Name:    "smart",
		Summary: "Show the SMART / Health Information log",
		Args:    "[flags]",
		Flags: func(fs *flag.FlagSet) func(context.Context, *Session, []string) error {
			ctrl := fs.Uint("ctrl", 0, "Controller ID")
			nsid := fs.Uint("nsid", uint(nvme.NSIDAll), "Namespace ID")
			return func(ctx context.Context, s *Session, _ []string) error {
				return s.withController(*ctrl, func(c *mi.Controller) error {
					l, err := c.GetSMARTLog(ctx, uint32(*nsid))
					if err != nil {
						return err
					}
					printSMART(s, l)
					return nil
				})
			}
		},
	})
}

func identifyFlags(fs *flag.FlagSet) func(context.Context, *Session, []string) error {
	ctrl := fs.Uint("ctrl", 0, "Controller ID")
	cns := fs.Uint("cns", uint(nvme.CNSController), "Controller or Namespace Structure")
	nsid := fs.Uint("nsid", 0, "Namespace ID")
	cntid := fs.Uint("cntid", 0, "Controller ID field (cdw10)")
	csi := fs.Uint("csi", 0, "Command set identifier")
	uuidIndex := fs.Uint("uuid-index", 0, "UUID index")
	offset := fs.Int("offset", 0, "Start offset within the identify data")
	size := fs.Int("size", nvme.IdentifyDataSize, "Number of bytes to read")
	raw := fs.Bool("raw", false, "Hex dump instead of decoding")

	return func(ctx context.Context, s *Session, _ []string) error {
		if *cns > 0xff || *cntid > 0xffff || *csi > 0xff || *uuidIndex > 0x7f {
			return usagef("identify field out of range")
		}
		args := &mi.IdentifyArgs{
			CNS:       nvme.CNS(*cns),
			CSI:       nvme.CSI(*csi),
			NSID:      uint32(*nsid),
			CNTID:     uint16(*cntid),
			UUIDIndex: uint8(*uuidIndex),
		}
		return s.withController(*ctrl, func(c *mi.Controller) error {
			n, err := c.IdentifyPartial(ctx, args, *offset, *size)
			if err != nil {
				return err
			}
			data := args.Data[:n]
			if *raw || *offset != 0 || n < nvme.IdentifyDataSize {
				if n < *size {
					fmt.Fprintf(s.Out, "Short transfer: %d of %d bytes\n", n, *size)
				}
				fmt.Fprint(s.Out, hex.Dump(data))
				return nil
			}
			return printIdentify(s, args.CNS, data)
		})
	}
}

// printIdentify decodes the structures it knows and dumps the rest.
func printIdentify(s *Session, cns nvme.CNS, data []byte) error {
	switch cns {
	case nvme.CNSController:
		id, err := nvme.ParseIdentifyController(data)
		if err != nil {
			return err
		}
		fmt.Fprintln(s.Out, "Identify Controller:")
		field(s.Out, "PCI vendor", "0x%04x", id.VendorID)
		field(s.Out, "Serial number", "%s", id.SerialNumber)
		field(s.Out, "Model number", "%s", id.ModelNumber)
		field(s.Out, "Firmware revision", "%s", id.FirmwareRevision)
		field(s.Out, "Controller ID", "%d", id.ControllerID)
		field(s.Out, "NVMe version", "%s", id.VersionString())
	case nvme.CNSNamespace:
		ns, err := nvme.ParseIdentifyNamespace(data)
		if err != nil {
			return err
		}
		fmt.Fprintln(s.Out, "Identify Namespace:")
		field(s.Out, "Size", "%d blocks", ns.Size)
		field(s.Out, "Capacity", "%d blocks", ns.Capacity)
		field(s.Out, "Utilization", "%d blocks", ns.Utilization)
		field(s.Out, "LBA format", "%d of %d (%d bytes)", ns.FormatIndex, ns.NumFormats, ns.LBADataSize)
	case nvme.CNSNamespaceActiveList, nvme.CNSAllocatedNamespaceList:
		fmt.Fprintf(s.Out, "Namespaces: %s\n", joinIDs(nvme.ParseNamespaceList(data)))
	case nvme.CNSControllerList, nvme.CNSNamespaceControllerList:
		list, err := nvme.ParseControllerList(data)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.Out, "Controllers (%d): %s\n", len(list.IDs), joinIDs(list.IDs))
	case nvme.CNSUUIDList:
		entries, err := nvme.ParseUUIDList(data)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.Out, "UUID List (%d):\n", len(entries))
		for _, e := range entries {
			fmt.Fprintf(s.Out, "  [%d] %s association=%d\n", e.Index, e.UUID, e.Association)
		}
	default:
		fmt.Fprintf(s.Out, "%s:\n", cns)
		fmt.Fprint(s.Out, hex.Dump(data))
	}
	return nil
}

func logFlags(fs *flag.FlagSet) func(context.Context, *Session, []string) error {
	ctrl := fs.Uint("ctrl", 0, "Controller ID")
	nsid := fs.Uint("nsid", uint(nvme.NSIDAll), "Namespace ID")
	length := fs.Uint("len", 512, "Number of bytes to read (dword multiple)")
	lpo := fs.Uint64("lpo", 0, "Log page offset")
	lsp := fs.Uint("lsp", 0, "Log specific parameter")
	lsi := fs.Uint("lsi", 0, "Log specific identifier")
	rae := fs.Bool("rae", false, "Retain asynchronous event")

	return func(ctx context.Context, s *Session, args []string) error {
		lid, err := argUint(args, "lid", 0xff)
		if err != nil {
			return err
		}
		if *lsp > 0x7f || *lsi > 0xffff {
			return usagef("log field out of range")
		}
		la := &mi.GetLogPageArgs{
			LID:  nvme.LogID(lid),
			NSID: uint32(*nsid),
			LPO:  *lpo,
			LSP:  uint8(*lsp),
			LSI:  uint16(*lsi),
			RAE:  *rae,
			Len:  uint32(*length),
		}
		return s.withController(*ctrl, func(c *mi.Controller) error {
			requested := la.Len
			if err := c.GetLogPage(ctx, la); err != nil {
				return err
			}
			fmt.Fprintf(s.Out, "%s (0x%02x), %d bytes", la.LID, uint8(la.LID), la.Len)
			if la.Len < requested {
				fmt.Fprintf(s.Out, " of %d requested", requested)
			}
			fmt.Fprintln(s.Out, ":")
			fmt.Fprint(s.Out, hex.Dump(la.Log[:la.Len]))
			return nil
		})
	}
}

func printSMART(s *Session, l *nvme.SMARTLog) {
	fmt.Fprintln(s.Out, "SMART / Health Information:")
	field(s.Out, "Critical warning", "0x%02x", l.CriticalWarning)
	field(s.Out, "Temperature", "%d C", l.TemperatureCelsius())
	field(s.Out, "Available spare", "%d%% (threshold %d%%)", l.AvailableSpare, l.SpareThreshold)
	field(s.Out, "Percentage used", "%d%%", l.PercentUsed)
	field(s.Out, "Data units read", "%d", l.DataUnitsRead)
	field(s.Out, "Data units written", "%d", l.DataUnitsWritten)
	field(s.Out, "Host read commands", "%d", l.HostReads)
	field(s.Out, "Host write commands", "%d", l.HostWrites)
	field(s.Out, "Power cycles", "%d", l.PowerCycles)
	field(s.Out, "Power on hours", "%d", l.PowerOnHours)
	field(s.Out, "Unsafe shutdowns", "%d", l.UnsafeShutdowns)
	field(s.Out, "Media errors", "%d", l.MediaErrors)
}
