package mi

import (
	"context"

	"github.com/nvme-mi/nvme-mi-go/pkg/nvme"
	"github.com/nvme-mi/nvme-mi-go/pkg/wire"
)

// GetLogPageArgs are the parameters of a Get Log Page command.
type GetLogPageArgs struct {
	LID       nvme.LogID
	NSID      uint32
	LPO       uint64 // log page offset, in bytes
	LSP       uint8  // log specific parameter
	LSI       uint16 // log specific identifier
	RAE       bool   // retain asynchronous event
	UUIDIndex uint8
	CSI       nvme.CSI
	OT        bool // offset type: LPO is an index, not a byte offset

	// Log receives the log data. It is allocated when nil.
	Log []byte

	// Len is the number of bytes to read, a dword multiple. On success it
	// is updated to the number of bytes received.
	Len uint32

	// Result receives completion dword 0 of the last exchange.
	Result uint32
}

// request builds the Get Log Page request for one chunk. RAE is forced on
// every chunk but the last so the endpoint keeps the event pending until
// the whole page has been read.
//
//	cdw10  numdl << 16 | rae << 15 | lsp << 8 | lid
//	cdw11  lsi << 16 | numdu
//	cdw12  lpo (low)
//	cdw13  lpo (high)
//	cdw14  csi << 24 | ot << 23 | uuid index
func (a *GetLogPageArgs) request(chunkLen uint32, final bool) *wire.AdminRequest {
	ndw := chunkLen/4 - 1

	req := newAdminRequest(nvme.AdminOpGetLogPage, a.NSID)
	req.CDW10 = (ndw&0xffff)<<16 | uint32(a.LSP&0x7f)<<8 | uint32(a.LID)
	if !final || a.RAE {
		req.CDW10 |= 1 << 15
	}
	req.CDW11 = uint32(a.LSI)<<16 | ndw>>16
	req.CDW12 = uint32(a.LPO)
	req.CDW13 = uint32(a.LPO >> 32)
	req.CDW14 = uint32(a.CSI)<<24 | uint32(a.UUIDIndex&0x7f)
	if a.OT {
		req.CDW14 |= 1 << 23
	}
	return req
}

// GetLogPage reads args.Len bytes of the log page selected by args into
// args.Log and updates args.Len to the number of bytes received.
func (c *Controller) GetLogPage(ctx context.Context, args *GetLogPageArgs) error {
	if err := c.checkValid(); err != nil {
		return err
	}
	if args == nil {
		return invalidArgument("nil log page args")
	}
	if args.Len&0x3 != 0 {
		return invalidArgument("log length %d not a dword multiple", args.Len)
	}
	if args.Log == nil {
		args.Log = make([]byte, args.Len)
	}
	if uint32(len(args.Log)) < args.Len {
		return invalidArgument("log buffer %d bytes, need %d", len(args.Log), args.Len)
	}

	n, result, err := c.run(ctx, &transfer{
		name:  "GET_LOG_PAGE",
		dir:   dataIn,
		buf:   args.Log[:args.Len],
		build: args.request,
	})
	if err != nil {
		return err
	}
	args.Len = uint32(n)
	args.Result = result
	return nil
}

// GetSMARTLog reads and decodes the SMART / Health Information log page.
// Use nvme.NSIDAll for the controller-wide page.
func (c *Controller) GetSMARTLog(ctx context.Context, nsid uint32) (*nvme.SMARTLog, error) {
	args := &GetLogPageArgs{
		LID:  nvme.LogSMART,
		NSID: nsid,
		Len:  nvme.SMARTLogSize,
	}
	if err := c.GetLogPage(ctx, args); err != nil {
		return nil, err
	}
	return nvme.ParseSMARTLog(args.Log[:args.Len])
}
