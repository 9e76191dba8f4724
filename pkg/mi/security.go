package mi

import (
	"context"

	"github.com/nvme-mi/nvme-mi-go/pkg/nvme"
	"github.com/nvme-mi/nvme-mi-go/pkg/wire"
)

// SecurityArgs are the parameters of Security Send and Security Receive.
// The protocol selector fields are sent unchanged in every exchange.
type SecurityArgs struct {
	NSID  uint32
	SECP  uint8 // security protocol
	SPSP0 uint8 // protocol specific, low byte
	SPSP1 uint8 // protocol specific, high byte
	NSSF  uint8 // NVMe security specific field

	// Data holds the payload to send, or receives the payload. It is
	// allocated for Security Receive when nil.
	Data []byte

	// Len is the payload length, a dword multiple for Security Send.
	// Security Receive updates it to the number of bytes received.
	Len uint32

	// Result receives completion dword 0 of the last exchange.
	Result uint32
}

// request builds a Security Send or Receive request.
//
//	cdw10  secp << 24 | spsp1 << 16 | spsp0 << 8 | nssf
//	cdw11  transfer length (whole payload)
func (a *SecurityArgs) request(op uint8) *wire.AdminRequest {
	req := newAdminRequest(op, a.NSID)
	req.CDW10 = uint32(a.SECP)<<24 | uint32(a.SPSP1)<<16 | uint32(a.SPSP0)<<8 | uint32(a.NSSF)
	req.CDW11 = a.Len
	return req
}

func (a *SecurityArgs) check() error {
	if a == nil {
		return invalidArgument("nil security args")
	}
	if uint32(len(a.Data)) < a.Len {
		return invalidArgument("security buffer %d bytes, need %d", len(a.Data), a.Len)
	}
	return nil
}

// SecuritySend sends args.Data[:args.Len] to the security protocol selected
// by args.
func (c *Controller) SecuritySend(ctx context.Context, args *SecurityArgs) error {
	if err := c.checkValid(); err != nil {
		return err
	}
	if err := args.check(); err != nil {
		return err
	}
	if args.Len&0x3 != 0 {
		return invalidArgument("security send length %d not a dword multiple", args.Len)
	}

	_, result, err := c.run(ctx, &transfer{
		name: "SECURITY_SEND",
		dir:  dataOut,
		buf:  args.Data[:args.Len],
		build: func(uint32, bool) *wire.AdminRequest {
			return args.request(nvme.AdminOpSecuritySend)
		},
	})
	if err != nil {
		return err
	}
	args.Result = result
	return nil
}

// SecurityReceive reads up to args.Len bytes from the security protocol
// selected by args into args.Data and updates args.Len to the number of
// bytes received.
func (c *Controller) SecurityReceive(ctx context.Context, args *SecurityArgs) error {
	if err := c.checkValid(); err != nil {
		return err
	}
	if args != nil && args.Data == nil {
		args.Data = make([]byte, args.Len)
	}
	if err := args.check(); err != nil {
		return err
	}

	n, result, err := c.run(ctx, &transfer{
		name: "SECURITY_RECV",
		dir:  dataIn,
		buf:  args.Data[:args.Len],
		build: func(uint32, bool) *wire.AdminRequest {
			return args.request(nvme.AdminOpSecurityRecv)
		},
	})
	if err != nil {
		return err
	}
	args.Len = uint32(n)
	args.Result = result
	return nil
}
