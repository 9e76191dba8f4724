package mi

import (
	"context"

	"github.com/nvme-mi/nvme-mi-go/pkg/nvme"
	"github.com/nvme-mi/nvme-mi-go/pkg/wire"
)

// IdentifyArgs are the parameters of an Identify command.
type IdentifyArgs struct {
	CNS           nvme.CNS
	CSI           nvme.CSI
	NSID          uint32
	CNTID         uint16
	CNSSpecificID uint16
	UUIDIndex     uint8

	// Data receives the identify data. It is allocated when nil.
	Data []byte

	// Result receives completion dword 0 of the last exchange.
	Result uint32
}

// IdentifyCNSNSIDArgs selects a CNS value scoped by namespace id.
func IdentifyCNSNSIDArgs(cns nvme.CNS, nsid uint32, data []byte) *IdentifyArgs {
	return &IdentifyArgs{
		CNS:           cns,
		CSI:           nvme.CSINVM,
		NSID:          nsid,
		CNTID:         nvme.CNTIDNone,
		CNSSpecificID: nvme.CNSSpecificIDNone,
		UUIDIndex:     nvme.UUIDIndexNone,
		Data:          data,
	}
}

// IdentifyCNSCNTIDArgs selects a CNS value scoped by controller id.
func IdentifyCNSCNTIDArgs(cns nvme.CNS, cntid uint16, data []byte) *IdentifyArgs {
	args := IdentifyCNSNSIDArgs(cns, nvme.NSIDNone, data)
	args.CNTID = cntid
	return args
}

// IdentifyControllerArgs selects Identify Controller data.
func IdentifyControllerArgs(data []byte) *IdentifyArgs {
	return IdentifyCNSNSIDArgs(nvme.CNSController, nvme.NSIDNone, data)
}

// IdentifyControllerListArgs selects the subsystem's controller list,
// starting at cntid.
func IdentifyControllerListArgs(cntid uint16, data []byte) *IdentifyArgs {
	return IdentifyCNSCNTIDArgs(nvme.CNSControllerList, cntid, data)
}

// IdentifyNamespaceArgs selects Identify Namespace data for nsid.
func IdentifyNamespaceArgs(nsid uint32, data []byte) *IdentifyArgs {
	return IdentifyCNSNSIDArgs(nvme.CNSNamespace, nsid, data)
}

// IdentifyActiveNamespacesArgs selects the active namespace list above nsid.
func IdentifyActiveNamespacesArgs(nsid uint32, data []byte) *IdentifyArgs {
	return IdentifyCNSNSIDArgs(nvme.CNSNamespaceActiveList, nsid, data)
}

// IdentifyUUIDListArgs selects the UUID list.
func IdentifyUUIDListArgs(data []byte) *IdentifyArgs {
	return IdentifyCNSNSIDArgs(nvme.CNSUUIDList, nvme.NSIDNone, data)
}

// WithUUIDIndex returns a copy of a selecting vendor-specific data through
// UUID index idx.
func (a IdentifyArgs) WithUUIDIndex(idx uint8) *IdentifyArgs {
	a.UUIDIndex = idx
	return &a
}

// request builds the Identify request.
//
//	cdw1   nsid
//	cdw10  cntid << 16 | cns
//	cdw11  csi << 24 | cns-specific id
//	cdw14  uuid index
func (a *IdentifyArgs) request() *wire.AdminRequest {
	req := newAdminRequest(nvme.AdminOpIdentify, a.NSID)
	req.CDW10 = uint32(a.CNTID)<<16 | uint32(a.CNS)
	req.CDW11 = uint32(a.CSI)<<24 | uint32(a.CNSSpecificID)
	req.CDW14 = uint32(a.UUIDIndex & 0x7f)
	return req
}

// Identify reads the full 4096-byte identify data selected by args into
// args.Data and returns the number of bytes received. Fewer bytes than
// requested means the endpoint ended the transfer early.
func (c *Controller) Identify(ctx context.Context, args *IdentifyArgs) (int, error) {
	return c.IdentifyPartial(ctx, args, 0, nvme.IdentifyDataSize)
}

// IdentifyPartial reads size bytes of identify data starting at offset into
// args.Data[:size]. offset must be dword aligned and the window must lie
// within the 4096-byte structure.
func (c *Controller) IdentifyPartial(ctx context.Context, args *IdentifyArgs, offset, size int) (int, error) {
	if err := c.checkValid(); err != nil {
		return 0, err
	}
	if args == nil {
		return 0, invalidArgument("nil identify args")
	}
	if offset < 0 || size < 0 || offset+size > nvme.IdentifyDataSize {
		return 0, invalidArgument("identify window [%d, %d) outside structure", offset, offset+size)
	}
	if offset&0x3 != 0 {
		return 0, invalidArgument("identify offset %d not dword aligned", offset)
	}
	if args.Data == nil {
		args.Data = make([]byte, size)
	}
	if len(args.Data) < size {
		return 0, invalidArgument("identify buffer %d bytes, need %d", len(args.Data), size)
	}

	n, result, err := c.run(ctx, &transfer{
		name:   "IDENTIFY",
		dir:    dataIn,
		offset: uint32(offset),
		buf:    args.Data[:size],
		build: func(uint32, bool) *wire.AdminRequest {
			return args.request()
		},
	})
	if err != nil {
		return 0, err
	}
	args.Result = result
	return n, nil
}

// identifyFull reads the whole structure selected by args. Short results
// are left to the decoders to reject.
func (c *Controller) identifyFull(ctx context.Context, args *IdentifyArgs) ([]byte, error) {
	n, err := c.Identify(ctx, args)
	if err != nil {
		return nil, err
	}
	return args.Data[:n], nil
}

// IdentifyController reads and decodes Identify Controller data.
func (c *Controller) IdentifyController(ctx context.Context) (*nvme.ControllerIdentity, error) {
	data, err := c.identifyFull(ctx, IdentifyControllerArgs(nil))
	if err != nil {
		return nil, err
	}
	return nvme.ParseIdentifyController(data)
}

// IdentifyControllerList reads the list of controllers in the subsystem
// with identifiers at or above cntid.
func (c *Controller) IdentifyControllerList(ctx context.Context, cntid uint16) (*nvme.ControllerList, error) {
	data, err := c.identifyFull(ctx, IdentifyControllerListArgs(cntid, nil))
	if err != nil {
		return nil, err
	}
	return nvme.ParseControllerList(data)
}

// IdentifyNamespace reads and decodes Identify Namespace data for nsid.
func (c *Controller) IdentifyNamespace(ctx context.Context, nsid uint32) (*nvme.NamespaceIdentity, error) {
	data, err := c.identifyFull(ctx, IdentifyNamespaceArgs(nsid, nil))
	if err != nil {
		return nil, err
	}
	return nvme.ParseIdentifyNamespace(data)
}

// IdentifyActiveNamespaces returns the active namespace ids above nsid.
func (c *Controller) IdentifyActiveNamespaces(ctx context.Context, nsid uint32) ([]uint32, error) {
	data, err := c.identifyFull(ctx, IdentifyActiveNamespacesArgs(nsid, nil))
	if err != nil {
		return nil, err
	}
	return nvme.ParseNamespaceList(data), nil
}

// IdentifyUUIDList reads the UUID list.
func (c *Controller) IdentifyUUIDList(ctx context.Context) ([]nvme.UUIDListEntry, error) {
	data, err := c.identifyFull(ctx, IdentifyUUIDListArgs(nil))
	if err != nil {
		return nil, err
	}
	return nvme.ParseUUIDList(data)
}
