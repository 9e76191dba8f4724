package mi

import (
	"context"
	"fmt"

	"github.com/nvme-mi/nvme-mi-go/pkg/log"
	"github.com/nvme-mi/nvme-mi-go/pkg/wire"
)

// maxChunkSize bounds the data carried by a single Admin exchange.
const maxChunkSize = 4096

// AdminXfer sends one Admin command and returns the decoded response and the
// number of response data bytes copied into respData.
//
// The caller fills the opcode and command dwords of req; AdminXfer stamps the
// message header and controller id. reqData is sent after the request header
// (data-out). For data-in commands respData receives the response data and
// respOffset selects the window start within the command's full payload;
// DLEN and DOFF are set from them. A command cannot carry data both ways.
//
// The response is returned with a *wire.StatusError when the MI status or
// the relayed NVMe status is non-zero.
func (c *Controller) AdminXfer(ctx context.Context, req *wire.AdminRequest, reqData []byte, respOffset int, respData []byte) (*wire.AdminResponse, int, error) {
	if err := c.checkValid(); err != nil {
		return nil, 0, err
	}
	if req == nil {
		return nil, 0, invalidArgument("nil request")
	}
	if err := c.checkXfer(len(reqData), respOffset, len(respData)); err != nil {
		return nil, 0, err
	}

	req.Header = wire.NewHeader(wire.ClassAdmin, wire.RoleRequest, 0)
	req.CtrlID = c.id
	if len(respData) > 0 {
		req.SetDataWindow(uint32(respOffset), uint32(len(respData)))
	}

	ep := c.ep
	reqEvent := adminRequestEvent(req, len(reqData))
	raw, latency, err := ep.exchange(ctx, wire.EncodeAdminRequest(req, reqData), reqEvent)
	if err != nil {
		return nil, 0, err
	}

	resp, err := wire.DecodeAdminResponse(raw, req.Header)
	if err != nil {
		ep.logError(log.LayerWire, err, describe(reqEvent))
		return nil, 0, err
	}
	nvmeStatus := resp.NVMeStatus()
	ep.logMessage(log.DirectionIn, &log.MessageEvent{
		Class:      wire.ClassAdmin,
		Role:       wire.RoleResponse,
		Status:     &resp.Status,
		NVMeStatus: &nvmeStatus,
		DataLen:    len(resp.Data),
		Latency:    &latency,
	})

	if err := resp.Err(); err != nil {
		return resp, 0, err
	}
	if len(resp.Data) > len(respData) {
		err := fmt.Errorf("%w: %d bytes of response data, %d requested",
			wire.ErrMalformedResponse, len(resp.Data), len(respData))
		ep.logError(log.LayerWire, err, describe(reqEvent))
		return nil, 0, err
	}
	n := copy(respData, resp.Data)
	return resp, n, nil
}

// checkXfer validates the data phase of a raw Admin transfer.
func (c *Controller) checkXfer(reqLen, respOffset, respLen int) error {
	switch {
	case respLen > maxChunkSize:
		return invalidArgument("response data length %d exceeds %d", respLen, maxChunkSize)
	case respOffset < 0 || respOffset&0x3 != 0:
		return invalidArgument("response data offset %d not dword aligned", respOffset)
	case reqLen > 0 && respLen > 0:
		return invalidArgument("bidirectional data transfer")
	case respLen == 0 && respOffset != 0:
		return invalidArgument("response data offset without length")
	case reqLen&0x3 != 0:
		return invalidArgument("request data length %d not a dword multiple", reqLen)
	}

	maxMsg := c.ep.MaxMessageSize()
	if n := wire.AdminRequestHeaderSize + reqLen; n > maxMsg {
		return invalidArgument("request message size %d exceeds %d", n, maxMsg)
	}
	if n := wire.AdminResponseHeaderSize + respLen; n > maxMsg {
		return invalidArgument("response message size %d exceeds %d", n, maxMsg)
	}
	return nil
}

func adminRequestEvent(req *wire.AdminRequest, dataLen int) *log.MessageEvent {
	op, ctrlID := req.Opcode, req.CtrlID
	ev := &log.MessageEvent{
		Class:   wire.ClassAdmin,
		Role:    wire.RoleRequest,
		Opcode:  &op,
		CtrlID:  &ctrlID,
		DataLen: dataLen,
	}
	if req.Flags&wire.AdminFlagDLENValid != 0 {
		dlen := req.DLEN
		ev.DLEN = &dlen
	}
	if req.Flags&wire.AdminFlagDOFFValid != 0 {
		doff := req.DOFF
		ev.DOFF = &doff
	}
	return ev
}

// newAdminRequest starts an Admin request for op with the namespace id in
// cdw1.
func newAdminRequest(op uint8, nsid uint32) *wire.AdminRequest {
	req := wire.NewAdminRequest(op, 0)
	req.CDW1 = nsid
	return req
}
