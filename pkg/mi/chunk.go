package mi

import (
	"context"
	"time"

	"github.com/nvme-mi/nvme-mi-go/pkg/log"
	"github.com/nvme-mi/nvme-mi-go/pkg/wire"
)

// direction is the data phase of a chunked transfer.
type direction uint8

const (
	dataIn direction = iota
	dataOut
)

// overhead returns the header bytes sharing a message with chunk data.
func (d direction) overhead() int {
	if d == dataOut {
		return wire.AdminRequestHeaderSize
	}
	return wire.AdminResponseHeaderSize
}

// chunkCapacity returns the largest dword-multiple chunk that fits a message
// of maxMsg bytes in direction d.
func chunkCapacity(maxMsg int, d direction) (int, error) {
	c := min(maxMsg-d.overhead(), maxChunkSize) &^ 0x3
	if c <= 0 {
		return 0, invalidArgument("max message size %d leaves no room for data", maxMsg)
	}
	return c, nil
}

// transfer describes one logical Admin command whose payload may span several
// exchanges.
type transfer struct {
	// name labels chunk events and log lines.
	name string

	dir direction

	// offset is the payload offset of buf[0].
	offset uint32

	// buf is filled (data-in) or sent (data-out); its length is the number
	// of bytes to transfer.
	buf []byte

	// build returns the request for one chunk. final is set on the chunk
	// that completes the requested length.
	build func(chunkLen uint32, final bool) *wire.AdminRequest
}

// run issues the chunks of t in order. It returns the number of bytes
// transferred and completion dword 0 of the last chunk.
//
// A chunk returning fewer bytes than requested ends the transfer early
// without error. Any failing chunk aborts the transfer; its error is
// returned with a count of zero.
func (c *Controller) run(ctx context.Context, t *transfer) (int, uint32, error) {
	if err := c.checkValid(); err != nil {
		return 0, 0, err
	}
	capacity, err := chunkCapacity(c.ep.MaxMessageSize(), t.dir)
	if err != nil {
		return 0, 0, err
	}

	var (
		cursor int
		result uint32
		total  = len(t.buf)
	)
	for index := 0; cursor < total; index++ {
		n := min(capacity, total-cursor)
		final := cursor+n == total
		off := t.offset + uint32(cursor)
		req := t.build(uint32(n), final)

		var (
			resp *wire.AdminResponse
			got  int
		)
		if t.dir == dataIn {
			resp, got, err = c.AdminXfer(ctx, req, nil, int(off), t.buf[cursor:cursor+n])
		} else {
			req.SetDataWindow(off, uint32(n))
			resp, _, err = c.AdminXfer(ctx, req, t.buf[cursor:cursor+n], 0, nil)
			got = n
		}
		if err != nil {
			c.ep.root.debugLog("transfer aborted", "endpoint", c.ep.id, "ctrl_id", c.id,
				"command", t.name, "chunk", index, "offset", off, "error", err)
			c.logChunk(t.name, index, off, n, 0, true)
			return 0, 0, err
		}

		result = resp.CDW0
		cursor += got
		short := got < n
		c.logChunk(t.name, index, off, n, got, final || short)
		if short {
			c.ep.root.debugLog("short transfer", "endpoint", c.ep.id, "ctrl_id", c.id,
				"command", t.name, "offset", off, "requested", n, "returned", got, "total", cursor)
			break
		}
	}
	return cursor, result, nil
}

func (c *Controller) logChunk(name string, index int, off uint32, requested, returned int, final bool) {
	c.ep.root.protocol.Log(log.Event{
		Timestamp:  time.Now(),
		EndpointID: c.ep.id,
		Layer:      log.LayerEngine,
		Category:   log.CategoryChunk,
		Address:    c.ep.address,
		Chunk: &log.ChunkEvent{
			Command:   name,
			Index:     index,
			Offset:    off,
			Requested: uint32(requested),
			Returned:  uint32(returned),
			Final:     final,
		},
	})
}
