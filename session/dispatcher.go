package session

import (
	"fmt"
	"log"

	"golang.org/x/net/context"

	"github.com/xenproject/goblkif/blkif"
)

// SectorBytes is the physical sector size the Segment.FirstSector/LastSector
// fields are expressed in (spec: "a standard page holds 8 sectors of 512
// bytes").
const SectorBytes = 512

// GrantMapper stands in for the shared-memory grant/DMA mechanism the core
// spec names out of scope: given an opaque grant reference it returns
// either the backing buffer for a direct data segment, or - for an
// indirect request - the further Segment records that page holds.
type GrantMapper interface {
	MapSegment(ctx context.Context, gref uint32) ([]byte, error)
	MapIndirectPage(ctx context.Context, gref uint32) ([]blkif.Segment, error)
}

// Dispatcher pairs a ring codec and a Backend to execute the request in one
// slot and write its response back into the same slot - the in-process
// analogue of the teacher's Receive/Dispatch/Transmit goroutine trio,
// collapsed to a single synchronous call since the ring's own producer/
// consumer discipline (and therefore when a slot is safe to touch) is the
// surrounding ring component's job, not this package's.
type Dispatcher struct {
	logger  *log.Logger
	codec   blkif.RequestCodec
	backend Backend
	grants  GrantMapper
}

// NewDispatcher returns a Dispatcher using codec to marshal slots, backend
// to execute I/O, and grants to resolve grant references to data.
func NewDispatcher(logger *log.Logger, codec blkif.RequestCodec, backend Backend, grants GrantMapper) *Dispatcher {
	return &Dispatcher{logger: logger, codec: codec, backend: backend, grants: grants}
}

// ProcessSlot decodes the Request in slot, executes it, and overwrites slot
// with the encoded Response. The caller is responsible for slot boundaries
// and for having exclusive access to slot for the duration of the call.
func (d *Dispatcher) ProcessSlot(ctx context.Context, slot []byte) error {
	req, err := d.codec.ReadRequest(slot)
	if err != nil {
		d.logger.Printf("[ERROR] could not decode request slot: %v", err)
		return err
	}
	resp := d.execute(ctx, req)
	if err := blkif.WriteResponse(slot, resp); err != nil {
		d.logger.Printf("[ERROR] could not encode response slot for id %d: %v", req.ID, err)
		return err
	}
	return nil
}

func (d *Dispatcher) execute(ctx context.Context, req blkif.Request) blkif.Response {
	if !req.Op.Valid {
		d.logger.Printf("[WARN] request id %d carries an unrecognised op", req.ID)
		return blkif.Response{Op: req.Op, St: blkif.SomeRsp(blkif.RspNotSupported), ID: req.ID}
	}

	switch req.Op.Op {
	case blkif.OpRead:
		return d.executeIO(ctx, req, d.backend.ReadSegment)
	case blkif.OpWrite, blkif.OpWriteBarrier:
		resp := d.executeIO(ctx, req, d.backend.WriteSegment)
		if req.Op.Op == blkif.OpWriteBarrier && resp.St.Rsp == blkif.RspOK {
			if err := d.backend.Flush(ctx); err != nil {
				d.logger.Printf("[WARN] request id %d: barrier flush failed: %v", req.ID, err)
				return blkif.Response{Op: req.Op, St: blkif.SomeRsp(blkif.RspError), ID: req.ID}
			}
		}
		return resp
	case blkif.OpFlush:
		if err := d.backend.Flush(ctx); err != nil {
			d.logger.Printf("[WARN] request id %d: flush failed: %v", req.ID, err)
			return blkif.Response{Op: req.Op, St: blkif.SomeRsp(blkif.RspError), ID: req.ID}
		}
		return blkif.Response{Op: req.Op, St: blkif.SomeRsp(blkif.RspOK), ID: req.ID}
	default:
		d.logger.Printf("[INFO] request id %d: op %s not supported", req.ID, req.Op.Op)
		return blkif.Response{Op: req.Op, St: blkif.SomeRsp(blkif.RspNotSupported), ID: req.ID}
	}
}

type segmentIO func(ctx context.Context, seg blkif.Segment, sector uint64, buf []byte) error

func (d *Dispatcher) executeIO(ctx context.Context, req blkif.Request, io segmentIO) blkif.Response {
	segs, err := d.resolveSegments(ctx, req)
	if err != nil {
		d.logger.Printf("[ERROR] request id %d: could not resolve segments: %v", req.ID, err)
		return blkif.Response{Op: req.Op, St: blkif.SomeRsp(blkif.RspError), ID: req.ID}
	}
	sector := req.Sector
	for _, seg := range segs {
		n := int(seg.LastSector-seg.FirstSector+1) * SectorBytes
		buf, err := d.grants.MapSegment(ctx, seg.Gref)
		if err != nil {
			d.logger.Printf("[ERROR] request id %d: could not map gref %d: %v", req.ID, seg.Gref, err)
			return blkif.Response{Op: req.Op, St: blkif.SomeRsp(blkif.RspError), ID: req.ID}
		}
		if len(buf) < n {
			return blkif.Response{Op: req.Op, St: blkif.SomeRsp(blkif.RspError), ID: req.ID}
		}
		if err := io(ctx, seg, sector, buf[:n]); err != nil {
			d.logger.Printf("[WARN] request id %d: segment I/O failed: %v", req.ID, err)
			return blkif.Response{Op: req.Op, St: blkif.SomeRsp(blkif.RspError), ID: req.ID}
		}
		sector += uint64(seg.LastSector-seg.FirstSector) + 1
	}
	return blkif.Response{Op: req.Op, St: blkif.SomeRsp(blkif.RspOK), ID: req.ID}
}

// resolveSegments turns a Request's Segs (direct or indirect) into a flat
// list of Segment records, dereferencing indirect grant pages via d.grants
// - the one place this package crosses the "grant mechanism" boundary the
// core spec marks external.
func (d *Dispatcher) resolveSegments(ctx context.Context, req blkif.Request) ([]blkif.Segment, error) {
	switch segs := req.Segs.(type) {
	case blkif.DirectSegments:
		return []blkif.Segment(segs), nil
	case blkif.IndirectGrants:
		out := make([]blkif.Segment, 0, req.NrSegs)
		remaining := req.NrSegs
		for _, gref := range segs {
			page, err := d.grants.MapIndirectPage(ctx, gref)
			if err != nil {
				return nil, err
			}
			take := remaining
			if take > len(page) {
				take = len(page)
			}
			out = append(out, page[:take]...)
			remaining -= take
		}
		return out, nil
	default:
		return nil, fmt.Errorf("session: request has no segment payload")
	}
}
