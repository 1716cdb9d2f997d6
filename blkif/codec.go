package blkif

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/xenproject/goblkif/blkif/wire"
)

// RequestCodec is implemented by Codec32 and Codec64: the two ABI-specific
// ring marshallers. Each is capable of both the direct and indirect request
// forms, selected by the concrete type of Request.Segs on write and
// auto-detected from the slot's op byte on read - together these cover all
// four marshaller combinations the spec requires.
type RequestCodec interface {
	WriteRequest(slot []byte, req Request) (uint64, error)
	ReadRequest(slot []byte) (Request, error)
	SlotSize() int
}

// Codec64 is the 64-bit ABI ring marshaller.
type Codec64 struct{}

// Codec32 is the 32-bit ABI ring marshaller.
type Codec32 struct{}

func (Codec64) SlotSize() int { return wire.SlotSize64 }
func (Codec32) SlotSize() int { return wire.SlotSize32 }

// opToByte maps an optional Op to its wire byte, using the 0xFF sentinel
// for absent - sentinel integers never appear anywhere except at this edge.
func opToByte(op OptOp) uint8 {
	if !op.Valid {
		return wire.NoOpByte
	}
	return op.Op.ToInt()
}

func byteToOp(b uint8) OptOp {
	if op, ok := OpFromInt(b); ok {
		return SomeOp(op)
	}
	return NoOp
}

func rspToWord(st OptRsp) uint16 {
	if !st.Valid {
		return wire.NoRspWord
	}
	return st.Rsp.ToInt()
}

// wordToRsp is the canonical decoder called out in the design notes: 0xFFFF
// collides between "absent" and RspError, and this decoder always prefers
// RspError for that bit pattern.
func wordToRsp(v uint16) OptRsp {
	if rsp, ok := RspFromInt(v); ok {
		return SomeRsp(rsp)
	}
	return NoRsp
}

func writeStruct(buf *bytes.Buffer, data any) error {
	return binary.Write(buf, binary.LittleEndian, data)
}

func readStruct(r *bytes.Reader, data any) error {
	return binary.Read(r, binary.LittleEndian, data)
}

// WriteRequest encodes req into slot under the 64-bit ABI. slot must have
// spare capacity for at least Codec64{}.SlotSize() bytes; the returned id
// lets callers track completions regardless of which branch was taken.
func (Codec64) WriteRequest(slot []byte, req Request) (uint64, error) {
	buf := bytes.NewBuffer(slot[:0])
	switch segs := req.Segs.(type) {
	case DirectSegments:
		if len(segs) > wire.SegmentsPerRequest {
			return req.ID, fmt.Errorf("blkif: %d segments exceeds direct request limit of %d", len(segs), wire.SegmentsPerRequest)
		}
		hdr := wire.DirectHeader64{
			Op:     opToByte(req.Op),
			NrSegs: uint8(len(segs)),
			Handle: req.Handle,
			ID:     req.ID,
			Sector: req.Sector,
		}
		if err := writeStruct(buf, &hdr); err != nil {
			return req.ID, err
		}
		for _, seg := range segs {
			wseg := wire.Segment{Gref: seg.Gref, FirstSector: seg.FirstSector, LastSector: seg.LastSector}
			if err := writeStruct(buf, &wseg); err != nil {
				return req.ID, err
			}
		}
		return req.ID, nil
	case IndirectGrants:
		hdr := wire.IndirectHeader64{
			Op:         wire.IndirectOpTag,
			IndirectOp: opToByte(req.Op),
			NrSegs:     uint16(req.NrSegs),
			ID:         req.ID,
			Sector:     req.Sector,
			Handle:     req.Handle,
		}
		if err := writeStruct(buf, &hdr); err != nil {
			return req.ID, err
		}
		for _, gref := range segs {
			if err := writeStruct(buf, gref); err != nil {
				return req.ID, err
			}
		}
		return req.ID, nil
	default:
		return req.ID, fmt.Errorf("blkif: request has no segment payload")
	}
}

// ReadRequest decodes slot under the 64-bit ABI, dispatching on the op byte
// per spec 4.5's read algorithm.
func (Codec64) ReadRequest(slot []byte) (Request, error) {
	if len(slot) < wire.DirectHeader64Size {
		return Request{}, fmt.Errorf("blkif: slot too short for direct header")
	}
	if slot[0] == wire.IndirectOpTag {
		if len(slot) < wire.IndirectHeader64Size {
			return Request{}, fmt.Errorf("blkif: slot too short for indirect header")
		}
		var hdr wire.IndirectHeader64
		if err := readStruct(bytes.NewReader(slot), &hdr); err != nil {
			return Request{}, err
		}
		grefs, err := readGrefs(slot[wire.IndirectHeader64Size:], int(hdr.NrSegs))
		if err != nil {
			return Request{}, err
		}
		return Request{
			Op:     byteToOp(hdr.IndirectOp),
			Handle: hdr.Handle,
			ID:     hdr.ID,
			Sector: hdr.Sector,
			NrSegs: int(hdr.NrSegs),
			Segs:   IndirectGrants(grefs),
		}, nil
	}
	var hdr wire.DirectHeader64
	if err := readStruct(bytes.NewReader(slot), &hdr); err != nil {
		return Request{}, err
	}
	segs, err := readSegments(slot[wire.DirectHeader64Size:], int(hdr.NrSegs))
	if err != nil {
		return Request{}, err
	}
	return Request{
		Op:     byteToOp(hdr.Op),
		Handle: hdr.Handle,
		ID:     hdr.ID,
		Sector: hdr.Sector,
		NrSegs: int(hdr.NrSegs),
		Segs:   DirectSegments(segs),
	}, nil
}

// WriteRequest encodes req into slot under the 32-bit ABI (no header pad
// words).
func (Codec32) WriteRequest(slot []byte, req Request) (uint64, error) {
	buf := bytes.NewBuffer(slot[:0])
	switch segs := req.Segs.(type) {
	case DirectSegments:
		if len(segs) > wire.SegmentsPerRequest {
			return req.ID, fmt.Errorf("blkif: %d segments exceeds direct request limit of %d", len(segs), wire.SegmentsPerRequest)
		}
		hdr := wire.DirectHeader32{
			Op:     opToByte(req.Op),
			NrSegs: uint8(len(segs)),
			Handle: req.Handle,
			ID:     req.ID,
			Sector: req.Sector,
		}
		if err := writeStruct(buf, &hdr); err != nil {
			return req.ID, err
		}
		for _, seg := range segs {
			wseg := wire.Segment{Gref: seg.Gref, FirstSector: seg.FirstSector, LastSector: seg.LastSector}
			if err := writeStruct(buf, &wseg); err != nil {
				return req.ID, err
			}
		}
		return req.ID, nil
	case IndirectGrants:
		hdr := wire.IndirectHeader32{
			Op:         wire.IndirectOpTag,
			IndirectOp: opToByte(req.Op),
			NrSegs:     uint16(req.NrSegs),
			ID:         req.ID,
			Sector:     req.Sector,
			Handle:     req.Handle,
		}
		if err := writeStruct(buf, &hdr); err != nil {
			return req.ID, err
		}
		for _, gref := range segs {
			if err := writeStruct(buf, gref); err != nil {
				return req.ID, err
			}
		}
		return req.ID, nil
	default:
		return req.ID, fmt.Errorf("blkif: request has no segment payload")
	}
}

// ReadRequest decodes slot under the 32-bit ABI.
func (Codec32) ReadRequest(slot []byte) (Request, error) {
	if len(slot) < wire.DirectHeader32Size {
		return Request{}, fmt.Errorf("blkif: slot too short for direct header")
	}
	if slot[0] == wire.IndirectOpTag {
		if len(slot) < wire.IndirectHeader32Size {
			return Request{}, fmt.Errorf("blkif: slot too short for indirect header")
		}
		var hdr wire.IndirectHeader32
		if err := readStruct(bytes.NewReader(slot), &hdr); err != nil {
			return Request{}, err
		}
		grefs, err := readGrefs(slot[wire.IndirectHeader32Size:], int(hdr.NrSegs))
		if err != nil {
			return Request{}, err
		}
		return Request{
			Op:     byteToOp(hdr.IndirectOp),
			Handle: hdr.Handle,
			ID:     hdr.ID,
			Sector: hdr.Sector,
			NrSegs: int(hdr.NrSegs),
			Segs:   IndirectGrants(grefs),
		}, nil
	}
	var hdr wire.DirectHeader32
	if err := readStruct(bytes.NewReader(slot), &hdr); err != nil {
		return Request{}, err
	}
	segs, err := readSegments(slot[wire.DirectHeader32Size:], int(hdr.NrSegs))
	if err != nil {
		return Request{}, err
	}
	return Request{
		Op:     byteToOp(hdr.Op),
		Handle: hdr.Handle,
		ID:     hdr.ID,
		Sector: hdr.Sector,
		NrSegs: int(hdr.NrSegs),
		Segs:   DirectSegments(segs),
	}, nil
}

func readSegments(payload []byte, nrSegs int) ([]Segment, error) {
	segs := make([]Segment, 0, nrSegs)
	for i := 0; i < nrSegs; i++ {
		off := i * wire.SegmentSize
		if off+wire.SegmentSize > len(payload) {
			return nil, fmt.Errorf("blkif: direct payload truncated at segment %d", i)
		}
		var wseg wire.Segment
		if err := readStruct(bytes.NewReader(payload[off:off+wire.SegmentSize]), &wseg); err != nil {
			return nil, err
		}
		segs = append(segs, Segment{Gref: wseg.Gref, FirstSector: wseg.FirstSector, LastSector: wseg.LastSector})
	}
	return segs, nil
}

func readGrefs(payload []byte, nrSegs int) ([]uint32, error) {
	nrGrefs := (nrSegs + wire.SegmentsPerGrefPage - 1) / wire.SegmentsPerGrefPage
	grefs := make([]uint32, 0, nrGrefs)
	for i := 0; i < nrGrefs; i++ {
		off := i * 4
		if off+4 > len(payload) {
			return nil, fmt.Errorf("blkif: indirect payload truncated at gref %d", i)
		}
		grefs = append(grefs, binary.LittleEndian.Uint32(payload[off:off+4]))
	}
	return grefs, nil
}

// WriteResponse encodes resp into slot. The layout is identical on both
// ABIs (the 64-bit trailing pad word is never touched), so there is only
// one response marshaller.
func WriteResponse(slot []byte, resp Response) error {
	buf := bytes.NewBuffer(slot[:0])
	layout := wire.ResponseLayout{
		ID: resp.ID,
		Op: opToByte(resp.Op),
		St: rspToWord(resp.St),
	}
	return writeStruct(buf, &layout)
}

// ReadResponse decodes a response previously written by WriteResponse.
func ReadResponse(slot []byte) (Response, error) {
	if len(slot) < wire.ResponseSize {
		return Response{}, fmt.Errorf("blkif: slot too short for response")
	}
	var layout wire.ResponseLayout
	if err := readStruct(bytes.NewReader(slot), &layout); err != nil {
		return Response{}, err
	}
	return Response{
		ID: layout.ID,
		Op: byteToOp(layout.Op),
		St: wordToRsp(layout.St),
	}, nil
}
