// Package header implements the fixed DCCL HEAD layout (spec §4.4): CCL id,
// DCCL id, multi-frame and broadcast flags, source/destination addresses,
// and a coarse time field. The two flags expose indexed mutators so frame
// stitching can flip them in place, without re-encoding the record.
package header

import (
	"fmt"

	"github.com/kstaniek/dccl-acomms/internal/bitstream"
	"github.com/kstaniek/dccl-acomms/internal/dccl/dcclerr"
)

// DcclCCLHeader is the CCL-id byte value reserved for DCCL packets; any
// other CCL-id byte selects a legacy CCL handler instead.
const DcclCCLHeader = 0x20

// BroadcastID is the destination sentinel causing the broadcast flag to be
// set.
const BroadcastID = 0

const cclIDBits = 8
const flagBits = 1

// CCLIDBytes is the CCL-id field's byte width. The field is byte-aligned as
// the first field of every header, so stitching can strip it from non-first
// user-frames and unstitching can restore it without touching any other bit.
const CCLIDBytes = cclIDBits / 8

// Config fixes the configurable field widths for one deployment: DCCL id
// width, source/destination address widths, and the coarse time field
// width, all in bits.
type Config struct {
	DcclIDBits int
	SourceBits int
	DestBits   int
	TimeBits   int
}

// Fields is the decoded (or to-be-encoded) content of one HEAD.
type Fields struct {
	DcclID      uint32
	MultiFrame  bool
	Broadcast   bool
	Source      uint32
	Destination uint32
	Time        uint32
}

// Codec encodes and decodes headers under a fixed Config.
type Codec struct {
	cfg Config
}

// New returns a header Codec for cfg.
func New(cfg Config) *Codec { return &Codec{cfg: cfg} }

// multiFrameOffset returns the multi-frame flag's bit offset within the
// header bitstream (after CCL id and DCCL id).
func (c *Codec) multiFrameOffset() int { return cclIDBits + c.cfg.DcclIDBits }

// broadcastOffset returns the broadcast flag's bit offset.
func (c *Codec) broadcastOffset() int { return c.multiFrameOffset() + flagBits }

// HeaderBits returns the fixed total header width in bits.
func (c *Codec) HeaderBits() int {
	return cclIDBits + c.cfg.DcclIDBits + 2*flagBits + c.cfg.SourceBits + c.cfg.DestBits + c.cfg.TimeBits
}

// EncodeHeader packs f into a fresh header bitstream.
func (c *Codec) EncodeHeader(f Fields) (*bitstream.Bitstream, error) {
	if f.DcclID >= 1<<uint(c.cfg.DcclIDBits) {
		return nil, fmt.Errorf("%w: dccl id %d exceeds %d-bit width", dcclerr.ErrEncodeOverflow, f.DcclID, c.cfg.DcclIDBits)
	}
	w := bitstream.NewWriter()
	w.WriteUint(DcclCCLHeader, cclIDBits)
	w.WriteUint(uint64(f.DcclID), c.cfg.DcclIDBits)
	w.WriteUint(boolBit(f.MultiFrame), flagBits)
	w.WriteUint(boolBit(f.Broadcast), flagBits)
	w.WriteUint(uint64(f.Source), c.cfg.SourceBits)
	w.WriteUint(uint64(f.Destination), c.cfg.DestBits)
	w.WriteUint(uint64(f.Time), c.cfg.TimeBits)
	return w.Bitstream(), nil
}

// DecodeHeader consumes one header's worth of bits from r, returning the
// decoded fields and the number of bits consumed.
func (c *Codec) DecodeHeader(r *bitstream.Reader) (Fields, int, error) {
	start := r.Pos()
	cclID, err := r.ReadUint(cclIDBits)
	if err != nil {
		return Fields{}, 0, dcclerr.ErrDecodeUnderflow
	}
	if cclID != DcclCCLHeader {
		return Fields{}, 0, fmt.Errorf("%w: ccl id 0x%02x is not the DCCL header", dcclerr.ErrDecodeCorrupt, cclID)
	}
	dcclID, err := r.ReadUint(c.cfg.DcclIDBits)
	if err != nil {
		return Fields{}, 0, dcclerr.ErrDecodeUnderflow
	}
	multi, err := r.ReadUint(flagBits)
	if err != nil {
		return Fields{}, 0, dcclerr.ErrDecodeUnderflow
	}
	bcast, err := r.ReadUint(flagBits)
	if err != nil {
		return Fields{}, 0, dcclerr.ErrDecodeUnderflow
	}
	src, err := r.ReadUint(c.cfg.SourceBits)
	if err != nil {
		return Fields{}, 0, dcclerr.ErrDecodeUnderflow
	}
	dst, err := r.ReadUint(c.cfg.DestBits)
	if err != nil {
		return Fields{}, 0, dcclerr.ErrDecodeUnderflow
	}
	tm, err := r.ReadUint(c.cfg.TimeBits)
	if err != nil {
		return Fields{}, 0, dcclerr.ErrDecodeUnderflow
	}
	f := Fields{
		DcclID:      uint32(dcclID),
		MultiFrame:  multi != 0,
		Broadcast:   bcast != 0,
		Source:      uint32(src),
		Destination: uint32(dst),
		Time:        uint32(tm),
	}
	return f, r.Pos() - start, nil
}

// SetMultiFrame flips the multi-frame flag in place on an already-encoded
// header bitstream, per spec's "indexed mutators... without re-encoding
// the whole record."
func (c *Codec) SetMultiFrame(bs *bitstream.Bitstream, v bool) {
	bs.SetBit(c.multiFrameOffset(), v)
}

// SetBroadcast flips the broadcast flag in place.
func (c *Codec) SetBroadcast(bs *bitstream.Bitstream, v bool) {
	bs.SetBit(c.broadcastOffset(), v)
}

func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
