package fieldcodec

import (
	"github.com/kstaniek/dccl-acomms/internal/bitstream"
	"github.com/kstaniek/dccl-acomms/internal/dccl/dcclerr"
	"github.com/kstaniek/dccl-acomms/internal/dccl/value"
)

// BoundedIntCodec packs an integer known to lie in [Lo, Hi] into
// ceil(log2(Hi-Lo+2)) bits: the range itself plus one sentinel value,
// hi-lo+1, reserved to mean "field absent."
type BoundedIntCodec struct {
	Lo, Hi int64
	hook   HookFunc
}

// NewBoundedIntCodec returns a codec for the inclusive range [lo, hi].
func NewBoundedIntCodec(lo, hi int64) *BoundedIntCodec {
	return &BoundedIntCodec{Lo: lo, Hi: hi, hook: func(value.Value) {}}
}

func (c *BoundedIntCodec) nBits() int {
	rng := uint64(c.Hi - c.Lo)
	return countBits(rng + 1)
}

func (c *BoundedIntCodec) sentinel() uint64 {
	return uint64(c.Hi-c.Lo) + 1
}

func (c *BoundedIntCodec) Encode(v value.Value) (*bitstream.Bitstream, error) {
	c.Hooks(v)
	if !v.Present {
		return bitstream.NewFromUnsigned(c.nBits(), c.sentinel()), nil
	}
	if v.Kind != value.KindInt {
		return nil, fmtErr("bounded int codec: wrong kind %s", v.Kind)
	}
	if v.I < c.Lo || v.I > c.Hi {
		return nil, dcclerr.ErrEncodeOverflow
	}
	return bitstream.NewFromUnsigned(c.nBits(), uint64(v.I-c.Lo)), nil
}

func (c *BoundedIntCodec) Decode(r *bitstream.Reader) (value.Value, error) {
	raw, err := r.ReadUint(c.nBits())
	if err != nil {
		return value.Value{}, dcclerr.ErrDecodeUnderflow
	}
	if raw == c.sentinel() {
		return value.Missing(value.KindInt), nil
	}
	if raw > c.sentinel() {
		return value.Value{}, dcclerr.ErrDecodeCorrupt
	}
	return value.Int(c.Lo + int64(raw)), nil
}

func (c *BoundedIntCodec) EncodeRepeated(vs []value.Value, maxRepeat int) (*bitstream.Bitstream, error) {
	return encodeRepeatedDefault(c, vs, maxRepeat)
}

func (c *BoundedIntCodec) DecodeRepeated(r *bitstream.Reader, maxRepeat int) ([]value.Value, error) {
	return decodeRepeatedDefault(c, r, maxRepeat)
}

func (c *BoundedIntCodec) MinSizeBits() int { return c.nBits() }
func (c *BoundedIntCodec) MaxSizeBits() int { return c.nBits() }

func (c *BoundedIntCodec) Validate() error {
	if c.Hi < c.Lo {
		return fmtErr("bounded int codec: hi %d < lo %d", c.Hi, c.Lo)
	}
	return nil
}

func (c *BoundedIntCodec) Hooks(v value.Value) {
	if c.hook != nil {
		c.hook(v)
	}
}

func (c *BoundedIntCodec) Info() string {
	return fmtInfo("int[%d,%d]", c.Lo, c.Hi)
}
