package fieldcodec

import (
	"math"

	"github.com/kstaniek/dccl-acomms/internal/bitstream"
	"github.com/kstaniek/dccl-acomms/internal/dccl/dcclerr"
	"github.com/kstaniek/dccl-acomms/internal/dccl/value"
)

// FloatCodec packs a float in [Lo, Hi] at a fixed decimal Precision by
// scaling to round(v*10^Precision) and delegating to a BoundedIntCodec
// over the scaled range.
type FloatCodec struct {
	Lo, Hi    float64
	Precision int

	scaled *BoundedIntCodec
	scale  float64
	hook   HookFunc
}

// NewFloatCodec returns a codec for [lo, hi] at the given decimal precision.
func NewFloatCodec(lo, hi float64, precision int) *FloatCodec {
	scale := math.Pow(10, float64(precision))
	lo64 := int64(math.Round(lo * scale))
	hi64 := int64(math.Round(hi * scale))
	return &FloatCodec{
		Lo: lo, Hi: hi, Precision: precision,
		scaled: NewBoundedIntCodec(lo64, hi64),
		scale:  scale,
		hook:   func(value.Value) {},
	}
}

func (c *FloatCodec) Encode(v value.Value) (*bitstream.Bitstream, error) {
	c.Hooks(v)
	if !v.Present {
		return c.scaled.Encode(value.Missing(value.KindInt))
	}
	if v.Kind != value.KindFloat {
		return nil, fmtErr("float codec: wrong kind %s", v.Kind)
	}
	scaled := int64(math.Round(v.F * c.scale))
	return c.scaled.Encode(value.Int(scaled))
}

func (c *FloatCodec) Decode(r *bitstream.Reader) (value.Value, error) {
	iv, err := c.scaled.Decode(r)
	if err != nil {
		return value.Value{}, err
	}
	if !iv.Present {
		return value.Missing(value.KindFloat), nil
	}
	if iv.Kind != value.KindInt {
		return value.Value{}, dcclerr.ErrDecodeCorrupt
	}
	return value.Float(float64(iv.I) / c.scale), nil
}

func (c *FloatCodec) EncodeRepeated(vs []value.Value, maxRepeat int) (*bitstream.Bitstream, error) {
	return encodeRepeatedDefault(c, vs, maxRepeat)
}

func (c *FloatCodec) DecodeRepeated(r *bitstream.Reader, maxRepeat int) ([]value.Value, error) {
	return decodeRepeatedDefault(c, r, maxRepeat)
}

func (c *FloatCodec) MinSizeBits() int { return c.scaled.MinSizeBits() }
func (c *FloatCodec) MaxSizeBits() int { return c.scaled.MaxSizeBits() }

func (c *FloatCodec) Validate() error {
	if c.Hi < c.Lo {
		return fmtErr("float codec: hi %g < lo %g", c.Hi, c.Lo)
	}
	return c.scaled.Validate()
}

func (c *FloatCodec) Hooks(v value.Value) {
	if c.hook != nil {
		c.hook(v)
	}
}

func (c *FloatCodec) Info() string {
	return fmtInfo("float[%g,%g]@1e-%d", c.Lo, c.Hi, c.Precision)
}
