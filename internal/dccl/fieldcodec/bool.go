package fieldcodec

import (
	"github.com/kstaniek/dccl-acomms/internal/bitstream"
	"github.com/kstaniek/dccl-acomms/internal/dccl/dcclerr"
	"github.com/kstaniek/dccl-acomms/internal/dccl/value"
)

// BoolCodec packs a bool into a single bit. It carries no missing-value
// sentinel: a bool field is always present on the wire.
type BoolCodec struct {
	hook HookFunc
}

// NewBoolCodec returns the default single-bit bool codec.
func NewBoolCodec() *BoolCodec { return &BoolCodec{hook: func(value.Value) {}} }

func (c *BoolCodec) Encode(v value.Value) (*bitstream.Bitstream, error) {
	if v.Kind != value.KindBool {
		return nil, fmtErr("bool codec: wrong kind %s", v.Kind)
	}
	c.Hooks(v)
	return bitstream.NewFromUnsigned(1, boolBit(v.B)), nil
}

func (c *BoolCodec) Decode(r *bitstream.Reader) (value.Value, error) {
	bit, err := r.ReadUint(1)
	if err != nil {
		return value.Value{}, dcclerr.ErrDecodeUnderflow
	}
	return value.Bool(bit != 0), nil
}

func (c *BoolCodec) EncodeRepeated(vs []value.Value, maxRepeat int) (*bitstream.Bitstream, error) {
	return encodeRepeatedDefault(c, vs, maxRepeat)
}

func (c *BoolCodec) DecodeRepeated(r *bitstream.Reader, maxRepeat int) ([]value.Value, error) {
	return decodeRepeatedDefault(c, r, maxRepeat)
}

func (c *BoolCodec) MinSizeBits() int { return 1 }
func (c *BoolCodec) MaxSizeBits() int { return 1 }
func (c *BoolCodec) Validate() error  { return nil }
func (c *BoolCodec) Hooks(v value.Value) {
	if c.hook != nil {
		c.hook(v)
	}
}
func (c *BoolCodec) Info() string { return "bool(1 bit)" }

func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// encodeRepeatedDefault is the shared repeated-field encoding shape: a
// count prefix sized for maxRepeat, followed by each element in order.
// Each element goes through c.Encode, so the codec's Hooks fire once per
// element; repeated fields are not exempt from hooks.
func encodeRepeatedDefault(c Codec, vs []value.Value, maxRepeat int) (*bitstream.Bitstream, error) {
	if len(vs) > maxRepeat {
		return nil, fmtErr("repeated field: %d values exceeds max_repeat %d", len(vs), maxRepeat)
	}
	w := bitstream.NewWriter()
	w.WriteUint(uint64(len(vs)), repeatCountBits(maxRepeat))
	for _, v := range vs {
		bs, err := c.Encode(v)
		if err != nil {
			return nil, err
		}
		w.Append(bs)
	}
	return w.Bitstream(), nil
}

func decodeRepeatedDefault(c Codec, r *bitstream.Reader, maxRepeat int) ([]value.Value, error) {
	n, err := r.ReadUint(repeatCountBits(maxRepeat))
	if err != nil {
		return nil, dcclerr.ErrDecodeUnderflow
	}
	out := make([]value.Value, 0, n)
	for i := uint64(0); i < n; i++ {
		v, err := c.Decode(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
