package fieldcodec

import (
	"github.com/kstaniek/dccl-acomms/internal/bitstream"
	"github.com/kstaniek/dccl-acomms/internal/dccl/dcclerr"
	"github.com/kstaniek/dccl-acomms/internal/dccl/value"
)

// EnumCodec packs an index into a closed, declared set of values. The
// sentinel index len(Values) means "absent," same convention as
// BoundedIntCodec.
type EnumCodec struct {
	Values []string
	hook   HookFunc
}

// NewEnumCodec returns a codec over the given closed value set.
func NewEnumCodec(values []string) *EnumCodec {
	return &EnumCodec{Values: values, hook: func(value.Value) {}}
}

func (c *EnumCodec) nBits() int { return countBits(uint64(len(c.Values))) }

func (c *EnumCodec) sentinel() uint64 { return uint64(len(c.Values)) }

func (c *EnumCodec) Encode(v value.Value) (*bitstream.Bitstream, error) {
	c.Hooks(v)
	if !v.Present {
		return bitstream.NewFromUnsigned(c.nBits(), c.sentinel()), nil
	}
	if v.Kind != value.KindEnum {
		return nil, fmtErr("enum codec: wrong kind %s", v.Kind)
	}
	if v.E >= uint32(len(c.Values)) {
		return nil, dcclerr.ErrEncodeOverflow
	}
	return bitstream.NewFromUnsigned(c.nBits(), uint64(v.E)), nil
}

func (c *EnumCodec) Decode(r *bitstream.Reader) (value.Value, error) {
	raw, err := r.ReadUint(c.nBits())
	if err != nil {
		return value.Value{}, dcclerr.ErrDecodeUnderflow
	}
	if raw == c.sentinel() {
		return value.Missing(value.KindEnum), nil
	}
	if raw > c.sentinel() {
		return value.Value{}, dcclerr.ErrDecodeCorrupt
	}
	return value.Enum(uint32(raw)), nil
}

func (c *EnumCodec) EncodeRepeated(vs []value.Value, maxRepeat int) (*bitstream.Bitstream, error) {
	return encodeRepeatedDefault(c, vs, maxRepeat)
}

func (c *EnumCodec) DecodeRepeated(r *bitstream.Reader, maxRepeat int) ([]value.Value, error) {
	return decodeRepeatedDefault(c, r, maxRepeat)
}

func (c *EnumCodec) MinSizeBits() int { return c.nBits() }
func (c *EnumCodec) MaxSizeBits() int { return c.nBits() }

func (c *EnumCodec) Validate() error {
	if len(c.Values) == 0 {
		return fmtErr("enum codec: empty value set")
	}
	return nil
}

func (c *EnumCodec) Hooks(v value.Value) {
	if c.hook != nil {
		c.hook(v)
	}
}

func (c *EnumCodec) Info() string { return fmtInfo("enum(%d values)", len(c.Values)) }
