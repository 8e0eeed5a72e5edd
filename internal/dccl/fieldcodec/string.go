package fieldcodec

import (
	"github.com/kstaniek/dccl-acomms/internal/bitstream"
	"github.com/kstaniek/dccl-acomms/internal/dccl/dcclerr"
	"github.com/kstaniek/dccl-acomms/internal/dccl/value"
)

// FixedStringCodec packs a byte string of exactly N bytes, verbatim, with
// no length prefix and no missing-value sentinel.
type FixedStringCodec struct {
	N    int
	hook HookFunc
}

// NewFixedStringCodec returns a codec for exactly n bytes.
func NewFixedStringCodec(n int) *FixedStringCodec {
	return &FixedStringCodec{N: n, hook: func(value.Value) {}}
}

func (c *FixedStringCodec) Encode(v value.Value) (*bitstream.Bitstream, error) {
	c.Hooks(v)
	if v.Kind != value.KindBytes {
		return nil, fmtErr("fixed string codec: wrong kind %s", v.Kind)
	}
	if len(v.Raw) > c.N {
		return nil, dcclerr.ErrEncodeOverflow
	}
	buf := make([]byte, c.N)
	copy(buf, v.Raw)
	w := bitstream.NewWriter()
	w.WriteBytes(buf)
	return w.Bitstream(), nil
}

func (c *FixedStringCodec) Decode(r *bitstream.Reader) (value.Value, error) {
	b, err := r.ReadBytes(c.N)
	if err != nil {
		return value.Value{}, dcclerr.ErrDecodeUnderflow
	}
	return value.Bytes(b), nil
}

func (c *FixedStringCodec) EncodeRepeated(vs []value.Value, maxRepeat int) (*bitstream.Bitstream, error) {
	return encodeRepeatedDefault(c, vs, maxRepeat)
}

func (c *FixedStringCodec) DecodeRepeated(r *bitstream.Reader, maxRepeat int) ([]value.Value, error) {
	return decodeRepeatedDefault(c, r, maxRepeat)
}

func (c *FixedStringCodec) MinSizeBits() int { return c.N * 8 }
func (c *FixedStringCodec) MaxSizeBits() int { return c.N * 8 }

func (c *FixedStringCodec) Validate() error {
	if c.N <= 0 {
		return fmtErr("fixed string codec: non-positive length %d", c.N)
	}
	return nil
}

func (c *FixedStringCodec) Hooks(v value.Value) {
	if c.hook != nil {
		c.hook(v)
	}
}

func (c *FixedStringCodec) Info() string { return fmtInfo("string[%d]", c.N) }

// VarStringCodec packs a byte string up to MaxBytes long: a
// ceil(log2(MaxBytes+1))-bit count prefix followed by that many bytes.
// The count value MaxBytes+1 would overflow the sentinel range reserved
// for other codecs, so a var string has no missing representation — a
// zero-length string serves that role on the wire.
type VarStringCodec struct {
	MaxBytes int
	hook     HookFunc
}

// NewVarStringCodec returns a codec for strings up to maxBytes long.
func NewVarStringCodec(maxBytes int) *VarStringCodec {
	return &VarStringCodec{MaxBytes: maxBytes, hook: func(value.Value) {}}
}

func (c *VarStringCodec) countBits() int { return countBits(uint64(c.MaxBytes)) }

func (c *VarStringCodec) Encode(v value.Value) (*bitstream.Bitstream, error) {
	c.Hooks(v)
	var raw []byte
	if v.Present {
		if v.Kind != value.KindBytes {
			return nil, fmtErr("var string codec: wrong kind %s", v.Kind)
		}
		raw = v.Raw
	}
	if len(raw) > c.MaxBytes {
		return nil, dcclerr.ErrEncodeOverflow
	}
	w := bitstream.NewWriter()
	w.WriteUint(uint64(len(raw)), c.countBits())
	w.WriteBytes(raw)
	return w.Bitstream(), nil
}

func (c *VarStringCodec) Decode(r *bitstream.Reader) (value.Value, error) {
	n, err := r.ReadUint(c.countBits())
	if err != nil {
		return value.Value{}, dcclerr.ErrDecodeUnderflow
	}
	if int(n) > c.MaxBytes {
		return value.Value{}, dcclerr.ErrDecodeCorrupt
	}
	b, err := r.ReadBytes(int(n))
	if err != nil {
		return value.Value{}, dcclerr.ErrDecodeUnderflow
	}
	return value.Bytes(b), nil
}

func (c *VarStringCodec) EncodeRepeated(vs []value.Value, maxRepeat int) (*bitstream.Bitstream, error) {
	return encodeRepeatedDefault(c, vs, maxRepeat)
}

func (c *VarStringCodec) DecodeRepeated(r *bitstream.Reader, maxRepeat int) ([]value.Value, error) {
	return decodeRepeatedDefault(c, r, maxRepeat)
}

func (c *VarStringCodec) MinSizeBits() int { return c.countBits() }
func (c *VarStringCodec) MaxSizeBits() int { return c.countBits() + c.MaxBytes*8 }

func (c *VarStringCodec) Validate() error {
	if c.MaxBytes <= 0 {
		return fmtErr("var string codec: non-positive max_bytes %d", c.MaxBytes)
	}
	return nil
}

func (c *VarStringCodec) Hooks(v value.Value) {
	if c.hook != nil {
		c.hook(v)
	}
}

func (c *VarStringCodec) Info() string { return fmtInfo("string<=%d", c.MaxBytes) }
