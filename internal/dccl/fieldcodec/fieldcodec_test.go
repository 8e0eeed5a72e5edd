package fieldcodec

import (
	"testing"

	"github.com/kstaniek/dccl-acomms/internal/bitstream"
	"github.com/kstaniek/dccl-acomms/internal/dccl/value"
)

func roundTrip(t *testing.T, c Codec, v value.Value) value.Value {
	t.Helper()
	bs, err := c.Encode(v)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	r := bitstream.NewReader(bs)
	got, err := c.Decode(r)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return got
}

func TestBoolCodecRoundTrip(t *testing.T) {
	c := NewBoolCodec()
	for _, b := range []bool{true, false} {
		got := roundTrip(t, c, value.Bool(b))
		if got.B != b {
			t.Fatalf("got %v want %v", got.B, b)
		}
	}
}

func TestBoundedIntCodecRoundTrip(t *testing.T) {
	c := NewBoundedIntCodec(0, 1023)
	if c.nBits() != 11 {
		t.Fatalf("nBits=%d want 11", c.nBits())
	}
	got := roundTrip(t, c, value.Int(700))
	if !got.Present || got.I != 700 {
		t.Fatalf("got %+v want 700", got)
	}
}

func TestBoundedIntCodecMissing(t *testing.T) {
	c := NewBoundedIntCodec(-10, 10)
	got := roundTrip(t, c, value.Missing(value.KindInt))
	if got.Present {
		t.Fatalf("got present value %+v, want missing", got)
	}
}

func TestBoundedIntCodecOverflow(t *testing.T) {
	c := NewBoundedIntCodec(0, 10)
	if _, err := c.Encode(value.Int(11)); err == nil {
		t.Fatal("expected overflow error")
	}
}

func TestBoundedIntCodecNegativeRange(t *testing.T) {
	c := NewBoundedIntCodec(-50, 50)
	got := roundTrip(t, c, value.Int(-37))
	if !got.Present || got.I != -37 {
		t.Fatalf("got %+v want -37", got)
	}
}

func TestEnumCodecRoundTrip(t *testing.T) {
	c := NewEnumCodec([]string{"RED", "GREEN", "BLUE"})
	got := roundTrip(t, c, value.Enum(1))
	if !got.Present || got.E != 1 {
		t.Fatalf("got %+v want index 1", got)
	}
}

func TestEnumCodecMissing(t *testing.T) {
	c := NewEnumCodec([]string{"RED", "GREEN", "BLUE"})
	got := roundTrip(t, c, value.Missing(value.KindEnum))
	if got.Present {
		t.Fatalf("got present %+v, want missing", got)
	}
}

func TestFloatCodecRoundTrip(t *testing.T) {
	c := NewFloatCodec(-10, 10, 2)
	got := roundTrip(t, c, value.Float(3.14))
	if !got.Present {
		t.Fatal("expected present value")
	}
	if d := got.F - 3.14; d > 0.005 || d < -0.005 {
		t.Fatalf("got %v want ~3.14", got.F)
	}
}

func TestFloatCodecMissing(t *testing.T) {
	c := NewFloatCodec(0, 1, 3)
	got := roundTrip(t, c, value.Missing(value.KindFloat))
	if got.Present {
		t.Fatalf("got present %+v, want missing", got)
	}
}

func TestFixedStringCodecRoundTrip(t *testing.T) {
	c := NewFixedStringCodec(4)
	got := roundTrip(t, c, value.Bytes([]byte("ab")))
	want := []byte{'a', 'b', 0, 0}
	if string(got.Raw) != string(want) {
		t.Fatalf("got %q want %q", got.Raw, want)
	}
}

func TestFixedStringCodecOverflow(t *testing.T) {
	c := NewFixedStringCodec(2)
	if _, err := c.Encode(value.Bytes([]byte("abc"))); err == nil {
		t.Fatal("expected overflow error")
	}
}

func TestVarStringCodecRoundTrip(t *testing.T) {
	c := NewVarStringCodec(255)
	got := roundTrip(t, c, value.Bytes([]byte("hello")))
	if string(got.Raw) != "hello" {
		t.Fatalf("got %q want hello", got.Raw)
	}
}

func TestVarStringCodecEmpty(t *testing.T) {
	c := NewVarStringCodec(255)
	got := roundTrip(t, c, value.Bytes(nil))
	if len(got.Raw) != 0 {
		t.Fatalf("got %q want empty", got.Raw)
	}
}

func TestVarStringCodecOverflow(t *testing.T) {
	c := NewVarStringCodec(2)
	if _, err := c.Encode(value.Bytes([]byte("abc"))); err == nil {
		t.Fatal("expected overflow error")
	}
}

func TestRepeatedBoundedInt(t *testing.T) {
	c := NewBoundedIntCodec(0, 100)
	vs := []value.Value{value.Int(1), value.Int(2), value.Int(3)}
	bs, err := c.EncodeRepeated(vs, 8)
	if err != nil {
		t.Fatalf("EncodeRepeated: %v", err)
	}
	r := bitstream.NewReader(bs)
	got, err := c.DecodeRepeated(r, 8)
	if err != nil {
		t.Fatalf("DecodeRepeated: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len=%d want 3", len(got))
	}
	for i, v := range got {
		if v.I != int64(i+1) {
			t.Fatalf("got[%d]=%d want %d", i, v.I, i+1)
		}
	}
}

func TestRepeatedExceedsMax(t *testing.T) {
	c := NewBoolCodec()
	vs := []value.Value{value.Bool(true), value.Bool(false), value.Bool(true)}
	if _, err := c.EncodeRepeated(vs, 2); err == nil {
		t.Fatal("expected error for exceeding max_repeat")
	}
}

func TestBoundedIntValidate(t *testing.T) {
	c := NewBoundedIntCodec(10, 5)
	if err := c.Validate(); err == nil {
		t.Fatal("expected validation error for hi < lo")
	}
}
