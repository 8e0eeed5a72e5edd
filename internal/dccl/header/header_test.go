package header

import (
	"testing"

	"github.com/kstaniek/dccl-acomms/internal/bitstream"
)

func testConfig() Config {
	return Config{DcclIDBits: 8, SourceBits: 7, DestBits: 7, TimeBits: 8}
}

func TestEncodeDecodeHeaderRoundTrip(t *testing.T) {
	c := New(testConfig())
	f := Fields{DcclID: 12, MultiFrame: true, Broadcast: false, Source: 3, Destination: 7, Time: 42}
	bs, err := c.EncodeHeader(f)
	if err != nil {
		t.Fatalf("EncodeHeader: %v", err)
	}
	if bs.Len() != c.HeaderBits() {
		t.Fatalf("len=%d want %d", bs.Len(), c.HeaderBits())
	}
	r := bitstream.NewReader(bs)
	got, n, err := c.DecodeHeader(r)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if n != c.HeaderBits() {
		t.Fatalf("consumed=%d want %d", n, c.HeaderBits())
	}
	if got != f {
		t.Fatalf("got %+v want %+v", got, f)
	}
}

func TestDecodeHeaderRejectsNonDCCLCCLID(t *testing.T) {
	c := New(testConfig())
	w := bitstream.NewWriter()
	w.WriteUint(0x01, 8) // legacy CCL id, not 0x20
	for i := 0; i < c.HeaderBits()-8; i++ {
		w.WriteUint(0, 1)
	}
	r := bitstream.NewReader(w.Bitstream())
	if _, _, err := c.DecodeHeader(r); err == nil {
		t.Fatal("expected error for non-DCCL CCL id")
	}
}

func TestSetMultiFrameInPlace(t *testing.T) {
	c := New(testConfig())
	f := Fields{DcclID: 1, MultiFrame: false, Broadcast: false, Source: 1, Destination: 2, Time: 0}
	bs, _ := c.EncodeHeader(f)
	c.SetMultiFrame(bs, true)

	r := bitstream.NewReader(bs)
	got, _, err := c.DecodeHeader(r)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if !got.MultiFrame {
		t.Fatal("expected multi-frame flag set")
	}
}

func TestSetBroadcastInPlace(t *testing.T) {
	c := New(testConfig())
	f := Fields{DcclID: 1, Source: 1, Destination: 2}
	bs, _ := c.EncodeHeader(f)
	c.SetBroadcast(bs, true)

	r := bitstream.NewReader(bs)
	got, _, err := c.DecodeHeader(r)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if !got.Broadcast {
		t.Fatal("expected broadcast flag set")
	}
}

func TestEncodeHeaderDcclIDOverflow(t *testing.T) {
	c := New(Config{DcclIDBits: 4, SourceBits: 4, DestBits: 4, TimeBits: 4})
	if _, err := c.EncodeHeader(Fields{DcclID: 16}); err == nil {
		t.Fatal("expected overflow error for dccl id exceeding 4-bit width")
	}
}
