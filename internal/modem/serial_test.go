package modem

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"
)

// fakePort is an in-memory Port: reads drain a preloaded buffer, writes
// accumulate for inspection.
type fakePort struct {
	mu      sync.Mutex
	rx      *bytes.Buffer
	written [][]byte
	closed  bool
}

func newFakePort() *fakePort { return &fakePort{rx: &bytes.Buffer{}} }

func (p *fakePort) feed(b []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rx.Write(b)
}

// Read mimics a serial port with a short ReadTimeout: it never blocks,
// returning (0, nil) immediately when nothing is buffered so the caller's
// context-cancellation check runs frequently.
func (p *fakePort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, context.Canceled
	}
	if p.rx.Len() == 0 {
		return 0, nil
	}
	n, _ := p.rx.Read(buf)
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := append([]byte(nil), b...)
	p.written = append(p.written, cp)
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func TestSerialLinkSendEncodesDataFrame(t *testing.T) {
	port := newFakePort()
	link := NewSerialLink(context.Background(), port, 4)
	defer link.Close()

	if err := link.Send([]byte{0xAA, 0xBB}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	// Give the async writer a moment to flush.
	time.Sleep(50 * time.Millisecond)

	port.mu.Lock()
	n := len(port.written)
	port.mu.Unlock()
	if n != 1 {
		t.Fatalf("written %d frames, want 1", n)
	}
}

func TestSerialLinkDecodesIncomingDataFrame(t *testing.T) {
	port := newFakePort()
	link := NewSerialLink(context.Background(), port, 4)
	defer link.Close()

	port.feed(encodeData([]byte{0x01, 0x02, 0x03}))

	select {
	case fr := <-link.Frames():
		if !bytes.Equal(fr.Data, []byte{0x01, 0x02, 0x03}) {
			t.Fatalf("got %x want 010203", fr.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Frame")
	}
}

func TestSerialLinkDecodesRequestAndAck(t *testing.T) {
	port := newFakePort()
	link := NewSerialLink(context.Background(), port, 4)
	defer link.Close()

	port.feed(encodeRequest(Request{Frame: 2, MaxBytes: 128}))
	select {
	case req := <-link.Requests():
		if req.Frame != 2 || req.MaxBytes != 128 {
			t.Fatalf("got %+v", req)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Request")
	}

	port.feed(encodeAck(Ack{Frame: 2, Src: 9}))
	select {
	case ack := <-link.Acks():
		if ack.Frame != 2 || ack.Src != 9 {
			t.Fatalf("got %+v", ack)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Ack")
	}
}

func TestSerialLinkResyncsOnGarbage(t *testing.T) {
	port := newFakePort()
	link := NewSerialLink(context.Background(), port, 4)
	defer link.Close()

	garbage := []byte{0x00, 0xFF, 0x10}
	port.feed(append(garbage, encodeData([]byte{0x42})...))

	select {
	case fr := <-link.Frames():
		if !bytes.Equal(fr.Data, []byte{0x42}) {
			t.Fatalf("got %x want 42", fr.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Frame after garbage")
	}
}
