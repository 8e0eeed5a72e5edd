package manager

import (
	"bytes"
	"testing"
	"time"

	"github.com/kstaniek/dccl-acomms/internal/dccl/header"
	"github.com/kstaniek/dccl-acomms/internal/queue"
)

func testHeaderConfig() header.Config {
	// 8 + 8 + 1 + 1 + 7 + 7 + 0 = 32 bits = 4 bytes, byte-aligned.
	return header.Config{DcclIDBits: 8, SourceBits: 7, DestBits: 7, TimeBits: 0}
}

func encodeTestRecord(t *testing.T, hc *header.Codec, dcclID uint32, dest uint32, payload []byte) []byte {
	t.Helper()
	bs, err := hc.EncodeHeader(header.Fields{DcclID: dcclID, Source: 1, Destination: dest})
	if err != nil {
		t.Fatalf("EncodeHeader: %v", err)
	}
	return append(bs.ToBytes(), payload...)
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTwoQueueStitch(t *testing.T) {
	hc := header.New(testHeaderConfig())
	var receivedOrder [][]byte
	m := New(0 /* selfID */, testHeaderConfig(), Hooks{
		OnReceive: func(key queue.Key, recordBytes []byte, destination uint32) {
			receivedOrder = append(receivedOrder, recordBytes)
		},
	})
	now := time.Unix(1000, 0)
	m.nowFunc = fixedNow(now)

	q1 := queue.Key{Type: queue.KeyDCCL, ID: 1}
	q2 := queue.Key{Type: queue.KeyDCCL, ID: 2}
	if err := m.AddQueue(q1, queue.Config{PriorityBase: 10}); err != nil {
		t.Fatalf("AddQueue q1: %v", err)
	}
	if err := m.AddQueue(q2, queue.Config{PriorityBase: 5}); err != nil {
		t.Fatalf("AddQueue q2: %v", err)
	}

	p1 := bytes.Repeat([]byte{0xAA}, 10)
	p2 := bytes.Repeat([]byte{0xBB}, 10)
	rec1 := encodeTestRecord(t, hc, 1, 7, p1)
	rec2 := encodeTestRecord(t, hc, 2, 7, p2)

	if err := m.Push(q1, rec1, 7, false); err != nil {
		t.Fatalf("Push q1: %v", err)
	}
	if err := m.Push(q2, rec2, 7, false); err != nil {
		t.Fatalf("Push q2: %v", err)
	}

	packet, err := m.HandleModemDataRequest(Request{Frame: 0, MaxBytes: 40})
	if err != nil {
		t.Fatalf("HandleModemDataRequest: %v", err)
	}

	// Higher-priority Q1 wins first: header(4) || SIZE(1)=10 || P1(10) ||
	// header(3, CCL id omitted) || P2(10). The last frame carries no size
	// byte; P2 runs to the end of the packet.
	wantLen := 4 + 1 + 10 + 3 + 10
	if len(packet) != wantLen {
		t.Fatalf("len=%d want %d: % x", len(packet), wantLen, packet)
	}
	if packet[4] != 10 {
		t.Fatalf("size byte=%d want 10", packet[4])
	}
	if !bytes.Equal(packet[5:15], p1) {
		t.Fatalf("P1 mismatch")
	}
	if !bytes.Equal(packet[18:28], p2) {
		t.Fatalf("P2 mismatch")
	}

	if err := m.HandleModemReceive(packet); err != nil {
		t.Fatalf("HandleModemReceive: %v", err)
	}
	if len(receivedOrder) != 2 {
		t.Fatalf("received %d user-frames, want 2", len(receivedOrder))
	}
	// Unstitching must reproduce exactly what was pushed: full headers with
	// the multi-frame flag cleared, CCL id restored on both frames.
	if !bytes.Equal(receivedOrder[0], rec1) {
		t.Fatalf("first record mismatch:\n got % x\nwant % x", receivedOrder[0], rec1)
	}
	if !bytes.Equal(receivedOrder[1], rec2) {
		t.Fatalf("second record mismatch:\n got % x\nwant % x", receivedOrder[1], rec2)
	}
}

func TestBroadcastFlagSurvivesStitchAndUnstitch(t *testing.T) {
	hc := header.New(testHeaderConfig())
	type received struct {
		key  queue.Key
		dest uint32
		rec  []byte
	}
	var got []received
	m := New(0, testHeaderConfig(), Hooks{
		OnReceive: func(key queue.Key, recordBytes []byte, destination uint32) {
			got = append(got, received{key: key, dest: destination, rec: recordBytes})
		},
	})
	now := time.Unix(1000, 0)
	m.nowFunc = fixedNow(now)

	q1 := queue.Key{Type: queue.KeyDCCL, ID: 1}
	q2 := queue.Key{Type: queue.KeyDCCL, ID: 2}
	_ = m.AddQueue(q1, queue.Config{PriorityBase: 10})
	_ = m.AddQueue(q2, queue.Config{PriorityBase: 5})

	p1 := bytes.Repeat([]byte{0xAA}, 10)
	p2 := bytes.Repeat([]byte{0xBB}, 10)
	rec1 := encodeTestRecord(t, hc, 1, 7, p1)
	rec2 := encodeTestRecord(t, hc, 2, header.BroadcastID, p2)

	_ = m.Push(q1, rec1, 7, false)
	_ = m.Push(q2, rec2, header.BroadcastID, false)

	packet, err := m.HandleModemDataRequest(Request{Frame: 0, MaxBytes: 40})
	if err != nil {
		t.Fatalf("HandleModemDataRequest: %v", err)
	}
	if err := m.HandleModemReceive(packet); err != nil {
		t.Fatalf("HandleModemReceive: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d frames, want 2", len(got))
	}
	if got[0].dest != 7 {
		t.Fatalf("first frame dest=%d want 7", got[0].dest)
	}
	if got[1].dest != header.BroadcastID {
		t.Fatalf("second frame dest=%d want broadcast", got[1].dest)
	}
	// The multi-frame and broadcast flags are assembly bookkeeping and must
	// not leak into the record bytes handed to the application layer.
	if !bytes.Equal(got[0].rec, rec1) {
		t.Fatalf("first record mismatch (flags leaked?):\n got % x\nwant % x", got[0].rec, rec1)
	}
	if !bytes.Equal(got[1].rec, rec2) {
		t.Fatalf("second record mismatch (flags leaked?):\n got % x\nwant % x", got[1].rec, rec2)
	}
}

func TestAckPopsFirstRecordOnly(t *testing.T) {
	hc := header.New(testHeaderConfig())
	var acked [][]byte
	m := New(0, testHeaderConfig(), Hooks{
		OnAck: func(key queue.Key, ack Ack, recordBytes []byte) {
			acked = append(acked, recordBytes)
		},
	})
	now := time.Unix(1000, 0)
	m.nowFunc = fixedNow(now)

	q1 := queue.Key{Type: queue.KeyDCCL, ID: 1}
	_ = m.AddQueue(q1, queue.Config{PriorityBase: 1, MaxQueue: 0})

	rec1 := encodeTestRecord(t, hc, 1, 7, []byte{0x01})
	rec2 := encodeTestRecord(t, hc, 1, 7, []byte{0x02})
	_ = m.Push(q1, rec1, 7, true)
	_ = m.Push(q1, rec2, 7, true)

	// MaxBytes fits exactly one 4-byte-header + 1-byte reserved size prefix
	// + 1-byte-payload record, so only the first goes out this cycle
	// (spec Scenario 5); the second record has no room left.
	if _, err := m.HandleModemDataRequest(Request{Frame: 0, MaxBytes: 6}); err != nil {
		t.Fatalf("HandleModemDataRequest: %v", err)
	}

	if err := m.HandleModemAck(Ack{Frame: 0, Src: 7}); err != nil {
		t.Fatalf("HandleModemAck: %v", err)
	}
	if len(acked) != 1 {
		t.Fatalf("acked %d records, want 1", len(acked))
	}

	m.mu.Lock()
	depth := m.queues[q1].Len()
	m.mu.Unlock()
	if depth != 1 {
		t.Fatalf("depth=%d want 1 (second record still queued)", depth)
	}
}

func TestAckFromSelfIsLoopbackDropped(t *testing.T) {
	var acked int
	m := New(7, testHeaderConfig(), Hooks{
		OnAck: func(queue.Key, Ack, []byte) { acked++ },
	})
	if err := m.HandleModemAck(Ack{Frame: 0, Src: 7}); err != nil {
		t.Fatalf("HandleModemAck: %v", err)
	}
	if acked != 0 {
		t.Fatalf("acked=%d want 0 for self-sourced ack", acked)
	}
}

func TestDoWorkExpiresAndFiresOnExpire(t *testing.T) {
	var expiredCount int
	m := New(0, testHeaderConfig(), Hooks{
		OnExpire: func(queue.Key, []byte) { expiredCount++ },
	})
	enq := time.Unix(1000, 0)
	m.nowFunc = fixedNow(enq)

	q1 := queue.Key{Type: queue.KeyDCCL, ID: 1}
	_ = m.AddQueue(q1, queue.Config{TTL: time.Second})
	_ = m.Push(q1, []byte{0, 0, 0, 0}, 7, false)

	m.nowFunc = fixedNow(enq.Add(2 * time.Second))
	m.DoWork()

	if expiredCount != 1 {
		t.Fatalf("expiredCount=%d want 1", expiredCount)
	}
}

func TestPushLoopbackBypassesQueue(t *testing.T) {
	var received []byte
	m := New(42, testHeaderConfig(), Hooks{
		OnReceive: func(key queue.Key, recordBytes []byte, destination uint32) {
			received = recordBytes
		},
	})
	q1 := queue.Key{Type: queue.KeyDCCL, ID: 1}
	_ = m.AddQueue(q1, queue.Config{})

	if err := m.Push(q1, []byte{0xFF}, 42, false); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if len(received) != 1 || received[0] != 0xFF {
		t.Fatalf("received=%v want [0xFF]", received)
	}
	m.mu.Lock()
	depth := m.queues[q1].Len()
	m.mu.Unlock()
	if depth != 0 {
		t.Fatalf("depth=%d want 0: loopback must not enqueue", depth)
	}
}

func TestAddQueueDuplicateKey(t *testing.T) {
	m := New(0, testHeaderConfig(), Hooks{})
	q1 := queue.Key{Type: queue.KeyDCCL, ID: 1}
	if err := m.AddQueue(q1, queue.Config{}); err != nil {
		t.Fatalf("AddQueue: %v", err)
	}
	if err := m.AddQueue(q1, queue.Config{}); err == nil {
		t.Fatal("expected error re-adding the same key")
	}
}
