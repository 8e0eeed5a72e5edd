package queue

import (
	"testing"
	"time"
)

func baseCfg() Config {
	return Config{PriorityBase: 10, PriorityGrowthRate: 1, TTL: 0, MaxQueue: 0}
}

func TestPushAndTake(t *testing.T) {
	q := New(Key{Type: KeyDCCL, ID: 1}, baseCfg())
	now := time.Unix(1000, 0)
	if err := q.Push(&Entry{RecordBytes: []byte("a"), EnqueueTime: now}); err != nil {
		t.Fatalf("Push: %v", err)
	}
	e, err := q.Take(0, now)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if string(e.RecordBytes) != "a" {
		t.Fatalf("got %q want a", e.RecordBytes)
	}
	if q.Len() != 0 {
		t.Fatalf("len=%d want 0", q.Len())
	}
}

func TestTakeEmptyQueue(t *testing.T) {
	q := New(Key{Type: KeyDCCL, ID: 1}, baseCfg())
	if _, err := q.Take(0, time.Now()); err == nil {
		t.Fatal("expected error taking from empty queue")
	}
}

func TestPriorityGrowsWithAge(t *testing.T) {
	q := New(Key{Type: KeyDCCL, ID: 1}, Config{PriorityBase: 10, PriorityGrowthRate: 2})
	enq := time.Unix(1000, 0)
	_ = q.Push(&Entry{EnqueueTime: enq})
	p1, ok := q.Priority(enq)
	if !ok || p1 != 10 {
		t.Fatalf("p1=%v want 10", p1)
	}
	p2, ok := q.Priority(enq.Add(5 * time.Second))
	if !ok || p2 != 20 {
		t.Fatalf("p2=%v want 20", p2)
	}
}

func TestQueueFullRejectsNew(t *testing.T) {
	q := New(Key{Type: KeyDCCL, ID: 1}, Config{MaxQueue: 1, Overflow: RejectNew})
	now := time.Now()
	if err := q.Push(&Entry{EnqueueTime: now}); err != nil {
		t.Fatalf("first push: %v", err)
	}
	if err := q.Push(&Entry{EnqueueTime: now}); err == nil {
		t.Fatal("expected ErrQueueFull")
	}
}

func TestQueueFullDropsOldest(t *testing.T) {
	q := New(Key{Type: KeyDCCL, ID: 1}, Config{MaxQueue: 1, Overflow: DropOldest})
	now := time.Now()
	_ = q.Push(&Entry{RecordBytes: []byte("old"), EnqueueTime: now})
	if err := q.Push(&Entry{RecordBytes: []byte("new"), EnqueueTime: now}); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if q.Len() != 1 {
		t.Fatalf("len=%d want 1", q.Len())
	}
	e, _ := q.Take(0, now)
	if string(e.RecordBytes) != "new" {
		t.Fatalf("got %q want new", e.RecordBytes)
	}
}

func TestAckPopsExactFrame(t *testing.T) {
	q := New(Key{Type: KeyDCCL, ID: 1}, baseCfg())
	now := time.Now()
	_ = q.Push(&Entry{RecordBytes: []byte("a"), AckRequested: true, EnqueueTime: now})
	_ = q.Push(&Entry{RecordBytes: []byte("b"), AckRequested: true, EnqueueTime: now})
	if _, err := q.Take(0, now); err != nil {
		t.Fatalf("Take: %v", err)
	}
	if q.Len() != 1 {
		t.Fatalf("len=%d want 1", q.Len())
	}
	acked := q.Ack(0)
	if len(acked) != 1 || string(acked[0].RecordBytes) != "a" {
		t.Fatalf("acked=%+v want [a]", acked)
	}
	// Second push remains until its own cycle.
	if q.Len() != 1 {
		t.Fatalf("len=%d want 1 after ack", q.Len())
	}
}

func TestAckMismatchReturnsEmpty(t *testing.T) {
	q := New(Key{Type: KeyDCCL, ID: 1}, baseCfg())
	if acked := q.Ack(99); len(acked) != 0 {
		t.Fatalf("acked=%+v want empty", acked)
	}
}

func TestExpireRemovesOldEntries(t *testing.T) {
	q := New(Key{Type: KeyDCCL, ID: 1}, Config{TTL: time.Second})
	enq := time.Unix(1000, 0)
	_ = q.Push(&Entry{EnqueueTime: enq})
	expired := q.Expire(enq.Add(2 * time.Second))
	if len(expired) != 1 {
		t.Fatalf("len=%d want 1", len(expired))
	}
	if q.Len() != 0 {
		t.Fatalf("len=%d want 0", q.Len())
	}
}

func TestClearAckQueueRestoresEntries(t *testing.T) {
	q := New(Key{Type: KeyDCCL, ID: 1}, baseCfg())
	now := time.Now()
	_ = q.Push(&Entry{RecordBytes: []byte("a"), AckRequested: true, EnqueueTime: now})
	_, _ = q.Take(0, now)
	if q.Len() != 0 {
		t.Fatalf("len=%d want 0", q.Len())
	}
	q.ClearAckQueue()
	if q.Len() != 1 {
		t.Fatalf("len=%d want 1 after ClearAckQueue", q.Len())
	}
	if len(q.ackPending) != 0 {
		t.Fatalf("ackPending not cleared: %+v", q.ackPending)
	}
}

func TestBlackoutExcludesQueue(t *testing.T) {
	q := New(Key{Type: KeyDCCL, ID: 1}, Config{BlackoutInterval: time.Second})
	now := time.Unix(1000, 0)
	_ = q.Push(&Entry{EnqueueTime: now})
	_, _ = q.Take(0, now)
	if !q.InBlackout(now.Add(500 * time.Millisecond)) {
		t.Fatal("expected blackout to hold at +500ms")
	}
	if q.InBlackout(now.Add(2 * time.Second)) {
		t.Fatal("expected blackout to clear at +2s")
	}
}

func TestOnDemandStaleness(t *testing.T) {
	q := New(Key{Type: KeyDCCL, ID: 1}, Config{OnDemand: true})
	if !q.Stale(time.Now()) {
		t.Fatal("empty on-demand queue should be stale")
	}
	now := time.Unix(1000, 0)
	_ = q.Push(&Entry{EnqueueTime: now})
	if q.Stale(now) {
		t.Fatal("freshly pushed entry should not be stale")
	}
	if !q.Stale(now.Add(2 * time.Second)) {
		t.Fatal("entry older than OnDemandSkew should be stale")
	}
}

func TestNewestFirstOrder(t *testing.T) {
	q := New(Key{Type: KeyDCCL, ID: 1}, Config{NewestFirst: true})
	now := time.Unix(1000, 0)
	_ = q.Push(&Entry{RecordBytes: []byte("first"), EnqueueTime: now})
	_ = q.Push(&Entry{RecordBytes: []byte("second"), EnqueueTime: now.Add(time.Second)})
	e, err := q.Take(0, now.Add(2*time.Second))
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if string(e.RecordBytes) != "second" {
		t.Fatalf("got %q want second (LIFO order)", e.RecordBytes)
	}
}
