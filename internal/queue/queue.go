// Package queue implements one named outgoing record queue (spec §4.5):
// priority-ordered FIFO (or LIFO) with TTL expiry, blackout, ack-pending
// tracking, and on-demand message synthesis.
package queue

import (
	"container/list"
	"time"

	"github.com/kstaniek/dccl-acomms/internal/dccl/dcclerr"
)

// KeyType distinguishes a DCCL queue (schema-driven) from a legacy CCL
// queue (fixed 32-byte passthrough).
type KeyType int

const (
	KeyDCCL KeyType = iota
	KeyCCL
)

// Key uniquely identifies a queue within a manager.
type Key struct {
	Type KeyType
	ID   uint32
}

// Entry is one outgoing record sitting in a queue, per spec §3's "Queue
// entry" data model.
type Entry struct {
	RecordBytes  []byte
	Destination  uint32
	AckRequested bool
	EnqueueTime  time.Time

	frame int // the frame number this entry was taken under, once ack-pending
}

// OverflowPolicy selects what Push does when the queue is already at
// MaxQueue.
type OverflowPolicy int

const (
	// RejectNew refuses the incoming push, returning ErrQueueFull.
	RejectNew OverflowPolicy = iota
	// DropOldest evicts the queue head to make room.
	DropOldest
)

// Config is one queue's fixed configuration.
type Config struct {
	PriorityBase       float64
	PriorityGrowthRate float64
	TTL                time.Duration
	BlackoutInterval   time.Duration
	MaxQueue           int // 0 means unbounded
	NewestFirst        bool
	OnDemand           bool
	AckRequiredDefault bool
	Overflow           OverflowPolicy
}

// OnDemandSkew is the staleness threshold past which an on-demand queue's
// callback is invoked before the priority contest considers it (spec §4.5,
// "≈ 1 s").
const OnDemandSkew = time.Second

// Queue is one named outgoing record buffer.
type Queue struct {
	Key Key
	Cfg Config

	fifo         *list.List // of *Entry, push at back, peek at configured end
	ackPending   map[int][]*Entry
	lastSendTime time.Time
}

// New returns an empty queue under key with the given configuration.
func New(key Key, cfg Config) *Queue {
	return &Queue{
		Key:        key,
		Cfg:        cfg,
		fifo:       list.New(),
		ackPending: make(map[int][]*Entry),
	}
}

// Len returns the number of live (not ack-pending) entries.
func (q *Queue) Len() int { return q.fifo.Len() }

// Push enqueues e, applying the overflow policy if the queue is full.
func (q *Queue) Push(e *Entry) error {
	if q.Cfg.MaxQueue > 0 && q.fifo.Len() >= q.Cfg.MaxQueue {
		switch q.Cfg.Overflow {
		case DropOldest:
			q.fifo.Remove(q.fifo.Front())
		default:
			return dcclerr.ErrQueueFull
		}
	}
	q.fifo.PushBack(e)
	return nil
}

// headElement returns the FIFO element the priority contest and Take
// consider next: the front under FIFO order, the back under LIFO
// (NewestFirst) order.
func (q *Queue) headElement() *list.Element {
	if q.fifo.Len() == 0 {
		return nil
	}
	if q.Cfg.NewestFirst {
		return q.fifo.Back()
	}
	return q.fifo.Front()
}

// InBlackout reports whether the queue is still within its blackout window
// at time t.
func (q *Queue) InBlackout(t time.Time) bool {
	if q.Cfg.BlackoutInterval <= 0 || q.lastSendTime.IsZero() {
		return false
	}
	return t.Sub(q.lastSendTime) < q.Cfg.BlackoutInterval
}

// Priority returns the priority of the queue's next-eligible entry at time
// t, per spec's priority_base + growth_rate*(t - enqueue_time) formula.
func (q *Queue) Priority(t time.Time) (priority float64, ok bool) {
	el := q.headElement()
	if el == nil {
		return 0, false
	}
	e := el.Value.(*Entry)
	elapsed := t.Sub(e.EnqueueTime).Seconds()
	return q.Cfg.PriorityBase + q.Cfg.PriorityGrowthRate*elapsed, true
}

// NewestMsgTime returns the enqueue time of the most recently pushed live
// entry, used to decide whether an on-demand queue is stale.
func (q *Queue) NewestMsgTime() (time.Time, bool) {
	if q.fifo.Len() == 0 {
		return time.Time{}, false
	}
	return q.fifo.Back().Value.(*Entry).EnqueueTime, true
}

// Stale reports whether an on-demand queue's newest message is older than
// OnDemandSkew at time t (or the queue is empty).
func (q *Queue) Stale(t time.Time) bool {
	newest, ok := q.NewestMsgTime()
	if !ok {
		return true
	}
	return t.Sub(newest) >= OnDemandSkew
}

// PeekFor returns the next-eligible entry without removing it, alongside
// its priority at time t, for the manager's priority contest to inspect
// before committing to a winner.
func (q *Queue) PeekFor(t time.Time) (entry *Entry, priority float64, lastSend time.Time, ok bool) {
	el := q.headElement()
	if el == nil {
		return nil, 0, time.Time{}, false
	}
	p, _ := q.Priority(t)
	return el.Value.(*Entry), p, q.lastSendTime, true
}

// Take removes the next-eligible entry and, if ack was requested, holds it
// in the ack-pending set under frame until Ack or ClearAckQueue resolves
// it. LastSendTime is updated to now.
func (q *Queue) Take(frame int, now time.Time) (*Entry, error) {
	el := q.headElement()
	if el == nil {
		return nil, dcclerr.ErrEmptyMessage
	}
	q.fifo.Remove(el)
	e := el.Value.(*Entry)
	q.lastSendTime = now
	if e.AckRequested {
		e.frame = frame
		q.ackPending[frame] = append(q.ackPending[frame], e)
	}
	return e, nil
}

// Ack pops every ack-pending entry held under frame, returning them in the
// order they were taken.
func (q *Queue) Ack(frame int) []*Entry {
	entries := q.ackPending[frame]
	delete(q.ackPending, frame)
	return entries
}

// Expire removes (and returns) live FIFO entries older than TTL at time
// now. Ack-pending entries are not touched: they expire only via
// ClearAckQueue putting them back in the FIFO first.
func (q *Queue) Expire(now time.Time) []*Entry {
	if q.Cfg.TTL <= 0 {
		return nil
	}
	var expired []*Entry
	var next *list.Element
	for el := q.fifo.Front(); el != nil; el = next {
		next = el.Next()
		e := el.Value.(*Entry)
		if now.Sub(e.EnqueueTime) > q.Cfg.TTL {
			q.fifo.Remove(el)
			expired = append(expired, e)
		}
	}
	return expired
}

// ClearAckQueue restores every ack-pending entry to the live FIFO (at the
// front), used when a packet is abandoned before being acked. Entries of
// one frame keep their relative order; entries of different frames are
// restored in no defined order.
func (q *Queue) ClearAckQueue() {
	if len(q.ackPending) == 0 {
		return
	}
	for frame, entries := range q.ackPending {
		for i := len(entries) - 1; i >= 0; i-- {
			q.fifo.PushFront(entries[i])
		}
		delete(q.ackPending, frame)
	}
}
