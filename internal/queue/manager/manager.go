// Package manager implements the Queue Manager (spec §4.6): a priority
// contest across named queues feeding fixed-byte modem frames, frame
// stitching and unstitching, ack routing, and on-demand dispatch.
package manager

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kstaniek/dccl-acomms/internal/dccl/dcclerr"
	"github.com/kstaniek/dccl-acomms/internal/dccl/header"
	"github.com/kstaniek/dccl-acomms/internal/queue"
)

// ErrDuplicateQueue is returned by AddQueue for an already-registered key.
var ErrDuplicateQueue = errors.New("manager: duplicate queue key")

// Request is a modem's solicitation for the next frame's worth of bytes.
type Request struct {
	Frame           int
	MaxBytes        int
	DestinationHint uint32
}

// Ack is a modem-reported acknowledgement of a previously sent frame.
type Ack struct {
	Frame int
	Src   uint32
}

// OnDemandFunc synthesizes a record on request for an on-demand queue. The
// second return reports whether a record was produced.
type OnDemandFunc func(key queue.Key, req Request) (recordBytes []byte, destination uint32, ok bool)

// Hooks are the callbacks the host installs, each optional and at-most-one
// per event, mirroring the teacher's transport.Hooks fan-out shape.
type Hooks struct {
	OnAck             func(key queue.Key, ack Ack, recordBytes []byte)
	OnExpire          func(key queue.Key, recordBytes []byte)
	OnReceive         func(key queue.Key, recordBytes []byte, destination uint32)
	OnReceiveCCL      func(key queue.Key, raw []byte)
	OnDemand          OnDemandFunc
	OnQueueSizeChange func(key queue.Key, n int)
}

// Manager is the process-wide queue multiplexer for one modem endpoint.
type Manager struct {
	mu      sync.Mutex
	selfID  uint32
	hdr     *header.Codec
	hdrLen  int
	hooks   Hooks
	queues  map[queue.Key]*queue.Queue
	nowFunc func() time.Time
}

// New returns an empty Manager for selfID, using hdrCfg for wire-header
// field layout and hooks for host callbacks.
func New(selfID uint32, hdrCfg header.Config, hooks Hooks) *Manager {
	hc := header.New(hdrCfg)
	return &Manager{
		selfID:  selfID,
		hdr:     hc,
		hdrLen:  (hc.HeaderBits() + 7) / 8,
		hooks:   hooks,
		queues:  make(map[queue.Key]*queue.Queue),
		nowFunc: time.Now,
	}
}

func (m *Manager) now() time.Time { return m.nowFunc() }

// AddQueue registers a new queue under key; re-adding an existing key is an
// error.
func (m *Manager) AddQueue(key queue.Key, cfg queue.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.queues[key]; exists {
		return fmt.Errorf("%w: %+v", ErrDuplicateQueue, key)
	}
	m.queues[key] = queue.New(key, cfg)
	return nil
}

// SetOnDemand flags an already-registered queue as on-demand.
func (m *Manager) SetOnDemand(key queue.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[key]
	if !ok {
		return fmt.Errorf("%w: %+v", dcclerr.ErrNoSuchQueue, key)
	}
	q.Cfg.OnDemand = true
	return nil
}

// Push enqueues recordBytes under key. A record destined for this node
// bypasses the queue entirely and is fed straight to the receive path
// (spec's loopback rule).
func (m *Manager) Push(key queue.Key, recordBytes []byte, destination uint32, ackRequested bool) error {
	m.mu.Lock()
	q, ok := m.queues[key]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %+v", dcclerr.ErrNoSuchQueue, key)
	}
	if destination == m.selfID {
		m.mu.Unlock()
		m.deliverLoopback(key, recordBytes, destination)
		return nil
	}
	err := q.Push(&queue.Entry{
		RecordBytes:  recordBytes,
		Destination:  destination,
		AckRequested: ackRequested,
		EnqueueTime:  m.now(),
	})
	n := q.Len()
	m.mu.Unlock()
	if err == nil && m.hooks.OnQueueSizeChange != nil {
		m.hooks.OnQueueSizeChange(key, n)
	}
	return err
}

func (m *Manager) deliverLoopback(key queue.Key, recordBytes []byte, destination uint32) {
	if key.Type == queue.KeyCCL {
		if m.hooks.OnReceiveCCL != nil {
			m.hooks.OnReceiveCCL(key, recordBytes)
		}
		return
	}
	if m.hooks.OnReceive != nil {
		m.hooks.OnReceive(key, recordBytes, destination)
	}
}

// DoWork runs one cooperative tick: expire TTLs across every queue and
// fire OnExpire for each dropped entry.
func (m *Manager) DoWork() {
	now := m.now()
	m.mu.Lock()
	type expired struct {
		key     queue.Key
		entries []*queue.Entry
	}
	var batches []expired
	for key, q := range m.queues {
		if es := q.Expire(now); len(es) > 0 {
			batches = append(batches, expired{key: key, entries: es})
		}
	}
	m.mu.Unlock()

	for _, b := range batches {
		for _, e := range b.entries {
			if m.hooks.OnExpire != nil {
				m.hooks.OnExpire(b.key, e.RecordBytes)
			}
		}
	}
}

