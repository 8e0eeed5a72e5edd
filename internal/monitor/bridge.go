package monitor

import (
	"time"

	"github.com/kstaniek/dccl-acomms/internal/queue"
	"github.com/kstaniek/dccl-acomms/internal/queue/manager"
)

// WrapHooks returns a manager.Hooks that broadcasts onto hub in addition to
// delegating to inner's callbacks (any of which may be nil), letting a host observe traffic
// without owning the event translation itself.
func WrapHooks(hub *Hub, inner manager.Hooks, nowFunc func() time.Time) manager.Hooks {
	if nowFunc == nil {
		nowFunc = time.Now
	}
	publish := func(kind EventKind, key queue.Key, frame int, dest uint32, n int) {
		hub.Broadcast(Event{
			Kind:        kind,
			At:          nowFunc(),
			QueueType:   uint8(key.Type),
			QueueID:     key.ID,
			Frame:       frame,
			Destination: dest,
			Bytes:       n,
		})
	}

	h := manager.Hooks{
		OnDemand: inner.OnDemand,
	}
	h.OnAck = func(key queue.Key, ack manager.Ack, recordBytes []byte) {
		publish(EventAck, key, ack.Frame, ack.Src, len(recordBytes))
		if inner.OnAck != nil {
			inner.OnAck(key, ack, recordBytes)
		}
	}
	h.OnExpire = func(key queue.Key, recordBytes []byte) {
		publish(EventExpire, key, -1, 0, len(recordBytes))
		if inner.OnExpire != nil {
			inner.OnExpire(key, recordBytes)
		}
	}
	h.OnReceive = func(key queue.Key, recordBytes []byte, destination uint32) {
		publish(EventRx, key, -1, destination, len(recordBytes))
		if inner.OnReceive != nil {
			inner.OnReceive(key, recordBytes, destination)
		}
	}
	h.OnReceiveCCL = func(key queue.Key, raw []byte) {
		publish(EventRx, key, -1, 0, len(raw))
		if inner.OnReceiveCCL != nil {
			inner.OnReceiveCCL(key, raw)
		}
	}
	h.OnQueueSizeChange = inner.OnQueueSizeChange
	return h
}
