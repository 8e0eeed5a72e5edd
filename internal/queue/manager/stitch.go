package manager

import (
	"time"

	"github.com/kstaniek/dccl-acomms/internal/bitstream"
	"github.com/kstaniek/dccl-acomms/internal/ccl"
	"github.com/kstaniek/dccl-acomms/internal/dccl/header"
	"github.com/kstaniek/dccl-acomms/internal/queue"
)

// userFrameNextSizeBytes is the 1-byte length prefix between stitched
// user-frames (spec §6's USER_FRAME_NEXT_SIZE constant).
const userFrameNextSizeBytes = 1

type winner struct {
	key   queue.Key
	q     *queue.Queue
	entry *queue.Entry
}

type userFrame struct {
	key     queue.Key
	entry   *queue.Entry
	hdrCopy []byte // this user-frame's header bytes, mutable in place
	payload []byte // record bytes beyond the header
}

// refreshOnDemand polls every on-demand queue whose newest message is
// stale and, if the host's callback produces one, pushes a fresh record
// ahead of the contest (spec §4.5's "triggers the on_demand_callback...
// before the contest").
func (m *Manager) refreshOnDemand(now time.Time, req Request) {
	if m.hooks.OnDemand == nil {
		return
	}
	for key, q := range m.queues {
		if !q.Cfg.OnDemand || !q.Stale(now) {
			continue
		}
		recordBytes, dest, ok := m.hooks.OnDemand(key, req)
		if !ok {
			continue
		}
		_ = q.Push(&queue.Entry{
			RecordBytes: recordBytes,
			Destination: dest,
			EnqueueTime: now,
		})
	}
}

// findNextSender runs the priority contest over all non-blackout, non-
// empty queues: highest priority wins, ties break on earliest
// last_send_time. CCL queues are excluded once the frame already has
// content (CCL must be the whole packet); once a destination is fixed,
// only that destination or BROADCAST remain eligible.
func (m *Manager) findNextSender(now time.Time, frameHasContent, destSet bool, dest uint32) (winner, bool) {
	var best winner
	haveBest := false
	var bestPriority float64
	var bestLastSend time.Time

	for key, q := range m.queues {
		if frameHasContent && key.Type == queue.KeyCCL {
			continue
		}
		if q.InBlackout(now) {
			continue
		}
		entry, priority, lastSend, ok := q.PeekFor(now)
		if !ok {
			continue
		}
		if destSet && entry.Destination != dest && entry.Destination != header.BroadcastID {
			continue
		}
		better := !haveBest ||
			priority > bestPriority ||
			(priority == bestPriority && lastSend.Before(bestLastSend)) ||
			(priority == bestPriority && lastSend.Equal(bestLastSend) && lessKey(key, best.key))
		if better {
			best = winner{key: key, q: q, entry: entry}
			bestPriority = priority
			bestLastSend = lastSend
			haveBest = true
		}
	}
	return best, haveBest
}

// lessKey gives the priority contest a final, fully deterministic tiebreak
// once priority and last_send_time tie (notably two never-sent queues,
// which both carry a zero last_send_time), so the winner never depends on
// Go's randomized map iteration order.
func lessKey(a, b queue.Key) bool {
	if a.Type != b.Type {
		return a.Type < b.Type
	}
	return a.ID < b.ID
}

// HandleModemDataRequest runs the priority contest and stitches winning
// queue payloads into one modem frame, per spec §4.6 and the wire format
// in §6.
func (m *Manager) HandleModemDataRequest(req Request) ([]byte, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	if req.Frame == 0 {
		for _, q := range m.queues {
			q.ClearAckQueue()
		}
	}

	m.refreshOnDemand(now, req)

	var frames []userFrame
	var cclFrame *userFrame
	destSet := false
	var dest uint32
	ackRequired := false
	bytesRemaining := req.MaxBytes
	frameHasContent := false

	for {
		w, ok := m.findNextSender(now, frameHasContent, destSet, dest)
		if !ok {
			break
		}

		if w.key.Type == queue.KeyCCL {
			need := 1 + ccl.PayloadBytes
			if need > bytesRemaining {
				break
			}
			entry, err := w.q.Take(req.Frame, now)
			if err != nil {
				break
			}
			payload, err := ccl.Pack(entry.RecordBytes)
			if err != nil {
				continue
			}
			cclFrame = &userFrame{key: w.key, entry: entry, payload: payload}
			ackRequired = ackRequired || entry.AckRequested
			break
		}

		if len(w.entry.RecordBytes) < m.hdrLen {
			// Corrupt queue entry; drop it and keep contesting.
			_, _ = w.q.Take(req.Frame, now)
			continue
		}
		payload := w.entry.RecordBytes[m.hdrLen:]
		// The CCL id byte is only carried once, on the first frame of the
		// packet; every later frame's header is one byte shorter on the
		// wire. Reserve the USER_FRAME_NEXT_SIZE byte for every candidate,
		// since we don't know until the next contest round whether this
		// frame will turn out to be the last (and so drop its size prefix).
		wireHdrLen := m.hdrLen
		if len(frames) > 0 {
			wireHdrLen -= header.CCLIDBytes
		}
		need := wireHdrLen + userFrameNextSizeBytes + len(payload)
		if need > bytesRemaining {
			break
		}

		entry, err := w.q.Take(req.Frame, now)
		if err != nil {
			break
		}
		hdrCopy := append([]byte(nil), entry.RecordBytes[:m.hdrLen]...)

		frames = append(frames, userFrame{key: w.key, entry: entry, hdrCopy: hdrCopy, payload: payload})
		if !destSet {
			dest = entry.Destination
			destSet = true
		}
		ackRequired = ackRequired || entry.AckRequested
		bytesRemaining -= need
		frameHasContent = true

		if bytesRemaining <= m.hdrLen {
			break
		}
	}

	if cclFrame != nil {
		return append([]byte{byte(cclFrame.key.ID)}, cclFrame.payload...), nil
	}
	if len(frames) == 0 {
		return nil, nil
	}
	return m.assemblePacket(frames), nil
}

// assemblePacket patches the multi-frame flag on every stitched header
// (clear on all but the last) and concatenates the wire bytes: each
// non-last user-frame is header || USER_FRAME_NEXT_SIZE || payload, the
// byte holding that same frame's own payload length so a receiver can
// find the next header without consulting any schema; the last frame
// carries no size byte, its payload running to the end of the packet. The
// CCL id byte is emitted exactly once, as the very first byte of the
// packet: every frame after the first has it stripped from its header.
func (m *Manager) assemblePacket(frames []userFrame) []byte {
	for i := range frames {
		bs, err := bitstream.FromBytes(frames[i].hdrCopy, m.hdr.HeaderBits())
		if err != nil {
			continue
		}
		m.hdr.SetMultiFrame(bs, i != len(frames)-1)
		m.hdr.SetBroadcast(bs, frames[i].entry.Destination == header.BroadcastID)
		hdrBytes := bs.ToBytes()
		if i != 0 {
			hdrBytes = hdrBytes[header.CCLIDBytes:]
		}
		frames[i].hdrCopy = hdrBytes
	}

	var out []byte
	for i := range frames {
		out = append(out, frames[i].hdrCopy...)
		if i != len(frames)-1 {
			out = append(out, byte(len(frames[i].payload)))
		}
		out = append(out, frames[i].payload...)
	}
	return out
}
