package manager

import (
	"fmt"

	"github.com/kstaniek/dccl-acomms/internal/bitstream"
	"github.com/kstaniek/dccl-acomms/internal/ccl"
	"github.com/kstaniek/dccl-acomms/internal/dccl/dcclerr"
	"github.com/kstaniek/dccl-acomms/internal/dccl/header"
	"github.com/kstaniek/dccl-acomms/internal/queue"
)

// HandleModemAck routes an ack to every queue's ack-pending set for the
// reported frame. A self-sourced ack (loopback) is dropped silently, per
// spec §4.6's "drop silently if src == self."
func (m *Manager) HandleModemAck(ack Ack) error {
	if ack.Src == m.selfID {
		return nil
	}
	m.mu.Lock()
	type popped struct {
		key     queue.Key
		entries []*queue.Entry
	}
	var batches []popped
	for key, q := range m.queues {
		if entries := q.Ack(ack.Frame); len(entries) > 0 {
			batches = append(batches, popped{key: key, entries: entries})
		}
	}
	m.mu.Unlock()

	if len(batches) == 0 {
		return fmt.Errorf("%w: frame %d", dcclerr.ErrAckMismatch, ack.Frame)
	}
	for _, b := range batches {
		for _, e := range b.entries {
			if m.hooks.OnAck != nil {
				m.hooks.OnAck(b.key, ack, e.RecordBytes)
			}
		}
	}
	return nil
}

// HandleModemReceive unstitches an incoming packet: a DCCL packet is split
// on each frame's USER_FRAME_NEXT_SIZE byte (present on every user-frame
// but the last, immediately after that frame's own header) and each
// user-frame is dispatched individually; a legacy CCL packet is dispatched
// whole.
func (m *Manager) HandleModemReceive(frame []byte) error {
	if len(frame) == 0 {
		return dcclerr.ErrDecodeUnderflow
	}
	if frame[0] != header.DcclCCLHeader {
		return m.receiveCCL(frame)
	}
	return m.receiveDCCL(frame)
}

func (m *Manager) receiveCCL(frame []byte) error {
	id := uint32(frame[0])
	key := queue.Key{Type: queue.KeyCCL, ID: id}
	payload, err := ccl.Unpack(frame[1:])
	if err != nil {
		return fmt.Errorf("%w: %v", dcclerr.ErrDecodeCorrupt, err)
	}
	if m.hooks.OnReceiveCCL != nil {
		m.hooks.OnReceiveCCL(key, payload)
	}
	return nil
}

func (m *Manager) receiveDCCL(frame []byte) error {
	remaining := frame
	first := true
	for len(remaining) > 0 {
		// The CCL id byte rides on the wire only once, on the first
		// user-frame; later frames' headers are that much shorter and need
		// it synthesized back before decoding.
		wireHdrLen := m.hdrLen
		if !first {
			wireHdrLen -= header.CCLIDBytes
		}
		if len(remaining) < wireHdrLen {
			return fmt.Errorf("%w: user-frame shorter than header", dcclerr.ErrDecodeUnderflow)
		}
		var hdrBytes []byte
		if first {
			hdrBytes = append([]byte(nil), remaining[:wireHdrLen]...)
		} else {
			hdrBytes = make([]byte, 0, m.hdrLen)
			hdrBytes = append(hdrBytes, header.DcclCCLHeader)
			hdrBytes = append(hdrBytes, remaining[:wireHdrLen]...)
		}
		bs, err := bitstream.FromBytes(hdrBytes, m.hdr.HeaderBits())
		if err != nil {
			return fmt.Errorf("%w: %v", dcclerr.ErrDecodeCorrupt, err)
		}
		r := bitstream.NewReader(bs)
		fields, _, err := m.hdr.DecodeHeader(r)
		if err != nil {
			return err
		}

		rest := remaining[wireHdrLen:]
		var payloadLen int
		var next []byte
		if fields.MultiFrame {
			if len(rest) < userFrameNextSizeBytes {
				return fmt.Errorf("%w: missing USER_FRAME_NEXT_SIZE byte", dcclerr.ErrDecodeUnderflow)
			}
			payloadLen = int(rest[0])
			rest = rest[userFrameNextSizeBytes:]
			if payloadLen > len(rest) {
				return fmt.Errorf("%w: USER_FRAME_NEXT_SIZE exceeds remaining bytes", dcclerr.ErrDecodeCorrupt)
			}
			next = rest[payloadLen:]
		} else {
			// Last user-frame: no size prefix, payload runs to the end of
			// the packet.
			payloadLen = len(rest)
			next = nil
		}
		payload := rest[:payloadLen]

		destination := fields.Destination
		if fields.Broadcast {
			destination = header.BroadcastID
		}
		// The multi-frame and broadcast flags are assembly-time bookkeeping;
		// clear them before handing the header to the application layer, so
		// unstitching returns exactly what was originally pushed.
		m.hdr.SetMultiFrame(bs, false)
		m.hdr.SetBroadcast(bs, false)
		clearedHdr := bs.ToBytes()

		key := queue.Key{Type: queue.KeyDCCL, ID: fields.DcclID}
		if m.hooks.OnReceive != nil {
			m.hooks.OnReceive(key, append(clearedHdr, payload...), destination)
		}

		remaining = next
		first = false
	}
	return nil
}
