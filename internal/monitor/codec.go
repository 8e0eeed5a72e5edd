package monitor

import (
	"encoding/binary"
	"errors"
	"io"
	"time"
)

// ErrTruncatedEvent is returned when a reader ends mid-event.
var ErrTruncatedEvent = errors.New("monitor: truncated event")

const eventWire = 1 + 8 + 1 + 4 + 4 + 4 + 4 // kind, at(unixnano), queueType, queueID, frame, destination, bytes

// Codec encodes/decodes Events to a fixed-width binary wire format.
type Codec struct{}

func (Codec) encodeOne(buf []byte, e Event) {
	buf[0] = byte(e.Kind)
	binary.BigEndian.PutUint64(buf[1:9], uint64(e.At.UnixNano()))
	buf[9] = e.QueueType
	binary.BigEndian.PutUint32(buf[10:14], e.QueueID)
	binary.BigEndian.PutUint32(buf[14:18], uint32(e.Frame))
	binary.BigEndian.PutUint32(buf[18:22], e.Destination)
	binary.BigEndian.PutUint32(buf[22:26], uint32(e.Bytes))
}

// EncodeTo writes the wire representation of events to w and returns the
// number of bytes written.
func (Codec) EncodeTo(w io.Writer, events []Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	buf := make([]byte, len(events)*eventWire)
	for i, e := range events {
		Codec{}.encodeOne(buf[i*eventWire:], e)
	}
	n, err := w.Write(buf)
	return n, err
}

// Decode reads a single event from r.
func (Codec) Decode(r io.Reader) (Event, error) {
	buf := make([]byte, eventWire)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Event{}, ErrTruncatedEvent
		}
		return Event{}, err
	}
	return Event{
		Kind:        EventKind(buf[0]),
		At:          time.Unix(0, int64(binary.BigEndian.Uint64(buf[1:9]))),
		QueueType:   buf[9],
		QueueID:     binary.BigEndian.Uint32(buf[10:14]),
		Frame:       int(int32(binary.BigEndian.Uint32(buf[14:18]))),
		Destination: binary.BigEndian.Uint32(buf[18:22]),
		Bytes:       int(int32(binary.BigEndian.Uint32(buf[22:26]))),
	}, nil
}
