package modem

import (
	"bytes"
	"encoding/binary"

	"github.com/kstaniek/dccl-acomms/internal/metrics"
)

// Wire framing for the serial Link. An acoustic modem's real host interface
// is a vendor NMEA-style sentence protocol (cycle init, transducer control,
// ...); reproducing one is out of scope here (the abstract Link is the
// contract), so the serial backend speaks a minimal self-framed protocol
// carrying the same three event kinds the manager already understands.
//
// Frame layout: [0xA3, 0xB5, TAG(1), LEN(1), payload[LEN], checksum(1)]
// checksum = (TAG + LEN + sum(payload)) mod 256
const (
	preamble0 = 0xA3
	preamble1 = 0xB5

	tagData    = 'D' // payload is a packet for HandleModemReceive
	tagRequest = 'R' // payload is a 5-byte Request (frame uint8, maxBytes uint32)
	tagAck     = 'A' // payload is a 5-byte Ack (frame uint8, src uint32)
)

func encodeFrame(tag byte, payload []byte) []byte {
	n := len(payload)
	out := make([]byte, n+5)
	out[0] = preamble0
	out[1] = preamble1
	out[2] = tag
	out[3] = byte(n)
	copy(out[4:], payload)
	sum := tag + byte(n)
	for _, b := range payload {
		sum += b
	}
	out[4+n] = sum
	return out
}

func encodeRequest(r Request) []byte {
	p := make([]byte, 5)
	p[0] = byte(r.Frame)
	binary.BigEndian.PutUint32(p[1:], uint32(r.MaxBytes))
	return encodeFrame(tagRequest, p)
}

func encodeAck(a Ack) []byte {
	p := make([]byte, 5)
	p[0] = byte(a.Frame)
	binary.BigEndian.PutUint32(p[1:], a.Src)
	return encodeFrame(tagAck, p)
}

func encodeData(packet []byte) []byte { return encodeFrame(tagData, packet) }

// decodeStream pulls complete frames out of in, dispatching each by tag.
// Garbage bytes are resynchronized on the preamble, mirroring the teacher's
// serial.Codec.DecodeStream.
func decodeStream(in *bytes.Buffer, onData func([]byte), onRequest func(Request), onAck func(Ack)) {
	header := []byte{preamble0, preamble1}
	for {
		data := in.Bytes()
		if len(data) < 4 {
			return
		}
		i := bytes.Index(data, header)
		if i < 0 {
			if in.Len() > 1 {
				last := data[len(data)-1]
				in.Reset()
				_ = in.WriteByte(last)
			}
			return
		}
		if i > 0 {
			in.Next(i)
			continue
		}
		if len(data) < 5 {
			return
		}
		tag := data[2]
		n := int(data[3])
		total := 5 + n
		if len(data) < total {
			return
		}
		payload := data[4 : 4+n]
		sum := tag + byte(n)
		for _, b := range payload {
			sum += b
		}
		if byte(sum) != data[total-1] {
			metrics.IncMalformed()
			in.Next(1)
			continue
		}

		switch tag {
		case tagData:
			onData(append([]byte(nil), payload...))
		case tagRequest:
			if n == 5 {
				onRequest(Request{Frame: int(payload[0]), MaxBytes: int(binary.BigEndian.Uint32(payload[1:]))})
			}
		case tagAck:
			if n == 5 {
				onAck(Ack{Frame: int(payload[0]), Src: binary.BigEndian.Uint32(payload[1:])})
			}
		default:
			metrics.IncMalformed()
		}
		in.Next(total)
	}
}
