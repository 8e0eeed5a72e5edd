// Package engine is the host-callable DCCL surface (spec §6): register
// codecs and record schemas, then encode/decode whole wire records. It
// wires together the registry, the recursive message codec, and the fixed
// system header into one API the queue manager calls.
package engine

import (
	"fmt"

	"github.com/kstaniek/dccl-acomms/internal/bitstream"
	"github.com/kstaniek/dccl-acomms/internal/dccl/dcclerr"
	"github.com/kstaniek/dccl-acomms/internal/dccl/fieldcodec"
	"github.com/kstaniek/dccl-acomms/internal/dccl/header"
	"github.com/kstaniek/dccl-acomms/internal/dccl/message"
	"github.com/kstaniek/dccl-acomms/internal/dccl/registry"
	"github.com/kstaniek/dccl-acomms/internal/dccl/schema"
	"github.com/kstaniek/dccl-acomms/internal/dccl/value"
)

// MaxPacketBytes is the hard ceiling on one encoded record plus its header,
// per spec §3 ("Total encoded size in bytes ≤ 255").
const MaxPacketBytes = 255

// Engine owns one registry and the message/header codecs bound to it.
type Engine struct {
	reg    *registry.Registry
	msg    *message.Codec
	hdr    *header.Codec
	budget int // packet budget in bits, header included
}

// New returns an Engine over a fresh registry, with the given header
// layout and per-packet byte budget.
func New(hdrCfg header.Config, packetBudgetBytes int) *Engine {
	reg := registry.New()
	return &Engine{
		reg:    reg,
		msg:    message.New(reg),
		hdr:    header.New(hdrCfg),
		budget: packetBudgetBytes * 8,
	}
}

// RegisterCodec installs a named field codec factory.
func (e *Engine) RegisterCodec(name string, f fieldcodec.Factory) error {
	return e.reg.RegisterCodec(name, f)
}

// RegisterRecord validates rd against the packet budget (header space
// included) and declares it under its ID.
func (e *Engine) RegisterRecord(rd *schema.RecordDescriptor) error {
	recordBudget := e.budget - e.hdr.HeaderBits()
	if recordBudget < 0 {
		return fmt.Errorf("%w: header alone (%d bits) exceeds packet budget", dcclerr.ErrSchema, e.hdr.HeaderBits())
	}
	if err := e.msg.Validate(rd, recordBudget); err != nil {
		return err
	}
	return e.reg.RegisterRecord(rd)
}

// Encode packs a record's field values into wire bytes: system header
// (CCL id, DCCL id, flags, addresses, time) followed by the record's own
// HEAD and BODY sections. Locks the registry on first call.
//
// source, destination and dccl_id live in the fixed system header so the
// queue manager can route and stitch frames without decoding a schema. A
// demo schema may also declare source/destination as HEAD fields for its
// own bookkeeping; Decode always overwrites those with the header's copy
// after unpacking HEAD, so the two representations can never diverge, at
// the cost of spending header bits and HEAD bits on the same values.
func (e *Engine) Encode(recordID uint32, values value.Record) ([]byte, error) {
	e.reg.Lock()
	rd, err := e.reg.Record(recordID)
	if err != nil {
		return nil, err
	}

	hf := header.Fields{
		DcclID:      recordID,
		Source:      uint32(fieldInt(values, "source")),
		Destination: uint32(fieldInt(values, "destination")),
		Time:        uint32(fieldInt(values, "time")),
	}
	hf.Broadcast = hf.Destination == header.BroadcastID

	hdrBits, err := e.hdr.EncodeHeader(hf)
	if err != nil {
		return nil, err
	}
	headBits, err := e.msg.Encode(rd, schema.Head, values)
	if err != nil {
		return nil, err
	}
	bodyBits, err := e.msg.Encode(rd, schema.Body, values)
	if err != nil {
		return nil, err
	}

	w := bitstream.NewWriter()
	w.Append(hdrBits)
	w.Append(headBits)
	w.Append(bodyBits)
	out := w.Bitstream().ToBytes()
	if len(out) > MaxPacketBytes {
		return nil, dcclerr.ErrEncodeOverflow
	}
	return out, nil
}

// Decode unpacks wire bytes, dispatching on the header's DCCL id to find
// the declared record schema, and returns the record ID plus the merged
// HEAD+BODY field values. Locks the registry on first call.
func (e *Engine) Decode(data []byte) (uint32, value.Record, error) {
	e.reg.Lock()
	bs, err := bitstream.FromBytes(data, len(data)*8)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", dcclerr.ErrDecodeCorrupt, err)
	}
	r := bitstream.NewReader(bs)

	hf, _, err := e.hdr.DecodeHeader(r)
	if err != nil {
		return 0, nil, err
	}
	rd, err := e.reg.Record(hf.DcclID)
	if err != nil {
		return 0, nil, err
	}

	head, err := e.msg.Decode(rd, schema.Head, r)
	if err != nil {
		return 0, nil, err
	}
	body, err := e.msg.Decode(rd, schema.Body, r)
	if err != nil {
		return 0, nil, err
	}
	out := make(value.Record, len(head)+len(body))
	for k, v := range head {
		out[k] = v
	}
	for k, v := range body {
		out[k] = v
	}
	out["source"] = value.Int(int64(hf.Source))
	out["destination"] = value.Int(int64(hf.Destination))
	out["time"] = value.Int(int64(hf.Time))
	return rd.ID, out, nil
}

func fieldInt(rec value.Record, name string) int64 {
	v, ok := rec[name]
	if !ok || !v.Present {
		return 0
	}
	return v.I
}
