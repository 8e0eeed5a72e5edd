// Package message implements the recursive record traversal that walks a
// RecordDescriptor's fields in declaration order, dispatching each to its
// resolved codec (or, for a nested record field, recursing directly) and
// concatenating the resulting bitstreams — the same shape as the head/body
// split a DCCL wire body is defined by.
package message

import (
	"fmt"

	"github.com/kstaniek/dccl-acomms/internal/bitstream"
	"github.com/kstaniek/dccl-acomms/internal/dccl/dcclerr"
	"github.com/kstaniek/dccl-acomms/internal/dccl/registry"
	"github.com/kstaniek/dccl-acomms/internal/dccl/schema"
	"github.com/kstaniek/dccl-acomms/internal/dccl/value"
)

// Codec encodes and decodes whole records (HEAD or BODY section) against
// a registry of field codecs.
type Codec struct {
	reg *registry.Registry
}

// New returns a message Codec bound to the given registry.
func New(reg *registry.Registry) *Codec { return &Codec{reg: reg} }

// Encode packs every field of rec in section belonging to sec, in
// declaration order, returning the concatenated bitstream.
func (c *Codec) Encode(rd *schema.RecordDescriptor, sec schema.Section, rec value.Record) (*bitstream.Bitstream, error) {
	w := bitstream.NewWriter()
	for i := range rd.Fields {
		f := &rd.Fields[i]
		if f.Section != sec || f.Omit {
			continue
		}
		bs, err := c.encodeField(f, rec[f.Name])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		w.Append(bs)
	}
	return w.Bitstream(), nil
}

// Decode consumes fields of sec from r in declaration order, returning the
// populated record.
func (c *Codec) Decode(rd *schema.RecordDescriptor, sec schema.Section, r *bitstream.Reader) (value.Record, error) {
	rec := make(value.Record)
	for i := range rd.Fields {
		f := &rd.Fields[i]
		if f.Section != sec || f.Omit {
			continue
		}
		v, err := c.decodeField(f, r)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		rec[f.Name] = v
	}
	return rec, nil
}

// MinSizeBits returns the smallest possible bit width of sec across rd's
// fields (every repeated field contributes its zero-length count prefix).
func (c *Codec) MinSizeBits(rd *schema.RecordDescriptor, sec schema.Section) (int, error) {
	total := 0
	for i := range rd.Fields {
		f := &rd.Fields[i]
		if f.Section != sec || f.Omit {
			continue
		}
		n, err := c.fieldMinBits(f)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// MaxSizeBits returns the largest possible bit width of sec across rd's
// fields.
func (c *Codec) MaxSizeBits(rd *schema.RecordDescriptor, sec schema.Section) (int, error) {
	total := 0
	for i := range rd.Fields {
		f := &rd.Fields[i]
		if f.Section != sec || f.Omit {
			continue
		}
		n, err := c.fieldMaxBits(f)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func (c *Codec) encodeField(f *schema.FieldDescriptor, v value.Value) (*bitstream.Bitstream, error) {
	if f.Type == schema.TypeRecord {
		return c.encodeSubRecord(f, v)
	}
	codec, err := c.reg.Codec(f)
	if err != nil {
		return nil, err
	}
	if f.Repeated() {
		return codec.EncodeRepeated(v.L, f.MaxRepeat)
	}
	return codec.Encode(v)
}

func (c *Codec) decodeField(f *schema.FieldDescriptor, r *bitstream.Reader) (value.Value, error) {
	if f.Type == schema.TypeRecord {
		return c.decodeSubRecord(f, r)
	}
	codec, err := c.reg.Codec(f)
	if err != nil {
		return value.Value{}, err
	}
	if f.Repeated() {
		vs, err := codec.DecodeRepeated(r, f.MaxRepeat)
		if err != nil {
			return value.Value{}, err
		}
		return value.List(vs), nil
	}
	return codec.Decode(r)
}

// encodeSubRecord recurses into a nested record field directly, instead of
// dispatching through the field-codec registry: CPPTYPE_MESSAGE fields are
// not scalar codecs and hooks never fire for them (spec's hook rule is
// scalar, non-repeated fields only).
func (c *Codec) encodeSubRecord(f *schema.FieldDescriptor, v value.Value) (*bitstream.Bitstream, error) {
	if f.Sub == nil {
		return nil, fmt.Errorf("%w: record field %q has no sub-descriptor", dcclerr.ErrSchema, f.Name)
	}
	if f.Repeated() {
		w := bitstream.NewWriter()
		count := len(v.L)
		if count > f.MaxRepeat {
			return nil, dcclerr.ErrEncodeOverflow
		}
		countBits := repeatCountBits(f.MaxRepeat)
		w.WriteUint(uint64(count), countBits)
		for _, elem := range v.L {
			bs, err := c.Encode(f.Sub, schema.Body, elem.R)
			if err != nil {
				return nil, err
			}
			w.Append(bs)
		}
		return w.Bitstream(), nil
	}
	return c.Encode(f.Sub, schema.Body, v.R)
}

func (c *Codec) decodeSubRecord(f *schema.FieldDescriptor, r *bitstream.Reader) (value.Value, error) {
	if f.Sub == nil {
		return value.Value{}, fmt.Errorf("%w: record field %q has no sub-descriptor", dcclerr.ErrSchema, f.Name)
	}
	if f.Repeated() {
		countBits := repeatCountBits(f.MaxRepeat)
		n, err := r.ReadUint(countBits)
		if err != nil {
			return value.Value{}, dcclerr.ErrDecodeUnderflow
		}
		out := make([]value.Value, 0, n)
		for i := uint64(0); i < n; i++ {
			sub, err := c.Decode(f.Sub, schema.Body, r)
			if err != nil {
				return value.Value{}, err
			}
			out = append(out, value.FromRecord(sub))
		}
		return value.List(out), nil
	}
	sub, err := c.Decode(f.Sub, schema.Body, r)
	if err != nil {
		return value.Value{}, err
	}
	return value.FromRecord(sub), nil
}

// mandatoryHeadFields are the routing fields spec §4.3 requires present in
// HEAD before a record can be registered.
var mandatoryHeadFields = []string{"source", "destination", "dccl_id"}

// Validate runs the once-at-registration checks: every field codec's own
// Validate, min <= max per field, the mandatory HEAD routing fields are
// present, and total max size fits packetBudgetBits.
func (c *Codec) Validate(rd *schema.RecordDescriptor, packetBudgetBits int) error {
	for i := range rd.Fields {
		f := &rd.Fields[i]
		if f.Type == schema.TypeRecord {
			if f.Sub == nil {
				return fmt.Errorf("%w: record field %q has no sub-descriptor", dcclerr.ErrSchema, f.Name)
			}
			if err := c.Validate(f.Sub, packetBudgetBits); err != nil {
				return err
			}
			continue
		}
		codec, err := c.reg.Codec(f)
		if err != nil {
			return err
		}
		if err := codec.Validate(); err != nil {
			return err
		}
		if codec.MinSizeBits() > codec.MaxSizeBits() {
			return fmt.Errorf("%w: field %q min_size %d > max_size %d", dcclerr.ErrSchema, f.Name, codec.MinSizeBits(), codec.MaxSizeBits())
		}
	}

	for _, name := range mandatoryHeadFields {
		f, ok := rd.Field(name)
		if !ok || f.Section != schema.Head {
			return fmt.Errorf("%w: record %q missing mandatory HEAD field %q", dcclerr.ErrSchema, rd.Name, name)
		}
	}

	headMax, err := c.MaxSizeBits(rd, schema.Head)
	if err != nil {
		return err
	}
	bodyMax, err := c.MaxSizeBits(rd, schema.Body)
	if err != nil {
		return err
	}
	if headMax+bodyMax > packetBudgetBits {
		return fmt.Errorf("%w: record %q max size %d bits exceeds packet budget %d bits", dcclerr.ErrSchema, rd.Name, headMax+bodyMax, packetBudgetBits)
	}
	return nil
}

func (c *Codec) fieldMinBits(f *schema.FieldDescriptor) (int, error) {
	if f.Type == schema.TypeRecord {
		sub, err := c.MinSizeBits(f.Sub, schema.Body)
		if err != nil {
			return 0, err
		}
		if f.Repeated() {
			return repeatCountBits(f.MaxRepeat), nil
		}
		return sub, nil
	}
	codec, err := c.reg.Codec(f)
	if err != nil {
		return 0, err
	}
	if f.Repeated() {
		return repeatCountBits(f.MaxRepeat), nil
	}
	return codec.MinSizeBits(), nil
}

func (c *Codec) fieldMaxBits(f *schema.FieldDescriptor) (int, error) {
	if f.Type == schema.TypeRecord {
		sub, err := c.MaxSizeBits(f.Sub, schema.Body)
		if err != nil {
			return 0, err
		}
		if f.Repeated() {
			return repeatCountBits(f.MaxRepeat) + sub*f.MaxRepeat, nil
		}
		return sub, nil
	}
	codec, err := c.reg.Codec(f)
	if err != nil {
		return 0, err
	}
	if f.Repeated() {
		return repeatCountBits(f.MaxRepeat) + codec.MaxSizeBits()*f.MaxRepeat, nil
	}
	return codec.MaxSizeBits(), nil
}

// repeatCountBits mirrors fieldcodec's unexported helper: the count-prefix
// width for a repeated field capped at maxRepeat.
func repeatCountBits(maxRepeat int) int {
	if maxRepeat <= 0 {
		return 0
	}
	n := 0
	for v := uint64(maxRepeat); v > 0; v >>= 1 {
		n++
	}
	return n
}
