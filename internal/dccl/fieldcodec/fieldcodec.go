// Package fieldcodec defines the per-field codec contract (spec §4.2) and
// the default codecs every registry starts with: bool, bounded integer,
// enum, float-with-precision, fixed-length string, variable-length string.
package fieldcodec

import (
	"fmt"
	"math/bits"

	"github.com/kstaniek/dccl-acomms/internal/bitstream"
	"github.com/kstaniek/dccl-acomms/internal/dccl/dcclerr"
	"github.com/kstaniek/dccl-acomms/internal/dccl/schema"
	"github.com/kstaniek/dccl-acomms/internal/dccl/value"
)

// Codec is the per-field encode/decode/size/validate contract every
// registered codec implements. Instances are registered, not types: a
// codec is a value capturing the field's resolved parameters.
type Codec interface {
	Encode(v value.Value) (*bitstream.Bitstream, error)
	Decode(r *bitstream.Reader) (value.Value, error)
	EncodeRepeated(vs []value.Value, maxRepeat int) (*bitstream.Bitstream, error)
	DecodeRepeated(r *bitstream.Reader, maxRepeat int) ([]value.Value, error)
	MinSizeBits() int
	MaxSizeBits() int
	Validate() error
	Hooks(v value.Value)
	Info() string
}

// Factory builds a Codec instance for a resolved field descriptor.
type Factory func(f *schema.FieldDescriptor) (Codec, error)

// HookFunc observes a value as it is encoded; used for statistics. The
// default is a no-op, matching spec's "no-op by default."
type HookFunc func(v value.Value)

func countBits(n uint64) int {
	if n == 0 {
		return 1
	}
	return bits.Len64(n)
}

// repeatCountBits returns ceil(log2(maxRepeat+1)), the width of the count
// prefix a variable-width codec needs to decode a repeated field.
func repeatCountBits(maxRepeat int) int {
	if maxRepeat <= 0 {
		return 0
	}
	return countBits(uint64(maxRepeat))
}

func fmtErr(format string, a ...any) error {
	return fmt.Errorf("%w: %s", dcclerr.ErrSchema, fmt.Sprintf(format, a...))
}

func fmtInfo(format string, a ...any) string {
	return fmt.Sprintf(format, a...)
}
