package fieldcodec

import "github.com/kstaniek/dccl-acomms/internal/dccl/schema"

// Default codec names, as registered under the registry's built-in
// "dccl.default.*" namespace.
const (
	NameBool     = "dccl.default.bool"
	NameInt      = "dccl.default.int"
	NameEnum     = "dccl.default.enum"
	NameFloat    = "dccl.default.float"
	NameFixedStr = "dccl.default.string.fixed"
	NameVarStr   = "dccl.default.string.var"
)

// BuildDefault resolves the built-in codec for a field descriptor's
// declared Type and CodecParams. It is the Factory bound to each of the
// NameX constants above.
func BuildDefault(f *schema.FieldDescriptor) (Codec, error) {
	switch f.Type {
	case schema.TypeBool:
		return NewBoolCodec(), nil
	case schema.TypeInt:
		return NewBoundedIntCodec(f.Params.Lo, f.Params.Hi), nil
	case schema.TypeEnum:
		return NewEnumCodec(f.Params.EnumValues), nil
	case schema.TypeFloat:
		return NewFloatCodec(float64(f.Params.Lo), float64(f.Params.Hi), f.Params.Precision), nil
	case schema.TypeString:
		if f.Params.FixedBytes > 0 {
			return NewFixedStringCodec(f.Params.FixedBytes), nil
		}
		return NewVarStringCodec(f.Params.MaxBytes), nil
	default:
		return nil, fmtErr("no default codec for field type %s", f.Type)
	}
}
