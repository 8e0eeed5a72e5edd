// Package value implements the tagged dynamic container field values flow
// through during DCCL encode/decode, replacing the boost::any the original
// implementation passes through its recursive descriptor walk.
package value

// Kind discriminates the payload carried by a Value.
type Kind int

const (
	KindBool Kind = iota
	KindInt
	KindFloat
	KindBytes
	KindEnum
	KindRecord
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBytes:
		return "bytes"
	case KindEnum:
		return "enum"
	case KindRecord:
		return "record"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Record maps field names to their values; a decoded sub-record is built up
// as one of these rather than by mutating a shared message pointer.
type Record map[string]Value

// Value is a tagged variant. Present distinguishes an explicit "missing"
// field (the bounded-int/enum sentinel) from a genuine zero value.
type Value struct {
	Kind    Kind
	Present bool

	B   bool
	I   int64
	F   float64
	Raw []byte
	E   uint32
	R   Record
	L   []Value
}

// Bool constructs a present boolean value.
func Bool(v bool) Value { return Value{Kind: KindBool, Present: true, B: v} }

// Int constructs a present integer value.
func Int(v int64) Value { return Value{Kind: KindInt, Present: true, I: v} }

// Float constructs a present float value.
func Float(v float64) Value { return Value{Kind: KindFloat, Present: true, F: v} }

// Bytes constructs a present byte-string value.
func Bytes(v []byte) Value { return Value{Kind: KindBytes, Present: true, Raw: v} }

// Enum constructs a present enum value-index.
func Enum(v uint32) Value { return Value{Kind: KindEnum, Present: true, E: v} }

// FromRecord constructs a present nested-record value.
func FromRecord(v Record) Value { return Value{Kind: KindRecord, Present: true, R: v} }

// List constructs a present repeated-field value.
func List(v []Value) Value { return Value{Kind: KindList, Present: true, L: v} }

// Missing constructs an absent value of the given kind.
func Missing(k Kind) Value { return Value{Kind: k} }
