// Package schema declares the typed record schema DCCL records are built
// from: field descriptors, their section/codec assignment, and codec
// parameters (bounds, precision, max lengths).
package schema

import "fmt"

// Section identifies which half of the wire record a field belongs to.
type Section int

const (
	Head Section = iota
	Body
)

func (s Section) String() string {
	if s == Head {
		return "HEAD"
	}
	return "BODY"
}

// Type is the field's semantic type, independent of its codec.
type Type int

const (
	TypeBool Type = iota
	TypeInt
	TypeFloat
	TypeString
	TypeEnum
	TypeRecord
)

// CodecParams carries the per-field parameters a default codec needs
// (bounds for bounded integers/floats, precision, max string length, the
// closed enum value set).
type CodecParams struct {
	Lo, Hi     int64
	Precision  int
	MaxBytes   int
	FixedBytes int
	EnumValues []string
}

// FieldDescriptor describes one record field.
type FieldDescriptor struct {
	Name      string
	Type      Type
	Section   Section
	Omit      bool
	MaxRepeat int // 0 means not repeated
	Codec     string
	Params    CodecParams
	Sub       *RecordDescriptor // set when Type == TypeRecord
}

// Repeated reports whether the field is a repeated container.
func (f *FieldDescriptor) Repeated() bool { return f.MaxRepeat > 0 }

// RecordDescriptor is an ordered list of fields: a declared, fixed-shape
// record schema.
type RecordDescriptor struct {
	Name   string
	ID     uint32
	Fields []FieldDescriptor
}

// Field looks up a field by name.
func (r *RecordDescriptor) Field(name string) (*FieldDescriptor, bool) {
	for i := range r.Fields {
		if r.Fields[i].Name == name {
			return &r.Fields[i], true
		}
	}
	return nil, false
}

func (f *FieldDescriptor) String() string {
	return fmt.Sprintf("%s(%s,%s,codec=%s)", f.Name, f.Type, f.Section, f.Codec)
}

func (t Type) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	case TypeEnum:
		return "enum"
	case TypeRecord:
		return "record"
	default:
		return "unknown"
	}
}
