package registry

import (
	"errors"
	"testing"

	"github.com/kstaniek/dccl-acomms/internal/dccl/dcclerr"
	"github.com/kstaniek/dccl-acomms/internal/dccl/fieldcodec"
	"github.com/kstaniek/dccl-acomms/internal/dccl/schema"
)

func TestNewRegistryHasDefaults(t *testing.T) {
	r := New()
	f := &schema.FieldDescriptor{Type: schema.TypeBool, Codec: fieldcodec.NameBool}
	if _, err := r.Codec(f); err != nil {
		t.Fatalf("Codec: %v", err)
	}
}

func TestRegisterCodecDuplicate(t *testing.T) {
	r := New()
	if err := r.RegisterCodec(fieldcodec.NameBool, fieldcodec.BuildDefault); !errors.Is(err, dcclerr.ErrDuplicateCodec) {
		t.Fatalf("err=%v want ErrDuplicateCodec", err)
	}
}

func TestRegisterCodecAfterLock(t *testing.T) {
	r := New()
	r.Lock()
	if err := r.RegisterCodec("custom", fieldcodec.BuildDefault); !errors.Is(err, dcclerr.ErrRegistryLocked) {
		t.Fatalf("err=%v want ErrRegistryLocked", err)
	}
}

func TestCodecNotFound(t *testing.T) {
	r := New()
	f := &schema.FieldDescriptor{Type: schema.TypeBool, Codec: "nope"}
	if _, err := r.Codec(f); !errors.Is(err, dcclerr.ErrCodecNotFound) {
		t.Fatalf("err=%v want ErrCodecNotFound", err)
	}
}

func TestRegisterRecordAndLookup(t *testing.T) {
	r := New()
	rec := &schema.RecordDescriptor{Name: "Ping", ID: 1}
	if err := r.RegisterRecord(rec); err != nil {
		t.Fatalf("RegisterRecord: %v", err)
	}
	got, err := r.Record(1)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if got.Name != "Ping" {
		t.Fatalf("got %q want Ping", got.Name)
	}
}

func TestRegisterRecordDuplicateID(t *testing.T) {
	r := New()
	rec := &schema.RecordDescriptor{Name: "Ping", ID: 1}
	if err := r.RegisterRecord(rec); err != nil {
		t.Fatalf("RegisterRecord: %v", err)
	}
	dup := &schema.RecordDescriptor{Name: "Pong", ID: 1}
	if err := r.RegisterRecord(dup); !errors.Is(err, dcclerr.ErrDuplicateCodec) {
		t.Fatalf("err=%v want ErrDuplicateCodec", err)
	}
}

func TestRecordNotFound(t *testing.T) {
	r := New()
	if _, err := r.Record(42); !errors.Is(err, dcclerr.ErrSchema) {
		t.Fatalf("err=%v want ErrSchema", err)
	}
}

func TestRecordsIteration(t *testing.T) {
	r := New()
	_ = r.RegisterRecord(&schema.RecordDescriptor{Name: "A", ID: 1})
	_ = r.RegisterRecord(&schema.RecordDescriptor{Name: "B", ID: 2})
	if len(r.Records()) != 2 {
		t.Fatalf("len=%d want 2", len(r.Records()))
	}
}
