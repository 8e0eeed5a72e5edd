// Package registry is the process-wide codec and record registry. Codecs
// and records are registered at process startup; the registry locks on
// first encode/decode so later registration attempts fail loudly instead
// of silently reshaping records already in flight.
package registry

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kstaniek/dccl-acomms/internal/dccl/dcclerr"
	"github.com/kstaniek/dccl-acomms/internal/dccl/fieldcodec"
	"github.com/kstaniek/dccl-acomms/internal/dccl/schema"
)

// Registry owns the named codec factories and declared record schemas a
// running engine knows about.
type Registry struct {
	mu      sync.RWMutex
	codecs  map[string]fieldcodec.Factory
	records map[uint32]*schema.RecordDescriptor
	locked  atomic.Bool
}

// New returns a Registry pre-populated with the built-in default codecs.
func New() *Registry {
	r := &Registry{
		codecs:  make(map[string]fieldcodec.Factory),
		records: make(map[uint32]*schema.RecordDescriptor),
	}
	r.registerDefaults()
	return r
}

func (r *Registry) registerDefaults() {
	defaults := map[string]fieldcodec.Factory{
		fieldcodec.NameBool:     fieldcodec.BuildDefault,
		fieldcodec.NameInt:      fieldcodec.BuildDefault,
		fieldcodec.NameEnum:     fieldcodec.BuildDefault,
		fieldcodec.NameFloat:    fieldcodec.BuildDefault,
		fieldcodec.NameFixedStr: fieldcodec.BuildDefault,
		fieldcodec.NameVarStr:   fieldcodec.BuildDefault,
	}
	for name, f := range defaults {
		r.codecs[name] = f
	}
}

// Locked reports whether registration is closed.
func (r *Registry) Locked() bool { return r.locked.Load() }

// Lock closes registration; subsequent RegisterCodec/RegisterRecord calls
// fail with ErrRegistryLocked. Encode/Decode call this implicitly on first
// use.
func (r *Registry) Lock() { r.locked.Store(true) }

// RegisterCodec adds a named codec factory. Re-registering an existing
// name is an error (ErrDuplicateCodec) rather than a silent overwrite.
func (r *Registry) RegisterCodec(name string, f fieldcodec.Factory) error {
	if r.Locked() {
		return dcclerr.ErrRegistryLocked
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.codecs[name]; exists {
		return fmt.Errorf("%w: %q", dcclerr.ErrDuplicateCodec, name)
	}
	r.codecs[name] = f
	return nil
}

// RegisterRecord declares a record schema under its ID. Re-registering an
// existing ID is a duplicate-codec error: record IDs share the same
// locked-namespace discipline as field codecs.
func (r *Registry) RegisterRecord(rec *schema.RecordDescriptor) error {
	if r.Locked() {
		return dcclerr.ErrRegistryLocked
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[rec.ID]; exists {
		return fmt.Errorf("%w: record id %d", dcclerr.ErrDuplicateCodec, rec.ID)
	}
	r.records[rec.ID] = rec
	return nil
}

// Codec builds the codec instance for a field, by its declared codec name.
func (r *Registry) Codec(f *schema.FieldDescriptor) (fieldcodec.Codec, error) {
	r.mu.RLock()
	factory, ok := r.codecs[f.Codec]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", dcclerr.ErrCodecNotFound, f.Codec)
	}
	return factory(f)
}

// Record looks up a declared record schema by ID.
func (r *Registry) Record(id uint32) (*schema.RecordDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: record id %d", dcclerr.ErrSchema, id)
	}
	return rec, nil
}

// Records returns every declared record schema, for iteration (e.g. by the
// queue manager building one queue per record).
func (r *Registry) Records() []*schema.RecordDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*schema.RecordDescriptor, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out
}
