package membrane

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/GriffinCanCode/AgentOS/membrane/internal/object"
)

// record is the identity record of one original value: its home field and
// the representation it has in every other field. Proxies hold their record
// strongly; the registry only weakly.
type record struct {
	id       uint64
	home     Field
	original object.Object

	// guarded by registry.mu
	reps    map[Field]weak.Pointer[object.Identity]
	pending map[Field]object.Object
	pinned  map[Field]object.Object

	revoked atomic.Bool
}

// representation returns the live representation in field, including one
// still under construction. Caller holds registry.mu.
func (rec *record) representation(field Field) object.Object {
	if rep, ok := rec.pending[field]; ok {
		return rep
	}
	if rep, ok := rec.pinned[field]; ok {
		return rep
	}
	if wp, ok := rec.reps[field]; ok {
		if id := wp.Value(); id != nil {
			return id.Owner()
		}
		delete(rec.reps, field)
	}
	return nil
}

// registry is the per-membrane field table and weak record index. Entries are
// keyed by the identity of the original and of every representation.
type registry struct {
	mu       sync.Mutex
	handlers map[Field]*GraphHandler
	entries  map[weak.Pointer[object.Identity]]weak.Pointer[record]
	pins     map[uint64]*record
	retired  map[weak.Pointer[object.Identity]]struct{}
	nextID   uint64

	onReclaim func()
}

func newRegistry(onReclaim func()) *registry {
	return &registry{
		handlers:  make(map[Field]*GraphHandler),
		entries:   make(map[weak.Pointer[object.Identity]]weak.Pointer[record]),
		pins:      make(map[uint64]*record),
		retired:   make(map[weak.Pointer[object.Identity]]struct{}),
		onReclaim: onReclaim,
	}
}

// handler returns the handler for field, creating it with create when absent
// and create is non-nil
func (r *registry) handler(field Field, create func() *GraphHandler) (*GraphHandler, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.handlers[field]; ok {
		return h, true
	}
	if create == nil {
		return nil, false
	}
	h := create()
	r.handlers[field] = h
	return h, true
}

func (r *registry) fields() []Field {
	r.mu.Lock()
	defer r.mu.Unlock()

	fields := make([]Field, 0, len(r.handlers))
	for f := range r.handlers {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields
}

// lookup resolves obj to its record. isRep is true when obj is one of the
// record's representations rather than its original.
func (r *registry) lookup(obj object.Object) (rec *record, isRep bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookupLocked(obj)
}

func (r *registry) lookupLocked(obj object.Object) (*record, bool) {
	id := obj.Identity()
	if id == nil {
		return nil, false
	}

	key := weak.Make(id)
	wr, ok := r.entries[key]
	if !ok {
		return nil, false
	}
	rec := wr.Value()
	if rec == nil {
		delete(r.entries, key)
		return nil, false
	}
	return rec, rec.original.Identity() != id
}

func (r *registry) newRecordLocked(original object.Object, home Field) *record {
	r.nextID++
	rec := &record{
		id:       r.nextID,
		home:     home,
		original: original,
		reps:     make(map[Field]weak.Pointer[object.Identity]),
	}
	r.trackLocked(original, rec)

	if r.onReclaim != nil {
		runtime.AddCleanup(rec, func(reclaimed func()) { reclaimed() }, r.onReclaim)
	}
	return rec
}

func (r *registry) trackLocked(obj object.Object, rec *record) {
	id := obj.Identity()
	key := weak.Make(id)
	if _, exists := r.entries[key]; !exists {
		runtime.AddCleanup(id, r.forget, key)
	}
	r.entries[key] = weak.Make(rec)
}

func (r *registry) untrackLocked(obj object.Object) {
	delete(r.entries, weak.Make(obj.Identity()))
}

// forget drops the entry of a reclaimed identity
func (r *registry) forget(key weak.Pointer[object.Identity]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
	delete(r.retired, key)
}

// retire remembers a revoked original for as long as it is alive, so a
// reclaimed record cannot be resurrected unrevoked
func (r *registry) retire(rec *record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.retired[weak.Make(rec.original.Identity())] = struct{}{}
	delete(r.pins, rec.id)
	rec.pinned = nil
}

func (r *registry) isRetired(obj object.Object) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.retired[weak.Make(obj.Identity())]
	return ok
}

func (r *registry) unpinAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, rec := range r.pins {
		rec.pinned = nil
		delete(r.pins, id)
	}
}

// census counts live and revoked records, pruning dead entries
func (r *registry) census() (live, revoked, pinned int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[uint64]struct{})
	for key, wr := range r.entries {
		rec := wr.Value()
		if rec == nil || key.Value() == nil {
			delete(r.entries, key)
			continue
		}
		if _, ok := seen[rec.id]; ok {
			continue
		}
		seen[rec.id] = struct{}{}
		if rec.revoked.Load() {
			revoked++
		}
	}
	return len(seen), revoked, len(r.pins)
}
