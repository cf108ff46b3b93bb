// Package dedup tracks recently dispatched message ids in a fixed-size ring so
// redelivered messages can be suppressed. It is a best-effort recent history,
// not a durability log.
package dedup

// DefaultCapacity is the number of ids remembered by New(0).
const DefaultCapacity = 1024

// Ring is a bounded set of message ids. Inserting past capacity overwrites the
// oldest slot and forgets its id. Ring is not safe for concurrent use; the
// session serializes access under its own lock.
type Ring struct {
	ids   []string
	index map[string]int
	next  int
}

// New returns a ring holding up to capacity ids.
func New(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{
		ids:   make([]string, capacity),
		index: make(map[string]int, capacity),
	}
}

// Record marks id as dispatched. Recording an id already present is a no-op.
func (r *Ring) Record(id string) {
	if _, ok := r.index[id]; ok {
		return
	}
	if old := r.ids[r.next]; old != "" {
		delete(r.index, old)
	}
	r.ids[r.next] = id
	r.index[id] = r.next
	r.next = (r.next + 1) % len(r.ids)
}

// Seen reports whether id is among the tracked ids.
func (r *Ring) Seen(id string) bool {
	_, ok := r.index[id]
	return ok
}

// CheckAndRecord records id and reports whether it had been seen before.
func (r *Ring) CheckAndRecord(id string) bool {
	if r.Seen(id) {
		return true
	}
	r.Record(id)
	return false
}

// Len returns the number of tracked ids.
func (r *Ring) Len() int { return len(r.index) }

// Reset forgets every id.
func (r *Ring) Reset() {
	for i := range r.ids {
		r.ids[i] = ""
	}
	clear(r.index)
	r.next = 0
}
