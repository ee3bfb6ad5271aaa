package registry

import (
	"sync"
)

// Table is a concurrency-safe, generation-checked handle table.
type Table struct {
	entries   []entry
	freeList  []uint32
	observers []Observer
	mu        sync.RWMutex
	obsMu     sync.RWMutex
	closed    bool
}

type entry struct {
	value      any
	typeID     uint32
	generation uint32
	pinCount   uint32
	valid      bool
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		entries:  make([]entry, 0, 64),
		freeList: make([]uint32, 0, 16),
	}
}

// Insert adds a value and returns its handle, or Zero if the table is closed.
func (t *Table) Insert(typeID uint32, value any) Handle {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return Zero
	}

	e := entry{
		typeID: typeID,
		value:  value,
		valid:  true,
	}

	var idx uint32
	if n := len(t.freeList); n > 0 {
		idx = t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		// Generation was bumped when the slot was vacated.
		e.generation = t.entries[idx].generation
		t.entries[idx] = e
	} else {
		idx = uint32(len(t.entries))
		t.entries = append(t.entries, e)
	}
	h := makeHandle(idx, e.generation)
	t.mu.Unlock()

	t.notify(Event{Type: EventInserted, Handle: h, TypeID: typeID, Value: value})
	return h
}

// Get retrieves a value by handle. A stale handle (slot reused under a
// newer generation) resolves to nothing.
func (t *Table) Get(h Handle) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.lookup(h)
	if !ok {
		return nil, false
	}
	return e.value, true
}

// GetTyped retrieves a value only if it matches the expected type.
func (t *Table) GetTyped(h Handle, typeID uint32) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.lookup(h)
	if !ok || e.typeID != typeID {
		return nil, false
	}
	return e.value, true
}

// TypeID returns the type ID for a handle.
func (t *Table) TypeID(h Handle) (uint32, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.lookup(h)
	if !ok {
		return 0, false
	}
	return e.typeID, true
}

// Pin marks the entry as in use, blocking removal until Unpin.
func (t *Table) Pin(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.lookup(h)
	if !ok {
		return false
	}
	e.pinCount++
	return true
}

// Unpin releases one pin.
func (t *Table) Unpin(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.lookup(h)
	if !ok || e.pinCount == 0 {
		return false
	}
	e.pinCount--
	return true
}

// Pinned reports whether the entry has outstanding pins.
func (t *Table) Pinned(h Handle) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.lookup(h)
	return ok && e.pinCount > 0
}

// Remove drops an entry and returns (value, true) if it was present.
// Removing an already-removed or stale handle is a no-op: the finalizer
// of the stored value runs at most once per entry. Pinned entries are
// not removed.
func (t *Table) Remove(h Handle) (any, bool) {
	t.mu.Lock()
	idx, ok := h.index()
	if !ok || int(idx) >= len(t.entries) {
		t.mu.Unlock()
		return nil, false
	}
	e := &t.entries[idx]
	if !e.valid || e.generation != h.generation() || e.pinCount > 0 {
		t.mu.Unlock()
		return nil, false
	}

	value := e.value
	typeID := e.typeID
	e.valid = false
	e.value = nil
	e.pinCount = 0
	e.generation++ // stale handles to this slot now fail resolution
	t.freeList = append(t.freeList, idx)
	t.mu.Unlock()

	if f, ok := value.(Finalizer); ok {
		f.Finalize()
	}

	t.notify(Event{Type: EventRemoved, Handle: h, TypeID: typeID, Value: value})
	return value, true
}

// Len returns the number of live entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	count := 0
	for i := range t.entries {
		if t.entries[i].valid {
			count++
		}
	}
	return count
}

// Each iterates over all live entries.
func (t *Table) Each(fn func(Handle, uint32, any) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := range t.entries {
		e := &t.entries[i]
		if e.valid {
			if !fn(makeHandle(uint32(i), e.generation), e.typeID, e.value) {
				break
			}
		}
	}
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Close finalizes all live entries and stops accepting inserts.
// Closing twice is a no-op.
func (t *Table) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true

	var pending []any
	for i := range t.entries {
		e := &t.entries[i]
		if e.valid {
			pending = append(pending, e.value)
			e.valid = false
			e.value = nil
			e.generation++
		}
	}
	t.entries = nil
	t.freeList = nil
	t.mu.Unlock()

	for _, v := range pending {
		if f, ok := v.(Finalizer); ok {
			f.Finalize()
		}
	}
	return nil
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnRegistryEvent(e)
	}
}

// lookup validates index and generation. Caller holds t.mu.
func (t *Table) lookup(h Handle) (*entry, bool) {
	idx, ok := h.index()
	if !ok || int(idx) >= len(t.entries) {
		return nil, false
	}
	e := &t.entries[idx]
	if !e.valid || e.generation != h.generation() {
		return nil, false
	}
	return e, true
}
