package stream

// handleEntry records how a tool call was rendered.
type handleEntry struct {
	ID        string
	Handle    Handle
	WriteEdit bool
}

// HandleRegistry maps tool ids to the handles returned when they were rendered.
// Entries live in a dense slice indexed through a map so the registry can be
// reset cheaply between turns.
type HandleRegistry struct {
	index   map[string]int
	entries []handleEntry
}

func NewHandleRegistry() *HandleRegistry {
	return &HandleRegistry{
		index:   make(map[string]int),
		entries: make([]handleEntry, 0, 8),
	}
}

// Reset clears the registry state.
func (r *HandleRegistry) Reset() {
	r.index = make(map[string]int)
	r.entries = r.entries[:0]
}

func (r *HandleRegistry) Set(id string, h Handle, writeEdit bool) {
	if idx, ok := r.index[id]; ok {
		r.entries[idx].Handle = h
		r.entries[idx].WriteEdit = writeEdit
		return
	}
	r.index[id] = len(r.entries)
	r.entries = append(r.entries, handleEntry{ID: id, Handle: h, WriteEdit: writeEdit})
}

// Get returns the handle for id. A rendered call may have a nil handle when the
// renderer returned none.
func (r *HandleRegistry) Get(id string) (Handle, bool) {
	idx, ok := r.index[id]
	if !ok {
		return nil, false
	}
	return r.entries[idx].Handle, true
}

func (r *HandleRegistry) IsWriteEdit(id string) bool {
	idx, ok := r.index[id]
	return ok && r.entries[idx].WriteEdit
}

// IDs returns the rendered tool ids in render order.
func (r *HandleRegistry) IDs() []string {
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.ID
	}
	return out
}
