package model

// TodoItem is one entry inside a shared document. The document engine
// owns its storage and replication; we only read and write it through
// a handle.
type TodoItem struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// Document is the body of one shared list as this application sees it.
type Document struct {
	Name  string     `json:"name"`
	Todos []TodoItem `json:"todos"`
}

// ListEntry names one known document in the local registry.
type ListEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Registry is the local collection of known lists plus the pointer to
// the one currently open. Order is insertion order and doubles as
// display order.
type Registry struct {
	Entries  []ListEntry
	ActiveID string
}

// Find returns the entry with the given id, or nil.
func (r *Registry) Find(id string) *ListEntry {
	for i := range r.Entries {
		if r.Entries[i].ID == id {
			return &r.Entries[i]
		}
	}
	return nil
}

// Add appends an entry unless its id is already present. Reports
// whether the registry changed.
func (r *Registry) Add(e ListEntry) bool {
	if r.Find(e.ID) != nil {
		return false
	}
	r.Entries = append(r.Entries, e)
	return true
}

// Remove deletes the entry with the given id. Reports whether the
// registry changed.
func (r *Registry) Remove(id string) bool {
	for i := range r.Entries {
		if r.Entries[i].ID == id {
			r.Entries = append(r.Entries[:i], r.Entries[i+1:]...)
			return true
		}
	}
	return false
}
