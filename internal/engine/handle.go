package engine

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/automerge/automerge-go"

	"github.com/idilsaglam/synctodo/internal/model"
)

// docHandle binds one open Automerge document to its snapshot file.
// The doc mutex covers the document and the file; the listener mutex
// is separate so detaching never waits on a mutation in flight.
type docHandle struct {
	id   string
	path string

	mu  sync.Mutex
	doc *automerge.Doc

	lmu          sync.Mutex
	nextListener int
	listeners    map[int]func()
}

func (h *docHandle) Identifier() string { return h.id }

func (h *docHandle) Snapshot() (model.Document, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return readDocument(h.doc)
}

// Mutate runs fn against the document, commits, persists the new
// snapshot and fires change listeners. fn returning an error aborts
// without notifying.
func (h *docHandle) Mutate(ctx context.Context, fn func(doc *automerge.Doc) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	if err := fn(h.doc); err != nil {
		h.mu.Unlock()
		return fmt.Errorf("mutate %s: %w", h.id, err)
	}
	if _, err := h.doc.Commit("change", automerge.CommitOptions{AllowEmpty: true}); err != nil {
		h.mu.Unlock()
		return fmt.Errorf("commit %s: %w", h.id, err)
	}
	err := h.persistLocked()
	h.mu.Unlock()
	if err != nil {
		return err
	}
	h.notify()
	return nil
}

// persistLocked writes the current snapshot. Callers hold h.mu.
func (h *docHandle) persistLocked() error {
	if err := os.WriteFile(h.path, h.doc.Save(), 0o600); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}

func (h *docHandle) OnChange(fn func()) func() {
	h.lmu.Lock()
	defer h.lmu.Unlock()
	key := h.nextListener
	h.nextListener++
	h.listeners[key] = fn
	return func() {
		h.lmu.Lock()
		delete(h.listeners, key)
		h.lmu.Unlock()
	}
}

// notify calls every registered listener outside both locks.
func (h *docHandle) notify() {
	h.lmu.Lock()
	fns := make([]func(), 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	h.lmu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// readDocument projects the Automerge body onto the domain model.
// Fields with unexpected kinds are skipped rather than failing: a
// peer running different code must not take the UI down.
func readDocument(doc *automerge.Doc) (model.Document, error) {
	var out model.Document

	nv, err := doc.Path("name").Get()
	if err != nil {
		return out, fmt.Errorf("read name: %w", err)
	}
	if nv.Kind() == automerge.KindStr {
		out.Name = nv.Str()
	}

	tv, err := doc.Path("todos").Get()
	if err != nil {
		return out, fmt.Errorf("read todos: %w", err)
	}
	if tv.Kind() != automerge.KindList {
		return out, nil
	}
	list := tv.List()
	for i := 0; i < list.Len(); i++ {
		iv, err := list.Get(i)
		if err != nil {
			return out, fmt.Errorf("read todo %d: %w", i, err)
		}
		if iv.Kind() != automerge.KindMap {
			continue
		}
		m := iv.Map()
		var item model.TodoItem
		if v, err := m.Get("id"); err == nil && v.Kind() == automerge.KindStr {
			item.ID = v.Str()
		}
		if v, err := m.Get("text"); err == nil && v.Kind() == automerge.KindStr {
			item.Text = v.Str()
		}
		if v, err := m.Get("completed"); err == nil && v.Kind() == automerge.KindBool {
			item.Completed = v.Bool()
		}
		out.Todos = append(out.Todos, item)
	}
	return out, nil
}
