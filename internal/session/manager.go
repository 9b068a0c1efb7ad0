// Package session owns the single live subscription to a shared
// document: opening, switching and tearing down, and keeping the
// persisted active pointer in step.
package session

import (
	"context"
	"log/slog"

	"github.com/idilsaglam/synctodo/internal/engine"
	"github.com/idilsaglam/synctodo/internal/model"
	"github.com/idilsaglam/synctodo/internal/store"
)

// DefaultListName labels documents whose body carries no name.
const DefaultListName = "Unnamed List"

// Manager is a two-state machine: idle (no handle) or active (one
// handle, one change listener). It always detaches the previous
// listener before attaching a new one, so there is never more than
// one live subscription.
//
// State is mutated from one goroutine (the UI loop). The generation
// counter guards against a slow acquisition finishing after a later
// switch already won.
type Manager struct {
	eng    engine.Engine
	store  *store.Store
	notify func()

	gen     uint64
	handle  engine.Handle
	detach  func()
	docName string
}

// NewManager wires a manager to the engine and registry store. notify
// runs after every change to the active document (local or remote)
// and after every transition; nil is allowed.
func NewManager(eng engine.Engine, st *store.Store, notify func()) *Manager {
	if notify == nil {
		notify = func() {}
	}
	return &Manager{eng: eng, store: st, notify: notify}
}

// OpenOrSwitch makes id the active document. Switching to the
// document that is already active refreshes the cached name without
// touching the listener. On acquisition failure the previous session
// stays intact.
func (m *Manager) OpenOrSwitch(ctx context.Context, id string) error {
	if m.handle != nil && m.handle.Identifier() == id {
		m.refreshName()
		m.notify()
		return nil
	}

	m.gen++
	gen := m.gen

	h, err := m.eng.AcquireHandle(ctx, id)
	if err != nil {
		return err
	}
	if gen != m.gen {
		// A later OpenOrSwitch or Close completed while we were
		// acquiring; its outcome is authoritative.
		slog.Debug("discarding stale acquisition", "id", id)
		return nil
	}

	if m.detach != nil {
		m.detach()
		m.detach = nil
	}
	m.handle = h
	m.detach = h.OnChange(m.notify)

	// The switch itself succeeded; a stale persisted pointer only
	// changes which list the next run restores, so it never fails
	// the switch.
	if err := m.store.SetActive(id); err != nil {
		slog.Warn("active pointer not persisted", "id", id, "err", err)
	}
	m.refreshName()
	m.notify()
	return nil
}

// Close detaches the listener, drops the session and clears the
// persisted active pointer. Idle Close is a no-op.
func (m *Manager) Close() error {
	if m.handle == nil {
		return nil
	}
	m.gen++
	m.detach()
	m.detach = nil
	m.handle = nil
	m.docName = ""
	if err := m.store.SetActive(""); err != nil {
		slog.Warn("active pointer not cleared", "err", err)
	}
	m.notify()
	return nil
}

// Handle returns the active handle, if any.
func (m *Manager) Handle() (engine.Handle, bool) {
	return m.handle, m.handle != nil
}

// ActiveID returns the active document identifier, or "".
func (m *Manager) ActiveID() string {
	if m.handle == nil {
		return ""
	}
	return m.handle.Identifier()
}

// DocName returns the display name cached from the last snapshot.
func (m *Manager) DocName() string { return m.docName }

// Snapshot reads the active document body. ok is false when idle.
func (m *Manager) Snapshot() (doc model.Document, ok bool) {
	if m.handle == nil {
		return model.Document{}, false
	}
	d, err := m.handle.Snapshot()
	if err != nil {
		slog.Error("snapshot failed", "id", m.handle.Identifier(), "err", err)
		return model.Document{}, false
	}
	return d, true
}

func (m *Manager) refreshName() {
	m.docName = DefaultListName
	if doc, ok := m.Snapshot(); ok && doc.Name != "" {
		m.docName = doc.Name
	}
}
