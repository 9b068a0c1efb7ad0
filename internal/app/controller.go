// Package app orchestrates registry, session and document mutations
// behind the operations the CLI and TUI expose.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/atotto/clipboard"

	"github.com/idilsaglam/synctodo/internal/engine"
	"github.com/idilsaglam/synctodo/internal/model"
	"github.com/idilsaglam/synctodo/internal/session"
	"github.com/idilsaglam/synctodo/internal/store"
)

// ErrNoSession is returned by operations that need an open list.
var ErrNoSession = errors.New("no list is open")

// Controller owns the in-memory registry and coordinates the store,
// the session manager and the document engine. The confirm hook
// guards destructive actions; it defaults to declining.
type Controller struct {
	eng      engine.Engine
	store    *store.Store
	sessions *session.Manager
	confirm  func(prompt string) bool

	registry model.Registry
}

// NewController loads the persisted registry and wires the parts
// together.
func NewController(eng engine.Engine, st *store.Store, sessions *session.Manager) (*Controller, error) {
	reg, err := st.Load()
	if err != nil {
		return nil, err
	}
	return &Controller{
		eng:      eng,
		store:    st,
		sessions: sessions,
		confirm:  func(string) bool { return false },
		registry: reg,
	}, nil
}

// SetConfirm installs the destructive-action guard.
func (c *Controller) SetConfirm(fn func(prompt string) bool) {
	if fn != nil {
		c.confirm = fn
	}
}

// Sessions exposes the session manager.
func (c *Controller) Sessions() *session.Manager { return c.sessions }

// Registry returns a copy of the current registry with the live
// active pointer.
func (c *Controller) Registry() model.Registry {
	entries := make([]model.ListEntry, len(c.registry.Entries))
	copy(entries, c.registry.Entries)
	return model.Registry{Entries: entries, ActiveID: c.sessions.ActiveID()}
}

// Restore reopens the session persisted from the previous run. A
// dangling or unreachable active pointer is cleared, not fatal.
func (c *Controller) Restore(ctx context.Context) {
	id := c.registry.ActiveID
	if id == "" || c.registry.Find(id) == nil {
		return
	}
	if err := c.sessions.OpenOrSwitch(ctx, id); err != nil {
		slog.Warn("could not restore previous list", "id", id, "err", err)
		if err := c.store.SetActive(""); err != nil {
			slog.Error("clear active pointer", "err", err)
		}
	}
}

// CreateList creates a new shared document named name, registers it
// and opens it. A blank name is a silent no-op.
func (c *Controller) CreateList(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	id, err := c.eng.CreateDocument(ctx, model.Document{Name: name, Todos: []model.TodoItem{}})
	if err != nil {
		return fmt.Errorf("create list: %w", err)
	}
	c.registry.Add(model.ListEntry{ID: id, Name: name})
	if err := c.store.Save(c.registry); err != nil {
		return err
	}
	return c.sessions.OpenOrSwitch(ctx, id)
}

// OpenByIdentifier opens a document someone shared with us. Known
// identifiers just switch; unknown ones are fetched, named from the
// document body and registered first.
func (c *Controller) OpenByIdentifier(ctx context.Context, raw string) error {
	raw = strings.TrimSpace(raw)
	if !c.eng.ValidateIdentifier(raw) {
		return fmt.Errorf("%w: %q", engine.ErrInvalidIdentifier, raw)
	}
	if c.registry.Find(raw) != nil {
		return c.sessions.OpenOrSwitch(ctx, raw)
	}

	h, err := c.eng.AcquireHandle(ctx, raw)
	if err != nil {
		return fmt.Errorf("open list: %w", err)
	}
	name := session.DefaultListName
	if doc, err := h.Snapshot(); err == nil && doc.Name != "" {
		name = doc.Name
	}
	c.registry.Add(model.ListEntry{ID: raw, Name: name})
	if err := c.store.Save(c.registry); err != nil {
		return err
	}
	return c.sessions.OpenOrSwitch(ctx, raw)
}

// DeleteFromRegistry forgets a list locally after the confirm guard
// approves. The document itself is never touched: other holders of
// the identifier may still depend on it. Reports whether the entry
// was removed.
func (c *Controller) DeleteFromRegistry(ctx context.Context, id string) (bool, error) {
	name := "this list"
	if e := c.registry.Find(id); e != nil {
		name = fmt.Sprintf("%q", e.Name)
	}
	if !c.confirm(fmt.Sprintf("Delete %s from your lists?", name)) {
		return false, nil
	}

	removed := c.registry.Remove(id)
	if removed {
		if err := c.store.Save(c.registry); err != nil {
			return false, err
		}
	}
	if c.sessions.ActiveID() == id {
		if err := c.sessions.Close(); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// DeleteActive forgets the currently open list.
func (c *Controller) DeleteActive(ctx context.Context) (bool, error) {
	id := c.sessions.ActiveID()
	if id == "" {
		return false, ErrNoSession
	}
	return c.DeleteFromRegistry(ctx, id)
}

// ShareActive copies the active document identifier to the
// clipboard. copied is false when clipboard access failed; the caller
// should then present id itself.
func (c *Controller) ShareActive() (id string, copied bool, err error) {
	id = c.sessions.ActiveID()
	if id == "" {
		return "", false, ErrNoSession
	}
	if err := clipboard.WriteAll(id); err != nil {
		slog.Debug("clipboard unavailable", "err", err)
		return id, false, nil
	}
	return id, true, nil
}
