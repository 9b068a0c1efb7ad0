package app

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/automerge/automerge-go"
)

// Todo mutations are fire-and-forget from the UI's point of view: the
// engine commits, the change listener fires, the view re-renders.
// With no open session every mutation is a no-op. A target vanishing
// under us (deleted by a remote peer) is an expected race with
// replication, not an error.

// newTodoID only needs to be unique within one document's lifetime.
func newTodoID() string {
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}

// AddTodo appends a pending item to the open list.
func (c *Controller) AddTodo(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	h, ok := c.sessions.Handle()
	if !ok || text == "" {
		return nil
	}
	return h.Mutate(ctx, func(doc *automerge.Doc) error {
		v, err := doc.Path("todos").Get()
		if err != nil {
			return err
		}
		if v.Kind() != automerge.KindList {
			if err := doc.Path("todos").Set([]any{}); err != nil {
				return err
			}
		}
		return doc.Path("todos").List().Append(map[string]any{
			"id":        newTodoID(),
			"text":      text,
			"completed": false,
		})
	})
}

// ToggleTodo flips the completed flag of the item with the given id.
func (c *Controller) ToggleTodo(ctx context.Context, id string) error {
	h, ok := c.sessions.Handle()
	if !ok {
		return nil
	}
	return h.Mutate(ctx, func(doc *automerge.Doc) error {
		_, m, _, err := findTodo(doc, id)
		if err != nil || m == nil {
			return err
		}
		completed := false
		if v, err := m.Get("completed"); err == nil && v.Kind() == automerge.KindBool {
			completed = v.Bool()
		}
		return m.Set("completed", !completed)
	})
}

// DeleteTodo removes the item with the given id.
func (c *Controller) DeleteTodo(ctx context.Context, id string) error {
	h, ok := c.sessions.Handle()
	if !ok {
		return nil
	}
	return h.Mutate(ctx, func(doc *automerge.Doc) error {
		list, m, idx, err := findTodo(doc, id)
		if err != nil || m == nil {
			return err
		}
		return list.Delete(idx)
	})
}

// findTodo locates a todo map by id, returning it together with the
// doc-bound todos list it lives in. Only that list may be mutated: a
// fresh Path("todos").List() has no resolved object id to delete
// through. A missing list or id yields (nil, nil, 0, nil).
func findTodo(doc *automerge.Doc, id string) (*automerge.List, *automerge.Map, int, error) {
	v, err := doc.Path("todos").Get()
	if err != nil {
		return nil, nil, 0, err
	}
	if v.Kind() != automerge.KindList {
		return nil, nil, 0, nil
	}
	list := v.List()
	for i := 0; i < list.Len(); i++ {
		iv, err := list.Get(i)
		if err != nil {
			return nil, nil, 0, err
		}
		if iv.Kind() != automerge.KindMap {
			continue
		}
		m := iv.Map()
		if idv, err := m.Get("id"); err == nil && idv.Kind() == automerge.KindStr && idv.Str() == id {
			return list, m, i, nil
		}
	}
	return nil, nil, 0, nil
}
