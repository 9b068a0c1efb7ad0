package view

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/idilsaglam/synctodo/internal/model"
)

func TestProject_Counts(t *testing.T) {
	doc := model.Document{
		Name: "Groceries",
		Todos: []model.TodoItem{
			{ID: "t1", Text: "milk", Completed: true},
			{ID: "t2", Text: "bread"},
			{ID: "t3", Text: "eggs", Completed: true},
		},
	}
	dm := Project("automerge:aaaa", doc)
	require.Equal(t, "automerge:aaaa", dm.DocumentURL)
	require.Equal(t, "Groceries", dm.ListName)
	require.Equal(t, 3, dm.TotalTodos)
	require.Equal(t, 2, dm.Completed)
}

func TestProject_EmptyAndUnnamed(t *testing.T) {
	dm := Project("automerge:aaaa", model.Document{})
	require.Equal(t, "Unnamed", dm.ListName)
	require.Zero(t, dm.TotalTodos)
	require.Zero(t, dm.Completed)
	require.NotNil(t, dm.Todos, "todos serialize as [], not null")
}

func TestProject_JSONShape(t *testing.T) {
	dm := Project("automerge:aaaa", model.Document{Name: "A"})
	b, err := json.Marshal(dm)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"documentUrl": "automerge:aaaa",
		"listName": "A",
		"todos": [],
		"totalTodos": 0,
		"completed": 0
	}`, string(b))
}

func TestSelector_MarksActive(t *testing.T) {
	reg := model.Registry{
		Entries: []model.ListEntry{
			{ID: "automerge:aaaa", Name: "A"},
			{ID: "automerge:bbbb", Name: "B"},
		},
		ActiveID: "automerge:bbbb",
	}
	rows := Selector(reg)
	require.Len(t, rows, 2)
	require.False(t, rows[0].Active)
	require.True(t, rows[1].Active)
	require.Equal(t, "A", rows[0].Entry.Name)
}

func TestSelector_Idempotent(t *testing.T) {
	reg := model.Registry{Entries: []model.ListEntry{{ID: "automerge:aaaa", Name: "A"}}}
	first := Selector(reg)
	second := Selector(reg)
	require.Equal(t, first, second)
}
