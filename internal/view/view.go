// Package view projects application state into display models. No
// mutation happens here; projections are cheap and re-run on every
// change notification, so they must stay idempotent.
package view

import (
	"github.com/idilsaglam/synctodo/internal/model"
)

// DisplayModel is the rendered state of the open list. Field names
// mirror the JSON dump shown by the status command.
type DisplayModel struct {
	DocumentURL string           `json:"documentUrl"`
	ListName    string           `json:"listName"`
	Todos       []model.TodoItem `json:"todos"`
	TotalTodos  int              `json:"totalTodos"`
	Completed   int              `json:"completed"`
}

// Project builds the display model for one document snapshot.
func Project(id string, doc model.Document) DisplayModel {
	name := doc.Name
	if name == "" {
		name = "Unnamed"
	}
	completed := 0
	for _, t := range doc.Todos {
		if t.Completed {
			completed++
		}
	}
	todos := doc.Todos
	if todos == nil {
		todos = []model.TodoItem{}
	}
	return DisplayModel{
		DocumentURL: id,
		ListName:    name,
		Todos:       todos,
		TotalTodos:  len(todos),
		Completed:   completed,
	}
}

// SelectorRow is one line of the list selector.
type SelectorRow struct {
	Entry  model.ListEntry
	Active bool
}

// Selector projects the registry into selector rows, marking the
// active entry.
func Selector(reg model.Registry) []SelectorRow {
	rows := make([]SelectorRow, 0, len(reg.Entries))
	for _, e := range reg.Entries {
		rows = append(rows, SelectorRow{Entry: e, Active: e.ID == reg.ActiveID})
	}
	return rows
}
