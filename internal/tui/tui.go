// Package tui is the interactive mode: a checklist of the active
// list's todos plus a selector across all known lists. Every engine
// change notification (local or remote) re-renders the view.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/idilsaglam/synctodo/internal/app"
	"github.com/idilsaglam/synctodo/internal/model"
	"github.com/idilsaglam/synctodo/internal/view"
)

// Run bootstraps the application stack and blocks until the user
// quits.
func Run(cfg app.Config) error {
	changes := make(chan struct{}, 1)
	notify := func() {
		// coalesce bursts; the renderer is idempotent
		select {
		case changes <- struct{}{}:
		default:
		}
	}

	ctrl, cleanup, err := app.Bootstrap(cfg, notify)
	if err != nil {
		return err
	}
	defer cleanup()

	// The TUI runs its own confirmation prompt before calling any
	// destructive operation, so the controller-side guard approves.
	ctrl.SetConfirm(func(string) bool { return true })

	ctrl.Restore(context.Background())

	p := tea.NewProgram(newModel(ctrl, changes), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// todoItem adapts a TodoItem to bubbles/list.Item.
type todoItem struct {
	model.TodoItem
}

func (i todoItem) Title() string {
	box := boxUnchecked
	if i.Completed {
		box = boxChecked
	}
	return fmt.Sprintf("%s %s", box, i.Text)
}
func (i todoItem) Description() string { return "" }
func (i todoItem) FilterValue() string { return i.Text }

// Custom delegate to control how items render (single line)
type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, _ := item.(todoItem)
	box := mutedStyle.Render(boxUnchecked)
	text := it.Text
	if it.Completed {
		box = successStyle.Render(boxChecked)
		text = doneStyle.Render(text)
	}
	line := fmt.Sprintf("%s %s", box, text)
	prefix := "  "
	if index == m.Index() {
		prefix = selectedStyle.Render("> ")
	}
	fmt.Fprintln(w, prefix+line)
}

type inputMode int

const (
	modeNormal inputMode = iota
	modeAddTodo
	modeCreateList
	modeOpenID
	modeConfirmDelete
)

type changeMsg struct{}

type Model struct {
	ctrl    *app.Controller
	changes chan struct{}

	list list.Model
	ti   textinput.Model

	mode     inputMode
	inputErr string
	status   string

	width, height int
}

func newModel(ctrl *app.Controller, changes chan struct{}) Model {
	l := list.New(nil, itemDelegate{}, 0, 0)
	l.SetShowHelp(true)
	l.SetShowPagination(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle
	l.Styles.HelpStyle = helpStyle
	l.Styles.PaginationStyle = helpStyle
	l.FilterInput.Prompt = "/ "
	l.SetStatusBarItemName("todo", "todos")

	extra := []key.Binding{
		key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle")),
		key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new list")),
		key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open id")),
		key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next list")),
		key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "share")),
		key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "forget list")),
	}
	l.AdditionalShortHelpKeys = func() []key.Binding { return extra[:3] }
	l.AdditionalFullHelpKeys = func() []key.Binding { return extra }

	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 200

	m := Model{ctrl: ctrl, changes: changes, list: l, ti: ti}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd { return m.waitForChange() }

func (m Model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		<-m.changes
		return changeMsg{}
	}
}

// refresh rebuilds the checklist from the current snapshot. Cheap and
// idempotent: it runs on every change notification.
func (m *Model) refresh() {
	sess := m.ctrl.Sessions()
	doc, active := sess.Snapshot()
	if !active {
		m.list.SetItems(nil)
		m.list.Title = titleStyle.Render("No list selected") +
			mutedStyle.Render("  n: new list  o: open shared id")
		return
	}
	dm := view.Project(sess.ActiveID(), doc)
	items := make([]list.Item, 0, len(dm.Todos))
	for _, t := range dm.Todos {
		items = append(items, todoItem{t})
	}
	idx := m.list.Index()
	m.list.SetItems(items)
	if idx >= len(items) {
		m.list.Select(max(0, len(items)-1))
	}
	m.list.Title = fmt.Sprintf("%s   %s %d  %s %d",
		titleStyle.Render(sess.DocName()),
		successStyle.Render("✔"), dm.Completed,
		accentStyle.Render("Total"), dm.TotalTodos,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case changeMsg:
		m.refresh()
		return m, m.waitForChange()

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case modeNormal:
			return m.updateNormal(msg)
		case modeConfirmDelete:
			return m.updateConfirm(msg)
		default:
			return m.updateInput(msg)
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// don't steal keys while the list filter is open
	if m.list.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	ctx := context.Background()
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		return m, tea.Quit

	case " ":
		if it, ok := m.selected(); ok {
			if err := m.ctrl.ToggleTodo(ctx, it.ID); err != nil {
				m.status = errorStyle.Render(err.Error())
			}
		}
		return m, nil

	case "d":
		if it, ok := m.selected(); ok {
			if err := m.ctrl.DeleteTodo(ctx, it.ID); err != nil {
				m.status = errorStyle.Render(err.Error())
			}
		}
		return m, nil

	case "a":
		if _, active := m.ctrl.Sessions().Handle(); !active {
			m.status = mutedStyle.Render("no list selected")
			return m, nil
		}
		return m.enterInput(modeAddTodo, "New todo..."), nil

	case "n":
		return m.enterInput(modeCreateList, "New list name..."), nil

	case "o":
		return m.enterInput(modeOpenID, "automerge:..."), nil

	case "tab", "]":
		m.switchList(ctx, +1)
		return m, nil

	case "[":
		m.switchList(ctx, -1)
		return m, nil

	case "s":
		id, copied, err := m.ctrl.ShareActive()
		switch {
		case err != nil:
			m.status = mutedStyle.Render("no list selected")
		case copied:
			m.status = successStyle.Render("✔ identifier copied to clipboard")
		default:
			m.status = "share: " + accentStyle.Render(id)
		}
		return m, nil

	case "D":
		if _, active := m.ctrl.Sessions().Handle(); !active {
			m.status = mutedStyle.Render("no list selected")
			return m, nil
		}
		m.mode = modeConfirmDelete
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		name := m.ctrl.Sessions().DocName()
		if _, err := m.ctrl.DeleteActive(context.Background()); err != nil {
			m.status = errorStyle.Render(err.Error())
		} else {
			m.status = mutedStyle.Render("forgot " + name)
		}
		m.mode = modeNormal
		m.refresh()
		return m, nil
	default:
		m.mode = modeNormal
		return m, nil
	}
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctx := context.Background()
	switch msg.String() {
	case "enter":
		value := strings.TrimSpace(m.ti.Value())
		if value == "" {
			m.inputErr = "cannot be empty"
			return m, nil
		}
		var err error
		switch m.mode {
		case modeAddTodo:
			err = m.ctrl.AddTodo(ctx, value)
		case modeCreateList:
			err = m.ctrl.CreateList(ctx, value)
		case modeOpenID:
			err = m.ctrl.OpenByIdentifier(ctx, value)
		}
		if err != nil {
			m.inputErr = err.Error()
			return m, nil
		}
		m.leaveInput()
		m.refresh()
		return m, nil

	case "esc":
		m.leaveInput()
		return m, nil
	}

	var cmd tea.Cmd
	m.ti, cmd = m.ti.Update(msg)
	return m, cmd
}

func (m Model) enterInput(mode inputMode, placeholder string) Model {
	m.mode = mode
	m.inputErr = ""
	m.status = ""
	m.ti.SetValue("")
	m.ti.Placeholder = placeholder
	m.ti.Focus()
	return m
}

func (m *Model) leaveInput() {
	m.mode = modeNormal
	m.inputErr = ""
	m.ti.SetValue("")
	m.ti.Blur()
}

func (m *Model) selected() (model.TodoItem, bool) {
	it, ok := m.list.SelectedItem().(todoItem)
	if !ok {
		return model.TodoItem{}, false
	}
	return it.TodoItem, true
}

// switchList cycles the active list through the registry.
func (m *Model) switchList(ctx context.Context, step int) {
	reg := m.ctrl.Registry()
	if len(reg.Entries) == 0 {
		m.status = mutedStyle.Render("no lists yet")
		return
	}
	idx := 0
	for i, e := range reg.Entries {
		if e.ID == reg.ActiveID {
			idx = (i + step + len(reg.Entries)) % len(reg.Entries)
			break
		}
	}
	if err := m.ctrl.OpenByIdentifier(ctx, reg.Entries[idx].ID); err != nil {
		m.status = errorStyle.Render(err.Error())
		return
	}
	m.status = ""
	m.refresh()
}

// selectorLine renders the known lists, active one highlighted.
func (m Model) selectorLine() string {
	rows := view.Selector(m.ctrl.Registry())
	if len(rows) == 0 {
		return mutedStyle.Render("Lists: none")
	}
	parts := make([]string, 0, len(rows))
	for _, r := range rows {
		name := r.Entry.Name
		if r.Active {
			name = activeStyle.Render(name)
		} else {
			name = mutedStyle.Render(name)
		}
		parts = append(parts, name)
	}
	return "Lists: " + strings.Join(parts, " | ")
}

func (m Model) View() string {
	w, h := m.width, m.height
	if w == 0 {
		w, h = 80, 24
	}
	listHeight := h - 6
	if m.mode != modeNormal {
		listHeight = h - 8
	}
	m.list.SetSize(w-4, listHeight)

	var b strings.Builder
	b.WriteString(m.selectorLine() + "\n")
	b.WriteString(m.list.View())

	switch m.mode {
	case modeConfirmDelete:
		prompt := fmt.Sprintf("Delete %q from your lists? The shared document is kept. (y/n)",
			m.ctrl.Sessions().DocName())
		b.WriteString("\n" + inputBarStyle.Render(errorStyle.Render(prompt)))
	case modeNormal:
		if m.status != "" {
			b.WriteString("\n" + m.status)
		}
	default:
		title := map[inputMode]string{
			modeAddTodo:    "Add todo",
			modeCreateList: "Create list",
			modeOpenID:     "Open shared list",
		}[m.mode]
		if m.inputErr != "" {
			title += "  " + errorStyle.Render(m.inputErr)
		}
		b.WriteString("\n" + inputBarStyle.Render(title+"\n"+m.ti.View()))
	}

	return panelStyle.Render(b.String())
}
