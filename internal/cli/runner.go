package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/idilsaglam/synctodo/internal/app"
	"github.com/idilsaglam/synctodo/internal/auth"
	"github.com/idilsaglam/synctodo/internal/model"
	"github.com/idilsaglam/synctodo/internal/tui"
	"github.com/idilsaglam/synctodo/internal/ui"
	"github.com/idilsaglam/synctodo/internal/view"
)

// Options tune behavior from root flags.
type Options struct {
	Dir     string // state directory override
	SyncURL string // sync server override
	Group   bool   // ls output grouped by pending/done
	Yes     bool   // skip confirmation prompts
}

// Run dispatches subcommands and returns an exit code (0 ok, 1 error, 2 usage).
func Run(args []string, opt Options) int {
	if len(args) == 0 {
		return doTUI(opt)
	}
	cmd, a := args[0], args[1:]

	switch cmd {
	case "help", "-h", "--help":
		PrintHelp()
		return 0

	case "tui":
		return doTUI(opt)

	case "ls":
		return doLs(opt)

	case "lists":
		return doLists(opt)

	case "create":
		if len(a) == 0 {
			ui.Fail("usage: synctodo create <name...>")
			return 2
		}
		return doCreate(opt, strings.Join(a, " "))

	case "open":
		if len(a) != 1 {
			ui.Fail("usage: synctodo open <identifier>")
			return 2
		}
		return doOpen(opt, a[0])

	case "switch":
		if len(a) != 1 {
			ui.Fail("usage: synctodo switch <index|identifier>")
			return 2
		}
		return doSwitch(opt, a[0])

	case "add":
		if len(a) == 0 {
			ui.Fail("usage: synctodo add <text...>")
			return 2
		}
		return doAdd(opt, strings.Join(a, " "))

	case "done":
		if len(a) != 1 {
			ui.Fail("usage: synctodo done <index>")
			return 2
		}
		n, err := strconv.Atoi(a[0])
		if err != nil {
			ui.Fail("done: not a number: " + a[0])
			return 2
		}
		return doToggle(opt, n)

	case "rm":
		if len(a) != 1 {
			ui.Fail("usage: synctodo rm <index>")
			return 2
		}
		n, err := strconv.Atoi(a[0])
		if err != nil {
			ui.Fail("rm: not a number: " + a[0])
			return 2
		}
		return doRemove(opt, n)

	case "share":
		return doShare(opt)

	case "delete":
		return doDelete(opt)

	case "status":
		return doStatus(opt)

	case "auth":
		if len(a) == 0 {
			ui.Fail("usage: synctodo auth <login|logout|status|whoami>")
			return 2
		}
		return doAuth(a[0])
	}

	ui.Fail("unknown subcommand: " + cmd)
	fmt.Fprintln(os.Stderr)
	PrintHelp()
	return 2
}

func PrintHelp() {
	fmt.Printf(`synctodo - shared todo lists, synced with Automerge

Usage:
  synctodo [subcommand] [args]

Running without a subcommand opens the interactive TUI.

Subcommands:
  create <name...>        Create a new list and open it
  open <identifier>       Open a list someone shared with you
  lists                   Show your lists (active one marked)
  switch <index|id>       Switch the active list
  add <text...>           Add a todo to the active list
  ls                      Show the active list's todos
  done <index>            Toggle todo at 1-based index
  rm <index>              Remove todo at 1-based index
  share                   Copy the active list's identifier
  delete                  Forget the active list (local only)
  status                  Dump the current state as JSON
  auth <login|logout|status|whoami>   Sync server authentication

Examples:
  synctodo create "Groceries"
  synctodo add "Buy milk"
  synctodo done 2
  synctodo share
`)
}

// -------------- bootstrap helpers ----------------

func setup(opt Options) (*app.Controller, func(), bool) {
	ctrl, cleanup, err := app.Bootstrap(app.Config{Dir: opt.Dir, SyncURL: opt.SyncURL}, nil)
	if err != nil {
		ui.Fail("init: " + err.Error())
		return nil, nil, false
	}
	ctrl.SetConfirm(func(prompt string) bool {
		if opt.Yes {
			return true
		}
		return confirmStdin(prompt)
	})
	return ctrl, cleanup, true
}

// setupActive additionally restores the previously open list and
// fails when there is none.
func setupActive(ctx context.Context, opt Options) (*app.Controller, func(), bool) {
	ctrl, cleanup, ok := setup(opt)
	if !ok {
		return nil, nil, false
	}
	ctrl.Restore(ctx)
	if _, ok := ctrl.Sessions().Handle(); !ok {
		cleanup()
		ui.Fail("no list is open")
		fmt.Fprintln(os.Stderr, ui.C("\033[90m", "Hint: `synctodo lists` then `synctodo switch <index>`"))
		return nil, nil, false
	}
	return ctrl, cleanup, true
}

func confirmStdin(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	var resp string
	_, _ = fmt.Scanln(&resp)
	resp = strings.ToLower(strings.TrimSpace(resp))
	return resp == "y" || resp == "yes"
}

// -------------- subcommand impls ----------------

func doTUI(opt Options) int {
	if err := tui.Run(app.Config{Dir: opt.Dir, SyncURL: opt.SyncURL}); err != nil {
		ui.Fail("tui: " + err.Error())
		return 1
	}
	return 0
}

func doCreate(opt Options, name string) int {
	name = strings.TrimSpace(name)
	if name == "" {
		ui.Fail("create: empty name")
		return 2
	}
	ctrl, cleanup, ok := setup(opt)
	if !ok {
		return 1
	}
	defer cleanup()
	if err := ctrl.CreateList(context.Background(), name); err != nil {
		ui.Fail("create: " + err.Error())
		return 1
	}
	ui.OK("created " + name)
	fmt.Println(ui.C(ui.Current().Muted, ctrl.Sessions().ActiveID()))
	return 0
}

func doOpen(opt Options, raw string) int {
	ctrl, cleanup, ok := setup(opt)
	if !ok {
		return 1
	}
	defer cleanup()
	if err := ctrl.OpenByIdentifier(context.Background(), raw); err != nil {
		ui.Fail("open: " + err.Error())
		return 1
	}
	ui.OK("opened " + ctrl.Sessions().DocName())
	return 0
}

func doSwitch(opt Options, arg string) int {
	ctrl, cleanup, ok := setup(opt)
	if !ok {
		return 1
	}
	defer cleanup()

	id := arg
	if n, err := strconv.Atoi(arg); err == nil {
		reg := ctrl.Registry()
		if n < 1 || n > len(reg.Entries) {
			ui.Fail(fmt.Sprintf("index out of range: have %d, got %d", len(reg.Entries), n))
			return 2
		}
		id = reg.Entries[n-1].ID
	}
	if err := ctrl.OpenByIdentifier(context.Background(), id); err != nil {
		ui.Fail("switch: " + err.Error())
		return 1
	}
	ui.OK("switched to " + ctrl.Sessions().DocName())
	return 0
}

func doLists(opt Options) int {
	ctrl, cleanup, ok := setup(opt)
	if !ok {
		return 1
	}
	defer cleanup()
	ctrl.Restore(context.Background())

	rows := view.Selector(ctrl.Registry())
	lines := []string{ui.C(ui.Current().Title, "Lists")}
	if len(rows) == 0 {
		lines = append(lines, ui.C(ui.Current().Muted, "(none)"))
	}
	for i, row := range rows {
		mark := " "
		name := row.Entry.Name
		if row.Active {
			mark = ui.C(ui.Current().Accent, ui.Current().ActiveMark)
			name = ui.C(ui.Current().Title, name)
		}
		lines = append(lines, fmt.Sprintf("%s %2d. %s  %s",
			mark, i+1, name, ui.C(ui.Current().Muted, row.Entry.ID)))
	}
	ui.Panel(lines)
	return 0
}

func doLs(opt Options) int {
	ctx := context.Background()
	ctrl, cleanup, ok := setupActive(ctx, opt)
	if !ok {
		return 1
	}
	defer cleanup()

	doc, _ := ctrl.Sessions().Snapshot()
	dm := view.Project(ctrl.Sessions().ActiveID(), doc)

	header := fmt.Sprintf("%s  %s %d  %s %d  %s %d",
		ui.C(ui.Current().Title, dm.ListName),
		ui.C(ui.Current().Success, "✔"), dm.Completed,
		ui.C(ui.Current().Pending, "•"), dm.TotalTodos-dm.Completed,
		ui.C(ui.Current().Accent, "Total"), dm.TotalTodos,
	)

	var lines []string
	lines = append(lines, header)
	lines = append(lines, ui.C(ui.Current().Muted, ui.ProgressBar(dm.Completed, dm.TotalTodos, 28)))
	lines = append(lines, "")
	if opt.Group {
		lines = append(lines, groupLines(dm.Todos)...)
	} else {
		lines = append(lines, flatLines(dm.Todos)...)
	}
	ui.Panel(lines)
	return 0
}

func doAdd(opt Options, text string) int {
	ctx := context.Background()
	ctrl, cleanup, ok := setupActive(ctx, opt)
	if !ok {
		return 1
	}
	defer cleanup()
	text = strings.TrimSpace(text)
	if text == "" {
		ui.Fail("add: empty text")
		return 2
	}
	if err := ctrl.AddTodo(ctx, text); err != nil {
		ui.Fail("add: " + err.Error())
		return 1
	}
	ui.OK("added")
	return 0
}

func doToggle(opt Options, userIndex int) int {
	ctx := context.Background()
	ctrl, cleanup, ok := setupActive(ctx, opt)
	if !ok {
		return 1
	}
	defer cleanup()
	item, code := todoAt(ctrl, userIndex)
	if code != 0 {
		return code
	}
	if err := ctrl.ToggleTodo(ctx, item.ID); err != nil {
		ui.Fail("done: " + err.Error())
		return 1
	}
	ui.OK("toggled")
	return 0
}

func doRemove(opt Options, userIndex int) int {
	ctx := context.Background()
	ctrl, cleanup, ok := setupActive(ctx, opt)
	if !ok {
		return 1
	}
	defer cleanup()
	item, code := todoAt(ctrl, userIndex)
	if code != 0 {
		return code
	}
	if err := ctrl.DeleteTodo(ctx, item.ID); err != nil {
		ui.Fail("rm: " + err.Error())
		return 1
	}
	ui.OK("removed")
	return 0
}

func doShare(opt Options) int {
	ctx := context.Background()
	ctrl, cleanup, ok := setupActive(ctx, opt)
	if !ok {
		return 1
	}
	defer cleanup()
	id, copied, err := ctrl.ShareActive()
	if err != nil {
		ui.Fail("share: " + err.Error())
		return 1
	}
	if copied {
		ui.OK("identifier copied to clipboard")
		return 0
	}
	// clipboard unavailable: present the identifier instead
	ui.Panel([]string{
		ui.C(ui.Current().Title, "Share this identifier:"),
		id,
	})
	return 0
}

func doDelete(opt Options) int {
	ctx := context.Background()
	ctrl, cleanup, ok := setupActive(ctx, opt)
	if !ok {
		return 1
	}
	defer cleanup()
	name := ctrl.Sessions().DocName()
	removed, err := ctrl.DeleteActive(ctx)
	if err != nil {
		ui.Fail("delete: " + err.Error())
		return 1
	}
	if !removed {
		fmt.Println(ui.C(ui.Current().Muted, "cancelled"))
		return 0
	}
	ui.OK("removed " + name + " from your lists (the shared document still exists)")
	return 0
}

func doStatus(opt Options) int {
	ctx := context.Background()
	ctrl, cleanup, ok := setup(opt)
	if !ok {
		return 1
	}
	defer cleanup()
	ctrl.Restore(ctx)

	doc, active := ctrl.Sessions().Snapshot()
	if !active {
		fmt.Println(ui.C(ui.Current().Muted, "No list selected"))
		return 0
	}
	dm := view.Project(ctrl.Sessions().ActiveID(), doc)
	b, err := json.MarshalIndent(dm, "", "  ")
	if err != nil {
		ui.Fail("status: " + err.Error())
		return 1
	}
	fmt.Println(string(b))
	return 0
}

// -------------- auth subcommands ----------------

func doAuth(sub string) int {
	switch sub {
	case "login":
		fmt.Print("Paste your token: ")
		var token string
		if _, err := fmt.Scanln(&token); err != nil {
			ui.Fail("read token: " + err.Error())
			return 1
		}
		if err := auth.SetToken(token, nil); err != nil {
			ui.Fail("save token: " + err.Error())
			return 1
		}
		ui.OK("logged in")
		return 0

	case "logout":
		ti, _ := auth.GetToken()
		if ti != nil && ti.Source == "env" {
			ui.OK("token is provided by " + auth.EnvToken + " env var (nothing to delete)")
			return 0
		}
		if err := auth.DeleteToken(); err != nil {
			ui.Fail("logout: " + err.Error())
			return 1
		}
		ui.OK("logged out")
		return 0

	case "status":
		ti, _ := auth.GetToken()
		if ti == nil {
			fmt.Println(ui.C(ui.Current().Muted, "not logged in"))
			fmt.Println("Run: synctodo auth login")
			return 0
		}
		fmt.Printf("source: %s\n", ti.Source)
		if ti.ExpiresAt != nil {
			fmt.Printf("expires: %s\n", ti.ExpiresAt.UTC().Format(time.RFC3339))
		} else {
			fmt.Println("expires: (unknown)")
		}
		fmt.Println("env override: " + auth.EnvToken)
		return 0

	case "whoami":
		ti, _ := auth.GetToken()
		if ti == nil {
			ui.Fail("not logged in. Run: synctodo auth login")
			return 2
		}
		if p, ok := auth.DecodeJWTPayload(ti.Token); ok {
			fmt.Println("JWT payload:")
			fmt.Println(p)
			return 0
		}
		fmt.Println("Opaque token (cannot introspect locally).")
		fmt.Println("source:", ti.Source)
		return 0
	}
	ui.Fail("usage: synctodo auth <login|logout|status|whoami>")
	return 2
}

// -------------- helpers ----------------

// todoAt maps a 1-based display index onto the todo it shows.
func todoAt(ctrl *app.Controller, userIndex int) (model.TodoItem, int) {
	doc, _ := ctrl.Sessions().Snapshot()
	if userIndex < 1 || userIndex > len(doc.Todos) {
		ui.Fail(fmt.Sprintf("index out of range: have %d, got %d", len(doc.Todos), userIndex))
		fmt.Fprintln(os.Stderr, ui.C("\033[90m", "Hint: run `synctodo ls` to see valid indexes"))
		return model.TodoItem{}, 2
	}
	return doc.Todos[userIndex-1], 0
}

func flatLines(todos []model.TodoItem) []string {
	if len(todos) == 0 {
		return []string{ui.C(ui.Current().Muted, "no todos yet")}
	}
	out := make([]string, 0, len(todos))
	for i, t := range todos {
		idx := fmt.Sprintf("%2d.", i+1)
		box := ui.Current().BoxUnchecked
		color := ui.Current().Muted
		if t.Completed {
			box, color = ui.Current().BoxChecked, ui.Current().Success
		}
		text := t.Text
		if len(text) > 80 {
			text = text[:77] + "..."
		}
		out = append(out, fmt.Sprintf("%s %s %s",
			ui.C("\033[2m", idx), ui.C(color, box), text))
	}
	return out
}

func groupLines(todos []model.TodoItem) []string {
	var pend, done []model.TodoItem
	for _, t := range todos {
		if t.Completed {
			done = append(done, t)
		} else {
			pend = append(pend, t)
		}
	}
	var lines []string
	lines = append(lines, ui.C(ui.Current().Accent, "Pending"))
	if len(pend) == 0 {
		lines = append(lines, ui.C(ui.Current().Muted, "(none)"))
	} else {
		lines = append(lines, flatLines(pend)...)
	}
	lines = append(lines, "")
	lines = append(lines, ui.C(ui.Current().Accent, "Done"))
	if len(done) == 0 {
		lines = append(lines, ui.C(ui.Current().Muted, "(none)"))
	} else {
		lines = append(lines, flatLines(done)...)
	}
	return lines
}
