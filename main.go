package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/idilsaglam/synctodo/internal/cli"
	"github.com/idilsaglam/synctodo/internal/ui"
)

func main() {
	// Root flags (apply to every subcommand)
	dir := flag.String("dir", "", "state directory (default $SYNCTODO_DIR or ~/.synctodo)")
	syncURL := flag.String("sync", "", "websocket sync server (default $SYNCTODO_SYNC_URL)")
	theme := flag.String("theme", "classic", "output theme: classic, neon, mono")
	groupPending := flag.Bool("group", false, "group ls output by pending/done")
	yes := flag.Bool("y", false, "assume yes on confirmation prompts")
	verbose := flag.Bool("v", false, "verbose logging to stderr")
	flag.Parse()

	ui.SetTheme(*theme)
	if !*verbose {
		slog.SetLogLoggerLevel(slog.LevelWarn)
	}

	// Hand the remaining args to the CLI runner; no args opens the TUI.
	code := cli.Run(flag.Args(), cli.Options{
		Dir:     *dir,
		SyncURL: *syncURL,
		Group:   *groupPending,
		Yes:     *yes,
	})
	if code != 0 {
		fmt.Fprintln(os.Stderr)
	}
	os.Exit(code)
}
