package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/idilsaglam/synctodo/internal/auth"
	"github.com/idilsaglam/synctodo/internal/engine"
	"github.com/idilsaglam/synctodo/internal/session"
	"github.com/idilsaglam/synctodo/internal/store"
)

// Environment overrides for the root flags.
const (
	EnvDir     = "SYNCTODO_DIR"
	EnvSyncURL = "SYNCTODO_SYNC_URL"
)

// Config selects the state directory and the optional sync server.
type Config struct {
	Dir     string // state directory; default $SYNCTODO_DIR or ~/.synctodo
	SyncURL string // websocket sync server; default $SYNCTODO_SYNC_URL, "" = offline
}

func (c Config) dir() (string, error) {
	if c.Dir != "" {
		return c.Dir, nil
	}
	if env := os.Getenv(EnvDir); env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home: %w", err)
	}
	return filepath.Join(home, ".synctodo"), nil
}

func (c Config) syncURL() string {
	if c.SyncURL != "" {
		return c.SyncURL
	}
	return os.Getenv(EnvSyncURL)
}

// Bootstrap assembles the full stack: file engine, registry store,
// session manager and controller. notify runs on every relevant state
// change (nil is fine for one-shot commands). The returned cleanup
// stops background sync.
func Bootstrap(cfg Config, notify func()) (*Controller, func(), error) {
	dir, err := cfg.dir()
	if err != nil {
		return nil, nil, err
	}

	var opts []engine.Option
	if url := cfg.syncURL(); url != "" {
		token := ""
		if ti, err := auth.GetToken(); err != nil {
			slog.Warn("could not read sync credentials", "err", err)
		} else if ti != nil {
			token = ti.Token
		}
		opts = append(opts, engine.WithSyncServer(url, token))
	}

	eng, err := engine.NewFileEngine(dir, opts...)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.New(dir)
	if err != nil {
		eng.Close()
		return nil, nil, err
	}
	sessions := session.NewManager(eng, st, notify)
	ctrl, err := NewController(eng, st, sessions)
	if err != nil {
		eng.Close()
		return nil, nil, err
	}
	return ctrl, eng.Close, nil
}
