package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/automerge/automerge-go"

	"github.com/idilsaglam/synctodo/internal/model"
)

// FileEngine stores one Automerge snapshot file per document under a
// local directory, and optionally keeps each open document in sync
// with a websocket sync server.
type FileEngine struct {
	dir     string
	syncURL string
	token   string

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	open map[string]*docHandle
}

// Option configures a FileEngine.
type Option func(*FileEngine)

// WithSyncServer enables background sync of every open document
// against the given websocket server. token is sent as a bearer
// credential and may be empty.
func WithSyncServer(url, token string) Option {
	return func(e *FileEngine) {
		e.syncURL = strings.TrimSuffix(url, "/")
		e.token = token
	}
}

// NewFileEngine opens (creating if needed) the document directory.
func NewFileEngine(dir string, opts ...Option) (*FileEngine, error) {
	docDir := filepath.Join(dir, "docs")
	if err := os.MkdirAll(docDir, 0o700); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &FileEngine{
		dir:    docDir,
		ctx:    ctx,
		cancel: cancel,
		open:   make(map[string]*docHandle),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Close stops all background sync loops.
func (e *FileEngine) Close() {
	e.cancel()
}

func (e *FileEngine) ValidateIdentifier(raw string) bool {
	return ValidIdentifier(raw)
}

func (e *FileEngine) docPath(id string) string {
	// identifiers are validated hex, safe as file names
	return filepath.Join(e.dir, strings.TrimPrefix(id, idPrefix)+".automerge")
}

// CreateDocument seeds a fresh document and persists its first
// snapshot. The handle is acquired lazily by the caller.
func (e *FileEngine) CreateDocument(ctx context.Context, initial model.Document) (string, error) {
	id := newIdentifier()
	doc := automerge.New()
	if err := doc.Path("name").Set(initial.Name); err != nil {
		return "", fmt.Errorf("seed name: %w", err)
	}
	if err := doc.Path("todos").Set([]any{}); err != nil {
		return "", fmt.Errorf("seed todos: %w", err)
	}
	for _, t := range initial.Todos {
		if err := doc.Path("todos").List().Append(todoValue(t)); err != nil {
			return "", fmt.Errorf("seed todo: %w", err)
		}
	}
	if _, err := doc.Commit("init", automerge.CommitOptions{AllowEmpty: true}); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	if err := os.WriteFile(e.docPath(id), doc.Save(), 0o600); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}
	slog.Info("created document", "id", id, "name", initial.Name)
	return id, nil
}

// AcquireHandle loads the document snapshot from disk, or returns the
// already-open handle for id. With a sync server configured, an
// unknown identifier starts from an empty document and fills in as
// sync messages arrive; without one it is an error.
func (e *FileEngine) AcquireHandle(ctx context.Context, id string) (Handle, error) {
	if !ValidIdentifier(id) {
		return nil, ErrInvalidIdentifier
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if h, found := e.open[id]; found {
		return h, nil
	}

	var doc *automerge.Doc
	b, err := os.ReadFile(e.docPath(id))
	switch {
	case err == nil:
		doc, err = automerge.Load(b)
		if err != nil {
			return nil, fmt.Errorf("load document %s: %w", id, err)
		}
	case errors.Is(err, os.ErrNotExist):
		if e.syncURL == "" {
			return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
		}
		slog.Info("no local snapshot, waiting for sync", "id", id)
		doc = automerge.New()
	default:
		return nil, fmt.Errorf("read document: %w", err)
	}

	h := &docHandle{
		id:        id,
		path:      e.docPath(id),
		doc:       doc,
		listeners: make(map[int]func()),
	}
	e.open[id] = h

	if e.syncURL != "" {
		go e.syncLoop(e.ctx, h)
	}
	return h, nil
}

// todoValue is the wire shape of one todo inside the document body.
func todoValue(t model.TodoItem) map[string]any {
	return map[string]any{
		"id":        t.ID,
		"text":      t.Text,
		"completed": t.Completed,
	}
}
