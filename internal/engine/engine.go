// Package engine wraps the Automerge CRDT library behind the small
// surface the rest of the application needs: create a document, check
// an identifier, acquire a live handle. Replication, merge semantics
// and storage formats all live below this interface.
package engine

import (
	"context"
	"encoding/hex"
	"errors"
	"regexp"

	"github.com/automerge/automerge-go"
	"github.com/google/uuid"

	"github.com/idilsaglam/synctodo/internal/model"
)

var (
	ErrInvalidIdentifier = errors.New("invalid document identifier")
	ErrDocumentNotFound  = errors.New("document not found")
)

// Engine creates and resolves shared documents.
type Engine interface {
	// CreateDocument creates a new document seeded with initial and
	// returns its identifier.
	CreateDocument(ctx context.Context, initial model.Document) (string, error)

	// ValidateIdentifier is a pure syntactic check on raw.
	ValidateIdentifier(raw string) bool

	// AcquireHandle resolves id to a live handle. May block on storage
	// or network lookup.
	AcquireHandle(ctx context.Context, id string) (Handle, error)
}

// Handle is a live binding to one document. All methods are safe for
// concurrent use; change callbacks may fire from a sync goroutine.
type Handle interface {
	Identifier() string

	// Snapshot reads the current document body.
	Snapshot() (model.Document, error)

	// Mutate applies fn as one transactional edit and commits it.
	Mutate(ctx context.Context, fn func(doc *automerge.Doc) error) error

	// OnChange registers fn to run after every local or remote change.
	// The returned function detaches the listener.
	OnChange(fn func()) (detach func())
}

const idPrefix = "automerge:"

var idPattern = regexp.MustCompile(`^automerge:[0-9a-f]{32}$`)

// newIdentifier mints a fresh document identifier: the automerge
// scheme prefix plus 32 hex chars of a random UUID.
func newIdentifier() string {
	u := uuid.New()
	return idPrefix + hex.EncodeToString(u[:])
}

// ValidIdentifier reports whether raw has the document identifier
// format. Exposed so callers can validate before touching an Engine.
func ValidIdentifier(raw string) bool {
	return idPattern.MatchString(raw)
}
