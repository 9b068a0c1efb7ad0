package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/automerge/automerge-go"
	"github.com/stretchr/testify/require"

	"github.com/idilsaglam/synctodo/internal/engine"
	"github.com/idilsaglam/synctodo/internal/model"
	"github.com/idilsaglam/synctodo/internal/store"
)

// fakeHandle counts listener attaches and detaches so tests can
// verify the single-subscription discipline.
type fakeHandle struct {
	id       string
	doc      model.Document
	attached int
	detached int
}

func (h *fakeHandle) Identifier() string                { return h.id }
func (h *fakeHandle) Snapshot() (model.Document, error) { return h.doc, nil }
func (h *fakeHandle) Mutate(ctx context.Context, fn func(*automerge.Doc) error) error {
	return fn(automerge.New())
}
func (h *fakeHandle) OnChange(fn func()) func() {
	h.attached++
	return func() { h.detached++ }
}

func (h *fakeHandle) live() int { return h.attached - h.detached }

// gate lets a test hold an acquisition in flight: AcquireHandle
// signals entered and then blocks until release is closed.
type gate struct {
	entered chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}), release: make(chan struct{})}
}

type fakeEngine struct {
	handles map[string]*fakeHandle
	failOn  map[string]error
	gates   map[string]*gate
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		handles: map[string]*fakeHandle{},
		failOn:  map[string]error{},
		gates:   map[string]*gate{},
	}
}

func (e *fakeEngine) add(id, name string) *fakeHandle {
	h := &fakeHandle{id: id, doc: model.Document{Name: name}}
	e.handles[id] = h
	return h
}

func (e *fakeEngine) CreateDocument(ctx context.Context, initial model.Document) (string, error) {
	id := fmt.Sprintf("automerge:%032d", len(e.handles))
	e.add(id, initial.Name)
	return id, nil
}

func (e *fakeEngine) ValidateIdentifier(raw string) bool { return engine.ValidIdentifier(raw) }

func (e *fakeEngine) AcquireHandle(ctx context.Context, id string) (engine.Handle, error) {
	if g := e.gates[id]; g != nil {
		g.entered <- struct{}{}
		<-g.release
	}
	if err := e.failOn[id]; err != nil {
		return nil, err
	}
	h, ok := e.handles[id]
	if !ok {
		return nil, engine.ErrDocumentNotFound
	}
	return h, nil
}

func setup(t *testing.T) (*fakeEngine, *store.Store, *Manager) {
	t.Helper()
	eng := newFakeEngine()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	return eng, st, NewManager(eng, st, nil)
}

func TestOpenOrSwitch_AttachesAndPersists(t *testing.T) {
	eng, st, m := setup(t)
	a := eng.add("automerge:aaaa", "Groceries")

	require.NoError(t, m.OpenOrSwitch(context.Background(), a.id))
	require.Equal(t, 1, a.live())
	require.Equal(t, a.id, m.ActiveID())
	require.Equal(t, "Groceries", m.DocName())

	active, err := st.Active()
	require.NoError(t, err)
	require.Equal(t, a.id, active)
}

func TestOpenOrSwitch_DetachesPrevious(t *testing.T) {
	eng, _, m := setup(t)
	a := eng.add("automerge:aaaa", "A")
	b := eng.add("automerge:bbbb", "B")

	require.NoError(t, m.OpenOrSwitch(context.Background(), a.id))
	require.NoError(t, m.OpenOrSwitch(context.Background(), b.id))

	require.Equal(t, 0, a.live(), "previous handle must be detached")
	require.Equal(t, 1, b.live())
	require.Equal(t, b.id, m.ActiveID())
}

// Across N switches there is always exactly one live listener.
func TestOpenOrSwitch_SingleListenerInvariant(t *testing.T) {
	eng, _, m := setup(t)
	ids := []string{"automerge:aaaa", "automerge:bbbb", "automerge:cccc"}
	for _, id := range ids {
		eng.add(id, id)
	}

	for i := 0; i < 20; i++ {
		require.NoError(t, m.OpenOrSwitch(context.Background(), ids[i%len(ids)]))
		total := 0
		for _, h := range eng.handles {
			total += h.live()
		}
		require.Equal(t, 1, total, "switch %d", i)
	}
}

func TestOpenOrSwitch_ReentrantIsListenerNoop(t *testing.T) {
	eng, _, m := setup(t)
	a := eng.add("automerge:aaaa", "A")

	require.NoError(t, m.OpenOrSwitch(context.Background(), a.id))
	a.doc.Name = "Renamed"
	require.NoError(t, m.OpenOrSwitch(context.Background(), a.id))

	require.Equal(t, 1, a.attached, "re-entrant switch must not re-attach")
	require.Equal(t, "Renamed", m.DocName(), "but must refresh the displayed name")
}

func TestOpenOrSwitch_FailureKeepsPriorState(t *testing.T) {
	eng, st, m := setup(t)
	a := eng.add("automerge:aaaa", "A")
	require.NoError(t, m.OpenOrSwitch(context.Background(), a.id))

	eng.failOn["automerge:bbbb"] = errors.New("unreachable")
	err := m.OpenOrSwitch(context.Background(), "automerge:bbbb")
	require.Error(t, err)

	require.Equal(t, a.id, m.ActiveID(), "manager stays on previous session")
	require.Equal(t, 1, a.live())
	active, err := st.Active()
	require.NoError(t, err)
	require.Equal(t, a.id, active)
}

// A switch that wins while an earlier acquisition is still in flight
// must stay the active one when the slow acquisition finally lands.
func TestOpenOrSwitch_SlowAcquisitionYieldsToLaterSwitch(t *testing.T) {
	eng, st, m := setup(t)
	a := eng.add("automerge:aaaa", "A")
	b := eng.add("automerge:bbbb", "B")

	g := newGate()
	eng.gates[a.id] = g

	done := make(chan error, 1)
	go func() { done <- m.OpenOrSwitch(context.Background(), a.id) }()
	<-g.entered // acquisition of A is now in flight

	require.NoError(t, m.OpenOrSwitch(context.Background(), b.id))

	close(g.release)
	require.NoError(t, <-done, "superseded switch completes quietly")

	require.Equal(t, b.id, m.ActiveID(), "later switch stays active")
	require.Zero(t, a.attached, "superseded acquisition never attaches")
	require.Equal(t, 1, b.live())

	active, err := st.Active()
	require.NoError(t, err)
	require.Equal(t, b.id, active, "persisted pointer follows the winner")
}

func TestOpenOrSwitch_PersistFailureKeepsSession(t *testing.T) {
	eng := newFakeEngine()
	dir := t.TempDir()
	st, err := store.New(dir)
	require.NoError(t, err)
	m := NewManager(eng, st, nil)
	a := eng.add("automerge:aaaa", "A")

	// shadow the active pointer file with a directory so the store
	// cannot write it
	require.NoError(t, os.Mkdir(filepath.Join(dir, "active"), 0o755))

	require.NoError(t, m.OpenOrSwitch(context.Background(), a.id),
		"persist failure does not fail the switch")
	require.Equal(t, a.id, m.ActiveID(), "session is live and consistent")
	require.Equal(t, 1, a.live())
	require.Equal(t, "A", m.DocName())
}

func TestClose_ClearsEverything(t *testing.T) {
	eng, st, m := setup(t)
	a := eng.add("automerge:aaaa", "A")
	require.NoError(t, m.OpenOrSwitch(context.Background(), a.id))

	require.NoError(t, m.Close())

	require.Equal(t, 0, a.live())
	_, ok := m.Handle()
	require.False(t, ok)
	require.Empty(t, m.ActiveID())
	require.Empty(t, m.DocName())

	active, err := st.Active()
	require.NoError(t, err)
	require.Empty(t, active)

	require.NoError(t, m.Close(), "idle close is a no-op")
}

func TestNotify_FiresOnTransitions(t *testing.T) {
	eng := newFakeEngine()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	notified := 0
	m := NewManager(eng, st, func() { notified++ })

	a := eng.add("automerge:aaaa", "A")
	require.NoError(t, m.OpenOrSwitch(context.Background(), a.id))
	require.Positive(t, notified)

	before := notified
	require.NoError(t, m.Close())
	require.Greater(t, notified, before)
}
