package store

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/idilsaglam/synctodo/internal/model"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestLoad_FirstRun(t *testing.T) {
	s := newStore(t)
	reg, err := s.Load()
	require.NoError(t, err)
	require.Empty(t, reg.Entries)
	require.Empty(t, reg.ActiveID)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	cases := map[string][]model.ListEntry{
		"empty": {},
		"one":   {{ID: "automerge:aaaa", Name: "Groceries"}},
		"many": {
			{ID: "automerge:aaaa", Name: "Groceries"},
			{ID: "automerge:bbbb", Name: "Chores"},
			{ID: "automerge:cccc", Name: "Groceries"}, // names need not be unique
		},
	}
	for name, entries := range cases {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			require.NoError(t, s.Save(model.Registry{Entries: entries}))
			reg, err := s.Load()
			require.NoError(t, err)
			if len(entries) == 0 {
				require.Empty(t, reg.Entries)
			} else {
				require.Equal(t, entries, reg.Entries)
			}
		})
	}
}

func TestLoad_MalformedBlobFailsSoft(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, registryFileName), []byte("{not json"), 0o600))

	reg, err := s.Load()
	require.NoError(t, err, "corrupt registry must not be fatal")
	require.Empty(t, reg.Entries)
}

func TestActive_IndependentOfEntries(t *testing.T) {
	s := newStore(t)

	// active can point at a document that is not registered
	require.NoError(t, s.SetActive("automerge:feed"))
	active, err := s.Active()
	require.NoError(t, err)
	require.Equal(t, "automerge:feed", active)

	reg, err := s.Load()
	require.NoError(t, err)
	require.Empty(t, reg.Entries)
	require.Equal(t, "automerge:feed", reg.ActiveID)

	// clearing active leaves entries alone
	require.NoError(t, s.Save(model.Registry{Entries: []model.ListEntry{{ID: "automerge:aaaa", Name: "A"}}}))
	require.NoError(t, s.SetActive(""))
	reg, err = s.Load()
	require.NoError(t, err)
	require.Len(t, reg.Entries, 1)
	require.Empty(t, reg.ActiveID)
}

// For any sequence of registrations and removals, the reloaded entry
// set has no duplicate identifiers and preserves insertion order.
func TestRegistry_NoDuplicatesProperty(t *testing.T) {
	s := newStore(t)
	idGen := rapid.StringMatching(`automerge:[0-9a-f]{4}`)

	rapid.Check(t, func(rt *rapid.T) {
		var reg model.Registry
		n := rapid.IntRange(0, 20).Draw(rt, "n")
		for i := 0; i < n; i++ {
			id := idGen.Draw(rt, "id")
			if rapid.Bool().Draw(rt, "remove") {
				reg.Remove(id)
			} else {
				reg.Add(model.ListEntry{ID: id, Name: fmt.Sprintf("list-%d", i)})
			}
		}
		if err := s.Save(reg); err != nil {
			rt.Fatalf("save: %v", err)
		}
		got, err := s.Load()
		if err != nil {
			rt.Fatalf("load: %v", err)
		}
		seen := map[string]bool{}
		for _, e := range got.Entries {
			if seen[e.ID] {
				rt.Fatalf("duplicate id after reload: %s", e.ID)
			}
			seen[e.ID] = true
		}
		if len(got.Entries) != len(reg.Entries) {
			rt.Fatalf("entry count changed across reload: %d != %d", len(got.Entries), len(reg.Entries))
		}
	})
}
