package pageindex_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/calvinalkan/pageindex/pkg/pageindex"
	"github.com/calvinalkan/pageindex/pkg/pagestore"
)

func openIndex(t *testing.T, store pageindex.Store, configure ...func(*pageindex.Config)) *pageindex.Index {
	t.Helper()

	cfg := pageindex.Config{Store: store}
	for _, fn := range configure {
		fn(&cfg)
	}

	ix, err := pageindex.Open(t.Context(), cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	t.Cleanup(func() {
		err := ix.Close()
		if err != nil {
			t.Errorf("Close: %v", err)
		}
	})

	return ix
}

func putPages(store *pagestore.MemStore, pages map[string]string) {
	for name, content := range pages {
		store.Put(pageindex.MustPath(name), []byte(content))
	}
}

func mustUpdate(t *testing.T, ix *pageindex.Index) {
	t.Helper()

	err := ix.Update(t.Context(), nil)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func walkNames(t *testing.T, ix *pageindex.Index) []string {
	t.Helper()

	pages, err := ix.Pages().Walk(t.Context(), pageindex.RootPath())
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}

	names := make([]string, 0, len(pages))
	for _, p := range pages {
		names = append(names, p.Name())
	}

	return names
}

func mustLookup(t *testing.T, ix *pageindex.Index, name string) pageindex.PageInfo {
	t.Helper()

	info, err := ix.Pages().Page(t.Context(), pageindex.MustPath(name))
	if err != nil {
		t.Fatalf("Page(%s): %v", name, err)
	}

	return info
}

// requireChildCounts checks that every row's child count matches its
// child rows.
func requireChildCounts(t *testing.T, ix *pageindex.Index) {
	t.Helper()

	ctx := t.Context()

	pages, err := ix.Pages().Walk(ctx, pageindex.RootPath())
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}

	root, err := ix.Pages().Page(ctx, pageindex.RootPath())
	if err != nil {
		t.Fatalf("Page(root): %v", err)
	}

	for _, p := range append(pages, root) {
		children, err := ix.Pages().Children(ctx, p.Path)
		if err != nil {
			t.Fatalf("Children(%s): %v", p, err)
		}

		if len(children) != p.NChildren {
			t.Fatalf("%s: n_children = %d, but %d child rows", p, p.NChildren, len(children))
		}
	}
}

// recorder is a listener that records notifications as strings.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, s)
}

func (r *recorder) PageAdded(p pageindex.IndexPath)   { r.add("added " + p.String()) }
func (r *recorder) PageChanged(p pageindex.IndexPath) { r.add("changed " + p.String()) }

func (r *recorder) PageHasChildrenToggled(p pageindex.IndexPath, has bool) {
	if has {
		r.add("children+ " + p.String())
	} else {
		r.add("children- " + p.String())
	}
}

func (r *recorder) PageToBeRemoved(p pageindex.IndexPath) { r.add("removed " + p.String()) }

func (r *recorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.events
	r.events = nil

	return out
}

func (r *recorder) filter(prefix string) []string {
	var out []string

	for _, e := range r.take() {
		if len(e) > len(prefix) && e[:len(prefix)] == prefix {
			out = append(out, e[len(prefix):])
		}
	}

	return out
}

var errBrokenPage = errors.New("broken page")

// faultyStore fails content reads for the pages in broken.
type faultyStore struct {
	*pagestore.MemStore

	broken map[string]bool
}

func (s faultyStore) Content(ctx context.Context, p pageindex.Path) ([]byte, bool, error) {
	if s.broken[p.Name()] {
		return nil, false, errBrokenPage
	}

	return s.MemStore.Content(ctx, p)
}

// extraNamesStore lists additional names at the root that have no page behind
// them, as a directory with oddly named files would.
type extraNamesStore struct {
	*pagestore.MemStore

	extra []string
}

func (s extraNamesStore) ListChildren(ctx context.Context, p pageindex.Path) ([]string, error) {
	names, err := s.MemStore.ListChildren(ctx, p)
	if err != nil || !p.IsRoot() {
		return names, err
	}

	return append(names, s.extra...), nil
}
