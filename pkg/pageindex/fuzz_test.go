package pageindex_test

import (
	"context"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/pageindex/internal/testutil"
	"github.com/calvinalkan/pageindex/pkg/pageindex"
	"github.com/calvinalkan/pageindex/pkg/pagestore"
)

// FuzzIndex_MatchesStore_After_RandomEdits applies random page edits, some
// reported to the index synchronously and some left for the tree walk,
// interleaved with updates. After a final update the index must mirror the
// store and every link row must agree with a fresh resolution.
func FuzzIndex_MatchesStore_After_RandomEdits(f *testing.F) {
	f.Add([]byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})
	f.Add([]byte{0, 0, 0, 3, 1, 7, 2, 2, 9, 4, 0, 1, 0, 3, 8, 8})
	f.Add([]byte{5, 200, 17, 33, 91, 4, 4, 4, 250, 6, 1, 2, 3})
	f.Add([]byte("put a page, delete it, update and do it again"))

	f.Fuzz(func(t *testing.T, data []byte) {
		ctx := t.Context()
		store := pagestore.NewMemStore()
		ix := openIndex(t, store)
		gen := testutil.NewPageOpGenerator(data, 3)

		var ops []testutil.PageOp

		for i := 0; gen.HasMore() && i < 64; i++ {
			op := gen.Next()
			ops = append(ops, op)

			err := applyOp(ctx, ix, store, op)
			if err != nil {
				t.Fatalf("op %d %s: %v\nops: %v", i, op, err, ops)
			}
		}

		mustUpdate(t, ix)

		if diff := cmp.Diff(storeNames(t, store), sortedWalk(t, ix)); diff != "" {
			t.Fatalf("index differs from store (-store +index):\n%s\nops: %v", diff, ops)
		}

		requireChildCounts(t, ix)
		requireLinksResolved(t, ix)

		queued, err := ix.Pages().Queued(ctx)
		if err != nil || queued != 0 {
			t.Fatalf("Queued = %d, %v after update, want 0\nops: %v", queued, err, ops)
		}
	})
}

func applyOp(ctx context.Context, ix *pageindex.Index, store *pagestore.MemStore, op testutil.PageOp) error {
	switch op.Kind {
	case testutil.OpPut:
		path := pageindex.MustPath(op.Name)
		store.Put(path, []byte(op.Content))

		if op.Notify {
			return ix.OnStorePage(ctx, path)
		}
	case testutil.OpDelete:
		path := pageindex.MustPath(op.Name)
		store.Delete(path)

		if op.Notify {
			return ix.OnDeletePage(ctx, path)
		}
	case testutil.OpUpdate:
		return ix.Update(ctx, nil)
	}

	return nil
}

// storeNames lists every page and namespace of the store, sorted.
func storeNames(t *testing.T, store pageindex.Store) []string {
	t.Helper()

	var names []string

	var walk func(path pageindex.Path)

	walk = func(path pageindex.Path) {
		children, err := store.ListChildren(t.Context(), path)
		if err != nil {
			t.Fatalf("ListChildren(%s): %v", path, err)
		}

		for _, name := range children {
			child := path.Child(name)
			names = append(names, child.Name())
			walk(child)
		}
	}

	walk(pageindex.RootPath())
	slices.Sort(names)

	return names
}

func sortedWalk(t *testing.T, ix *pageindex.Index) []string {
	t.Helper()

	names := walkNames(t, ix)
	slices.Sort(names)

	if len(names) == 0 {
		return nil
	}

	return names
}

// requireLinksResolved checks that every link row points where resolving
// its href from scratch would.
func requireLinksResolved(t *testing.T, ix *pageindex.Index) {
	t.Helper()

	ctx := t.Context()

	pages, err := ix.Pages().Walk(ctx, pageindex.RootPath())
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}

	for _, p := range pages {
		links, err := ix.Links().List(ctx, p.Path, pageindex.Forward)
		if err != nil {
			t.Fatalf("Links(%s): %v", p, err)
		}

		for _, l := range links {
			want, err := ix.Pages().ResolveLink(ctx, p.Path, l.HRef)
			if err != nil {
				t.Fatalf("ResolveLink(%s, %s): %v", p, l.HRef, err)
			}

			if l.Target.Name() != want.Name() || l.Target.Exists() != want.Exists() {
				t.Fatalf("link %s -> [[%s]] stored as %s (exists=%v), resolves to %s (exists=%v)",
					p, l.HRef, l.Target, l.Target.Exists(), want, want.Exists())
			}
		}
	}
}
