package pageindex_test

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/calvinalkan/pageindex/pkg/fs"
	"github.com/calvinalkan/pageindex/pkg/pageindex"
	"github.com/calvinalkan/pageindex/pkg/pagestore"
)

func Test_FileIndex_PersistsAcrossOpen_When_Reopened(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	path := filepath.Join(t.TempDir(), "cache", "index.db")
	store := pagestore.NewMemStore()
	putPages(store, map[string]string{"A": "[[B]] @t", "A:B": "b", "C": "c"})

	ix, err := pageindex.Open(ctx, pageindex.Config{Store: store, Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	err = ix.Update(ctx, nil)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	err = ix.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}

	reads := store.ContentReads()

	ix = openIndex(t, store, func(cfg *pageindex.Config) { cfg.Path = path })

	n, err := ix.Pages().Count(ctx)
	if err != nil || n != 3 {
		t.Fatalf("Count after reopen = %d, %v, want 3", n, err)
	}

	ok, err := ix.ProbablyUpToDate(ctx)
	if err != nil || !ok {
		t.Fatalf("ProbablyUpToDate after reopen = %v, %v, want true", ok, err)
	}

	mustUpdate(t, ix)

	if got := store.ContentReads(); got != reads {
		t.Fatalf("content reads after reopen = %d, want %d", got, reads)
	}

	requireChildCounts(t, ix)
}

func Test_FileIndex_FailsToOpen_When_LockedByOtherIndex(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "index.db")
	store := pagestore.NewMemStore()

	openIndex(t, store, func(cfg *pageindex.Config) { cfg.Path = path })

	_, err := pageindex.Open(t.Context(), pageindex.Config{
		Store:       store,
		Path:        path,
		LockTimeout: 50 * time.Millisecond,
	})
	if !errors.Is(err, fs.ErrWouldBlock) {
		t.Fatalf("second Open err = %v, want ErrWouldBlock", err)
	}
}

func Test_FileIndex_RebuildsSchema_When_StoredSchemaDiffers(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	path := filepath.Join(t.TempDir(), "index.db")

	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}

	_, err = db.ExecContext(ctx, "CREATE TABLE pages (id INTEGER PRIMARY KEY, name TEXT); PRAGMA user_version = 7")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	err = db.Close()
	if err != nil {
		t.Fatalf("close seed db: %v", err)
	}

	store := pagestore.NewMemStore()
	putPages(store, map[string]string{"A": "a"})

	ix := openIndex(t, store, func(cfg *pageindex.Config) { cfg.Path = path })

	root, err := ix.Pages().Page(ctx, pageindex.RootPath())
	if err != nil || root.NeedsCheck != pageindex.CheckTree {
		t.Fatalf("root = %v, %v, want CheckTree after rebuild", root.NeedsCheck, err)
	}

	mustUpdate(t, ix)

	if _, err := ix.Pages().Lookup(ctx, pageindex.MustPath("A")); err != nil {
		t.Fatalf("Lookup(A) after rebuild: %v", err)
	}
}

func Test_DirStore_IndexesThroughFileStrategy_When_PagesOnDisk(t *testing.T) {
	t.Parallel()

	ctx := t.Context()

	store, err := pagestore.NewDirStore(fs.NewReal(), t.TempDir())
	if err != nil {
		t.Fatalf("NewDirStore: %v", err)
	}

	for name, content := range map[string]string{
		"Projects:Road map": "see [[Notes]] @plan",
		"Projects:Notes":    "n",
		"Inbox":             "i",
	} {
		err = store.Write(pageindex.MustPath(name), []byte(content))
		if err != nil {
			t.Fatalf("Write(%s): %v", name, err)
		}
	}

	ix := openIndex(t, store, func(cfg *pageindex.Config) {
		cfg.Path = filepath.Join(store.Root(), ".pageindex", "index.db")
	})
	mustUpdate(t, ix)

	want := []string{"Inbox", "Projects", "Projects:Notes", "Projects:Road map"}

	got := walkNames(t, ix)
	if len(got) != len(want) {
		t.Fatalf("walk = %v, want %v", got, want)
	}

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("walk = %v, want %v", got, want)
		}
	}

	back, err := ix.Links().Count(ctx, pageindex.MustPath("Projects:Notes"), pageindex.Backward)
	if err != nil || back != 1 {
		t.Fatalf("backlinks of Projects:Notes = %d, %v, want 1", back, err)
	}

	err = store.Delete(pageindex.MustPath("Inbox"))
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}

	err = ix.OnDeletePage(ctx, pageindex.MustPath("Inbox"))
	if err != nil {
		t.Fatalf("OnDeletePage: %v", err)
	}

	_, err = ix.Pages().Lookup(ctx, pageindex.MustPath("Inbox"))
	if !errors.Is(err, pageindex.ErrNotFound) {
		t.Fatalf("Lookup(Inbox) err = %v, want ErrNotFound", err)
	}
}

func Test_Metrics_CountWalkerWork_When_RegistryGiven(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	store := faultyStore{MemStore: pagestore.NewMemStore(), broken: map[string]bool{"Bad": true}}
	putPages(store.MemStore, map[string]string{"A": "[[Later]]", "Bad": "b"})

	ix := openIndex(t, store, func(cfg *pageindex.Config) { cfg.Registerer = reg })
	mustUpdate(t, ix)

	store.Put(pageindex.MustPath("Later"), []byte("l"))
	mustUpdate(t, ix)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	values := map[string]float64{}

	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				values[mf.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[mf.GetName()] = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				values[mf.GetName()] += float64(m.GetHistogram().GetSampleCount())
			}
		}
	}

	if got := values["pageindex_pages_indexed_total"]; got != 2 {
		t.Fatalf("pages indexed = %v, want 2", got)
	}

	// Bad is retried, and fails again, on every full walk.
	if got := values["pageindex_index_failures_total"]; got != 2 {
		t.Fatalf("failures = %v, want 2", got)
	}

	if got := values["pageindex_links_resolved_total"]; got != 1 {
		t.Fatalf("links resolved = %v, want 1", got)
	}

	if got := values["pageindex_queue_length"]; got != 0 {
		t.Fatalf("queue length = %v, want 0", got)
	}

	if values["pageindex_rows_processed_total"] == 0 || values["pageindex_step_duration_seconds"] == 0 {
		t.Fatalf("walker metrics missing: %v", values)
	}
}
