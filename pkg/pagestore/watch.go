package pagestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/calvinalkan/pageindex/pkg/pageindex"
)

// Notifier receives the page changes a [Watcher] observes.
// [*pageindex.Index] implements it.
type Notifier interface {
	OnStorePage(ctx context.Context, path pageindex.Path) error
	OnDeletePage(ctx context.Context, path pageindex.Path) error
	CheckTree(ctx context.Context, path pageindex.Path) error
	StartBackgroundUpdate(ctx context.Context)
}

// DefaultDebounce is the quiet period a [Watcher] waits for before it
// hands a batch of changes to its [Notifier].
const DefaultDebounce = 100 * time.Millisecond

// Watcher follows edits made to a [DirStore] by other programs and
// forwards them to a [Notifier]. Changes are collected until the tree has
// been quiet for the debounce window, then applied and followed by one
// background update.
type Watcher struct {
	store    *DirStore
	notify   Notifier
	log      *slog.Logger
	debounce time.Duration
}

// NewWatcher returns a watcher for store. A nil logger discards output; a
// non-positive debounce selects [DefaultDebounce].
func NewWatcher(store *DirStore, notify Notifier, log *slog.Logger, debounce time.Duration) *Watcher {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Watcher{store: store, notify: notify, log: log, debounce: debounce}
}

// Run watches until ctx is done. It returns nil on cancellation and an
// error when the watch cannot be set up or a change cannot be applied.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}

	defer func() { _ = fw.Close() }()

	err = w.addRecursive(fw, w.store.Root())
	if err != nil {
		return err
	}

	w.log.Info("watching pages", slog.String("root", w.store.Root()))

	pending := map[string]fsnotify.Op{}

	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}

			if isHidden(w.store.Root(), ev.Name) {
				continue
			}

			if ev.Has(fsnotify.Create) {
				info, statErr := os.Stat(ev.Name)
				if statErr == nil && info.IsDir() {
					err = w.addRecursive(fw, ev.Name)
					if err != nil {
						w.log.Warn("watch new directory", slog.String("dir", ev.Name), slog.String("error", err.Error()))
					}
				}
			}

			pending[ev.Name] |= ev.Op

			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}

			// Overflow loses events, so the whole tree must be rechecked.
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.log.Warn("watch event overflow, rechecking tree")

				pending[w.store.Root()] |= fsnotify.Create

				timer.Reset(w.debounce)

				continue
			}

			w.log.Error("watch", slog.String("error", err.Error()))

		case <-timer.C:
			err = w.apply(ctx, pending)
			if err != nil {
				return err
			}

			clear(pending)
		}
	}
}

// apply forwards one debounced batch. Files that exist are stored pages,
// files that vanished are deleted pages, directories get a tree check.
// A page that fails to index is logged and skipped.
func (w *Watcher) apply(ctx context.Context, batch map[string]fsnotify.Op) error {
	for name, op := range batch {
		if name == w.store.Root() {
			err := w.notify.CheckTree(ctx, pageindex.RootPath())
			if err != nil {
				return fmt.Errorf("check tree: %w", err)
			}

			continue
		}

		path, ok := w.store.PathOf(name)
		if !ok {
			continue
		}

		info, err := os.Stat(name)

		switch {
		case errors.Is(err, os.ErrNotExist):
			if filepath.Ext(name) != FileExt {
				err = w.notify.CheckTree(ctx, path.Parent())
				break
			}

			w.log.Debug("page deleted", slog.String("page", path.Name()), slog.String("op", op.String()))
			err = w.notify.OnDeletePage(ctx, path)
		case err != nil:
			return fmt.Errorf("stat: %w", err)
		case info.IsDir():
			err = w.notify.CheckTree(ctx, path)
		case filepath.Ext(name) != FileExt:
			continue
		default:
			w.log.Debug("page stored", slog.String("page", path.Name()), slog.String("op", op.String()))
			err = w.notify.OnStorePage(ctx, path)
		}

		if errors.Is(err, pageindex.ErrPageFailed) {
			w.log.Warn("page not indexed", slog.String("page", path.Name()), slog.String("error", err.Error()))

			continue
		}

		if err != nil {
			return fmt.Errorf("apply change to %s: %w", path.Name(), err)
		}
	}

	w.notify.StartBackgroundUpdate(ctx)

	return nil
}

func (w *Watcher) addRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}

			return err
		}

		if !d.IsDir() {
			return nil
		}

		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}

		err = fw.Add(path)
		if err != nil {
			return fmt.Errorf("fsnotify: watch %s: %w", path, err)
		}

		return nil
	})
}

func isHidden(root, name string) bool {
	rel, err := filepath.Rel(root, name)
	if err != nil {
		return true
	}

	for seg := range strings.SplitSeq(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(seg, ".") && seg != "." {
			return true
		}
	}

	return false
}
