package pageindex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/calvinalkan/pageindex/pkg/fs"
)

// Index is an open page index. Create it with [Open] and release it with
// [Index.Close].
type Index struct {
	store         Store
	parse         ParseFunc
	log           *slog.Logger
	metrics       *metrics
	now           func() time.Time
	linkBatchSize int

	conn      *conn
	schema    schema
	indexers  []indexer
	links     linksIndexer
	listeners listenerSet
	lock      *fs.Lock // nil for the memory strategy

	// bg is the background worker state, see update.go.
	bgMu sync.Mutex
	bg   *worker
}

// Open opens or creates the index described by cfg.
//
// A stored index whose schema fingerprint or columns differ from the
// current definition is dropped and rebuilt, with the root flagged for a
// full tree check. Nothing is scanned on open; call [Index.Update] or
// [Index.StartBackgroundUpdate].
func Open(ctx context.Context, cfg Config) (*Index, error) {
	if ctx == nil {
		return nil, errors.New("context is nil")
	}

	if cfg.Store == nil {
		return nil, errors.New("Config.Store is required")
	}

	if cfg.Parse == nil {
		cfg.Parse = ParseMarkup
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = defaultLockTimeout
	}

	if cfg.LinkBatchSize <= 0 {
		cfg.LinkBatchSize = defaultLinkBatchSize
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	ix := &Index{
		store:         cfg.Store,
		parse:         cfg.Parse,
		log:           cfg.Logger,
		metrics:       newMetrics(cfg.Registerer),
		now:           cfg.Now,
		linkBatchSize: cfg.LinkBatchSize,
	}

	ix.indexers = []indexer{pagesIndexer{now: cfg.Now}, ix.links, tagsIndexer{}}
	ix.schema = newSchema(ix.indexers)

	err := ix.openConn(ctx, cfg)
	if err != nil {
		return nil, err
	}

	err = ix.conn.write(ctx, func(ctx context.Context, w *writeTx) error {
		verifyErr := ix.schema.verify(ctx, w.tx)
		if verifyErr == nil {
			return nil
		}

		if !errors.Is(verifyErr, errSchemaMismatch) {
			return verifyErr
		}

		ix.log.Info("page index: rebuilding schema", slog.String("reason", verifyErr.Error()))

		return ix.schema.rebuild(ctx, w.tx, ix.now().UnixNano())
	})
	if err != nil {
		closeErr := ix.Close()

		return nil, errors.Join(fmt.Errorf("init schema: %w", err), closeErr)
	}

	return ix, nil
}

func (ix *Index) openConn(ctx context.Context, cfg Config) error {
	if cfg.Path == "" {
		db, err := openMemorySqlite(ctx)
		if err != nil {
			return fmt.Errorf("open: %w", err)
		}

		ix.conn = newMemoryConn(db, ix.listeners.dispatch)

		return nil
	}

	path := filepath.Clean(cfg.Path)
	fsReal := fs.NewReal()

	err := fsReal.MkdirAll(filepath.Dir(path), 0o750)
	if err != nil {
		return fmt.Errorf("creating index dir: fs: %w", err)
	}

	lockCtx, cancel := context.WithTimeout(ctx, cfg.LockTimeout)
	defer cancel()

	lock, err := fs.NewLocker(fsReal).Lock(lockCtx, path+".lock")
	if err != nil {
		return fmt.Errorf("lock index: %w", err)
	}

	db, err := openFileSqlite(ctx, path)
	if err != nil {
		closeErr := lock.Close()

		return errors.Join(fmt.Errorf("open: %w", err), closeErr)
	}

	ix.lock = lock
	ix.conn = newFileConn(db, ix.listeners.dispatch)

	return nil
}

// Close stops the background worker, waits for in-flight operations and
// releases the database and the index file lock. Safe on nil, idempotent.
func (ix *Index) Close() error {
	if ix == nil {
		return nil
	}

	var errs []error

	ix.StopBackgroundUpdate()

	if ix.conn != nil {
		err := ix.conn.close()
		if err != nil {
			errs = append(errs, err)
		}
	}

	if ix.lock != nil {
		err := ix.lock.Close()
		if err != nil {
			errs = append(errs, fmt.Errorf("fs: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Subscribe registers l for change notifications. The returned function
// removes it again.
func (ix *Index) Subscribe(l Listener) (unsubscribe func()) {
	return ix.listeners.subscribe(l)
}

// Pages returns the page read view.
func (ix *Index) Pages() PagesView { return PagesView{c: ix.conn} }

// Links returns the link read view.
func (ix *Index) Links() LinksView { return LinksView{c: ix.conn} }

// Tags returns the tag read view.
func (ix *Index) Tags() TagsView { return TagsView{c: ix.conn} }

// OnStorePage brings the index in line with a page the caller just stored.
//
// Missing ancestors are inserted (queued as CheckPage, since nothing is
// known about them yet), the page is re-indexed if its content token moved,
// and the nearest pre-existing ancestor is queued for a one level children
// check. The change is committed before OnStorePage returns, regardless of
// what the background worker is doing.
//
// When the content cannot be read or parsed the rows are still committed
// with the old content token, and the returned error matches [ErrPageFailed].
func (ix *Index) OnStorePage(ctx context.Context, path Path) error {
	var failure *rowFailure

	err := ix.conn.write(ctx, func(ctx context.Context, w *writeTx) error {
		failure = nil

		page, err := ix.ensurePage(ctx, w, path)
		if err != nil {
			return err
		}

		row, err := pageRowByID(ctx, w.tx, page.ID())
		if err != nil {
			return err
		}

		err = ix.refreshContent(ctx, w, page, row)
		if errors.As(err, &failure) {
			err = nil
		}

		if err != nil {
			return err
		}

		if row.NeedsCheck == UpToDate {
			token, err := ix.store.ChildrenToken(ctx, path)
			if err != nil {
				return fmt.Errorf("store: children token: %w", err)
			}

			if token != row.ChildrenToken {
				err = setState(ctx, w.tx, row.ID, NeedsChildrenUpdate)
				if err != nil {
					return err
				}
			}
		}

		return setProperty(ctx, w.tx, propProbablyUpToDate, "false")
	})

	if err == nil && failure != nil {
		ix.log.Warn("page index: stored page not indexed",
			slog.String("page", path.Name()),
			slog.Int64("page_id", failure.id),
			slog.String("error", failure.err.Error()),
		)
		ix.metrics.failures.Inc()

		err = failure
	}

	return withContext(err, path.Name(), 0)
}

// ensurePage returns the IndexPath of path, inserting missing rows.
func (ix *Index) ensurePage(ctx context.Context, w *writeTx, path Path) (IndexPath, error) {
	page, err := lookupExisting(ctx, w.tx, path)
	if err != nil {
		return IndexPath{}, err
	}

	if page.Exists() {
		return page, nil
	}

	err = queueChildrenUpdate(ctx, w.tx, page.IDs[len(page.IDs)-1])
	if err != nil {
		return IndexPath{}, err
	}

	parts := path.Parts()
	cur := IndexPath{Path: Path{}, IDs: page.IDs[:1]}

	for i, name := range parts {
		if i+1 < len(page.IDs) {
			cur = cur.ChildPath(name, page.IDs[i+1])

			continue
		}

		state := CheckPage
		if i == len(parts)-1 {
			state = UpToDate
		}

		cur, err = ix.insertPage(ctx, w, cur, name, state)
		if err != nil {
			return IndexPath{}, err
		}
	}

	return cur, nil
}

// queueChildrenUpdate flags an up to date row for a one level children
// check. Rows already queued keep their (stronger) state.
func queueChildrenUpdate(ctx context.Context, q querier, id int64) error {
	_, err := q.ExecContext(ctx,
		"UPDATE pages SET needscheck = ? WHERE id = ? AND needscheck = ?", NeedsChildrenUpdate, id, UpToDate)
	if err != nil {
		return fmt.Errorf("sqlite: queue children update: %w", err)
	}

	return nil
}

// OnDeletePage brings the index in line with a page the caller just
// deleted from the store.
//
// The row is only removed when the store reports neither content nor
// children for it; a page that still has children is kept as a placeholder
// with its content index cleared. Removal cascades upward through ancestors
// that now have neither content nor children in the store. Deleting a page
// that has no row is a no-op.
func (ix *Index) OnDeletePage(ctx context.Context, path Path) error {
	if path.IsRoot() {
		return withContext(fmt.Errorf("%w: cannot delete the root", ErrInvalidPath), "", RootID)
	}

	err := ix.conn.write(ctx, func(ctx context.Context, w *writeTx) error {
		page, err := lookupExisting(ctx, w.tx, path)
		if err != nil {
			return err
		}

		if !page.Exists() {
			return nil
		}

		gone, err := ix.storeIsEmpty(ctx, path)
		if err != nil {
			return err
		}

		if !gone {
			row, err := pageRowByID(ctx, w.tx, page.ID())
			if err != nil {
				return err
			}

			err = ix.refreshContent(ctx, w, page, row)
			if err != nil {
				return err
			}

			err = queueChildrenUpdate(ctx, w.tx, page.ID())
			if err != nil {
				return err
			}

			return setProperty(ctx, w.tx, propProbablyUpToDate, "false")
		}

		err = ix.deletePage(ctx, w, page)
		if err != nil {
			return err
		}

		parent := page.ParentPath()
		for !parent.IsRoot() {
			row, err := pageRowByID(ctx, w.tx, parent.ID())
			if err != nil {
				return err
			}

			if row.HasChildren() {
				break
			}

			gone, err = ix.storeIsEmpty(ctx, parent.Path)
			if err != nil {
				return err
			}

			if !gone {
				break
			}

			err = ix.deletePage(ctx, w, parent)
			if err != nil {
				return err
			}

			parent = parent.ParentPath()
		}

		err = queueChildrenUpdate(ctx, w.tx, parent.ID())
		if err != nil {
			return err
		}

		return setProperty(ctx, w.tx, propProbablyUpToDate, "false")
	})

	return withContext(err, path.Name(), 0)
}

// storeIsEmpty reports whether the store has neither content nor children
// for path.
func (ix *Index) storeIsEmpty(ctx context.Context, path Path) (bool, error) {
	content, err := ix.store.ContentToken(ctx, path)
	if err != nil {
		return false, fmt.Errorf("store: content token: %w", err)
	}

	if content != "" {
		return false, nil
	}

	children, err := ix.store.ChildrenToken(ctx, path)
	if err != nil {
		return false, fmt.Errorf("store: children token: %w", err)
	}

	return children == "", nil
}

// CheckTree queues path for a full subtree check. When path has no row the
// nearest existing ancestor is queued instead.
func (ix *Index) CheckTree(ctx context.Context, path Path) error {
	err := ix.conn.write(ctx, func(ctx context.Context, w *writeTx) error {
		page, err := lookupExisting(ctx, w.tx, path)
		if err != nil {
			return err
		}

		err = setState(ctx, w.tx, page.IDs[len(page.IDs)-1], CheckTree)
		if err != nil {
			return err
		}

		return setProperty(ctx, w.tx, propProbablyUpToDate, "false")
	})

	return withContext(err, path.Name(), 0)
}

// Flush drops every table and rebuilds an empty index whose root is queued
// for a full tree check. No notifications are sent for the dropped rows.
func (ix *Index) Flush(ctx context.Context) error {
	return ix.conn.write(ctx, func(ctx context.Context, w *writeTx) error {
		return ix.schema.rebuild(ctx, w.tx, ix.now().UnixNano())
	})
}

// FlagFullReindex forgets every content token so the next walk re-reads
// and re-indexes all content. Rows are queued as CheckPage; rows already
// queued for a tree check keep that state, which covers their content too.
func (ix *Index) FlagFullReindex(ctx context.Context) error {
	return ix.conn.write(ctx, func(ctx context.Context, w *writeTx) error {
		_, err := w.tx.ExecContext(ctx, `
			UPDATE pages SET
				content_etag = NULL,
				needscheck = CASE WHEN needscheck = ? THEN ? ELSE ? END`,
			CheckTree, CheckTree, CheckPage,
		)
		if err != nil {
			return fmt.Errorf("sqlite: flag full reindex: %w", err)
		}

		return setProperty(ctx, w.tx, propProbablyUpToDate, "false")
	})
}

// ProbablyUpToDate reports whether the last walk drained the queue and no
// synchronous change happened since.
func (ix *Index) ProbablyUpToDate(ctx context.Context) (bool, error) {
	var value string

	err := ix.conn.read(ctx, func(q querier) error {
		var err error

		value, _, err = getProperty(ctx, q, propProbablyUpToDate)

		return err
	})

	return value == "true", err
}
