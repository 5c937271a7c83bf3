package pageindex

import (
	"context"
	"fmt"
)

// indexer owns one slice of the schema. The walker and the synchronous
// hooks never write an indexer's rows themselves; they call these hooks
// inside the write transaction instead.
type indexer interface {
	tables() []tableDef

	// onNewPage runs once, right after the page row was inserted.
	onNewPage(ctx context.Context, w *writeTx, page IndexPath) error

	// onIndexPage runs after the content token changed and content was
	// re-read. parsed is empty when the page no longer has content.
	onIndexPage(ctx context.Context, w *writeTx, page IndexPath, parsed ParsedPage) error

	// onDeletePage runs before the row is removed. The row and its parents
	// still resolve at this point.
	onDeletePage(ctx context.Context, w *writeTx, page IndexPath) error
}

// insertPage inserts a child row below parent and runs every indexer's
// onNewPage hook.
func (ix *Index) insertPage(ctx context.Context, w *writeTx, parent IndexPath, basename string, state State) (IndexPath, error) {
	if !parent.Exists() {
		return IndexPath{}, fmt.Errorf("%w: insert %q below missing parent %s", ErrConsistency, basename, parent)
	}

	now := ix.now().UnixNano()

	res, err := w.tx.ExecContext(ctx, `
		INSERT INTO pages (parent, basename, sortkey, needscheck, n_children, ctime, mtime)
		VALUES (?, ?, ?, ?, 0, ?, ?)`,
		parent.ID(), basename, SortKey(basename), state, now, now,
	)
	if err != nil {
		return IndexPath{}, fmt.Errorf("sqlite: insert page %s: %w", parent.Child(basename), err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return IndexPath{}, fmt.Errorf("sqlite: insert page %s: %w", parent.Child(basename), err)
	}

	page := parent.ChildPath(basename, id)

	for _, idx := range ix.indexers {
		err = idx.onNewPage(ctx, w, page)
		if err != nil {
			return IndexPath{}, err
		}
	}

	return page, nil
}

// deletePage removes page and its whole subtree. Children go first, depth
// first, so every onDeletePage hook sees a row whose parents still exist.
func (ix *Index) deletePage(ctx context.Context, w *writeTx, page IndexPath) error {
	if page.IsRoot() {
		return fmt.Errorf("%w: refusing to delete the root", ErrConsistency)
	}

	children, err := childRows(ctx, w.tx, page.ID())
	if err != nil {
		return err
	}

	for _, child := range children {
		err = ix.deletePage(ctx, w, page.ChildPath(child.Basename, child.ID))
		if err != nil {
			return err
		}
	}

	for _, idx := range ix.indexers {
		err = idx.onDeletePage(ctx, w, page)
		if err != nil {
			return err
		}
	}

	_, err = w.tx.ExecContext(ctx, "DELETE FROM pages WHERE id = ?", page.ID())
	if err != nil {
		return fmt.Errorf("sqlite: delete page %s: %w", page, err)
	}

	return nil
}

func setState(ctx context.Context, q querier, id int64, state State) error {
	_, err := q.ExecContext(ctx, "UPDATE pages SET needscheck = ? WHERE id = ?", state, id)
	if err != nil {
		return fmt.Errorf("sqlite: set needscheck: %w", err)
	}

	return nil
}
