package pageindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// pagesIndexer owns n_children and the page notifications.
type pagesIndexer struct {
	now func() time.Time
}

var pagesTable = tableDef{
	name: "pages",
	columns: []columnDef{
		{"id", "INTEGER PRIMARY KEY AUTOINCREMENT"},
		{"parent", "INTEGER NOT NULL"},
		{"basename", "TEXT NOT NULL"},
		{"sortkey", "TEXT NOT NULL"},
		{"needscheck", "INTEGER NOT NULL DEFAULT 0"},
		{"n_children", "INTEGER NOT NULL DEFAULT 0"},
		{"content_etag", "TEXT"},
		{"children_etag", "TEXT"},
		{"ctime", "INTEGER NOT NULL"},
		{"mtime", "INTEGER NOT NULL"},
	},
	constraints: []string{"UNIQUE (parent, basename)"},
	indexes: [][]string{
		{"parent", "sortkey"},
		{"needscheck", "id"},
	},
}

func (pagesIndexer) tables() []tableDef { return []tableDef{pagesTable} }

func (pagesIndexer) onNewPage(ctx context.Context, w *writeTx, page IndexPath) error {
	parent := page.ParentPath()

	var n int

	err := w.tx.QueryRowContext(ctx,
		"UPDATE pages SET n_children = n_children + 1 WHERE id = ? RETURNING n_children",
		parent.ID(),
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: parent row of %s is missing", ErrConsistency, page)
	}

	if err != nil {
		return fmt.Errorf("sqlite: count children: %w", err)
	}

	if n == 1 {
		w.emit(event{kind: eventHasChildrenToggled, page: parent, hasChildren: true})
	}

	w.emit(event{kind: eventPageAdded, page: page})

	return nil
}

func (p pagesIndexer) onIndexPage(ctx context.Context, w *writeTx, page IndexPath, _ ParsedPage) error {
	_, err := w.tx.ExecContext(ctx, "UPDATE pages SET mtime = ? WHERE id = ?", p.now().UnixNano(), page.ID())
	if err != nil {
		return fmt.Errorf("sqlite: touch page: %w", err)
	}

	w.emit(event{kind: eventPageChanged, page: page})

	return nil
}

func (pagesIndexer) onDeletePage(ctx context.Context, w *writeTx, page IndexPath) error {
	w.emit(event{kind: eventToBeRemoved, page: page})

	var own int

	err := w.tx.QueryRowContext(ctx, "SELECT n_children FROM pages WHERE id = ?", page.ID()).Scan(&own)
	if err != nil {
		return fmt.Errorf("sqlite: select page %s: %w", page, err)
	}

	if own != 0 {
		return fmt.Errorf("%w: %s is removed with n_children = %d", ErrConsistency, page, own)
	}

	parent := page.ParentPath()

	var n int

	err = w.tx.QueryRowContext(ctx,
		"UPDATE pages SET n_children = n_children - 1 WHERE id = ? AND n_children > 0 RETURNING n_children",
		parent.ID(),
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: parent of %s is missing or reports no children", ErrConsistency, page)
	}

	if err != nil {
		return fmt.Errorf("sqlite: count children: %w", err)
	}

	if n == 0 {
		w.emit(event{kind: eventHasChildrenToggled, page: parent, hasChildren: false})
	}

	return nil
}
