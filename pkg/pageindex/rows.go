package pageindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// State is the needs-check state of a page row. Lower nonzero values are
// processed first.
type State int

const (
	// UpToDate rows need no work.
	UpToDate State = iota
	// NeedsChildrenUpdate rows need a one level check of their children,
	// set when a synchronous edit touched a page below an up to date row.
	NeedsChildrenUpdate
	// NeedsPageUpdate rows need their content token verified. A row is left
	// here after a tree check.
	NeedsPageUpdate
	// CheckTree rows need their whole subtree verified. This is the only
	// state callers set from outside the walker.
	CheckTree
	// CheckChildren rows need their children token verified.
	CheckChildren
	// CheckPage rows need their content and children tokens verified.
	CheckPage
)

func (s State) String() string {
	switch s {
	case UpToDate:
		return "uptodate"
	case NeedsChildrenUpdate:
		return "needs_children_update"
	case NeedsPageUpdate:
		return "needs_page_update"
	case CheckTree:
		return "check_tree"
	case CheckChildren:
		return "check_children"
	case CheckPage:
		return "check_page"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// PageRow mirrors one row of the pages table.
type PageRow struct {
	ID            int64
	Parent        int64
	Basename      string
	SortKey       string
	NeedsCheck    State
	NChildren     int
	ContentToken  string // "" when the page has no content
	ChildrenToken string // "" when the page has no children
	CTime         time.Time
	MTime         time.Time
}

// HasContent reports whether the store had content at the last check.
func (r PageRow) HasContent() bool { return r.ContentToken != "" }

// HasChildren reports whether the row has child rows.
func (r PageRow) HasChildren() bool { return r.NChildren > 0 }

const pageColumns = "id, parent, basename, sortkey, needscheck, n_children, content_etag, children_etag, ctime, mtime"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPageRow(s rowScanner) (PageRow, error) {
	var (
		row              PageRow
		content, kids    sql.NullString
		ctimeNs, mtimeNs int64
	)

	err := s.Scan(&row.ID, &row.Parent, &row.Basename, &row.SortKey, &row.NeedsCheck,
		&row.NChildren, &content, &kids, &ctimeNs, &mtimeNs)
	if err != nil {
		return PageRow{}, err
	}

	row.ContentToken = content.String
	row.ChildrenToken = kids.String
	row.CTime = time.Unix(0, ctimeNs)
	row.MTime = time.Unix(0, mtimeNs)

	return row, nil
}

func pageRowByID(ctx context.Context, q querier, id int64) (PageRow, error) {
	row, err := scanPageRow(q.QueryRowContext(ctx, "SELECT "+pageColumns+" FROM pages WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return PageRow{}, fmt.Errorf("page id %d: %w", id, ErrNotFound)
	}

	if err != nil {
		return PageRow{}, fmt.Errorf("sqlite: select page %d: %w", id, err)
	}

	return row, nil
}

func queryPageRows(ctx context.Context, q querier, query string, args ...any) ([]PageRow, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	defer func() { _ = rows.Close() }()

	var out []PageRow

	for rows.Next() {
		row, err := scanPageRow(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan page: %w", err)
		}

		out = append(out, row)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	return out, nil
}

// childRows returns the children of parentID in display order.
func childRows(ctx context.Context, q querier, parentID int64) ([]PageRow, error) {
	return queryPageRows(ctx, q,
		"SELECT "+pageColumns+" FROM pages WHERE parent = ? ORDER BY sortkey, basename", parentID)
}

// childByBasename looks up a direct child by exact basename.
func childByBasename(ctx context.Context, q querier, parentID int64, basename string) (int64, bool, error) {
	var id int64

	err := q.QueryRowContext(ctx,
		"SELECT id FROM pages WHERE parent = ? AND basename = ?", parentID, basename).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}

	if err != nil {
		return 0, false, fmt.Errorf("sqlite: select child: %w", err)
	}

	return id, true, nil
}

// childBySortKey looks up a direct child case-insensitively. An exact
// basename match wins over other names sharing the sort key; otherwise the
// oldest row wins.
func childBySortKey(ctx context.Context, q querier, parentID int64, name string) (int64, string, bool, error) {
	var (
		id       int64
		basename string
	)

	err := q.QueryRowContext(ctx, `
		SELECT id, basename FROM pages
		WHERE parent = ? AND sortkey = ?
		ORDER BY (basename = ?) DESC, id
		LIMIT 1`,
		parentID, SortKey(name), name,
	).Scan(&id, &basename)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", false, nil
	}

	if err != nil {
		return 0, "", false, fmt.Errorf("sqlite: select child by sortkey: %w", err)
	}

	return id, basename, true, nil
}

// lookupExisting walks p segment by segment with exact basenames and
// returns the IndexPath of the deepest existing prefix. The result is a
// placeholder when not every segment exists.
func lookupExisting(ctx context.Context, q querier, p Path) (IndexPath, error) {
	cur := rootIndexPath()
	for _, name := range p.Parts() {
		id, ok, err := childByBasename(ctx, q, cur.ID(), name)
		if err != nil {
			return IndexPath{}, err
		}

		if !ok {
			return IndexPath{Path: p, IDs: cur.IDs}, nil
		}

		cur = cur.ChildPath(name, id)
	}

	return cur, nil
}

// lookupPath is the exact-case lookup. It fails with [ErrNotFound] unless
// every segment has a row.
func lookupPath(ctx context.Context, q querier, p Path) (IndexPath, error) {
	ip, err := lookupExisting(ctx, q, p)
	if err != nil {
		return IndexPath{}, err
	}

	if !ip.Exists() {
		return IndexPath{}, fmt.Errorf("%s: %w", p, ErrNotFound)
	}

	return ip, nil
}

// lookupByID rebuilds the IndexPath of a row by walking its parents.
func lookupByID(ctx context.Context, q querier, id int64) (IndexPath, error) {
	var (
		names []string
		ids   []int64
	)

	for cur := id; cur != RootID; {
		var (
			parent   int64
			basename string
		)

		err := q.QueryRowContext(ctx, "SELECT parent, basename FROM pages WHERE id = ?", cur).Scan(&parent, &basename)
		if errors.Is(err, sql.ErrNoRows) {
			if cur == id {
				return IndexPath{}, fmt.Errorf("page id %d: %w", id, ErrNotFound)
			}

			return IndexPath{}, fmt.Errorf("%w: parent row %d of page id %d is missing", ErrConsistency, cur, id)
		}

		if err != nil {
			return IndexPath{}, fmt.Errorf("sqlite: select page %d: %w", cur, err)
		}

		if parent == 0 || parent >= cur {
			return IndexPath{}, fmt.Errorf("%w: row %d has parent %d", ErrConsistency, cur, parent)
		}

		names = append(names, basename)
		ids = append(ids, cur)
		cur = parent
	}

	ip := rootIndexPath()
	for i := len(names) - 1; i >= 0; i-- {
		ip = ip.ChildPath(names[i], ids[i])
	}

	return ip, nil
}

// resolveDown continues from anchor segment by segment, matching names
// case-insensitively. Once a segment has no row the remaining names are
// appended as written and the result is a placeholder.
func resolveDown(ctx context.Context, q querier, anchor IndexPath, names []string) (IndexPath, error) {
	cur := anchor

	for i, name := range names {
		if !cur.Exists() {
			p := cur.Path
			for _, rest := range names[i:] {
				p = p.Child(rest)
			}

			return IndexPath{Path: p, IDs: cur.IDs}, nil
		}

		id, basename, ok, err := childBySortKey(ctx, q, cur.ID(), name)
		if err != nil {
			return IndexPath{}, err
		}

		if !ok {
			cur = IndexPath{Path: cur.Child(name), IDs: cur.IDs}

			continue
		}

		cur = cur.ChildPath(basename, id)
	}

	return cur, nil
}

func countRows(ctx context.Context, q querier, query string, args ...any) (int, error) {
	var n int

	err := q.QueryRowContext(ctx, query, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: count: %w", err)
	}

	return n, nil
}
