package pageindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PageInfo is a page row as seen by readers.
type PageInfo struct {
	IndexPath

	HasContent bool
	NChildren  int
	NeedsCheck State
	CTime      time.Time
	MTime      time.Time
}

// HasChildren reports whether the page has child rows.
func (p PageInfo) HasChildren() bool { return p.NChildren > 0 }

func pageInfo(page IndexPath, row PageRow) PageInfo {
	return PageInfo{
		IndexPath:  page,
		HasContent: row.HasContent(),
		NChildren:  row.NChildren,
		NeedsCheck: row.NeedsCheck,
		CTime:      row.CTime,
		MTime:      row.MTime,
	}
}

// PagesView answers questions about pages: lookups by name and id, link
// resolution and navigation in display order. Display order is depth
// first with siblings sorted by sort key.
type PagesView struct {
	c *conn
}

// Lookup finds the row for path by exact name. Returns [ErrNotFound] when
// any segment has no row.
func (v PagesView) Lookup(ctx context.Context, path Path) (IndexPath, error) {
	var page IndexPath

	err := v.c.read(ctx, func(q querier) error {
		var err error

		page, err = lookupPath(ctx, q, path)

		return err
	})

	return page, withContext(err, path.Name(), 0)
}

// LookupByID finds the row with the given id.
func (v PagesView) LookupByID(ctx context.Context, id int64) (IndexPath, error) {
	var page IndexPath

	err := v.c.read(ctx, func(q querier) error {
		var err error

		page, err = lookupByID(ctx, q, id)

		return err
	})

	return page, withContext(err, "", id)
}

// LookupFromUserInput resolves a name typed by a user.
//
// Without a reference the name resolves from the root. With a reference it
// resolves like a link written on that page, so "+Child" and floating names
// work as they would in page content. Matching is case-insensitive and an
// unmatched suffix yields a placeholder that keeps the existing case for the
// matched prefix: with "Foo:Bar" indexed, "foo:baz" gives "Foo:baz".
func (v PagesView) LookupFromUserInput(ctx context.Context, name string, reference *Path) (IndexPath, error) {
	href, err := ParseHRef(name)
	if err != nil {
		return IndexPath{}, err
	}

	if reference == nil {
		if href.Rel == RelRelative {
			return IndexPath{}, fmt.Errorf("%w: %q is relative but no reference page was given", ErrInvalidLink, name)
		}

		href.Rel = RelAbsolute
		reference = &Path{}
	}

	return v.ResolveLink(ctx, *reference, href)
}

// ResolveLink resolves href as written on page source. The result is a
// placeholder when the target has no row. source itself does not need a
// row.
func (v PagesView) ResolveLink(ctx context.Context, source Path, href HRef) (IndexPath, error) {
	if len(href.Names) == 0 {
		return IndexPath{}, fmt.Errorf("%w: empty link", ErrInvalidLink)
	}

	var page IndexPath

	err := v.c.read(ctx, func(q querier) error {
		var err error

		page, err = resolveLink(ctx, q, source, href)

		return err
	})

	return page, withContext(err, source.Name(), 0)
}

// CreateLink returns the shortest link that, written on source, resolves
// to target: relative for pages below source, floating when that resolves
// correctly, absolute otherwise.
func (v PagesView) CreateLink(ctx context.Context, source, target Path) (HRef, error) {
	var href HRef

	err := v.c.read(ctx, func(q querier) error {
		var err error

		href, err = createLink(ctx, q, source, target)

		return err
	})

	return href, withContext(err, source.Name(), 0)
}

// Page returns the row of path.
func (v PagesView) Page(ctx context.Context, path Path) (PageInfo, error) {
	var info PageInfo

	err := v.c.read(ctx, func(q querier) error {
		page, err := lookupPath(ctx, q, path)
		if err != nil {
			return err
		}

		row, err := pageRowByID(ctx, q, page.ID())
		if err != nil {
			return err
		}

		info = pageInfo(page, row)

		return nil
	})

	return info, withContext(err, path.Name(), 0)
}

// Children returns the direct children of path in display order.
func (v PagesView) Children(ctx context.Context, path Path) ([]PageInfo, error) {
	var out []PageInfo

	err := v.c.read(ctx, func(q querier) error {
		parent, err := lookupPath(ctx, q, path)
		if err != nil {
			return err
		}

		rows, err := childRows(ctx, q, parent.ID())
		if err != nil {
			return err
		}

		out = make([]PageInfo, 0, len(rows))
		for _, row := range rows {
			out = append(out, pageInfo(parent.ChildPath(row.Basename, row.ID), row))
		}

		return nil
	})

	return out, withContext(err, path.Name(), 0)
}

// Walk returns every page below path in display order. path itself is not
// included.
func (v PagesView) Walk(ctx context.Context, path Path) ([]PageInfo, error) {
	var out []PageInfo

	err := v.c.read(ctx, func(q querier) error {
		parent, err := lookupPath(ctx, q, path)
		if err != nil {
			return err
		}

		return walkRows(ctx, q, parent, func(info PageInfo) {
			out = append(out, info)
		})
	})

	return out, withContext(err, path.Name(), 0)
}

func walkRows(ctx context.Context, q querier, parent IndexPath, visit func(PageInfo)) error {
	rows, err := childRows(ctx, q, parent.ID())
	if err != nil {
		return err
	}

	for _, row := range rows {
		page := parent.ChildPath(row.Basename, row.ID)
		visit(pageInfo(page, row))

		if row.NChildren == 0 {
			continue
		}

		err = walkRows(ctx, q, page, visit)
		if err != nil {
			return err
		}
	}

	return nil
}

// Next returns the page after path in display order. ok is false at the
// end of the tree.
func (v PagesView) Next(ctx context.Context, path Path) (next IndexPath, ok bool, err error) {
	err = v.c.read(ctx, func(q querier) error {
		page, err := lookupPath(ctx, q, path)
		if err != nil {
			return err
		}

		next, ok, err = nextPage(ctx, q, page)

		return err
	})

	return next, ok, withContext(err, path.Name(), 0)
}

// Previous returns the page before path in display order. ok is false for
// the first page.
func (v PagesView) Previous(ctx context.Context, path Path) (prev IndexPath, ok bool, err error) {
	err = v.c.read(ctx, func(q querier) error {
		page, err := lookupPath(ctx, q, path)
		if err != nil {
			return err
		}

		prev, ok, err = previousPage(ctx, q, page)

		return err
	})

	return prev, ok, withContext(err, path.Name(), 0)
}

func nextPage(ctx context.Context, q querier, page IndexPath) (IndexPath, bool, error) {
	first, ok, err := edgeChild(ctx, q, page.ID(), false)
	if err != nil {
		return IndexPath{}, false, err
	}

	if ok {
		return page.ChildPath(first.Basename, first.ID), true, nil
	}

	for cur := page; !cur.IsRoot(); cur = cur.ParentPath() {
		sib, ok, err := sibling(ctx, q, cur, true)
		if err != nil {
			return IndexPath{}, false, err
		}

		if ok {
			return sib, true, nil
		}
	}

	return IndexPath{}, false, nil
}

func previousPage(ctx context.Context, q querier, page IndexPath) (IndexPath, bool, error) {
	if page.IsRoot() {
		return IndexPath{}, false, nil
	}

	prev, ok, err := sibling(ctx, q, page, false)
	if err != nil {
		return IndexPath{}, false, err
	}

	if !ok {
		parent := page.ParentPath()

		return parent, !parent.IsRoot(), nil
	}

	// Deepest last descendant of the previous sibling.
	for {
		last, ok, err := edgeChild(ctx, q, prev.ID(), true)
		if err != nil {
			return IndexPath{}, false, err
		}

		if !ok {
			return prev, true, nil
		}

		prev = prev.ChildPath(last.Basename, last.ID)
	}
}

// edgeChild returns the first (or last) child of parentID in display order.
func edgeChild(ctx context.Context, q querier, parentID int64, last bool) (PageRow, bool, error) {
	order := "sortkey, basename"
	if last {
		order = "sortkey DESC, basename DESC"
	}

	row, err := scanPageRow(q.QueryRowContext(ctx,
		"SELECT "+pageColumns+" FROM pages WHERE parent = ? ORDER BY "+order+" LIMIT 1", parentID))
	if errors.Is(err, sql.ErrNoRows) {
		return PageRow{}, false, nil
	}

	if err != nil {
		return PageRow{}, false, fmt.Errorf("sqlite: select child: %w", err)
	}

	return row, true, nil
}

// sibling returns the sibling right after (or before) page.
func sibling(ctx context.Context, q querier, page IndexPath, after bool) (IndexPath, bool, error) {
	basename := page.Basename()
	key := SortKey(basename)

	query := `
		SELECT id, basename FROM pages
		WHERE parent = ? AND (sortkey > ? OR (sortkey = ? AND basename > ?))
		ORDER BY sortkey, basename LIMIT 1`
	if !after {
		query = `
		SELECT id, basename FROM pages
		WHERE parent = ? AND (sortkey < ? OR (sortkey = ? AND basename < ?))
		ORDER BY sortkey DESC, basename DESC LIMIT 1`
	}

	var (
		id   int64
		name string
	)

	parent := page.ParentPath()

	err := q.QueryRowContext(ctx, query, parent.ID(), key, key, basename).Scan(&id, &name)
	if errors.Is(err, sql.ErrNoRows) {
		return IndexPath{}, false, nil
	}

	if err != nil {
		return IndexPath{}, false, fmt.Errorf("sqlite: select sibling: %w", err)
	}

	return parent.ChildPath(name, id), true, nil
}

// Recent returns up to limit pages with content, most recently indexed
// first.
func (v PagesView) Recent(ctx context.Context, limit int) ([]PageInfo, error) {
	var out []PageInfo

	err := v.c.read(ctx, func(q querier) error {
		rows, err := queryPageRows(ctx, q,
			"SELECT "+pageColumns+" FROM pages WHERE content_etag IS NOT NULL ORDER BY mtime DESC, id DESC LIMIT ?", limit)
		if err != nil {
			return err
		}

		for _, row := range rows {
			page, err := lookupByID(ctx, q, row.ID)
			if err != nil {
				return err
			}

			out = append(out, pageInfo(page, row))
		}

		return nil
	})

	return out, err
}

// Count returns the number of pages, not counting the root.
func (v PagesView) Count(ctx context.Context) (int, error) {
	var n int

	err := v.c.read(ctx, func(q querier) error {
		var err error

		n, err = countRows(ctx, q, "SELECT count(*) FROM pages WHERE id != ?", RootID)

		return err
	})

	return n, err
}

// Queued returns the number of rows with a pending needs-check state.
func (v PagesView) Queued(ctx context.Context) (int, error) {
	var n int

	err := v.c.read(ctx, func(q querier) error {
		var err error

		n, err = queueLength(ctx, q)

		return err
	})

	return n, err
}
