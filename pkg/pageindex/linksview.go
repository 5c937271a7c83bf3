package pageindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Direction selects which links of a page to list.
type Direction int

const (
	// Forward lists links written on the page.
	Forward Direction = iota + 1
	// Backward lists links pointing at the page.
	Backward
	// Both lists forward and backward links.
	Both
)

// Link is one row of the links table with both ends resolved.
type Link struct {
	Source IndexPath

	// Target is a placeholder when the link does not resolve to a row.
	Target IndexPath

	HRef HRef
}

// LinksView answers questions about links between pages.
type LinksView struct {
	c *conn
}

type linkRow struct {
	source int64
	target sql.NullInt64
	href   HRef
}

// List returns the links of path in the given direction, forward links
// first.
func (v LinksView) List(ctx context.Context, path Path, dir Direction) ([]Link, error) {
	var out []Link

	err := v.c.read(ctx, func(q querier) error {
		page, err := lookupPath(ctx, q, path)
		if err != nil {
			return err
		}

		var rows []linkRow

		if dir == Forward || dir == Both {
			fwd, err := queryLinkRows(ctx, q, "WHERE source = ? ORDER BY rowid", page.ID())
			if err != nil {
				return err
			}

			rows = append(rows, fwd...)
		}

		if dir == Backward || dir == Both {
			back, err := queryLinkRows(ctx, q, "WHERE target = ? ORDER BY source, rowid", page.ID())
			if err != nil {
				return err
			}

			rows = append(rows, back...)
		}

		out, err = resolveLinkRows(ctx, q, rows)

		return err
	})

	return out, withContext(err, path.Name(), 0)
}

// Count returns the number of links of path in the given direction.
func (v LinksView) Count(ctx context.Context, path Path, dir Direction) (int, error) {
	var n int

	err := v.c.read(ctx, func(q querier) error {
		page, err := lookupPath(ctx, q, path)
		if err != nil {
			return err
		}

		switch dir {
		case Forward:
			n, err = countRows(ctx, q, "SELECT count(*) FROM links WHERE source = ?", page.ID())
		case Backward:
			n, err = countRows(ctx, q, "SELECT count(*) FROM links WHERE target = ?", page.ID())
		default:
			n, err = countRows(ctx, q,
				"SELECT count(*) FROM links WHERE source = ? OR target = ?", page.ID(), page.ID())
		}

		return err
	})

	return n, withContext(err, path.Name(), 0)
}

// Unresolved returns every link whose target has no row.
func (v LinksView) Unresolved(ctx context.Context) ([]Link, error) {
	var out []Link

	err := v.c.read(ctx, func(q querier) error {
		rows, err := queryLinkRows(ctx, q, "WHERE target IS NULL ORDER BY source, rowid")
		if err != nil {
			return err
		}

		out, err = resolveLinkRows(ctx, q, rows)

		return err
	})

	return out, err
}

func queryLinkRows(ctx context.Context, q querier, where string, args ...any) ([]linkRow, error) {
	rows, err := q.QueryContext(ctx, "SELECT source, target, rel, names FROM links "+where, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: select links: %w", err)
	}

	var out []linkRow

	for rows.Next() {
		var (
			r     linkRow
			rel   Relation
			names string
		)

		err = rows.Scan(&r.source, &r.target, &rel, &names)
		if err != nil {
			_ = rows.Close()

			return nil, fmt.Errorf("sqlite: scan link: %w", err)
		}

		r.href = hrefFromRow(rel, names)
		out = append(out, r)
	}

	err = errors.Join(rows.Err(), rows.Close())
	if err != nil {
		return nil, fmt.Errorf("sqlite: select links: %w", err)
	}

	return out, nil
}

func resolveLinkRows(ctx context.Context, q querier, rows []linkRow) ([]Link, error) {
	out := make([]Link, 0, len(rows))

	for _, r := range rows {
		source, err := lookupByID(ctx, q, r.source)
		if err != nil {
			return nil, err
		}

		var target IndexPath

		if r.target.Valid {
			target, err = lookupByID(ctx, q, r.target.Int64)
		} else {
			target, err = resolveLink(ctx, q, source.Path, r.href)
		}

		if err != nil {
			return nil, err
		}

		out = append(out, Link{Source: source, Target: target, HRef: r.href})
	}

	return out, nil
}
