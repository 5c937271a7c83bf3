package pageindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// linksIndexer owns the links table. Links whose resolution may have
// changed are flagged with needscheck = 1 and re-resolved by the walker
// once the page queue is empty.
type linksIndexer struct{}

var linksTable = tableDef{
	name: "links",
	columns: []columnDef{
		{"source", "INTEGER NOT NULL"},
		{"target", "INTEGER"},
		{"rel", "INTEGER NOT NULL"},
		{"names", "TEXT NOT NULL"},
		{"sortkeys", "TEXT NOT NULL"},
		{"needscheck", "INTEGER NOT NULL DEFAULT 0"},
	},
	indexes: [][]string{
		{"source"},
		{"target"},
		{"needscheck"},
	},
}

func (linksIndexer) tables() []tableDef { return []tableDef{linksTable} }

// onNewPage flags every floating or dangling link that mentions the new
// basename, since it may now resolve to the new page.
func (linksIndexer) onNewPage(ctx context.Context, w *writeTx, page IndexPath) error {
	_, err := w.tx.ExecContext(ctx, `
		UPDATE links SET needscheck = 1
		WHERE needscheck = 0
		AND (target IS NULL OR rel = ?)
		AND instr(':' || sortkeys || ':', ':' || ? || ':') > 0`,
		RelFloating, SortKey(page.Basename()),
	)
	if err != nil {
		return fmt.Errorf("sqlite: flag links: %w", err)
	}

	return nil
}

func (linksIndexer) onIndexPage(ctx context.Context, w *writeTx, page IndexPath, parsed ParsedPage) error {
	_, err := w.tx.ExecContext(ctx, "DELETE FROM links WHERE source = ?", page.ID())
	if err != nil {
		return fmt.Errorf("sqlite: delete links: %w", err)
	}

	seen := make(map[string]bool, len(parsed.Links))

	for _, raw := range parsed.Links {
		href, err := ParseHRef(raw)
		if err != nil {
			// Not a page link (URL, file path, ...).
			continue
		}

		if seen[href.String()] {
			continue
		}

		seen[href.String()] = true

		target, err := resolveLink(ctx, w.tx, page.Path, href)
		if err != nil {
			return err
		}

		_, err = w.tx.ExecContext(ctx, `
			INSERT INTO links (source, target, rel, names, sortkeys, needscheck)
			VALUES (?, ?, ?, ?, ?, 0)`,
			page.ID(), nullID(target.ID()), href.Rel, href.joinedNames(), href.joinedSortKeys(),
		)
		if err != nil {
			return fmt.Errorf("sqlite: insert link: %w", err)
		}
	}

	return nil
}

// onDeletePage drops the page's own links and unresolves links pointing at
// it. Those get flagged, since another page may now match.
func (linksIndexer) onDeletePage(ctx context.Context, w *writeTx, page IndexPath) error {
	_, err := w.tx.ExecContext(ctx, "DELETE FROM links WHERE source = ?", page.ID())
	if err != nil {
		return fmt.Errorf("sqlite: delete links: %w", err)
	}

	_, err = w.tx.ExecContext(ctx,
		"UPDATE links SET target = NULL, needscheck = 1 WHERE target = ?", page.ID())
	if err != nil {
		return fmt.Errorf("sqlite: unresolve links: %w", err)
	}

	return nil
}

// recheck re-resolves up to limit flagged links and returns how many it
// processed.
func (linksIndexer) recheck(ctx context.Context, w *writeTx, limit int) (int, error) {
	type flagged struct {
		rowid  int64
		source int64
		href   HRef
	}

	rows, err := w.tx.QueryContext(ctx,
		"SELECT rowid, source, rel, names FROM links WHERE needscheck = 1 ORDER BY rowid LIMIT ?", limit)
	if err != nil {
		return 0, fmt.Errorf("sqlite: select flagged links: %w", err)
	}

	var batch []flagged

	for rows.Next() {
		var (
			f     flagged
			rel   Relation
			names string
		)

		err = rows.Scan(&f.rowid, &f.source, &rel, &names)
		if err != nil {
			_ = rows.Close()

			return 0, fmt.Errorf("sqlite: scan link: %w", err)
		}

		f.href = hrefFromRow(rel, names)
		batch = append(batch, f)
	}

	err = errors.Join(rows.Err(), rows.Close())
	if err != nil {
		return 0, fmt.Errorf("sqlite: select flagged links: %w", err)
	}

	for _, f := range batch {
		source, err := lookupByID(ctx, w.tx, f.source)
		if err != nil {
			return 0, err
		}

		target, err := resolveLink(ctx, w.tx, source.Path, f.href)
		if err != nil {
			return 0, err
		}

		_, err = w.tx.ExecContext(ctx,
			"UPDATE links SET target = ?, needscheck = 0 WHERE rowid = ?", nullID(target.ID()), f.rowid)
		if err != nil {
			return 0, fmt.Errorf("sqlite: update link: %w", err)
		}
	}

	return len(batch), nil
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}
