package pageindex

import (
	"context"
	"fmt"
	"strings"
)

// tagsIndexer owns the tags and tagsources tables. Tags are unique by sort
// key; the first spelling seen names the tag.
type tagsIndexer struct{}

var (
	tagsTable = tableDef{
		name: "tags",
		columns: []columnDef{
			{"id", "INTEGER PRIMARY KEY"},
			{"name", "TEXT NOT NULL"},
			{"sortkey", "TEXT NOT NULL UNIQUE"},
		},
	}
	tagSourcesTable = tableDef{
		name: "tagsources",
		columns: []columnDef{
			{"source", "INTEGER NOT NULL"},
			{"tag", "INTEGER NOT NULL"},
		},
		constraints: []string{"UNIQUE (source, tag)"},
		indexes:     [][]string{{"tag"}},
	}
)

func (tagsIndexer) tables() []tableDef { return []tableDef{tagsTable, tagSourcesTable} }

func (tagsIndexer) onNewPage(context.Context, *writeTx, IndexPath) error { return nil }

func (t tagsIndexer) onIndexPage(ctx context.Context, w *writeTx, page IndexPath, parsed ParsedPage) error {
	_, err := w.tx.ExecContext(ctx, "DELETE FROM tagsources WHERE source = ?", page.ID())
	if err != nil {
		return fmt.Errorf("sqlite: delete tag sources: %w", err)
	}

	for _, name := range parsed.Tags {
		name = strings.TrimPrefix(strings.TrimSpace(name), "@")
		if name == "" {
			continue
		}

		key := SortKey(name)

		_, err = w.tx.ExecContext(ctx,
			"INSERT INTO tags (name, sortkey) VALUES (?, ?) ON CONFLICT (sortkey) DO NOTHING", name, key)
		if err != nil {
			return fmt.Errorf("sqlite: insert tag: %w", err)
		}

		_, err = w.tx.ExecContext(ctx, `
			INSERT INTO tagsources (source, tag)
			SELECT ?, id FROM tags WHERE sortkey = ?
			ON CONFLICT (source, tag) DO NOTHING`,
			page.ID(), key,
		)
		if err != nil {
			return fmt.Errorf("sqlite: insert tag source: %w", err)
		}
	}

	return t.dropOrphans(ctx, w)
}

func (t tagsIndexer) onDeletePage(ctx context.Context, w *writeTx, page IndexPath) error {
	_, err := w.tx.ExecContext(ctx, "DELETE FROM tagsources WHERE source = ?", page.ID())
	if err != nil {
		return fmt.Errorf("sqlite: delete tag sources: %w", err)
	}

	return t.dropOrphans(ctx, w)
}

func (tagsIndexer) dropOrphans(ctx context.Context, w *writeTx) error {
	_, err := w.tx.ExecContext(ctx,
		"DELETE FROM tags WHERE NOT EXISTS (SELECT 1 FROM tagsources WHERE tagsources.tag = tags.id)")
	if err != nil {
		return fmt.Errorf("sqlite: drop orphan tags: %w", err)
	}

	return nil
}
