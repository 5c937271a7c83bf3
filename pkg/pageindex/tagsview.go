package pageindex

import (
	"context"
	"errors"
	"fmt"
)

// Tag is a tag with the number of pages carrying it.
type Tag struct {
	ID    int64
	Name  string
	Count int
}

// TagsView answers questions about tags.
type TagsView struct {
	c *conn
}

const tagColumns = `
	SELECT tags.id, tags.name, count(tagsources.source)
	FROM tags LEFT JOIN tagsources ON tagsources.tag = tags.id`

// All returns every tag sorted by sort key.
func (v TagsView) All(ctx context.Context) ([]Tag, error) {
	var out []Tag

	err := v.c.read(ctx, func(q querier) error {
		var err error

		out, err = queryTags(ctx, q, tagColumns+" GROUP BY tags.id ORDER BY tags.sortkey, tags.name")

		return err
	})

	return out, err
}

// Of returns the tags of path sorted by sort key.
func (v TagsView) Of(ctx context.Context, path Path) ([]Tag, error) {
	var out []Tag

	err := v.c.read(ctx, func(q querier) error {
		page, err := lookupPath(ctx, q, path)
		if err != nil {
			return err
		}

		out, err = queryTags(ctx, q, tagColumns+`
			WHERE tags.id IN (SELECT tag FROM tagsources WHERE source = ?)
			GROUP BY tags.id ORDER BY tags.sortkey, tags.name`, page.ID())

		return err
	})

	return out, withContext(err, path.Name(), 0)
}

// Lookup finds a tag case-insensitively. Returns [ErrNotFound] when no
// tag matches.
func (v TagsView) Lookup(ctx context.Context, name string) (Tag, error) {
	var tag Tag

	err := v.c.read(ctx, func(q querier) error {
		tags, err := queryTags(ctx, q, tagColumns+`
			WHERE tags.sortkey = ?
			GROUP BY tags.id`, SortKey(name))
		if err != nil {
			return err
		}

		if len(tags) == 0 {
			return fmt.Errorf("tag %q: %w", name, ErrNotFound)
		}

		tag = tags[0]

		return nil
	})

	return tag, err
}

// Pages returns the pages carrying the tag, oldest row first. The name
// matches case-insensitively.
func (v TagsView) Pages(ctx context.Context, name string) ([]IndexPath, error) {
	var out []IndexPath

	err := v.c.read(ctx, func(q querier) error {
		rows, err := q.QueryContext(ctx, `
			SELECT tagsources.source FROM tagsources
			JOIN tags ON tags.id = tagsources.tag
			WHERE tags.sortkey = ?
			ORDER BY tagsources.source`, SortKey(name))
		if err != nil {
			return fmt.Errorf("sqlite: select tag sources: %w", err)
		}

		var ids []int64

		for rows.Next() {
			var id int64

			err = rows.Scan(&id)
			if err != nil {
				_ = rows.Close()

				return fmt.Errorf("sqlite: scan tag source: %w", err)
			}

			ids = append(ids, id)
		}

		err = errors.Join(rows.Err(), rows.Close())
		if err != nil {
			return fmt.Errorf("sqlite: select tag sources: %w", err)
		}

		for _, id := range ids {
			page, err := lookupByID(ctx, q, id)
			if err != nil {
				return err
			}

			out = append(out, page)
		}

		return nil
	})

	return out, err
}

func queryTags(ctx context.Context, q querier, query string, args ...any) ([]Tag, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: select tags: %w", err)
	}

	defer func() { _ = rows.Close() }()

	var out []Tag

	for rows.Next() {
		var t Tag

		err = rows.Scan(&t.ID, &t.Name, &t.Count)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan tag: %w", err)
		}

		out = append(out, t)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("sqlite: select tags: %w", err)
	}

	return out, nil
}
