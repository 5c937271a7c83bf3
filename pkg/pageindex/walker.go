package pageindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Progress describes one walker step.
type Progress struct {
	// Page is the processed page. Zero for link steps.
	Page IndexPath

	// State is the state the row had when it was picked.
	State State

	// Links is the number of flagged links re-resolved in this step.
	Links int

	// Failed is set when processing the row failed and the row was marked
	// up to date to keep the walk going.
	Failed bool

	// Remaining is the number of rows still queued after this step.
	Remaining int
}

// processOne runs one walker step in its own write transaction. It reports
// done when neither rows nor links are queued.
func (ix *Index) processOne(ctx context.Context) (Progress, bool, error) {
	start := time.Now()

	var (
		prog Progress
		done bool
		id   int64
	)

	err := ix.conn.write(ctx, func(ctx context.Context, w *writeTx) error {
		row, ok, err := nextQueued(ctx, w.tx)
		if err != nil {
			return err
		}

		if !ok {
			n, err := ix.links.recheck(ctx, w, ix.linkBatchSize)
			if err != nil {
				return err
			}

			prog.Links = n
			ix.metrics.linksResolved.Add(float64(n))

			if n > 0 {
				return nil
			}

			done = true

			return setProperty(ctx, w.tx, propProbablyUpToDate, "true")
		}

		id = row.ID
		prog.State = row.NeedsCheck

		page, err := lookupByID(ctx, w.tx, row.ID)
		if err != nil {
			return failRow(row.ID, err)
		}

		prog.Page = page

		err = ix.dispatch(ctx, w, page, row)
		if err != nil {
			return err
		}

		prog.Remaining, err = queueLength(ctx, w.tx)

		return err
	})

	var failure *rowFailure

	switch {
	case err == nil || ctx.Err() != nil:
		// Nothing to isolate.
	case errors.As(err, &failure):
		// Store or parse failure of this row.
	case errors.Is(err, ErrConsistency) && id != 0:
		ix.log.Error("page index: consistency error", slog.Int64("page_id", id), slog.String("error", err.Error()))

		failure = &rowFailure{id: id, err: err}
	}

	if failure != nil {
		ix.log.Warn("page index: skipping page after failure",
			slog.String("page", prog.Page.String()),
			slog.Int64("page_id", failure.id),
			slog.String("state", prog.State.String()),
			slog.String("error", failure.err.Error()),
		)
		ix.metrics.failures.Inc()

		err = ix.conn.write(ctx, func(ctx context.Context, w *writeTx) error {
			err := setState(ctx, w.tx, failure.id, UpToDate)
			if err != nil {
				return err
			}

			prog.Remaining, err = queueLength(ctx, w.tx)

			return err
		})
		prog.Failed = true
	}

	if err != nil {
		return prog, false, withContext(err, prog.Page.Name(), id)
	}

	if !done && id != 0 {
		ix.metrics.rowsProcessed.WithLabelValues(prog.State.String()).Inc()
	}

	ix.metrics.queueLength.Set(float64(prog.Remaining))
	ix.metrics.stepDuration.Observe(time.Since(start).Seconds())

	return prog, done, nil
}

func nextQueued(ctx context.Context, q querier) (PageRow, bool, error) {
	row, err := scanPageRow(q.QueryRowContext(ctx,
		"SELECT "+pageColumns+" FROM pages WHERE needscheck > 0 ORDER BY needscheck, id LIMIT 1"))
	if errors.Is(err, sql.ErrNoRows) {
		return PageRow{}, false, nil
	}

	if err != nil {
		return PageRow{}, false, fmt.Errorf("sqlite: select next row: %w", err)
	}

	return row, true, nil
}

func queueLength(ctx context.Context, q querier) (int, error) {
	return countRows(ctx, q, "SELECT count(*) FROM pages WHERE needscheck > 0")
}

// dispatch handles one row by state and downgrades it afterwards.
func (ix *Index) dispatch(ctx context.Context, w *writeTx, page IndexPath, row PageRow) error {
	switch row.NeedsCheck {
	case CheckPage:
		err := ix.refreshContent(ctx, w, page, row)
		if err != nil {
			return err
		}

		token, err := ix.store.ChildrenToken(ctx, page.Path)
		if err != nil {
			return failRow(row.ID, fmt.Errorf("store: children token: %w", err))
		}

		if token != row.ChildrenToken {
			// Children changed as well: continue as CheckChildren on the
			// same row within this step.
			err = ix.updateChildren(ctx, w, page, row, false)
			if err != nil {
				return err
			}
		}

		return setState(ctx, w.tx, row.ID, UpToDate)

	case CheckChildren, NeedsChildrenUpdate:
		err := ix.updateChildren(ctx, w, page, row, false)
		if err != nil {
			return err
		}

		return setState(ctx, w.tx, row.ID, UpToDate)

	case CheckTree:
		err := ix.updateChildren(ctx, w, page, row, true)
		if err != nil {
			return err
		}

		return setState(ctx, w.tx, row.ID, NeedsPageUpdate)

	case NeedsPageUpdate:
		err := ix.refreshContent(ctx, w, page, row)
		if err != nil {
			return err
		}

		return setState(ctx, w.tx, row.ID, UpToDate)

	default:
		return failRow(row.ID, fmt.Errorf("%w: unknown needscheck state %d", ErrConsistency, row.NeedsCheck))
	}
}

// refreshContent compares the content token and re-indexes the page when
// it differs. Content is only read when the token changed.
func (ix *Index) refreshContent(ctx context.Context, w *writeTx, page IndexPath, row PageRow) error {
	token, err := ix.store.ContentToken(ctx, page.Path)
	if err != nil {
		return failRow(row.ID, fmt.Errorf("store: content token: %w", err))
	}

	if token == row.ContentToken {
		return nil
	}

	var parsed ParsedPage

	if token != "" {
		content, ok, err := ix.store.Content(ctx, page.Path)
		if err != nil {
			return failRow(row.ID, fmt.Errorf("store: content: %w", err))
		}

		if ok {
			parsed, err = ix.parse(content)
			if err != nil {
				return failRow(row.ID, fmt.Errorf("parse: %w", err))
			}
		}
	}

	for _, idx := range ix.indexers {
		err = idx.onIndexPage(ctx, w, page, parsed)
		if err != nil {
			return err
		}
	}

	_, err = w.tx.ExecContext(ctx, "UPDATE pages SET content_etag = ? WHERE id = ?", nullString(token), row.ID)
	if err != nil {
		return fmt.Errorf("sqlite: update content token: %w", err)
	}

	ix.metrics.pagesIndexed.Inc()

	return nil
}

// updateChildren syncs the child rows of page with the store listing when
// the children token changed. With tree set, every child is queued again:
// children that have children of their own as CheckTree, the rest as
// CheckPage, so the whole subtree is verified even when this page's token
// did not move.
func (ix *Index) updateChildren(ctx context.Context, w *writeTx, page IndexPath, row PageRow, tree bool) error {
	token, err := ix.store.ChildrenToken(ctx, page.Path)
	if err != nil {
		return failRow(row.ID, fmt.Errorf("store: children token: %w", err))
	}

	if token != row.ChildrenToken {
		err = ix.syncChildren(ctx, w, page, row.ID, token)
		if err != nil {
			return err
		}
	}

	if !tree {
		return nil
	}

	_, err = w.tx.ExecContext(ctx, `
		UPDATE pages SET needscheck = CASE
			WHEN n_children > 0 OR children_etag IS NOT NULL THEN ?
			WHEN needscheck = ? THEN ?
			ELSE ?
		END
		WHERE parent = ?`,
		CheckTree, CheckTree, CheckTree, CheckPage, row.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: queue children: %w", err)
	}

	return nil
}

// syncChildren diffs the store listing against the child rows, inserting
// new names and deleting vanished ones, and stores the new token last.
func (ix *Index) syncChildren(ctx context.Context, w *writeTx, page IndexPath, id int64, token string) error {
	var names []string

	if token != "" {
		var err error

		names, err = ix.store.ListChildren(ctx, page.Path)
		if err != nil {
			return failRow(id, fmt.Errorf("store: list children: %w", err))
		}
	}

	existing, err := childRows(ctx, w.tx, id)
	if err != nil {
		return err
	}

	want := make(map[string]bool, len(names))

	for _, name := range names {
		if !isCleanBasename(name) {
			ix.log.Warn("page index: ignoring invalid page name",
				slog.String("page", page.String()), slog.String("name", name))

			continue
		}

		want[name] = true
	}

	have := make(map[string]bool, len(existing))

	for _, child := range existing {
		have[child.Basename] = true

		if want[child.Basename] {
			continue
		}

		err = ix.deletePage(ctx, w, page.ChildPath(child.Basename, child.ID))
		if err != nil {
			return err
		}
	}

	for _, name := range names {
		if !want[name] || have[name] {
			continue
		}

		have[name] = true
		child := page.Child(name)

		childToken, err := ix.store.ChildrenToken(ctx, child)
		if err != nil {
			return failRow(id, fmt.Errorf("store: children token of %s: %w", child, err))
		}

		state := CheckPage
		if childToken != "" {
			state = CheckTree
		}

		_, err = ix.insertPage(ctx, w, page, name, state)
		if err != nil {
			return err
		}
	}

	_, err = w.tx.ExecContext(ctx, "UPDATE pages SET children_etag = ? WHERE id = ?", nullString(token), id)
	if err != nil {
		return fmt.Errorf("sqlite: update children token: %w", err)
	}

	return nil
}
