package pageindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// conn owns the database handle and the two-lock discipline.
//
// The state lock guards what readers may see. The change lock serializes
// writers. In the memory strategy both are the same RWMutex because there
// is only one connection and changes are visible as soon as they are made.
// In the file strategy every transaction has its own connection, so a writer
// only needs the state lock for the commit itself.
type conn struct {
	db     *sql.DB
	state  *sync.RWMutex
	change sync.Locker
	closed atomic.Bool

	// notify receives queued events after the outermost commit.
	notify func([]event)
}

func newMemoryConn(db *sql.DB, notify func([]event)) *conn {
	mu := &sync.RWMutex{}

	return &conn{db: db, state: mu, change: mu, notify: notify}
}

func newFileConn(db *sql.DB, notify func([]event)) *conn {
	return &conn{db: db, state: &sync.RWMutex{}, change: &sync.Mutex{}, notify: notify}
}

func (c *conn) sharedLocks() bool {
	l, ok := c.change.(*sync.RWMutex)

	return ok && l == c.state
}

// writeTx is the open write transaction of one outermost write call.
type writeTx struct {
	tx     *sql.Tx
	depth  int
	events []event
}

func (w *writeTx) emit(e event) { w.events = append(w.events, e) }

// txKey scopes the transaction in a context to its conn, so a context
// handed from one index to another never joins the wrong transaction.
type txKey struct{ c *conn }

func (c *conn) txFrom(ctx context.Context) *writeTx {
	w, _ := ctx.Value(txKey{c}).(*writeTx)

	return w
}

// read runs fn under the shared state lock. When ctx carries this conn's
// open write transaction, fn runs inside it without taking any lock so the
// writer sees its own changes.
func (c *conn) read(ctx context.Context, fn func(q querier) error) error {
	if w := c.txFrom(ctx); w != nil {
		return fn(w.tx)
	}

	c.state.RLock()
	defer c.state.RUnlock()

	if c.closed.Load() {
		return ErrClosed
	}

	return fn(c.db)
}

// write runs fn in a write transaction.
//
// Nested calls with a context derived from the one passed to fn join the
// open transaction. The outermost call commits when fn returns nil and rolls
// back otherwise; queued events are delivered only after a successful
// commit, once every lock is released.
func (c *conn) write(ctx context.Context, fn func(ctx context.Context, w *writeTx) error) error {
	if w := c.txFrom(ctx); w != nil {
		w.depth++
		defer func() { w.depth-- }()

		return fn(ctx, w)
	}

	events, err := c.writeOutermost(ctx, fn)
	if err != nil {
		return err
	}

	if c.notify != nil {
		c.notify(events)
	}

	return nil
}

func (c *conn) writeOutermost(ctx context.Context, fn func(ctx context.Context, w *writeTx) error) ([]event, error) {
	c.change.Lock()
	defer c.change.Unlock()

	if c.closed.Load() {
		return nil, ErrClosed
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin: %w", err)
	}

	w := &writeTx{tx: tx, depth: 1}

	err = fn(context.WithValue(ctx, txKey{c}, w), w)
	if err != nil {
		rollbackErr := tx.Rollback()
		if rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			return nil, errors.Join(err, fmt.Errorf("sqlite: rollback: %w", rollbackErr))
		}

		return nil, err
	}

	if !c.sharedLocks() {
		c.state.Lock()
		defer c.state.Unlock()
	}

	err = tx.Commit()
	if err != nil {
		return nil, fmt.Errorf("sqlite: commit: %w", err)
	}

	return w.events, nil
}

// close waits for readers and writers, then closes the database.
func (c *conn) close() error {
	c.change.Lock()
	defer c.change.Unlock()

	if !c.sharedLocks() {
		c.state.Lock()
		defer c.state.Unlock()
	}

	if c.closed.Swap(true) {
		return nil
	}

	err := c.db.Close()
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}

	return nil
}
