package pageindex

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"sync/atomic"
)

// Update walks the queue until no row or link needs checking. With a nil
// path the whole tree is queued first, otherwise the subtree at path (or
// its nearest existing ancestor).
//
// Each row is committed on its own, so a cancelled Update leaves a
// consistent index behind; the remaining rows stay queued.
func (ix *Index) Update(ctx context.Context, path *Path) error {
	for _, err := range ix.UpdateIter(ctx, path) {
		if err != nil {
			return err
		}
	}

	return nil
}

// UpdateIter is the streaming form of [Index.Update]. It yields one
// [Progress] per walker step and stops after the first error, which is
// yielded as well. Breaking out of the loop stops the walk between rows.
func (ix *Index) UpdateIter(ctx context.Context, path *Path) iter.Seq2[Progress, error] {
	return func(yield func(Progress, error) bool) {
		target := RootPath()
		if path != nil {
			target = *path
		}

		err := ix.CheckTree(ctx, target)
		if err != nil {
			yield(Progress{}, err)

			return
		}

		for {
			err = ctx.Err()
			if err != nil {
				yield(Progress{}, err)

				return
			}

			prog, done, err := ix.processOne(ctx)
			if err != nil {
				yield(prog, err)

				return
			}

			if done {
				return
			}

			if !yield(prog, nil) {
				return
			}
		}
	}
}

// worker is one run of the background walker.
type worker struct {
	stop atomic.Bool
	done chan struct{}
	err  error // set before done is closed
}

// StartBackgroundUpdate starts a goroutine that drains the queue one row at
// a time and exits when it is empty, when ctx is done, or when
// [Index.StopBackgroundUpdate] is called. It does not queue anything
// itself; call [Index.CheckTree] first for a full walk. Starting while a
// worker is running is a no-op.
func (ix *Index) StartBackgroundUpdate(ctx context.Context) {
	ix.bgMu.Lock()
	defer ix.bgMu.Unlock()

	if ix.bg != nil {
		select {
		case <-ix.bg.done:
		default:
			return
		}
	}

	w := &worker{done: make(chan struct{})}
	ix.bg = w

	go func() {
		defer close(w.done)

		ix.log.Debug("page index: background update started")

		for !w.stop.Load() {
			_, done, err := ix.processOne(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) && !errors.Is(err, ErrClosed) {
					ix.log.Error("page index: background update failed", slog.String("error", err.Error()))
				}

				w.err = err

				break
			}

			if done {
				break
			}
		}

		ix.log.Debug("page index: background update stopped", slog.Bool("stopped", w.stop.Load()))
	}()
}

// StopBackgroundUpdate asks the worker to stop after the row it is
// processing and waits for it to exit. The index is quiescent afterwards.
func (ix *Index) StopBackgroundUpdate() {
	ix.bgMu.Lock()
	w := ix.bg
	ix.bgMu.Unlock()

	if w == nil {
		return
	}

	w.stop.Store(true)
	<-w.done
}

// WaitForUpdate blocks until the background worker exited and returns the
// error it stopped with, if any. It returns ctx's error when ctx is done
// first. Returns nil when no worker was started.
func (ix *Index) WaitForUpdate(ctx context.Context) error {
	ix.bgMu.Lock()
	w := ix.bg
	ix.bgMu.Unlock()

	if w == nil {
		return nil
	}

	select {
	case <-w.done:
		return w.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsUpdating reports whether a background worker is running.
func (ix *Index) IsUpdating() bool {
	ix.bgMu.Lock()
	defer ix.bgMu.Unlock()

	if ix.bg == nil {
		return false
	}

	select {
	case <-ix.bg.done:
		return false
	default:
		return true
	}
}
