package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/calvinalkan/pageindex/pkg/fs"
	"github.com/calvinalkan/pageindex/pkg/pageindex"
	"github.com/calvinalkan/pageindex/pkg/pagestore"
)

// app is what every command needs: the resolved configuration and the
// means to open the index on it.
type app struct {
	cfg   *Config
	log   *slog.Logger
	stdin io.Reader
	env   map[string]string

	// shared is set while the shell runs so that every line works on the
	// index the shell opened.
	shared *session
}

// session is an open index over the configured page directory.
type session struct {
	ix    *pageindex.Index
	store *pagestore.DirStore
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// open opens the index. reg may be nil.
func (a *app) open(ctx context.Context, reg prometheus.Registerer) (*session, error) {
	store, err := pagestore.NewDirStore(fs.NewReal(), a.cfg.PagesDirAbs)
	if err != nil {
		return nil, err
	}

	path := a.cfg.IndexAbs
	if path == MemoryIndex {
		path = ""
	}

	ix, err := pageindex.Open(ctx, pageindex.Config{
		Store:      store,
		Path:       path,
		Logger:     a.log,
		Registerer: reg,
	})
	if err != nil {
		if errors.Is(err, fs.ErrWouldBlock) {
			return nil, fmt.Errorf("index %s is in use by another process: %w", a.cfg.IndexAbs, err)
		}

		return nil, err
	}

	return &session{ix: ix, store: store}, nil
}

// withIndex runs fn on the shell's index, or on a freshly opened one that
// is closed afterwards. With sync set a fresh index is brought up to date
// first, which only reads pages whose change token moved.
func (a *app) withIndex(ctx context.Context, sync bool, fn func(s *session) error) error {
	if a.shared != nil {
		return fn(a.shared)
	}

	s, err := a.open(ctx, nil)
	if err != nil {
		return err
	}

	if sync {
		err = s.ix.Update(ctx, nil)
		if err != nil {
			return errors.Join(err, s.ix.Close())
		}
	}

	return errors.Join(fn(s), s.ix.Close())
}

// parsePath parses a page name given on the command line. ":" and ""
// name the root.
func parsePath(name string) (pageindex.Path, error) {
	if name == ":" {
		return pageindex.RootPath(), nil
	}

	return pageindex.NewPath(name)
}
