package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/calvinalkan/pageindex/pkg/pageindex"

	flag "github.com/spf13/pflag"
)

// updateCmd returns the update command.
func updateCmd(a *app) *Command {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	fs.Bool("full", false, "Re-read every page, ignoring change tokens")
	fs.BoolP("verbose", "v", false, "Print every processed row")

	return &Command{
		Flags: fs,
		Usage: "update [flags] [page]",
		Short: "Bring the index up to date",
		Long: "Walk the page tree and re-index what changed since the last update.\n" +
			"With a page, only that subtree is checked.",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			full, _ := fs.GetBool("full")
			verbose, _ := fs.GetBool("verbose")

			return execUpdate(ctx, io, a, args, full, verbose)
		},
	}
}

// reindexCmd returns the reindex command.
func reindexCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("reindex", flag.ContinueOnError),
		Usage: "reindex",
		Short: "Re-read every page",
		Long:  "Flag every page for re-indexing and run the update. Existing rows are kept while the walk runs.",
		Exec: func(ctx context.Context, io *IO, _ []string) error {
			return execUpdate(ctx, io, a, nil, true, false)
		},
	}
}

// flushCmd returns the flush command.
func flushCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("flush", flag.ContinueOnError),
		Usage: "flush",
		Short: "Drop all indexed data",
		Long:  "Drop every table and recreate the schema. The next update rebuilds the index from scratch.",
		Exec: func(ctx context.Context, io *IO, _ []string) error {
			return a.withIndex(ctx, false, func(s *session) error {
				err := s.ix.Flush(ctx)
				if err != nil {
					return err
				}

				io.Println("index flushed")

				return nil
			})
		},
	}
}

var errTooManyArgs = errors.New("too many arguments")

type updateStats struct {
	rows   int
	links  int
	failed []pageindex.IndexPath
}

func execUpdate(ctx context.Context, io *IO, a *app, args []string, full, verbose bool) error {
	if len(args) > 1 {
		return errTooManyArgs
	}

	var target *pageindex.Path

	if len(args) == 1 {
		path, err := parsePath(args[0])
		if err != nil {
			return err
		}

		target = &path
	}

	return a.withIndex(ctx, false, func(s *session) error {
		if full {
			err := s.ix.FlagFullReindex(ctx)
			if err != nil {
				return err
			}
		}

		var stats updateStats

		for prog, err := range s.ix.UpdateIter(ctx, target) {
			if err != nil {
				return err
			}

			stats.links += prog.Links

			if prog.Page.Path.IsRoot() && prog.Page.IDs == nil {
				continue
			}

			stats.rows++

			if prog.Failed {
				stats.failed = append(stats.failed, prog.Page)
			}

			if verbose {
				io.Printf("%-20s %s\n", prog.State, prog.Page)
			}
		}

		for _, page := range stats.failed {
			io.Warn(fmt.Sprintf("page %s could not be indexed", page), "fix the page file and run update again")
		}

		n, err := s.ix.Pages().Count(ctx)
		if err != nil {
			return err
		}

		io.Printf("%d pages, %d rows checked, %d links resolved, %d failed\n",
			n, stats.rows, stats.links, len(stats.failed))

		return nil
	})
}
