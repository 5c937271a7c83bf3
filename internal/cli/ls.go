package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/calvinalkan/pageindex/pkg/pageindex"

	flag "github.com/spf13/pflag"
)

const defaultRecent = 10

// lsCmd returns the ls command.
func lsCmd(a *app) *Command {
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	fs.BoolP("recursive", "r", false, "List the whole subtree in display order")
	fs.Bool("recent", false, "List the most recently indexed pages instead")
	fs.Int("limit", defaultRecent, "Maximum pages to show with --recent")

	return &Command{
		Flags: fs,
		Usage: "ls [flags] [page]",
		Short: "List pages",
		Long: "List the children of a page, the root by default. Namespaces without\n" +
			"content of their own are marked with a trailing ':'.",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			return execLs(ctx, io, a, fs, args)
		},
	}
}

var errNegativeLimit = errors.New("--limit must be non-negative")

func execLs(ctx context.Context, io *IO, a *app, fs *flag.FlagSet, args []string) error {
	if len(args) > 1 {
		return errTooManyArgs
	}

	path := pageindex.RootPath()

	if len(args) == 1 {
		var err error

		path, err = parsePath(args[0])
		if err != nil {
			return err
		}
	}

	recursive, _ := fs.GetBool("recursive")
	recent, _ := fs.GetBool("recent")

	limit, _ := fs.GetInt("limit")
	if limit < 0 {
		return errNegativeLimit
	}

	return a.withIndex(ctx, true, func(s *session) error {
		var (
			pages []pageindex.PageInfo
			err   error
		)

		switch {
		case recent:
			pages, err = s.ix.Pages().Recent(ctx, limit)
		case recursive:
			pages, err = s.ix.Pages().Walk(ctx, path)
		default:
			pages, err = s.ix.Pages().Children(ctx, path)
		}

		if err != nil {
			return err
		}

		for _, page := range pages {
			indent := ""
			if recursive {
				indent = strings.Repeat("  ", page.Depth()-path.Depth()-1)
			}

			io.Println(indent + formatPage(page))
		}

		return nil
	})
}

func formatPage(page pageindex.PageInfo) string {
	if page.HasContent {
		return page.Name()
	}

	return page.Name() + ":"
}
