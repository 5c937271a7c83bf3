package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/calvinalkan/pageindex/pkg/pageindex"

	flag "github.com/spf13/pflag"
)

var errWantArgs = errors.New("wrong number of arguments")

// lookupCmd returns the lookup command.
func lookupCmd(a *app) *Command {
	fs := flag.NewFlagSet("lookup", flag.ContinueOnError)
	fs.String("from", "", "Reference page for relative names (+Child)")

	return &Command{
		Flags: fs,
		Usage: "lookup [flags] <name>",
		Short: "Find a page by name",
		Long: "Find a page by name, ignoring case. Names that do not exist are shown\n" +
			"as placeholders keeping the case of the part that does.",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("%w: want <name>", errWantArgs)
			}

			from, _ := fs.GetString("from")

			var ref *pageindex.Path

			if from != "" {
				path, err := parsePath(from)
				if err != nil {
					return err
				}

				ref = &path
			}

			return a.withIndex(ctx, true, func(s *session) error {
				page, err := s.ix.Pages().LookupFromUserInput(ctx, args[0], ref)
				if err != nil {
					return err
				}

				io.Println("name=" + page.String())
				io.Println("exists=" + strconv.FormatBool(page.Exists()))

				if !page.Exists() {
					return nil
				}

				info, err := s.ix.Pages().Page(ctx, page.Path)
				if err != nil {
					return err
				}

				io.Println("id=" + strconv.FormatInt(info.ID(), 10))
				io.Println("content=" + strconv.FormatBool(info.HasContent))
				io.Println("children=" + strconv.Itoa(info.NChildren))

				return nil
			})
		},
	}
}

// resolveCmd returns the resolve command.
func resolveCmd(a *app) *Command {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	fs.Bool("create", false, "Print the shortest link from <source> to the page <link> instead")

	return &Command{
		Flags: fs,
		Usage: "resolve [flags] <source> <link>",
		Short: "Resolve a link as written on a page",
		Long: "Resolve a link as it would be resolved when written on <source>.\n" +
			"With --create, <link> is a page name and the shortest link to it is printed.",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("%w: want <source> <link>", errWantArgs)
			}

			source, err := parsePath(args[0])
			if err != nil {
				return err
			}

			create, _ := fs.GetBool("create")

			return a.withIndex(ctx, true, func(s *session) error {
				if create {
					target, err := parsePath(args[1])
					if err != nil {
						return err
					}

					href, err := s.ix.Pages().CreateLink(ctx, source, target)
					if err != nil {
						return err
					}

					io.Println(href.String())

					return nil
				}

				href, err := pageindex.ParseHRef(args[1])
				if err != nil {
					return err
				}

				page, err := s.ix.Pages().ResolveLink(ctx, source, href)
				if err != nil {
					return err
				}

				io.Println(formatTarget(page))

				return nil
			})
		},
	}
}

func formatTarget(page pageindex.IndexPath) string {
	if page.Exists() {
		return page.String()
	}

	return page.String() + " (missing)"
}
