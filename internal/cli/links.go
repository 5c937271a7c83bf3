package cli

import (
	"context"
	"fmt"

	"github.com/calvinalkan/pageindex/pkg/pageindex"

	flag "github.com/spf13/pflag"
)

// linksCmd returns the links command.
func linksCmd(a *app) *Command {
	fs := flag.NewFlagSet("links", flag.ContinueOnError)
	fs.BoolP("back", "b", false, "List links pointing at the page")
	fs.Bool("both", false, "List links in both directions")
	fs.Bool("unresolved", false, "List links of all pages that point at missing pages")

	return &Command{
		Flags: fs,
		Usage: "links [flags] <page>",
		Short: "List links of a page",
		Long:  "List the links written on a page, or with --back the links pointing at it.",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			unresolved, _ := fs.GetBool("unresolved")
			if unresolved {
				if len(args) != 0 {
					return errTooManyArgs
				}

				return a.withIndex(ctx, true, func(s *session) error {
					links, err := s.ix.Links().Unresolved(ctx)
					if err != nil {
						return err
					}

					printLinks(io, links)

					return nil
				})
			}

			if len(args) != 1 {
				return fmt.Errorf("%w: want <page>", errWantArgs)
			}

			path, err := parsePath(args[0])
			if err != nil {
				return err
			}

			dir := pageindex.Forward

			if back, _ := fs.GetBool("back"); back {
				dir = pageindex.Backward
			}

			if both, _ := fs.GetBool("both"); both {
				dir = pageindex.Both
			}

			return a.withIndex(ctx, true, func(s *session) error {
				links, err := s.ix.Links().List(ctx, path, dir)
				if err != nil {
					return err
				}

				printLinks(io, links)

				return nil
			})
		},
	}
}

func printLinks(io *IO, links []pageindex.Link) {
	for _, l := range links {
		io.Printf("%s -> %s [[%s]]\n", l.Source, formatTarget(l.Target), l.HRef)
	}
}
