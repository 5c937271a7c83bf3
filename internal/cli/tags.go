package cli

import (
	"context"
	"strings"

	"github.com/calvinalkan/pageindex/pkg/pageindex"

	flag "github.com/spf13/pflag"
)

// tagsCmd returns the tags command.
func tagsCmd(a *app) *Command {
	fs := flag.NewFlagSet("tags", flag.ContinueOnError)
	fs.String("of", "", "List the tags of this page")

	return &Command{
		Flags: fs,
		Usage: "tags [flags] [tag]",
		Short: "List tags or tagged pages",
		Long: "Without arguments, list every tag with the number of pages carrying it.\n" +
			"With a tag, list the pages carrying it.",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			if len(args) > 1 {
				return errTooManyArgs
			}

			of, _ := fs.GetString("of")

			return a.withIndex(ctx, true, func(s *session) error {
				switch {
				case of != "":
					path, err := parsePath(of)
					if err != nil {
						return err
					}

					tags, err := s.ix.Tags().Of(ctx, path)
					if err != nil {
						return err
					}

					printTags(io, tags)
				case len(args) == 1:
					tag, err := s.ix.Tags().Lookup(ctx, strings.TrimPrefix(args[0], "@"))
					if err != nil {
						return err
					}

					pages, err := s.ix.Tags().Pages(ctx, tag.Name)
					if err != nil {
						return err
					}

					for _, page := range pages {
						io.Println(page.String())
					}
				default:
					tags, err := s.ix.Tags().All(ctx)
					if err != nil {
						return err
					}

					printTags(io, tags)
				}

				return nil
			})
		},
	}
}

func printTags(io *IO, tags []pageindex.Tag) {
	for _, tag := range tags {
		io.Printf("@%-20s %d\n", tag.Name, tag.Count)
	}
}
