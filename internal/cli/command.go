package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	flag "github.com/spf13/pflag"
)

// Command is one pageindex subcommand.
type Command struct {
	// Flags holds the command's own flags. Its name is unused; the command
	// is named by the first word of Usage.
	Flags *flag.FlagSet

	// Usage follows "pageindex" in help output, e.g. "links [flags] <page>".
	Usage string

	// Short is the one-liner in the command list.
	Short string

	// Long is shown by --help. Short is used when it is empty.
	Long string

	Exec func(ctx context.Context, o *IO, args []string) error
}

func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")

	return name
}

// HelpLine is the command's row in the command list.
func (c *Command) HelpLine() string {
	return fmt.Sprintf("  %-26s %s", c.Usage, c.Short)
}

func (c *Command) description() string {
	if c.Long != "" {
		return c.Long
	}

	return c.Short
}

// PrintHelp writes the usage line, description and flag defaults.
func (c *Command) PrintHelp(o *IO) {
	o.Printf("Usage: pageindex %s\n\n%s\n", c.Usage, c.description())

	if c.Flags == nil || !c.Flags.HasFlags() {
		return
	}

	var defaults strings.Builder

	c.Flags.SetOutput(&defaults)
	c.Flags.PrintDefaults()
	o.Printf("\nFlags:\n%s", defaults.String())
}

// Run parses args into the command's flags and executes it. Errors are
// printed here so every command reports them the same way. The result is
// the process exit code.
func (c *Command) Run(ctx context.Context, o *IO, args []string) int {
	// pflag's own error output is replaced by ours.
	c.Flags.SetOutput(io.Discard)

	switch err := c.Flags.Parse(args); {
	case errors.Is(err, flag.ErrHelp):
		c.PrintHelp(o)

		return 0
	case err != nil:
		o.ErrPrintln("error:", err)
		o.ErrPrintln()
		c.PrintHelp(o)

		return 1
	}

	if err := c.Exec(ctx, o, c.Flags.Args()); err != nil {
		o.ErrPrintln("error:", err)

		return 1
	}

	return o.Finish()
}
