package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	flag "github.com/spf13/pflag"
)

// Run is the main entry point. Returns exit code.
//
// The first signal on sigCh cancels the running command; a nil sigCh
// never cancels.
func Run(stdin io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	globals := flag.NewFlagSet("pageindex", flag.ContinueOnError)
	globals.SetInterspersed(false)
	globals.SetOutput(&strings.Builder{})

	flagHelp := globals.BoolP("help", "h", false, "Show help")
	flagCwd := globals.StringP("cwd", "C", "", "Run as if started in `dir`")
	flagConfig := globals.StringP("config", "c", "", "Use specified config `file`")
	flagPagesDir := globals.String("pages-dir", "", "Page directory (default \".\")")
	flagIndex := globals.String("index", "", "Index `file`, or "+MemoryIndex)
	flagLogLevel := globals.String("log-level", "", "Log level (debug|info|warn|error)")

	if len(args) > 0 {
		args = args[1:]
	}

	err := globals.Parse(args)
	if err != nil {
		fprintln(errOut, "error:", err)
		fprintln(errOut)
		printUsage(errOut, globals, nil)

		return 1
	}

	if globals.Changed("pages-dir") && *flagPagesDir == "" {
		fprintln(errOut, "error:", errPagesDirEmpty)
		fprintln(errOut)
		printUsage(errOut, globals, nil)

		return 1
	}

	cfg, err := LoadConfig(LoadConfigInput{
		WorkDirOverride: *flagCwd,
		ConfigPath:      *flagConfig,
		Overrides: Config{
			PagesDir: *flagPagesDir,
			Index:    *flagIndex,
			LogLevel: *flagLogLevel,
		},
		Env: env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	a := &app{
		cfg:   &cfg,
		log:   newLogger(errOut, cfg.Level),
		stdin: stdin,
		env:   env,
	}

	cmds := commands(a)

	rest := globals.Args()
	if *flagHelp || len(rest) == 0 {
		printUsage(out, globals, cmds)

		return 0
	}

	cmd := findCommand(cmds, rest[0])
	if cmd == nil {
		fprintln(errOut, "error: unknown command:", strconv.Quote(rest[0]))
		fprintln(errOut)
		printUsage(errOut, globals, cmds)

		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sigCh != nil {
		go func() {
			select {
			case <-sigCh:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	code := cmd.Run(ctx, NewIO(out, errOut), rest[1:])
	if code != 0 && errors.Is(ctx.Err(), context.Canceled) {
		fprintln(errOut, "interrupted")
	}

	return code
}

// commands returns the command set. Commands carry their own flag state,
// so a fresh set is built per invocation.
func commands(a *app) []*Command {
	return []*Command{
		updateCmd(a),
		lsCmd(a),
		lookupCmd(a),
		resolveCmd(a),
		linksCmd(a),
		tagsCmd(a),
		flushCmd(a),
		reindexCmd(a),
		watchCmd(a),
		shellCmd(a),
		printConfigCmd(a.cfg),
	}
}

func findCommand(cmds []*Command, name string) *Command {
	for _, cmd := range cmds {
		if cmd.Name() == name {
			return cmd
		}
	}

	return nil
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(w io.Writer, globals *flag.FlagSet, cmds []*Command) {
	fprintln(w, `pageindex - incremental index of a page tree

Usage: pageindex [global flags] <command> [args]

Global flags:`)

	var buf strings.Builder
	globals.SetOutput(&buf)
	globals.PrintDefaults()
	globals.SetOutput(&strings.Builder{})
	_, _ = io.WriteString(w, buf.String())

	if len(cmds) == 0 {
		return
	}

	fprintln(w)
	fprintln(w, "Commands:")

	for _, cmd := range cmds {
		fprintln(w, cmd.HelpLine())
	}
}
