package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/peterh/liner"

	flag "github.com/spf13/pflag"
)

const shellPrompt = "pageindex> "

// shellCmd returns the shell command.
func shellCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("shell", flag.ContinueOnError),
		Usage: "shell",
		Short: "Interactive shell on one open index",
		Long: "Open the index once and read commands line by line. Every command\n" +
			"except watch and shell is available; 'exit' leaves the shell.",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			return execShell(ctx, o, a)
		},
	}
}

// lineReader is the input side of the shell: liner on a terminal, a plain
// scanner otherwise.
type lineReader interface {
	Prompt(prompt string) (string, error)
	Close() error
}

type scanReader struct {
	sc *bufio.Scanner
}

func (r *scanReader) Prompt(string) (string, error) {
	if r.sc.Scan() {
		return r.sc.Text(), nil
	}

	err := r.sc.Err()
	if err == nil {
		err = io.EOF
	}

	return "", err
}

func (r *scanReader) Close() error { return nil }

type termReader struct {
	state   *liner.State
	history string
}

func newTermReader(history string, complete func(string) []string) *termReader {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)
	state.SetCompleter(complete)

	if f, err := os.Open(history); err == nil {
		_, _ = state.ReadHistory(f)
		_ = f.Close()
	}

	return &termReader{state: state, history: history}
}

func (r *termReader) Prompt(prompt string) (string, error) {
	line, err := r.state.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}

	if err == nil && strings.TrimSpace(line) != "" {
		r.state.AppendHistory(line)
	}

	return line, err
}

func (r *termReader) Close() error {
	if r.history != "" {
		if f, err := os.Create(r.history); err == nil {
			_, _ = r.state.WriteHistory(f)
			_ = f.Close()
		}
	}

	return r.state.Close()
}

func historyFile(env map[string]string) string {
	if state := env["XDG_STATE_HOME"]; state != "" {
		return filepath.Join(state, "pageindex", "history")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".pageindex_history")
	}

	return ""
}

func execShell(ctx context.Context, o *IO, a *app) error {
	if a.shared != nil {
		return errors.New("already in a shell")
	}

	s, err := a.open(ctx, nil)
	if err != nil {
		return err
	}

	defer func() { _ = s.ix.Close() }()

	err = s.ix.Update(ctx, nil)
	if err != nil {
		return err
	}

	a.shared = s
	defer func() { a.shared = nil }()

	var in lineReader

	if f, ok := a.stdin.(*os.File); ok && f == os.Stdin && liner.TerminalSupported() {
		history := historyFile(a.env)
		if history != "" {
			_ = os.MkdirAll(filepath.Dir(history), 0o750)
		}

		in = newTermReader(history, func(line string) []string {
			return completeCommand(shellCommands(a), line)
		})
	} else {
		stdin := a.stdin
		if stdin == nil {
			stdin = strings.NewReader("")
		}

		in = &scanReader{sc: bufio.NewScanner(stdin)}
	}

	defer func() { _ = in.Close() }()

	for ctx.Err() == nil {
		line, err := in.Prompt(shellPrompt)
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		name := strings.ToLower(fields[0])

		switch name {
		case "exit", "quit", "q":
			return nil
		case "help", "?":
			for _, cmd := range shellCommands(a) {
				o.Println(cmd.HelpLine())
			}

			continue
		}

		cmd := findCommand(shellCommands(a), name)
		if cmd == nil {
			o.ErrPrintln("error: unknown command:", name)

			continue
		}

		// Each line gets fresh flag state and its own warnings.
		cmd.Run(ctx, NewIO(o.out, o.errOut), fields[1:])
	}

	return nil
}

// shellCommands builds a fresh command set for one shell line.
func shellCommands(a *app) []*Command {
	return slices.DeleteFunc(commands(a), func(c *Command) bool {
		return c.Name() == "shell" || c.Name() == "watch"
	})
}

func completeCommand(cmds []*Command, line string) []string {
	var out []string

	for _, cmd := range cmds {
		if strings.HasPrefix(cmd.Name(), strings.ToLower(line)) {
			out = append(out, cmd.Name())
		}
	}

	return out
}
