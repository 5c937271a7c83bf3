package cli

import (
	"fmt"
	"io"
)

// warning is one problem a command ran into without failing outright.
type warning struct {
	issue  string
	action string
}

func (w warning) String() string { return w.issue + ": " + w.action }

// IO is the output side of one command run.
//
// Warnings are collected while the command works and written to stderr twice:
// once before the first line of regular output, and once more when the
// command finishes. A long listing piped through head or tail still shows
// them. Any warning turns the exit code into 1.
type IO struct {
	out    io.Writer
	errOut io.Writer

	warnings []warning

	// headerDone is set once warnings went out ahead of regular output.
	headerDone bool
}

// NewIO returns an IO writing to out and errOut.
func NewIO(out, errOut io.Writer) *IO {
	return &IO{out: out, errOut: errOut}
}

// Warn records a problem and what the user can do about it. Output continues.
func (o *IO) Warn(issue, action string) {
	o.warnings = append(o.warnings, warning{issue: issue, action: action})
}

// Println writes a line to stdout.
func (o *IO) Println(a ...any) {
	o.warningsHeader()
	_, _ = fmt.Fprintln(o.out, a...)
}

// Printf writes formatted output to stdout.
func (o *IO) Printf(format string, a ...any) {
	o.warningsHeader()
	_, _ = fmt.Fprintf(o.out, format, a...)
}

// ErrPrintln writes a line to stderr.
func (o *IO) ErrPrintln(a ...any) {
	_, _ = fmt.Fprintln(o.errOut, a...)
}

// Finish writes the trailing warnings and returns the exit code.
func (o *IO) Finish() int {
	o.warningsHeader()
	o.writeWarnings()

	if len(o.warnings) == 0 {
		return 0
	}

	return 1
}

func (o *IO) warningsHeader() {
	if o.headerDone || len(o.warnings) == 0 {
		return
	}

	o.headerDone = true
	o.writeWarnings()
}

func (o *IO) writeWarnings() {
	for _, w := range o.warnings {
		_, _ = fmt.Fprintln(o.errOut, "warning:", w)
	}
}
