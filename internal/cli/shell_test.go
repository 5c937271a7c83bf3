package cli_test

import (
	"testing"

	"github.com/calvinalkan/pageindex/internal/cli"
)

func Test_Shell_Runs_Commands_On_One_Index_When_Lines_Read(t *testing.T) {
	t.Parallel()

	c := newNotebook(t)

	input := "ls\n\nlookup home\nbogus\nwatch\ntags --of Home\nexit\nls projects\n"

	stdout, stderr, exitCode := c.RunWithInput(input, "shell")

	if got, want := exitCode, 0; got != want {
		t.Fatalf("exitCode=%d, want=%d\nstderr: %s", got, want, stderr)
	}

	cli.AssertContains(t, stdout, "Home\nProjects:\n")
	cli.AssertContains(t, stdout, "name=Home\n")
	cli.AssertContains(t, stdout, "@start")
	cli.AssertContains(t, stderr, "unknown command: bogus")
	cli.AssertContains(t, stderr, "unknown command: watch")

	// Lines after exit are not read.
	cli.AssertNotContains(t, stdout, "Projects:Notes")
}

func Test_Shell_Keeps_Running_When_Command_Fails(t *testing.T) {
	t.Parallel()

	c := newNotebook(t)

	stdout, stderr, exitCode := c.RunWithInput("links\nlookup Home\n", "shell")

	if got, want := exitCode, 0; got != want {
		t.Fatalf("exitCode=%d, want=%d", got, want)
	}

	cli.AssertContains(t, stderr, "error: wrong number of arguments: want <page>")
	cli.AssertContains(t, stdout, "exists=true")
}
