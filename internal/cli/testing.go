package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// CLI runs pageindex commands against a notebook in a temp directory.
type CLI struct {
	t *testing.T

	// Dir is both the working directory and the pages directory.
	Dir string

	// Env is the environment seen by every run.
	Env map[string]string
}

func NewCLI(t *testing.T) *CLI {
	t.Helper()

	return &CLI{t: t, Dir: t.TempDir(), Env: map[string]string{}}
}

// Run runs one command with empty stdin and returns stdout, stderr and the
// exit code. "pageindex --cwd Dir" is prepended to args.
func (c *CLI) Run(args ...string) (string, string, int) {
	return c.RunWithInput("", args...)
}

// RunWithInput is Run with stdin.
func (c *CLI) RunWithInput(stdin string, args ...string) (string, string, int) {
	var stdout, stderr bytes.Buffer

	argv := append([]string{"pageindex", "--cwd", c.Dir}, args...)
	code := Run(strings.NewReader(stdin), &stdout, &stderr, argv, c.Env, nil)

	return stdout.String(), stderr.String(), code
}

// MustRun returns trimmed stdout and fails the test on a non-zero exit.
func (c *CLI) MustRun(args ...string) string {
	c.t.Helper()

	stdout, stderr, code := c.Run(args...)
	if code != 0 {
		c.t.Fatalf("pageindex %s: exit code %d\nstderr: %s", strings.Join(args, " "), code, stderr)
	}

	return strings.TrimSpace(stdout)
}

// MustFail returns trimmed stderr and fails the test on a zero exit.
func (c *CLI) MustFail(args ...string) string {
	c.t.Helper()

	stdout, stderr, code := c.Run(args...)
	if code == 0 {
		c.t.Fatalf("pageindex %s: succeeded, want failure\nstdout: %s", strings.Join(args, " "), stdout)
	}

	return strings.TrimSpace(stderr)
}

// PageFile is the file a directory store keeps the page in: namespaces are
// directories and spaces become underscores.
func (c *CLI) PageFile(name string) string {
	rel := strings.NewReplacer(":", string(filepath.Separator), " ", "_").Replace(name)

	return filepath.Join(c.Dir, rel+".txt")
}

// WritePage writes page content as an editor would.
func (c *CLI) WritePage(name, content string) {
	c.t.Helper()
	c.write(c.PageFile(name), content)
}

// WriteFile writes a file relative to Dir.
func (c *CLI) WriteFile(rel, content string) {
	c.t.Helper()
	c.write(filepath.Join(c.Dir, rel), content)
}

func (c *CLI) write(path, content string) {
	c.t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		c.t.Fatalf("mkdir for %s: %v", path, err)
	}

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		c.t.Fatalf("write %s: %v", path, err)
	}
}

// AssertContains reports an error when substr is missing from content.
func AssertContains(t *testing.T, content, substr string) {
	t.Helper()

	if !strings.Contains(content, substr) {
		t.Errorf("missing %q in:\n%s", substr, content)
	}
}

// AssertNotContains reports an error when content has substr.
func AssertNotContains(t *testing.T, content, substr string) {
	t.Helper()

	if strings.Contains(content, substr) {
		t.Errorf("unexpected %q in:\n%s", substr, content)
	}
}
