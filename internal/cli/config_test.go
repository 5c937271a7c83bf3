package cli_test

import (
	"path/filepath"
	"testing"

	"github.com/calvinalkan/pageindex/internal/cli"
)

func Test_PrintConfig_Shows_Defaults_When_No_Config_Files(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("print-config")

	cli.AssertContains(t, stdout, "pages_dir="+c.Dir+"\n")
	cli.AssertContains(t, stdout, "index="+filepath.Join(c.Dir, ".pageindex", "index.db"))
	cli.AssertContains(t, stdout, "log_level=WARN")
	cli.AssertContains(t, stdout, "debounce_ms=100")
	cli.AssertContains(t, stdout, "(defaults only)")
}

func Test_PrintConfig_Reads_Project_Config_When_File_Has_Comments(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile(".pageindex.json", `{
		// notes live in a subdirectory
		"pages_dir": "notes",
		"log_level": "debug",
		"debounce_ms": 250, // trailing comma is fine
	}`)

	stdout := c.MustRun("print-config")

	cli.AssertContains(t, stdout, "pages_dir="+filepath.Join(c.Dir, "notes"))
	cli.AssertContains(t, stdout, "index="+filepath.Join(c.Dir, "notes", ".pageindex", "index.db"))
	cli.AssertContains(t, stdout, "log_level=DEBUG")
	cli.AssertContains(t, stdout, "debounce_ms=250")
	cli.AssertContains(t, stdout, "project_config="+filepath.Join(c.Dir, ".pageindex.json"))
}

func Test_Config_Precedence_When_All_Sources_Set(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	global := t.TempDir()
	c.Env["XDG_CONFIG_HOME"] = global

	c.WriteFile(".pageindex.json", `{"pages_dir": "project"}`)
	c.WriteFile("explicit.json", `{"index": "cache/explicit.db"}`)

	writeFile(t, filepath.Join(global, "pageindex", "config.json"), `{"pages_dir": "global", "metrics_addr": "127.0.0.1:9100"}`)

	stdout := c.MustRun("print-config")
	cli.AssertContains(t, stdout, "pages_dir="+filepath.Join(c.Dir, "project"))
	cli.AssertContains(t, stdout, "metrics_addr=127.0.0.1:9100")
	cli.AssertContains(t, stdout, "global_config="+filepath.Join(global, "pageindex", "config.json"))

	// An explicit config file replaces the project file.
	stdout = c.MustRun("-c", "explicit.json", "print-config")
	cli.AssertContains(t, stdout, "pages_dir="+filepath.Join(c.Dir, "global"))
	cli.AssertContains(t, stdout, "index="+filepath.Join(c.Dir, "cache", "explicit.db"))

	stdout = c.MustRun("--pages-dir", "flag", "--index", cli.MemoryIndex, "print-config")
	cli.AssertContains(t, stdout, "pages_dir="+filepath.Join(c.Dir, "flag"))
	cli.AssertContains(t, stdout, "index="+cli.MemoryIndex)
}

func Test_Config_Errors_When_Invalid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		file    string
		args    []string
		wantErr string
	}{
		{name: "missing explicit file", args: []string{"-c", "nope.json"}, wantErr: "config file not found: nope.json"},
		{name: "broken json", file: `{"pages_dir": `, wantErr: "invalid JSONC"},
		{name: "empty pages dir", file: `{"pages_dir": ""}`, wantErr: "pages_dir cannot be empty"},
		{name: "negative debounce", file: `{"debounce_ms": -1}`, wantErr: "debounce_ms must be non-negative"},
		{name: "bad log level", args: []string{"--log-level", "loud"}, wantErr: "log_level must be one of"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c := cli.NewCLI(t)
			if tc.file != "" {
				c.WriteFile(".pageindex.json", tc.file)
			}

			stderr := c.MustFail(append(tc.args, "print-config")...)
			cli.AssertContains(t, stderr, tc.wantErr)
		})
	}
}
