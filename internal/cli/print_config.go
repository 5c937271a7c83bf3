package cli

import (
	"context"
	"strconv"

	flag "github.com/spf13/pflag"
)

// printConfigCmd returns the print-config command.
func printConfigCmd(cfg *Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("print-config", flag.ContinueOnError),
		Usage: "print-config",
		Short: "Show resolved configuration",
		Long:  "Display the effective configuration and which files it was loaded from.",
		Exec: func(_ context.Context, io *IO, _ []string) error {
			return execPrintConfig(io, cfg)
		},
	}
}

func execPrintConfig(io *IO, cfg *Config) error {
	io.Println("effective_cwd=" + cfg.EffectiveCwd)
	io.Println("pages_dir=" + cfg.PagesDirAbs)
	io.Println("index=" + cfg.IndexAbs)
	io.Println("log_level=" + cfg.Level.String())
	io.Println("debounce_ms=" + strconv.Itoa(cfg.DebounceMS))

	if cfg.MetricsAddr != "" {
		io.Println("metrics_addr=" + cfg.MetricsAddr)
	}

	io.Println("")
	io.Println("# sources")

	if cfg.Sources.Global == "" && cfg.Sources.Project == "" {
		io.Println("(defaults only)")
	} else {
		if cfg.Sources.Global != "" {
			io.Println("global_config=" + cfg.Sources.Global)
		}

		if cfg.Sources.Project != "" {
			io.Println("project_config=" + cfg.Sources.Project)
		}
	}

	return nil
}
