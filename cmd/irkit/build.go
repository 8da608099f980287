package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"irkit/internal/config"
	"irkit/internal/driver"
	"irkit/internal/observ"
)

func newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [flags]",
		Short: "Build, verify and write the configured modules",
		Long: "Build constructs the module of every target listed in irkit.toml (or the\n" +
			"built-in sum module when there is none), verifies it and writes bitcode.",
		Args: cobra.NoArgs,
		RunE: buildExecution,
	}
	cmd.Flags().String("config", "", "path to irkit.toml (default: search upwards from the working directory)")
	cmd.Flags().StringP("output", "o", "", "bitcode output path (single target only)")
	cmd.Flags().Bool("emit-llvm", false, "also write textual LLVM IR next to each output")
	cmd.Flags().Int("jobs", 0, "max parallel target builds (0=config or GOMAXPROCS)")
	cmd.Flags().Bool("no-cache", false, "ignore [build].cache_dir")
	cmd.Flags().String("ui", "auto", "progress UI (auto|on|off)")
	return cmd
}

func buildExecution(cmd *cobra.Command, args []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	emitLLVM, err := cmd.Flags().GetBool("emit-llvm")
	if err != nil {
		return err
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return err
	}
	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return err
	}
	showTimings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return err
	}
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return err
	}
	uiModeValue, err := readUIMode(uiValue)
	if err != nil {
		return err
	}
	if jobs < 0 {
		return fmt.Errorf("--jobs must not be negative")
	}

	var timer *observ.Timer
	if showTimings {
		timer = observ.NewTimer()
	}

	cfg, err := loadBuildConfig(configPath, timer)
	if err != nil {
		return err
	}

	opts := driver.BuildOptions{
		Config:   cfg,
		Output:   output,
		EmitLLVM: emitLLVM,
		Jobs:     jobs,
		NoCache:  noCache,
		Timer:    timer,
	}
	var (
		res      *driver.BuildResult
		buildErr error
	)
	if !quiet(cmd) && shouldUseTUI(uiModeValue, cmd.OutOrStdout()) {
		res, buildErr = runBuildWithUI(cmd.Context(), cmd.OutOrStdout(), "irkit build "+cfg.Module.Name, opts)
	} else {
		res, buildErr = driver.Build(cmd.Context(), opts)
	}
	if res != nil && !quiet(cmd) {
		printBuildResult(cmd.OutOrStdout(), res)
	}
	if timer != nil {
		fmt.Fprint(cmd.ErrOrStderr(), timer.Summary())
	}
	return buildErr
}

func loadBuildConfig(path string, timer *observ.Timer) (*config.Config, error) {
	var cfg *config.Config
	err := timer.Track("config", func() error {
		var err error
		if path != "" {
			cfg, err = config.LoadFile(path)
			return err
		}
		cfg, _, err = config.Load(".")
		return err
	})
	return cfg, err
}

func printBuildResult(out io.Writer, res *driver.BuildResult) {
	ok := color.New(color.FgGreen, color.Bold)
	failed := color.New(color.FgRed, color.Bold)
	dim := color.New(color.Faint)
	for _, t := range res.Targets {
		if t.Err != nil {
			fmt.Fprintf(out, "%s %s\n", failed.Sprint("failed"), t.Target)
			continue
		}
		note := ""
		if t.Cached {
			note = dim.Sprint(" (cached)")
		}
		fmt.Fprintf(out, "%s %s: %s, %d bytes, %d function(s)%s\n", ok.Sprint("wrote"), t.Target, t.Output, t.Bytes, t.Funcs, note)
		if t.LLVMOutput != "" {
			fmt.Fprintf(out, "%s %s: %s\n", ok.Sprint("wrote"), t.Target, t.LLVMOutput)
		}
	}
}
