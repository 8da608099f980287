package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"irkit/internal/driver"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify FILE.bc...",
		Short: "Decode bitcode files and run the verifier",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				in, err := driver.Inspect(cmd.Context(), path)
				if err != nil {
					return err
				}
				printFindings(cmd.OutOrStdout(), in, quiet(cmd))
				if !in.Result.Ok() {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d file(s) failed verification", failed, len(args))
			}
			return nil
		},
	}
}

func printFindings(out io.Writer, in *driver.Inspection, quiet bool) {
	if in.Result.Ok() {
		if !quiet {
			fmt.Fprintf(out, "%s %s: %d function(s)\n", color.New(color.FgGreen, color.Bold).Sprint("ok"), in.Path, len(in.Module.Funcs()))
		}
		return
	}
	code := color.New(color.FgRed, color.Bold)
	where := color.New(color.Bold)
	fmt.Fprintf(out, "%s: %d finding(s)\n", in.Path, len(in.Result.Findings))
	for _, f := range in.Result.Findings {
		fmt.Fprintf(out, "  %s %s %s: %s\n", code.Sprint(f.Code.ID()), f.Code, where.Sprint(f.Entity), f.Message)
	}
}
