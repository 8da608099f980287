package main

import (
	"github.com/spf13/cobra"

	"irkit/internal/driver"
)

func newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump FILE.bc",
		Short: "Print a bitcode file as text or LLVM IR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatValue, err := cmd.Flags().GetString("format")
			if err != nil {
				return err
			}
			users, err := cmd.Flags().GetBool("users")
			if err != nil {
				return err
			}
			format, err := driver.ParseDumpFormat(formatValue)
			if err != nil {
				return err
			}
			in, err := driver.Inspect(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return in.Dump(cmd.OutOrStdout(), format, users)
		},
	}
	cmd.Flags().String("format", "text", "output format (text|llvm)")
	cmd.Flags().Bool("users", false, "list users of every value (text format)")
	return cmd
}
