package main

import (
	"github.com/spf13/cobra"

	"klibexport/internal/klib"
	"klibexport/internal/kotlin"
)

var dumpCmd = &cobra.Command{
	Use:   "dump [flags] <klib>",
	Short: "Print the declarations decoded from a klib",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		component, err := cmd.Flags().GetString("component")
		if err != nil {
			return err
		}
		m, err := klib.Read(cmd.Context(), args[0], klib.Options{Component: component})
		if err != nil {
			return err
		}
		return kotlin.Dump(cmd.OutOrStdout(), m)
	},
}

func init() {
	dumpCmd.Flags().String("component", "", "klib component directory (default \"default\")")
}
