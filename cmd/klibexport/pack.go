package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"klibexport/internal/fixture"
	"klibexport/internal/klib"
)

var packCmd = &cobra.Command{
	Use:   "pack [flags] <module.yaml>",
	Short: "Build klibs from a YAML module description",
	Long: `Pack turns a YAML description of one or more modules (documents separated
by ---) into klibs, one per module. Useful for fixtures and experiments.`,
	Args: cobra.ExactArgs(1),
	RunE: runPack,
}

func init() {
	packCmd.Flags().StringP("output", "o", ".", "directory for the generated klibs")
	packCmd.Flags().Bool("archive", false, "write zipped .klib files instead of directories")
}

func runPack(cmd *cobra.Command, args []string) error {
	out, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	archive, err := cmd.Flags().GetBool("archive")
	if err != nil {
		return err
	}
	mods, err := fixture.LoadFile(args[0])
	if err != nil {
		return err
	}
	if len(mods) == 0 {
		return errors.Newf("%s: no modules described", args[0])
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return errors.Wrap(err, "create output directory")
	}
	quiet, _ := cmd.Root().PersistentFlags().GetBool("quiet")
	for _, m := range mods {
		var target string
		if archive {
			target = filepath.Join(out, m.Name+".klib")
			err = klib.WriteArchive(target, m)
		} else {
			target = filepath.Join(out, m.Name)
			err = klib.Write(target, m)
		}
		if err != nil {
			return errors.Wrapf(err, "pack %s", m.Name)
		}
		if !quiet {
			fmt.Fprintln(cmd.OutOrStdout(), target)
		}
	}
	return nil
}
