package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"klibexport/internal/diagfmt"
	"klibexport/internal/driver"
	"klibexport/internal/emit"
	"klibexport/internal/naming"
	"klibexport/internal/project"
	"klibexport/internal/version"
)

var exportCmd = &cobra.Command{
	Use:   "export [flags] [klib...]",
	Short: "Export klibs as Swift source files",
	Long: `Export reads the given klibs (or the [[module]] entries of klibexport.toml) and
writes one Swift file per exported module into the output directory.
Libraries passed with --dep are loaded for reference resolution only.`,
	RunE: runExport,
}

// init registers CLI flags for the export command.
func init() {
	registerExportFlags(exportCmd)
}

func registerExportFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "config file (default: klibexport.toml/.yaml found upwards from the working directory)")
	cmd.Flags().StringP("output", "o", "", "output directory for Swift files")
	cmd.Flags().StringArray("dep", nil, "dependency-only klib (repeatable)")
	cmd.Flags().Bool("single-module", false, "emit all exported modules into one Swift module")
	cmd.Flags().String("module-name", "", "Swift module name for --single-module (default Shared)")
	cmd.Flags().String("policy", "", "package naming policy (nested|flatten|pascal)")
	cmd.Flags().StringToString("package", nil, "package to namespace override, e.g. com.foo=FooKit (repeatable)")
	cmd.Flags().String("component", "", "klib component directory (default \"default\")")
	cmd.Flags().Int("jobs", 0, "max parallel workers (0=auto)")
	cmd.Flags().Bool("strict", false, "exit with status 1 when warnings are reported")
	cmd.Flags().String("bindings", "", "write the Swift name binding log to this file")
	cmd.Flags().String("format", "pretty", "diagnostics format (pretty|short|json|sarif)")
	cmd.Flags().Bool("with-notes", false, "include diagnostic notes in output")
	cmd.Flags().Bool("disk-cache", false, "cache decoded klibs under $XDG_CACHE_HOME/klibexport")
	cmd.Flags().Bool("dry-run", false, "run the pipeline without writing Swift files")
}

// exportOptions is the merged view of config file and flags.
type exportOptions struct {
	request  driver.Request
	output   string
	bindings string
	strict   bool
	dryRun   bool
	format   diagfmt.Format
	notes    bool
	quiet    bool
	timings  bool
	color    bool
	ui       uiMode
	// inputs for progress display
	paths []string
}

func runExport(cmd *cobra.Command, args []string) error {
	opts, err := readExportOptions(cmd, args)
	if err != nil {
		return err
	}
	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer stopProfiling()
	cleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if opts.request.Cache == nil {
		if cache, ok := openDiskCache(cmd); ok {
			opts.request.Cache = cache
		}
	}
	return exportOnce(cmd.Context(), cmd, opts)
}

// exportOnce runs the pipeline, writes units and reports diagnostics.
// Fatal errors produce no output files.
func exportOnce(ctx context.Context, cmd *cobra.Command, opts *exportOptions) error {
	var (
		res *driver.Result
		err error
	)
	if shouldUseTUI(opts.ui) {
		res, err = runExportWithUI(ctx, "klibexport", opts.paths, opts.request)
	} else {
		res, err = driver.Run(ctx, opts.request)
	}
	if err != nil {
		return err
	}

	if !opts.dryRun {
		if err := emit.WriteUnits(opts.output, res.Units); err != nil {
			return err
		}
		if opts.bindings != "" {
			if err := writeBindings(opts.bindings, res); err != nil {
				return err
			}
		}
	}

	if err := renderDiagnostics(cmd.OutOrStdout(), res, opts); err != nil {
		return err
	}
	if opts.timings && opts.format == diagfmt.FormatPretty {
		printStageTimings(cmd.ErrOrStderr(), res.Stages)
	}
	if !opts.quiet && opts.format == diagfmt.FormatPretty {
		verb := "wrote"
		if opts.dryRun {
			verb = "would write"
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %d Swift file(s) to %s (%d cached module(s))\n",
			verb, len(res.Units), opts.output, res.CacheHits)
	}
	if opts.strict && res.Bag.HasWarnings() {
		return errStrict
	}
	return nil
}

func renderDiagnostics(w io.Writer, res *driver.Result, opts *exportOptions) error {
	switch opts.format {
	case diagfmt.FormatShort:
		return diagfmt.Short(w, res.Bag, opts.notes)
	case diagfmt.FormatJSON:
		return diagfmt.JSON(w, res.Bag, diagfmt.JSONOpts{IncludeNotes: opts.notes})
	case diagfmt.FormatSarif:
		return diagfmt.Sarif(w, res.Bag, diagfmt.SarifRunMeta{
			ToolVersion:    version.Version,
			InvocationArgs: os.Args[1:],
			Inputs:         res.Inputs(),
		})
	default:
		if res.Bag.Len() == 0 && opts.quiet {
			return nil
		}
		width := 0
		if f, ok := w.(*os.File); ok && isTerminal(f) {
			width = terminalWidth(f)
		}
		return diagfmt.Pretty(w, res.Bag, diagfmt.PrettyOpts{
			Color:     opts.color,
			Width:     width,
			ShowNotes: opts.notes,
			Summary:   !opts.quiet,
		})
	}
}

func writeBindings(path string, res *driver.Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create bindings log")
	}
	if err := res.Names.WriteLog(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// readExportOptions merges klibexport.toml (when present) with flags.
// Flags win; positional klibs replace the config's module list.
func readExportOptions(cmd *cobra.Command, args []string) (*exportOptions, error) {
	flags := cmd.Flags()
	cfg, err := loadExportConfig(cmd, len(args) == 0)
	if err != nil {
		return nil, err
	}

	opts := &exportOptions{}
	var inputs []driver.Input
	overrides := map[string]string{}
	policy := ""
	if cfg != nil {
		opts.output = cfg.Export.Output
		opts.bindings = cfg.Export.Bindings
		opts.strict = cfg.Export.Strict
		opts.request.SingleModule = cfg.Export.SingleModule
		opts.request.ModuleName = cfg.Export.ModuleName
		opts.request.Jobs = cfg.Export.Jobs
		policy = cfg.Export.Policy
		for pkg, ns := range cfg.Packages {
			overrides[pkg] = ns
		}
		if len(args) == 0 {
			for _, m := range cfg.Modules {
				inputs = append(inputs, driver.Input{Path: m.Path, Exported: m.Exported, SwiftName: m.SwiftName})
			}
		}
	}
	for _, a := range args {
		inputs = append(inputs, driver.Input{Path: a, Exported: true})
	}
	deps, err := flags.GetStringArray("dep")
	if err != nil {
		return nil, err
	}
	for _, d := range deps {
		inputs = append(inputs, driver.Input{Path: d})
	}
	if len(inputs) == 0 {
		return nil, errors.WithHint(errors.New("no klibs to export"),
			"pass klib paths as arguments or create klibexport.toml with [[module]] entries")
	}

	if flags.Changed("output") {
		opts.output, _ = flags.GetString("output")
	}
	if opts.output == "" {
		opts.output = "out"
	}
	if flags.Changed("bindings") {
		opts.bindings, _ = flags.GetString("bindings")
	}
	if flags.Changed("strict") {
		opts.strict, _ = flags.GetBool("strict")
	}
	if flags.Changed("single-module") {
		opts.request.SingleModule, _ = flags.GetBool("single-module")
	}
	if flags.Changed("module-name") {
		opts.request.ModuleName, _ = flags.GetString("module-name")
	}
	if flags.Changed("jobs") {
		opts.request.Jobs, _ = flags.GetInt("jobs")
	}
	if flags.Changed("policy") {
		policy, _ = flags.GetString("policy")
	}
	pkgFlags, err := flags.GetStringToString("package")
	if err != nil {
		return nil, err
	}
	for pkg, ns := range pkgFlags {
		overrides[pkg] = ns
	}
	transform, err := naming.ParseTransform(policy)
	if err != nil {
		return nil, err
	}
	opts.request.Policy = naming.Policy{Default: transform, Overrides: overrides}
	opts.request.Component, _ = flags.GetString("component")
	opts.dryRun, _ = flags.GetBool("dry-run")
	opts.notes, _ = flags.GetBool("with-notes")

	formatValue, _ := flags.GetString("format")
	if opts.format, err = diagfmt.ParseFormat(formatValue); err != nil {
		return nil, err
	}

	root := cmd.Root().PersistentFlags()
	if opts.request.MaxDiagnostics, err = root.GetInt("max-diagnostics"); err != nil {
		return nil, err
	}
	if opts.quiet, err = root.GetBool("quiet"); err != nil {
		return nil, err
	}
	if opts.timings, err = root.GetBool("timings"); err != nil {
		return nil, err
	}
	opts.request.Timings = opts.timings && opts.format != diagfmt.FormatPretty
	if opts.color, err = useColor(cmd, os.Stdout); err != nil {
		return nil, err
	}
	uiValue, err := root.GetString("ui")
	if err != nil {
		return nil, err
	}
	if opts.ui, err = readUIMode(uiValue); err != nil {
		return nil, err
	}

	opts.request.Inputs = inputs
	for _, in := range inputs {
		opts.paths = append(opts.paths, in.Path)
	}
	return opts, nil
}

// loadExportConfig finds the config file. A missing file is only an error
// when it was named explicitly or no klibs were given.
func loadExportConfig(cmd *cobra.Command, required bool) (*project.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if path == "" {
		found, ok, err := project.FindConfig(".")
		if err != nil {
			return nil, err
		}
		if !ok {
			if required {
				return nil, errors.WithHintf(errors.New("no klibexport config found"),
					"create one of %s or pass klib paths", strings.Join(project.ConfigNames, ", "))
			}
			return nil, nil
		}
		path = found
	}
	return project.LoadConfig(path)
}

func openDiskCache(cmd *cobra.Command) (*driver.DiskCache, bool) {
	enabled, err := cmd.Flags().GetBool("disk-cache")
	if err != nil || !enabled {
		return nil, false
	}
	cache, err := driver.OpenDiskCache("klibexport")
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: disk cache disabled: %v\n", err)
		return nil, false
	}
	return cache, true
}
