package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"airgen/internal/diag"
	"airgen/internal/diagfmt"
	"airgen/internal/observ"
	"airgen/internal/pipeline"
	"airgen/internal/project"
)

const noManifestMessage = "no airgen.toml found\nplease specify the program description explicitly, e.g.:\n  airgen build path/to/program.yaml"

var buildCmd = &cobra.Command{
	Use:   "build [flags] [path]",
	Short: "Generate the IR file of a program",
	Long:  "Generate the IR file of a program description, or of the project whose airgen.toml is found from path.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  buildExecution,
}

func init() {
	buildCmd.Flags().StringP("output", "o", "", "IR file to write (default from airgen.toml or <name>.air)")
	buildCmd.Flags().String("ui", "auto", "progress UI (auto|on|off)")
	buildCmd.Flags().String("format", "pretty", "diagnostics format (pretty|json)")
	buildCmd.Flags().Bool("comments", false, "emit comment sites")
	buildCmd.Flags().Int("max-clazzes", 0, "abort once this many clazzes exist (0 = default limit)")
}

// buildTarget is what one build compiles and where it writes.
type buildTarget struct {
	path     string
	output   string
	baseDir  string
	manifest *project.Manifest
}

// resolveBuildTarget picks the description: an explicit file, or the main
// of the airgen.toml found from a directory argument or the working directory.
func resolveBuildTarget(args []string) (buildTarget, error) {
	start := "."
	if len(args) > 0 {
		start = args[0]
		info, err := os.Stat(start)
		if err != nil {
			return buildTarget{}, err
		}
		if !info.IsDir() {
			name := strings.TrimSuffix(filepath.Base(start), filepath.Ext(start))
			root, _, err := project.FindProjectRoot(filepath.Dir(start))
			if err != nil {
				return buildTarget{}, err
			}
			return buildTarget{path: start, output: name + ".air", baseDir: root}, nil
		}
	}
	m, ok, err := project.Find(start)
	if err != nil {
		return buildTarget{}, err
	}
	if !ok {
		return buildTarget{}, errors.New(noManifestMessage)
	}
	return buildTarget{path: m.MainPath(), output: m.OutputPath(), baseDir: m.Root(), manifest: m}, nil
}

func buildExecution(cmd *cobra.Command, args []string) error {
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return err
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	comments, err := cmd.Flags().GetBool("comments")
	if err != nil {
		return err
	}
	maxClazzes, err := cmd.Flags().GetInt("max-clazzes")
	if err != nil {
		return err
	}
	maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	showTimings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return err
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return err
	}
	switch format {
	case "pretty", "json":
	default:
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}
	uiModeValue, err := readUIMode(uiValue)
	if err != nil {
		return err
	}
	colored, err := useColor(cmd)
	if err != nil {
		return err
	}

	target, err := resolveBuildTarget(args)
	if err != nil {
		return err
	}
	if output != "" {
		target.output = output
	}
	if m := target.manifest; m != nil {
		rootFlags := cmd.Root().PersistentFlags()
		if !rootFlags.Changed("max-diagnostics") && m.Build.MaxDiagnostics > 0 {
			maxDiagnostics = m.Build.MaxDiagnostics
		}
		if !cmd.Flags().Changed("max-clazzes") {
			maxClazzes = m.Build.MaxClazzes
		}
		comments = comments || m.Build.Comments
		showTimings = showTimings || m.Build.Timings
	}

	timer := observ.NewTimer()
	req := &pipeline.Request{
		Path:           target.path,
		Output:         target.output,
		MaxClazzes:     maxClazzes,
		MaxDiagnostics: maxDiagnostics,
		Comments:       comments,
		Timer:          timer,
	}

	var res pipeline.Result
	if format == "pretty" && !quiet && shouldUseTUI(uiModeValue) {
		res, err = runBuildWithUI(cmd.Context(), "airgen build "+filepath.Base(target.path), req)
	} else {
		res, err = pipeline.Run(cmd.Context(), req)
	}

	out := cmd.OutOrStdout()
	if res.Diagnostics != nil {
		res.Diagnostics.Sort()
		switch format {
		case "json":
			jsonOpts := diagfmt.JSONOpts{
				IncludePositions: true,
				PathMode:         diagfmt.PathModeAuto,
				BaseDir:          target.baseDir,
				IncludeNotes:     true,
			}
			if jerr := diagfmt.JSON(out, res.Diagnostics, res.Files, jsonOpts); jerr != nil {
				return errors.Join(err, jerr)
			}
		default:
			diagfmt.Pretty(cmd.ErrOrStderr(), res.Diagnostics, res.Files, diagfmt.PrettyOpts{
				Color:     colored,
				Context:   1,
				PathMode:  diagfmt.PathModeAuto,
				BaseDir:   target.baseDir,
				ShowNotes: true,
			})
		}
	}
	if showTimings {
		if terr := printTimings(out, timer, format); terr != nil {
			return errors.Join(err, terr)
		}
	}
	if err != nil {
		return err
	}
	if !quiet && format == "pretty" {
		if !showTimings {
			if terr := printStageTimings(out, res.Timings); terr != nil {
				return terr
			}
		}
		printBuildSummary(out, res, target.output, colored)
	}
	return nil
}

func printBuildSummary(out io.Writer, res pipeline.Result, output string, colored bool) {
	size := "?"
	if info, err := os.Stat(output); err == nil {
		size = humanize.Bytes(uint64(info.Size())) // #nosec G115 -- file sizes are non-negative
	}
	ok := color.New(color.FgGreen, color.Bold)
	if colored {
		ok.EnableColor()
	} else {
		ok.DisableColor()
	}
	clazzes := int64(res.IR.LastClazz()-res.IR.FirstClazz()) + 1
	sites := int64(res.IR.SiteEnd() - res.IR.FirstSite())
	elapsed := res.Timings.Sum(pipeline.Stages...)
	fmt.Fprintf(out, "%s %s (%s): %s clazzes, %s sites in %.1f ms\n",
		ok.Sprint("wrote"), output, size,
		humanize.Comma(clazzes), humanize.Comma(sites), toMillis(elapsed))
	if res.Diagnostics.HasWarnings() {
		fmt.Fprintf(out, "build id %s (%d warnings)\n", res.File.BuildID, warnings(res))
		return
	}
	fmt.Fprintf(out, "build id %s\n", res.File.BuildID)
}

func warnings(res pipeline.Result) int {
	n := 0
	for _, d := range res.Diagnostics.Items() {
		if d.Severity == diag.SevWarning {
			n++
		}
	}
	return n
}

func printTimings(out io.Writer, timer *observ.Timer, format string) error {
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(timer.Report())
	}
	_, err := io.WriteString(out, timer.Summary())
	return err
}
