package analyze

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/1homsi/importrisk/internal/analyzer"
	"github.com/1homsi/importrisk/internal/app"
	"github.com/1homsi/importrisk/internal/report"
	"github.com/1homsi/importrisk/internal/risk"
	"github.com/spf13/cobra"
)

// Options are the analyze flags and argument.
type Options struct {
	Path        string
	Ecosystem   string
	JSON        bool
	SARIF       bool
	FailOn      string
	Timings     bool
	ToolVersion string
}

// NewCommand returns the analyze subcommand.
func NewCommand(global *app.Options, version string) *cobra.Command {
	opts := Options{ToolVersion: version}
	cmd := &cobra.Command{
		Use:   "analyze [file|-]",
		Short: "Extract the imports of a snippet and rate each package",
		Long: `Parse a Python snippet, extract its top-level imports, and check every
package against its registry, the known-good corpus and GitHub popularity.

Reads stdin when no file (or "-") is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.Path = args[0]
			}
			if opts.JSON && opts.SARIF {
				return &app.ExitError{Code: app.ExitUsage, Err: fmt.Errorf("--json and --sarif are mutually exclusive")}
			}
			a, err := app.Bootstrap(cmd.Context(), *global)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			if code := Run(cmd.Context(), a, opts, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr()); code != app.ExitOK {
				return &app.ExitError{Code: code}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.Ecosystem, "ecosystem", "auto", "auto|python|javascript")
	f.BoolVar(&opts.JSON, "json", false, "JSON output")
	f.BoolVar(&opts.SARIF, "sarif", false, "SARIF 2.1.0 output")
	f.StringVar(&opts.FailOn, "fail-on", "", "exit 1 when any package reaches low|medium|high")
	f.BoolVar(&opts.Timings, "timings", false, "print per-signal timing breakdown to stderr")
	return cmd
}

// Run analyzes one snippet and returns the process exit code.
func Run(ctx context.Context, a *app.App, opts Options, stdin io.Reader, stdout, stderr io.Writer) int {
	var failOn risk.Level
	if opts.FailOn != "" {
		lvl, err := risk.ParseLevel(opts.FailOn)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return app.ExitUsage
		}
		failOn = lvl
	}

	src, err := app.ReadSource(opts.Path, stdin)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return app.ExitUsage
	}
	code := string(src)

	eco, err := a.Analyzer.ResolveEcosystem(opts.Ecosystem, code)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return app.ExitUsage
	}

	r, timing := a.Analyzer.AnalyzeWithTiming(ctx, code, eco)

	t0 := time.Now()
	var writeErr error
	switch {
	case opts.JSON:
		writeErr = report.WriteJSON(stdout, r)
	case opts.SARIF:
		writeErr = report.WriteSARIF(stdout, r, report.SARIFOptions{ArtifactURI: artifactURI(opts.Path), ToolVersion: opts.ToolVersion})
	default:
		report.WriteText(stdout, r)
	}
	outDur := time.Since(t0)

	if writeErr != nil {
		fmt.Fprintln(stderr, "write output:", writeErr)
		return app.ExitUsage
	}

	if opts.Timings {
		writeTimings(stderr, timing, outDur)
	}

	if r.IsError() || r.Reaches(failOn) {
		return app.ExitFail
	}
	return app.ExitOK
}

func artifactURI(path string) string {
	if path == "-" {
		return ""
	}
	return path
}

func writeTimings(w io.Writer, t analyzer.Timing, outDur time.Duration) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Timings ===")
	fmt.Fprintf(w, "%-25s  %s\n", "import extraction", fmtDur(t.ParseTime))
	fmt.Fprintf(w, "%-25s  %s  (%d packages, %d workers)\n",
		"package verification", fmtDur(t.Total-t.ParseTime), t.PackageCount, t.Workers)
	fmt.Fprintf(w, "  %-23s  %s  (%d calls)\n", "registry", fmtDur(t.RegistryTime), t.RegistryCalls)
	fmt.Fprintf(w, "  %-23s  %s  (%d calls)\n", "similarity", fmtDur(t.SimilarityTime), t.SimilarityCalls)
	fmt.Fprintf(w, "  %-23s  %s  (%d calls)\n", "github API", fmtDur(t.PopularityTime), t.PopularityCalls)
	fmt.Fprintf(w, "%-25s  %s\n", "output formatting", fmtDur(outDur))
	fmt.Fprintln(w, strings.Repeat("─", 40))
	fmt.Fprintf(w, "%-25s  %s\n", "total", fmtDur(t.Total+outDur))
}

func fmtDur(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.2fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}
