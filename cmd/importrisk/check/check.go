package check

import (
	"context"
	"fmt"
	"io"

	"github.com/1homsi/importrisk/internal/app"
	"github.com/1homsi/importrisk/internal/registry"
	"github.com/1homsi/importrisk/internal/report"
	"github.com/1homsi/importrisk/internal/risk"
	"github.com/spf13/cobra"
)

type Options struct {
	Packages  []string
	Ecosystem string
	JSON      bool
	FailOn    string
}

// NewCommand returns the check subcommand.
func NewCommand(global *app.Options) *cobra.Command {
	var opts Options
	cmd := &cobra.Command{
		Use:   "check <package>...",
		Short: "Rate package names without parsing any source",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Packages = args
			a, err := app.Bootstrap(cmd.Context(), *global)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			if code := Run(cmd.Context(), a, opts, cmd.OutOrStdout(), cmd.ErrOrStderr()); code != app.ExitOK {
				return &app.ExitError{Code: code}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Ecosystem, "ecosystem", "python", "python|javascript")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "JSON output")
	cmd.Flags().StringVar(&opts.FailOn, "fail-on", "", "exit 1 when any package reaches low|medium|high")
	return cmd
}

func Run(ctx context.Context, a *app.App, opts Options, stdout, stderr io.Writer) int {
	var failOn risk.Level
	if opts.FailOn != "" {
		lvl, err := risk.ParseLevel(opts.FailOn)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return app.ExitUsage
		}
		failOn = lvl
	}

	eco, err := registry.ParseEcosystem(opts.Ecosystem)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return app.ExitUsage
	}

	r := a.Analyzer.AnalyzePackages(ctx, opts.Packages, eco)
	if opts.JSON {
		if err := report.WriteJSON(stdout, r); err != nil {
			fmt.Fprintln(stderr, "write output:", err)
			return app.ExitUsage
		}
	} else {
		report.WriteText(stdout, r)
	}

	if r.Reaches(failOn) {
		return app.ExitFail
	}
	return app.ExitOK
}
