package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/1homsi/importrisk/internal/app"
	"github.com/1homsi/importrisk/internal/registry"
	"github.com/spf13/cobra"
)

type Options struct {
	Packages  []string
	Ecosystem string
	JSON      bool
}

// Entry is the registry view of one package.
type Entry struct {
	Package     string             `json:"package"`
	Ecosystem   registry.Ecosystem `json:"ecosystem"`
	URL         string             `json:"url"`
	Status      string             `json:"status"`
	StatusCode  int                `json:"status_code,omitempty"`
	Error       string             `json:"error,omitempty"`
	Subpackages []string           `json:"subpackages,omitempty"`
}

// NewCommand returns the lookup subcommand.
func NewCommand(global *app.Options) *cobra.Command {
	var opts Options
	cmd := &cobra.Command{
		Use:   "lookup <package>...",
		Short: "Show registry status and top-level modules of packages",
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
	return cmd
}

// Run exits 1 when any package is not found or unreachable.
func Run(ctx context.Context, a *app.App, opts Options, stdout, stderr io.Writer) int {
	eco, err := registry.ParseEcosystem(opts.Ecosystem)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return app.ExitUsage
	}

	entries := make([]Entry, 0, len(opts.Packages))
	allFound := true
	for _, name := range opts.Packages {
		e := Entry{Package: name, Ecosystem: eco}
		e.URL, _ = a.Registry.URL(name, eco)

		res := a.Registry.Lookup(ctx, name, eco)
		e.Status = res.Status.String()
		e.StatusCode = res.StatusCode
		if res.Err != nil {
			e.Error = res.Err.Error()
		}
		if res.Status == registry.Found && eco == registry.Python {
			e.Subpackages = a.Registry.Subpackages(ctx, name)
		}
		if res.Status != registry.Found {
			allFound = false
		}
		entries = append(entries, e)
	}

	if opts.JSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entries); err != nil {
			fmt.Fprintln(stderr, "write output:", err)
			return app.ExitUsage
		}
	} else {
		for _, e := range entries {
			fmt.Fprintf(stdout, "%-32s %-12s %s\n", e.Package, e.Status, e.URL)
			for _, sub := range e.Subpackages {
				fmt.Fprintf(stdout, "  provides: %s\n", sub)
			}
			if e.Error != "" {
				fmt.Fprintf(stdout, "  error: %s\n", e.Error)
			}
		}
	}

	if !allFound {
		return app.ExitFail
	}
	return app.ExitOK
}
