package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/1homsi/importrisk/cmd/importrisk/analyze"
	"github.com/1homsi/importrisk/cmd/importrisk/check"
	"github.com/1homsi/importrisk/cmd/importrisk/lookup"
	"github.com/1homsi/importrisk/cmd/importrisk/serve"
	"github.com/1homsi/importrisk/cmd/importrisk/sniff"
	"github.com/1homsi/importrisk/internal/app"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// .env is optional; it usually only carries GITHUB_TOKEN.
	_ = godotenv.Load()
	os.Exit(execute(os.Args[1:]))
}

func execute(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return app.ExitOK
	}

	var exitErr *app.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintln(os.Stderr, "importrisk:", exitErr.Err)
		}
		return exitErr.Code
	}
	fmt.Fprintln(os.Stderr, "importrisk:", err)
	return app.ExitUsage
}

func newRootCmd() *cobra.Command {
	opts := &app.Options{}
	root := &cobra.Command{
		Use:   "importrisk",
		Short: "Flag hallucinated and typosquatted imports",
		Long: `importrisk checks the packages a code snippet imports against the public
registries (PyPI, npm), a curated corpus of known-good names and GitHub
popularity, and rates each one low, medium or high risk.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default ./configs/importrisk.yaml)")
	root.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "development logging")

	root.AddCommand(
		analyze.NewCommand(opts, version),
		check.NewCommand(opts),
		sniff.NewCommand(),
		lookup.NewCommand(opts),
		serve.NewCommand(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version)
			},
		},
	)
	return root
}
