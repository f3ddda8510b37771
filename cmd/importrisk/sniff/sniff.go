package sniff

import (
	"fmt"
	"io"

	"github.com/1homsi/importrisk/internal/app"
	sniffer "github.com/1homsi/importrisk/internal/sniff"
	"github.com/spf13/cobra"
)

// NewCommand returns the sniff subcommand. It needs no configuration.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sniff [file|-]",
		Short: "Print the detected language of a snippet",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			if code := Run(path, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr()); code != app.ExitOK {
				return &app.ExitError{Code: code}
			}
			return nil
		},
	}
}

func Run(path string, stdin io.Reader, stdout, stderr io.Writer) int {
	src, err := app.ReadSource(path, stdin)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return app.ExitUsage
	}
	fmt.Fprintln(stdout, sniffer.Detect(string(src)))
	return app.ExitOK
}
