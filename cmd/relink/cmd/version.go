package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/relinkhq/relink/internal/output"
	"github.com/relinkhq/relink/pkg/version"
)

func newVersionCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version and build information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON {
				return output.New(os.Stdout).JSON(version.GetInfo())
			}
			fmt.Println(version.String())
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}
