package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/relinkhq/relink/internal/output"
)

func newReliabilityCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "reliability",
		Short: "Show the per-branch reliability belief table",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openReconciler()
			if err != nil {
				return err
			}
			defer r.Close()

			table, err := r.Reliability(cmd.Context())
			if err != nil {
				return err
			}

			out := output.New(os.Stdout)
			if asJSON {
				return out.JSON(table)
			}

			names := make([]string, 0, len(table))
			for name := range table {
				names = append(names, name)
			}
			sort.Strings(names)

			fmt.Printf("%-26s %8s %8s %8s\n", "BRANCH", "ALPHA", "BETA", "MEAN")
			for _, name := range names {
				rec := table[name]
				fmt.Printf("%-26s %8.1f %8.1f %8.3f\n", name, rec.Alpha, rec.Beta, rec.Mean())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}
