package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/relinkhq/relink/internal/output"
)

func newRankCmd() *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:   "rank [file]",
		Short: "Rank catalog candidates against query embeddings",
		Long: `Rank reads a JSON request (from file or stdin) with query embeddings
and metadata, and prints the top-K candidate objects from the catalog.
Branch outputs in the input are ignored; use analyze for fusion.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(args)
			if err != nil {
				return err
			}
			if k > 0 {
				in.K = k
			}

			r, err := openReconciler()
			if err != nil {
				return err
			}
			defer r.Close()

			req := in.toRequest()
			candidates, err := r.Rank(cmd.Context(), req.Query, req.K)
			if err != nil {
				return err
			}
			return output.New(os.Stdout).JSON(candidates)
		},
	}

	cmd.Flags().IntVarP(&k, "top", "k", 0, "Number of candidates to return (default from config)")
	return cmd
}
