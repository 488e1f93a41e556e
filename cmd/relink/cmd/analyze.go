package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/relinkhq/relink/internal/fusion"
	"github.com/relinkhq/relink/internal/output"
	"github.com/relinkhq/relink/internal/ranking"
	"github.com/relinkhq/relink/internal/scoring"
	"github.com/relinkhq/relink/pkg/reconciler"
)

// analyzeInput is the JSON payload for analyze and rank: branch verdicts
// plus the query's embeddings and metadata.
type analyzeInput struct {
	RequestID string                `json:"request_id"`
	Branches  []fusion.BranchOutput `json:"branches"`
	Query     struct {
		Embeddings map[string][]float32 `json:"embeddings"`
		Timestamp  int64                `json:"timestamp"`
		Location   *scoring.Location    `json:"location"`
	} `json:"query"`
	K int `json:"k"`
}

func (in *analyzeInput) toRequest() reconciler.AnalyzeRequest {
	req := reconciler.AnalyzeRequest{
		RequestID: in.RequestID,
		Branches:  in.Branches,
		K:         in.K,
	}
	req.Query = ranking.Query{
		Embeddings: in.Query.Embeddings,
		Location:   in.Query.Location,
	}
	if in.Query.Timestamp > 0 {
		req.Query.Timestamp = time.Unix(in.Query.Timestamp, 0)
	}
	return req
}

func newAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [file]",
		Short: "Fuse branch outputs and rank candidate matches",
		Long: `Analyze reads a JSON request (from file or stdin) containing branch
outputs and query embeddings, fuses the branches into one calibrated
probability, ranks catalog candidates, and prints the combined result.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(args)
			if err != nil {
				return err
			}

			r, err := openReconciler()
			if err != nil {
				return err
			}
			defer r.Close()

			result, err := r.Analyze(cmd.Context(), in.toRequest())
			if err != nil {
				return err
			}
			return output.New(os.Stdout).JSON(result)
		},
	}
}

// readInput decodes the request payload from the file argument or stdin.
func readInput(args []string) (*analyzeInput, error) {
	var reader io.Reader = os.Stdin
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		reader = f
	}

	var in analyzeInput
	if err := json.NewDecoder(reader).Decode(&in); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	return &in, nil
}
