package cmd

import (
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/relinkhq/relink/internal/feedback"
	"github.com/relinkhq/relink/internal/output"
)

func newFeedbackCmd() *cobra.Command {
	var (
		requestID string
		objectID  string
		branches  []string
		correct   bool
		incorrect bool
	)

	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Apply a user-confirmed match outcome",
		Long: `Feedback records whether a proposed match was confirmed correct or
incorrect. It updates each branch's reliability belief, nudges the
object's confidence, and appends an immutable audit event.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.New(os.Stdout)

			if correct == incorrect {
				out.Error("exactly one of --correct or --incorrect is required")
				return cmd.Usage()
			}
			if requestID == "" {
				requestID = uuid.NewString()
			}

			r, err := openReconciler()
			if err != nil {
				return err
			}
			defer r.Close()

			ev := feedback.Event{
				RequestID:       requestID,
				CorrectObjectID: objectID,
				BranchesUsed:    branches,
				WasCorrect:      correct,
				Timestamp:       time.Now(),
			}
			if err := r.Feedback(cmd.Context(), ev); err != nil {
				// Best-effort: some steps may have applied. Report, don't roll back.
				out.Errorf("feedback partially applied: %v", err)
				return err
			}

			out.Successf("feedback recorded for request %s", requestID)
			return nil
		},
	}

	cmd.Flags().StringVar(&requestID, "request", "", "Request id the feedback refers to (generated if omitted)")
	cmd.Flags().StringVar(&objectID, "object", "", "Confirmed object id")
	cmd.Flags().StringSliceVar(&branches, "branches", nil, "Branch names that contributed to the match")
	cmd.Flags().BoolVar(&correct, "correct", false, "The match was confirmed correct")
	cmd.Flags().BoolVar(&incorrect, "incorrect", false, "The match was confirmed incorrect")
	_ = cmd.MarkFlagRequired("object")

	return cmd
}
