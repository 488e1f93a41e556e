package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/relinkhq/relink/internal/output"
	"github.com/relinkhq/relink/internal/ranking"
)

func newObjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "objects",
		Short: "Inspect and maintain the object catalog",
	}
	cmd.AddCommand(newObjectsAddCmd())
	cmd.AddCommand(newObjectsShowCmd())
	return cmd
}

func newObjectsAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add [file]",
		Short: "Upsert an object record from JSON (file or stdin)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var reader io.Reader = os.Stdin
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open input: %w", err)
				}
				defer f.Close()
				reader = f
			}

			var obj ranking.ObjectRecord
			if err := json.NewDecoder(reader).Decode(&obj); err != nil {
				return fmt.Errorf("decode object: %w", err)
			}

			r, err := openReconciler()
			if err != nil {
				return err
			}
			defer r.Close()

			if err := r.AddObject(cmd.Context(), obj); err != nil {
				return err
			}
			output.New(os.Stdout).Successf("object %s stored", obj.ObjectID)
			return nil
		},
	}
}

func newObjectsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <object-id>",
		Short: "Print one object record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openReconciler()
			if err != nil {
				return err
			}
			defer r.Close()

			obj, err := r.GetObject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return output.New(os.Stdout).JSON(obj)
		},
	}
}
