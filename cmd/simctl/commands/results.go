package commands

import (
	"encoding/json"
	"fmt"

	"github.com/equihomepartners/core-engine/internal/resultstore"
	"github.com/spf13/cobra"
)

// newResultsCommand builds the "results" subcommand for reading a
// previously stored run summary back out of the file result store.
func newResultsCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "results [run-id]",
		Short: "Print a stored run summary by run_id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := resultstore.NewFile(dir)
			if err != nil {
				return fmt.Errorf("open result store: %w", err)
			}
			summary, err := store.GetResult(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(summary, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "./results", "result store directory")
	return cmd
}
