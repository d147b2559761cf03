package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plantpulse/plant_hook/internal/ledger"
)

// entryCmd represents the entry command
var entryCmd = &cobra.Command{
	Use:   "entry",
	Short: "Manage delivery ledger entries",
	Long:  `Inspect and retry delivery ledger entries.`,
}

// retryCmd represents the entry retry command
var retryCmd = &cobra.Command{
	Use:   "retry [entry-id]",
	Short: "Reset a failed entry for immediate redelivery",
	Long: `Reset a failed or exhausted ledger entry so the next sweep redelivers
it immediately, with a fresh retry budget. Entries that were already
delivered are rejected.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]

		resp, err := makeRequest("POST", fmt.Sprintf("/v1/entries/%s/retry", id), nil)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		var entry ledger.Entry
		if err := decodeResponse(resp, &entry); err != nil {
			return err
		}

		if outputJSON {
			printOutput(entry)
		} else {
			fmt.Printf("Entry %s reset: status=%s attempt=%d\n", entry.ID, entry.Status, entry.Attempt)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(entryCmd)
	entryCmd.AddCommand(retryCmd)
}
