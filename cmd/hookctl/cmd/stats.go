package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plantpulse/plant_hook/internal/ledger"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show retry statistics",
	Long:  `Show pending and exhausted entry counts and the total number of retries performed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := makeRequest("GET", "/v1/stats", nil)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		var st ledger.Stats
		if err := decodeResponse(resp, &st); err != nil {
			return err
		}

		if outputJSON {
			printOutput(st)
		} else {
			fmt.Printf("Pending entries:   %d\n", st.Pending)
			fmt.Printf("Exhausted entries: %d\n", st.Exhausted)
			fmt.Printf("Total retries:     %d\n", st.TotalRetries)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
