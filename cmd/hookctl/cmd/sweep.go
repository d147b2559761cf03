package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plantpulse/plant_hook/internal/sweep"
)

// sweepCmd represents the sweep command
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one retry sweep now",
	Long: `Run one sweep pass immediately instead of waiting for the next
scheduled tick. If a sweep is already in progress the request is skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := makeRequest("POST", "/v1/sweep", nil)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		var res sweep.Result
		if err := decodeResponse(resp, &res); err != nil {
			return err
		}

		if outputJSON {
			printOutput(res)
		} else if res.Skipped {
			fmt.Println("Sweep skipped: another sweep is already running")
		} else {
			fmt.Printf("Sweep finished: %d processed, %d succeeded, %d failed\n",
				res.Processed, res.Succeeded, res.Failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
