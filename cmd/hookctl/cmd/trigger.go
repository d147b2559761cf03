package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plantpulse/plant_hook/internal/notify"
)

// triggerCmd represents the trigger command
var triggerCmd = &cobra.Command{
	Use:   "trigger [event-type] [data-json]",
	Short: "Trigger an event fan-out",
	Long: `Trigger a platform event and fan it out to every matching webhook
subscription.

Example:
  hookctl trigger quality_alert '{"machine_id":"press-4","defect_rate":0.12,"severity":"critical"}'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eventType := args[0]

		data := map[string]any{}
		if len(args) == 2 {
			if err := json.Unmarshal([]byte(args[1]), &data); err != nil {
				return fmt.Errorf("invalid data JSON: %w", err)
			}
		}

		resp, err := makeRequest("POST", "/v1/trigger", map[string]any{
			"event_type": eventType,
			"data":       data,
		})
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		var sum notify.Summary
		if err := decodeResponse(resp, &sum); err != nil {
			return err
		}

		if outputJSON {
			printOutput(sum)
		} else {
			fmt.Printf("Triggered %s: %d matched, %d sent, %d failed\n",
				sum.EventType, sum.Matched, sum.Sent, sum.Failed)
			for _, out := range sum.Outcomes {
				status := "sent"
				if !out.Success {
					status = fmt.Sprintf("failed (%s)", out.Error)
				}
				fmt.Printf("  entry %s: %s\n", out.EntryID, status)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(triggerCmd)
}
