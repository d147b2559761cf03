package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plantpulse/plant_hook/internal/dispatch"
)

// subscriptionCmd represents the subscription command
var subscriptionCmd = &cobra.Command{
	Use:   "subscription",
	Short: "Manage webhook subscriptions",
	Long:  `Inspect and exercise webhook subscriptions.`,
}

// testCmd represents the subscription test command
var testCmd = &cobra.Command{
	Use:   "test [subscription-id]",
	Short: "Send a test notification to a subscription",
	Long: `Send a one-shot test notification to the given subscription's endpoint.
The attempt is recorded in the delivery ledger like any real delivery.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]

		resp, err := makeRequest("POST", fmt.Sprintf("/v1/subscriptions/%s/test", id), nil)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		var out dispatch.Outcome
		if err := decodeResponse(resp, &out); err != nil {
			return err
		}

		if outputJSON {
			printOutput(out)
		} else if out.Success {
			fmt.Printf("Test notification delivered (HTTP %d), entry %s\n", out.HTTPStatus, out.EntryID)
		} else {
			fmt.Printf("Test notification failed: %s (entry %s)\n", out.Error, out.EntryID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(subscriptionCmd)
	subscriptionCmd.AddCommand(testCmd)
}
