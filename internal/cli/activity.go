package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gpurelay/gpurelay/pkg/smi"
)

// activityCmd represents the activity command
var activityCmd = &cobra.Command{
	Use:   "activity [index]",
	Short: "Show the engine busy percentages of a device",
	Long: `Show the graphics and memory engine busy percentages of a device.
With no index, every device is shown.

Examples:
  # Activity of all devices
  gpurelay-smi activity

  # Activity of device 0 in JSON format
  gpurelay-smi activity 0 -j`,
	Args: cobra.MaximumNArgs(1),
	RunE: runActivity,
}

func runActivity(cmd *cobra.Command, args []string) error {
	client, err := connect()
	if err != nil {
		return err
	}
	defer client.Shutdown()

	indices, err := deviceIndices(client, args)
	if err != nil {
		return err
	}

	type activityOut struct {
		Index int `json:"index"`
		smi.Activity
	}
	out := make([]activityOut, 0, len(indices))
	for _, i := range indices {
		var a smi.Activity
		if status := client.Activity(&a, i); status != smi.Success {
			return fmt.Errorf("querying device %d activity: %s", i, status)
		}
		out = append(out, activityOut{Index: i, Activity: a})
	}

	if jsonOutput {
		printJSON(out)
		return nil
	}
	for _, o := range out {
		fmt.Printf("GPU %d: gfx %d%%, mem %d%%\n", o.Index, o.GfxPct, o.MemPct)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(activityCmd)
}
