package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gpurelay/gpurelay/pkg/smi"
)

// powerCmd represents the power command
var powerCmd = &cobra.Command{
	Use:   "power [index]",
	Short: "Show the power envelope of a device",
	Long: `Show the power envelope of a device: current and average draw, the
power cap and the rail voltages. With no index, every device is shown.

Examples:
  # Power envelope of all devices
  gpurelay-smi power

  # Power envelope of device 0 in JSON format
  gpurelay-smi power 0 -j`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPower,
}

func runPower(cmd *cobra.Command, args []string) error {
	client, err := connect()
	if err != nil {
		return err
	}
	defer client.Shutdown()

	indices, err := deviceIndices(client, args)
	if err != nil {
		return err
	}

	type powerOut struct {
		Index int `json:"index"`
		smi.PowerInfo
	}
	out := make([]powerOut, 0, len(indices))
	for _, i := range indices {
		var p smi.PowerInfo
		if status := client.PowerInfo(&p, i); status != smi.Success {
			return fmt.Errorf("querying device %d power: %s", i, status)
		}
		out = append(out, powerOut{Index: i, PowerInfo: p})
	}

	if jsonOutput {
		printJSON(out)
		return nil
	}
	for _, o := range out {
		fmt.Printf("GPU %d:\n", o.Index)
		fmt.Printf("  Current: %.1fW\n", float64(o.CurrentMilliW)/1000)
		fmt.Printf("  Average: %.1fW\n", float64(o.AverageMilliW)/1000)
		fmt.Printf("  Cap: %.1fW\n", float64(o.CapMilliW)/1000)
		fmt.Printf("  GFX Voltage: %dmV\n", o.GfxVoltageMilliV)
		fmt.Printf("  SoC Voltage: %dmV\n", o.SocVoltageMilliV)
		fmt.Printf("  Mem Voltage: %dmV\n", o.MemVoltageMilliV)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(powerCmd)
}
