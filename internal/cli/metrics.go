package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gpurelay/gpurelay/pkg/smi"
)

// metricsCmd represents the metrics command
var metricsCmd = &cobra.Command{
	Use:   "metrics [index]",
	Short: "Show a point-in-time metrics snapshot for a device",
	Long: `Show a point-in-time metrics snapshot for a device: temperature,
power draw, engine activity, clocks and VRAM usage. With no index, every
device is shown.

Examples:
  # Snapshot of all devices
  gpurelay-smi metrics

  # Snapshot of device 1 in JSON format
  gpurelay-smi metrics 1 -j`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMetrics,
}

func runMetrics(cmd *cobra.Command, args []string) error {
	client, err := connect()
	if err != nil {
		return err
	}
	defer client.Shutdown()

	indices, err := deviceIndices(client, args)
	if err != nil {
		return err
	}

	type metricsOut struct {
		Index int `json:"index"`
		smi.Metrics
	}
	out := make([]metricsOut, 0, len(indices))
	for _, i := range indices {
		var m smi.Metrics
		if status := client.Metrics(&m, i); status != smi.Success {
			return fmt.Errorf("querying device %d metrics: %s", i, status)
		}
		out = append(out, metricsOut{Index: i, Metrics: m})
	}

	if jsonOutput {
		printJSON(out)
		return nil
	}
	for _, o := range out {
		fmt.Printf("GPU %d:\n", o.Index)
		fmt.Printf("  Hotspot: %.1fC\n", float64(o.HotspotMilliC)/1000)
		fmt.Printf("  Power: %.1fW\n", float64(o.PowerMilliW)/1000)
		fmt.Printf("  GFX Activity: %d%%\n", o.GfxActivityPct)
		fmt.Printf("  Mem Activity: %d%%\n", o.MemActivityPct)
		fmt.Printf("  GFX Clock: %dMHz\n", o.GfxClockMHz)
		fmt.Printf("  Mem Clock: %dMHz\n", o.MemClockMHz)
		fmt.Printf("  VRAM: %s / %s\n", formatBytes(o.VramUsed), formatBytes(o.VramTotal))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(metricsCmd)
}
