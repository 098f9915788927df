package cli

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/gpurelay/gpurelay/pkg/smi"
)

// deviceRow is one line of the list output.
type deviceRow struct {
	Index          int    `json:"index"`
	Name           string `json:"name"`
	Serial         string `json:"serial"`
	HotspotMilliC  int32  `json:"hotspotMilliC"`
	PowerMilliW    uint32 `json:"powerMilliW"`
	GfxActivityPct uint32 `json:"gfxActivityPct"`
	VramUsed       uint64 `json:"vramUsed"`
	VramTotal      uint64 `json:"vramTotal"`
}

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List devices served by the worker with a metrics summary",
	Long: `List devices served by the worker with a metrics summary.

Examples:
  # List all devices
  gpurelay-smi list

  # List all devices in JSON format
  gpurelay-smi list -j`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	client, err := connect()
	if err != nil {
		return err
	}
	defer client.Shutdown()

	var count int
	if status := client.ProcessorCount(&count); status != smi.Success {
		return fmt.Errorf("querying device count: %s", status)
	}

	rows := make([]deviceRow, 0, count)
	for i := 0; i < count; i++ {
		var info smi.DeviceInfo
		if status := client.DeviceInfo(&info, i); status != smi.Success {
			return fmt.Errorf("querying device %d info: %s", i, status)
		}
		var m smi.Metrics
		if status := client.Metrics(&m, i); status != smi.Success {
			return fmt.Errorf("querying device %d metrics: %s", i, status)
		}
		rows = append(rows, deviceRow{
			Index:          i,
			Name:           info.Name,
			Serial:         info.Serial,
			HotspotMilliC:  m.HotspotMilliC,
			PowerMilliW:    m.PowerMilliW,
			GfxActivityPct: m.GfxActivityPct,
			VramUsed:       m.VramUsed,
			VramTotal:      m.VramTotal,
		})
	}

	if jsonOutput {
		printJSON(rows)
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"GPU", "Name", "Serial", "Temp", "Power", "GFX%", "VRAM"})
	for _, r := range rows {
		t.AppendRow(table.Row{
			r.Index,
			r.Name,
			r.Serial,
			fmt.Sprintf("%.1fC", float64(r.HotspotMilliC)/1000),
			fmt.Sprintf("%.1fW", float64(r.PowerMilliW)/1000),
			fmt.Sprintf("%d%%", r.GfxActivityPct),
			fmt.Sprintf("%s / %s", formatBytes(r.VramUsed), formatBytes(r.VramTotal)),
		})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
	return nil
}

// formatBytes renders a byte count with a binary unit suffix.
func formatBytes(n uint64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1fGiB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1fMiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1fKiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%dB", n)
	}
}

func init() {
	rootCmd.AddCommand(listCmd)
}
