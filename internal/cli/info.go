package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/gpurelay/gpurelay/pkg/smi"
)

// deviceIndices resolves an optional [index] argument: with no argument
// every device the worker serves is selected.
func deviceIndices(client *smi.Client, args []string) ([]int, error) {
	if len(args) == 1 {
		idx, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("invalid device index %q", args[0])
		}
		return []int{idx}, nil
	}
	var count int
	if status := client.ProcessorCount(&count); status != smi.Success {
		return nil, fmt.Errorf("querying device count: %s", status)
	}
	indices := make([]int, count)
	for i := range indices {
		indices[i] = i
	}
	return indices, nil
}

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info [index]",
	Short: "Show the static identity of a device",
	Long: `Show the static identity of a device: name, serial number, PCI IDs
and compute unit count. With no index, every device is shown.

Examples:
  # Show all devices
  gpurelay-smi info

  # Show device 0 in JSON format
  gpurelay-smi info 0 -j`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	client, err := connect()
	if err != nil {
		return err
	}
	defer client.Shutdown()

	indices, err := deviceIndices(client, args)
	if err != nil {
		return err
	}

	type infoOut struct {
		Index int `json:"index"`
		smi.DeviceInfo
	}
	out := make([]infoOut, 0, len(indices))
	for _, i := range indices {
		var info smi.DeviceInfo
		if status := client.DeviceInfo(&info, i); status != smi.Success {
			return fmt.Errorf("querying device %d info: %s", i, status)
		}
		out = append(out, infoOut{Index: i, DeviceInfo: info})
	}

	if jsonOutput {
		printJSON(out)
		return nil
	}
	for _, o := range out {
		fmt.Printf("GPU %d:\n", o.Index)
		fmt.Printf("  Name: %s\n", o.Name)
		fmt.Printf("  Serial: %s\n", o.Serial)
		fmt.Printf("  Vendor ID: 0x%04x\n", o.VendorID)
		fmt.Printf("  Device ID: 0x%04x\n", o.DeviceID)
		fmt.Printf("  Revision: 0x%02x\n", o.RevisionID)
		fmt.Printf("  Compute Units: %d\n", o.ComputeUnits)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
