// Package cli implements the gpurelay-smi command line tool: a thin
// operator-facing front end over the telemetry client stub.
package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/gpurelay/gpurelay/pkg/smi"
)

var (
	// Global flags
	jsonOutput bool
	flagHost   string
	flagPort   int
	flagWait   int
)

var ErrAlreadyHandled = errors.New("already handled")

var errorLabel = color.New(color.FgRed)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gpurelay-smi [command] [flags]",
	Short: "gpurelay-smi - query telemetry from a gpurelay worker",
	Long: `gpurelay-smi queries device telemetry from a gpurelay worker over the
relay protocol. The worker address is taken from GPURELAY_HOST and
GPURELAY_PORT unless overridden with --host and --port.

Examples:
  # List all devices served by the worker
  gpurelay-smi list

  # Show a metrics snapshot for device 0
  gpurelay-smi metrics 0

  # Show the power envelope of every device, as JSON
  gpurelay-smi power -j`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVarP(&flagHost, "host", "", "", "Worker host to connect to (overrides GPURELAY_HOST)")
	rootCmd.PersistentFlags().IntVarP(&flagPort, "port", "", 0, "Worker port to connect to (overrides GPURELAY_PORT)")
	rootCmd.PersistentFlags().IntVarP(&flagWait, "wait", "w", 0, "Seconds to keep retrying the initial connection")

	rootCmd.AddCommand(newVersionCmd())
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SilenceErrors = true // Prevent Cobra from printing the error
	rootCmd.SilenceUsage = true  // Prevent Cobra from printing usage on error

	err := rootCmd.Execute()
	if err != nil {
		if errors.Is(err, ErrAlreadyHandled) {
			os.Exit(1)
		}
		if jsonOutput {
			kv := map[string]string{
				"error": err.Error(),
			}
			printJSON(kv)
		} else {
			errorLabel.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// connect opens a telemetry session with the worker, honoring the
// address flags. With --wait the initial connection is retried with a
// fixed delay until the deadline passes; individual queries after that
// are never retried.
func connect() (*smi.Client, error) {
	cfg := &smi.Config{Host: flagHost, Port: flagPort}

	var client *smi.Client
	attempt := func() error {
		c, status := smi.Init(cfg)
		if status != smi.Success {
			return fmt.Errorf("connecting to worker: %s", status)
		}
		client = c
		return nil
	}

	if flagWait <= 0 {
		if err := attempt(); err != nil {
			return nil, err
		}
		return client, nil
	}
	err := retry.Do(attempt,
		retry.Attempts(uint(flagWait)+1),
		retry.Delay(time.Second),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	return client, err
}

// newVersionCmd creates and returns a new version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of gpurelay-smi",
		Run: func(cmd *cobra.Command, args []string) {
			if jsonOutput {
				kv := map[string]string{
					"version": getCLIVersion(),
				}
				printJSON(kv)
			} else {
				cmd.Printf("gpurelay-smi %s\n", getCLIVersion())
			}
		},
	}
}

// printJSON prints the given value as JSON to stdout
func printJSON(data interface{}) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(jsonData))
}

// getCLIVersion returns the current CLI version
func getCLIVersion() string {
	return "v0.1.0-alpha.1"
}
