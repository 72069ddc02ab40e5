package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.chromium.org/luci/common/logging"
	"go.chromium.org/luci/common/logging/gologger"
)

// Version of Untether.
const Version = "0.1.0"

var verbose bool

var rootCmd = &cobra.Command{
	Use:     "untether",
	Short:   "Switch Android devices from USB to wireless debugging",
	Version: Version,
	Long: `Untether tells a USB-attached Android device to restart adbd in TCP/IP mode,
then waits until the device is reachable over the network so the cable can be unplugged.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			cmd.SetContext(logging.SetLevel(cmd.Context(), logging.Debug))
		}
	},
}

// requireDeps returns a PreRunE that checks for external dependencies
// and prompts to nickname any new devices.
func requireDeps() func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := checkDeps(); err != nil {
			return err
		}
		checkNewDevices(cmd.Context())
		return nil
	}
}

// Execute runs the root command.
func Execute() {
	ctx := gologger.StdConfig.Use(context.Background())
	ctx = logging.SetLevel(ctx, logging.Warning)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every adb call and reachability attempt")
}
