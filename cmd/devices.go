package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.chromium.org/luci/common/logging"

	"github.com/FluidXR/untether/internal/adb"
	"github.com/FluidXR/untether/internal/config"
	"github.com/FluidXR/untether/internal/history"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List attached devices and their last wireless address",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		devices, err := adb.NewClient().Devices(ctx)
		if err != nil {
			return err
		}
		if len(devices) == 0 {
			fmt.Println("No devices connected.")
			return nil
		}

		var db *history.DB
		if cfg.History {
			if db, err = history.Open(config.ConfigDir()); err != nil {
				logging.Warningf(ctx, "History unavailable: %s", err)
			} else {
				defer db.Close()
			}
		}

		for _, d := range devices {
			nickname := ""
			if nick := cfg.Nickname(d.Serial); nick != "" {
				nickname = fmt.Sprintf(" (%s)", nick)
			}

			status := d.State
			switch {
			case d.IsUnauthorized():
				status = "UNAUTHORIZED"
			case !d.IsOnline():
				status = "OFFLINE"
			}

			fmt.Printf("%-22s %s  [%s] [%s]%s\n",
				d.Serial, d.Model, d.ConnType, status, nickname)

			if db == nil {
				continue
			}
			last, err := db.LastSuccess(d.Serial)
			if err != nil || last == nil {
				continue
			}
			stats, err := db.GetDeviceStats(d.Serial)
			if err != nil {
				continue
			}
			fmt.Printf("  Last wireless: %s:%d on %s | Switches: %d ok, %d failed\n",
				last.Host, last.Port, last.FinishedAt.Local().Format("2006-01-02 15:04"),
				stats.Succeeded, stats.Failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
