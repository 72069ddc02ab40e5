package cmd

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/FluidXR/untether/internal/config"
	"github.com/FluidXR/untether/internal/history"
)

var (
	historySerial string
	historyLimit  int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent switch attempts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := history.Open(config.ConfigDir())
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer db.Close()

		attempts, err := db.List(historySerial, historyLimit)
		if err != nil {
			return err
		}
		if len(attempts) == 0 {
			fmt.Println("No switch attempts recorded.")
			return nil
		}

		for _, a := range attempts {
			addr := "-"
			if a.Host != "" {
				addr = net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
			}
			status := a.Status
			if a.AlreadySwitched {
				status += " (already wireless)"
			}
			if a.Reason != "" {
				status += " (" + a.Reason + ")"
			}
			fmt.Printf("%s  %-20s %-21s %6s  %s\n",
				a.FinishedAt.Local().Format("2006-01-02 15:04:05"),
				a.DeviceSerial, addr, a.Duration().Round(100*time.Millisecond), status)
			if a.Detail != "" {
				fmt.Printf("  %s\n", a.Detail)
			}
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVarP(&historySerial, "device", "d", "", "only show attempts for this serial")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of attempts to show (0 for all)")
	rootCmd.AddCommand(historyCmd)
}
