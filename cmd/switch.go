package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.chromium.org/luci/common/clock"
	"go.chromium.org/luci/common/logging"

	"github.com/FluidXR/untether/internal/adb"
	"github.com/FluidXR/untether/internal/config"
	"github.com/FluidXR/untether/internal/history"
	"github.com/FluidXR/untether/internal/progress"
	"github.com/FluidXR/untether/internal/report"
	"github.com/FluidXR/untether/internal/telemetry"
	"github.com/FluidXR/untether/internal/wireless"
)

var (
	switchSerial     string
	switchHost       string
	switchPort       int
	switchTimeout    time.Duration
	switchNoProgress bool
)

var switchCmd = &cobra.Command{
	Use:   "switch",
	Short: "Switch a USB-attached device to wireless debugging",
	Long: `Switches the device to TCP/IP mode and waits until it is reachable over the network.

The device address is taken from --host, the device's wifi_ip in the config, or
the address the device reports for wlan0, in that order. Press Ctrl-C to cancel;
a command already sent to the device is allowed to finish.`,
	Args:    cobra.NoArgs,
	PreRunE: requireDeps(),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		client := adb.NewClient()
		serial, err := pickDevice(ctx, client, cfg, switchSerial)
		if err != nil {
			return err
		}

		host, port := cfg.Target(serial)
		if cmd.Flags().Changed("host") {
			host = switchHost
		}
		if cmd.Flags().Changed("port") {
			port = switchPort
		}
		timeout := cfg.ReattachTimeout
		if cmd.Flags().Changed("timeout") {
			timeout = switchTimeout
		}

		rep := &report.Reporter{Out: os.Stdout, Version: Version}
		if cfg.History {
			db, err := history.Open(config.ConfigDir())
			if err != nil {
				logging.Warningf(ctx, "History disabled: %s", err)
			} else {
				defer db.Close()
				rep.History = db
			}
		}
		tel, err := newTelemetry(ctx, cfg)
		if err != nil {
			logging.Debugf(ctx, "Analytics disabled: %s", err)
		} else {
			defer tel.Close()
			rep.Telemetry = tel
		}

		// adb connect attaches the local adb server once the port accepts
		// connections.
		prober := wireless.Chain(wireless.DialProber, wireless.ProberFunc(func(ctx context.Context, addr wireless.Address) error {
			return client.Connect(ctx, addr.Host, addr.Port)
		}))
		orch := wireless.NewOrchestrator(prober, cfg.Orchestrator())
		req := wireless.Request{
			Device:  client.Handle(serial),
			Host:    host,
			Port:    port,
			Timeout: timeout,
		}

		sink := progress.ForFile(os.Stdout, switchNoProgress)
		sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()
		go func() {
			<-sigCtx.Done()
			sink.Cancel()
		}()

		started := clock.Now(ctx)
		out := wireless.Start(sigCtx, orch, req, sink, nil).Wait()
		sink.Finish()

		return rep.Report(ctx, report.Attempt{
			Serial:    serial,
			Requested: wireless.Address{Host: host, Port: port},
			Outcome:   out,
			Started:   started,
			Finished:  clock.Now(ctx),
		})
	},
}

// pickDevice returns serial if set, the only USB device, or asks the user
// to choose one.
func pickDevice(ctx context.Context, client *adb.Client, cfg *config.Config, serial string) (string, error) {
	if serial != "" {
		return serial, nil
	}
	devices, err := client.USBDevices(ctx)
	if err != nil {
		return "", err
	}
	switch len(devices) {
	case 0:
		return "", fmt.Errorf("no online USB devices. Connect a device and accept the USB debugging prompt")
	case 1:
		return devices[0].Serial, nil
	}
	if !interactive() {
		return "", fmt.Errorf("%d devices attached; choose one with --device", len(devices))
	}

	items := make([]string, len(devices))
	for i, d := range devices {
		items[i] = d.String()
		if nick := cfg.Nickname(d.Serial); nick != "" {
			items[i] += " (" + nick + ")"
		}
	}
	prompt := promptui.Select{
		Label:     "Choose the device to switch",
		Items:     items,
		Templates: &promptui.SelectTemplates{},
	}
	i, _, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("you didn't select anything")
	}
	return devices[i].Serial, nil
}

// newTelemetry returns the analytics client, saving a new anonymous client
// ID on first use.
func newTelemetry(ctx context.Context, cfg *config.Config) (telemetry.Client, error) {
	if cfg.Analytics.WriteKey != "" && !cfg.Analytics.Disabled && telemetry.EnsureClientID(&cfg.Analytics) {
		if err := config.Save(cfg); err != nil {
			logging.Warningf(ctx, "Could not save config: %s", err)
		}
	}
	return telemetry.NewClient(cfg.Analytics)
}

func init() {
	switchCmd.Flags().StringVarP(&switchSerial, "device", "d", "", "serial of the USB device to switch")
	switchCmd.Flags().StringVar(&switchHost, "host", "", "address to reach the device at, overriding the reported one")
	switchCmd.Flags().IntVarP(&switchPort, "port", "p", wireless.DefaultPort, "port adbd should listen on")
	switchCmd.Flags().DurationVar(&switchTimeout, "timeout", wireless.DefaultReattachTimeout, "how long to wait for the device to become reachable")
	switchCmd.Flags().BoolVar(&switchNoProgress, "no-progress", false, "print plain progress lines instead of a bar")
	rootCmd.AddCommand(switchCmd)
}
