package cmd

import (
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/FluidXR/untether/internal/config"
	"github.com/FluidXR/untether/internal/wireless"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage untether configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		fmt.Printf("Config file: %s\n\n", config.ConfigPath())
		fmt.Printf("Port:             %d\n", cfg.Port)
		fmt.Printf("Ack timeout:      %s\n", cfg.AckTimeout)
		fmt.Printf("Reattach timeout: %s\n", cfg.ReattachTimeout)
		fmt.Printf("Poll interval:    %s\n", cfg.PollInterval)
		fmt.Printf("Attempt timeout:  %s\n", cfg.AttemptTimeout)
		fmt.Printf("History:          %t\n", cfg.History)
		analytics := "off"
		if cfg.Analytics.WriteKey != "" && !cfg.Analytics.Disabled {
			analytics = "on"
		}
		fmt.Printf("Analytics:        %s\n", analytics)

		fmt.Printf("\nDevices:\n")
		if len(cfg.Devices) == 0 {
			fmt.Println("  (none configured)")
		}
		for serial, dc := range cfg.Devices {
			fmt.Printf("  - %s", serial)
			if dc.Nickname != "" {
				fmt.Printf(" (%s)", dc.Nickname)
			}
			if dc.WiFiIP != "" {
				fmt.Printf(" [wifi: %s]", dc.WiFiIP)
			}
			if dc.Port != 0 {
				fmt.Printf(" [port: %d]", dc.Port)
			}
			fmt.Println()
		}
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.DefaultConfig()
		if err := config.Save(cfg); err != nil {
			return err
		}
		fmt.Printf("Config created at %s\n", config.ConfigPath())
		return nil
	},
}

// updateDevice loads the config, applies fn to the device entry and saves.
func updateDevice(serial string, fn func(*config.DeviceConfig) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	dc := cfg.Devices[serial]
	if err := fn(&dc); err != nil {
		return err
	}
	cfg.Devices[serial] = dc
	return config.Save(cfg)
}

var configNicknameCmd = &cobra.Command{
	Use:   "nickname <serial> <name>",
	Short: "Set a nickname for a device",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		serial, name := args[0], args[1]
		if err := updateDevice(serial, func(dc *config.DeviceConfig) error {
			dc.Nickname = name
			return nil
		}); err != nil {
			return err
		}
		fmt.Printf("Set nickname for %s: %s\n", serial, name)
		return nil
	},
}

var configSetWiFiCmd = &cobra.Command{
	Use:   "set-wifi <serial> <ip>",
	Short: "Set the WiFi IP to reach a device at, instead of the one it reports",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		serial, ip := args[0], args[1]
		if net.ParseIP(ip) == nil {
			return fmt.Errorf("%q is not an IP address", ip)
		}
		if err := updateDevice(serial, func(dc *config.DeviceConfig) error {
			dc.WiFiIP = ip
			return nil
		}); err != nil {
			return err
		}
		fmt.Printf("Set WiFi IP for %s: %s\n", serial, ip)
		return nil
	},
}

var configSetPortCmd = &cobra.Command{
	Use:   "set-port <serial> <port>",
	Short: "Set the TCP/IP port for a device",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		serial := args[0]
		port, err := strconv.Atoi(args[1])
		if err != nil || !wireless.ValidPort(port) {
			return fmt.Errorf("port %q out of range 1-65535", args[1])
		}
		if err := updateDevice(serial, func(dc *config.DeviceConfig) error {
			dc.Port = port
			return nil
		}); err != nil {
			return err
		}
		fmt.Printf("Set port for %s: %d\n", serial, port)
		return nil
	},
}

var configAnalyticsCmd = &cobra.Command{
	Use:       "analytics <on|off>",
	Short:     "Turn the anonymous switch event on or off",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		cfg.Analytics.Disabled = args[0] == "off"
		if err := config.Save(cfg); err != nil {
			return err
		}
		fmt.Printf("Analytics %s\n", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configNicknameCmd)
	configCmd.AddCommand(configSetWiFiCmd)
	configCmd.AddCommand(configSetPortCmd)
	configCmd.AddCommand(configAnalyticsCmd)
	rootCmd.AddCommand(configCmd)
}
