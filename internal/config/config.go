package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/FluidXR/untether/internal/wireless"
)

// DeviceConfig stores per-device settings.
type DeviceConfig struct {
	Nickname string `yaml:"nickname,omitempty"`
	// WiFiIP overrides the address the device reports for itself.
	WiFiIP string `yaml:"wifi_ip,omitempty"`
	Port   int    `yaml:"port,omitempty"`
}

// Analytics configures the anonymous usage event sent after a successful
// switch. Nothing is sent unless a write key is configured.
type Analytics struct {
	Disabled bool   `yaml:"disabled"`
	ClientID string `yaml:"client_id,omitempty"`
	WriteKey string `yaml:"write_key,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

// Config is the top-level configuration.
type Config struct {
	Port            int                     `yaml:"port"`
	AckTimeout      time.Duration           `yaml:"ack_timeout"`
	ReattachTimeout time.Duration           `yaml:"reattach_timeout"`
	PollInterval    time.Duration           `yaml:"poll_interval"`
	AttemptTimeout  time.Duration           `yaml:"attempt_timeout"`
	History         bool                    `yaml:"history"`
	Devices         map[string]DeviceConfig `yaml:"devices,omitempty"`
	Analytics       Analytics               `yaml:"analytics"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:            wireless.DefaultPort,
		AckTimeout:      wireless.DefaultAckTimeout,
		ReattachTimeout: wireless.DefaultReattachTimeout,
		PollInterval:    wireless.DefaultPollInterval,
		AttemptTimeout:  wireless.DefaultAttemptTimeout,
		History:         true,
		Devices:         make(map[string]DeviceConfig),
	}
}

// ConfigDir returns the config directory path.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "untether")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "untether")
}

// ConfigPath returns the config file path.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// Load reads the config file, returning defaults if it doesn't exist.
func Load() (*Config, error) {
	path := ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Devices == nil {
		cfg.Devices = make(map[string]DeviceConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to disk.
func Save(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	path := ConfigPath()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks ports and durations.
func (c *Config) Validate() error {
	if !wireless.ValidPort(c.Port) {
		return fmt.Errorf("port %d out of range 1-65535", c.Port)
	}
	for serial, dc := range c.Devices {
		if dc.Port != 0 && !wireless.ValidPort(dc.Port) {
			return fmt.Errorf("device %s: port %d out of range 1-65535", serial, dc.Port)
		}
	}
	for name, d := range map[string]time.Duration{
		"ack_timeout":      c.AckTimeout,
		"reattach_timeout": c.ReattachTimeout,
		"poll_interval":    c.PollInterval,
		"attempt_timeout":  c.AttemptTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	return nil
}

// Target returns the host override and port to use for a device.
func (c *Config) Target(serial string) (host string, port int) {
	port = c.Port
	if dc, ok := c.Devices[serial]; ok {
		host = dc.WiFiIP
		if dc.Port != 0 {
			port = dc.Port
		}
	}
	return host, port
}

// Nickname returns the nickname for a device, or "".
func (c *Config) Nickname(serial string) string {
	return c.Devices[serial].Nickname
}

// Orchestrator returns the orchestrator timings from the config.
func (c *Config) Orchestrator() wireless.Options {
	return wireless.Options{
		AckTimeout:     c.AckTimeout,
		PollInterval:   c.PollInterval,
		AttemptTimeout: c.AttemptTimeout,
	}
}
