package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/manifoldco/promptui"
	"go.chromium.org/luci/common/logging"
	"golang.org/x/term"

	"github.com/FluidXR/untether/internal/adb"
	"github.com/FluidXR/untether/internal/config"
)

type dependency struct {
	name       string
	binary     string
	installCmd map[string]string // GOOS -> install command
}

var adbDependency = dependency{
	name:   "ADB (Android Debug Bridge)",
	binary: "adb",
	installCmd: map[string]string{
		"darwin":  "brew install android-platform-tools",
		"linux":   "sudo apt install android-tools-adb",
		"windows": "winget install Google.PlatformTools",
	},
}

// checkDeps verifies that adb is installed, offering to install it.
func checkDeps() error {
	dep := adbDependency
	if _, err := exec.LookPath(dep.binary); err == nil {
		return nil
	}
	fmt.Printf("Untether requires %s (%s), which is not installed.\n\n", dep.name, dep.binary)

	install, ok := dep.installCmd[runtime.GOOS]
	if !ok || !interactive() {
		return fmt.Errorf("%s is required but not installed", dep.binary)
	}

	prompt := promptui.Prompt{
		Label:     fmt.Sprintf("Run %q now", install),
		IsConfirm: true,
		Default:   "y",
	}
	if _, err := prompt.Run(); err != nil {
		return fmt.Errorf("%s is required but not installed", dep.binary)
	}

	fmt.Printf("Running: %s\n", install)
	parts := strings.Fields(install)
	c := exec.Command(parts[0], parts[1:]...)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	c.Stdin = os.Stdin
	if err := c.Run(); err != nil {
		return fmt.Errorf("install %s: %w", dep.binary, err)
	}
	if _, err := exec.LookPath(dep.binary); err != nil {
		return fmt.Errorf("%s is required but not installed", dep.binary)
	}
	fmt.Printf("%s installed successfully.\n\n", dep.name)
	return nil
}

// checkNewDevices prompts the user to nickname any newly discovered devices.
func checkNewDevices(ctx context.Context) {
	if !interactive() {
		return
	}
	cfg, err := config.Load()
	if err != nil {
		return
	}
	devices, err := adb.NewClient().USBDevices(ctx)
	if err != nil {
		return
	}

	changed := false
	for _, d := range devices {
		if _, known := cfg.Devices[d.Serial]; known {
			continue
		}
		fmt.Printf("\nNew device detected: %s\n", d)
		prompt := promptui.Prompt{Label: "Give it a nickname (or press Enter to skip)"}
		name, err := prompt.Run()
		if err != nil {
			return
		}
		dc := cfg.Devices[d.Serial]
		dc.Nickname = strings.TrimSpace(name)
		cfg.Devices[d.Serial] = dc
		changed = true
	}

	if changed {
		if err := config.Save(cfg); err != nil {
			logging.Warningf(ctx, "Could not save config: %s", err)
		}
	}
}

func interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
