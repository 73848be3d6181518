package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/cryptoadvance/specter-bootloader-go/platform"
	"github.com/cryptoadvance/specter-bootloader-go/simplatform"
)

// deviceConfig describes a simulated device's flash layout, removable
// media directories and platform identifier, loaded from a YAML file
// alongside the bootloader's own key/policy configuration.
type deviceConfig struct {
	FlashImage string                   `yaml:"flash_image"`
	FlashSize  int64                    `yaml:"flash_size"`
	MediaDirs  []string                 `yaml:"media_dirs"`
	PlatformID string                   `yaml:"platform_id"`
	FlashMap   map[string]platform.Addr `yaml:"flash_map"`
}

var flashMapItemNames = map[string]platform.FlashMapItem{
	"firmware_base":         platform.FirmwareBase,
	"firmware_size":         platform.FirmwareSize,
	"bootloader_image_base": platform.BootloaderImageBase,
	"bootloader_copy1_base": platform.BootloaderCopy1Base,
	"bootloader_copy2_base": platform.BootloaderCopy2Base,
	"bootloader_size":       platform.BootloaderSize,
}

func loadDeviceConfig(path string) (deviceConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return deviceConfig{}, fmt.Errorf("reading device config: %w", err)
	}
	var cfg deviceConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return deviceConfig{}, fmt.Errorf("parsing device config: %w", err)
	}
	return cfg, nil
}

// resolveFlashMap translates the config's string-keyed flash map into a
// simplatform.FlashMapConfig, failing if any required item is missing.
func (c deviceConfig) resolveFlashMap() (simplatform.FlashMapConfig, error) {
	fm := make(simplatform.FlashMapConfig, len(flashMapItemNames))
	for name, item := range flashMapItemNames {
		addr, ok := c.FlashMap[name]
		if !ok {
			return nil, fmt.Errorf("device config: missing flash_map entry %q", name)
		}
		fm[item] = addr
	}
	return fm, nil
}

// cliServices assembles platform.Services from the host-backed simplatform
// primitives plus a platform.UI of the caller's choosing (the plain
// zap-logging simplatform.ConsoleUI, or the terminal progressUI), since
// simplatform.Services itself hardcodes *ConsoleUI.
type cliServices struct {
	*simplatform.Flash
	simplatform.FlashMapConfig
	*simplatform.Media
	platform.UI
	*simplatform.Launcher
	simplatform.Identity
}

// newServices builds platform.Services from cfg, using ui for alerts and
// progress reporting and log for the simulated firmware launcher.
func newServices(cfg deviceConfig, ui platform.UI, log *zap.SugaredLogger) (*cliServices, error) {
	fm, err := cfg.resolveFlashMap()
	if err != nil {
		return nil, err
	}
	if cfg.FlashSize <= 0 {
		return nil, fmt.Errorf("device config: flash_size must be positive")
	}
	flash, err := simplatform.OpenFlash(cfg.FlashImage, cfg.FlashSize)
	if err != nil {
		return nil, fmt.Errorf("opening simulated flash: %w", err)
	}
	return &cliServices{
		Flash:          flash,
		FlashMapConfig: fm,
		Media:          simplatform.NewMedia(cfg.MediaDirs),
		UI:             ui,
		Launcher:       simplatform.NewLauncher(log),
		Identity:       simplatform.Identity(cfg.PlatformID),
	}, nil
}
