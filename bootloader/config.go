package bootloader

import (
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cryptoadvance/specter-bootloader-go/sig"
	"github.com/cryptoadvance/specter-bootloader-go/upgrade"
)

// DefaultUpgradeFilePattern is the glob Core uses to find an upgrade file
// on removable media, matching the firmware's UPGRADE_FILES.
const DefaultUpgradeFilePattern = "specter_upgrade*.bin"

// DefaultShowVersionFile is the flag file that triggers a version report
// when no upgrade file is present.
const DefaultShowVersionFile = ".show_version"

// Config is the board-specific configuration a Core is built from: its
// public key set, upgrade policy flags and file-discovery patterns.
type Config struct {
	Keys                KeyConfig `yaml:"keys"`
	AllowRC             bool      `yaml:"allow_rc"`
	ProtectAfterUpgrade bool      `yaml:"protect_after_upgrade"`
	UpgradeFilePattern  string    `yaml:"upgrade_file_pattern"`
	ShowVersionFile     string    `yaml:"show_version_file"`
}

// KeyConfig is the YAML-friendly representation of an upgrade.Keyset: keys
// are stored as hex strings since sig.PubKey is a raw byte array with no
// natural text encoding.
type KeyConfig struct {
	VendorKeys             []string `yaml:"vendor_keys"`
	MaintainerKeys         []string `yaml:"maintainer_keys"`
	BootloaderSigThreshold int      `yaml:"bootloader_sig_threshold"`
	MainFWSigThreshold     int      `yaml:"main_fw_sig_threshold"`
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("bootloader: reading config: %w", err)
	}
	cfg := Config{
		UpgradeFilePattern: DefaultUpgradeFilePattern,
		ShowVersionFile:    DefaultShowVersionFile,
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("bootloader: parsing config: %w", err)
	}
	return cfg, nil
}

// Keyset decodes the hex-encoded key lists into an upgrade.Keyset.
func (c KeyConfig) Keyset() (upgrade.Keyset, error) {
	vendor, err := decodeKeyList(c.VendorKeys)
	if err != nil {
		return upgrade.Keyset{}, fmt.Errorf("bootloader: vendor keys: %w", err)
	}
	maintainer, err := decodeKeyList(c.MaintainerKeys)
	if err != nil {
		return upgrade.Keyset{}, fmt.Errorf("bootloader: maintainer keys: %w", err)
	}
	return upgrade.Keyset{
		VendorKeys:             vendor,
		MaintainerKeys:         maintainer,
		BootloaderSigThreshold: c.BootloaderSigThreshold,
		MainFWSigThreshold:     c.MainFWSigThreshold,
	}, nil
}

func decodeKeyList(hexKeys []string) (sig.KeyList, error) {
	keys := make(sig.KeyList, len(hexKeys))
	for i, h := range hexKeys {
		raw, err := hex.DecodeString(h)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		if len(raw) != sig.PubkeySize {
			return nil, fmt.Errorf("key %d: want %d bytes, got %d", i, sig.PubkeySize, len(raw))
		}
		copy(keys[i][:], raw)
	}
	return keys, nil
}
