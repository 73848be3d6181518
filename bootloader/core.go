package bootloader

import (
	"errors"
	"fmt"

	"github.com/cryptoadvance/specter-bootloader-go/kat"
	"github.com/cryptoadvance/specter-bootloader-go/platform"
	"github.com/cryptoadvance/specter-bootloader-go/startup"
	"github.com/cryptoadvance/specter-bootloader-go/upgrade"
)

// Core runs one bootloader pass against a single set of platform services:
// look for an upgrade file on removable media and, if one is found,
// self-test the crypto primitives and perform the upgrade; when no upgrade
// completes, show a version report if the version flag file is present.
// It assumes the caller already resolved which Bootloader copy is
// executing (see package startup) and decoded its mailbox arguments.
type Core struct {
	Services platform.Services
	Config   Config
}

// NewCore validates cfg's key set and returns a ready-to-run Core.
func NewCore(services platform.Services, cfg Config) (*Core, error) {
	keys, err := cfg.Keys.Keyset()
	if err != nil {
		return nil, fmt.Errorf("bootloader: %w", err)
	}
	if !keys.Validate() {
		return nil, fmt.Errorf("bootloader: %w", errInvalidKeyset)
	}
	if cfg.UpgradeFilePattern == "" {
		cfg.UpgradeFilePattern = DefaultUpgradeFilePattern
	}
	if cfg.ShowVersionFile == "" {
		cfg.ShowVersionFile = DefaultShowVersionFile
	}
	return &Core{Services: services, Config: cfg}, nil
}

var errInvalidKeyset = errors.New("invalid public key set")

// Run performs one bootloader pass. args identifies which Bootloader copy
// is currently executing, already validated against the mailbox's
// struct_crc by startup.DecodeArgs.
func (c *Core) Run(args startup.Args) (Status, error) {
	fm, err := upgrade.ResolveFlashMap(c.Services)
	if err != nil {
		return ErrPlatform, err
	}
	if !validateArgs(args, c.Services) {
		return ErrArg, nil
	}
	keys, err := c.Config.Keys.Keyset()
	if err != nil || !keys.Validate() {
		return ErrPubkeys, nil
	}

	status := NormalExit
	name, _, found, err := findFile(c.Services, c.Config.UpgradeFilePattern)
	if err != nil {
		c.Services.FatalError(err.Error())
		return ErrInternal, err
	}
	if found {
		if !kat.RunAll() {
			return ErrInternal, nil
		}
		completed, err := c.runUpgrade(name, fm, keys, args.LoadedFrom)
		c.Services.Unmount()
		if err != nil {
			return ErrInternal, err
		}
		if completed {
			status = UpgradeComplete
		}
	}

	if status == NormalExit {
		if versionName, _, versionFound, err := findFile(c.Services, c.Config.ShowVersionFile); err == nil && versionFound {
			c.reportVersions(args, fm, versionName)
		}
	}
	return status, nil
}

func (c *Core) runUpgrade(name string, fm upgrade.FlashMap, keys upgrade.Keyset, loadedFrom platform.Addr) (bool, error) {
	file, err := c.Services.Open(name)
	if err != nil {
		return false, fmt.Errorf("bootloader: opening %q: %w", name, err)
	}
	defer file.Close()

	content, err := upgrade.DecompressIfNeeded(file)
	if err != nil {
		return false, fmt.Errorf("bootloader: %w", err)
	}

	pipeline := &upgrade.Pipeline{
		Services:            c.Services,
		FlashMap:            fm,
		Keys:                keys,
		AllowRC:             c.Config.AllowRC,
		ProtectAfterUpgrade: c.Config.ProtectAfterUpgrade,
	}
	result, err := pipeline.Run(content, name, loadedFrom)
	if err != nil {
		return false, err
	}
	c.Services.Alert(result.Alert, result.Caption, result.Message, platform.Forever)
	return result.Completed, nil
}

// reportVersions renders and displays the firmware's version report,
// mirroring show_version/make_version_report.
func (c *Core) reportVersions(args startup.Args, fm upgrade.FlashMap, fileName string) {
	report, err := makeVersionReport(c.Services, fm, args)
	if err != nil {
		return
	}
	c.Services.Alert(platform.AlertInfo, "Version Information", report, versionDisplayTimeMs)
}

const versionDisplayTimeMs = 5000
