package bootloader

import (
	"fmt"

	"github.com/cryptoadvance/specter-bootloader-go/integrity"
	"github.com/cryptoadvance/specter-bootloader-go/platform"
	"github.com/cryptoadvance/specter-bootloader-go/startup"
	"github.com/cryptoadvance/specter-bootloader-go/upgrade"
	"github.com/cryptoadvance/specter-bootloader-go/util"
)

// makeVersionReport renders the versions of every firmware component the
// way the firmware's make_version_report does: the start-up selector
// version, both Bootloader copies (the active one marked with an
// asterisk), and the Main Firmware.
func makeVersionReport(flash platform.Flash, fm upgrade.FlashMap, args startup.Args) (string, error) {
	bl1, ok1 := integrity.GetVersion(flash, fm.BootloaderCopy1Base, uint32(fm.BootloaderSize))
	if !ok1 {
		bl1 = util.VersionNA
	}
	bl2, ok2 := integrity.GetVersion(flash, fm.BootloaderCopy2Base, uint32(fm.BootloaderSize))
	if !ok2 {
		bl2 = util.VersionNA
	}
	main, okMain := integrity.GetVersion(flash, fm.FirmwareBase, uint32(fm.FirmwareSize))
	if !okMain {
		main = util.VersionNA
	}

	bl1Str := versionCell(bl1, args.LoadedFrom == fm.BootloaderCopy1Base)
	bl2Str := versionCell(bl2, args.LoadedFrom == fm.BootloaderCopy2Base)
	startupStr, ok := util.VersionToStr(args.StartupVersion)
	if !ok {
		startupStr = "none"
	} else if startupStr == "" {
		startupStr = "none"
	}
	mainStr, ok := util.VersionToStr(main)
	if !ok {
		return "", fmt.Errorf("bootloader: rendering main firmware version")
	}
	if mainStr == "" {
		mainStr = "none"
	}

	return fmt.Sprintf(
		"Start-up    : %s\nBootloader 1: %s\nBootloader 2: %s\nFirmware    : %s\n\n* - active bootloader",
		startupStr, bl1Str, bl2Str, mainStr,
	), nil
}

// versionCell renders one bootloader-copy cell of the version report,
// appending an asterisk when active is true.
func versionCell(v uint32, active bool) string {
	s, ok := util.VersionToStr(v)
	if !ok || s == "" {
		s = "none"
	}
	if active {
		s += "*"
	}
	return s
}
