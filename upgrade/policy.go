package upgrade

import (
	"fmt"

	"github.com/cryptoadvance/specter-bootloader-go/integrity"
	"github.com/cryptoadvance/specter-bootloader-go/platform"
	"github.com/cryptoadvance/specter-bootloader-go/section"
	"github.com/cryptoadvance/specter-bootloader-go/sig"
	"github.com/cryptoadvance/specter-bootloader-go/util"
)

// VersionCheck is the result of comparing a Payload section's version
// against what's installed. Ordinal order is severity order (higher is
// more severe): Same < Newer < RCBlocked < Older < Invalid.
type VersionCheck int

const (
	VersionSame VersionCheck = iota
	VersionNewer
	VersionRCBlocked
	VersionOlder
	VersionInvalid
)

// Text renders res the way the firmware's version-check alert text does.
func (res VersionCheck) Text() string {
	switch res {
	case VersionSame:
		return "Same version detected, upgrade skipped"
	case VersionNewer:
		return "Version is newer, suitable for upgrade"
	case VersionRCBlocked:
		return `"Release candidate" version is not allowed`
	case VersionOlder:
		return "Older version detected, downgrade is prohibited"
	case VersionInvalid:
		return "Upgrade file contains an invalid version"
	default:
		return "unknown"
	}
}

func isRC(v uint32) bool {
	_, _, _, rc, ok := util.DecodeVersion(v)
	return ok && rc != 99
}

// CheckVersion compares newVer (from the upgrade file) against the
// currently installed currVer. allowRC permits release-candidate versions.
func CheckVersion(newVer, currVer uint32, allowRC bool) VersionCheck {
	switch {
	case newVer == util.VersionNA || newVer > util.VersionMax:
		return VersionInvalid
	case !allowRC && isRC(newVer):
		return VersionRCBlocked
	case newVer > currVer:
		return VersionNewer
	case newVer == currVer:
		return VersionSame
	default:
		return VersionOlder
	}
}

// CheckVersions compares every loaded Payload section of md against the
// currently installed bootVer/mainVer, returning the most severe of the
// per-section results (an unloaded section counts as VersionSame).
func CheckVersions(md *Metadata, bootVer, mainVer uint32, allowRC bool) VersionCheck {
	checkBoot := VersionSame
	if md.BootSection.Loaded {
		checkBoot = CheckVersion(md.BootSection.Header.PlVer, bootVer, allowRC)
	}
	checkMain := VersionSame
	if md.MainSection.Loaded {
		checkMain = CheckVersion(md.MainSection.Header.PlVer, mainVer, allowRC)
	}
	if checkMain >= checkBoot {
		return checkMain
	}
	return checkBoot
}

// CheckSectCompatibility verifies that a section's "platform" and
// "base_addr" attributes match the device, and that its declared payload
// size fits the allocated flash region.
func CheckSectCompatibility(h *section.Header, platformID string, sectBase platform.Addr, sectSize uint32) bool {
	p, ok := section.GetAttrStr(h, section.AttrPlatform)
	if !ok {
		return false
	}
	base, ok := section.GetAttrUint(h, section.AttrBaseAddr)
	if !ok {
		return false
	}
	return p == platformID &&
		platform.Addr(base) == sectBase &&
		integrity.CheckSectSize(sectSize, h.PlSize)
}

// CheckCompatibility verifies every loaded section of md against fm and the
// device's platform identifier.
func CheckCompatibility(md *Metadata, fm FlashMap, platformID string) bool {
	if md.BootSection.Loaded &&
		!CheckSectCompatibility(md.BootSection.Header, platformID, fm.BootloaderImageBase, uint32(fm.BootloaderSize)) {
		return false
	}
	if md.MainSection.Loaded &&
		!CheckSectCompatibility(md.MainSection.Header, platformID, fm.FirmwareBase, uint32(fm.FirmwareSize)) {
		return false
	}
	return true
}

// Keyset holds the public keys and multisig thresholds configured for this
// device: Bootloader upgrades are authorized by vendor keys alone; Main
// Firmware-only upgrades may additionally be signed by maintainer keys.
type Keyset struct {
	VendorKeys             sig.KeyList
	MaintainerKeys         sig.KeyList
	BootloaderSigThreshold int
	MainFWSigThreshold     int
}

// Validate checks that every key has the mandatory 0x04 prefix and that
// both thresholds fall within [1, total keys in scope].
func (k Keyset) Validate() bool {
	if !k.VendorKeys.Valid() || !k.MaintainerKeys.Valid() {
		return false
	}
	if k.BootloaderSigThreshold < 1 || k.BootloaderSigThreshold > len(k.VendorKeys) {
		return false
	}
	total := len(k.VendorKeys) + len(k.MaintainerKeys)
	if k.MainFWSigThreshold < 1 || k.MainFWSigThreshold > total {
		return false
	}
	return true
}

// SelectFor returns the key set and threshold applicable to md: vendor
// keys only (against BootloaderSigThreshold) when a Bootloader section is
// present, otherwise vendor and maintainer keys (against
// MainFWSigThreshold).
func (k Keyset) SelectFor(md *Metadata) (sig.KeySet, int) {
	if md.BootSection.Loaded {
		return sig.KeySet{k.VendorKeys}, k.BootloaderSigThreshold
	}
	return sig.KeySet{k.VendorKeys, k.MaintainerKeys}, k.MainFWSigThreshold
}

// FlashMap resolves the flash memory map items the upgrade pipeline needs,
// mirroring the firmware's flash_map_t.
type FlashMap struct {
	FirmwareBase        platform.Addr
	FirmwareSize        platform.Addr
	BootloaderImageBase platform.Addr
	BootloaderCopy1Base platform.Addr
	BootloaderCopy2Base platform.Addr
	BootloaderSize      platform.Addr
}

// ResolveFlashMap reads every flash map item the pipeline needs from fm.
func ResolveFlashMap(fm platform.FlashMap) (FlashMap, error) {
	items := map[platform.FlashMapItem]*platform.Addr{}
	var out FlashMap
	items[platform.FirmwareBase] = &out.FirmwareBase
	items[platform.FirmwareSize] = &out.FirmwareSize
	items[platform.BootloaderImageBase] = &out.BootloaderImageBase
	items[platform.BootloaderCopy1Base] = &out.BootloaderCopy1Base
	items[platform.BootloaderCopy2Base] = &out.BootloaderCopy2Base
	items[platform.BootloaderSize] = &out.BootloaderSize
	for item, dst := range items {
		addr, err := fm.FlashMapItem(item)
		if err != nil {
			return FlashMap{}, fmt.Errorf("upgrade: resolving flash map: %w", err)
		}
		*dst = addr
	}
	return out, nil
}

// InactiveBootloaderAddr returns the bootloader copy other than activeAddr,
// the two-slot safety invariant: an upgrade never writes to the copy
// currently executing.
func (m FlashMap) InactiveBootloaderAddr(activeAddr platform.Addr) platform.Addr {
	if activeAddr == m.BootloaderCopy1Base {
		return m.BootloaderCopy2Base
	}
	return m.BootloaderCopy1Base
}
