package bootloader

import (
	"errors"
	"fmt"

	"github.com/cryptoadvance/specter-bootloader-go/platform"
	"github.com/cryptoadvance/specter-bootloader-go/startup"
)

// ErrMultipleFiles is returned when more than one file on a device matches
// the search pattern, mirroring the firmware's "More than one upgrade file
// found" fatal error.
var ErrMultipleFiles = errors.New("bootloader: more than one matching file found on device")

// findFile scans every media device in turn, mounting each and searching
// its root for pattern, unmounting before moving to the next. It returns
// the first match, the index of the device it was found on, and stops at
// the first device that yields any match.
func findFile(media platform.Media, pattern string) (name string, deviceIdx uint32, found bool, err error) {
	media.Unmount()
	for i := uint32(0); i < media.Devices(); i++ {
		if !media.Check(i) {
			continue
		}
		if err := media.Mount(i); err != nil {
			return "", 0, false, fmt.Errorf("bootloader: mounting %q: %w", media.Name(i), err)
		}
		matches, err := media.FindFiles(i, pattern)
		if err != nil {
			media.Unmount()
			return "", 0, false, fmt.Errorf("bootloader: searching %q: %w", media.Name(i), err)
		}
		if len(matches) == 0 {
			media.Unmount()
			continue
		}
		if len(matches) > 1 {
			media.Unmount()
			return "", 0, false, ErrMultipleFiles
		}
		return matches[0], i, true, nil
	}
	return "", 0, false, nil
}

// validateArgs checks that args.LoadedFrom names one of the two bootloader
// copy addresses resolved from fm. The mailbox's own struct_crc is checked
// separately, by startup.DecodeArgs, before this function ever sees args.
func validateArgs(args startup.Args, fm platform.FlashMap) bool {
	copy1, err1 := fm.FlashMapItem(platform.BootloaderCopy1Base)
	copy2, err2 := fm.FlashMapItem(platform.BootloaderCopy2Base)
	if err1 != nil || err2 != nil {
		return false
	}
	return args.LoadedFrom == copy1 || args.LoadedFrom == copy2
}
