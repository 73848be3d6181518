// Package startup implements the two-slot bootloader selection algorithm
// that runs before the bootloader itself is entered, plus the CRC-protected
// mailbox used to pass the selected copy's address to it, per spec.md §5.2
// and the original firmware's startup.c.
package startup

import (
	"errors"

	"github.com/cryptoadvance/specter-bootloader-go/integrity"
	"github.com/cryptoadvance/specter-bootloader-go/platform"
)

// ErrNoValidCopy is returned when no bootloader copy has a valid integrity
// check record, mirroring the firmware's startup_error_no_bootloader blink
// code.
var ErrNoValidCopy = errors.New("startup: no valid bootloader copy found")

// Select picks which of copyAddrs (each sectSize bytes) to run: the copy
// with the highest reported version whose ICR also verifies; failing that,
// any other copy sharing that version whose ICR verifies. It returns
// ErrNoValidCopy if none qualify.
func Select(flash platform.Flash, copyAddrs []platform.Addr, sectSize uint32) (platform.Addr, error) {
	if len(copyAddrs) == 0 {
		return 0, ErrNoValidCopy
	}
	versions := make([]uint32, len(copyAddrs))
	haveVersion := make([]bool, len(copyAddrs))
	selected := -1
	for i, addr := range copyAddrs {
		if v, ok := integrity.GetVersion(flash, addr, sectSize); ok {
			versions[i] = v
			haveVersion[i] = true
			if selected < 0 || v > versions[selected] {
				selected = i
			}
		}
	}
	if selected >= 0 && integrity.Verify(flash, copyAddrs[selected], sectSize, nil) {
		return copyAddrs[selected], nil
	}
	if selected >= 0 {
		for i, addr := range copyAddrs {
			if i == selected || !haveVersion[i] {
				continue
			}
			if versions[i] == versions[selected] && integrity.Verify(flash, addr, sectSize, nil) {
				return addr, nil
			}
		}
	}
	return 0, ErrNoValidCopy
}
