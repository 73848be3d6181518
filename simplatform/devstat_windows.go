//go:build windows

package simplatform

import "os"

// statPath reports whether path exists and is a directory. Windows has no
// unix.Stat_t device-mode bits, so this falls back to os.Stat.
func statPath(path string) (isDir bool, ok bool) {
	info, err := os.Stat(path)
	if err != nil {
		return false, false
	}
	return info.IsDir(), true
}
