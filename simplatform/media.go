package simplatform

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cryptoadvance/specter-bootloader-go/platform"
)

// Media simulates removable storage as a fixed list of host directories,
// one per device index.
type Media struct {
	devices []string
	mounted int // -1 if nothing is mounted
}

// NewMedia returns a Media backed by the given device root directories.
func NewMedia(deviceDirs []string) *Media {
	return &Media{devices: deviceDirs, mounted: -1}
}

// Devices returns the number of simulated devices.
func (m *Media) Devices() uint32 { return uint32(len(m.devices)) }

// Name returns the host path standing in for device deviceIdx.
func (m *Media) Name(deviceIdx uint32) string {
	if int(deviceIdx) >= len(m.devices) {
		return ""
	}
	return m.devices[deviceIdx]
}

// Check reports whether device deviceIdx is present and usable.
func (m *Media) Check(deviceIdx uint32) bool {
	if int(deviceIdx) >= len(m.devices) {
		return false
	}
	isDir, ok := statPath(m.devices[deviceIdx])
	return ok && isDir
}

// Mount marks device deviceIdx as the active device.
func (m *Media) Mount(deviceIdx uint32) error {
	if !m.Check(deviceIdx) {
		return fmt.Errorf("simplatform: device %d not present", deviceIdx)
	}
	m.mounted = int(deviceIdx)
	return nil
}

// Unmount clears the active device.
func (m *Media) Unmount() {
	m.mounted = -1
}

// FindFiles returns file names in the device root matching a "*"/"?" glob,
// case-insensitively, without requiring the device to be mounted.
func (m *Media) FindFiles(deviceIdx uint32, pattern string) ([]string, error) {
	if int(deviceIdx) >= len(m.devices) {
		return nil, fmt.Errorf("simplatform: device %d out of range", deviceIdx)
	}
	entries, err := os.ReadDir(m.devices[deviceIdx])
	if err != nil {
		return nil, fmt.Errorf("simplatform: reading device root: %w", err)
	}
	var matches []string
	lowerPattern := strings.ToLower(pattern)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ok, err := filepath.Match(lowerPattern, strings.ToLower(e.Name()))
		if err != nil {
			return nil, fmt.Errorf("simplatform: bad pattern %q: %w", pattern, err)
		}
		if ok {
			matches = append(matches, e.Name())
		}
	}
	return matches, nil
}

// Open opens name from the currently mounted device, implementing
// platform.FileSystem.
func (m *Media) Open(name string) (platform.File, error) {
	if m.mounted < 0 {
		return nil, fmt.Errorf("simplatform: no device mounted")
	}
	return OpenFile(filepath.Join(m.devices[m.mounted], name))
}
