// Package simplatform implements platform.Services over the host
// filesystem, for development and the boot-sim CLI: a memory-mapped flash
// chip backed by a regular file, a directory tree standing in for
// removable media, and a console UI.
package simplatform

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/cryptoadvance/specter-bootloader-go/platform"
	"github.com/cryptoadvance/specter-bootloader-go/util"
)

// Flash simulates a memory-mapped flash chip backed by a regular file,
// following the teacher's mmap-go usage for boot-image access.
type Flash struct {
	file *os.File
	mmap mmap.MMap
}

// OpenFlash mmaps (or creates, zero-filled) a flash image file of size.
func OpenFlash(path string, size int64) (*Flash, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("simplatform: opening flash image: %w", err)
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("simplatform: sizing flash image: %w", err)
	}
	m, err := mmap.Map(f, mmap.RDWR, 0) // (file, prot, flags), per patch.go's usage
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("simplatform: mmap flash image: %w", err)
	}
	return &Flash{file: f, mmap: m}, nil
}

// Close unmaps and closes the backing file.
func (fl *Flash) Close() error {
	if err := fl.mmap.Unmap(); err != nil {
		return err
	}
	return fl.file.Close()
}

func (fl *Flash) bounds(addr platform.Addr, size uint32) (int, int, error) {
	start := int(addr)
	end := start + int(size)
	if start < 0 || size == 0 || end > len(fl.mmap) {
		return 0, 0, fmt.Errorf("simplatform: flash access [%d:%d] out of range (size %d)", start, end, len(fl.mmap))
	}
	return start, end, nil
}

// Erase fills size bytes at addr with 0xFF, matching NOR flash erase value.
func (fl *Flash) Erase(addr platform.Addr, size uint32) error {
	start, end, err := fl.bounds(addr, size)
	if err != nil {
		return err
	}
	for i := start; i < end; i++ {
		fl.mmap[i] = 0xFF
	}
	return fl.mmap.Flush()
}

// Read copies len(buf) bytes starting at addr into buf.
func (fl *Flash) Read(addr platform.Addr, buf []byte) error {
	start, end, err := fl.bounds(addr, uint32(len(buf)))
	if err != nil {
		return err
	}
	copy(buf, fl.mmap[start:end])
	return nil
}

// Write stores buf at addr and verifies it by reading it back, per
// platform.Flash's contract.
func (fl *Flash) Write(addr platform.Addr, buf []byte) error {
	start, end, err := fl.bounds(addr, uint32(len(buf)))
	if err != nil {
		return err
	}
	copy(fl.mmap[start:end], buf)
	if err := fl.mmap.Flush(); err != nil {
		return err
	}
	readback := make([]byte, len(buf))
	copy(readback, fl.mmap[start:end])
	for i := range buf {
		if buf[i] != readback[i] {
			return fmt.Errorf("simplatform: write verification failed at offset %d", start+i)
		}
	}
	return nil
}

// CRC32 computes the running CRC-32 of size bytes starting at addr,
// directly over the mapping rather than staging through Read.
func (fl *Flash) CRC32(crc *uint32, addr platform.Addr, size uint32) error {
	start, end, err := fl.bounds(addr, size)
	if err != nil {
		return err
	}
	*crc = util.CRC32Update(*crc, fl.mmap[start:end])
	return nil
}

// WriteProtect is a no-op in simulation; real hardware would lock a flash
// region.
func (fl *Flash) WriteProtect(addr platform.Addr, size uint32, enable bool) error {
	return nil
}

// ReadProtect is a no-op in simulation.
func (fl *Flash) ReadProtect(level int) error { return nil }

// ReadProtectionLevel always reports the lowest (no) protection level.
func (fl *Flash) ReadProtectionLevel() (int, error) { return 0, nil }
