// Package integrity implements the on-flash Integrity Check Record (ICR)
// written at the end of every Main/Boot section, per spec.md §5.1. It is
// grounded on the original firmware's bl_integrity_check module, which
// tracked a Main and an Auxiliary section per record; this port only ever
// populates the Main section, and treats a non-zero Auxiliary section as a
// stale-format record that fails verification.
package integrity

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cryptoadvance/specter-bootloader-go/platform"
	"github.com/cryptoadvance/specter-bootloader-go/util"
)

const (
	// Size is the fixed, on-flash size of an integrity check record.
	Size = 32
	// Magic is the record's magic word, "INTG" in little-endian.
	Magic uint32 = 0x47544E49
	// StructRev is the only record structure revision this package knows.
	StructRev uint32 = 1

	crcCoveredSize = Size - 4 // everything but struct_crc

	offMagic        = 0
	offStructRev    = 4
	offPlVer        = 8
	offMainPlSize   = 12
	offMainPlCrc    = 16
	offAuxPlSize    = 20
	offAuxPlCrc     = 24
	offStructCrc    = 28
)

// ErrSectionTooSmall is returned when a section cannot hold both the
// declared payload and a trailing integrity check record.
var ErrSectionTooSmall = errors.New("integrity: section too small for payload and record")

// Record is a decoded integrity check record.
type Record struct {
	PlVer      uint32
	MainPlSize uint32
	MainPlCrc  uint32
	AuxPlSize  uint32
	AuxPlCrc   uint32
}

func (r *Record) encode() []byte {
	buf := make([]byte, Size)
	binary.LittleEndian.PutUint32(buf[offMagic:], Magic)
	binary.LittleEndian.PutUint32(buf[offStructRev:], StructRev)
	binary.LittleEndian.PutUint32(buf[offPlVer:], r.PlVer)
	binary.LittleEndian.PutUint32(buf[offMainPlSize:], r.MainPlSize)
	binary.LittleEndian.PutUint32(buf[offMainPlCrc:], r.MainPlCrc)
	binary.LittleEndian.PutUint32(buf[offAuxPlSize:], r.AuxPlSize)
	binary.LittleEndian.PutUint32(buf[offAuxPlCrc:], r.AuxPlCrc)
	crc := util.CRC32(buf[:crcCoveredSize])
	binary.LittleEndian.PutUint32(buf[offStructCrc:], crc)
	return buf
}

func decodeRecord(buf []byte) (*Record, bool) {
	if len(buf) != Size {
		return nil, false
	}
	magic := binary.LittleEndian.Uint32(buf[offMagic:])
	rev := binary.LittleEndian.Uint32(buf[offStructRev:])
	if magic != Magic || rev != StructRev {
		return nil, false
	}
	crc := util.CRC32(buf[:crcCoveredSize])
	if crc != binary.LittleEndian.Uint32(buf[offStructCrc:]) {
		return nil, false
	}
	r := &Record{
		PlVer:      binary.LittleEndian.Uint32(buf[offPlVer:]),
		MainPlSize: binary.LittleEndian.Uint32(buf[offMainPlSize:]),
		MainPlCrc:  binary.LittleEndian.Uint32(buf[offMainPlCrc:]),
		AuxPlSize:  binary.LittleEndian.Uint32(buf[offAuxPlSize:]),
		AuxPlCrc:   binary.LittleEndian.Uint32(buf[offAuxPlCrc:]),
	}
	return r, true
}

func recordAddr(sectAddr platform.Addr, sectSize uint32) platform.Addr {
	return sectAddr + platform.Addr(sectSize) - Size
}

// CheckSectSize reports whether a section of sectSize bytes can hold both
// plSize bytes of payload and a trailing integrity check record.
func CheckSectSize(sectSize, plSize uint32) bool {
	return sectSize > 0 && plSize > 0 && sectSize >= plSize+Size
}

// Create computes the CRC-32 of the plSize bytes of payload starting at
// sectAddr and writes a fresh integrity check record at the end of the
// section.
func Create(flash platform.Flash, sectAddr platform.Addr, sectSize, plSize, plVer uint32) error {
	if !CheckSectSize(sectSize, plSize) {
		return ErrSectionTooSmall
	}
	var crc uint32
	if err := flash.CRC32(&crc, sectAddr, plSize); err != nil {
		return fmt.Errorf("integrity: computing payload crc: %w", err)
	}
	rec := &Record{PlVer: plVer, MainPlSize: plSize, MainPlCrc: crc}
	return flash.Write(recordAddr(sectAddr, sectSize), rec.encode())
}

// Verify reads the integrity check record at the end of the section and
// confirms the Main section's payload CRC matches it. It reports the
// payload version on success via plVer (nil accepted).
func Verify(flash platform.Flash, sectAddr platform.Addr, sectSize uint32, plVer *uint32) bool {
	if sectSize == 0 {
		return false
	}
	buf := make([]byte, Size)
	if err := flash.Read(recordAddr(sectAddr, sectSize), buf); err != nil {
		return false
	}
	rec, ok := decodeRecord(buf)
	if !ok {
		return false
	}
	if rec.AuxPlSize != 0 || rec.AuxPlCrc != 0 {
		return false // stale dual-section format, unsupported
	}
	var crc uint32
	if err := flash.CRC32(&crc, sectAddr, rec.MainPlSize); err != nil {
		return false
	}
	if crc != rec.MainPlCrc {
		return false
	}
	if plVer != nil {
		*plVer = rec.PlVer
	}
	return true
}

// GetVersion reads the payload version from the integrity check record
// without verifying the payload CRC.
func GetVersion(flash platform.Flash, sectAddr platform.Addr, sectSize uint32) (uint32, bool) {
	if sectSize == 0 {
		return 0, false
	}
	buf := make([]byte, Size)
	if err := flash.Read(recordAddr(sectAddr, sectSize), buf); err != nil {
		return 0, false
	}
	rec, ok := decodeRecord(buf)
	if !ok {
		return 0, false
	}
	return rec.PlVer, true
}
