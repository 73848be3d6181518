package integrity

import (
	"encoding/binary"

	"github.com/cryptoadvance/specter-bootloader-go/platform"
	"github.com/cryptoadvance/specter-bootloader-go/util"
)

const (
	// VCRSize is the fixed, on-flash size of a version check record.
	VCRSize = 32
	// vcrMagic is the literal ASCII magic, NUL-terminated to 16 bytes.
	vcrMagic = "VERSIONCHECKREC"

	vcrCrcCoveredSize = VCRSize - 4

	offVCRMagic     = 0
	offVCRStructRev = 16
	offVCRPlVer     = 20
	offVCRReserved  = 24
	offVCRStructCrc = 28
)

// Placement selects where a VCR is looked up or written within a section.
type Placement int

const (
	// Starting is the VCR stored at the beginning of a section.
	Starting Placement = iota
	// Ending is the VCR stored at offset sect_size-64, ahead of the ICR.
	Ending
	// Any considers both placements and returns the highest valid version.
	Any
)

func vcrAddr(sectAddr platform.Addr, sectSize uint32, p Placement) platform.Addr {
	if p == Starting {
		return sectAddr
	}
	return sectAddr + platform.Addr(sectSize) - 2*VCRSize
}

func encodeVCR(plVer uint32) []byte {
	buf := make([]byte, VCRSize)
	copy(buf[offVCRMagic:offVCRMagic+16], []byte(vcrMagic))
	binary.LittleEndian.PutUint32(buf[offVCRStructRev:], StructRev)
	binary.LittleEndian.PutUint32(buf[offVCRPlVer:], plVer)
	crc := util.CRC32(buf[:vcrCrcCoveredSize])
	binary.LittleEndian.PutUint32(buf[offVCRStructCrc:], crc)
	return buf
}

func decodeVCR(buf []byte) (uint32, bool) {
	if len(buf) != VCRSize {
		return 0, false
	}
	if string(buf[offVCRMagic:offVCRMagic+16]) != vcrMagic+"\x00" {
		return 0, false
	}
	if binary.LittleEndian.Uint32(buf[offVCRStructRev:]) != StructRev {
		return 0, false
	}
	crc := util.CRC32(buf[:vcrCrcCoveredSize])
	if crc != binary.LittleEndian.Uint32(buf[offVCRStructCrc:]) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(buf[offVCRPlVer:]), true
}

// WriteVCR writes a version check record at the given placement.
func WriteVCR(flash platform.Flash, sectAddr platform.Addr, sectSize, plVer uint32, p Placement) error {
	return flash.Write(vcrAddr(sectAddr, sectSize, p), encodeVCR(plVer))
}

func readVCRAt(flash platform.Flash, sectAddr platform.Addr, sectSize uint32, p Placement) (uint32, bool) {
	buf := make([]byte, VCRSize)
	if err := flash.Read(vcrAddr(sectAddr, sectSize, p), buf); err != nil {
		return 0, false
	}
	return decodeVCR(buf)
}

// GetVCRVersion reads the version check record(s) selected by p and returns
// the highest valid version found, or false if none are valid. Per
// spec.md, Any considers both placements and returns the max of the two
// valid readings.
func GetVCRVersion(flash platform.Flash, sectAddr platform.Addr, sectSize uint32, p Placement) (uint32, bool) {
	switch p {
	case Starting, Ending:
		return readVCRAt(flash, sectAddr, sectSize, p)
	case Any:
		startVer, startOK := readVCRAt(flash, sectAddr, sectSize, Starting)
		endVer, endOK := readVCRAt(flash, sectAddr, sectSize, Ending)
		switch {
		case startOK && endOK:
			if startVer > endVer {
				return startVer, true
			}
			return endVer, true
		case startOK:
			return startVer, true
		case endOK:
			return endVer, true
		default:
			return 0, false
		}
	default:
		return 0, false
	}
}
