// Package section implements the fixed-layout 256-byte section header used
// by both the upgrade file format and the on-flash firmware sections:
// header validation, the attribute TLV list, and payload hashing/CRC over a
// buffer, file, or flash memory.
package section

import (
	"encoding/binary"
	"fmt"

	"github.com/cryptoadvance/specter-bootloader-go/util"
)

const (
	// Magic is the section header magic word, "SECT" in little-endian.
	Magic uint32 = 0x54434553
	// StructRev is the only header structure revision this package knows.
	StructRev uint32 = 1
	// HeaderSize is the fixed, on-wire size of a section header.
	HeaderSize = 256
	// NameSize is the size of the name field, including its terminator.
	NameSize = 16
	// AttrListSize is the size of the attribute TLV area.
	AttrListSize = 216
	// PayloadSizeMax is the largest payload a section may declare (16 MiB).
	PayloadSizeMax = 16 * 1024 * 1024
	// crcCoveredSize is the number of leading bytes struct_crc is computed
	// over (everything except struct_crc itself).
	crcCoveredSize = HeaderSize - 4

	offMagic     = 0
	offStructRev = 4
	offName      = 8
	offPlVer     = offName + NameSize
	offPlSize    = offPlVer + 4
	offPlCrc     = offPlSize + 4
	offAttrList  = offPlCrc + 4
	offStructCrc = offAttrList + AttrListSize
)

// Name values with special meaning.
const (
	SignatureSectionName = "sign"
	BootSectionName       = "boot"
	MainSectionName       = "main"
)

// Attr identifies a recognized header attribute.
type Attr uint8

const (
	AttrAlgorithm  Attr = 1
	AttrBaseAddr   Attr = 2
	AttrEntryPoint Attr = 3
	AttrPlatform   Attr = 4
)

// Header is a decoded 256-byte section header.
type Header struct {
	Name      string
	PlVer     uint32
	PlSize    uint32
	PlCrc     uint32
	AttrList  [AttrListSize]byte
	StructCrc uint32
}

// Decode parses a 256-byte buffer into a Header without validating it;
// callers should call ValidateHeader before trusting the result.
func Decode(buf []byte) (*Header, error) {
	if len(buf) != HeaderSize {
		return nil, fmt.Errorf("section: header must be %d bytes, got %d", HeaderSize, len(buf))
	}
	h := &Header{}
	nameRaw := buf[offName : offName+NameSize]
	nul := indexByte(nameRaw, 0)
	if nul < 0 {
		h.Name = string(nameRaw)
	} else {
		h.Name = string(nameRaw[:nul])
	}
	h.PlVer = binary.LittleEndian.Uint32(buf[offPlVer:])
	h.PlSize = binary.LittleEndian.Uint32(buf[offPlSize:])
	h.PlCrc = binary.LittleEndian.Uint32(buf[offPlCrc:])
	copy(h.AttrList[:], buf[offAttrList:offAttrList+AttrListSize])
	h.StructCrc = binary.LittleEndian.Uint32(buf[offStructCrc:])
	return h, nil
}

// Encode serializes h into a 256-byte buffer, computing struct_crc.
func (h *Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[offMagic:], Magic)
	binary.LittleEndian.PutUint32(buf[offStructRev:], StructRev)
	copy(buf[offName:offName+NameSize], []byte(h.Name))
	binary.LittleEndian.PutUint32(buf[offPlVer:], h.PlVer)
	binary.LittleEndian.PutUint32(buf[offPlSize:], h.PlSize)
	binary.LittleEndian.PutUint32(buf[offPlCrc:], h.PlCrc)
	copy(buf[offAttrList:offAttrList+AttrListSize], h.AttrList[:])
	crc := util.CRC32(buf[:crcCoveredSize])
	binary.LittleEndian.PutUint32(buf[offStructCrc:], crc)
	return buf
}

func indexByte(buf []byte, b byte) int {
	for i, c := range buf {
		if c == b {
			return i
		}
	}
	return -1
}

func isLatinLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func isLatinLetterOrDigit(c byte) bool {
	return isLatinLetter(c) || (c >= '0' && c <= '9')
}

// validateName checks the raw 16-byte name field per spec.md §3: leading
// Latin letter, remaining characters letters or digits, mandatory null
// terminator, and zero padding after it.
func validateName(raw []byte) bool {
	nul := indexByte(raw, 0)
	if nul <= 0 {
		return false // terminator missing or empty name
	}
	if !isLatinLetter(raw[0]) {
		return false
	}
	for i := 1; i < nul; i++ {
		if !isLatinLetterOrDigit(raw[i]) {
			return false
		}
	}
	for i := nul; i < len(raw); i++ {
		if raw[i] != 0 {
			return false
		}
	}
	return true
}

// IsPayload reports whether h names a Payload section (anything but "sign").
func IsPayload(h *Header) bool {
	return h != nil && h.Name != SignatureSectionName
}

// IsSignature reports whether h is the Signature section.
func IsSignature(h *Header) bool {
	return h != nil && h.Name == SignatureSectionName
}
