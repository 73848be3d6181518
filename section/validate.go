package section

import (
	"encoding/binary"

	"github.com/cryptoadvance/specter-bootloader-go/util"
)

// ValidateHeader decodes and validates a raw 256-byte section header: magic,
// structure revision, struct_crc, name rules, version range, payload-size
// range, and attribute-list well-formedness. It returns the decoded header
// and true only if every check passes; a nil/short buffer is a failure, not
// a panic.
func ValidateHeader(raw []byte) (*Header, bool) {
	if len(raw) != HeaderSize {
		return nil, false
	}
	if binary.LittleEndian.Uint32(raw[offMagic:]) != Magic {
		return nil, false
	}
	if binary.LittleEndian.Uint32(raw[offStructRev:]) != StructRev {
		return nil, false
	}
	gotCRC := binary.LittleEndian.Uint32(raw[offStructCrc:])
	if util.CRC32(raw[:crcCoveredSize]) != gotCRC {
		return nil, false
	}
	nameRaw := raw[offName : offName+NameSize]
	if !validateName(nameRaw) {
		return nil, false
	}
	h, err := Decode(raw)
	if err != nil {
		return nil, false
	}
	if h.PlVer > util.VersionMax {
		return nil, false
	}
	if h.PlSize < 1 || h.PlSize > PayloadSizeMax {
		return nil, false
	}
	if !validateAttrList(h.AttrList[:]) {
		return nil, false
	}
	return h, true
}
