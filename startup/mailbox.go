package startup

import (
	"encoding/binary"

	"github.com/cryptoadvance/specter-bootloader-go/platform"
	"github.com/cryptoadvance/specter-bootloader-go/util"
)

const (
	// MailboxSize is the fixed, on-flash/SRAM size of the argument mailbox.
	MailboxSize = 32

	mailboxCrcCoveredSize = MailboxSize - 4

	offLoadedFrom     = 0
	offStartupVersion = 4
	// offReserved occupies bytes [8:28), five reserved words.
	offStructCrc = 28
)

// Args is the bootloader-argument mailbox passed from the start-up
// selector to the bootloader proper.
type Args struct {
	LoadedFrom     platform.Addr
	StartupVersion uint32
}

// Encode serializes a into the fixed 32-byte mailbox layout, computing
// struct_crc over the first 28 bytes.
func (a Args) Encode() []byte {
	buf := make([]byte, MailboxSize)
	binary.LittleEndian.PutUint32(buf[offLoadedFrom:], uint32(a.LoadedFrom))
	binary.LittleEndian.PutUint32(buf[offStartupVersion:], a.StartupVersion)
	crc := util.CRC32(buf[:mailboxCrcCoveredSize])
	binary.LittleEndian.PutUint32(buf[offStructCrc:], crc)
	return buf
}

// DecodeArgs parses and CRC-validates a 32-byte mailbox buffer.
func DecodeArgs(buf []byte) (Args, bool) {
	if len(buf) != MailboxSize {
		return Args{}, false
	}
	crc := util.CRC32(buf[:mailboxCrcCoveredSize])
	if crc != binary.LittleEndian.Uint32(buf[offStructCrc:]) {
		return Args{}, false
	}
	return Args{
		LoadedFrom:     platform.Addr(binary.LittleEndian.Uint32(buf[offLoadedFrom:])),
		StartupVersion: binary.LittleEndian.Uint32(buf[offStartupVersion:]),
	}, true
}
