package section

import (
	"crypto/sha256"
	"hash/crc32"
	"io"

	"github.com/cryptoadvance/specter-bootloader-go/platform"
	"github.com/cryptoadvance/specter-bootloader-go/util"
)

// DefaultChunkSize is the default streaming chunk size used to validate
// payloads and compute hashes, matching spec.md's "4 KiB chunks".
const DefaultChunkSize = 4096

// ValidatePayload checks that buf matches the payload size and CRC declared
// in h.
func ValidatePayload(h *Header, buf []byte) bool {
	if h == nil || uint32(len(buf)) != h.PlSize {
		return false
	}
	return util.CRC32(buf) == h.PlCrc
}

// ValidatePayloadFromFile streams h's payload from r (assumed positioned at
// the start of the payload) in chunkSize-byte chunks, computing CRC-32
// incrementally and reporting progress at chunk boundaries. chunkSize<=0
// selects DefaultChunkSize. On success r's position is advanced exactly
// PlSize bytes past the start.
func ValidatePayloadFromFile(h *Header, r io.Reader, chunkSize int, progress util.ProgressFunc, tag util.Tag) bool {
	if h == nil || r == nil {
		return false
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	crc := uint32(0)
	remaining := h.PlSize
	buf := make([]byte, chunkSize)
	total := (h.PlSize + uint32(chunkSize) - 1) / uint32(chunkSize)
	if total == 0 {
		total = 1
	}
	complete := uint32(0)
	util.Report(progress, tag, total, complete)
	for remaining > 0 {
		n := uint32(chunkSize)
		if remaining < n {
			n = remaining
		}
		if _, err := io.ReadFull(r, buf[:n]); err != nil {
			return false
		}
		crc = crc32.Update(crc, crc32.IEEETable, buf[:n])
		remaining -= n
		complete++
		util.Report(progress, tag, total, complete)
	}
	return crc == h.PlCrc
}

// ValidatePayloadFromFlash streams h's payload from flash memory starting at
// addr, preferring the platform's memory-mapped CRC helper when the Flash
// implementation offers one, falling back to chunked reads otherwise.
func ValidatePayloadFromFlash(h *Header, flash platform.Flash, addr platform.Addr, chunkSize int, progress util.ProgressFunc, tag util.Tag) bool {
	if h == nil || flash == nil {
		return false
	}
	crc := uint32(0)
	if err := flash.CRC32(&crc, addr, h.PlSize); err == nil {
		util.Report(progress, tag, 1, 1)
		return crc == h.PlCrc
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	remaining := h.PlSize
	off := addr
	buf := make([]byte, chunkSize)
	total := (h.PlSize + uint32(chunkSize) - 1) / uint32(chunkSize)
	if total == 0 {
		total = 1
	}
	complete := uint32(0)
	util.Report(progress, tag, total, complete)
	for remaining > 0 {
		n := uint32(chunkSize)
		if remaining < n {
			n = remaining
		}
		if err := flash.Read(off, buf[:n]); err != nil {
			return false
		}
		crc = crc32.Update(crc, crc32.IEEETable, buf[:n])
		off += platform.Addr(n)
		remaining -= n
		complete++
		util.Report(progress, tag, total, complete)
	}
	return crc == h.PlCrc
}

// Hash is produced per Payload section: the SHA-256 of header‖payload plus
// the section name and version, forming the hash "sentence" consumed by
// package sigmsg.
type Hash struct {
	Digest   [32]byte
	SectName string
	PlVer    uint32
}

// HashOverFlash computes SHA-256(header ‖ payload) reading the payload from
// flash memory starting at pl_addr.
func HashOverFlash(h *Header, headerRaw []byte, flash platform.Flash, plAddr platform.Addr, chunkSize int, progress util.ProgressFunc, tag util.Tag) (Hash, bool) {
	if h == nil || flash == nil || len(headerRaw) != HeaderSize {
		return Hash{}, false
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	sum := sha256.New()
	sum.Write(headerRaw)
	remaining := h.PlSize
	off := plAddr
	buf := make([]byte, chunkSize)
	total := (h.PlSize + uint32(chunkSize) - 1) / uint32(chunkSize)
	if total == 0 {
		total = 1
	}
	complete := uint32(0)
	util.Report(progress, tag, total, complete)
	for remaining > 0 {
		n := uint32(chunkSize)
		if remaining < n {
			n = remaining
		}
		if err := flash.Read(off, buf[:n]); err != nil {
			return Hash{}, false
		}
		sum.Write(buf[:n])
		off += platform.Addr(n)
		remaining -= n
		complete++
		util.Report(progress, tag, total, complete)
	}
	var out Hash
	copy(out.Digest[:], sum.Sum(nil))
	out.SectName = h.Name
	out.PlVer = h.PlVer
	return out, true
}

// HashOverBuffer computes SHA-256(header ‖ payload) over in-memory buffers,
// used by tests and by the boot-sim build command when signing a new
// upgrade file.
func HashOverBuffer(h *Header, headerRaw, payload []byte) (Hash, bool) {
	if h == nil || len(headerRaw) != HeaderSize || uint32(len(payload)) != h.PlSize {
		return Hash{}, false
	}
	sum := sha256.New()
	sum.Write(headerRaw)
	sum.Write(payload)
	var out Hash
	copy(out.Digest[:], sum.Sum(nil))
	out.SectName = h.Name
	out.PlVer = h.PlVer
	return out, true
}
