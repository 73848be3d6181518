// Package memmap decodes the embedded, XML-like memory-map record that a
// firmware image carries to describe its own flash layout, per spec.md §6.4.
package memmap

import (
	"encoding/binary"
	"fmt"

	"github.com/cryptoadvance/specter-bootloader-go/platform"
)

const (
	openingTag = "<memory_map:lebin>"
	closingTag = "</memory_map:lebin>"
	// ElemSize is the width, in bytes, of one little-endian address element.
	ElemSize = 4
	// RecordSize is the total on-wire size of a memory-map record.
	RecordSize = len(openingTag) + 1 + 3*ElemSize + len(closingTag)
)

// Record is a decoded embedded memory-map record.
type Record struct {
	BootloaderSize    platform.Addr
	MainFirmwareStart platform.Addr
	MainFirmwareSize  platform.Addr
}

// Encode serializes r into its on-wire, XML-like binary form.
func (r Record) Encode() []byte {
	buf := make([]byte, 0, RecordSize)
	buf = append(buf, []byte(openingTag)...)
	buf = append(buf, ElemSize)
	buf = appendAddr(buf, r.BootloaderSize)
	buf = appendAddr(buf, r.MainFirmwareStart)
	buf = appendAddr(buf, r.MainFirmwareSize)
	buf = append(buf, []byte(closingTag)...)
	return buf
}

func appendAddr(buf []byte, a platform.Addr) []byte {
	var tmp [ElemSize]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(a))
	return append(buf, tmp[:]...)
}

// Decode parses a record from exactly RecordSize bytes, validating its tags
// and element size.
func Decode(buf []byte) (*Record, error) {
	if len(buf) != RecordSize {
		return nil, fmt.Errorf("memmap: record must be %d bytes, got %d", RecordSize, len(buf))
	}
	off := 0
	if string(buf[off:off+len(openingTag)]) != openingTag {
		return nil, fmt.Errorf("memmap: missing opening tag")
	}
	off += len(openingTag)
	if buf[off] != ElemSize {
		return nil, fmt.Errorf("memmap: unexpected element size %d, want %d", buf[off], ElemSize)
	}
	off++
	r := &Record{}
	r.BootloaderSize = platform.Addr(binary.LittleEndian.Uint32(buf[off:]))
	off += ElemSize
	r.MainFirmwareStart = platform.Addr(binary.LittleEndian.Uint32(buf[off:]))
	off += ElemSize
	r.MainFirmwareSize = platform.Addr(binary.LittleEndian.Uint32(buf[off:]))
	off += ElemSize
	if string(buf[off:off+len(closingTag)]) != closingTag {
		return nil, fmt.Errorf("memmap: missing closing tag")
	}
	return r, nil
}

// Scan searches buf for the first well-formed memory-map record, returning
// its decoded contents and byte offset.
func Scan(buf []byte) (*Record, int, bool) {
	openLen := len(openingTag)
	for i := 0; i+RecordSize <= len(buf); i++ {
		if string(buf[i:i+openLen]) == openingTag {
			if rec, err := Decode(buf[i : i+RecordSize]); err == nil {
				return rec, i, true
			}
		}
	}
	return nil, 0, false
}
