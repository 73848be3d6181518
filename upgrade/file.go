// Package upgrade implements the firmware-upgrade-file pipeline: metadata
// scanning, version and compatibility policy, and the staged state machine
// that verifies, writes and re-checks flash memory, per spec.md §5 and
// §6.2-6.4 and the original firmware's bootloader.c.
package upgrade

import (
	"fmt"
	"io"

	"github.com/cryptoadvance/specter-bootloader-go/section"
	"github.com/cryptoadvance/specter-bootloader-go/sig"
)

// MaxSigSectionSize bounds the Signature section payload read into memory
// while scanning an upgrade file, matching sig.MaxRecords compact records.
const MaxSigSectionSize = sig.RecordSize * sig.MaxRecords

// SectionMeta is a decoded section header plus its offset in the upgrade
// file, for sections whose payload is read on demand rather than buffered.
type SectionMeta struct {
	Loaded       bool
	Header       *section.Header
	HeaderRaw    []byte
	PlFileOffset int64
}

// Metadata is the result of scanning an upgrade file's section headers: at
// least one of BootSection/MainSection, plus the Signature section (whose
// payload is buffered in full, since it's small and needed immediately).
type Metadata struct {
	BootSection SectionMeta
	MainSection SectionMeta
	SigSection  SectionMeta
	SigPayload  []byte
}

// PayloadSectionCount returns how many of BootSection/MainSection are
// loaded.
func (m *Metadata) PayloadSectionCount() int {
	n := 0
	if m.BootSection.Loaded {
		n++
	}
	if m.MainSection.Loaded {
		n++
	}
	return n
}

// seekable is the subset of platform.File this package reads an upgrade
// file through.
type seekable interface {
	io.Reader
	io.Seeker
	Size() (int64, error)
	Tell() (int64, error)
}

// ReadMetadata scans file's section headers: the Signature section's
// payload is read and validated in full, Payload sections ("boot"/"main")
// are validated by header only and skipped. It requires exactly one
// Signature section, at least one Payload section, no duplicate or
// unrecognized section names, and zero trailing bytes after the last
// section.
func ReadMetadata(file seekable) (*Metadata, error) {
	size, err := file.Size()
	if err != nil {
		return nil, fmt.Errorf("upgrade: reading file size: %w", err)
	}
	md := &Metadata{}
	remaining := size

	for remaining >= section.HeaderSize {
		raw := make([]byte, section.HeaderSize)
		if _, err := io.ReadFull(file, raw); err != nil {
			return nil, fmt.Errorf("upgrade: reading section header: %w", err)
		}
		plOffset, err := file.Tell()
		if err != nil {
			return nil, fmt.Errorf("upgrade: locating payload offset: %w", err)
		}
		h, ok := section.ValidateHeader(raw)
		if !ok {
			return nil, fmt.Errorf("upgrade: invalid section header")
		}
		if int64(section.HeaderSize)+int64(h.PlSize) > remaining {
			return nil, fmt.Errorf("upgrade: section payload runs past end of file")
		}

		if section.IsSignature(h) {
			if md.SigSection.Loaded {
				return nil, fmt.Errorf("upgrade: more than one signature section")
			}
			if h.PlSize > MaxSigSectionSize {
				return nil, fmt.Errorf("upgrade: signature payload too large (%d bytes)", h.PlSize)
			}
			payload := make([]byte, h.PlSize)
			if _, err := io.ReadFull(file, payload); err != nil {
				return nil, fmt.Errorf("upgrade: reading signature payload: %w", err)
			}
			if !section.ValidatePayload(h, payload) {
				return nil, fmt.Errorf("upgrade: signature payload fails CRC check")
			}
			md.SigSection = SectionMeta{Loaded: true, Header: h, HeaderRaw: raw, PlFileOffset: plOffset}
			md.SigPayload = payload
		} else {
			if _, err := file.Seek(int64(h.PlSize), io.SeekCurrent); err != nil {
				return nil, fmt.Errorf("upgrade: skipping payload section: %w", err)
			}
			sect := SectionMeta{Loaded: true, Header: h, HeaderRaw: raw, PlFileOffset: plOffset}
			switch {
			case h.Name == section.BootSectionName && !md.BootSection.Loaded:
				md.BootSection = sect
			case h.Name == section.MainSectionName && !md.MainSection.Loaded:
				md.MainSection = sect
			default:
				return nil, fmt.Errorf("upgrade: unexpected or duplicate section name %q", h.Name)
			}
		}
		remaining -= int64(section.HeaderSize) + int64(h.PlSize)
	}

	if remaining != 0 {
		return nil, fmt.Errorf("upgrade: %d trailing bytes after last section", remaining)
	}
	if !md.SigSection.Loaded {
		return nil, fmt.Errorf("upgrade: no signature section present")
	}
	if md.PayloadSectionCount() == 0 {
		return nil, fmt.Errorf("upgrade: no payload sections present")
	}
	return md, nil
}
