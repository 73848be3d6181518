package section_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/cryptoadvance/specter-bootloader-go/platform"
	"github.com/cryptoadvance/specter-bootloader-go/section"
	"github.com/cryptoadvance/specter-bootloader-go/util"
)

func TestValidatePayloadFromFile(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB, 0xCD, 0xEF, 0x01}, 2048) // 8 KiB, 2 chunks at 4096
	h := &section.Header{Name: "main", PlSize: uint32(len(payload)), PlCrc: util.CRC32(payload)}

	var steps []uint32
	progress := func(_ util.Tag, total, complete uint32) {
		steps = append(steps, complete)
		if complete > total {
			t.Fatalf("complete %d exceeds total %d", complete, total)
		}
	}
	r := bytes.NewReader(payload)
	if !section.ValidatePayloadFromFile(h, r, 0, progress, util.Tag{}) {
		t.Fatal("expected payload to validate")
	}
	if len(steps) < 2 {
		t.Fatalf("expected multiple progress steps, got %v", steps)
	}
	for i := 1; i < len(steps); i++ {
		if steps[i] < steps[i-1] {
			t.Fatalf("progress not monotonic: %v", steps)
		}
	}
}

func TestValidatePayloadFromFileTruncated(t *testing.T) {
	payload := []byte("short payload")
	h := &section.Header{Name: "main", PlSize: uint32(len(payload)) + 10, PlCrc: 0}
	r := bytes.NewReader(payload)
	if section.ValidatePayloadFromFile(h, r, 0, nil, util.Tag{}) {
		t.Fatal("truncated payload must not validate")
	}
}

// memFlash is a minimal in-memory platform.Flash for payload tests.
type memFlash struct {
	data []byte
}

func (f *memFlash) Erase(addr platform.Addr, size uint32) error { return nil }
func (f *memFlash) Read(addr platform.Addr, buf []byte) error {
	if int(addr)+len(buf) > len(f.data) {
		return fmt.Errorf("out of range")
	}
	copy(buf, f.data[addr:int(addr)+len(buf)])
	return nil
}
func (f *memFlash) Write(addr platform.Addr, buf []byte) error {
	copy(f.data[addr:], buf)
	return nil
}
func (f *memFlash) CRC32(crc *uint32, addr platform.Addr, size uint32) error {
	return fmt.Errorf("no mmap CRC available")
}
func (f *memFlash) WriteProtect(addr platform.Addr, size uint32, enable bool) error { return nil }
func (f *memFlash) ReadProtect(level int) error                                    { return nil }
func (f *memFlash) ReadProtectionLevel() (int, error)                              { return -1, nil }

func TestValidatePayloadFromFlash(t *testing.T) {
	payload := bytes.Repeat([]byte{0x11, 0x22, 0x33}, 3000)
	h := &section.Header{Name: "boot", PlSize: uint32(len(payload)), PlCrc: util.CRC32(payload)}
	flash := &memFlash{data: append([]byte{0, 0, 0, 0}, payload...)}
	if !section.ValidatePayloadFromFlash(h, flash, 4, 0, nil, util.Tag{}) {
		t.Fatal("expected flash payload to validate")
	}
	flash.data[5] ^= 0xFF
	if section.ValidatePayloadFromFlash(h, flash, 4, 0, nil, util.Tag{}) {
		t.Fatal("corrupted flash payload must not validate")
	}
}

func TestHashOverFlash(t *testing.T) {
	payload := bytes.Repeat([]byte{0x55}, 5000)
	h := &section.Header{Name: "main", PlVer: 100_000_099, PlSize: uint32(len(payload)), PlCrc: util.CRC32(payload)}
	raw := h.Encode()
	flash := &memFlash{data: payload}
	hash, ok := section.HashOverFlash(h, raw, flash, 0, 0, nil, util.Tag{})
	if !ok {
		t.Fatal("expected hash")
	}
	direct, _ := section.HashOverBuffer(h, raw, payload)
	if hash.Digest != direct.Digest {
		t.Fatal("flash hash should match buffer hash for identical bytes")
	}
}
