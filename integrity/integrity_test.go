package integrity_test

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cryptoadvance/specter-bootloader-go/integrity"
	"github.com/cryptoadvance/specter-bootloader-go/platform"
)

// memFlash is a minimal in-memory platform.Flash for integrity tests.
type memFlash struct {
	data []byte
}

func (f *memFlash) Erase(addr platform.Addr, size uint32) error { return nil }
func (f *memFlash) Read(addr platform.Addr, buf []byte) error {
	if int(addr) < 0 || int(addr)+len(buf) > len(f.data) {
		return fmt.Errorf("out of range")
	}
	copy(buf, f.data[addr:int(addr)+len(buf)])
	return nil
}
func (f *memFlash) Write(addr platform.Addr, buf []byte) error {
	if int(addr)+len(buf) > len(f.data) {
		return fmt.Errorf("out of range")
	}
	copy(f.data[addr:], buf)
	return nil
}
func (f *memFlash) CRC32(crc *uint32, addr platform.Addr, size uint32) error {
	buf := make([]byte, size)
	if err := f.Read(addr, buf); err != nil {
		return err
	}
	*crc = crcOf(buf)
	return nil
}
func (f *memFlash) WriteProtect(addr platform.Addr, size uint32, enable bool) error { return nil }
func (f *memFlash) ReadProtect(level int) error                                    { return nil }
func (f *memFlash) ReadProtectionLevel() (int, error)                              { return -1, nil }

func crcOf(buf []byte) uint32 {
	// Local CRC-32/IEEE reimplementation to avoid importing util from a
	// black-box test package just for a checksum the flash model needs.
	const poly = 0xEDB88320
	crc := uint32(0xFFFFFFFF)
	for _, b := range buf {
		crc ^= uint32(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ poly
			} else {
				crc >>= 1
			}
		}
	}
	return ^crc
}

func TestICRCreateAndVerify(t *testing.T) {
	payload := make([]byte, 1024)
	for i := range payload {
		payload[i] = byte(i)
	}
	sectSize := uint32(len(payload)) + integrity.Size
	flash := &memFlash{data: make([]byte, sectSize)}
	copy(flash.data, payload)

	if err := integrity.Create(flash, 0, sectSize, uint32(len(payload)), 100000099); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	var ver uint32
	if !integrity.Verify(flash, 0, sectSize, &ver) {
		t.Fatal("expected record to verify")
	}
	if ver != 100000099 {
		t.Fatalf("version = %d, want 100000099", ver)
	}
}

func TestICRCreateIsDeterministic(t *testing.T) {
	payload := make([]byte, 256)
	for i := range payload {
		payload[i] = byte(i * 3)
	}
	sectSize := uint32(len(payload)) + integrity.Size

	flashA := &memFlash{data: make([]byte, sectSize)}
	flashB := &memFlash{data: make([]byte, sectSize)}
	copy(flashA.data, payload)
	copy(flashB.data, payload)

	if err := integrity.Create(flashA, 0, sectSize, uint32(len(payload)), 100000099); err != nil {
		t.Fatalf("Create (A) failed: %v", err)
	}
	if err := integrity.Create(flashB, 0, sectSize, uint32(len(payload)), 100000099); err != nil {
		t.Fatalf("Create (B) failed: %v", err)
	}
	if diff := cmp.Diff(flashA.data, flashB.data); diff != "" {
		t.Fatalf("two Create calls over identical input produced different records (-A +B):\n%s", diff)
	}
}

func TestICRVerifyRejectsCorruption(t *testing.T) {
	payload := make([]byte, 512)
	sectSize := uint32(len(payload)) + integrity.Size
	flash := &memFlash{data: make([]byte, sectSize)}
	copy(flash.data, payload)
	if err := integrity.Create(flash, 0, sectSize, uint32(len(payload)), 100000099); err != nil {
		t.Fatal(err)
	}
	flash.data[10] ^= 0xFF
	if integrity.Verify(flash, 0, sectSize, nil) {
		t.Fatal("corrupted payload must not verify")
	}
}

func TestICRVerifyRejectsBadMagic(t *testing.T) {
	payload := make([]byte, 128)
	sectSize := uint32(len(payload)) + integrity.Size
	flash := &memFlash{data: make([]byte, sectSize)}
	copy(flash.data, payload)
	if err := integrity.Create(flash, 0, sectSize, uint32(len(payload)), 1); err != nil {
		t.Fatal(err)
	}
	flash.data[sectSize-integrity.Size] ^= 0xFF // corrupt magic word
	if integrity.Verify(flash, 0, sectSize, nil) {
		t.Fatal("bad magic must not verify")
	}
}

func TestCheckSectSize(t *testing.T) {
	if !integrity.CheckSectSize(1024+integrity.Size, 1024) {
		t.Fatal("exact fit should be accepted")
	}
	if integrity.CheckSectSize(1024+integrity.Size-1, 1024) {
		t.Fatal("undersized section must be rejected")
	}
	if integrity.CheckSectSize(0, 1024) || integrity.CheckSectSize(2048, 0) {
		t.Fatal("zero sect_size or pl_size must be rejected")
	}
}

func TestGetVersionWithoutCRCCheck(t *testing.T) {
	payload := make([]byte, 256)
	sectSize := uint32(len(payload)) + integrity.Size
	flash := &memFlash{data: make([]byte, sectSize)}
	copy(flash.data, payload)
	if err := integrity.Create(flash, 0, sectSize, uint32(len(payload)), 5); err != nil {
		t.Fatal(err)
	}
	// Corrupt payload (not the record), GetVersion must still succeed since
	// it does not check the payload CRC.
	flash.data[0] ^= 0xFF
	ver, ok := integrity.GetVersion(flash, 0, sectSize)
	if !ok || ver != 5 {
		t.Fatalf("GetVersion = (%d, %v), want (5, true)", ver, ok)
	}
}

func TestVCRRoundTrip(t *testing.T) {
	sectSize := uint32(4096)
	flash := &memFlash{data: make([]byte, sectSize)}
	if err := integrity.WriteVCR(flash, 0, sectSize, 100000099, integrity.Starting); err != nil {
		t.Fatal(err)
	}
	ver, ok := integrity.GetVCRVersion(flash, 0, sectSize, integrity.Starting)
	if !ok || ver != 100000099 {
		t.Fatalf("got (%d, %v), want (100000099, true)", ver, ok)
	}
}

func TestVCRLatestWins(t *testing.T) {
	sectSize := uint32(4096)
	flash := &memFlash{data: make([]byte, sectSize)}
	if err := integrity.WriteVCR(flash, 0, sectSize, 100000099, integrity.Starting); err != nil {
		t.Fatal(err)
	}
	if err := integrity.WriteVCR(flash, 0, sectSize, 200000099, integrity.Ending); err != nil {
		t.Fatal(err)
	}
	ver, ok := integrity.GetVCRVersion(flash, 0, sectSize, integrity.Any)
	if !ok || ver != 200000099 {
		t.Fatalf("got (%d, %v), want (200000099, true) [ending wins]", ver, ok)
	}

	// Corrupt the starting VCR: ending placement should still be picked up.
	flash.data[0] ^= 0xFF
	ver, ok = integrity.GetVCRVersion(flash, 0, sectSize, integrity.Any)
	if !ok || ver != 200000099 {
		t.Fatalf("with starting corrupted, got (%d, %v), want (200000099, true)", ver, ok)
	}
}

func TestVCRNoneValid(t *testing.T) {
	sectSize := uint32(4096)
	flash := &memFlash{data: make([]byte, sectSize)}
	if _, ok := integrity.GetVCRVersion(flash, 0, sectSize, integrity.Any); ok {
		t.Fatal("expected no valid VCR on blank flash")
	}
}
