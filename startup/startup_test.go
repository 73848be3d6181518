package startup_test

import (
	"fmt"
	"testing"

	"github.com/cryptoadvance/specter-bootloader-go/integrity"
	"github.com/cryptoadvance/specter-bootloader-go/platform"
	"github.com/cryptoadvance/specter-bootloader-go/startup"
)

// memFlash is a minimal in-memory platform.Flash for startup tests.
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
	*crc = crcOf(*crc, buf)
	return nil
}
func (f *memFlash) WriteProtect(addr platform.Addr, size uint32, enable bool) error { return nil }
func (f *memFlash) ReadProtect(level int) error                                    { return nil }
func (f *memFlash) ReadProtectionLevel() (int, error)                              { return -1, nil }

func crcOf(prev uint32, buf []byte) uint32 {
	const poly = 0xEDB88320
	crc := ^prev
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

const slotSize = 1024

func TestSelectHighestValidVersionWins(t *testing.T) {
	flash := &memFlash{data: make([]byte, 2*slotSize)}
	slot1 := platform.Addr(0)
	slot2 := platform.Addr(slotSize)

	if err := integrity.Create(flash, slot1, slotSize, slotSize-integrity.Size, 100); err != nil {
		t.Fatal(err)
	}
	if err := integrity.Create(flash, slot2, slotSize, slotSize-integrity.Size, 99); err != nil {
		t.Fatal(err)
	}
	// Corrupt slot1's ICR CRC, per the S6 scenario: slot1 has the higher
	// version but a corrupted record, so slot2 must win.
	flash.data[slot1+slotSize-4] ^= 0xFF

	selected, err := startup.Select(flash, []platform.Addr{slot1, slot2}, slotSize)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if selected != slot2 {
		t.Fatalf("selected %d, want slot2 (%d)", selected, slot2)
	}
}

func TestSelectBothValidPicksHigherVersion(t *testing.T) {
	flash := &memFlash{data: make([]byte, 2*slotSize)}
	slot1 := platform.Addr(0)
	slot2 := platform.Addr(slotSize)
	if err := integrity.Create(flash, slot1, slotSize, slotSize-integrity.Size, 100); err != nil {
		t.Fatal(err)
	}
	if err := integrity.Create(flash, slot2, slotSize, slotSize-integrity.Size, 200); err != nil {
		t.Fatal(err)
	}
	selected, err := startup.Select(flash, []platform.Addr{slot1, slot2}, slotSize)
	if err != nil {
		t.Fatal(err)
	}
	if selected != slot2 {
		t.Fatalf("selected %d, want slot2 (%d)", selected, slot2)
	}
}

func TestSelectFallsBackToSameVersionAlternate(t *testing.T) {
	flash := &memFlash{data: make([]byte, 2*slotSize)}
	slot1 := platform.Addr(0)
	slot2 := platform.Addr(slotSize)
	if err := integrity.Create(flash, slot1, slotSize, slotSize-integrity.Size, 50); err != nil {
		t.Fatal(err)
	}
	if err := integrity.Create(flash, slot2, slotSize, slotSize-integrity.Size, 50); err != nil {
		t.Fatal(err)
	}
	// Corrupt slot1's payload so its ICR no longer verifies.
	flash.data[0] ^= 0xFF

	selected, err := startup.Select(flash, []platform.Addr{slot1, slot2}, slotSize)
	if err != nil {
		t.Fatal(err)
	}
	if selected != slot2 {
		t.Fatalf("selected %d, want slot2 (%d)", selected, slot2)
	}
}

func TestSelectNoValidCopy(t *testing.T) {
	flash := &memFlash{data: make([]byte, 2*slotSize)}
	_, err := startup.Select(flash, []platform.Addr{0, slotSize}, slotSize)
	if err != startup.ErrNoValidCopy {
		t.Fatalf("expected ErrNoValidCopy, got %v", err)
	}
}

func TestMailboxRoundTrip(t *testing.T) {
	args := startup.Args{LoadedFrom: 0x08004000, StartupVersion: 100000099}
	buf := args.Encode()
	if len(buf) != startup.MailboxSize {
		t.Fatalf("encoded length = %d, want %d", len(buf), startup.MailboxSize)
	}
	got, ok := startup.DecodeArgs(buf)
	if !ok {
		t.Fatal("expected mailbox to decode")
	}
	if got != args {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, args)
	}
}

func TestMailboxRejectsCorruption(t *testing.T) {
	args := startup.Args{LoadedFrom: 1, StartupVersion: 2}
	buf := args.Encode()
	buf[0] ^= 0xFF
	if _, ok := startup.DecodeArgs(buf); ok {
		t.Fatal("expected corrupted mailbox to be rejected")
	}
}
