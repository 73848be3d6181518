package memmap_test

import (
	"testing"

	"github.com/cryptoadvance/specter-bootloader-go/memmap"
	"github.com/cryptoadvance/specter-bootloader-go/platform"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rec := memmap.Record{
		BootloaderSize:    0x8000,
		MainFirmwareStart: 0x10000,
		MainFirmwareSize:  0x70000,
	}
	buf := rec.Encode()
	if len(buf) != memmap.RecordSize {
		t.Fatalf("encoded length = %d, want %d", len(buf), memmap.RecordSize)
	}
	got, err := memmap.Decode(buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if *got != rec {
		t.Fatalf("round trip mismatch: got %+v, want %+v", *got, rec)
	}
}

func TestDecodeRejectsBadTags(t *testing.T) {
	rec := memmap.Record{BootloaderSize: 1, MainFirmwareStart: 2, MainFirmwareSize: 3}
	buf := rec.Encode()
	buf[0] ^= 0xFF
	if _, err := memmap.Decode(buf); err == nil {
		t.Fatal("expected error for corrupted opening tag")
	}
}

func TestDecodeRejectsBadElemSize(t *testing.T) {
	rec := memmap.Record{BootloaderSize: 1, MainFirmwareStart: 2, MainFirmwareSize: 3}
	buf := rec.Encode()
	buf[len("<memory_map:lebin>")] = 8
	if _, err := memmap.Decode(buf); err == nil {
		t.Fatal("expected error for unexpected element size")
	}
}

func TestScanFindsEmbeddedRecord(t *testing.T) {
	rec := memmap.Record{
		BootloaderSize:    platform.Addr(0x4000),
		MainFirmwareStart: platform.Addr(0x20000),
		MainFirmwareSize:  platform.Addr(0x60000),
	}
	firmware := append([]byte("some preamble bytes before the record\x00\x00"), rec.Encode()...)
	firmware = append(firmware, []byte("trailing bytes")...)

	got, offset, ok := memmap.Scan(firmware)
	if !ok {
		t.Fatal("expected to find embedded record")
	}
	if offset != len("some preamble bytes before the record\x00\x00") {
		t.Fatalf("offset = %d, want %d", offset, len("some preamble bytes before the record\x00\x00"))
	}
	if *got != rec {
		t.Fatalf("scanned record mismatch: got %+v, want %+v", *got, rec)
	}
}

func TestScanNoRecord(t *testing.T) {
	if _, _, ok := memmap.Scan([]byte("nothing here")); ok {
		t.Fatal("expected no record found")
	}
}
