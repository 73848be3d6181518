package simplatform_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cryptoadvance/specter-bootloader-go/platform"
	"github.com/cryptoadvance/specter-bootloader-go/simplatform"
)

func TestFlashReadWriteEraseCRC(t *testing.T) {
	dir := t.TempDir()
	fl, err := simplatform.OpenFlash(filepath.Join(dir, "flash.img"), 4096)
	if err != nil {
		t.Fatalf("OpenFlash failed: %v", err)
	}
	defer fl.Close()

	payload := []byte("hello flash world")
	if err := fl.Write(100, payload); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got := make([]byte, len(payload))
	if err := fl.Read(100, got); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("read back %q, want %q", got, payload)
	}

	var crc uint32
	if err := fl.CRC32(&crc, 100, uint32(len(payload))); err != nil {
		t.Fatalf("CRC32 failed: %v", err)
	}
	if crc == 0 {
		t.Fatal("expected non-zero CRC")
	}

	if err := fl.Erase(100, uint32(len(payload))); err != nil {
		t.Fatalf("Erase failed: %v", err)
	}
	if err := fl.Read(100, got); err != nil {
		t.Fatal(err)
	}
	for _, b := range got {
		if b != 0xFF {
			t.Fatalf("expected erased bytes to be 0xFF, got %x", got)
		}
	}
}

func TestFlashOutOfRange(t *testing.T) {
	dir := t.TempDir()
	fl, err := simplatform.OpenFlash(filepath.Join(dir, "flash.img"), 16)
	if err != nil {
		t.Fatal(err)
	}
	defer fl.Close()
	if err := fl.Read(10, make([]byte, 100)); err == nil {
		t.Fatal("expected out-of-range read to fail")
	}
}

func TestMediaFindAndOpen(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "update.bin"), []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	media := simplatform.NewMedia([]string{dir})
	if media.Devices() != 1 {
		t.Fatalf("Devices() = %d, want 1", media.Devices())
	}
	if !media.Check(0) {
		t.Fatal("expected device 0 to be present")
	}
	matches, err := media.FindFiles(0, "*.bin")
	if err != nil {
		t.Fatalf("FindFiles failed: %v", err)
	}
	if len(matches) != 1 || matches[0] != "update.bin" {
		t.Fatalf("matches = %v, want [update.bin]", matches)
	}

	if err := media.Mount(0); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	f, err := media.Open("update.bin")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	buf := make([]byte, 3)
	if _, err := f.Read(buf); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(buf) != "abc" {
		t.Fatalf("read %q, want abc", buf)
	}
	size, _ := f.Size()
	if size != 3 {
		t.Fatalf("Size() = %d, want 3", size)
	}
}

func TestMediaCheckAbsentDevice(t *testing.T) {
	media := simplatform.NewMedia([]string{"/nonexistent/path/xyz"})
	if media.Check(0) {
		t.Fatal("expected nonexistent device to fail check")
	}
	if err := media.Mount(0); err == nil {
		t.Fatal("expected mount of absent device to fail")
	}
}

func TestFlashMapConfig(t *testing.T) {
	fm := simplatform.FlashMapConfig{
		platform.FirmwareBase: 0x1000,
		platform.FirmwareSize: 0x8000,
	}
	addr, err := fm.FlashMapItem(platform.FirmwareBase)
	if err != nil || addr != 0x1000 {
		t.Fatalf("FlashMapItem = (%v, %v), want (0x1000, nil)", addr, err)
	}
	if _, err := fm.FlashMapItem(platform.BootloaderSize); err == nil {
		t.Fatal("expected error for unconfigured item")
	}
}
