package upgrade_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/cryptoadvance/specter-bootloader-go/upgrade"
)

func TestCompressRoundTrip(t *testing.T) {
	formats := []upgrade.Format{upgrade.FormatNone, upgrade.FormatGzip, upgrade.FormatXZ, upgrade.FormatLZ4}
	payload := []byte("upgrade file container payload, repeated for compressibility. " +
		"upgrade file container payload, repeated for compressibility.")

	for _, format := range formats {
		var buf bytes.Buffer
		w, err := upgrade.NewWriter(format, &buf)
		if err != nil {
			t.Fatalf("NewWriter(%d): %v", format, err)
		}
		if _, err := w.Write(payload); err != nil {
			t.Fatalf("Write(%d): %v", format, err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close(%d): %v", format, err)
		}

		r, err := upgrade.NewReader(format, &buf)
		if err != nil {
			t.Fatalf("NewReader(%d): %v", format, err)
		}
		got, err := io.ReadAll(r)
		if err != nil {
			t.Fatalf("ReadAll(%d): %v", format, err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("format %d: round trip mismatch, got %q want %q", format, got, payload)
		}
	}
}

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		name string
		head []byte
		want upgrade.Format
	}{
		{"gzip", []byte{0x1f, 0x8b, 0x08, 0x00}, upgrade.FormatGzip},
		{"xz", []byte{0xfd, '7', 'z', 'X', 'Z', 0x00, 0x00}, upgrade.FormatXZ},
		{"lz4", []byte{0x04, 0x22, 0x4d, 0x18, 0x00}, upgrade.FormatLZ4},
		{"bzip2", []byte{'B', 'Z', 'h', '9'}, upgrade.FormatBzip2},
		{"none", []byte{0x53, 0x45, 0x43, 0x54}, upgrade.FormatNone}, // "SECT"
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := upgrade.DetectFormat(c.head); got != c.want {
				t.Fatalf("DetectFormat(%q) = %d, want %d", c.name, got, c.want)
			}
		})
	}
}

func TestDetectFormatShortHeadIsNone(t *testing.T) {
	if got := upgrade.DetectFormat([]byte{0x1f}); got != upgrade.FormatNone {
		t.Fatalf("DetectFormat on short header = %d, want FormatNone", got)
	}
}
