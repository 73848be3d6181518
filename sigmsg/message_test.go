package sigmsg_test

import (
	"crypto/sha256"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/cryptoadvance/specter-bootloader-go/section"
	"github.com/cryptoadvance/specter-bootloader-go/sigmsg"
)

func hashes() []section.Hash {
	d1 := sha256.Sum256([]byte("boot payload"))
	d2 := sha256.Sum256([]byte("main payload"))
	return []section.Hash{
		{Digest: d1, SectName: "boot", PlVer: 102213405}, // 1.22.134-rc5
		{Digest: d2, SectName: "main", PlVer: 200000099}, // 2.0.0
	}
}

func TestMakeHRP(t *testing.T) {
	msg, err := sigmsg.Make(hashes())
	if err != nil {
		t.Fatalf("Make failed: %v", err)
	}
	hrp, _, err := bech32.Decode(msg)
	if err != nil {
		t.Fatalf("bech32 decode failed: %v", err)
	}
	if hrp != "b1.22.134rc5-2.0.0-" {
		t.Fatalf("hrp = %q, want %q", hrp, "b1.22.134rc5-2.0.0-")
	}
}

func TestMakeDeterministic(t *testing.T) {
	hs := hashes()
	msg1, err := sigmsg.Make(hs)
	if err != nil {
		t.Fatal(err)
	}
	msg2, err := sigmsg.Make(hs)
	if err != nil {
		t.Fatal(err)
	}
	if msg1 != msg2 {
		t.Fatalf("Make is not deterministic: %q != %q", msg1, msg2)
	}
}

func TestMakeDataRecoversDigest(t *testing.T) {
	hs := hashes()
	msg, err := sigmsg.Make(hs)
	if err != nil {
		t.Fatal(err)
	}
	_, data, err := bech32.Decode(msg)
	if err != nil {
		t.Fatal(err)
	}
	recovered, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		t.Fatal(err)
	}
	want := sha256.Sum256(append(append([]byte{}, hs[0].Digest[:]...), hs[1].Digest[:]...))
	if !strings_equalBytes(recovered, want[:]) {
		t.Fatalf("recovered digest mismatch: %x != %x", recovered, want)
	}
}

func strings_equalBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestMakeRejectsUnknownSection(t *testing.T) {
	d := sha256.Sum256([]byte("x"))
	_, err := sigmsg.Make([]section.Hash{{Digest: d, SectName: "weird", PlVer: 100000099}})
	if err == nil {
		t.Fatal("expected error for unrecognized section name")
	}
}

func TestMakeRejectsNAVersion(t *testing.T) {
	d := sha256.Sum256([]byte("x"))
	_, err := sigmsg.Make([]section.Hash{{Digest: d, SectName: "main", PlVer: 0}})
	if err == nil {
		t.Fatal("expected error for absent version")
	}
}

func TestMakeMaxLength(t *testing.T) {
	msg, err := sigmsg.Make(hashes())
	if err != nil {
		t.Fatal(err)
	}
	if len(msg) > sigmsg.MaxMessageLen {
		t.Fatalf("message length %d exceeds max %d", len(msg), sigmsg.MaxMessageLen)
	}
	if !strings.Contains(msg, "1") { // bech32 separator
		t.Fatalf("expected bech32 separator in %q", msg)
	}
}
