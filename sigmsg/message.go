// Package sigmsg builds the deterministic Bech32-encoded message signed
// over a set of Payload section hashes, as specified in spec.md §3/§4.2.
package sigmsg

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/cryptoadvance/specter-bootloader-go/section"
	"github.com/cryptoadvance/specter-bootloader-go/util"
)

// MaxMessageLen is the largest Bech32-encoded message this package produces.
const MaxMessageLen = 90

// briefName maps a section name to its HRP prefix. Unknown names fail.
func briefName(sectName string) (string, bool) {
	switch sectName {
	case section.BootSectionName:
		return "b", true
	case section.MainSectionName:
		return "", true
	default:
		return "", false
	}
}

// Make builds the signature message for hashes, in the order given (which
// must be the order sections were processed), returning the Bech32-encoded
// string.
func Make(hashes []section.Hash) (string, error) {
	if len(hashes) == 0 {
		return "", fmt.Errorf("sigmsg: no hashes supplied")
	}
	hrp := ""
	digestConcat := make([]byte, 0, len(hashes)*32)
	for _, h := range hashes {
		prefix, ok := briefName(h.SectName)
		if !ok {
			return "", fmt.Errorf("sigmsg: unrecognized section name %q", h.SectName)
		}
		verStr, ok := util.VersionToSigStr(h.PlVer)
		if !ok {
			return "", fmt.Errorf("sigmsg: section %q has no valid version", h.SectName)
		}
		hrp += prefix + verStr + "-"
		digestConcat = append(digestConcat, h.Digest[:]...)
	}
	digest := sha256.Sum256(digestConcat)
	data, err := bech32.ConvertBits(digest[:], 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("sigmsg: regrouping digest to 5-bit words: %w", err)
	}
	msg, err := bech32.Encode(hrp, data)
	if err != nil {
		return "", fmt.Errorf("sigmsg: bech32 encoding failed: %w", err)
	}
	if len(msg) > MaxMessageLen {
		return "", fmt.Errorf("sigmsg: encoded message length %d exceeds maximum %d", len(msg), MaxMessageLen)
	}
	return msg, nil
}
