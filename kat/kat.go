// Package kat runs known-answer tests for the cryptographic primitives the
// bootloader depends on (SHA-256, ECDSA/secp256k1), so that a platform with
// a broken crypto library or toolchain misconfiguration fails loudly at
// startup instead of silently accepting forged firmware.
package kat

import (
	"bytes"
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// Sha256 hashes the reference message and compares the digest against the
// known-good reference value.
func Sha256() bool {
	digest := sha256.Sum256(refMessage)
	return bytes.Equal(digest[:], refDigest[:])
}

// EcdsaSecp256k1 runs a sign/verify round trip and a reference-vector
// verification over secp256k1. It fails if signing is not self-consistent,
// if a corrupted digest still verifies, or if the reference signature no
// longer verifies against the reference key and digest.
func EcdsaSecp256k1() bool {
	return ecdsaSignKAT() && ecdsaVerifyKAT()
}

func ecdsaSignKAT() bool {
	priv, pub := btcec.PrivKeyFromBytes(refSeckey[:])
	compact := ecdsa.SignCompact(priv, refDigest[:], false)
	sigObj, err := parseCompact(compact[1:])
	if err != nil {
		return false
	}
	return sigObj.Verify(refDigest[:], pub)
}

func ecdsaVerifyKAT() bool {
	pub, err := btcec.ParsePubKey(refPubkey[:])
	if err != nil {
		return false
	}
	sigObj, err := parseCompact(refSignature[:])
	if err != nil {
		return false
	}
	if !sigObj.Verify(refDigest[:], pub) {
		return false
	}
	corrupted := refDigest
	corrupted[31] ^= 1
	return !sigObj.Verify(corrupted[:], pub)
}

func parseCompact(raw []byte) (*ecdsa.Signature, error) {
	var r, s btcec.ModNScalar
	r.SetByteSlice(raw[:32])
	s.SetByteSlice(raw[32:])
	return ecdsa.NewSignature(&r, &s), nil
}

// RunAll runs every known-answer test and reports whether all of them
// passed, mirroring bl_run_kats' combined pass/fail result.
func RunAll() bool {
	return Sha256() && EcdsaSecp256k1()
}
