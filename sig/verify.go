// Package sig implements fingerprint-indexed multi-signature verification
// over a Bech32-encoded message, per spec.md §3/§4.3.
package sig

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/cryptoadvance/specter-bootloader-go/util"
)

const (
	// PubkeySize is the size of an uncompressed secp256k1 public key.
	PubkeySize = 65
	// PubkeyPrefix is the mandatory first byte of a valid public key.
	PubkeyPrefix = 0x04
	// FingerprintSize is the size of a public key fingerprint.
	FingerprintSize = 16
	// SignatureSize is the size of a compact secp256k1 signature.
	SignatureSize = 64
	// RecordSize is the size of one (fingerprint, signature) record.
	RecordSize = FingerprintSize + SignatureSize
	// MaxRecords bounds the Signature section payload size.
	MaxRecords = 32

	algoSecp256k1SHA256 = "secp256k1-sha256"
	bitcoinSigPrefix    = "\x18Bitcoin Signed Message:\n"
	varintMaxOneByte    = 0xFC
)

// Sentinel errors mirroring blsig_error_t. VerifyMultisig returns one of
// these (wrapped) on failure, or a non-negative signature count on success.
var (
	ErrBadArg            = errors.New("sig: bad argument")
	ErrAlgoNotSupported  = errors.New("sig: signature algorithm not supported")
	ErrOutOfMemory       = errors.New("sig: out of memory")
	ErrDuplicatingSig    = errors.New("sig: duplicating signature")
	ErrVerificationFail  = errors.New("sig: signature verification failed")
)

// PubKey is an uncompressed secp256k1 public key.
type PubKey [PubkeySize]byte

// Valid reports whether k starts with the mandatory 0x04 prefix.
func (k PubKey) Valid() bool {
	return k[0] == PubkeyPrefix
}

// Fingerprint is the first 16 bytes of SHA-256(public key bytes).
type Fingerprint [FingerprintSize]byte

// FingerprintOf computes the fingerprint of a public key.
func FingerprintOf(k PubKey) Fingerprint {
	digest := sha256.Sum256(k[:])
	var fp Fingerprint
	copy(fp[:], digest[:FingerprintSize])
	return fp
}

// KeyList is an ordered list of public keys, e.g. all Vendor keys.
type KeyList []PubKey

// Valid reports whether every key in the list starts with the 0x04 prefix.
func (l KeyList) Valid() bool {
	for _, k := range l {
		if !k.Valid() {
			return false
		}
	}
	return true
}

// KeySet is an ordered set of key lists searched in order, e.g.
// {vendor_keys, maintainer_keys}.
type KeySet []KeyList

// TotalKeys returns the total number of keys across every list in the set.
func (s KeySet) TotalKeys() int {
	n := 0
	for _, l := range s {
		n += len(l)
	}
	return n
}

func (s KeySet) find(fp Fingerprint) (PubKey, bool) {
	for _, list := range s {
		for _, key := range list {
			if FingerprintOf(key) == fp {
				return key, true
			}
		}
	}
	return PubKey{}, false
}

type sigRecord struct {
	fingerprint Fingerprint
	signature   [SignatureSize]byte
}

func parseRecords(payload []byte) ([]sigRecord, error) {
	if len(payload) == 0 || len(payload)%RecordSize != 0 {
		return nil, fmt.Errorf("%w: signature payload size %d is not a positive multiple of %d", ErrBadArg, len(payload), RecordSize)
	}
	n := len(payload) / RecordSize
	if n > MaxRecords {
		return nil, fmt.Errorf("%w: %d signature records exceeds maximum %d", ErrBadArg, n, MaxRecords)
	}
	recs := make([]sigRecord, n)
	for i := range recs {
		off := i * RecordSize
		copy(recs[i].fingerprint[:], payload[off:off+FingerprintSize])
		copy(recs[i].signature[:], payload[off+FingerprintSize:off+RecordSize])
	}
	return recs, nil
}

func hasDuplicates(recs []sigRecord) bool {
	seen := make(map[Fingerprint]struct{}, len(recs))
	for _, r := range recs {
		if _, ok := seen[r.fingerprint]; ok {
			return true
		}
		seen[r.fingerprint] = struct{}{}
	}
	return false
}

// bitcoinMessageDigest computes SHA-256(SHA-256("\x18Bitcoin Signed
// Message:\n" ‖ varint(len) ‖ message)), per spec.md §4.3, with a
// single-byte varint capping message length at 252 bytes.
func bitcoinMessageDigest(message []byte) ([32]byte, error) {
	if len(message) == 0 || len(message) > varintMaxOneByte {
		return [32]byte{}, fmt.Errorf("%w: message length %d out of range", ErrBadArg, len(message))
	}
	inner := sha256.New()
	inner.Write([]byte(bitcoinSigPrefix))
	inner.Write([]byte{byte(len(message))})
	inner.Write(message)
	innerDigest := inner.Sum(nil)
	outer := sha256.Sum256(innerDigest)
	return outer, nil
}

// SignMessage signs message with priv under the same digest VerifyMultisig
// checks signatures against, for tools that build upgrade files.
func SignMessage(priv *btcec.PrivateKey, message []byte) ([SignatureSize]byte, error) {
	digest, err := bitcoinMessageDigest(message)
	if err != nil {
		return [SignatureSize]byte{}, err
	}
	compact := ecdsa.SignCompact(priv, digest[:], false)
	var out [SignatureSize]byte
	copy(out[:], compact[1:])
	return out, nil
}

// parseCompactSignature decodes a 64-byte compact (r‖s) secp256k1 signature
// into an *ecdsa.Signature, rejecting components outside the curve order.
func parseCompactSignature(sigBytes []byte) (*ecdsa.Signature, bool) {
	if len(sigBytes) != SignatureSize {
		return nil, false
	}
	var r, s btcec.ModNScalar
	if overflow := r.SetByteSlice(sigBytes[:32]); overflow {
		return nil, false
	}
	if overflow := s.SetByteSlice(sigBytes[32:]); overflow {
		return nil, false
	}
	if r.IsZero() || s.IsZero() {
		return nil, false
	}
	return ecdsa.NewSignature(&r, &s), true
}

func verifySignature(sigBytes []byte, digest [32]byte, key PubKey) bool {
	pub, err := btcec.ParsePubKey(key[:])
	if err != nil {
		return false
	}
	parsed, ok := parseCompactSignature(sigBytes)
	if !ok {
		return false
	}
	return parsed.Verify(digest[:], pub)
}

// VerifyMultisig verifies every signature record in sigPayload against
// pubkeySet, returning the number of valid signatures or a negative-mapped
// error per spec.md §4.3's contract (expressed here as a Go error instead of
// a negative int32, with the count returned as int32 on success).
func VerifyMultisig(algorithm string, sigPayload []byte, pubkeySet KeySet, message []byte, progress util.ProgressFunc, tag util.Tag) (int32, error) {
	if algorithm == "" || len(pubkeySet) == 0 || len(message) == 0 {
		return -1, ErrBadArg
	}
	if algorithm != algoSecp256k1SHA256 {
		return -1, ErrAlgoNotSupported
	}
	recs, err := parseRecords(sigPayload)
	if err != nil {
		return -1, err
	}
	if hasDuplicates(recs) {
		return -1, ErrDuplicatingSig
	}
	digest, err := bitcoinMessageDigest(message)
	if err != nil {
		return -1, err
	}

	nValid := int32(0)
	total := uint32(len(recs))
	util.Report(progress, tag, total, 0)
	for idx, rec := range recs {
		key, found := pubkeySet.find(rec.fingerprint)
		if found {
			if verifySignature(rec.signature[:], digest, key) {
				nValid++
			} else {
				return -1, ErrVerificationFail
			}
		}
		util.Report(progress, tag, total, uint32(idx+1))
	}
	return nValid, nil
}
