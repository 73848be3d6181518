package kat

// Reference vectors reused verbatim from the firmware's cryptographic KAT
// suite: a fixed message, its SHA-256 digest, and an ECDSA secp256k1
// keypair/signature over that digest.

var refMessage = []byte(
	"Lorem ipsum dolor sit amet, consectetur adipiscing elit. Sed " +
		"ornare tincidunt pharetra. Mauris at molestie quam, et " +
		"placerat justo. Aenean maximus quam tortor, vel pellentesque " +
		"sapien tincidunt lacinia. Vivamus id dui at magna lacinia " +
		"lacinia porttitor eu justo. Phasellus scelerisque porta " +
		"augue. Vestibulum id diam vulputate, sagittis nibh eu, " +
		"egestas mi. Proin congue imperdiet dictum.")

var refDigest = [32]byte{
	0xDE, 0x07, 0x57, 0x18, 0x95, 0xD0, 0x02, 0x3E, 0x85, 0xD6, 0xB3,
	0xE2, 0x80, 0x73, 0x6A, 0xF4, 0x81, 0xC2, 0xE8, 0x06, 0x41, 0x12,
	0x84, 0xA8, 0x04, 0xE0, 0xD7, 0x66, 0xCF, 0x8C, 0xBF, 0x26,
}

var refSeckey = [32]byte{
	0x97, 0xBB, 0x5C, 0x85, 0x61, 0x42, 0x3B, 0x38, 0xA9, 0x44, 0x4E,
	0x9A, 0x0D, 0x9B, 0xF8, 0xC9, 0x21, 0xD5, 0xB6, 0x41, 0xCB, 0x25,
	0xFE, 0x3C, 0x72, 0xAB, 0x05, 0xDF, 0x7A, 0xEF, 0x4E, 0x35,
}

var refPubkey = [65]byte{
	0x04, 0x0B, 0x61, 0x6D, 0x40, 0x3D, 0x49, 0x56, 0xE6, 0xAB, 0x00,
	0x7A, 0x36, 0xE2, 0xA7, 0xA5, 0x73, 0x19, 0xFA, 0x82, 0x36, 0x19,
	0x77, 0xBB, 0x30, 0x73, 0x80, 0xFA, 0x43, 0xFF, 0x8F, 0x83, 0x26,
	0x24, 0xB5, 0x70, 0x42, 0x26, 0xBB, 0x0C, 0x87, 0xDF, 0x8F, 0x49,
	0xB4, 0xBF, 0x46, 0x3D, 0x18, 0xBC, 0x29, 0x2B, 0xCE, 0xFD, 0x83,
	0xF2, 0x9F, 0x5B, 0x81, 0xE0, 0xC9, 0x02, 0xC6, 0x5E, 0x21,
}

// refSignature is the reference compact ECDSA signature of refDigest under
// refSeckey, computed by the firmware's secp256k1 library. It is used only
// to KAT the verification path; signing is a separate, self-consistency KAT
// since the Go ECDSA implementation's nonce derivation need not produce
// byte-identical output to the firmware's.
var refSignature = [64]byte{
	0x67, 0x82, 0x2D, 0x4E, 0x66, 0x24, 0x83, 0xDF, 0x02, 0xD7, 0xF7,
	0x98, 0x6D, 0x5B, 0x7C, 0xDB, 0x80, 0xBF, 0xCA, 0xB4, 0x2D, 0xCE,
	0xB0, 0xE8, 0xF7, 0xC8, 0x71, 0x39, 0xB3, 0x27, 0xD4, 0xA2, 0x2D,
	0xCB, 0x1E, 0x5B, 0xBE, 0xC4, 0x23, 0x46, 0xFF, 0x1E, 0xA9, 0x51,
	0xB1, 0xC3, 0x07, 0xAC, 0x40, 0xA8, 0x44, 0xB3, 0x84, 0xD7, 0xA1,
	0x0E, 0xC6, 0xF4, 0x44, 0x97, 0xE7, 0xAC, 0xE7, 0x7D,
}
