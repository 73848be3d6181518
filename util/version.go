package util

import "fmt"

const (
	// VersionNA denotes "version not available".
	VersionNA uint32 = 0
	// VersionMax is the largest representable version number.
	VersionMax uint32 = 4_199_999_999
	// rcRelease is the reserved rc value meaning "release", not a candidate.
	rcRelease uint32 = 99
)

// EncodeVersion packs major.minor.patch[-rcN] into the wire representation
// major*1e8 + minor*1e5 + patch*1e2 + rc, rc==99 meaning "release".
func EncodeVersion(major, minor, patch, rc uint32) (uint32, error) {
	if rc > rcRelease {
		return 0, fmt.Errorf("util: rc must be in [0, 99], got %d", rc)
	}
	v := major*100_000_000 + minor*100_000 + patch*100 + rc
	if v == VersionNA || v > VersionMax {
		return 0, fmt.Errorf("util: encoded version %d out of range", v)
	}
	return v, nil
}

// DecodeVersion splits a wire version number into major, minor, patch, rc.
// rc==99 means "release" (no release candidate).
func DecodeVersion(v uint32) (major, minor, patch, rc uint32, ok bool) {
	if v == VersionNA || v > VersionMax {
		return 0, 0, 0, 0, false
	}
	major = v / 100_000_000
	minor = (v / 100_000) % 1000
	patch = (v / 100) % 1000
	rc = v % 100
	return major, minor, patch, rc, true
}

// VersionToStr renders a version for display, e.g. "1.22.134-rc5" or
// "12.0.15" for a release. VersionNA renders as "".
func VersionToStr(v uint32) (string, bool) {
	if v == VersionNA {
		return "", true
	}
	major, minor, patch, rc, ok := DecodeVersion(v)
	if !ok {
		return "", false
	}
	if rc == rcRelease {
		return fmt.Sprintf("%d.%d.%d", major, minor, patch), true
	}
	return fmt.Sprintf("%d.%d.%d-rc%d", major, minor, patch, rc), true
}

// VersionToSigStr renders a version for inclusion in a signature message:
// same as VersionToStr but without the dash before "rc", and VersionNA is
// rejected rather than rendered as an empty string.
func VersionToSigStr(v uint32) (string, bool) {
	if v == VersionNA {
		return "", false
	}
	major, minor, patch, rc, ok := DecodeVersion(v)
	if !ok {
		return "", false
	}
	if rc == rcRelease {
		return fmt.Sprintf("%d.%d.%d", major, minor, patch), true
	}
	return fmt.Sprintf("%d.%d.%drc%d", major, minor, patch, rc), true
}
