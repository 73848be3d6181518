package section

import "bytes"

// attrRecord is one decoded TLV record from the attribute list.
type attrRecord struct {
	key   byte
	value []byte
}

// scanAttrs walks the attribute list until key==0 (or the buffer ends),
// returning the decoded records and whether the list is well-formed: every
// record must fit fully within buf, and every byte after the terminator
// must be zero. This is the single scanner underlying both validation and
// lookup, per spec.md §4.1.
func scanAttrs(buf []byte) ([]attrRecord, bool) {
	var recs []attrRecord
	i := 0
	for i < len(buf) {
		key := buf[i]
		if key == 0 {
			// Terminator found: everything after it must be zero.
			return recs, allZero(buf[i:])
		}
		if i+2 > len(buf) {
			return nil, false
		}
		length := int(buf[i+1])
		if i+2+length > len(buf) {
			return nil, false // record does not fit fully
		}
		recs = append(recs, attrRecord{key: key, value: buf[i+2 : i+2+length]})
		i += 2 + length
	}
	// Reached the end of buf without a terminator: per spec, a terminator
	// (key==0) is required before or at the very end of the list; treat
	// running off the end without ever seeing key==0 as malformed.
	return nil, false
}

func allZero(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}
	return true
}

// validateAttrList reports whether buf (the 216-byte attribute area) is a
// well-formed TLV list per the scanAttrs rules.
func validateAttrList(buf []byte) bool {
	_, ok := scanAttrs(buf)
	return ok
}

func findAttr(buf []byte, id Attr) ([]byte, bool) {
	recs, ok := scanAttrs(buf)
	if !ok {
		return nil, false
	}
	for _, r := range recs {
		if r.key == byte(id) {
			return r.value, true
		}
	}
	return nil, false
}

// GetAttrUint decodes an unsigned-integer attribute (little-endian, 0..8
// value bytes, zero-length decoding to 0).
func GetAttrUint(h *Header, id Attr) (uint64, bool) {
	if h == nil {
		return 0, false
	}
	value, ok := findAttr(h.AttrList[:], id)
	if !ok || len(value) > 8 {
		return 0, false
	}
	var result uint64
	for i, b := range value {
		result |= uint64(b) << (8 * i)
	}
	return result, true
}

// GetAttrStr decodes a string attribute, rejecting embedded NULs inside the
// declared length.
func GetAttrStr(h *Header, id Attr) (string, bool) {
	if h == nil {
		return "", false
	}
	value, ok := findAttr(h.AttrList[:], id)
	if !ok {
		return "", false
	}
	if bytes.IndexByte(value, 0) >= 0 {
		return "", false
	}
	return string(value), true
}

// encodeAttrUint encodes value as an unsigned-integer attribute using the
// minimum number of little-endian bytes (0 if value is 0).
func encodeAttrUint(value uint64) []byte {
	if value == 0 {
		return nil
	}
	var buf []byte
	for value > 0 {
		buf = append(buf, byte(value))
		value >>= 8
	}
	return buf
}

// BuildAttrList serializes a set of attributes into a 216-byte TLV area,
// terminated with a key==0 record and zero-padded. Returns false if the
// attributes do not fit.
func BuildAttrList(attrs map[Attr][]byte) ([AttrListSize]byte, bool) {
	var out [AttrListSize]byte
	i := 0
	for id, value := range attrs {
		if i+2+len(value)+1 > AttrListSize { // +1 reserves room for terminator
			return out, false
		}
		out[i] = byte(id)
		out[i+1] = byte(len(value))
		copy(out[i+2:], value)
		i += 2 + len(value)
	}
	// out[i] is already 0 (terminator); remaining bytes are zero by default.
	return out, true
}

// AttrUint is a convenience wrapper around encodeAttrUint, exported for
// callers building attribute maps for BuildAttrList.
func AttrUint(value uint64) []byte {
	return encodeAttrUint(value)
}
