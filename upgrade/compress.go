package upgrade

import (
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// Format identifies the container compression applied to an upgrade file on
// removable media, distinct from the CRC/hash integrity machinery inside
// it. A plain, uncompressed upgrade file is the common case; compression
// only helps when media transfer time dominates.
type Format int

const (
	// FormatNone is an uncompressed upgrade file.
	FormatNone Format = iota
	FormatGzip
	FormatBzip2
	FormatXZ
	FormatLZ4
)

// magic byte sequences used to sniff a container's format, the same
// signatures CheckFmt uses in the teacher's format-detection table.
var magics = []struct {
	format Format
	bytes  []byte
}{
	{FormatGzip, []byte{0x1f, 0x8b}},
	{FormatXZ, []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}},
	{FormatLZ4, []byte{0x04, 0x22, 0x4d, 0x18}},
	{FormatBzip2, []byte{'B', 'Z', 'h'}},
}

// DetectFormat sniffs the compression format of an upgrade file from its
// leading bytes, returning FormatNone if none of the known signatures
// match (i.e. the file is an uncompressed section stream).
func DetectFormat(head []byte) Format {
	for _, m := range magics {
		if len(head) >= len(m.bytes) && equalPrefix(head, m.bytes) {
			return m.format
		}
	}
	return FormatNone
}

func equalPrefix(buf, prefix []byte) bool {
	for i, b := range prefix {
		if buf[i] != b {
			return false
		}
	}
	return true
}

// NewReader wraps r with a decompressor for format, or returns r itself
// unwrapped (in an io.NopCloser) for FormatNone.
func NewReader(format Format, r io.Reader) (io.ReadCloser, error) {
	switch format {
	case FormatNone:
		return io.NopCloser(r), nil
	case FormatGzip:
		return gzip.NewReader(r)
	case FormatBzip2:
		return io.NopCloser(bzip2.NewReader(r)), nil
	case FormatXZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("upgrade: opening xz stream: %w", err)
		}
		return io.NopCloser(xr), nil
	case FormatLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("upgrade: unsupported compression format %d", format)
	}
}

// NewWriter wraps w with a compressor for format, used by tooling that
// produces upgrade files rather than by the bootloader itself (which only
// ever reads them). Bzip2 has no writer in the standard library and is
// therefore read-only here, matching the teacher's own Encoder, which
// never implemented a bzip2 case either.
func NewWriter(format Format, w io.Writer) (io.WriteCloser, error) {
	switch format {
	case FormatNone:
		return nopWriteCloser{w}, nil
	case FormatGzip:
		return gzip.NewWriter(w), nil
	case FormatXZ:
		return xz.NewWriter(w)
	case FormatLZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("upgrade: format %d has no writer", format)
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// peekHeadSize is how many leading bytes DecompressIfNeeded reads to sniff
// a container format; long enough for every signature in magics.
const peekHeadSize = 16

// DecompressIfNeeded peeks file's leading bytes for a known container
// compression format. If none is found, it rewinds file and returns it
// unchanged. Otherwise it decompresses file in full into memory and
// returns a seekable wrapping the result, since upgrade files must be
// seekable for section-by-section scanning but compressed readers are
// not. The caller remains responsible for closing the original file.
func DecompressIfNeeded(file seekable) (seekable, error) {
	head := make([]byte, peekHeadSize)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("upgrade: peeking file header: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("upgrade: rewinding file: %w", err)
	}
	format := DetectFormat(head[:n])
	if format == FormatNone {
		return file, nil
	}
	r, err := NewReader(format, file)
	if err != nil {
		return nil, fmt.Errorf("upgrade: opening decompressor for format %d: %w", format, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("upgrade: decompressing upgrade file: %w", err)
	}
	return newMemoryFile(data), nil
}

// memoryFile is a seekable over an in-memory byte slice, standing in for a
// decompressed upgrade file that no longer has a real file behind it.
type memoryFile struct {
	data []byte
	pos  int64
}

func newMemoryFile(data []byte) *memoryFile { return &memoryFile{data: data} }

func (f *memoryFile) Read(p []byte) (int, error) {
	if f.pos >= int64(len(f.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.data[f.pos:])
	f.pos += int64(n)
	return n, nil
}

func (f *memoryFile) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = f.pos
	case io.SeekEnd:
		base = int64(len(f.data))
	default:
		return 0, fmt.Errorf("upgrade: memoryFile: invalid whence %d", whence)
	}
	f.pos = base + offset
	return f.pos, nil
}

func (f *memoryFile) Size() (int64, error) { return int64(len(f.data)), nil }
func (f *memoryFile) Tell() (int64, error) { return f.pos, nil }
