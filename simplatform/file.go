package simplatform

import (
	"fmt"
	"io"
	"os"
)

// File adapts an *os.File to platform.File, the POSIX-like read-only
// handle the bootloader core uses to read upgrade files from media.
type File struct {
	f    *os.File
	size int64
}

// OpenFile opens path read-only.
func OpenFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("simplatform: opening %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("simplatform: statting %s: %w", path, err)
	}
	return &File{f: f, size: info.Size()}, nil
}

// Read implements io.Reader.
func (f *File) Read(p []byte) (int, error) { return f.f.Read(p) }

// Seek implements io.Seeker.
func (f *File) Seek(offset int64, whence int) (int64, error) { return f.f.Seek(offset, whence) }

// Size returns the file's total size.
func (f *File) Size() (int64, error) { return f.size, nil }

// Tell returns the current read offset.
func (f *File) Tell() (int64, error) { return f.f.Seek(0, io.SeekCurrent) }

// Eof reports whether the current offset is at or past the end of file.
func (f *File) Eof() bool {
	pos, err := f.Tell()
	if err != nil {
		return true
	}
	return pos >= f.size
}

// Close closes the underlying file.
func (f *File) Close() error { return f.f.Close() }
