// Package source provides byte-addressable inputs for the packet decoder.
//
// A File is a complete, immutable capture: running past its end is final.
// A Tail is a file that is still being written by a receiver: running past
// its end means the bytes have not arrived yet, so reads wait and retry.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"firestige.xyz/grbr/internal/core"
)

// DefaultPollInterval is the wait between size checks on a live source.
const DefaultPollInterval = 5 * time.Second

// Source is a byte-addressable input. Implementations must be safe for
// concurrent readers.
type Source interface {
	// Name identifies the source; workers reopen sources by name.
	Name() string
	// ReadFull returns exactly n octets at off, or an error wrapping
	// core.ErrShortRead when fewer are available.
	ReadFull(ctx context.Context, off int64, n int) ([]byte, error)
	Close() error
}

// File is a complete file read with ReadAt.
type File struct {
	name string
	f    *os.File
}

// OpenFile opens path as a complete source.
func OpenFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source %s: %w", path, err)
	}
	return &File{name: path, f: f}, nil
}

func (s *File) Name() string { return s.name }

func (s *File) ReadFull(ctx context.Context, off int64, n int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	got, err := s.f.ReadAt(buf, off)
	if got == n {
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s: want %d octets at %d, have %d", core.ErrShortRead, s.name, n, off, got)
	}
	return nil, fmt.Errorf("read %s at %d: %w", s.name, off, err)
}

// Size returns the current file size.
func (s *File) Size() (int64, error) {
	st, err := s.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", s.name, err)
	}
	return st.Size(), nil
}

func (s *File) Close() error {
	return s.f.Close()
}
