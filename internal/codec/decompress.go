// Package codec holds the pluggable payload stages between a reassembled
// bundle and the artifact: decompression by algorithm code and the
// instrument codecs that write decoded slices.
package codec

import (
	"errors"
	"fmt"
	"sync"
)

// Compression algorithm codes carried in the payload header.
const (
	CompressionNone     uint8 = 0
	CompressionJPEG2000 uint8 = 1
	CompressionSZIP     uint8 = 2
)

// ErrUnsupportedCompression is returned for algorithm codes with no
// registered decompressor.
var ErrUnsupportedCompression = errors.New("grbr: unsupported compression algorithm")

// Decompressor decodes one payload buffer.
type Decompressor interface {
	Decompress(src []byte) ([]byte, error)
}

// DecompressorFunc adapts a function to Decompressor.
type DecompressorFunc func(src []byte) ([]byte, error)

func (f DecompressorFunc) Decompress(src []byte) ([]byte, error) { return f(src) }

// Passthrough returns its input unchanged.
var Passthrough = DecompressorFunc(func(src []byte) ([]byte, error) { return src, nil })

// Decompressors maps algorithm codes to decompressors. Code 0 is built in.
type Decompressors struct {
	mu sync.RWMutex
	m  map[uint8]Decompressor
}

// NewDecompressors creates a registry holding the passthrough decoder.
func NewDecompressors() *Decompressors {
	return &Decompressors{m: map[uint8]Decompressor{CompressionNone: Passthrough}}
}

// Register adds d for code. Registering a code twice is an error.
func (r *Decompressors) Register(code uint8, d Decompressor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.m[code]; exists {
		return fmt.Errorf("decompressor for algorithm %d already registered", code)
	}
	r.m[code] = d
	return nil
}

// Decompress decodes src with the decompressor registered for code.
func (r *Decompressors) Decompress(code uint8, src []byte) ([]byte, error) {
	r.mu.RLock()
	d, ok := r.m[code]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedCompression, code)
	}
	out, err := d.Decompress(src)
	if err != nil {
		return nil, fmt.Errorf("decompress algorithm %d: %w", code, err)
	}
	return out, nil
}
