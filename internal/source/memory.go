package source

import (
	"context"
	"fmt"
	"sync"

	"firestige.xyz/grbr/internal/core"
)

// Memory is an in-memory source. Append lets it stand in for a growing
// stream; reads past the end are short reads.
type Memory struct {
	name string

	mu   sync.RWMutex
	data []byte
}

// NewMemory returns a Memory source holding data.
func NewMemory(name string, data []byte) *Memory {
	return &Memory{name: name, data: data}
}

func (m *Memory) Name() string { return m.name }

func (m *Memory) ReadFull(ctx context.Context, off int64, n int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if off < 0 || off+int64(n) > int64(len(m.data)) {
		return nil, fmt.Errorf("%w: %s: want %d octets at %d, have %d", core.ErrShortRead, m.name, n, off, len(m.data))
	}
	out := make([]byte, n)
	copy(out, m.data[off:])
	return out, nil
}

// Append grows the source.
func (m *Memory) Append(b []byte) {
	m.mu.Lock()
	m.data = append(m.data, b...)
	m.mu.Unlock()
}

// Size returns the number of octets held.
func (m *Memory) Size() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.data)), nil
}

func (m *Memory) Close() error { return nil }
