package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/grbr/internal/core"
)

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stream.dat")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestFile_ReadFull(t *testing.T) {
	path := writeTemp(t, []byte("0123456789"))
	f, err := OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.ReadFull(context.Background(), 2, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte("2345"), got)
	assert.Equal(t, path, f.Name())

	_, err = f.ReadFull(context.Background(), 8, 4)
	assert.ErrorIs(t, err, core.ErrShortRead)
}

func TestTail_WaitsForGrowth(t *testing.T) {
	path := writeTemp(t, []byte("abc"))
	tail, err := OpenTail(path, 5*time.Millisecond)
	require.NoError(t, err)
	defer tail.Close()

	go func() {
		time.Sleep(20 * time.Millisecond)
		w, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
		if err != nil {
			return
		}
		w.Write([]byte("defgh"))
		w.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, err := tail.ReadFull(ctx, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("cdefg"), got)
}

func TestTail_Cancelled(t *testing.T) {
	path := writeTemp(t, []byte("abc"))
	tail, err := OpenTail(path, time.Millisecond)
	require.NoError(t, err)
	defer tail.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = tail.ReadFull(ctx, 0, 10)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemory_Append(t *testing.T) {
	m := NewMemory("mem", []byte("ab"))
	_, err := m.ReadFull(context.Background(), 0, 3)
	assert.ErrorIs(t, err, core.ErrShortRead)

	m.Append([]byte("c"))
	got, err := m.ReadFull(context.Background(), 0, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}

func TestOpener_CachesByPath(t *testing.T) {
	path := writeTemp(t, []byte("xyz"))
	o := NewOpener(false, 0)
	defer o.Close()

	a, err := o.Open(path)
	require.NoError(t, err)
	b, err := o.Open(path)
	require.NoError(t, err)
	assert.Same(t, a, b)

	mem := NewMemory("virtual", nil)
	o.Add(mem)
	c, err := o.Open("virtual")
	require.NoError(t, err)
	assert.Same(t, mem, c)

	_, err = o.Open(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
