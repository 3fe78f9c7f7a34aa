package dispatch

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/grbr/internal/core"
	"firestige.xyz/grbr/internal/core/decoder"
	"firestige.xyz/grbr/internal/source"
)

func TestValidate(t *testing.T) {
	f := newFixture()
	f.add(packet(t, 0x118, core.SeqContinuation, 5, nil))
	f.add(packet(t, 0x108, core.SeqFirst, 0, header()))
	f.add(packet(t, 0x108, core.SeqLast, 3, nil))
	bad := packet(t, 0x301, core.SeqUnsegmented, 0, header())
	bad[len(bad)-1] ^= 0xff
	f.add(bad)

	rep, err := Validate(context.Background(), f.src, decoder.ReassemblyConfig{Policy: decoder.DefaultPolicy()})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Bundles)
	assert.Equal(t, 3, rep.Packets)
	assert.Equal(t, 1, rep.Skipped)
	assert.Equal(t, 1, rep.SequenceGaps)
	assert.Equal(t, 1, rep.CRCFailures)
	assert.Equal(t, map[uint16]int{0x108: 1, 0x301: 1}, rep.APIDs)
	size, _ := f.src.Size()
	assert.Equal(t, size, rep.Octets)
	assert.False(t, rep.Clean())

	var out bytes.Buffer
	n, err := rep.WriteTo(&out)
	require.NoError(t, err)
	assert.Equal(t, int64(out.Len()), n)
	assert.True(t, strings.Contains(out.String(), "0x108"))
	assert.True(t, strings.Contains(out.String(), "GLM"))
}

func TestValidate_TossSkipsBundle(t *testing.T) {
	f := newFixture()
	bad := packet(t, 0x301, core.SeqUnsegmented, 0, header())
	bad[len(bad)-1] ^= 0xff
	f.add(bad)

	policy := decoder.DefaultPolicy()
	policy.CRC.Toss = true
	rep, err := Validate(context.Background(), f.src, decoder.ReassemblyConfig{Policy: policy})
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Bundles)
	assert.Equal(t, 1, rep.Skipped)
}

func TestReplay(t *testing.T) {
	f := newFixture()
	f.add(packet(t, 0x118, core.SeqContinuation, 5, nil))
	f.add(packet(t, 0x108, core.SeqFirst, 0, header()))
	f.add(packet(t, 0x108, core.SeqLast, 1, nil))
	f.add(packet(t, 0x301, core.SeqUnsegmented, 0, header()))

	var out bytes.Buffer
	n, err := Replay(context.Background(), f.src, &out, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	size, _ := f.src.Size()
	all, err := f.src.ReadFull(context.Background(), 0, int(size))
	require.NoError(t, err)
	assert.Equal(t, all, out.Bytes())

	copied := source.NewMemory("copy", out.Bytes())
	rep, err := Validate(context.Background(), copied, decoder.ReassemblyConfig{Policy: decoder.DefaultPolicy()})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Bundles)
}
