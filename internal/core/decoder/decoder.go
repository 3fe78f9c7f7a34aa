// Package decoder implements CCSDS space packet decoding, integrity checks
// and bundle reassembly for the GRB stream.
package decoder

import (
	"context"
	"fmt"

	"firestige.xyz/grbr/internal/core"
	"firestige.xyz/grbr/internal/source"
)

// DecodePacket reads the packet at off. The primary header is read first to
// learn the packet length, then the whole packet is read before anything
// else is parsed. Short reads are reported as core.ErrShortRead; a live
// source retries them itself.
func DecodePacket(ctx context.Context, src source.Source, off int64) (*core.Packet, error) {
	hdr, err := src.ReadFull(ctx, off, core.PrimaryHeaderSize)
	if err != nil {
		return nil, fmt.Errorf("primary header at %d: %w", off, err)
	}
	h1, err := ParsePrimaryHeader(hdr)
	if err != nil {
		return nil, err
	}

	raw, err := src.ReadFull(ctx, off, h1.PacketLength())
	if err != nil {
		return nil, fmt.Errorf("packet at %d: %w", off, err)
	}
	pkt, err := ParsePacket(raw)
	if err != nil {
		return nil, fmt.Errorf("packet at %d: %w", off, err)
	}
	pkt.Span = core.RawPacket{Offset: off, Length: len(raw)}
	return pkt, nil
}
