package decoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"firestige.xyz/grbr/internal/core"
	"firestige.xyz/grbr/internal/metrics"
	"firestige.xyz/grbr/internal/source"
)

// ReassemblyConfig contains configuration for bundle reassembly.
type ReassemblyConfig struct {
	Policy Policy // integrity gate applied to every packet

	// PermissiveOrphans accumulates from a leading continuation packet as
	// if it were a first packet. Off by default: such a bundle lost its
	// head and is skipped instead.
	PermissiveOrphans bool
}

// SkipError reports a bundle that was read to its end but must not be
// used. The stream position is still known: Offset+Length is the next
// bundle.
type SkipError struct {
	Offset int64
	Length int64
	Err    error
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("skip %d octets at %d: %v", e.Length, e.Offset, e.Err)
}

func (e *SkipError) Unwrap() error { return e.Err }

// Next returns the offset to resume scanning from.
func (e *SkipError) Next() int64 { return e.Offset + e.Length }

// Reassembler rebuilds bundles from segmented packets.
type Reassembler struct {
	gate   *Gate
	config ReassemblyConfig
}

// NewReassembler creates a reassembler.
func NewReassembler(cfg ReassemblyConfig) *Reassembler {
	return &Reassembler{
		gate:   NewGate(cfg.Policy),
		config: cfg,
	}
}

// Reassemble reads the bundle that starts at off.
//
// Returns:
//   - unsegmented packet: a bundle of one packet
//   - first packet: a bundle of every packet up to and including the next
//     last packet; sequence gaps are counted and logged, never fatal
//   - leading continuation or last packet: *SkipError wrapping
//     core.ErrOrphanSegment with the length of that one packet
//   - gate rejection under a Toss policy: *SkipError wrapping core.ErrCRC
//     or core.ErrValidation spanning the whole bundle
//   - APID change mid-bundle: core.ErrAPIDMismatch, bundle discarded
//   - read or decode failure: the underlying error
func (r *Reassembler) Reassemble(ctx context.Context, src source.Source, off int64) (*core.Bundle, error) {
	first, err := r.read(ctx, src, off)
	if err != nil {
		return nil, err
	}
	rejected := first.rejected

	b := &core.Bundle{
		Primary:   first.pkt.Primary,
		Secondary: first.pkt.Secondary,
		Payload:   first.pkt.Payload,
		Data:      append([]byte(nil), first.pkt.Body...),
		Offset:    off,
	}
	r.absorb(b, first)

	switch flags := b.Primary.SequenceFlags; {
	case flags == core.SeqUnsegmented:
		return r.finish(b, rejected)
	case flags == core.SeqFirst:
	case flags == core.SeqContinuation && r.config.PermissiveOrphans:
		slog.Warn("bundle starts on a continuation packet, accumulating anyway",
			"apid", fmt.Sprintf("%#x", b.APID()), "offset", off)
	default:
		metrics.OrphanSegmentsTotal.Inc()
		return nil, &SkipError{
			Offset: off,
			Length: b.Length,
			Err: fmt.Errorf("%w: apid %#x starts on a %s packet",
				core.ErrOrphanSegment, b.APID(), flags),
		}
	}

	count := b.Primary.SequenceCount
	next := b.Next()
	for {
		g, err := r.read(ctx, src, next)
		if err != nil {
			return nil, fmt.Errorf("reassemble apid %#x from %d: %w", b.APID(), off, err)
		}
		pkt := g.pkt
		if pkt.Primary.APID != b.APID() {
			slog.Error("apid mismatch, discarding partial bundle",
				"want", fmt.Sprintf("%#x", b.APID()),
				"got", fmt.Sprintf("%#x", pkt.Primary.APID),
				"offset", next)
			return nil, fmt.Errorf("%w: %#x != %#x at %d", core.ErrAPIDMismatch, pkt.Primary.APID, b.APID(), next)
		}

		want := (count + 1) % core.SequenceModulus
		if pkt.Primary.SequenceCount != want {
			b.SequenceGaps++
			metrics.SequenceGapsTotal.Inc()
			slog.Warn("sequence counter out of order",
				"apid", fmt.Sprintf("%#x", b.APID()),
				"got", pkt.Primary.SequenceCount,
				"expected", want,
				"offset", next)
		}
		count = pkt.Primary.SequenceCount

		if rejected == nil {
			rejected = g.rejected
		}
		b.Data = append(b.Data, pkt.Body...)
		r.absorb(b, g)
		next = b.Next()

		if pkt.Primary.SequenceFlags == core.SeqLast {
			return r.finish(b, rejected)
		}
	}
}

// gated is a decoded packet with the gate's findings. rejected is set
// when a Toss policy refused the packet; the caller still needs its
// length to measure the bundle.
type gated struct {
	pkt      *core.Packet
	verdict  Verdict
	rejected error
}

func (r *Reassembler) read(ctx context.Context, src source.Source, off int64) (gated, error) {
	pkt, err := DecodePacket(ctx, src, off)
	if err != nil {
		return gated{}, err
	}
	metrics.PacketsDecodedTotal.Inc()

	v, rejected := r.gate.Check(pkt)
	return gated{pkt: pkt, verdict: v, rejected: rejected}, nil
}

func (r *Reassembler) absorb(b *core.Bundle, g gated) {
	b.Packets = append(b.Packets, g.pkt.Span)
	b.Length += int64(g.pkt.Span.Length)
	if g.verdict.CRCFailed {
		b.CRCFailures++
	}
	b.ValidationErrors += len(g.verdict.Findings)
}

func (r *Reassembler) finish(b *core.Bundle, rejected error) (*core.Bundle, error) {
	if rejected != nil {
		return nil, &SkipError{Offset: b.Offset, Length: b.Length, Err: rejected}
	}
	metrics.BundlesReassembledTotal.WithLabelValues(segmentation(b)).Inc()
	metrics.BundleSizeBytes.Observe(float64(len(b.Data)))
	return b, nil
}

func segmentation(b *core.Bundle) string {
	if b.Segmented() {
		return "segmented"
	}
	return "unsegmented"
}

// IsSkip reports whether err leaves the stream position known, and returns
// the offset to resume from.
func IsSkip(err error) (int64, bool) {
	var se *SkipError
	if errors.As(err, &se) {
		return se.Next(), true
	}
	return 0, false
}
