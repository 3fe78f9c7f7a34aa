package dispatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"text/tabwriter"
	"time"

	"firestige.xyz/grbr/internal/apid"
	"firestige.xyz/grbr/internal/core"
	"firestige.xyz/grbr/internal/core/decoder"
	"firestige.xyz/grbr/internal/source"
)

// walk reads every bundle of a complete source in order. skip is called
// for bundles the reassembler skipped, with the octets they span.
func walk(ctx context.Context, r *decoder.Reassembler, src source.Source,
	each func(b *core.Bundle) error, skip func(off, next int64, err error) error) error {
	var off int64
	for {
		b, err := r.Reassemble(ctx, src, off)
		if err != nil {
			if next, ok := decoder.IsSkip(err); ok {
				if err := skip(off, next, err); err != nil {
					return err
				}
				off = next
				continue
			}
			if atEnd(src, off, err) {
				return nil
			}
			return fmt.Errorf("scan %s at %d: %w", src.Name(), off, err)
		}
		if err := each(b); err != nil {
			return err
		}
		off = b.Next()
	}
}

// Report summarizes a validated source.
type Report struct {
	Source           string
	Bundles          int
	Packets          int
	Octets           int64
	Skipped          int
	NoPayloadHeader  int
	CRCFailures      int
	ValidationErrors int
	SequenceGaps     int
	APIDs            map[uint16]int // bundles per APID
}

// Validate reads a complete source through the integrity gate without
// dispatching anything.
func Validate(ctx context.Context, src source.Source, cfg decoder.ReassemblyConfig) (*Report, error) {
	rep := &Report{Source: src.Name(), APIDs: make(map[uint16]int)}
	err := walk(ctx, decoder.NewReassembler(cfg), src,
		func(b *core.Bundle) error {
			rep.Bundles++
			rep.Packets += len(b.Packets)
			rep.Octets += b.Length
			rep.CRCFailures += b.CRCFailures
			rep.ValidationErrors += b.ValidationErrors
			rep.SequenceGaps += b.SequenceGaps
			rep.APIDs[b.APID()]++
			if b.Payload == nil {
				rep.NoPayloadHeader++
			}
			return nil
		},
		func(off, next int64, err error) error {
			rep.Skipped++
			rep.Octets += next - off
			slog.Warn("skipping bundle", "source", src.Name(), "offset", off, "error", err)
			return nil
		})
	return rep, err
}

// Clean reports whether no integrity problem was found.
func (r *Report) Clean() bool {
	return r.Skipped == 0 && r.CRCFailures == 0 && r.ValidationErrors == 0 && r.SequenceGaps == 0
}

// WriteTo prints the report as a table.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	tw := tabwriter.NewWriter(cw, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "source:\t%s\n", r.Source)
	fmt.Fprintf(tw, "octets:\t%d\n", r.Octets)
	fmt.Fprintf(tw, "bundles:\t%d\n", r.Bundles)
	fmt.Fprintf(tw, "packets:\t%d\n", r.Packets)
	fmt.Fprintf(tw, "skipped:\t%d\n", r.Skipped)
	fmt.Fprintf(tw, "no payload header:\t%d\n", r.NoPayloadHeader)
	fmt.Fprintf(tw, "crc failures:\t%d\n", r.CRCFailures)
	fmt.Fprintf(tw, "validation errors:\t%d\n", r.ValidationErrors)
	fmt.Fprintf(tw, "sequence gaps:\t%d\n", r.SequenceGaps)
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "APID\tBUNDLES\tPRODUCT")
	for _, a := range slices.Sorted(maps.Keys(r.APIDs)) {
		name, _ := apid.Name(a)
		fmt.Fprintf(tw, "%#05x\t%d\t%s\n", a, r.APIDs[a], name)
	}
	err := tw.Flush()
	return cw.n, err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Replay copies src to w one bundle at a time, sleeping between bundles,
// to feed a live reader. Skipped spans are copied as they are. It returns
// the number of bundles written.
func Replay(ctx context.Context, src source.Source, w io.Writer, sleep time.Duration) (int, error) {
	var n int
	r := decoder.NewReassembler(decoder.ReassemblyConfig{})
	copySpan := func(off, length int64) error {
		buf, err := src.ReadFull(ctx, off, int(length))
		if err != nil {
			return err
		}
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("replay write: %w", err)
		}
		n++
		if sleep <= 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
			return nil
		}
	}
	err := walk(ctx, r, src,
		func(b *core.Bundle) error { return copySpan(b.Offset, b.Length) },
		func(off, next int64, _ error) error { return copySpan(off, next-off) })
	return n, err
}
