// Package dispatch scans packet sources and routes every bundle reference
// to the worker owning its product.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"firestige.xyz/grbr/internal/apid"
	"firestige.xyz/grbr/internal/core"
	"firestige.xyz/grbr/internal/core/decoder"
	"firestige.xyz/grbr/internal/metrics"
	"firestige.xyz/grbr/internal/product"
	"firestige.xyz/grbr/internal/source"
)

// DefaultTimeout is the inactivity deadline of a scan.
const DefaultTimeout = 30 * time.Minute

// maxSendAttempts bounds re-claims when a mailbox closes under a send.
const maxSendAttempts = 3

// Spawner starts the worker for a newly claimed key.
type Spawner interface {
	Spawn(ctx context.Context, key product.Key, mb *product.Mailbox)
}

// SourceOpener resolves the source named in a reference.
type SourceOpener interface {
	Open(path string) (source.Source, error)
}

// Config contains configuration for the dispatcher.
type Config struct {
	Registry   *product.Registry
	Spawner    Spawner
	Sources    SourceOpener // only needed by Route
	Reassembly decoder.ReassemblyConfig
	Satellite  string        // optional satellite component of product keys
	Timeout    time.Duration // inactivity deadline, reset by every dispatched bundle
}

// Stats counts what a dispatcher has seen.
type Stats struct {
	Bundles    uint64
	Dispatched uint64
	Skipped    uint64
}

// Dispatcher reads bundles in stream order and hands references to
// workers. It never waits on a worker.
type Dispatcher struct {
	config      Config
	reassembler *decoder.Reassembler

	bundles    atomic.Uint64
	dispatched atomic.Uint64
	skipped    atomic.Uint64
}

// New creates a dispatcher.
func New(cfg Config) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Dispatcher{
		config:      cfg,
		reassembler: decoder.NewReassembler(cfg.Reassembly),
	}
}

// Stats returns a snapshot of the counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Bundles:    d.bundles.Load(),
		Dispatched: d.dispatched.Load(),
		Skipped:    d.skipped.Load(),
	}
}

// sized is implemented by sources with a known end.
type sized interface {
	Size() (int64, error)
}

// Run scans src from the start.
//
// Returns:
//   - nil when a complete source ends on a bundle boundary
//   - core.ErrTimeout when no bundle was dispatched within the deadline
//   - ctx.Err() when ctx is done
//   - any decode or reassembly error other than a skip, which aborts the scan
func (d *Dispatcher) Run(ctx context.Context, src source.Source) error {
	slog.Info("dispatching", "source", src.Name(), "timeout", d.config.Timeout)

	var off int64
	deadline := time.Now().Add(d.config.Timeout)
	for {
		b, err := d.next(ctx, src, off, deadline)
		if err != nil {
			if next, ok := decoder.IsSkip(err); ok {
				d.skipped.Add(1)
				metrics.DispatchErrorsTotal.WithLabelValues("skip").Inc()
				slog.Warn("skipping bundle", "source", src.Name(), "offset", off, "error", err)
				off = next
				continue
			}
			if atEnd(src, off, err) {
				slog.Info("source complete", "source", src.Name(), "offset", off, "stats", d.Stats())
				return nil
			}
			if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("dispatch %s: %w after %s", src.Name(), core.ErrTimeout, d.config.Timeout)
			}
			return fmt.Errorf("dispatch %s at %d: %w", src.Name(), off, err)
		}
		off = b.Next()
		d.bundles.Add(1)

		ok, err := d.dispatch(ctx, src.Name(), b)
		if err != nil {
			return err
		}
		if ok {
			deadline = time.Now().Add(d.config.Timeout)
		}
	}
}

func (d *Dispatcher) next(ctx context.Context, src source.Source, off int64, deadline time.Time) (*core.Bundle, error) {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()
	return d.reassembler.Reassemble(ctx, src, off)
}

// atEnd reports whether err is the end of a complete source. A source
// that ends inside a bundle is logged and treated as ended.
func atEnd(src source.Source, off int64, err error) bool {
	if !errors.Is(err, core.ErrShortRead) {
		return false
	}
	s, ok := src.(sized)
	if !ok {
		return false
	}
	size, serr := s.Size()
	if serr != nil {
		return false
	}
	if off < size {
		slog.Warn("source ends inside a bundle", "source", src.Name(), "offset", off, "size", size)
	}
	return true
}

// dispatch routes one bundle. It reports false for bundles that cannot be
// routed, which are logged and skipped.
func (d *Dispatcher) dispatch(ctx context.Context, name string, b *core.Bundle) (bool, error) {
	if b.Payload == nil {
		d.skipped.Add(1)
		metrics.DispatchErrorsTotal.WithLabelValues("no_payload_header").Inc()
		slog.Warn("bundle has no payload header, skipping", "apid", fmt.Sprintf("%#x", b.APID()), "offset", b.Offset)
		return false, nil
	}
	if !b.Payload.HasTime() {
		slog.Warn("bundle payload header has no timestamp", "apid", fmt.Sprintf("%#x", b.APID()), "offset", b.Offset)
	}
	if b.Offset > math.MaxUint32 {
		return false, fmt.Errorf("bundle at %d in %s: offset does not fit a reference", b.Offset, name)
	}

	key, err := product.DeriveKey(b.Primary, b.Secondary, b.Payload, d.config.Satellite)
	if err != nil {
		return false, err
	}
	ref := core.Reference{Offset: uint32(b.Offset), Source: name}
	if err := d.send(ctx, key, ref); err != nil {
		return false, fmt.Errorf("route %s to %s: %w", ref, key, err)
	}

	d.dispatched.Add(1)
	metrics.BundlesDispatchedTotal.WithLabelValues(apid.InstrumentOf(b.APID()).String()).Inc()
	slog.Debug("bundle dispatched", "key", key, "reference", ref)
	return true, nil
}

// send claims key, spawning a worker when the claim is new, and delivers
// ref. A mailbox that closed after the claim belongs to a finished
// worker: its claim is dropped and the key is claimed again.
func (d *Dispatcher) send(ctx context.Context, key product.Key, ref core.Reference) error {
	var err error
	for range maxSendAttempts {
		mb, created := d.config.Registry.Claim(key)
		if created {
			d.config.Spawner.Spawn(ctx, key, mb)
		}
		err = mb.Send(ctx, ref)
		if !errors.Is(err, core.ErrMailboxClosed) {
			return err
		}
		d.config.Registry.Release(mb)
		slog.Debug("mailbox closed during send, claiming again", "key", key)
	}
	return err
}

// Route delivers a reference received from outside the scan loop. The
// bundle is read once to derive its key.
func (d *Dispatcher) Route(ctx context.Context, ref core.Reference) error {
	if d.config.Sources == nil {
		return errors.New("dispatcher has no source opener")
	}
	src, err := d.config.Sources.Open(ref.Source)
	if err != nil {
		return err
	}
	b, err := d.reassembler.Reassemble(ctx, src, int64(ref.Offset))
	if err != nil {
		return fmt.Errorf("route %s: %w", ref, err)
	}
	d.bundles.Add(1)
	_, err = d.dispatch(ctx, ref.Source, b)
	return err
}
