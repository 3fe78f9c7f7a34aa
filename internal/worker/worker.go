// Package worker implements the per-product reconstructor. A worker owns
// one product key: it re-reads every referenced bundle from its source,
// decodes it and writes it into the product artifact until the metadata
// seals the product or the inactivity deadline expires.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"firestige.xyz/grbr/internal/apid"
	"firestige.xyz/grbr/internal/artifact"
	"firestige.xyz/grbr/internal/codec"
	"firestige.xyz/grbr/internal/core"
	"firestige.xyz/grbr/internal/core/decoder"
	"firestige.xyz/grbr/internal/events"
	"firestige.xyz/grbr/internal/metrics"
	"firestige.xyz/grbr/internal/product"
	"firestige.xyz/grbr/internal/source"
)

// DefaultTimeout is the inactivity deadline of a worker.
const DefaultTimeout = 30 * time.Minute

// SourceOpener resolves the source named in a reference.
type SourceOpener interface {
	Open(path string) (source.Source, error)
}

// Config contains the collaborators shared by every worker.
type Config struct {
	Registry      *product.Registry
	Sources       SourceOpener
	Reassembly    decoder.ReassemblyConfig
	Decompressors *codec.Decompressors
	Codecs        *codec.Codecs
	Store         artifact.Store
	Events        events.Recorder
	PostProcess   artifact.PostProcessor
	Timeout       time.Duration
}

// Factory starts workers for newly claimed keys.
type Factory struct {
	config      Config
	reassembler *decoder.Reassembler

	drained   chan struct{}
	drainOnce sync.Once
}

// NewFactory creates a factory, filling in defaults for unset
// collaborators.
func NewFactory(cfg Config) *Factory {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Decompressors == nil {
		cfg.Decompressors = codec.NewDecompressors()
	}
	if cfg.Codecs == nil {
		cfg.Codecs = codec.NewCodecs()
	}
	if cfg.Events == nil {
		cfg.Events = events.Nop{}
	}
	return &Factory{
		config:      cfg,
		reassembler: decoder.NewReassembler(cfg.Reassembly),
		drained:     make(chan struct{}),
	}
}

// Drain tells every worker that no more references will arrive. A worker
// with an empty mailbox abandons its product instead of waiting for the
// deadline.
func (f *Factory) Drain() {
	f.drainOnce.Do(func() { close(f.drained) })
}

// New creates the worker for key reading from mb.
func (f *Factory) New(key product.Key, mb *product.Mailbox) *Worker {
	return &Worker{
		key:         key,
		mailbox:     mb,
		config:      f.config,
		reassembler: f.reassembler,
		drained:     f.drained,
	}
}

// Spawn starts the worker for key in its own goroutine.
func (f *Factory) Spawn(ctx context.Context, key product.Key, mb *product.Mailbox) {
	w := f.New(key, mb)
	go func() {
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("worker exited", "key", key, "error", err)
		}
	}()
}

// Worker reconstructs one product.
type Worker struct {
	key         product.Key
	mailbox     *product.Mailbox
	config      Config
	reassembler *decoder.Reassembler
	drained     <-chan struct{}

	product  *product.Product
	artifact artifact.Artifact
}

// Product returns the product once the first bundle has been read.
func (w *Worker) Product() *product.Product { return w.product }

// Run processes references one at a time until the product is sealed,
// the inactivity deadline expires, the factory is drained, or ctx is done.
// A failing message is logged and skipped. The claim is released on exit.
func (w *Worker) Run(ctx context.Context) error {
	defer w.release()

	slog.Info("worker started", "key", w.key, "timeout", w.config.Timeout)
	timer := time.NewTimer(w.config.Timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.expire(context.WithoutCancel(ctx), "worker cancelled")
			return ctx.Err()

		case <-timer.C:
			w.expire(ctx, "timed out")
			return fmt.Errorf("%s: %w after %s", w.key, core.ErrTimeout, w.config.Timeout)

		case <-w.drained:
			if w.mailbox.Len() > 0 {
				if w.next(ctx, <-w.mailbox.C()) {
					return nil
				}
				continue
			}
			w.expire(ctx, "sources exhausted")
			return fmt.Errorf("%s: %w: sources exhausted", w.key, core.ErrTimeout)

		case ref := <-w.mailbox.C():
			if w.next(ctx, ref) {
				return nil
			}
			timer.Reset(w.config.Timeout)
		}
	}
}

// next processes one reference and reports whether the product is done.
func (w *Worker) next(ctx context.Context, ref core.Reference) bool {
	start := time.Now()
	kind, done, err := w.handle(ctx, ref)
	metrics.WorkerMessageSeconds.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		slog.Error("failed to process reference", "key", w.key, "reference", ref, "error", err)
	}
	return done
}

func (w *Worker) release() {
	w.config.Registry.Release(w.mailbox)
	if left := w.mailbox.Close(); len(left) > 0 {
		slog.Warn("dropping references for a closed product", "key", w.key, "count", len(left))
	}
	slog.Debug("worker stopped", "key", w.key)
}

// handle processes one reference. kind labels the latency metric; done
// reports that the product reached a terminal state.
func (w *Worker) handle(ctx context.Context, ref core.Reference) (kind string, done bool, err error) {
	kind = "unknown"

	src, err := w.config.Sources.Open(ref.Source)
	if err != nil {
		return kind, false, w.fail("open", err)
	}
	b, err := w.reassembler.Reassemble(ctx, src, int64(ref.Offset))
	if err != nil {
		return kind, false, w.fail("reassemble", err)
	}

	if w.product == nil {
		if err := w.open(ctx, b); err != nil {
			return kind, false, w.fail("open", err)
		}
	}
	if w.product.Seen(ref) {
		slog.Debug("skipping repeated reference", "key", w.key, "reference", ref)
		return "repeat", false, nil
	}
	if b.Payload == nil {
		return kind, false, w.fail("classify", fmt.Errorf("apid %#x: %w", b.APID(), core.ErrNoPayloadHeader))
	}

	switch apid.Classify(b.APID()) {
	case apid.ClassMetadata:
		kind = "metadata"
		done, err = w.addMetadata(ctx, b)
	case apid.ClassData:
		if w.product.Instrument == apid.INFO {
			kind = "document"
			done, err = w.addDocument(ctx, b)
			break
		}
		kind = "data"
		err = w.addData(ctx, b)
	default:
		return kind, false, w.fail("classify",
			fmt.Errorf("%w: apid %#x is neither metadata nor data", core.ErrUnrecognizedInstrument, b.APID()))
	}
	if err != nil {
		return kind, done, w.fail(kind, err)
	}
	w.product.Applied(ref)
	return kind, done, nil
}

func (w *Worker) fail(stage string, err error) error {
	metrics.WorkerMessageErrorsTotal.WithLabelValues(stage).Inc()
	return err
}

// open creates the product and its artifact from the first bundle.
func (w *Worker) open(ctx context.Context, b *core.Bundle) error {
	p := product.New(w.key, b)
	a, err := w.config.Store.Open(ctx, artifact.Info{
		Key:        string(w.key),
		Product:    p.Name,
		Instrument: p.Instrument.String(),
		APID:       p.APID,
		Time:       p.Time,
		Track:      p.Instrument == apid.ABI,
	})
	if err != nil {
		return err
	}
	w.product, w.artifact = p, a
	events.Emit(ctx, w.config.Events, w.event(events.KindStart, a.Path()))
	slog.Info("product opened", "key", w.key, "product", p.Name, "artifact", a.Path())
	return nil
}

func (w *Worker) event(kind events.Kind, location string) events.Event {
	return events.New(kind, string(w.key), w.product.Name, w.product.Time, location)
}

func (w *Worker) decompress(hp *core.PayloadHeader, data []byte) ([]byte, error) {
	return w.config.Decompressors.Decompress(hp.CompressionAlgorithm, data)
}

func (w *Worker) addMetadata(ctx context.Context, b *core.Bundle) (bool, error) {
	text, err := w.decompress(b.Payload, b.Data)
	if err != nil {
		return false, err
	}
	text = artifact.TrimMetadata(text)

	apply, err := w.product.AcceptMetadata(text)
	if errors.Is(err, core.ErrMetadataConflict) {
		slog.Error("received metadata that does not match the metadata already applied",
			"key", w.key, "apid", fmt.Sprintf("%#x", b.APID()))
		return false, err
	}
	if err != nil {
		return false, err
	}
	if !apply {
		slog.Warn("received a second, identical set of metadata", "key", w.key)
		return false, nil
	}

	if err := w.artifact.ApplyMetadata(ctx, text); err != nil {
		w.abort(ctx, fmt.Sprintf("apply metadata: %v", err))
		return true, err
	}
	return true, w.finalize(ctx)
}

// addDocument stores a GRB-INFO payload. The payload names itself, so the
// product is complete as soon as it is written.
func (w *Worker) addDocument(ctx context.Context, b *core.Bundle) (bool, error) {
	payload, err := w.decompress(b.Payload, b.Data)
	if err != nil {
		return false, fmt.Errorf("decompress document: %w", err)
	}
	name, body, err := codec.SplitDocument(payload)
	if err != nil {
		return false, err
	}
	if err := w.product.AcceptDocument(); err != nil {
		return false, err
	}

	final, err := w.artifact.SealDocument(ctx, name, body)
	if err != nil {
		w.abort(ctx, fmt.Sprintf("write document: %v", err))
		return true, err
	}
	return true, w.complete(ctx, final)
}

func (w *Worker) addData(ctx context.Context, b *core.Bundle) error {
	hp := b.Payload
	s := codec.Slice{APID: b.APID(), Instrument: w.product.Instrument}

	if hp.Kind == core.PayloadImage {
		s.Placement = &artifact.Placement{
			ULX:    hp.ULX,
			ULY:    hp.ULY + hp.RowOffset24(),
			Height: hp.Height,
			Width:  hp.Width,
		}
	}

	raw := b.Data
	if s.Placement != nil && hp.DQFOffset > 0 && int(hp.DQFOffset) <= len(raw) {
		dqf, err := w.decompress(hp, raw[hp.DQFOffset:])
		if err != nil {
			return fmt.Errorf("decompress DQF: %w", err)
		}
		s.DQF = dqf
		raw = raw[:hp.DQFOffset]
	}
	data, err := w.decompress(hp, raw)
	if err != nil {
		return fmt.Errorf("decompress data: %w", err)
	}
	s.Data = data

	if err := w.product.AcceptData(); err != nil {
		return err
	}
	return w.config.Codecs.For(w.product.Instrument).Apply(ctx, w.artifact, s)
}

// finalize seals the artifact and starts the post-process command.
func (w *Worker) finalize(ctx context.Context) error {
	slog.Info("finalizing product", "key", w.key, "slices", w.product.Slices())
	final, err := w.artifact.Seal(ctx)
	if err != nil {
		w.abort(ctx, fmt.Sprintf("seal: %v", err))
		return fmt.Errorf("final dataset name could not be determined: %w", err)
	}
	if err := w.complete(ctx, final); err != nil {
		return err
	}

	if err := w.config.PostProcess.Run(final); err != nil {
		slog.Error("post process failed to start", "key", w.key, "error", err)
	}
	return nil
}

// complete marks the product sealed once its artifact is at final.
func (w *Worker) complete(ctx context.Context, final string) error {
	if err := w.product.Seal(); err != nil {
		return err
	}
	metrics.ProductsFinishedTotal.WithLabelValues(w.product.Instrument.String(), metrics.StateSealed).Inc()
	events.Emit(ctx, w.config.Events, w.event(events.KindEnd, final))
	slog.Info("product complete", "key", w.key, "artifact", final, "age", w.product.Age())
	return nil
}

// abort gives up on a product that cannot be sealed.
func (w *Worker) abort(ctx context.Context, reason string) {
	w.product.TimeOut()
	if err := w.artifact.Abort(ctx, reason); err != nil {
		slog.Warn("failed to abort artifact", "key", w.key, "error", err)
	}
	metrics.ProductsFinishedTotal.WithLabelValues(w.product.Instrument.String(), metrics.StateFailed).Inc()
	events.Emit(ctx, w.config.Events, w.event(events.KindError, w.artifact.Path()))
}

// expire abandons the product after the deadline. Nothing is written to
// the artifact afterwards.
func (w *Worker) expire(ctx context.Context, reason string) {
	if w.product == nil {
		slog.Warn("worker expired before reading a bundle", "key", w.key, "reason", reason)
		return
	}
	if !w.product.TimeOut() {
		return
	}
	if err := w.artifact.Abort(ctx, reason); err != nil {
		slog.Warn("failed to abort artifact", "key", w.key, "error", err)
	}
	metrics.ProductsFinishedTotal.WithLabelValues(w.product.Instrument.String(), metrics.StateTimedOut).Inc()
	events.Emit(ctx, w.config.Events, w.event(events.KindTimeout, w.artifact.Path()))
	slog.Error("product timed out", "key", w.key, "reason", reason, "slices", w.product.Slices())
}
