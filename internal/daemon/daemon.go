// Package daemon wires the reconstruction engine together and manages its
// process lifecycle.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"firestige.xyz/grbr/internal/artifact"
	"firestige.xyz/grbr/internal/config"
	"firestige.xyz/grbr/internal/core"
	"firestige.xyz/grbr/internal/core/decoder"
	"firestige.xyz/grbr/internal/dispatch"
	"firestige.xyz/grbr/internal/events"
	logpkg "firestige.xyz/grbr/internal/log"
	"firestige.xyz/grbr/internal/metrics"
	"firestige.xyz/grbr/internal/product"
	"firestige.xyz/grbr/internal/source"
	"firestige.xyz/grbr/internal/worker"
)

// Version is reported in logs and artifact provenance.
const Version = "0.1.0"

// Options contains command line overrides.
type Options struct {
	Follow   bool   // treat inputs as growing files
	LogLevel string // overrides log.level when set
}

// Daemon owns the engine components for one run.
type Daemon struct {
	// Configuration
	config     *config.GlobalConfig
	configPath string
	options    Options

	// Core components
	registry      *product.Registry
	sources       *source.Opener
	recorder      events.Recorder
	factory       *worker.Factory
	dispatcher    *dispatch.Dispatcher
	metricsServer *metrics.Server // nil if metrics disabled

	// Lifecycle management
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	sigChan  chan os.Signal
}

// New loads configuration and creates a daemon.
func New(configPath string, opts Options) (*Daemon, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	return NewWithConfig(cfg, configPath, opts), nil
}

// NewWithConfig creates a daemon from an already loaded configuration.
func NewWithConfig(cfg *config.GlobalConfig, configPath string, opts Options) *Daemon {
	d := &Daemon{
		config:     cfg,
		configPath: configPath,
		options:    opts,
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())
	return d
}

// Config returns the active configuration.
func (d *Daemon) Config() *config.GlobalConfig { return d.config }

// Reassembly returns the reassembly settings derived from configuration.
func Reassembly(cfg *config.GlobalConfig) decoder.ReassemblyConfig {
	return decoder.ReassemblyConfig{
		Policy: decoder.Policy{
			CRC:        decoder.CheckPolicy{Enabled: cfg.Integrity.CRC.Enabled, Toss: cfg.Integrity.CRC.Toss},
			Validation: decoder.CheckPolicy{Enabled: cfg.Integrity.Validation.Enabled, Toss: cfg.Integrity.Validation.Toss},
		},
		PermissiveOrphans: cfg.Reassembly.PermissiveOrphans,
	}
}

// Start initializes logging, metrics and the engine.
func (d *Daemon) Start() error {
	// 1. Initialize logging system
	if err := logpkg.Init(d.config.Log); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	slog.Info("starting grbr",
		"version", Version,
		"config", d.configPath,
		"follow", d.options.Follow,
	)

	// 2. Start metrics server
	if err := d.startMetrics(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	// 3. Artifact store and lifecycle events
	store, err := artifact.NewDirStore(artifact.DirConfig{
		Out:         d.config.Paths.Out,
		Tmp:         d.config.Paths.Tmp,
		TrackDir:    d.config.Paths.Track,
		Tracking:    d.config.Tracking.Enabled,
		KeepStaging: d.config.Debug.KeepStaging,
		Provenance:  artifact.NewProvenance(Version),
	})
	if err != nil {
		return fmt.Errorf("failed to create artifact store: %w", err)
	}
	if d.recorder, err = newRecorder(d.config.Events); err != nil {
		return fmt.Errorf("failed to create event recorder: %w", err)
	}

	// 4. Engine
	reassembly := Reassembly(d.config)
	d.registry = product.NewRegistry(d.config.Worker.MailboxSize)
	d.sources = source.NewOpener(d.options.Follow, d.config.Source.PollInterval)
	d.factory = worker.NewFactory(worker.Config{
		Registry:    d.registry,
		Sources:     d.sources,
		Reassembly:  reassembly,
		Store:       store,
		Events:      d.recorder,
		PostProcess: artifact.PostProcessor{Command: d.config.PostProcess.Command},
		Timeout:     d.config.Worker.Timeout,
	})
	d.dispatcher = dispatch.New(dispatch.Config{
		Registry:   d.registry,
		Spawner:    d.factory,
		Sources:    d.sources,
		Reassembly: reassembly,
		Satellite:  d.config.SatelliteKey,
		Timeout:    d.config.Worker.Timeout,
	})

	slog.Info("engine started",
		"out", d.config.Paths.Out,
		"tmp", d.config.Paths.Tmp,
		"timeout", d.config.Worker.Timeout,
	)
	return nil
}

func newRecorder(cfg config.EventsConfig) (events.Recorder, error) {
	var recs events.Multi
	if cfg.Enabled {
		l, err := events.NewLog(events.LogConfig{
			Path:       cfg.Path,
			MaxSizeMB:  cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		})
		if err != nil {
			return nil, err
		}
		recs = append(recs, l)
	}
	if cfg.Kafka.Enabled {
		k, err := events.NewKafka(events.KafkaConfig{
			Brokers:     cfg.Kafka.Brokers,
			Topic:       cfg.Kafka.Topic,
			Compression: cfg.Kafka.Compression,
		})
		if err != nil {
			return nil, errors.Join(err, recs.Close())
		}
		recs = append(recs, k)
	}
	if len(recs) == 0 {
		return events.Nop{}, nil
	}
	return recs, nil
}

// Dispatch scans every path concurrently, one dispatcher per source, then
// waits for the workers to finish. Sources that fail are reported
// together.
func (d *Daemon) Dispatch(paths []string) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, path := range paths {
		src, err := d.sources.Open(path)
		if err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := d.dispatcher.Run(d.ctx, src)
			if err == nil || errors.Is(err, context.Canceled) {
				return
			}
			if errors.Is(err, core.ErrTimeout) {
				slog.Warn("source went quiet", "source", src.Name(), "error", err)
				return
			}
			slog.Error("dispatcher stopped", "source", src.Name(), "error", err)
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	d.finish()
	return errors.Join(errs...)
}

// Reconstruct routes references read from a rendezvous file written by
// another process. It returns when no reference arrives within the worker
// timeout or the daemon stops.
func (d *Daemon) Reconstruct(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open references: %w", err)
	}
	defer f.Close()

	rr := core.NewReferenceReader(f, d.config.Source.PollInterval)
	var routed int
	for {
		ctx, cancel := context.WithTimeout(d.ctx, d.config.Worker.Timeout)
		ref, err := rr.Next(ctx)
		cancel()
		if err != nil {
			if d.ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
				slog.Info("no references within the timeout", "path", path, "routed", routed)
				break
			}
			if d.ctx.Err() != nil {
				break
			}
			d.finish()
			return err
		}
		if err := d.dispatcher.Route(d.ctx, ref); err != nil {
			slog.Error("failed to route reference", "reference", ref, "error", err)
			continue
		}
		routed++
	}
	d.finish()
	return nil
}

// finish lets idle workers give up and waits for all of them.
func (d *Daemon) finish() {
	d.factory.Drain()
	d.registry.Wait()
	slog.Info("all workers finished", "stats", d.dispatcher.Stats())
}

// Run runs job until it returns or a shutdown signal arrives. SIGHUP
// reloads the log settings.
func (d *Daemon) Run(job func() error) error {
	d.sigChan = make(chan os.Signal, 1)
	signal.Notify(d.sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	done := make(chan error, 1)
	go func() { done <- job() }()

	for {
		select {
		case sig := <-d.sigChan:
			switch sig {
			case syscall.SIGTERM, syscall.SIGINT:
				slog.Info("received shutdown signal", "signal", sig)
				d.cancel()
				err := <-done
				d.Stop()
				return err

			case syscall.SIGHUP:
				slog.Info("received reload signal")
				if err := d.Reload(); err != nil {
					slog.Error("failed to reload config", "error", err)
				}
			}

		case err := <-done:
			d.Stop()
			return err
		}
	}
}

// Reload re-reads the configuration. Only the log settings take effect
// without a restart.
func (d *Daemon) Reload() error {
	if d.configPath == "" {
		return nil
	}
	slog.Info("reloading configuration", "path", d.configPath)

	cfg, err := config.Load(d.configPath)
	if err != nil {
		return fmt.Errorf("failed to load new config: %w", err)
	}
	if d.options.LogLevel != "" {
		cfg.Log.Level = d.options.LogLevel
	}
	if err := logpkg.Init(cfg.Log); err != nil {
		return fmt.Errorf("failed to reinitialize logging: %w", err)
	}
	d.config.Log = cfg.Log

	slog.Info("configuration reloaded", "hot_reloaded", []string{"log"})
	return nil
}

// Stop cancels everything still running and releases resources.
func (d *Daemon) Stop() {
	d.stopOnce.Do(func() {
		slog.Info("initiating shutdown")

		d.cancel()
		if d.registry != nil {
			d.registry.Wait()
		}

		if d.recorder != nil {
			if err := d.recorder.Close(); err != nil {
				slog.Error("error closing event recorder", "error", err)
			}
		}
		if d.sources != nil {
			if err := d.sources.Close(); err != nil {
				slog.Error("error closing sources", "error", err)
			}
		}
		if d.metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := d.metricsServer.Stop(shutdownCtx); err != nil {
				slog.Error("error stopping metrics server", "error", err)
			}
		}
		if d.sigChan != nil {
			signal.Stop(d.sigChan)
		}

		slog.Info("grbr stopped")
		_ = logpkg.Close()
	})
}

// startMetrics starts the metrics HTTP server if enabled.
func (d *Daemon) startMetrics() error {
	if !d.config.Metrics.Enabled {
		slog.Debug("metrics server disabled")
		return nil
	}

	d.metricsServer = metrics.NewServer(d.config.Metrics.Listen, d.config.Metrics.Path)
	if err := d.metricsServer.Start(d.ctx); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	return nil
}
