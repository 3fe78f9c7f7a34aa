package artifact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Staging file suffixes.
const (
	PartSuffix     = ".part"
	MetadataSuffix = ".ncml"
	TrackSuffix    = ".track"
	ManifestSuffix = ".yaml"
)

// DirConfig configures a DirStore.
type DirConfig struct {
	Out         string // permanent artifacts
	Tmp         string // in-progress artifacts
	TrackDir    string // tracking files
	Tracking    bool
	KeepStaging bool // leave metadata and tracking files after sealing
	Provenance  Provenance
}

// DirStore keeps in-progress artifacts under Tmp and moves them to Out
// when sealed. Slices go to <key>.part, metadata to <key>.ncml, and a
// <name>.yaml manifest is written next to the sealed artifact.
type DirStore struct {
	config DirConfig
}

// NewDirStore creates the store directories.
func NewDirStore(cfg DirConfig) (*DirStore, error) {
	if cfg.TrackDir == "" {
		cfg.TrackDir = cfg.Tmp
	}
	for _, dir := range []string{cfg.Out, cfg.Tmp, cfg.TrackDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return &DirStore{config: cfg}, nil
}

// Open opens or resumes the artifact for info.Key.
func (s *DirStore) Open(_ context.Context, info Info) (Artifact, error) {
	stub := filepath.Join(s.config.Tmp, info.Key)
	f, err := os.OpenFile(stub+PartSuffix, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open artifact %s: %w", info.Key, err)
	}
	a := &dirArtifact{
		store: s,
		info:  info,
		stub:  stub,
		part:  f,
		manifest: Manifest{
			Key:        info.Key,
			Product:    info.Product,
			Instrument: info.Instrument,
			APID:       fmt.Sprintf("%#05x", info.APID),
			Time:       info.Time.UTC(),
			State:      "open",
			Started:    time.Now().UTC(),
			Provenance: s.config.Provenance,
		},
	}
	if s.config.Tracking && info.Track {
		a.trackPath = filepath.Join(s.config.TrackDir, info.Key+TrackSuffix)
		a.track, err = os.OpenFile(a.trackPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open tracking file %s: %w", info.Key, err)
		}
	}
	return a, nil
}

type dirArtifact struct {
	store *DirStore
	info  Info
	stub  string

	part      *os.File
	track     *os.File
	trackPath string
	metadata  []byte
	manifest  Manifest
	closed    bool
}

func (a *dirArtifact) Path() string { return a.stub + PartSuffix }

func (a *dirArtifact) ApplyMetadata(_ context.Context, text []byte) error {
	if a.closed {
		return ErrClosed
	}
	if err := os.WriteFile(a.stub+MetadataSuffix, text, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	attrs, err := GlobalAttributes(text)
	if err != nil {
		return err
	}
	a.metadata = text
	a.manifest.Attributes = attrs
	a.manifest.DatasetName = attrs["dataset_name"]
	return nil
}

func (a *dirArtifact) WriteSlice(_ context.Context, r Record) error {
	if a.closed {
		return ErrClosed
	}
	buf := appendRecord(nil, r)
	if _, err := a.part.Write(buf); err != nil {
		return fmt.Errorf("write slice %s: %w", r.Variable, err)
	}
	a.manifest.Slices++
	a.manifest.Bytes += int64(len(r.Data))
	return nil
}

func (a *dirArtifact) Track(ulX, ulY, brX, brY uint32) error {
	if a.track == nil {
		return nil
	}
	_, err := fmt.Fprintf(a.track, "%d %d %d %d\n", ulX, ulY, brX, brY)
	return err
}

func (a *dirArtifact) closeFiles() error {
	a.closed = true
	var errs []error
	if err := a.part.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.track != nil {
		if err := a.track.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *dirArtifact) Seal(_ context.Context) (string, error) {
	if a.closed {
		return "", ErrClosed
	}
	name := a.manifest.DatasetName
	if name == "" {
		return "", ErrNoDatasetName
	}
	if err := a.closeFiles(); err != nil {
		return "", fmt.Errorf("close artifact %s: %w", a.info.Key, err)
	}

	final := filepath.Join(a.store.config.Out, filepath.Base(name))
	slog.Info("moving artifact", "from", a.Path(), "to", final)
	if err := os.Rename(a.Path(), final); err != nil {
		return "", fmt.Errorf("seal artifact %s: %w", a.info.Key, err)
	}

	a.manifest.State = "sealed"
	a.manifest.Finished = time.Now().UTC()
	if err := WriteManifest(final+ManifestSuffix, &a.manifest); err != nil {
		return final, err
	}

	a.cleanup()
	return final, nil
}

func (a *dirArtifact) SealDocument(_ context.Context, name string, body []byte) (string, error) {
	if a.closed {
		return "", ErrClosed
	}
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return "", fmt.Errorf("%w: %q", ErrBadDocumentName, name)
	}
	if err := a.closeFiles(); err != nil {
		return "", fmt.Errorf("close artifact %s: %w", a.info.Key, err)
	}

	final := filepath.Join(a.store.config.Out, name)
	slog.Info("writing document", "key", a.info.Key, "to", final)
	if err := os.WriteFile(final, body, 0o644); err != nil {
		return "", fmt.Errorf("seal document %s: %w", a.info.Key, err)
	}
	if err := os.Remove(a.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to remove staging file", "path", a.Path(), "error", err)
	}

	a.manifest.DatasetName = name
	a.manifest.State = "sealed"
	a.manifest.Slices++
	a.manifest.Bytes += int64(len(body))
	a.manifest.Finished = time.Now().UTC()
	if err := WriteManifest(final+ManifestSuffix, &a.manifest); err != nil {
		return final, err
	}

	a.cleanup()
	return final, nil
}

func (a *dirArtifact) Abort(_ context.Context, reason string) error {
	if a.closed {
		return nil
	}
	err := a.closeFiles()
	a.manifest.State = "aborted"
	a.manifest.Reason = reason
	a.manifest.Finished = time.Now().UTC()
	if merr := WriteManifest(a.stub+ManifestSuffix, &a.manifest); merr != nil {
		err = errors.Join(err, merr)
	}
	return err
}

func (a *dirArtifact) cleanup() {
	if a.store.config.KeepStaging {
		return
	}
	for _, path := range []string{a.stub + MetadataSuffix, a.trackPath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to remove staging file", "path", path, "error", err)
		}
	}
}
