package artifact

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Manifest is the YAML sidecar describing an artifact.
type Manifest struct {
	Key         string            `yaml:"key"`
	DatasetName string            `yaml:"dataset_name,omitempty"`
	Product     string            `yaml:"product"`
	Instrument  string            `yaml:"instrument"`
	APID        string            `yaml:"apid"`
	Time        time.Time         `yaml:"time"`
	State       string            `yaml:"state"`
	Reason      string            `yaml:"reason,omitempty"`
	Slices      int               `yaml:"slices"`
	Bytes       int64             `yaml:"bytes"`
	Started     time.Time         `yaml:"reconstruction_start"`
	Finished    time.Time         `yaml:"reconstruction_end"`
	Attributes  map[string]string `yaml:"attributes,omitempty"`
	Provenance  Provenance        `yaml:"provenance"`
}

// WriteManifest writes m to path.
func WriteManifest(path string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest %s: %w", path, err)
	}
	return nil
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}
