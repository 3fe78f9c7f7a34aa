// Package artifact defines the output store for reconstructed products and
// a directory-backed implementation of it.
package artifact

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoDatasetName is returned by Seal when the metadata does not name
	// the dataset.
	ErrNoDatasetName = errors.New("grbr: metadata has no dataset_name attribute")

	// ErrClosed is returned by operations on a sealed or aborted artifact.
	ErrClosed = errors.New("grbr: artifact closed")

	// ErrBadDocumentName is returned by SealDocument for a name that is
	// not a plain file name.
	ErrBadDocumentName = errors.New("grbr: bad document name")
)

// Placement locates an image slice inside the full image.
type Placement struct {
	ULX    uint32
	ULY    uint32
	Height uint32
	Width  uint32
}

// BottomRight returns the exclusive lower right corner.
func (p Placement) BottomRight() (x, y uint32) {
	return p.ULX + p.Width, p.ULY + p.Height
}

// Record is one decoded slice of one variable.
type Record struct {
	Variable  string
	Placement *Placement // nil for non-image data
	Data      []byte
}

// Info identifies the product an artifact is opened for.
type Info struct {
	Key        string
	Product    string // broadcast product name
	Instrument string
	APID       uint16
	Time       time.Time
	Track      bool // write a tracking file for image slices
}

// Artifact is one product being written. It is owned by a single worker
// and is not safe for concurrent use.
type Artifact interface {
	// Path is the in-progress location.
	Path() string
	// ApplyMetadata merges the product metadata text.
	ApplyMetadata(ctx context.Context, text []byte) error
	// WriteSlice appends one decoded slice.
	WriteSlice(ctx context.Context, r Record) error
	// Track records the extent of an image slice.
	Track(ulX, ulY, brX, brY uint32) error
	// Seal moves the artifact to its permanent location and returns it.
	Seal(ctx context.Context) (string, error)
	// SealDocument stores a self-describing product under name in place
	// of the accumulated slices and returns its permanent location.
	SealDocument(ctx context.Context, name string, body []byte) (string, error)
	// Abort closes the artifact without sealing it.
	Abort(ctx context.Context, reason string) error
}

// Store opens artifacts.
type Store interface {
	Open(ctx context.Context, info Info) (Artifact, error)
}
