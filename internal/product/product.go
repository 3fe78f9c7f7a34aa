package product

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"firestige.xyz/grbr/internal/apid"
	"firestige.xyz/grbr/internal/core"
)

// State represents the state of a product in its lifecycle.
type State string

const (
	// StateOpen indicates data may arrive, metadata has not.
	StateOpen State = "open"
	// StateMetadataReceived indicates the metadata was accepted and the
	// product is being finalized.
	StateMetadataReceived State = "metadata_received"
	// StateSealed indicates the artifact is in its permanent location.
	StateSealed State = "sealed"
	// StateTimedOut indicates the product was abandoned after inactivity.
	StateTimedOut State = "timed_out"
)

// Terminal reports whether no further mutation is allowed.
func (s State) Terminal() bool {
	return s == StateSealed || s == StateTimedOut
}

// Product accumulates one artifact. It is created on the first reference
// for its key and owned by exactly one worker.
type Product struct {
	Key        Key
	APID       uint16 // APID of the bundle that opened the product
	Instrument apid.Instrument
	Name       string    // broadcast product name
	Time       time.Time // product timestamp

	mu        sync.RWMutex
	state     State
	metadata  []byte
	slices    int
	seen      map[core.Reference]struct{}
	createdAt time.Time
	updatedAt time.Time
}

// New creates an open product from the bundle that opened it.
func New(key Key, b *core.Bundle) *Product {
	name, ok := apid.Name(b.APID())
	if !ok {
		name = fmt.Sprintf("APID %#x", b.APID())
	}
	p := &Product{
		Key:        key,
		APID:       b.APID(),
		Instrument: apid.InstrumentOf(b.APID()),
		Name:       name,
		state:      StateOpen,
		seen:       make(map[core.Reference]struct{}),
		createdAt:  time.Now(),
	}
	if b.Payload != nil {
		p.Time = b.Payload.Time()
	}
	p.updatedAt = p.createdAt
	return p
}

// State returns the current product state.
func (p *Product) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// setState updates the state (not thread-safe, must hold mu lock).
func (p *Product) setState(s State) {
	p.state = s
	p.updatedAt = time.Now()
	slog.Debug("product state changed", "key", p.Key, "state", s)
}

// Seen reports whether ref was already applied.
func (p *Product) Seen(ref core.Reference) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.seen[ref]
	return ok
}

// Applied records that ref was applied. A reference whose message failed
// is never recorded, so a redelivery is processed again.
func (p *Product) Applied(ref core.Reference) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen[ref] = struct{}{}
}

// AcceptMetadata records the metadata text. It returns true when the text
// is new and must be applied to the artifact. A repeat of the same text
// returns false; different text returns core.ErrMetadataConflict and is
// never applied.
func (p *Product) AcceptMetadata(text []byte) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.Terminal() {
		return false, fmt.Errorf("%s: %w", p.Key, core.ErrProductClosed)
	}
	if p.metadata != nil {
		if bytes.Equal(p.metadata, text) {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", p.Key, core.ErrMetadataConflict)
	}
	p.metadata = append([]byte(nil), text...)
	p.setState(StateMetadataReceived)
	return true, nil
}

// Metadata returns the accepted metadata text, or nil.
func (p *Product) Metadata() []byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.metadata
}

// AcceptData records one applied data slice.
func (p *Product) AcceptData() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Terminal() {
		return fmt.Errorf("%s: %w", p.Key, core.ErrProductClosed)
	}
	p.slices++
	p.updatedAt = time.Now()
	return nil
}

// AcceptDocument records a self-describing payload. Such a product needs
// no metadata message: it is ready to seal once the document is accepted.
func (p *Product) AcceptDocument() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateOpen {
		return fmt.Errorf("%s: %w", p.Key, core.ErrProductClosed)
	}
	p.slices++
	p.setState(StateMetadataReceived)
	return nil
}

// Slices returns the number of data slices applied.
func (p *Product) Slices() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.slices
}

// Seal moves a product whose metadata or document was accepted to
// StateSealed.
func (p *Product) Seal() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateMetadataReceived {
		return fmt.Errorf("cannot seal product %s in state %s", p.Key, p.state)
	}
	p.setState(StateSealed)
	return nil
}

// TimeOut abandons a product that is not yet terminal. It reports whether
// the state changed.
func (p *Product) TimeOut() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Terminal() {
		return false
	}
	p.setState(StateTimedOut)
	return true
}

// Age returns the time since the product was created.
func (p *Product) Age() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return time.Since(p.createdAt)
}
