package product

import (
	"context"
	"fmt"
	"sync"

	"firestige.xyz/grbr/internal/core"
)

// DefaultMailboxSize is the number of references buffered per product.
const DefaultMailboxSize = 1024

// Mailbox carries references from dispatchers to the worker that owns a
// product. Senders never see a closed channel: once the worker closes the
// mailbox, Send returns core.ErrMailboxClosed.
type Mailbox struct {
	key  Key
	ch   chan core.Reference
	done chan struct{}
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

// NewMailbox creates a mailbox buffering size references.
func NewMailbox(key Key, size int) *Mailbox {
	if size <= 0 {
		size = DefaultMailboxSize
	}
	return &Mailbox{
		key:  key,
		ch:   make(chan core.Reference, size),
		done: make(chan struct{}),
	}
}

// Key returns the product key the mailbox serves.
func (m *Mailbox) Key() Key { return m.key }

// Send delivers ref, blocking while the buffer is full.
func (m *Mailbox) Send(ctx context.Context, ref core.Reference) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return fmt.Errorf("%s: %w", m.key, core.ErrMailboxClosed)
	}
	select {
	case m.ch <- ref:
		return nil
	case <-m.done:
		return fmt.Errorf("%s: %w", m.key, core.ErrMailboxClosed)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// C returns the receive side for the owning worker.
func (m *Mailbox) C() <-chan core.Reference { return m.ch }

// Done is closed when the mailbox closes.
func (m *Mailbox) Done() <-chan struct{} { return m.done }

// Len returns the number of buffered references.
func (m *Mailbox) Len() int { return len(m.ch) }

// Close stops accepting references and returns the ones still buffered.
// Only the owning worker closes its mailbox.
func (m *Mailbox) Close() []core.Reference {
	m.once.Do(func() { close(m.done) })

	// Wait for in-flight sends to return.
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	var left []core.Reference
	for {
		select {
		case ref := <-m.ch:
			left = append(left, ref)
		default:
			return left
		}
	}
}
