package product

import (
	"sync"

	"firestige.xyz/grbr/internal/metrics"
)

// Registry maps product keys to the mailbox of their live worker. Claim is
// an atomic insert-if-absent, so concurrent dispatchers racing on one key
// agree on a single worker.
type Registry struct {
	data        sync.Map // map[Key]*Mailbox
	mailboxSize int
	live        sync.WaitGroup
}

// NewRegistry creates a registry whose mailboxes buffer mailboxSize
// references.
func NewRegistry(mailboxSize int) *Registry {
	return &Registry{mailboxSize: mailboxSize}
}

// Claim returns the mailbox for key. created is true for exactly one
// caller per live key; that caller must start the worker and the worker
// must call Release when it exits.
func (r *Registry) Claim(key Key) (mb *Mailbox, created bool) {
	if v, ok := r.data.Load(key); ok {
		return v.(*Mailbox), false
	}
	fresh := NewMailbox(key, r.mailboxSize)
	v, loaded := r.data.LoadOrStore(key, fresh)
	if loaded {
		return v.(*Mailbox), false
	}
	r.live.Add(1)
	metrics.WorkersActive.Inc()
	return fresh, true
}

// Get retrieves the live mailbox for key.
func (r *Registry) Get(key Key) (*Mailbox, bool) {
	v, ok := r.data.Load(key)
	if !ok {
		return nil, false
	}
	return v.(*Mailbox), true
}

// Release removes the claim held by mb. A newer claim for the same key is
// left alone.
func (r *Registry) Release(mb *Mailbox) {
	if r.data.CompareAndDelete(mb.Key(), mb) {
		metrics.WorkersActive.Dec()
		r.live.Done()
	}
}

// Range iterates over all live claims.
// f should return true to continue iteration or false to stop.
func (r *Registry) Range(f func(key Key, mb *Mailbox) bool) {
	r.data.Range(func(k, v any) bool {
		return f(k.(Key), v.(*Mailbox))
	})
}

// Count returns the approximate number of live claims.
// Note: This is O(n) as sync.Map doesn't track size.
func (r *Registry) Count() int {
	count := 0
	r.data.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

// Wait blocks until every claim has been released.
func (r *Registry) Wait() {
	r.live.Wait()
}
