package product

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"firestige.xyz/grbr/internal/core"
)

func TestRegistry_ClaimIsIdempotent(t *testing.T) {
	r := NewRegistry(8)
	key := Key("GLM_s2017060120000")

	mb1, created1 := r.Claim(key)
	mb2, created2 := r.Claim(key)
	if !created1 || created2 {
		t.Fatalf("expected exactly one creation, got %v and %v", created1, created2)
	}
	if mb1 != mb2 {
		t.Fatal("expected both claims to share a mailbox")
	}

	ctx := context.Background()
	first := core.Reference{Offset: 0, Source: "a"}
	second := core.Reference{Offset: 100, Source: "a"}
	if err := mb1.Send(ctx, first); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := mb2.Send(ctx, second); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := <-mb1.C(); got != first {
		t.Fatalf("expected %v, got %v", first, got)
	}
	if got := <-mb1.C(); got != second {
		t.Fatalf("expected %v, got %v", second, got)
	}
	if r.Count() != 1 {
		t.Fatalf("expected 1 live claim, got %d", r.Count())
	}
}

func TestRegistry_ConcurrentClaims(t *testing.T) {
	r := NewRegistry(0)
	key := Key("MAG_s2017060120000")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := r.Claim(key); ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if created != 1 {
		t.Fatalf("expected one creator, got %d", created)
	}
}

func TestRegistry_ReleaseAndReclaim(t *testing.T) {
	r := NewRegistry(1)
	key := Key("SPARE")

	old, _ := r.Claim(key)
	r.Release(old)
	old.Close()

	if err := old.Send(context.Background(), core.Reference{}); !errors.Is(err, core.ErrMailboxClosed) {
		t.Fatalf("expected ErrMailboxClosed, got %v", err)
	}

	fresh, created := r.Claim(key)
	if !created || fresh == old {
		t.Fatal("expected a fresh claim after release")
	}

	// A stale release must not drop the newer claim.
	r.Release(old)
	if _, ok := r.Get(key); !ok {
		t.Fatal("stale release removed the live claim")
	}
	r.Release(fresh)

	done := make(chan struct{})
	go func() {
		r.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after every claim was released")
	}
}

func TestMailbox_CloseUnblocksSender(t *testing.T) {
	mb := NewMailbox("k", 1)
	ctx := context.Background()
	if err := mb.Send(ctx, core.Reference{Offset: 1}); err != nil {
		t.Fatalf("send: %v", err)
	}

	errc := make(chan error, 1)
	go func() { errc <- mb.Send(ctx, core.Reference{Offset: 2}) }()

	// Let the second send block on the full buffer.
	time.Sleep(20 * time.Millisecond)
	left := mb.Close()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, core.ErrMailboxClosed) {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked sender was not released by Close")
	}
	if len(left) == 0 || left[0].Offset != 1 {
		t.Fatalf("expected buffered reference to be returned, got %v", left)
	}
}

func TestMailbox_SendCancelled(t *testing.T) {
	mb := NewMailbox("k", 1)
	ctx, cancel := context.WithCancel(context.Background())
	_ = mb.Send(ctx, core.Reference{})
	cancel()
	if err := mb.Send(ctx, core.Reference{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
