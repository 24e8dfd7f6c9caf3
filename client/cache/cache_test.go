package cache

import (
	"context"
	"testing"
)

func TestGetSetInvalidate(t *testing.T) {
	s := New()

	if _, ok := s.Get("cart"); ok {
		t.Fatal("expected empty store")
	}

	s.Set("cart", 42)
	v, ok := s.Get("cart")
	if !ok || v.(int) != 42 {
		t.Fatalf("got (%v, %t), expected (42, true)", v, ok)
	}

	s.Invalidate("cart")
	if _, ok := s.Get("cart"); ok {
		t.Fatal("expected the entry to be gone")
	}
}

func TestSubscribeSignalsOnWrites(t *testing.T) {
	s := New()
	ch := s.Subscribe("cart")

	s.Set("cart", 1)
	select {
	case <-ch:
	default:
		t.Fatal("expected a signal after Set")
	}

	s.Invalidate("cart")
	select {
	case <-ch:
	default:
		t.Fatal("expected a signal after Invalidate")
	}

	// Coalescing: repeated writes leave one pending signal.
	s.Set("cart", 2)
	s.Set("cart", 3)
	<-ch
	select {
	case <-ch:
		t.Fatal("expected signals to coalesce")
	default:
	}
}

func TestCancelFetchSuppressesStaleRead(t *testing.T) {
	s := New()

	fctx := s.BeginFetch(context.Background(), "cart")

	s.CancelFetch("cart")

	if s.EndFetch(fctx, "cart") {
		t.Fatal("expected the cancelled fetch to be suppressed")
	}
}

func TestEndFetchReleasesDerivedContext(t *testing.T) {
	s := New()

	fctx := s.BeginFetch(context.Background(), "cart")

	if !s.EndFetch(fctx, "cart") {
		t.Fatal("expected the current fetch to land")
	}
	if fctx.Err() == nil {
		t.Fatal("expected the completed fetch's context to be released")
	}

	// The registration is gone: a fresh fetch is unaffected by it.
	fresh := s.BeginFetch(context.Background(), "cart")
	if fresh.Err() != nil {
		t.Fatal("expected the new fetch to start uncancelled")
	}
}

func TestNewerFetchSupersedesOlder(t *testing.T) {
	s := New()

	old := s.BeginFetch(context.Background(), "cart")
	fresh := s.BeginFetch(context.Background(), "cart")

	if s.EndFetch(old, "cart") {
		t.Fatal("expected the superseded fetch to be suppressed")
	}
	if !s.EndFetch(fresh, "cart") {
		t.Fatal("expected the current fetch to land")
	}
}
