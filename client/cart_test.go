package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/multifolks/storefront/client/bus"
	"github.com/multifolks/storefront/client/cache"
	"github.com/multifolks/storefront/core/cart"
	"github.com/multifolks/storefront/core/coupon"
	"github.com/multifolks/storefront/core/pricing"
)

func fixtureItems(quantity int) []cart.Item {
	return []cart.Item{{
		CartID:    42,
		ProductID: "p-aviator",
		Quantity:  quantity,
		Product: cart.Product{
			SKU:       "AV-01",
			Name:      "Aviator",
			Brand:     "Multifolks",
			Size:      "Medium",
			ListPrice: pricing.Money(120),
		},
	}}
}

func respondJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func newCoordinator(t *testing.T, url string) *Coordinator {
	t.Helper()
	return NewCoordinator(New(url, &MemoryCredentials{}), cache.New(), bus.New())
}

func TestRollbackRestoresSnapshotExactly(t *testing.T) {
	var gets int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			gets++
			if gets > 1 {
				// The post-mutation refetch fails too, so whatever
				// the cache holds afterwards is the rollback itself.
				w.WriteHeader(http.StatusInternalServerError)
				respondJSON(w, map[string]string{"error": "unavailable"})
				return
			}
			respondJSON(w, cart.Summarize(fixtureItems(2), nil, "standard"))
		case r.Method == http.MethodPut:
			w.WriteHeader(http.StatusInternalServerError)
			respondJSON(w, map[string]string{"error": "boom"})
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	coord := newCoordinator(t, srv.URL)

	if err := coord.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	before, ok := coord.Payload()
	if !ok {
		t.Fatal("expected a cached payload")
	}
	want := before.Clone()

	if err := coord.UpdateQuantity(ctx, 42, 3); err == nil {
		t.Fatal("expected the mutation to fail")
	}

	got, ok := coord.Payload()
	if !ok {
		t.Fatal("expected the rollback to stay cached")
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("rollback differs from snapshot:\n%s", diff)
	}
	if got.Cart[0].Quantity != 2 {
		t.Fatalf("got quantity %d, expected the pre-mutation 2", got.Cart[0].Quantity)
	}
	if coord.Notice() == "" {
		t.Fatal("expected a user-facing notice")
	}
	if coord.FetchError() == nil {
		t.Fatal("expected the failed refetch to be recorded")
	}
}

func TestOptimisticProjectionWhileRequestInFlight(t *testing.T) {
	var mu sync.Mutex
	quantity := 2

	started := make(chan struct{})
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			mu.Lock()
			q := quantity
			mu.Unlock()
			respondJSON(w, cart.Summarize(fixtureItems(q), nil, "standard"))
		case http.MethodPut:
			close(started)
			<-release
			mu.Lock()
			quantity = 3
			q := quantity
			mu.Unlock()
			respondJSON(w, cart.Summarize(fixtureItems(q), nil, "standard"))
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	coord := newCoordinator(t, srv.URL)

	if err := coord.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- coord.UpdateQuantity(ctx, 42, 3) }()

	<-started
	p, ok := coord.Payload()
	if !ok {
		t.Fatal("expected a projected payload")
	}
	if p.Cart[0].Quantity != 3 {
		t.Fatalf("got projected quantity %d, expected 3", p.Cart[0].Quantity)
	}
	if p.Subtotal != 360 {
		t.Fatalf("got projected subtotal %.2f, expected 360", p.Subtotal)
	}
	if got := p.Subtotal - p.DiscountAmount + p.ShippingCost; p.TotalPayable != got {
		t.Fatalf("projection breaks the total identity: %.2f != %.2f", p.TotalPayable, got)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	p, _ = coord.Payload()
	if p.Cart[0].Quantity != 3 {
		t.Fatalf("got final quantity %d, expected the confirmed 3", p.Cart[0].Quantity)
	}
}

func TestQuantityBelowOneRejectedLocally(t *testing.T) {
	var requests int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		respondJSON(w, cart.Summarize(fixtureItems(2), nil, "standard"))
	}))
	defer srv.Close()

	coord := newCoordinator(t, srv.URL)

	if err := coord.UpdateQuantity(context.Background(), 42, 0); err != ErrInvalidQuantity {
		t.Fatalf("got %v, expected ErrInvalidQuantity", err)
	}
	if requests != 0 {
		t.Fatalf("got %d requests, expected none", requests)
	}
}

func TestEmptyCouponCodeRejectedLocally(t *testing.T) {
	var requests int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		respondJSON(w, cart.Summarize(fixtureItems(2), nil, "standard"))
	}))
	defer srv.Close()

	coord := newCoordinator(t, srv.URL)

	if err := coord.ApplyCoupon(context.Background(), ""); err != ErrMissingCouponCode {
		t.Fatalf("got %v, expected ErrMissingCouponCode", err)
	}
	if requests != 0 {
		t.Fatalf("got %d requests, expected none", requests)
	}
}

func TestApplyCouponSameCodeShortCircuits(t *testing.T) {
	var posts int
	cpn := &coupon.Coupon{Code: "LAUNCH50", Kind: pricing.KindPercent, Value: 50}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts++
		}
		respondJSON(w, cart.Summarize(fixtureItems(2), cpn, "standard"))
	}))
	defer srv.Close()

	ctx := context.Background()
	coord := newCoordinator(t, srv.URL)

	if err := coord.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if err := coord.ApplyCoupon(ctx, "LAUNCH50"); err != nil {
		t.Fatal(err)
	}
	if posts != 0 {
		t.Fatalf("got %d coupon requests, expected the re-apply to short-circuit", posts)
	}
}

func TestApplyCouponRejectionSurfacesVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusUnprocessableEntity)
			respondJSON(w, map[string]string{"error": "coupon code is not valid"})
			return
		}
		respondJSON(w, cart.Summarize(fixtureItems(2), nil, "standard"))
	}))
	defer srv.Close()

	ctx := context.Background()
	coord := newCoordinator(t, srv.URL)

	if err := coord.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if err := coord.ApplyCoupon(ctx, "NOPE"); err == nil {
		t.Fatal("expected the apply to fail")
	}

	if got := coord.Notice(); got != "coupon code is not valid" {
		t.Fatalf("got notice %q, expected the server message verbatim", got)
	}

	// No optimistic projection was written, so nothing changed.
	p, _ := coord.Payload()
	if p.DiscountAmount != 0 || p.Coupon != nil {
		t.Fatal("expected no discount to appear for a rejected coupon")
	}
}

func TestDeleteItemIsServerFirst(t *testing.T) {
	var mu sync.Mutex
	deleted := false

	started := make(chan struct{})
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			mu.Lock()
			gone := deleted
			mu.Unlock()
			items := fixtureItems(2)
			if gone {
				items = nil
			}
			respondJSON(w, cart.Summarize(items, nil, "standard"))
		case http.MethodDelete:
			close(started)
			<-release
			mu.Lock()
			deleted = true
			mu.Unlock()
			respondJSON(w, cart.Summarize(nil, nil, "standard"))
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	coord := newCoordinator(t, srv.URL)

	if err := coord.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- coord.DeleteItem(ctx, 42) }()

	<-started
	p, _ := coord.Payload()
	if len(p.Cart) != 1 {
		t.Fatal("expected the line to stay until the server confirms")
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	p, _ = coord.Payload()
	if len(p.Cart) != 0 {
		t.Fatal("expected the confirmed removal to land")
	}
}

func TestSettledMutationPublishesCartUpdated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, cart.Summarize(fixtureItems(3), nil, "standard"))
	}))
	defer srv.Close()

	ctx := context.Background()

	b := bus.New()
	coord := NewCoordinator(New(srv.URL, &MemoryCredentials{}), cache.New(), b)
	ch := b.Subscribe(TopicCartUpdated)

	if err := coord.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if err := coord.UpdateQuantity(ctx, 42, 3); err != nil {
		t.Fatal(err)
	}

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected a cart-updated signal")
	}
}
