package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/multifolks/storefront/core/cart"
)

func emptyCart(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cart.Summarize(nil, nil, "standard"))
}

func TestGuestIDGeneratedOnceAndPersisted(t *testing.T) {
	var mu sync.Mutex
	var seen []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("X-Guest-ID"))
		mu.Unlock()
		emptyCart(w)
	}))
	defer srv.Close()

	creds := &MemoryCredentials{}
	c := New(srv.URL, creds)

	ctx := context.Background()
	if _, err := c.FetchCart(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := c.FetchCart(ctx); err != nil {
		t.Fatal(err)
	}

	if len(seen) != 2 {
		t.Fatalf("got %d requests, expected 2", len(seen))
	}
	if !strings.HasPrefix(seen[0], "guest_") {
		t.Fatalf("guest id %q has no guest_ prefix", seen[0])
	}
	if seen[0] != seen[1] {
		t.Fatalf("guest id regenerated: %q then %q", seen[0], seen[1])
	}
	if got := creds.GuestID(); got != seen[0] {
		t.Fatalf("persisted guest id %q, sent %q", got, seen[0])
	}
}

func TestGuestIDReusedFromStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Guest-ID"); got != "guest_stored" {
			t.Errorf("got guest id %q, expected the stored one", got)
		}
		emptyCart(w)
	}))
	defer srv.Close()

	creds := &MemoryCredentials{}
	creds.SetGuestID("guest_stored")

	c := New(srv.URL, creds)
	if _, err := c.FetchCart(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestExpiredTokenRetriesOnceAsGuest(t *testing.T) {
	var attempts int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if r.Header.Get("Authorization") != "" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "not authorized to access resource"})
			return
		}
		if r.Header.Get("X-Guest-ID") == "" {
			t.Error("retry carries no guest id")
		}
		emptyCart(w)
	}))
	defer srv.Close()

	creds := &MemoryCredentials{}
	creds.SetToken("expired")

	c := New(srv.URL, creds)
	if _, err := c.FetchCart(context.Background()); err != nil {
		t.Fatal(err)
	}

	if attempts != 2 {
		t.Fatalf("got %d attempts, expected 2", attempts)
	}
	if creds.Token() != "" {
		t.Fatal("expected the rejected token to be cleared")
	}
}

func TestSecondUnauthorizedIsFinal(t *testing.T) {
	var attempts int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "not authorized to access resource"})
	}))
	defer srv.Close()

	creds := &MemoryCredentials{}
	creds.SetToken("expired")

	c := New(srv.URL, creds)
	_, err := c.FetchCart(context.Background())

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("got %v, expected a final 401", err)
	}
	if attempts != 2 {
		t.Fatalf("got %d attempts, expected exactly 2", attempts)
	}
}

func TestErrorBodyBecomesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"error": "coupon code is not valid"})
	}))
	defer srv.Close()

	c := New(srv.URL, &MemoryCredentials{})
	_, err := c.ApplyCoupon(context.Background(), "NOPE")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("got %T, expected *APIError", err)
	}
	if apiErr.Message != "coupon code is not valid" {
		t.Fatalf("got message %q", apiErr.Message)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("got status %d", apiErr.StatusCode)
	}
}
