package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/multifolks/storefront/core/lens"
	"github.com/multifolks/storefront/core/pricing"
	"github.com/redis/go-redis/v9"
)

func testCache(t *testing.T) *Cache {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewCache(client)
}

func TestCacheRoundTrip(t *testing.T) {
	c := testCache(t)
	ctx := context.Background()

	if _, err := c.Get(ctx, "u1"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected cache miss, got %v", err)
	}

	p := Summarize([]Item{
		{CartID: 1, Quantity: 2, Product: Product{ListPrice: 100}, Lens: &lens.Lens{SellingPrice: 20}},
	}, nil, pricing.ExpressID)

	if err := c.Set(ctx, "u1", &p); err != nil {
		t.Fatalf("setting cache: %v", err)
	}

	got, err := c.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("getting cache: %v", err)
	}
	if diff := cmp.Diff(&p, got); diff != "" {
		t.Fatalf("cached payload mismatch (-want +got):\n%s", diff)
	}

	if _, err := c.Get(ctx, "u2"); !errors.Is(err, ErrCacheMiss) {
		t.Fatal("cache entries must be per user")
	}
}

func TestCacheDelete(t *testing.T) {
	c := testCache(t)
	ctx := context.Background()

	p := Summarize(nil, nil, pricing.StandardID)
	if err := c.Set(ctx, "u1", &p); err != nil {
		t.Fatalf("setting cache: %v", err)
	}

	if err := c.Delete(ctx, "u1"); err != nil {
		t.Fatalf("deleting cache: %v", err)
	}
	if _, err := c.Get(ctx, "u1"); !errors.Is(err, ErrCacheMiss) {
		t.Fatal("deleted entry should miss")
	}

	// Deleting an absent key is not an error.
	if err := c.Delete(ctx, "u2"); err != nil {
		t.Fatalf("deleting absent entry: %v", err)
	}
}
