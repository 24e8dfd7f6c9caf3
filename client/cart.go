package client

import (
	"context"
	"errors"
	"sync"

	"github.com/multifolks/storefront/client/bus"
	"github.com/multifolks/storefront/client/cache"
	"github.com/multifolks/storefront/core/cart"
	"github.com/multifolks/storefront/core/lens"
	"github.com/multifolks/storefront/core/pricing"
)

const (
	cartKey = "cart"

	// TopicCartUpdated is published on the bus after every settled
	// mutation, success or not.
	TopicCartUpdated = "cart-updated"
)

var (
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
	ErrMissingCouponCode = errors.New("coupon code is required")
)

// Coordinator drives cart mutations with optimistic updates. Each
// mutation suppresses in-flight reads, snapshots the cached payload,
// rewrites it locally with the same math the server uses, then issues
// the request; a failure restores the snapshot exactly. Either way
// the authoritative state is refetched afterwards, so the projection
// is only ever a bridge over the request's latency.
type Coordinator struct {
	api       *Client
	cache     *cache.Store
	bus       *bus.Bus
	overrides *lens.Overrides

	mu       sync.Mutex
	notice   string
	fetchErr error
}

func NewCoordinator(api *Client, store *cache.Store, b *bus.Bus) *Coordinator {
	return &Coordinator{
		api:       api,
		cache:     store,
		bus:       b,
		overrides: lens.NewOverrides(),
	}
}

// Payload returns the cached cart, which may be an optimistic
// projection while a mutation is in flight.
func (c *Coordinator) Payload() (*cart.Payload, bool) {
	v, ok := c.cache.Get(cartKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*cart.Payload)
	return p, ok
}

// Notice returns and clears the last user-facing mutation notice.
func (c *Coordinator) Notice() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.notice
	c.notice = ""
	return n
}

func (c *Coordinator) setNotice(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notice = msg
}

// FetchError reports the failure of the last authoritative read, if
// it failed. Reads are not retried; the caller re-triggers.
func (c *Coordinator) FetchError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchErr
}

func (c *Coordinator) setFetchError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchErr = err
}

// Refresh reads the authoritative cart. The HTTP request runs under
// the caller's context; a newer mutation only voids its cache write.
func (c *Coordinator) Refresh(ctx context.Context) error {
	fctx := c.cache.BeginFetch(ctx, cartKey)

	p, err := c.api.FetchCart(ctx)
	if err != nil {
		c.cache.EndFetch(fctx, cartKey)
		c.setFetchError(err)
		return err
	}

	if c.cache.EndFetch(fctx, cartKey) {
		c.cache.Set(cartKey, p)
	}
	c.setFetchError(nil)
	return nil
}

// mutate runs one mutation to completion. rewrite is nil for the
// deliberately non-optimistic operations (delete, coupon apply, add).
func (c *Coordinator) mutate(ctx context.Context, rewrite func(*cart.Payload), call func(context.Context) error) error {
	c.cache.CancelFetch(cartKey)

	snapshot, had := c.Payload()

	if rewrite != nil && had {
		projected := snapshot.Clone()
		rewrite(projected)
		*projected = cart.Summarize(projected.Cart, projected.Coupon, projected.ShippingMethod.ID)
		c.cache.Set(cartKey, projected)
	}

	err := call(ctx)
	if err != nil {
		if had {
			c.cache.Set(cartKey, snapshot)
		}
		c.setNotice(noticeFor(err))
	}

	// Settled either way: refetch the authoritative state. On a
	// refetch failure the rollback (or projection) stays visible
	// rather than blanking the cart.
	c.Refresh(ctx)
	c.bus.Publish(TopicCartUpdated)

	return err
}

func noticeFor(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return "something went wrong, please try again"
}

func (c *Coordinator) UpdateQuantity(ctx context.Context, cartID int64, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	rewrite := func(p *cart.Payload) {
		for i := range p.Cart {
			if p.Cart[i].CartID == cartID {
				p.Cart[i].Quantity = quantity
				return
			}
		}
	}
	call := func(ctx context.Context) error {
		_, err := c.api.UpdateQuantity(ctx, cartID, quantity)
		return err
	}
	return c.mutate(ctx, rewrite, call)
}

func (c *Coordinator) UpdateShipping(ctx context.Context, methodID string) error {
	if !pricing.ValidMethod(methodID) {
		return errors.New("unknown shipping method")
	}

	rewrite := func(p *cart.Payload) {
		p.ShippingMethod.ID = methodID
	}
	call := func(ctx context.Context) error {
		_, err := c.api.UpdateShipping(ctx, methodID)
		return err
	}
	return c.mutate(ctx, rewrite, call)
}

// ApplyCoupon is not optimistic: the discount is unknown until the
// server answers, so there is nothing truthful to project. Re-applying
// the active code short-circuits.
func (c *Coordinator) ApplyCoupon(ctx context.Context, code string) error {
	if code == "" {
		return ErrMissingCouponCode
	}
	if p, ok := c.Payload(); ok && p.Coupon != nil && p.Coupon.Code == code {
		return nil
	}

	call := func(ctx context.Context) error {
		_, err := c.api.ApplyCoupon(ctx, code)
		return err
	}
	return c.mutate(ctx, nil, call)
}

func (c *Coordinator) RemoveCoupon(ctx context.Context) error {
	rewrite := func(p *cart.Payload) {
		p.Coupon = nil
	}
	call := func(ctx context.Context) error {
		_, err := c.api.RemoveCoupon(ctx)
		return err
	}
	return c.mutate(ctx, rewrite, call)
}

// SelectLens persists a lens choice and keeps it as a display override
// until the refetch lands.
func (c *Coordinator) SelectLens(ctx context.Context, cartID int64, in cart.LensUp) error {
	c.overrides.Set(cartID, lens.Override{
		LensCategory:     in.LensCategory,
		LensPackage:      in.LensPackage,
		LensPackagePrice: in.LensPackagePrice,
	})

	rewrite := func(p *cart.Payload) {
		for i := range p.Cart {
			if p.Cart[i].CartID == cartID {
				p.Cart[i].LensCategory = in.LensCategory
				p.Cart[i].LensPackage = in.LensPackage
				p.Cart[i].LensPackagePrice = in.LensPackagePrice
				return
			}
		}
	}
	call := func(ctx context.Context) error {
		_, err := c.api.UpdateLens(ctx, cartID, in)
		return err
	}
	return c.mutate(ctx, rewrite, call)
}

func (c *Coordinator) AddItem(ctx context.Context, in cart.ItemNew) error {
	if in.Quantity < 1 {
		return ErrInvalidQuantity
	}

	call := func(ctx context.Context) error {
		_, err := c.api.AddItem(ctx, in)
		return err
	}
	return c.mutate(ctx, nil, call)
}

// DeleteItem is deliberately server-first: the line disappears from
// the view only once the server has confirmed the removal.
func (c *Coordinator) DeleteItem(ctx context.Context, cartID int64) error {
	call := func(ctx context.Context) error {
		_, err := c.api.DeleteItem(ctx, cartID)
		return err
	}
	err := c.mutate(ctx, nil, call)
	if err == nil {
		c.overrides.Clear(cartID)
	}
	return err
}

func (c *Coordinator) Clear(ctx context.Context) error {
	return c.mutate(ctx, nil, c.api.ClearCart)
}
