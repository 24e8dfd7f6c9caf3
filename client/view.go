package client

import (
	"strings"

	"github.com/multifolks/storefront/core/cart"
	"github.com/multifolks/storefront/core/lens"
	"github.com/multifolks/storefront/core/pricing"
)

const (
	ActionAddPrescription  = "Add Prescription"
	ActionViewPrescription = "View Prescription"
)

// Line is one cart row ready to render: resolved lens attributes,
// normalized frame size and the per-line total.
type Line struct {
	CartID     int64
	Brand      string
	Name       string
	Image      string
	Color      string
	Size       string
	FramePrice float64
	Quantity   int

	LensType  string
	LensIndex string
	LensPrice float64

	ExtraLabel string
	ExtraName  string
	ExtraPrice float64

	Total float64

	PrescriptionAction string
}

type Summary struct {
	Subtotal       float64
	DiscountAmount float64
	ShippingCost   float64
	ShippingMethod pricing.Method
	CouponCode     string
	TotalPayable   float64
}

// View is the render model of the cart page. Err carries the last
// read failure; Lines and Summary then reflect the stale cached state,
// if any.
type View struct {
	Lines   []Line
	Summary Summary
	Err     error
}

// View assembles the render model from the cached payload. associated
// maps cart line ids to whether a prescription is already attached.
func (c *Coordinator) View(associated map[int64]bool) View {
	p, ok := c.Payload()
	if !ok {
		return View{Err: c.FetchError()}
	}
	return buildView(p, c.overrides, associated, c.FetchError())
}

func buildView(p *cart.Payload, overrides *lens.Overrides, associated map[int64]bool, fetchErr error) View {
	v := View{
		Lines: make([]Line, 0, len(p.Cart)),
		Summary: Summary{
			Subtotal:       cart.Subtotal(p.Cart),
			DiscountAmount: p.DiscountAmount,
			ShippingCost:   p.ShippingCost,
			ShippingMethod: p.ShippingMethod,
			TotalPayable:   p.TotalPayable,
		},
		Err: fetchErr,
	}
	if p.Coupon != nil {
		v.Summary.CouponCode = p.Coupon.Code
	}

	for _, it := range p.Cart {
		src := it.LensSource()

		// Pending selections override the displayed attributes, never
		// the prices: those change only once the selection persists.
		display := src
		if overrides != nil {
			if ov, ok := overrides.Get(it.CartID); ok {
				display.Override = &ov
			}
		}

		extra := lens.CoatingOrTint(src)

		line := Line{
			CartID:     it.CartID,
			Brand:      it.Product.Brand,
			Name:       it.Product.Name,
			Image:      it.Product.Image,
			Color:      color(it),
			Size:       normalizeSize(it.Product.Size),
			FramePrice: it.Product.ListPrice.Value(),
			Quantity:   it.Quantity,

			LensType:  lens.TypeDisplay(display),
			LensIndex: lens.IndexDisplay(display),
			LensPrice: lens.PackagePrice(src),

			ExtraLabel: extra.Label,
			ExtraName:  extra.Name,
			ExtraPrice: extra.Price,

			Total: cart.ItemTotal(it),

			PrescriptionAction: ActionAddPrescription,
		}
		if associated[it.CartID] {
			line.PrescriptionAction = ActionViewPrescription
		}

		v.Lines = append(v.Lines, line)
	}

	return v
}

func color(it cart.Item) string {
	if it.SelectedColor != "" {
		return it.SelectedColor
	}
	return it.Product.FrameColor
}

// normalizeSize folds catalog size labels down to S/M/L; anything
// unrecognized passes through untouched.
func normalizeSize(size string) string {
	switch strings.ToLower(strings.TrimSpace(size)) {
	case "s", "small", "narrow":
		return "S"
	case "m", "medium", "regular":
		return "M"
	case "l", "large", "wide":
		return "L"
	}
	return size
}
