package cart

import (
	"github.com/multifolks/storefront/core/coupon"
	"github.com/multifolks/storefront/core/lens"
	"github.com/multifolks/storefront/core/pricing"
)

// LensSource flattens a line's lens-bearing fields for the resolver.
// The caller attaches any session override before resolving.
func (it Item) LensSource() lens.Source {
	return lens.Source{
		Lens:             it.Lens,
		LensCategory:     it.LensCategory,
		LensPackage:      it.LensPackage,
		LensPackagePrice: it.LensPackagePrice,
	}
}

// ItemTotal prices a single line: frame plus lens plus coating-or-tint,
// times quantity. Absent pieces contribute 0. Session overrides never
// change a line's price until they are persisted, so they are not
// consulted here.
func ItemTotal(it Item) float64 {
	src := it.LensSource()
	return pricing.ItemTotal(
		it.Product.ListPrice.Value(),
		lens.PackagePrice(src),
		lens.CoatingOrTint(src).Price,
		it.Quantity,
	)
}

func Subtotal(items []Item) float64 {
	var sum float64
	for _, it := range items {
		sum += ItemTotal(it)
	}
	return sum
}

// Summarize derives the full cart payload from its parts. The server
// builds every response with it and the client builds every optimistic
// projection with it, which is what keeps the two from drifting.
func Summarize(items []Item, cpn *coupon.Coupon, shippingID string) Payload {
	subtotal := Subtotal(items)

	var discount float64
	if cpn != nil {
		discount = pricing.Discount(cpn.Kind, cpn.Value, subtotal)
	}

	method := pricing.MethodFor(shippingID, subtotal)

	return Payload{
		Cart:           items,
		Subtotal:       subtotal,
		DiscountAmount: discount,
		ShippingCost:   method.Cost,
		ShippingMethod: method,
		Coupon:         cpn,
		TotalPayable:   pricing.TotalPayable(subtotal, discount, method.Cost),
	}
}
