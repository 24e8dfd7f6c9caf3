package cart

import (
	"time"

	"github.com/multifolks/storefront/core/coupon"
	"github.com/multifolks/storefront/core/lens"
	"github.com/multifolks/storefront/core/pricing"
)

// Product is the catalog snapshot denormalized into a cart line when
// the product is added. The catalog service owns the live record.
type Product struct {
	SKU        string        `json:"skuid,omitempty"`
	Name       string        `json:"name,omitempty"`
	Brand      string        `json:"brand,omitempty"`
	Image      string        `json:"image,omitempty"`
	FrameColor string        `json:"framecolor,omitempty"`
	Size       string        `json:"size,omitempty"`
	ListPrice  pricing.Money `json:"list_price,omitempty"`
}

// Item is one cart line. CartID is stable across mutations and is the
// key optimistic updates are applied under. Lens data may live in the
// nested legacy object, in the flattened fields written by the newer
// select-lens API, or in both at once.
type Item struct {
	CartID           int64      `json:"cart_id"`
	UserID           string     `json:"-"`
	ProductID        string     `json:"product_id"`
	Quantity         int        `json:"quantity"`
	Product          Product    `json:"product"`
	Lens             *lens.Lens `json:"lens,omitempty"`
	LensCategory     string     `json:"lensCategory,omitempty"`
	LensPackage      string     `json:"lensPackage,omitempty"`
	LensPackagePrice *float64   `json:"lensPackagePrice,omitempty"`
	SelectedColor    string     `json:"selectedColor,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

type ItemNew struct {
	ProductID     string     `json:"product_id" validate:"required"`
	Quantity      int        `json:"quantity" validate:"required,gte=1"`
	Product       Product    `json:"product"`
	Lens          *lens.Lens `json:"lens"`
	SelectedColor string     `json:"selectedColor"`
}

type QuantityUp struct {
	Quantity int `json:"quantity" validate:"required,gte=1"`
}

type ShippingUp struct {
	MethodID string `json:"method_id" validate:"required,oneof=standard express"`
}

type CouponApply struct {
	Code string `json:"code" validate:"required"`
}

type LensUp struct {
	LensCategory     string   `json:"lensCategory"`
	LensPackage      string   `json:"lensPackage" validate:"required"`
	LensPackagePrice *float64 `json:"lensPackagePrice"`
}

// State is the per-user cart header: the shipping selection and the
// single active coupon, if any.
type State struct {
	UserID         string    `json:"-" db:"user_id"`
	ShippingMethod string    `json:"shippingMethod" db:"shipping_method"`
	CouponCode     *string   `json:"couponCode,omitempty" db:"coupon_code"`
	CreatedAt      time.Time `json:"-" db:"created_at"`
	UpdatedAt      time.Time `json:"-" db:"updated_at"`
	Version        int       `json:"-" db:"version"`
}

// Payload is the wire shape of a cart read, preserved from the
// storefront API the web client was built against.
type Payload struct {
	Cart           []Item         `json:"cart"`
	Subtotal       float64        `json:"subtotal"`
	DiscountAmount float64        `json:"discount_amount"`
	ShippingCost   float64        `json:"shipping_cost"`
	ShippingMethod pricing.Method `json:"shipping_method"`
	Coupon         *coupon.Coupon `json:"coupon,omitempty"`
	TotalPayable   float64        `json:"total_payable"`
}

// Clone deep-copies a payload so an optimistic rewrite can never reach
// back into the snapshot it was derived from.
func (p *Payload) Clone() *Payload {
	if p == nil {
		return nil
	}

	out := *p

	out.Cart = make([]Item, len(p.Cart))
	for i, it := range p.Cart {
		if it.Lens != nil {
			l := *it.Lens
			if l.Coating != nil {
				c := *l.Coating
				l.Coating = &c
			}
			if l.Tint != nil {
				t := *l.Tint
				l.Tint = &t
			}
			it.Lens = &l
		}
		if it.LensPackagePrice != nil {
			v := *it.LensPackagePrice
			it.LensPackagePrice = &v
		}
		out.Cart[i] = it
	}

	if p.ShippingMethod.FreeThreshold != nil {
		v := *p.ShippingMethod.FreeThreshold
		out.ShippingMethod.FreeThreshold = &v
	}
	if p.Coupon != nil {
		c := *p.Coupon
		out.Coupon = &c
	}

	return &out
}
