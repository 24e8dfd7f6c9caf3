// Package pricing holds the cart money arithmetic. The same functions
// back both the server-side summary and the client-side optimistic
// projection, so the two can never drift.
package pricing

import (
	"bytes"
	"strconv"
)

// Money is a price in pounds. Upstream payloads are inconsistent about
// numeric types, so unmarshalling coerces anything non-numeric to 0
// instead of failing.
type Money float64

func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*m = 0
		return nil
	}

	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		*m = 0
		return nil
	}

	*m = Money(f)
	return nil
}

func (m Money) Value() float64 { return float64(m) }

const (
	StandardID = "standard"
	ExpressID  = "express"

	standardCost = 6
	expressCost  = 29

	// FreeShippingOver is the subtotal above which standard shipping
	// costs nothing. The client projection mirrors it exactly.
	FreeShippingOver = 75
)

type Method struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Cost          float64  `json:"cost"`
	FreeThreshold *float64 `json:"free_threshold"`
}

func ValidMethod(id string) bool {
	return id == StandardID || id == ExpressID
}

// MethodFor resolves a shipping method and its effective cost for the
// given subtotal.
func MethodFor(id string, subtotal float64) Method {
	if id == ExpressID {
		return Method{ID: ExpressID, Name: "Express Shipping", Cost: expressCost}
	}

	threshold := float64(FreeShippingOver)
	m := Method{ID: StandardID, Name: "Standard Shipping", Cost: standardCost, FreeThreshold: &threshold}
	if subtotal > FreeShippingOver {
		m.Cost = 0
	}
	return m
}

// ItemTotal is (frame + lens + coating-or-tint) * quantity. Absent
// addends are passed as 0 by the caller. No rounding happens here;
// formatting is presentation-side only.
func ItemTotal(frame, lens, extra float64, quantity int) float64 {
	if quantity < 1 {
		quantity = 1
	}
	return (frame + lens + extra) * float64(quantity)
}

// TotalPayable is subtotal - discount + shipping, clamped at zero.
func TotalPayable(subtotal, discount, shipping float64) float64 {
	t := subtotal - discount + shipping
	if t < 0 {
		return 0
	}
	return t
}

const (
	KindPercent = "percent"
	KindFixed   = "fixed"
)

// Discount computes the amount a coupon takes off the subtotal. Fixed
// discounts never exceed the subtotal.
func Discount(kind string, value, subtotal float64) float64 {
	switch kind {
	case KindPercent:
		return subtotal * value / 100
	case KindFixed:
		if value > subtotal {
			return subtotal
		}
		return value
	}
	return 0
}
