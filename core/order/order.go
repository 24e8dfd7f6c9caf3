// Package order turns a cart into an immutable purchase record.
// Payment capture belongs to a separate service; orders here start in
// Pending and move through fulfillment statuses.
package order

import "time"

const (
	Pending    = "pending"
	Processing = "processing"
	Shipped    = "shipped"
	Delivered  = "delivered"
	Cancelled  = "cancelled"
)

type Order struct {
	ID             string    `json:"order_id" db:"order_id"`
	UserID         string    `json:"-" db:"user_id"`
	OrderNumber    string    `json:"order_number" db:"order_number"`
	Status         string    `json:"status" db:"status"`
	Subtotal       float64   `json:"subtotal" db:"subtotal"`
	DiscountAmount float64   `json:"discount_amount" db:"discount_amount"`
	ShippingCost   float64   `json:"shipping_cost" db:"shipping_cost"`
	TotalAmount    float64   `json:"total_amount" db:"total_amount"`
	ShippingMethod string    `json:"shipping_method" db:"shipping_method"`
	CouponCode     *string   `json:"coupon_code,omitempty" db:"coupon_code"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`

	Items []Item `json:"items,omitempty" db:"-"`
}

// Item is a frozen cart line: prices and resolved lens attributes as
// they were at checkout, immune to later catalog changes.
type Item struct {
	OrderID     string    `json:"-" db:"order_id"`
	ProductID   string    `json:"product_id" db:"product_id"`
	ProductName string    `json:"product_name" db:"product_name"`
	Quantity    int       `json:"quantity" db:"quantity"`
	Price       float64   `json:"price" db:"price"`
	LensType    *string   `json:"lens_type,omitempty" db:"lens_type"`
	LensIndex   *string   `json:"lens_index,omitempty" db:"lens_index"`
	CreatedAt   time.Time `json:"-" db:"created_at"`
}

type StatusUp struct {
	ID        string
	Status    string
	UpdatedAt time.Time
}

// next maps each status to the ones it may move to.
var next = map[string][]string{
	Pending:    {Processing, Cancelled},
	Processing: {Shipped, Cancelled},
	Shipped:    {Delivered},
}

func CanTransition(from, to string) bool {
	for _, s := range next[from] {
		if s == to {
			return true
		}
	}
	return false
}
