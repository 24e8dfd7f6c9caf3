package coupon

import "time"

type Coupon struct {
	Code      string    `json:"code" db:"code"`
	Kind      string    `json:"kind" db:"kind"`
	Value     float64   `json:"value" db:"value"`
	Active    bool      `json:"-" db:"active"`
	CreatedAt time.Time `json:"-" db:"created_at"`
}
