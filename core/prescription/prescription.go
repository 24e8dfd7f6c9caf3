// Package prescription stores saved prescriptions and their
// association to cart lines. The cart UI reads the association to
// decide between the add and view affordances.
package prescription

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

type Prescription struct {
	ID        string         `json:"prescription_id" db:"prescription_id"`
	UserID    string         `json:"-" db:"user_id"`
	Name      string         `json:"name" db:"name"`
	Data      types.JSONText `json:"data" db:"data"`
	CartID    *int64         `json:"cartId,omitempty" db:"cart_id"`
	IsActive  bool           `json:"is_active" db:"is_active"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
}

type New struct {
	Name string         `json:"name"`
	Data types.JSONText `json:"data" validate:"required"`
}

type CartAssoc struct {
	CartID int64 `json:"cart_id" validate:"required"`
}
