package coupon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("coupon not found")

func Fetch(ctx context.Context, db sqlx.ExtContext, code string) (Coupon, error) {
	const q = `
	SELECT code, kind, value, active, created_at
	FROM coupons
	WHERE code = $1 AND active = TRUE`

	var c Coupon
	if err := sqlx.GetContext(ctx, db, &c, q, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Coupon{}, ErrNotFound
		}
		return Coupon{}, fmt.Errorf("selecting coupon[%s]: %w", code, err)
	}

	return c, nil
}
