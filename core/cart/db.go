package cart

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/multifolks/storefront/core/lens"
)

var ErrNotFound = errors.New("cart item not found")

type dbItem struct {
	CartID           int64           `db:"cart_id"`
	UserID           string          `db:"user_id"`
	ProductID        string          `db:"product_id"`
	Quantity         int             `db:"quantity"`
	Product          types.JSONText  `db:"product"`
	Lens             *types.JSONText `db:"lens"`
	LensCategory     *string         `db:"lens_category"`
	LensPackage      *string         `db:"lens_package"`
	LensPackagePrice *float64        `db:"lens_package_price"`
	SelectedColor    *string         `db:"selected_color"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

func (d dbItem) toItem() (Item, error) {
	it := Item{
		CartID:           d.CartID,
		UserID:           d.UserID,
		ProductID:        d.ProductID,
		Quantity:         d.Quantity,
		LensPackagePrice: d.LensPackagePrice,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}

	if err := json.Unmarshal(d.Product, &it.Product); err != nil {
		return Item{}, fmt.Errorf("decoding product snapshot of item[%d]: %w", d.CartID, err)
	}
	if d.Lens != nil && len(*d.Lens) > 0 {
		var l lens.Lens
		if err := json.Unmarshal(*d.Lens, &l); err != nil {
			return Item{}, fmt.Errorf("decoding lens of item[%d]: %w", d.CartID, err)
		}
		it.Lens = &l
	}
	if d.LensCategory != nil {
		it.LensCategory = *d.LensCategory
	}
	if d.LensPackage != nil {
		it.LensPackage = *d.LensPackage
	}
	if d.SelectedColor != nil {
		it.SelectedColor = *d.SelectedColor
	}

	return it, nil
}

const itemColumns = `
	cart_id, user_id, product_id, quantity, product, lens,
	lens_category, lens_package, lens_package_price, selected_color,
	created_at, updated_at`

func FetchItems(ctx context.Context, db sqlx.ExtContext, userID string) ([]Item, error) {
	q := `SELECT` + itemColumns + `
	FROM cart_items
	WHERE user_id = $1
	ORDER BY cart_id`

	var rows []dbItem
	if err := sqlx.SelectContext(ctx, db, &rows, q, userID); err != nil {
		return nil, fmt.Errorf("selecting cart items: %w", err)
	}

	items := make([]Item, 0, len(rows))
	for _, r := range rows {
		it, err := r.toItem()
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}

	return items, nil
}

func FetchItem(ctx context.Context, db sqlx.ExtContext, userID string, cartID int64) (Item, error) {
	q := `SELECT` + itemColumns + `
	FROM cart_items
	WHERE user_id = $1 AND cart_id = $2`

	var row dbItem
	if err := sqlx.GetContext(ctx, db, &row, q, userID, cartID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, fmt.Errorf("selecting cart item[%d]: %w", cartID, err)
	}

	return row.toItem()
}

// CreateItem inserts a line, bumping the quantity instead when the
// user already carries the product (the user/product pair is unique).
func CreateItem(ctx context.Context, db sqlx.ExtContext, userID string, in ItemNew, now time.Time) (int64, error) {
	const q = `
	INSERT INTO cart_items
		(user_id, product_id, quantity, product, lens, selected_color, created_at, updated_at)
	VALUES
		($1, $2, $3, $4, $5, $6, $7, $7)
	ON CONFLICT (user_id, product_id) DO UPDATE SET
		quantity = cart_items.quantity + EXCLUDED.quantity,
		updated_at = EXCLUDED.updated_at
	RETURNING cart_id`

	product, err := json.Marshal(in.Product)
	if err != nil {
		return 0, fmt.Errorf("encoding product snapshot: %w", err)
	}

	var lensRaw []byte
	if in.Lens != nil {
		if lensRaw, err = json.Marshal(in.Lens); err != nil {
			return 0, fmt.Errorf("encoding lens: %w", err)
		}
	}

	var color *string
	if in.SelectedColor != "" {
		color = &in.SelectedColor
	}

	var cartID int64
	row := db.QueryRowxContext(ctx, q, userID, in.ProductID, in.Quantity, product, lensRaw, color, now)
	if err := row.Scan(&cartID); err != nil {
		return 0, fmt.Errorf("inserting cart item: %w", err)
	}

	return cartID, nil
}

func UpdateQuantity(ctx context.Context, db sqlx.ExtContext, userID string, cartID int64, quantity int, now time.Time) error {
	const q = `
	UPDATE cart_items
	SET quantity = $3, updated_at = $4
	WHERE user_id = $1 AND cart_id = $2`

	res, err := db.ExecContext(ctx, q, userID, cartID, quantity, now)
	if err != nil {
		return fmt.Errorf("updating quantity of item[%d]: %w", cartID, err)
	}

	return checkAffected(res, cartID)
}

// UpdateItemLens persists the flattened select-lens fields on a line.
func UpdateItemLens(ctx context.Context, db sqlx.ExtContext, userID string, cartID int64, up LensUp, now time.Time) error {
	const q = `
	UPDATE cart_items
	SET lens_category = $3, lens_package = $4, lens_package_price = $5, updated_at = $6
	WHERE user_id = $1 AND cart_id = $2`

	var category *string
	if up.LensCategory != "" {
		category = &up.LensCategory
	}

	res, err := db.ExecContext(ctx, q, userID, cartID, category, up.LensPackage, up.LensPackagePrice, now)
	if err != nil {
		return fmt.Errorf("updating lens of item[%d]: %w", cartID, err)
	}

	return checkAffected(res, cartID)
}

func DeleteItem(ctx context.Context, db sqlx.ExtContext, userID string, cartID int64) error {
	const q = `DELETE FROM cart_items WHERE user_id = $1 AND cart_id = $2`

	res, err := db.ExecContext(ctx, q, userID, cartID)
	if err != nil {
		return fmt.Errorf("deleting cart item[%d]: %w", cartID, err)
	}

	return checkAffected(res, cartID)
}

// Delete removes every line and resets the cart header.
func Delete(ctx context.Context, db sqlx.ExtContext, userID string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("deleting cart items: %w", err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM carts WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("deleting cart header: %w", err)
	}
	return nil
}

func checkAffected(res sql.Result, cartID int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// FetchState reads the cart header, creating the default one on first
// touch.
func FetchState(ctx context.Context, db sqlx.ExtContext, userID string, now time.Time) (State, error) {
	const q = `
	INSERT INTO carts (user_id, shipping_method, created_at, updated_at)
	VALUES ($1, 'standard', $2, $2)
	ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
	RETURNING user_id, shipping_method, coupon_code, created_at, updated_at, version`

	var st State
	if err := sqlx.GetContext(ctx, db, &st, q, userID, now); err != nil {
		return State{}, fmt.Errorf("fetching cart state: %w", err)
	}

	return st, nil
}

func SetShipping(ctx context.Context, db sqlx.ExtContext, userID string, methodID string, now time.Time) error {
	const q = `
	UPDATE carts
	SET shipping_method = $2, updated_at = $3, version = version + 1
	WHERE user_id = $1`

	if _, err := db.ExecContext(ctx, q, userID, methodID, now); err != nil {
		return fmt.Errorf("updating shipping method: %w", err)
	}
	return nil
}

func SetCoupon(ctx context.Context, db sqlx.ExtContext, userID string, code *string, now time.Time) error {
	const q = `
	UPDATE carts
	SET coupon_code = $2, updated_at = $3, version = version + 1
	WHERE user_id = $1`

	if _, err := db.ExecContext(ctx, q, userID, code, now); err != nil {
		return fmt.Errorf("updating coupon: %w", err)
	}
	return nil
}
