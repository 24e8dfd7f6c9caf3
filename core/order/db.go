package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("order not found")

func Create(ctx context.Context, db sqlx.ExtContext, ord Order) error {
	const q = `
	INSERT INTO orders
		(order_id, user_id, order_number, status, subtotal, discount_amount,
		 shipping_cost, total_amount, shipping_method, coupon_code, created_at, updated_at)
	VALUES
		(:order_id, :user_id, :order_number, :status, :subtotal, :discount_amount,
		 :shipping_cost, :total_amount, :shipping_method, :coupon_code, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, ord); err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}
	return nil
}

func CreateItem(ctx context.Context, db sqlx.ExtContext, it Item) error {
	const q = `
	INSERT INTO order_items
		(order_id, product_id, product_name, quantity, price, lens_type, lens_index, created_at)
	VALUES
		(:order_id, :product_id, :product_name, :quantity, :price, :lens_type, :lens_index, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, it); err != nil {
		return fmt.Errorf("inserting order item: %w", err)
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, userID string, orderID string) (Order, error) {
	const q = `
	SELECT order_id, user_id, order_number, status, subtotal, discount_amount,
	       shipping_cost, total_amount, shipping_method, coupon_code, created_at, updated_at
	FROM orders
	WHERE user_id = $1 AND order_id = $2`

	var ord Order
	if err := sqlx.GetContext(ctx, db, &ord, q, userID, orderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("selecting order[%s]: %w", orderID, err)
	}

	items, err := fetchItems(ctx, db, orderID)
	if err != nil {
		return Order{}, err
	}
	ord.Items = items

	return ord, nil
}

func FetchAll(ctx context.Context, db sqlx.ExtContext, userID string) ([]Order, error) {
	const q = `
	SELECT order_id, user_id, order_number, status, subtotal, discount_amount,
	       shipping_cost, total_amount, shipping_method, coupon_code, created_at, updated_at
	FROM orders
	WHERE user_id = $1
	ORDER BY created_at DESC`

	var orders []Order
	if err := sqlx.SelectContext(ctx, db, &orders, q, userID); err != nil {
		return nil, fmt.Errorf("selecting orders: %w", err)
	}
	return orders, nil
}

func fetchItems(ctx context.Context, db sqlx.ExtContext, orderID string) ([]Item, error) {
	const q = `
	SELECT order_id, product_id, product_name, quantity, price, lens_type, lens_index, created_at
	FROM order_items
	WHERE order_id = $1`

	var items []Item
	if err := sqlx.SelectContext(ctx, db, &items, q, orderID); err != nil {
		return nil, fmt.Errorf("selecting items of order[%s]: %w", orderID, err)
	}
	return items, nil
}

func UpdateStatus(ctx context.Context, db sqlx.ExtContext, up StatusUp) error {
	const q = `
	UPDATE orders
	SET status = $2, updated_at = $3
	WHERE order_id = $1`

	res, err := db.ExecContext(ctx, q, up.ID, up.Status, up.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating status of order[%s]: %w", up.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
