package prescription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var (
	ErrNotFound          = errors.New("prescription not found")
	ErrAlreadyAssociated = errors.New("prescription is already associated to a cart item")
)

func Create(ctx context.Context, db sqlx.ExtContext, p Prescription) error {
	const q = `
	INSERT INTO prescriptions
		(prescription_id, user_id, name, data, cart_id, is_active, created_at, updated_at)
	VALUES
		(:prescription_id, :user_id, :name, :data, :cart_id, :is_active, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, p); err != nil {
		return fmt.Errorf("inserting prescription: %w", err)
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, userID string, id string) (Prescription, error) {
	const q = `
	SELECT prescription_id, user_id, name, data, cart_id, is_active, created_at, updated_at
	FROM prescriptions
	WHERE user_id = $1 AND prescription_id = $2`

	var p Prescription
	if err := sqlx.GetContext(ctx, db, &p, q, userID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Prescription{}, ErrNotFound
		}
		return Prescription{}, fmt.Errorf("selecting prescription[%s]: %w", id, err)
	}
	return p, nil
}

func FetchAll(ctx context.Context, db sqlx.ExtContext, userID string) ([]Prescription, error) {
	const q = `
	SELECT prescription_id, user_id, name, data, cart_id, is_active, created_at, updated_at
	FROM prescriptions
	WHERE user_id = $1 AND is_active
	ORDER BY created_at DESC`

	var ps []Prescription
	if err := sqlx.SelectContext(ctx, db, &ps, q, userID); err != nil {
		return nil, fmt.Errorf("selecting prescriptions: %w", err)
	}
	return ps, nil
}

// Associate binds a prescription to a cart line, but only when it is
// not bound yet. The first association wins.
func Associate(ctx context.Context, db sqlx.ExtContext, userID string, id string, cartID int64) error {
	const q = `
	UPDATE prescriptions
	SET cart_id = $3, updated_at = NOW()
	WHERE user_id = $1 AND prescription_id = $2 AND cart_id IS NULL`

	res, err := db.ExecContext(ctx, q, userID, id, cartID)
	if err != nil {
		return fmt.Errorf("associating prescription[%s]: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		if _, err := Fetch(ctx, db, userID, id); err != nil {
			return err
		}
		return ErrAlreadyAssociated
	}
	return nil
}
