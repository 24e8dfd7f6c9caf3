package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/multifolks/storefront/api/background"
	"github.com/multifolks/storefront/api/web"
	"github.com/multifolks/storefront/api/weberr"
	"github.com/multifolks/storefront/core/cart"
	"github.com/multifolks/storefront/core/claims"
	"github.com/multifolks/storefront/core/lens"
	"github.com/multifolks/storefront/database"
	"github.com/multifolks/storefront/events"
	"github.com/multifolks/storefront/random"
	"github.com/multifolks/storefront/validate"
	"github.com/sirupsen/logrus"
)

// checkout snapshots the cart into a pending order and empties the
// cart, atomically.
func checkout(ctx context.Context, db *sqlx.DB, userID string) (Order, error) {
	now := time.Now().UTC()

	payload, err := cart.Build(ctx, db, userID, now)
	if err != nil {
		return Order{}, fmt.Errorf("assembling cart: %w", err)
	}
	if len(payload.Cart) == 0 {
		err := errors.New("no items to checkout")
		return Order{}, weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
	}

	ord := Order{
		ID:             validate.GenerateID(),
		UserID:         userID,
		OrderNumber:    "ORD-" + random.String(10),
		Status:         Pending,
		Subtotal:       payload.Subtotal,
		DiscountAmount: payload.DiscountAmount,
		ShippingCost:   payload.ShippingCost,
		TotalAmount:    payload.TotalPayable,
		ShippingMethod: payload.ShippingMethod.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if payload.Coupon != nil {
		code := payload.Coupon.Code
		ord.CouponCode = &code
	}

	err = database.Transaction(db, func(tx sqlx.ExtContext) error {
		if err := Create(ctx, tx, ord); err != nil {
			return err
		}

		for _, line := range payload.Cart {
			src := line.LensSource()

			it := Item{
				OrderID:     ord.ID,
				ProductID:   line.ProductID,
				ProductName: line.Product.Name,
				Quantity:    line.Quantity,
				Price:       cart.ItemTotal(line),
				CreatedAt:   now,
			}
			if line.Lens != nil || line.LensPackage != "" {
				lt := lens.TypeDisplay(src)
				li := lens.Index(src)
				it.LensType = &lt
				it.LensIndex = &li
			}

			if err := CreateItem(ctx, tx, it); err != nil {
				return err
			}
		}

		if err := cart.Delete(ctx, tx, userID); err != nil {
			return fmt.Errorf("flushing cart: %w", err)
		}

		return nil
	})
	if err != nil {
		return Order{}, err
	}

	ord.Items, err = fetchItems(ctx, db, ord.ID)
	if err != nil {
		return Order{}, err
	}

	return ord, nil
}

func HandleCheckout(db *sqlx.DB, cache *cart.Cache, ev *events.Publisher, bg *background.Background, log logrus.FieldLogger) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		ord, err := checkout(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("checking out cart of user[%s]: %w", clm.UserID, err)
		}

		if cache != nil {
			if err := cache.Delete(ctx, clm.UserID); err != nil {
				log.WithError(err).Warnf("order: invalidating cart cache of user[%s]", clm.UserID)
			}
		}
		bg.Go(func() {
			ev.OrderCreated(context.Background(), ord.UserID, ord.OrderNumber)
			ev.CartUpdated(context.Background(), ord.UserID)
		})

		return web.Respond(ctx, w, ord, http.StatusCreated)
	}
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		orders, err := FetchAll(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("listing orders of user[%s]: %w", clm.UserID, err)
		}

		return web.Respond(ctx, w, orders, http.StatusOK)
	}
}

func HandleUpdateStatus(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		orderID := web.Param(r, "id")
		if err := validate.CheckID(orderID); err != nil {
			return weberr.BadRequest(err)
		}

		var in struct {
			Status string `json:"status" validate:"required,oneof=pending processing shipped delivered cancelled"`
		}
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding status: %w", err))
		}
		if err := validate.Check(in); err != nil {
			return weberr.Unprocessable(err)
		}

		ord, err := Fetch(ctx, db, clm.UserID, orderID)
		if errors.Is(err, ErrNotFound) {
			return weberr.NotFound(err)
		}
		if err != nil {
			return fmt.Errorf("fetching order[%s]: %w", orderID, err)
		}

		if !CanTransition(ord.Status, in.Status) {
			return weberr.Unprocessable(fmt.Errorf("order cannot move from %s to %s", ord.Status, in.Status))
		}

		up := StatusUp{ID: ord.ID, Status: in.Status, UpdatedAt: time.Now().UTC()}
		if err := UpdateStatus(ctx, db, up); err != nil {
			return fmt.Errorf("updating status of order[%s]: %w", orderID, err)
		}

		ord.Status = in.Status
		ord.UpdatedAt = up.UpdatedAt
		return web.Respond(ctx, w, ord, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		orderID := web.Param(r, "id")
		if err := validate.CheckID(orderID); err != nil {
			return weberr.BadRequest(err)
		}

		ord, err := Fetch(ctx, db, clm.UserID, orderID)
		if errors.Is(err, ErrNotFound) {
			return weberr.NotFound(err)
		}
		if err != nil {
			return fmt.Errorf("fetching order[%s]: %w", orderID, err)
		}

		return web.Respond(ctx, w, ord, http.StatusOK)
	}
}
