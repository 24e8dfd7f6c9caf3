package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/jmoiron/sqlx"
	"github.com/multifolks/storefront/api/background"
	"github.com/multifolks/storefront/api/web"
	"github.com/multifolks/storefront/api/weberr"
	"github.com/multifolks/storefront/core/claims"
	"github.com/multifolks/storefront/core/coupon"
	"github.com/multifolks/storefront/core/lens"
	"github.com/multifolks/storefront/events"
	"github.com/multifolks/storefront/validate"
	"github.com/sirupsen/logrus"
)

// Effects carries the side channels every cart mutation touches:
// the read cache to invalidate and the event stream to notify.
type Effects struct {
	Log     logrus.FieldLogger
	Cache   *Cache
	Events  *events.Publisher
	BG      *background.Background
	Session *scs.SessionManager
}

// changed invalidates the cached payload and announces the mutation.
// Both are best-effort: the database is already authoritative.
func (fx Effects) changed(ctx context.Context, userID string) {
	if fx.Cache != nil {
		if err := fx.Cache.Delete(ctx, userID); err != nil {
			fx.Log.WithError(err).Warnf("cart: invalidating cache of user[%s]", userID)
		}
	}
	fx.BG.Go(func() {
		fx.Events.CartUpdated(context.Background(), userID)
	})
}

// Build assembles the authoritative payload for a user from the
// database.
func Build(ctx context.Context, db sqlx.ExtContext, userID string, now time.Time) (Payload, error) {
	items, err := FetchItems(ctx, db, userID)
	if err != nil {
		return Payload{}, err
	}

	st, err := FetchState(ctx, db, userID, now)
	if err != nil {
		return Payload{}, err
	}

	var cpn *coupon.Coupon
	if st.CouponCode != nil {
		c, err := coupon.Fetch(ctx, db, *st.CouponCode)
		switch {
		case errors.Is(err, coupon.ErrNotFound):
			// A coupon retired after being applied silently stops
			// discounting; the client refetch picks that up.
		case err != nil:
			return Payload{}, err
		default:
			cpn = &c
		}
	}

	return Summarize(items, cpn, st.ShippingMethod), nil
}

const sessionLensKey = "pending-lens"

type sessionLens struct {
	CartID   int64         `json:"cart_id"`
	Override lens.Override `json:"override"`
}

func rememberLens(ctx context.Context, session *scs.SessionManager, cartID int64, ov lens.Override) {
	if session == nil {
		return
	}
	b, err := json.Marshal(sessionLens{CartID: cartID, Override: ov})
	if err != nil {
		return
	}
	session.Put(ctx, sessionLensKey, b)
}

// mergePendingLens overlays the session's pending lens selection onto
// the matching line, display fields only. Prices stay untouched until
// the selection is persisted.
func mergePendingLens(ctx context.Context, session *scs.SessionManager, p *Payload) {
	if session == nil {
		return
	}
	b := session.GetBytes(ctx, sessionLensKey)
	if len(b) == 0 {
		return
	}

	var pending sessionLens
	if err := json.Unmarshal(b, &pending); err != nil {
		return
	}

	for i := range p.Cart {
		if p.Cart[i].CartID != pending.CartID {
			continue
		}
		if pending.Override.LensCategory != "" {
			p.Cart[i].LensCategory = pending.Override.LensCategory
		}
		if pending.Override.LensPackage != "" {
			p.Cart[i].LensPackage = pending.Override.LensPackage
		}
		if pending.Override.MainCategory != "" && p.Cart[i].Lens != nil {
			l := *p.Cart[i].Lens
			l.MainCategory = pending.Override.MainCategory
			p.Cart[i].Lens = &l
		}
		return
	}
}

// respondCart rebuilds the payload after a mutation, refreshes the
// cache and answers with the authoritative state.
func respondCart(ctx context.Context, w http.ResponseWriter, db sqlx.ExtContext, fx Effects, userID string) error {
	p, err := Build(ctx, db, userID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("assembling cart of user[%s]: %w", userID, err)
	}

	if fx.Cache != nil {
		if err := fx.Cache.Set(ctx, userID, &p); err != nil {
			fx.Log.WithError(err).Warnf("cart: caching cart of user[%s]", userID)
		}
	}

	mergePendingLens(ctx, fx.Session, &p)
	return web.Respond(ctx, w, p, http.StatusOK)
}

func HandleShow(db *sqlx.DB, fx Effects) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		if fx.Cache != nil {
			p, err := fx.Cache.Get(ctx, clm.UserID)
			switch {
			case err == nil:
				mergePendingLens(ctx, fx.Session, p)
				return web.Respond(ctx, w, p, http.StatusOK)
			case !errors.Is(err, ErrCacheMiss):
				fx.Log.WithError(err).Warnf("cart: reading cache of user[%s]", clm.UserID)
			}
		}

		return respondCart(ctx, w, db, fx, clm.UserID)
	}
}

func HandleCreateItem(db *sqlx.DB, fx Effects) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		var in ItemNew
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding item: %w", err))
		}
		if err := validate.Check(in); err != nil {
			return weberr.Unprocessable(err)
		}

		if _, err := CreateItem(ctx, db, clm.UserID, in, time.Now().UTC()); err != nil {
			return fmt.Errorf("adding item to cart of user[%s]: %w", clm.UserID, err)
		}

		fx.changed(ctx, clm.UserID)
		return respondCart(ctx, w, db, fx, clm.UserID)
	}
}

func HandleUpdateQuantity(db *sqlx.DB, fx Effects) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		cartID, err := web.ParamID(r, "cart_id")
		if err != nil {
			return weberr.BadRequest(err)
		}

		var in QuantityUp
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding quantity: %w", err))
		}
		if err := validate.Check(in); err != nil {
			return weberr.Unprocessable(err)
		}

		err = UpdateQuantity(ctx, db, clm.UserID, cartID, in.Quantity, time.Now().UTC())
		if errors.Is(err, ErrNotFound) {
			return weberr.NotFound(err)
		}
		if err != nil {
			return fmt.Errorf("updating quantity of item[%d]: %w", cartID, err)
		}

		fx.changed(ctx, clm.UserID)
		return respondCart(ctx, w, db, fx, clm.UserID)
	}
}

func HandleUpdateLens(db *sqlx.DB, fx Effects) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		cartID, err := web.ParamID(r, "cart_id")
		if err != nil {
			return weberr.BadRequest(err)
		}

		var in LensUp
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding lens selection: %w", err))
		}
		if err := validate.Check(in); err != nil {
			return weberr.Unprocessable(err)
		}

		err = UpdateItemLens(ctx, db, clm.UserID, cartID, in, time.Now().UTC())
		if errors.Is(err, ErrNotFound) {
			return weberr.NotFound(err)
		}
		if err != nil {
			return fmt.Errorf("updating lens of item[%d]: %w", cartID, err)
		}

		rememberLens(ctx, fx.Session, cartID, lens.Override{
			LensCategory:     in.LensCategory,
			LensPackage:      in.LensPackage,
			LensPackagePrice: in.LensPackagePrice,
			UpdatedAt:        time.Now().UTC().Unix(),
		})

		fx.changed(ctx, clm.UserID)
		return respondCart(ctx, w, db, fx, clm.UserID)
	}
}

func HandleApplyCoupon(db *sqlx.DB, fx Effects) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		var in CouponApply
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding coupon: %w", err))
		}
		if err := validate.Check(in); err != nil {
			return weberr.Unprocessable(err)
		}

		now := time.Now().UTC()

		st, err := FetchState(ctx, db, clm.UserID, now)
		if err != nil {
			return fmt.Errorf("fetching cart state of user[%s]: %w", clm.UserID, err)
		}

		// Re-applying the active code is a no-op success.
		if st.CouponCode != nil && *st.CouponCode == in.Code {
			return respondCart(ctx, w, db, fx, clm.UserID)
		}

		cpn, err := coupon.Fetch(ctx, db, in.Code)
		if errors.Is(err, coupon.ErrNotFound) {
			return weberr.Unprocessable(errors.New("coupon code is not valid"))
		}
		if err != nil {
			return fmt.Errorf("fetching coupon[%s]: %w", in.Code, err)
		}

		if err := SetCoupon(ctx, db, clm.UserID, &cpn.Code, now); err != nil {
			return fmt.Errorf("applying coupon[%s]: %w", cpn.Code, err)
		}

		fx.changed(ctx, clm.UserID)
		return respondCart(ctx, w, db, fx, clm.UserID)
	}
}

func HandleRemoveCoupon(db *sqlx.DB, fx Effects) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		now := time.Now().UTC()

		if _, err := FetchState(ctx, db, clm.UserID, now); err != nil {
			return fmt.Errorf("fetching cart state of user[%s]: %w", clm.UserID, err)
		}
		if err := SetCoupon(ctx, db, clm.UserID, nil, now); err != nil {
			return fmt.Errorf("removing coupon: %w", err)
		}

		fx.changed(ctx, clm.UserID)
		return respondCart(ctx, w, db, fx, clm.UserID)
	}
}

func HandleUpdateShipping(db *sqlx.DB, fx Effects) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		var in ShippingUp
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding shipping method: %w", err))
		}
		if err := validate.Check(in); err != nil {
			return weberr.Unprocessable(err)
		}

		now := time.Now().UTC()

		if _, err := FetchState(ctx, db, clm.UserID, now); err != nil {
			return fmt.Errorf("fetching cart state of user[%s]: %w", clm.UserID, err)
		}
		if err := SetShipping(ctx, db, clm.UserID, in.MethodID, now); err != nil {
			return fmt.Errorf("updating shipping method: %w", err)
		}

		fx.changed(ctx, clm.UserID)
		return respondCart(ctx, w, db, fx, clm.UserID)
	}
}

func HandleDeleteItem(db *sqlx.DB, fx Effects) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		cartID, err := web.ParamID(r, "cart_id")
		if err != nil {
			return weberr.BadRequest(err)
		}

		err = DeleteItem(ctx, db, clm.UserID, cartID)
		if errors.Is(err, ErrNotFound) {
			return weberr.NotFound(err)
		}
		if err != nil {
			return fmt.Errorf("deleting item[%d]: %w", cartID, err)
		}

		fx.changed(ctx, clm.UserID)
		return respondCart(ctx, w, db, fx, clm.UserID)
	}
}

func HandleDelete(db *sqlx.DB, fx Effects) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		if err := Delete(ctx, db, clm.UserID); err != nil {
			return fmt.Errorf("emptying cart of user[%s]: %w", clm.UserID, err)
		}

		if fx.Session != nil {
			fx.Session.Remove(ctx, sessionLensKey)
		}

		fx.changed(ctx, clm.UserID)
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}
