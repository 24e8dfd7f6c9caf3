package api

import (
	"context"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/multifolks/storefront/api/background"
	"github.com/multifolks/storefront/api/middleware"
	"github.com/multifolks/storefront/api/web"
	"github.com/multifolks/storefront/core/auth"
	"github.com/multifolks/storefront/core/cart"
	"github.com/multifolks/storefront/core/order"
	"github.com/multifolks/storefront/core/prescription"
	"github.com/multifolks/storefront/events"
	"github.com/multifolks/storefront/rate"
	"github.com/sirupsen/logrus"
)

type APIConfig struct {
	CorsOrigin  string
	Log         logrus.FieldLogger
	DB          *sqlx.DB
	Session     *scs.SessionManager
	Background  *background.Background
	Cache       *cart.Cache
	Events      *events.Publisher
	Limiter     *rate.Limiter
	TokenSecret string
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, auth.LoadAndSave(cfg.Session))
	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	authen := auth.Authenticate(cfg.TokenSecret)
	limited := middleware.RateLimit(cfg.Limiter)

	fx := cart.Effects{
		Log:     cfg.Log,
		Cache:   cfg.Cache,
		Events:  cfg.Events,
		BG:      cfg.Background,
		Session: cfg.Session,
	}

	a.Handle(http.MethodGet, "/cart", cart.HandleShow(cfg.DB, fx), authen, limited)
	a.Handle(http.MethodDelete, "/cart", cart.HandleDelete(cfg.DB, fx), authen, limited)
	a.Handle(http.MethodPut, "/cart/items", cart.HandleCreateItem(cfg.DB, fx), authen, limited)
	a.Handle(http.MethodPut, "/cart/items/{cart_id}/quantity", cart.HandleUpdateQuantity(cfg.DB, fx), authen, limited)
	a.Handle(http.MethodPut, "/cart/items/{cart_id}/lens", cart.HandleUpdateLens(cfg.DB, fx), authen, limited)
	a.Handle(http.MethodDelete, "/cart/items/{cart_id}", cart.HandleDeleteItem(cfg.DB, fx), authen, limited)
	a.Handle(http.MethodPut, "/cart/shipping", cart.HandleUpdateShipping(cfg.DB, fx), authen, limited)
	a.Handle(http.MethodPost, "/cart/coupon", cart.HandleApplyCoupon(cfg.DB, fx), authen, limited)
	a.Handle(http.MethodDelete, "/cart/coupon", cart.HandleRemoveCoupon(cfg.DB, fx), authen, limited)

	a.Handle(http.MethodPost, "/orders", order.HandleCheckout(cfg.DB, cfg.Cache, cfg.Events, cfg.Background, cfg.Log), authen, limited)
	a.Handle(http.MethodGet, "/orders", order.HandleList(cfg.DB), authen, limited)
	a.Handle(http.MethodGet, "/orders/{id}", order.HandleShow(cfg.DB), authen, limited)
	a.Handle(http.MethodPut, "/orders/{id}/status", order.HandleUpdateStatus(cfg.DB), authen, limited)

	a.Handle(http.MethodGet, "/prescriptions", prescription.HandleList(cfg.DB), authen, limited)
	a.Handle(http.MethodPost, "/prescriptions", prescription.HandleCreate(cfg.DB), authen, limited)
	a.Handle(http.MethodPut, "/prescriptions/{id}/cart", prescription.HandleAssociate(cfg.DB), authen, limited)

	return a.Router
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}
