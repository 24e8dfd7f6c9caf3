package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/multifolks/storefront/api/web"
	"github.com/multifolks/storefront/api/weberr"
	"github.com/multifolks/storefront/core/claims"
	"github.com/multifolks/storefront/rate"
)

// RateLimit throttles per identity, falling back to the remote address
// for requests that carry none.
func RateLimit(lim *rate.Limiter) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			id := r.RemoteAddr
			if clm, err := claims.Get(ctx); err == nil {
				id = clm.UserID
			}

			if !lim.Check(id) {
				err := errors.New("rate limit exceeded")
				return weberr.NewError(err, "too many requests", http.StatusTooManyRequests)
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
