package claims

import (
	"context"
	"errors"
)

// Claims is the request identity: either an account holder identified
// by a verified bearer token, or a guest identified by the id the
// client generated for itself.
type Claims struct {
	UserID string
	Guest  bool
}

type ctxKey int

const claimsKey ctxKey = 1

func Set(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func Get(ctx context.Context) (Claims, error) {
	v, ok := ctx.Value(claimsKey).(Claims)
	if !ok {
		return Claims{}, errors.New("claim value missing from context")
	}
	return v, nil
}

func IsGuest(ctx context.Context) bool {
	c, err := Get(ctx)
	if err != nil {
		return false
	}
	return c.Guest
}
