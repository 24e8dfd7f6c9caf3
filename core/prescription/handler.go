package prescription

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/multifolks/storefront/api/web"
	"github.com/multifolks/storefront/api/weberr"
	"github.com/multifolks/storefront/core/claims"
	"github.com/multifolks/storefront/validate"
)

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		ps, err := FetchAll(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("listing prescriptions of user[%s]: %w", clm.UserID, err)
		}

		return web.Respond(ctx, w, ps, http.StatusOK)
	}
}

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		var in New
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding prescription: %w", err))
		}
		if err := validate.Check(in); err != nil {
			return weberr.Unprocessable(err)
		}

		if in.Name == "" {
			in.Name = "My Prescription"
		}

		now := time.Now().UTC()
		p := Prescription{
			ID:        validate.GenerateID(),
			UserID:    clm.UserID,
			Name:      in.Name,
			Data:      in.Data,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := Create(ctx, db, p); err != nil {
			return fmt.Errorf("creating prescription: %w", err)
		}

		return web.Respond(ctx, w, p, http.StatusCreated)
	}
}

func HandleAssociate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(err)
		}

		var in CartAssoc
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding association: %w", err))
		}
		if err := validate.Check(in); err != nil {
			return weberr.Unprocessable(err)
		}

		err = Associate(ctx, db, clm.UserID, id, in.CartID)
		switch {
		case errors.Is(err, ErrNotFound):
			return weberr.NotFound(err)
		case errors.Is(err, ErrAlreadyAssociated):
			return weberr.Unprocessable(err)
		case err != nil:
			return fmt.Errorf("associating prescription[%s]: %w", id, err)
		}

		p, err := Fetch(ctx, db, clm.UserID, id)
		if err != nil {
			return fmt.Errorf("fetching prescription[%s]: %w", id, err)
		}

		return web.Respond(ctx, w, p, http.StatusOK)
	}
}
