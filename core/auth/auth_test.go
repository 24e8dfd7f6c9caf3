package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/multifolks/storefront/api/weberr"
	"github.com/multifolks/storefront/core/claims"
)

const secret = "test-secret"

func signToken(t *testing.T, signingSecret string, subject string) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(signingSecret))
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func runAuth(t *testing.T, req *http.Request) (claims.Claims, error) {
	t.Helper()

	var got claims.Claims
	handler := Authenticate(secret)(func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var err error
		got, err = claims.Get(ctx)
		return err
	})

	err := handler(req.Context(), httptest.NewRecorder(), req)
	return got, err
}

func TestBearerTokenResolvesUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, secret, "user-7"))

	got, err := runAuth(t, req)
	if err != nil {
		t.Fatal(err)
	}
	if got.UserID != "user-7" || got.Guest {
		t.Fatalf("got %+v, expected user-7", got)
	}
}

func TestGuestHeaderResolvesGuest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("X-Guest-ID", "guest_abc")

	got, err := runAuth(t, req)
	if err != nil {
		t.Fatal(err)
	}
	if got.UserID != "guest_abc" || !got.Guest {
		t.Fatalf("got %+v, expected a guest", got)
	}
}

// An invalid token is rejected even when a guest id is attached too:
// the 401 is what tells the client to drop the token and retry.
func TestBadTokenRejectedDespiteGuestHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret", "user-7"))
	req.Header.Set("X-Guest-ID", "guest_abc")

	_, err := runAuth(t, req)
	if err == nil {
		t.Fatal("expected a rejection")
	}
	if _, status, ok := weberr.Response(err); !ok || status != http.StatusUnauthorized {
		t.Fatalf("got %v, expected a 401 response", err)
	}
}

func TestNoIdentityRejected(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/cart", nil)

	_, err := runAuth(t, req)
	if err == nil {
		t.Fatal("expected a rejection")
	}
	if _, status, ok := weberr.Response(err); !ok || status != http.StatusUnauthorized {
		t.Fatalf("got %v, expected a 401 response", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-7",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("Authorization", "Bearer "+signed)

	if _, err := runAuth(t, req); err == nil {
		t.Fatal("expected an expired token to be rejected")
	}
}
