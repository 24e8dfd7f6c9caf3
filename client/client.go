// Package client embeds the storefront cart engine: a typed HTTP
// client for the cart API, the client-side cache of server state and
// the optimistic mutation coordinator built on top of both.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/multifolks/storefront/core/cart"
	"github.com/multifolks/storefront/random"
)

// CredentialStore persists the caller's identity across sessions: the
// bearer token when logged in and the generated guest id otherwise.
type CredentialStore interface {
	Token() string
	SetToken(token string)
	GuestID() string
	SetGuestID(id string)
}

// MemoryCredentials is the in-memory CredentialStore, used by tests
// and short-lived tools.
type MemoryCredentials struct {
	mu      sync.Mutex
	token   string
	guestID string
}

func (m *MemoryCredentials) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

func (m *MemoryCredentials) SetToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
}

func (m *MemoryCredentials) GuestID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.guestID
}

func (m *MemoryCredentials) SetGuestID(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guestID = id
}

// APIError is a non-2xx answer from the server, carrying the message
// of its {"error": ...} body.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	base  string
	http  *http.Client
	creds CredentialStore

	mu sync.Mutex
}

func New(base string, creds CredentialStore) *Client {
	return &Client{
		base:  base,
		http:  &http.Client{Timeout: 30 * time.Second},
		creds: creds,
	}
}

// guestID returns the persisted guest identity, creating it on first
// use. Once stored it is never regenerated.
func (c *Client) guestID() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id := c.creds.GuestID(); id != "" {
		return id
	}

	id := "guest_" + random.String(16)
	c.creds.SetGuestID(id)
	return id
}

// do issues one request. When a bearer token is rejected with a 401,
// the token is dropped and the call retried exactly once under the
// guest identity; a second 401 is final.
func (c *Client) do(ctx context.Context, method string, path string, body interface{}, out interface{}) error {
	var encoded []byte
	if body != nil {
		var err error
		if encoded, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
	}

	token := c.creds.Token()

	res, err := c.send(ctx, method, path, encoded, token)
	if err != nil {
		return err
	}

	if res.StatusCode == http.StatusUnauthorized && token != "" {
		drain(res)
		c.creds.SetToken("")

		if res, err = c.send(ctx, method, path, encoded, ""); err != nil {
			return err
		}
	}
	defer drain(res)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return decodeError(res)
	}

	if out == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method string, path string, body []byte, token string) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else {
		req.Header.Set("X-Guest-ID", c.guestID())
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return res, nil
}

func decodeError(res *http.Response) error {
	apiErr := &APIError{StatusCode: res.StatusCode}

	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
	} else {
		apiErr.Message = http.StatusText(res.StatusCode)
	}

	return apiErr
}

func drain(res *http.Response) {
	io.Copy(io.Discard, res.Body)
	res.Body.Close()
}

func (c *Client) FetchCart(ctx context.Context) (*cart.Payload, error) {
	var p cart.Payload
	if err := c.do(ctx, http.MethodGet, "/cart", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) AddItem(ctx context.Context, in cart.ItemNew) (*cart.Payload, error) {
	var p cart.Payload
	if err := c.do(ctx, http.MethodPut, "/cart/items", in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) UpdateQuantity(ctx context.Context, cartID int64, quantity int) (*cart.Payload, error) {
	var p cart.Payload
	path := "/cart/items/" + strconv.FormatInt(cartID, 10) + "/quantity"
	if err := c.do(ctx, http.MethodPut, path, cart.QuantityUp{Quantity: quantity}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) UpdateLens(ctx context.Context, cartID int64, in cart.LensUp) (*cart.Payload, error) {
	var p cart.Payload
	path := "/cart/items/" + strconv.FormatInt(cartID, 10) + "/lens"
	if err := c.do(ctx, http.MethodPut, path, in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) UpdateShipping(ctx context.Context, methodID string) (*cart.Payload, error) {
	var p cart.Payload
	if err := c.do(ctx, http.MethodPut, "/cart/shipping", cart.ShippingUp{MethodID: methodID}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) ApplyCoupon(ctx context.Context, code string) (*cart.Payload, error) {
	var p cart.Payload
	if err := c.do(ctx, http.MethodPost, "/cart/coupon", cart.CouponApply{Code: code}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) RemoveCoupon(ctx context.Context) (*cart.Payload, error) {
	var p cart.Payload
	if err := c.do(ctx, http.MethodDelete, "/cart/coupon", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) DeleteItem(ctx context.Context, cartID int64) (*cart.Payload, error) {
	var p cart.Payload
	path := "/cart/items/" + strconv.FormatInt(cartID, 10)
	if err := c.do(ctx, http.MethodDelete, path, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) ClearCart(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/cart", nil, nil)
}
