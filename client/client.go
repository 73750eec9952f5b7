// Package client is a typed HTTP client for the order-taking API. It is what the order
// watcher and other terminals use to sign in, read the menu and submit or update orders.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"go_trial/ordertaking/cart"
	"go_trial/ordertaking/models"
)

const DefaultTimeout = 10 * time.Second

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api: status %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

// WithHTTPClient replaces the traced default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

type Tokens struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

// Login signs in and keeps the access token for later calls.
func (c *Client) Login(ctx context.Context, username, password string) (*Tokens, error) {
	var tokens Tokens
	body := models.LoginRequest{Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, "/token/login/", body, &tokens); err != nil {
		return nil, err
	}
	c.SetToken(tokens.AccessToken)
	return &tokens, nil
}

func (c *Client) ListMenuItems(ctx context.Context) ([]models.MenuItem, error) {
	var items []models.MenuItem
	if err := c.do(ctx, http.MethodGet, "/api/menu-items", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ListOrders returns every order, newest first, with items and products joined.
func (c *Client) ListOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	if err := c.do(ctx, http.MethodGet, "/api/orders", nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error) {
	var order models.Order
	if err := c.do(ctx, http.MethodPost, "/api/orders", req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// Customer is the checkout information that goes with a cart.
type Customer struct {
	Name        string
	PaymentType models.PaymentType
	Seating     string
}

// SubmitCart turns the cart into an order. The cart is cleared only when the server accepts it.
func (c *Client) SubmitCart(ctx context.Context, ct *cart.Cart, customer Customer) (*models.Order, error) {
	if ct.IsEmpty() {
		return nil, errors.New("cart is empty")
	}
	subtotal := ct.Subtotal()
	req := models.CreateOrderRequest{
		CustomerName: customer.Name,
		PaymentType:  customer.PaymentType,
		Items:        ct.Lines(),
		Subtotal:     &subtotal,
	}
	if customer.Seating != "" {
		seating := customer.Seating
		req.Seating = &seating
	}

	order, err := c.CreateOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	ct.Clear()
	return order, nil
}

func (c *Client) UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) (*models.Order, error) {
	var order models.Order
	body := models.UpdateStatusRequest{OrderID: orderID, Status: status}
	if err := c.do(ctx, http.MethodPatch, "/api/orders/status", body, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// ToggleStatus flips an order between PENDING and DELIVERED. The given order is not modified;
// the server's copy is returned.
func (c *Client) ToggleStatus(ctx context.Context, order models.Order) (*models.Order, error) {
	return c.UpdateStatus(ctx, order.ID, order.Status.Toggle())
}

func (c *Client) DeleteOrder(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/orders?id="+url.QueryEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("token", token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var e struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e) == nil {
			apiErr.Message = e.Error
		}
		return apiErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
