// Package client is a Go client for the restaurant API. It keeps the cart a
// user builds before signing in and hands it to the server on Login.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/restaurant/pkg/cart"
)

const (
	idempotencyHeader = "Idempotency-Key"
	csrfCookie        = "XSRF-TOKEN"
	csrfHeader        = "X-CSRF-Token"
)

type Client struct {
	baseURL    string
	httpClient *http.Client

	// Cart mirrors the server cart after Login and is the only cart before it.
	Cart *cart.Store

	mu       sync.Mutex
	loggedIn bool
}

func NewClient(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
			Jar:     jar,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		Cart: cart.NewStore(),
	}, nil
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string `json:"message"`
	Field   string `json:"field"`
	Reason  string `json:"reason"`
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("api: status %d: %s: %s", e.Status, e.Field, e.Reason)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type CartView struct {
	ID    string      `json:"id"`
	Items []cart.Item `json:"items"`
	Total float64     `json:"total"`
}

type Session struct {
	User       User      `json:"user"`
	IsAdmin    bool      `json:"isAdmin"`
	AccessExp  time.Time `json:"accessExp"`
	RefreshExp time.Time `json:"refreshExp"`
	Cart       *CartView `json:"cart"`
}

type OrderItem struct {
	ItemRef  string  `json:"itemRef"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

type Order struct {
	ID             string      `json:"id"`
	TotalAmount    float64     `json:"totalAmount"`
	Address        string      `json:"address"`
	PhoneNumber    string      `json:"phoneNumber"`
	PaymentMethod  string      `json:"paymentMethod"`
	DeliveryMethod string      `json:"deliveryMethod"`
	Status         string      `json:"status"`
	PaymentStatus  string      `json:"paymentStatus"`
	CreatedAt      time.Time   `json:"createdAt"`
	Items          []OrderItem `json:"items"`
}

type Checkout struct {
	Address        string
	PhoneNumber    string
	PaymentMethod  string
	DeliveryMethod string
}

func (c *Client) LoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedIn
}

func (c *Client) setLoggedIn(v bool) {
	c.mu.Lock()
	c.loggedIn = v
	c.mu.Unlock()
}

func (c *Client) csrfToken(u *url.URL) string {
	for _, ck := range c.httpClient.Jar.Cookies(u) {
		if ck.Name == csrfCookie {
			return ck.Value
		}
	}
	return ""
}

func (c *Client) do(ctx context.Context, method, path string, body any, header http.Header, out any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if token := c.csrfToken(req.URL); token != "" && method != http.MethodGet {
		req.Header.Set(csrfHeader, token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) Register(ctx context.Context, name, email, password string) (*User, error) {
	var u User
	body := map[string]string{"name": name, "email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/register", body, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Login signs in and sends the local cart along. The local cart is then
// replaced by the merged server cart.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]any{"email": email, "password": password}
	if items := c.Cart.Items(); len(items) > 0 {
		body["items"] = items
	}

	var s Session
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, nil, &s); err != nil {
		return nil, err
	}

	c.setLoggedIn(true)
	if s.Cart != nil {
		c.Cart.Replace(s.Cart.Items)
	}
	return &s, nil
}

// Logout ends the session and drops the local copy of the server cart, so a
// later Login does not merge it a second time.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil); err != nil {
		return err
	}
	c.setLoggedIn(false)
	c.Cart.Clear()
	return nil
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/me", nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) adopt(v *CartView) *CartView {
	c.Cart.Replace(v.Items)
	return v
}

func (c *Client) localView() *CartView {
	return &CartView{Items: c.Cart.Items(), Total: c.Cart.Total()}
}

func (c *Client) AddItem(ctx context.Context, item cart.Item, qty int) (*CartView, error) {
	if qty < 1 {
		qty = 1
	}
	if !c.LoggedIn() {
		c.Cart.AddItem(item, qty)
		return c.localView(), nil
	}

	body := map[string]any{
		"itemRef":  item.ItemRef,
		"name":     item.Name,
		"image":    item.Image,
		"price":    item.Price,
		"quantity": qty,
	}
	var v CartView
	if err := c.do(ctx, http.MethodPost, "/cart", body, nil, &v); err != nil {
		return nil, err
	}
	return c.adopt(&v), nil
}

func (c *Client) UpdateQuantity(ctx context.Context, itemRef string, qty int) (*CartView, error) {
	if !c.LoggedIn() {
		c.Cart.UpdateQuantity(itemRef, qty)
		return c.localView(), nil
	}

	var v CartView
	body := map[string]any{"itemId": itemRef, "quantity": qty}
	if err := c.do(ctx, http.MethodPut, "/cart", body, nil, &v); err != nil {
		return nil, err
	}
	return c.adopt(&v), nil
}

func (c *Client) RemoveItem(ctx context.Context, itemRef string) (*CartView, error) {
	if !c.LoggedIn() {
		c.Cart.RemoveItem(itemRef)
		return c.localView(), nil
	}

	var v CartView
	if err := c.do(ctx, http.MethodDelete, "/cart?itemId="+url.QueryEscape(itemRef), nil, nil, &v); err != nil {
		return nil, err
	}
	return c.adopt(&v), nil
}

func (c *Client) FetchCart(ctx context.Context) (*CartView, error) {
	if !c.LoggedIn() {
		return c.localView(), nil
	}

	var v CartView
	if err := c.do(ctx, http.MethodGet, "/cart", nil, nil, &v); err != nil {
		return nil, err
	}
	return c.adopt(&v), nil
}

func (c *Client) ClearCart(ctx context.Context) error {
	if c.LoggedIn() {
		if err := c.do(ctx, http.MethodDelete, "/cart", nil, nil, nil); err != nil {
			return err
		}
	}
	c.Cart.Clear()
	return nil
}

// PlaceOrder checks out the current cart. One idempotency key is used for the
// whole call, so the single retry after a transport failure cannot create a
// second order.
func (c *Client) PlaceOrder(ctx context.Context, co Checkout) (*Order, error) {
	items := c.Cart.Items()
	lines := make([]OrderItem, 0, len(items))
	for _, it := range items {
		lines = append(lines, OrderItem{ItemRef: it.ItemRef, Name: it.Name, Quantity: it.Quantity, Price: it.Price})
	}

	body := map[string]any{
		"items":          lines,
		"totalAmount":    cart.Total(items),
		"address":        co.Address,
		"phoneNumber":    co.PhoneNumber,
		"paymentMethod":  co.PaymentMethod,
		"deliveryMethod": co.DeliveryMethod,
	}
	header := http.Header{idempotencyHeader: []string{uuid.NewString()}}

	var o Order
	err := c.do(ctx, http.MethodPost, "/orders", body, header, &o)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) || ctx.Err() != nil {
			return nil, err
		}
		if err = c.do(ctx, http.MethodPost, "/orders", body, header, &o); err != nil {
			return nil, err
		}
	}

	c.Cart.Clear()
	return &o, nil
}

func (c *Client) Orders(ctx context.Context, page, size int) ([]Order, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if size > 0 {
		q.Set("size", strconv.Itoa(size))
	}
	path := "/orders"
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}

	var resp struct {
		Orders []Order `json:"orders"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Orders, nil
}
