package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"
)

var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrUpstream        = errors.New("menu upstream failed")
	ErrNotFound        = errors.New("menu item not found")
)

var categories = []string{
	"bbqs", "best-foods", "breads", "burgers", "chocolates", "desserts", "drinks",
	"fried-chicken", "ice-cream", "pizzas", "porks", "sandwiches", "sausages", "steaks",
}

func Categories() []string {
	return slices.Clone(categories)
}

func KnownCategory(c string) bool {
	return slices.Contains(categories, c)
}

// MenuItem is a dish offered by the menu API. ID is the item reference used
// by carts and orders.
type MenuItem struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Image       string  `json:"image"`
	Price       float64 `json:"price"`
	Rate        float64 `json:"rate"`
	Country     string  `json:"country"`
	Category    string  `json:"category"`
}

type upstreamItem struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Dsc     string  `json:"dsc"`
	Img     string  `json:"img"`
	Price   float64 `json:"price"`
	Rate    float64 `json:"rate"`
	Country string  `json:"country"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (it upstreamItem) menuItem(category string) MenuItem {
	return MenuItem{
		ID:          it.ID,
		Name:        it.Name,
		Description: it.Dsc,
		Image:       it.Img,
		Price:       it.Price,
		Rate:        it.Rate,
		Country:     it.Country,
		Category:    category,
	}
}

func (c *Client) get(ctx context.Context, path string, dst any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, fmt.Errorf("%w: %s returned status %d", ErrUpstream, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: decode %s: %v", ErrUpstream, path, err)
	}
	return resp.StatusCode, nil
}

// FetchItem loads one dish by id from the catalog-wide listing.
func (c *Client) FetchItem(ctx context.Context, id string) (*MenuItem, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrNotFound)
	}

	var raw upstreamItem
	status, err := c.get(ctx, "/all/"+url.PathEscape(id), &raw)
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if raw.ID == "" {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	item := raw.menuItem("")
	return &item, nil
}

func (c *Client) FetchCategory(ctx context.Context, category string) ([]MenuItem, error) {
	if !KnownCategory(category) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}

	var raw []upstreamItem
	if _, err := c.get(ctx, "/"+category, &raw); err != nil {
		return nil, err
	}

	items := make([]MenuItem, 0, len(raw))
	for _, it := range raw {
		if it.ID == "" {
			continue
		}
		items = append(items, it.menuItem(category))
	}
	return items, nil
}
