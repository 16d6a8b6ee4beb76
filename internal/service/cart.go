package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/restaurant/internal/models"
	"github.com/Skotchmaster/restaurant/internal/mykafka"
	"github.com/Skotchmaster/restaurant/internal/repo"
	"github.com/Skotchmaster/restaurant/pkg/cart"
	"github.com/Skotchmaster/restaurant/pkg/logging"
)

type CartService struct {
	Repo   *repo.GormRepo
	Events EventPublisher
}

// CartLine is a cart item as clients see it; ID repeats the item reference.
type CartLine struct {
	ID       string  `json:"id"`
	ItemRef  string  `json:"itemRef"`
	Name     string  `json:"name"`
	Image    string  `json:"image,omitempty"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

type CartView struct {
	ID    uuid.UUID  `json:"id"`
	Items []CartLine `json:"items"`
	Total float64    `json:"total"`
}

type AddItemInput struct {
	ItemRef  string
	Name     string
	Image    string
	Price    float64
	Quantity int
}

func newCartView(c *models.Cart) *CartView {
	view := &CartView{ID: c.ID, Items: make([]CartLine, 0, len(c.Items))}
	items := make([]cart.Item, 0, len(c.Items))
	for _, it := range c.Items {
		view.Items = append(view.Items, CartLine{
			ID:       it.ItemRef,
			ItemRef:  it.ItemRef,
			Name:     it.Name,
			Image:    it.Image,
			Price:    it.Price,
			Quantity: it.Quantity,
		})
		items = append(items, toCartItem(it))
	}
	view.Total = cart.Total(items)
	return view
}

func toCartItem(it models.CartItem) cart.Item {
	return cart.Item{ItemRef: it.ItemRef, Name: it.Name, Image: it.Image, Price: it.Price, Quantity: it.Quantity}
}

func validPrice(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p >= 0
}

func (s *CartService) GetCart(ctx context.Context, userID uuid.UUID) (*CartView, error) {
	c, err := s.Repo.GetCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return newCartView(c), nil
}

func (s *CartService) GetItem(ctx context.Context, userID uuid.UUID, itemRef string) (*CartLine, error) {
	if strings.TrimSpace(itemRef) == "" {
		return nil, invalid("itemRef", "required")
	}
	it, err := s.Repo.GetCartItem(ctx, userID, itemRef)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("cart item %s: %w", itemRef, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load cart item: %w", err)
	}
	return &CartLine{ID: it.ItemRef, ItemRef: it.ItemRef, Name: it.Name, Image: it.Image, Price: it.Price, Quantity: it.Quantity}, nil
}

// AddItem is additive: adding a reference already in the cart increases its
// quantity and keeps the price captured on the first add. The name is
// optional.
func (s *CartService) AddItem(ctx context.Context, userID uuid.UUID, in AddItemInput) (*CartView, error) {
	in.ItemRef = strings.TrimSpace(in.ItemRef)
	switch {
	case in.ItemRef == "":
		return nil, invalid("itemRef", "required")
	case !validPrice(in.Price):
		return nil, invalid("price", "must be a number >= 0")
	case in.Quantity < 0:
		return nil, invalid("quantity", "must be >= 1")
	case in.Quantity > models.MaxItemQuantity:
		return nil, invalid("quantity", "too large")
	}
	if in.Quantity == 0 {
		in.Quantity = 1
	}

	c, err := s.Repo.MergeCartItems(ctx, userID, []models.CartItem{{
		ItemRef:  in.ItemRef,
		Name:     in.Name,
		Image:    in.Image,
		Price:    cart.RoundMoney(in.Price),
		Quantity: in.Quantity,
	}})
	if errors.Is(err, repo.ErrQuantityTooLarge) {
		return nil, invalid("quantity", "too large")
	}
	if err != nil {
		return nil, fmt.Errorf("add cart item: %w", err)
	}
	return newCartView(c), nil
}

// UpdateQuantity sets the quantity of a line. A quantity below one removes
// the line; an unknown reference leaves the cart unchanged.
func (s *CartService) UpdateQuantity(ctx context.Context, userID uuid.UUID, itemRef string, qty int) (*CartView, error) {
	if strings.TrimSpace(itemRef) == "" {
		return nil, invalid("itemId", "required")
	}
	if qty < 1 {
		return s.RemoveItem(ctx, userID, itemRef)
	}
	if qty > models.MaxItemQuantity {
		return nil, invalid("quantity", "too large")
	}

	c, err := s.Repo.SetCartItemQuantity(ctx, userID, itemRef, qty)
	if err != nil {
		return nil, fmt.Errorf("update cart item: %w", err)
	}
	return newCartView(c), nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID uuid.UUID, itemRef string) (*CartView, error) {
	if strings.TrimSpace(itemRef) == "" {
		return nil, invalid("itemId", "required")
	}
	c, err := s.Repo.DeleteCartItem(ctx, userID, itemRef)
	if err != nil {
		return nil, fmt.Errorf("remove cart item: %w", err)
	}
	return newCartView(c), nil
}

func (s *CartService) Clear(ctx context.Context, userID uuid.UUID) (*CartView, error) {
	c, err := s.Repo.ClearCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("clear cart: %w", err)
	}

	publish(ctx, s.Events, mykafka.TopicCartEvents, userID.String(), map[string]any{
		"type":   "cart_cleared",
		"userID": userID.String(),
	})
	return newCartView(c), nil
}

// Sync merges a client-held cart into the stored one by item reference and
// returns the merged cart. Quantities of matching references are summed.
func (s *CartService) Sync(ctx context.Context, userID uuid.UUID, items []cart.Item) (*CartView, error) {
	l := logging.FromContext(ctx).With("svc", "cart.sync")

	for i, it := range items {
		field := fmt.Sprintf("items[%d]", i)
		switch {
		case strings.TrimSpace(it.ItemRef) == "":
			return nil, invalid(field+".itemRef", "required")
		case it.Quantity < 1:
			return nil, invalid(field+".quantity", "must be >= 1")
		case it.Quantity > models.MaxItemQuantity:
			return nil, invalid(field+".quantity", "too large")
		case !validPrice(it.Price):
			return nil, invalid(field+".price", "must be a number >= 0")
		}
	}

	collapsed := cart.Merge(nil, items)
	if len(collapsed) == 0 {
		return s.GetCart(ctx, userID)
	}

	rows := make([]models.CartItem, 0, len(collapsed))
	for _, it := range collapsed {
		rows = append(rows, models.CartItem{
			ItemRef:  it.ItemRef,
			Name:     it.Name,
			Image:    it.Image,
			Price:    cart.RoundMoney(it.Price),
			Quantity: it.Quantity,
		})
	}

	c, err := s.Repo.MergeCartItems(ctx, userID, rows)
	if errors.Is(err, repo.ErrQuantityTooLarge) {
		return nil, invalid("items", "quantity too large")
	}
	if err != nil {
		return nil, fmt.Errorf("merge cart: %w", err)
	}
	view := newCartView(c)

	l.Info("cart_synced", "user_id", userID.String(), "client_items", len(collapsed), "items", len(view.Items))
	publish(ctx, s.Events, mykafka.TopicCartEvents, userID.String(), map[string]any{
		"type":   "cart_synced",
		"userID": userID.String(),
		"items":  len(view.Items),
	})
	return view, nil
}
