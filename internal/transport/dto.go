// Package transport holds the JSON request and response bodies of the HTTP API.
package transport

import (
	"strings"
	"time"

	"github.com/Skotchmaster/restaurant/internal/models"
	"github.com/Skotchmaster/restaurant/internal/service"
	"github.com/Skotchmaster/restaurant/pkg/cart"
)

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest may carry the cart a client collected before signing in.
type LoginRequest struct {
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Items    []cart.Item `json:"items,omitempty"`
}

type SessionResponse struct {
	User       *models.User      `json:"user"`
	IsAdmin    bool              `json:"isAdmin"`
	AccessExp  time.Time         `json:"accessExp"`
	RefreshExp time.Time         `json:"refreshExp"`
	Cart       *service.CartView `json:"cart,omitempty"`
}

func NewSessionResponse(res *service.LoginResult, c *service.CartView) SessionResponse {
	return SessionResponse{
		User:       res.User,
		IsAdmin:    res.IsAdmin,
		AccessExp:  res.AccessExp,
		RefreshExp: res.RefreshExp,
		Cart:       c,
	}
}

// AddItemRequest accepts the catalog id as either itemRef or id, and the
// quantity as either quantity or qty.
type AddItemRequest struct {
	ItemRef  string   `json:"itemRef"`
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Image    string   `json:"image"`
	Price    *float64 `json:"price"`
	Quantity *int     `json:"quantity"`
	Qty      *int     `json:"qty"`
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func (r AddItemRequest) Input() (service.AddItemInput, error) {
	if r.Price == nil {
		return service.AddItemInput{}, &service.FieldError{Field: "price", Reason: "required"}
	}
	in := service.AddItemInput{
		ItemRef: firstNonEmpty(r.ItemRef, r.ID),
		Name:    r.Name,
		Image:   r.Image,
		Price:   *r.Price,
	}
	switch {
	case r.Quantity != nil:
		in.Quantity = *r.Quantity
	case r.Qty != nil:
		in.Quantity = *r.Qty
	}
	return in, nil
}

type UpdateItemRequest struct {
	ItemID   string `json:"itemId"`
	ItemRef  string `json:"itemRef"`
	Quantity *int   `json:"quantity"`
}

func (r UpdateItemRequest) Ref() string {
	return firstNonEmpty(r.ItemID, r.ItemRef)
}

type SyncRequest struct {
	Items []cart.Item `json:"items"`
}

// CreateOrderItem keeps every field a pointer so missing values are reported
// per field instead of being read as zero.
type CreateOrderItem struct {
	ItemRef  *string  `json:"itemRef"`
	RecipeID *string  `json:"recipeId"`
	ID       *string  `json:"id"`
	Name     *string  `json:"name"`
	Quantity *float64 `json:"quantity"`
	Price    *float64 `json:"price"`
}

func (i CreateOrderItem) ref() *string {
	for _, p := range []*string{i.ItemRef, i.RecipeID, i.ID} {
		if p != nil {
			return p
		}
	}
	return nil
}

type CreateOrderRequest struct {
	Items          []CreateOrderItem `json:"items"`
	TotalAmount    *float64          `json:"totalAmount"`
	Address        string            `json:"address"`
	PhoneNumber    string            `json:"phoneNumber"`
	PaymentMethod  string            `json:"paymentMethod"`
	DeliveryMethod string            `json:"deliveryMethod"`
}

func (r CreateOrderRequest) Input() service.CreateOrderInput {
	items := make([]service.OrderItemInput, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, service.OrderItemInput{
			ItemRef:  it.ref(),
			Name:     it.Name,
			Quantity: it.Quantity,
			Price:    it.Price,
		})
	}
	return service.CreateOrderInput{
		Items:          items,
		TotalAmount:    r.TotalAmount,
		Address:        r.Address,
		PhoneNumber:    r.PhoneNumber,
		PaymentMethod:  r.PaymentMethod,
		DeliveryMethod: r.DeliveryMethod,
	}
}

type ValidationError struct {
	Error  string `json:"error"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type OrdersResponse struct {
	Orders []models.Order `json:"orders"`
	Page   int            `json:"page"`
	Size   int            `json:"size"`
}
