package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/restaurant/internal/models"
	"github.com/Skotchmaster/restaurant/internal/mykafka"
	"github.com/Skotchmaster/restaurant/internal/repo"
	"github.com/Skotchmaster/restaurant/internal/util"
	"github.com/Skotchmaster/restaurant/pkg/cart"
	"github.com/Skotchmaster/restaurant/pkg/logging"
)

var phonePattern = regexp.MustCompile(`^\+?[\d\s-]{10,}$`)

const totalTolerance = 0.01

type OrderService struct {
	Repo   *repo.GormRepo
	Events EventPublisher
}

// OrderItemInput fields are pointers so a missing field can be told apart
// from a zero value.
type OrderItemInput struct {
	ItemRef  *string
	Name     *string
	Quantity *float64
	Price    *float64
}

type CreateOrderInput struct {
	Items          []OrderItemInput
	TotalAmount    *float64
	Address        string
	PhoneNumber    string
	PaymentMethod  string
	DeliveryMethod string
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func validateItems(in []OrderItemInput) ([]models.OrderItem, float64, error) {
	if len(in) == 0 {
		return nil, 0, invalid("items", "at least one item is required")
	}

	items := make([]models.OrderItem, 0, len(in))
	lines := make([]cart.Item, 0, len(in))
	for i, it := range in {
		field := fmt.Sprintf("items[%d]", i)
		switch {
		case it.ItemRef == nil || strings.TrimSpace(*it.ItemRef) == "":
			return nil, 0, invalid(field+".itemRef", "required")
		case it.Name == nil:
			return nil, 0, invalid(field+".name", "required")
		case it.Quantity == nil || !finite(*it.Quantity):
			return nil, 0, invalid(field+".quantity", "must be a number")
		case *it.Quantity < 1 || *it.Quantity != math.Trunc(*it.Quantity):
			return nil, 0, invalid(field+".quantity", "must be a whole number >= 1")
		case *it.Quantity > models.MaxItemQuantity:
			return nil, 0, invalid(field+".quantity", "too large")
		case it.Price == nil || !finite(*it.Price):
			return nil, 0, invalid(field+".price", "must be a number")
		case *it.Price < 0:
			return nil, 0, invalid(field+".price", "must be >= 0")
		}

		item := models.OrderItem{
			ItemRef:  strings.TrimSpace(*it.ItemRef),
			Name:     *it.Name,
			Quantity: int(*it.Quantity),
			Price:    cart.RoundMoney(*it.Price),
		}
		items = append(items, item)
		lines = append(lines, cart.Item{ItemRef: item.ItemRef, Price: item.Price, Quantity: item.Quantity})
	}
	return items, cart.Total(lines), nil
}

func paymentStatusFor(method string) (models.PaymentStatus, error) {
	switch method {
	case models.PaymentCard:
		return models.PaymentStatusPaid, nil
	case models.PaymentCash:
		return models.PaymentStatusPending, nil
	default:
		return "", invalid("paymentMethod", "must be card or cash")
	}
}

func digits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// validate checks the whole input before anything is written and returns the
// order ready to be stored.
func (in CreateOrderInput) validate(userID uuid.UUID) (*models.Order, error) {
	items, sum, err := validateItems(in.Items)
	if err != nil {
		return nil, err
	}

	if in.TotalAmount == nil || !finite(*in.TotalAmount) {
		return nil, invalid("totalAmount", "must be a number")
	}
	total := cart.RoundMoney(*in.TotalAmount)
	if total < 0 {
		return nil, invalid("totalAmount", "must be >= 0")
	}
	if math.Abs(total-sum) > totalTolerance {
		return nil, invalid("totalAmount", fmt.Sprintf("does not match items total %.2f", sum))
	}

	delivery := strings.ToLower(strings.TrimSpace(in.DeliveryMethod))
	if delivery == "" {
		delivery = models.DeliveryDelivery
	}
	address := strings.TrimSpace(in.Address)
	switch delivery {
	case models.DeliveryDelivery:
		if address == "" {
			return nil, invalid("address", "required for delivery")
		}
	case models.DeliveryPickup:
		address = models.PickupAddress
	default:
		return nil, invalid("deliveryMethod", "must be delivery or pickup")
	}

	phone := strings.TrimSpace(in.PhoneNumber)
	if phone == "" {
		return nil, invalid("phoneNumber", "required")
	}
	if !phonePattern.MatchString(phone) || digits(phone) < 10 {
		return nil, invalid("phoneNumber", "must contain at least 10 digits, spaces or hyphens")
	}

	payment := strings.ToLower(strings.TrimSpace(in.PaymentMethod))
	paymentStatus, err := paymentStatusFor(payment)
	if err != nil {
		return nil, err
	}

	return &models.Order{
		UserID:         userID,
		TotalAmount:    total,
		Address:        address,
		PhoneNumber:    phone,
		PaymentMethod:  payment,
		DeliveryMethod: delivery,
		Status:         models.OrderStatusPending,
		PaymentStatus:  paymentStatus,
		Items:          items,
	}, nil
}

// CreateOrder stores a validated order with its items and empties the user's
// cart in a single transaction.
func (s *OrderService) CreateOrder(ctx context.Context, userID uuid.UUID, in CreateOrderInput) (*models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "order.create")

	order, err := in.validate(userID)
	if err != nil {
		return nil, err
	}

	if err := s.Repo.CreateOrder(ctx, order); err != nil {
		l.Error("create_order_error", "user_id", userID.String(), "error", err)
		return nil, fmt.Errorf("persist order: %w", err)
	}

	l.Info("order_created", "order_id", order.ID.String(), "total", order.TotalAmount, "items", len(order.Items))
	publish(ctx, s.Events, mykafka.TopicOrderEvents, userID.String(), map[string]any{
		"type":          "order_created",
		"userID":        userID.String(),
		"orderID":       order.ID.String(),
		"totalAmount":   order.TotalAmount,
		"paymentMethod": order.PaymentMethod,
	})
	return order, nil
}

// ListOrders returns the session user's orders, newest first. A requested
// user id other than the session's is rejected without reading any order.
func (s *OrderService) ListOrders(ctx context.Context, sessionUserID uuid.UUID, requestedUserID string, page, size int) ([]models.Order, error) {
	requestedUserID = strings.TrimSpace(requestedUserID)
	if requestedUserID != "" && requestedUserID != sessionUserID.String() {
		return nil, fmt.Errorf("orders of %q: %w", requestedUserID, ErrUnauthorized)
	}

	offset, limit := util.Calculate(page, size)
	orders, err := s.Repo.ListOrders(ctx, sessionUserID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (s *OrderService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.Repo.GetOrder(ctx, userID, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}
