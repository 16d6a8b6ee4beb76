package models

import (
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
)

const (
	PaymentCard = "card"
	PaymentCash = "cash"

	DeliveryDelivery = "delivery"
	DeliveryPickup   = "pickup"

	PickupAddress = "Pickup"
)

// MaxItemQuantity bounds the quantity of a single cart or order line.
const MaxItemQuantity = math.MaxInt32

type User struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"                         json:"id"`
	Name            string    `gorm:"not null"                                     json:"name"`
	Email           string    `gorm:"uniqueIndex;not null"                         json:"email"`
	PasswordHash    *string   `                                                    json:"-"`
	Role            string    `gorm:"not null"                                     json:"role"`
	Provider        string    `gorm:"index:idx_user_identity;not null"             json:"provider,omitempty"`
	ProviderSubject string    `gorm:"index:idx_user_identity;not null"             json:"-"`
	CreatedAt       time.Time `                                                    json:"createdAt"`
}

type RefreshToken struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"          json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null"      json:"userId"`
	JTI       string    `gorm:"uniqueIndex;not null"          json:"jti"`
	TokenHash string    `gorm:"index;not null"                json:"-"`
	ExpiresAt time.Time `gorm:"not null"                      json:"expiresAt"`
	Revoked   bool      `gorm:"not null;default:false"        json:"revoked"`
}

type Cart struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"            json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null" json:"userId"`
	Items     []CartItem `gorm:"foreignKey:CartID"               json:"items"`
	CreatedAt time.Time  `                                       json:"createdAt"`
	UpdatedAt time.Time  `                                       json:"updatedAt"`
}

// CartItem holds the price and name captured when the item was first added.
type CartItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"                             json:"-"`
	CartID    uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_cart_item_ref;not null" json:"-"`
	ItemRef   string    `gorm:"uniqueIndex:idx_cart_item_ref;not null"           json:"itemRef"`
	Name      string    `gorm:"not null"                                         json:"name"`
	Image     string    `                                                        json:"image,omitempty"`
	Price     float64   `gorm:"not null"                                         json:"price"`
	Quantity  int       `gorm:"not null;check:quantity > 0"                      json:"quantity"`
	CreatedAt time.Time `                                                        json:"-"`
}

type Order struct {
	ID             uuid.UUID     `gorm:"type:uuid;primaryKey"           json:"id"`
	UserID         uuid.UUID     `gorm:"type:uuid;index;not null"       json:"userId"`
	TotalAmount    float64       `gorm:"not null"                       json:"totalAmount"`
	Address        string        `gorm:"not null"                       json:"address"`
	PhoneNumber    string        `gorm:"not null"                       json:"phoneNumber"`
	PaymentMethod  string        `gorm:"not null"                       json:"paymentMethod"`
	DeliveryMethod string        `gorm:"not null"                       json:"deliveryMethod"`
	Status         OrderStatus   `gorm:"not null"                       json:"status"`
	PaymentStatus  PaymentStatus `gorm:"not null"                       json:"paymentStatus"`
	CreatedAt      time.Time     `gorm:"index"                          json:"createdAt"`
	Items          []OrderItem   `gorm:"foreignKey:OrderID"             json:"items"`
}

type OrderItem struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"        json:"id"`
	OrderID  uuid.UUID `gorm:"type:uuid;index;not null"    json:"orderId"`
	ItemRef  string    `gorm:"not null"                    json:"itemRef"`
	Name     string    `gorm:"not null"                    json:"name"`
	Quantity int       `gorm:"not null;check:quantity > 0" json:"quantity"`
	Price    float64   `gorm:"not null"                    json:"price"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (t *RefreshToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (c *CartItem) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

func (o *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

func (User) TableName() string         { return "users" }
func (RefreshToken) TableName() string { return "refresh_tokens" }
func (Cart) TableName() string         { return "carts" }
func (CartItem) TableName() string     { return "cart_items" }
func (Order) TableName() string        { return "orders" }
func (OrderItem) TableName() string    { return "order_items" }

func All() []any {
	return []any{&User{}, &RefreshToken{}, &Cart{}, &CartItem{}, &Order{}, &OrderItem{}}
}
