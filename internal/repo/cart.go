package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/restaurant/internal/models"
)

// ensureCart creates the user's cart if it does not exist yet and returns it.
// Concurrent creators converge on the same row through the unique user_id index.
func ensureCart(tx *gorm.DB, userID uuid.UUID) (*models.Cart, error) {
	cart := models.Cart{UserID: userID}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&cart).Error; err != nil {
		return nil, err
	}

	var out models.Cart
	if err := tx.Where("user_id = ?", userID).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func lockCart(tx *gorm.DB, userID uuid.UUID) (*models.Cart, error) {
	if _, err := ensureCart(tx, userID); err != nil {
		return nil, err
	}

	var cart models.Cart
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

func loadItems(tx *gorm.DB, cart *models.Cart) error {
	cart.Items = nil
	return tx.Where("cart_id = ?", cart.ID).
		Order("created_at ASC, item_ref ASC").
		Find(&cart.Items).Error
}

// withCart runs fn while holding the user's cart row lock and returns the
// cart as it is after fn.
func (r *GormRepo) withCart(ctx context.Context, userID uuid.UUID, fn func(tx *gorm.DB, cart *models.Cart) error) (*models.Cart, error) {
	var cart *models.Cart
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		cart, err = lockCart(tx, userID)
		if err != nil {
			return err
		}
		if fn != nil {
			if err := fn(tx, cart); err != nil {
				return err
			}
		}
		return loadItems(tx, cart)
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

func (r *GormRepo) GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	return r.withCart(ctx, userID, nil)
}

func (r *GormRepo) GetCartItem(ctx context.Context, userID uuid.UUID, itemRef string) (*models.CartItem, error) {
	var item models.CartItem
	err := r.DB.WithContext(ctx).
		Joins("JOIN carts ON carts.id = cart_items.cart_id").
		Where("carts.user_id = ? AND cart_items.item_ref = ?", userID, itemRef).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// checkMergedQuantities fails with ErrQuantityTooLarge when adding items to
// the stored lines would push one past models.MaxItemQuantity.
func checkMergedQuantities(tx *gorm.DB, cartID uuid.UUID, items []models.CartItem) error {
	refs := make([]string, 0, len(items))
	for _, it := range items {
		refs = append(refs, it.ItemRef)
	}

	var stored []models.CartItem
	if err := tx.Select("item_ref", "quantity").
		Where("cart_id = ? AND item_ref IN ?", cartID, refs).
		Find(&stored).Error; err != nil {
		return err
	}
	have := make(map[string]int, len(stored))
	for _, it := range stored {
		have[it.ItemRef] = it.Quantity
	}

	for _, it := range items {
		if int64(have[it.ItemRef])+int64(it.Quantity) > models.MaxItemQuantity {
			return ErrQuantityTooLarge
		}
	}
	return nil
}

// MergeCartItems adds the quantities of items to the user's cart in one
// statement keyed by (cart_id, item_ref). Existing rows keep their price and
// name snapshot. items must not contain the same ItemRef twice.
func (r *GormRepo) MergeCartItems(ctx context.Context, userID uuid.UUID, items []models.CartItem) (*models.Cart, error) {
	return r.withCart(ctx, userID, func(tx *gorm.DB, cart *models.Cart) error {
		if len(items) == 0 {
			return nil
		}
		if err := checkMergedQuantities(tx, cart.ID, items); err != nil {
			return err
		}
		rows := make([]models.CartItem, len(items))
		for i, it := range items {
			it.ID = uuid.Nil
			it.CartID = cart.ID
			rows[i] = it
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "cart_id"}, {Name: "item_ref"}},
			DoUpdates: clause.Assignments(map[string]any{
				"quantity": gorm.Expr("cart_items.quantity + excluded.quantity"),
			}),
		}).Create(&rows).Error
	})
}

func (r *GormRepo) SetCartItemQuantity(ctx context.Context, userID uuid.UUID, itemRef string, qty int) (*models.Cart, error) {
	return r.withCart(ctx, userID, func(tx *gorm.DB, cart *models.Cart) error {
		return tx.Model(&models.CartItem{}).
			Where("cart_id = ? AND item_ref = ?", cart.ID, itemRef).
			Update("quantity", qty).Error
	})
}

func (r *GormRepo) DeleteCartItem(ctx context.Context, userID uuid.UUID, itemRef string) (*models.Cart, error) {
	return r.withCart(ctx, userID, func(tx *gorm.DB, cart *models.Cart) error {
		return tx.Where("cart_id = ? AND item_ref = ?", cart.ID, itemRef).
			Delete(&models.CartItem{}).Error
	})
}

func (r *GormRepo) ClearCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	return r.withCart(ctx, userID, func(tx *gorm.DB, cart *models.Cart) error {
		return tx.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error
	})
}
