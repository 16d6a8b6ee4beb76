package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/restaurant/internal/models"
)

func (r *GormRepo) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUserWithCart stores a new user together with an empty cart.
func (r *GormRepo) CreateUserWithCart(ctx context.Context, u *models.User) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", u.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrUserAlreadyExist
		}
		if err := tx.Create(u).Error; err != nil {
			return err
		}
		_, err := ensureCart(tx, u.ID)
		return err
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrUserAlreadyExist
	}
	return err
}

// UpsertOAuthUser resolves an external identity to a user. The identity link
// wins, then a user with the same email gets linked, otherwise a password-less
// user with an empty cart is created.
func (r *GormRepo) UpsertOAuthUser(ctx context.Context, u *models.User) (created bool, err error) {
	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.User
		err := tx.Where("provider = ? AND provider_subject = ?", u.Provider, u.ProviderSubject).First(&existing).Error
		if err == nil {
			*u = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if u.Email != "" {
			err = tx.Where("email = ?", u.Email).First(&existing).Error
			if err == nil {
				if err := tx.Model(&existing).Updates(map[string]any{
					"provider":         u.Provider,
					"provider_subject": u.ProviderSubject,
				}).Error; err != nil {
					return err
				}
				existing.Provider = u.Provider
				existing.ProviderSubject = u.ProviderSubject
				*u = existing
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		if err := tx.Create(u).Error; err != nil {
			return err
		}
		created = true
		_, err = ensureCart(tx, u.ID)
		return err
	})
	return created, err
}
