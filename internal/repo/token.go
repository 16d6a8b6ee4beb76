package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/restaurant/internal/models"
)

func (r *GormRepo) AddRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	return r.DB.WithContext(ctx).Create(token).Error
}

func (r *GormRepo) FindRefreshByID(ctx context.Context, jti string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	if err := r.DB.WithContext(ctx).Where("jti = ?", jti).First(&token).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

func refreshExpiredOrRevoked(tx *gorm.DB, jti string, now time.Time) (bool, error) {
	var refresh models.RefreshToken
	if err := tx.Where("jti = ?", jti).First(&refresh).Error; err != nil {
		return false, err
	}
	return refresh.Revoked || refresh.ExpiresAt.Before(now), nil
}

func markAsUsed(tx *gorm.DB, jti string) *gorm.DB {
	return tx.Model(&models.RefreshToken{}).
		Where("jti = ? AND revoked = ?", jti, false).
		Update("revoked", true)
}

// RotateRefreshToken revokes oldJTI and stores newToken atomically. A token
// that is already revoked or expired cannot be rotated.
func (r *GormRepo) RotateRefreshToken(ctx context.Context, oldJTI string, newToken *models.RefreshToken) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		expired, err := refreshExpiredOrRevoked(tx, oldJTI, time.Now())
		if err != nil {
			return err
		}
		if expired {
			return ErrTokenExpiredOrRevoked
		}

		res := markAsUsed(tx, oldJTI)
		if res.Error != nil {
			return res.Error
		}
		// lost a race with a concurrent rotation
		if res.RowsAffected == 0 {
			return ErrTokenExpiredOrRevoked
		}

		return tx.Create(newToken).Error
	})
}

func (r *GormRepo) RevokeRefreshByHash(ctx context.Context, tokenHash string) error {
	return r.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token_hash = ?", tokenHash).
		Update("revoked", true).Error
}
