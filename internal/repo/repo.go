package repo

import (
	"errors"

	"gorm.io/gorm"

	"github.com/Skotchmaster/restaurant/internal/models"
)

var (
	ErrUserAlreadyExist      = errors.New("user already exist")
	ErrTokenExpiredOrRevoked = errors.New("token expired or revoked")
	ErrQuantityTooLarge      = errors.New("quantity too large")
)

type GormRepo struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *GormRepo {
	return &GormRepo{DB: db}
}

func (r *GormRepo) Migrate() error {
	return r.DB.AutoMigrate(models.All()...)
}
