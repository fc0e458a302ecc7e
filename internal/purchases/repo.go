package purchases

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumera-social/lumera-backend/pkg/db/models"
)

// Repository manages persistence for unlock grants.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateGrant(ctx context.Context, grant *models.UnlockGrant) error
	FindGrant(ctx context.Context, userID, itemID uuid.UUID) (*models.UnlockGrant, error)
	ListGrants(ctx context.Context, userID uuid.UUID) ([]models.UnlockGrant, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an unlock grant repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateGrant(ctx context.Context, grant *models.UnlockGrant) error {
	return r.db.WithContext(ctx).Create(grant).Error
}

func (r *repository) FindGrant(ctx context.Context, userID, itemID uuid.UUID) (*models.UnlockGrant, error) {
	var grant models.UnlockGrant
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND item_id = ?", userID, itemID).
		First(&grant).Error; err != nil {
		return nil, err
	}
	return &grant, nil
}

func (r *repository) ListGrants(ctx context.Context, userID uuid.UUID) ([]models.UnlockGrant, error) {
	var grants []models.UnlockGrant
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&grants).Error; err != nil {
		return nil, err
	}
	return grants, nil
}
