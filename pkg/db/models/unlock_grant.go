package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UnlockGrantUniqueConstraint names the (user_id, item_id) uniqueness index
// so callers can recognize the duplicate-key violation.
const UnlockGrantUniqueConstraint = "idx_unlock_grants_user_item"

// UnlockGrant records that a user paid for a priced content item. At most one
// grant exists per (user, item); the unique index is what makes concurrent
// purchases settle to a single debit.
type UnlockGrant struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID      uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_unlock_grants_user_item"`
	ItemID      uuid.UUID `gorm:"column:item_id;type:uuid;not null;uniqueIndex:idx_unlock_grants_user_item"`
	PriceTokens int64     `gorm:"column:price_tokens;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (g *UnlockGrant) BeforeCreate(*gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}
