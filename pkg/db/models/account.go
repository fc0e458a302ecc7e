package models

import (
	"time"

	"github.com/google/uuid"
)

// Account holds a user's internal token balance. The balance column is only
// ever mutated through the ledger store's guarded update; the CHECK
// constraint in the schema backs the non-negativity invariant.
type Account struct {
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	Balance       int64     `gorm:"column:balance;not null;default:0"`
	WalletAddress *string   `gorm:"column:wallet_address;type:text"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// HasWallet reports whether the account can reach the settlement network.
func (a *Account) HasWallet() bool {
	return a != nil && a.WalletAddress != nil && *a.WalletAddress != ""
}
