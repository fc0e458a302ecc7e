package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumera-social/lumera-backend/pkg/enums"
)

// LedgerEntry records an immutable balance-affecting event. Amount is signed:
// credits are positive, debits negative. Entries are never updated or deleted
// except for the one-shot settlement_ref fill on a pending withdrawal.
type LedgerEntry struct {
	ID            uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	UserID        uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	Amount        int64                 `gorm:"column:amount;not null"`
	Kind          enums.LedgerEntryKind `gorm:"column:kind;type:text;not null"`
	SettlementRef *string               `gorm:"column:settlement_ref;type:text"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (e *LedgerEntry) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
