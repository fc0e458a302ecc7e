package wallet

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lumera-social/lumera-backend/pkg/db/models"
	"github.com/lumera-social/lumera-backend/pkg/enums"
)

// DepositInput moves tokens from the user's external wallet into their
// account. The credential authorizes the external transfer and is used for
// that single call only.
type DepositInput struct {
	UserID     uuid.UUID
	Amount     int64
	Credential string
}

// WithdrawInput moves tokens from the user's account back to their external
// wallet.
type WithdrawInput struct {
	UserID uuid.UUID
	Amount int64
}

// TransferResult reports the ledger entry and settlement reference of a
// completed deposit or withdrawal.
type TransferResult struct {
	EntryID       uuid.UUID `json:"entry_id"`
	Amount        int64     `json:"amount"`
	Balance       int64     `json:"balance"`
	SettlementRef string    `json:"settlement_ref"`
}

// TransactionDTO is the transport shape of a ledger entry.
type TransactionDTO struct {
	ID            uuid.UUID             `json:"id"`
	Amount        int64                 `json:"amount"`
	Kind          enums.LedgerEntryKind `json:"kind"`
	SettlementRef *string               `json:"settlement_ref,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
}

// UserWalletDTO is the admin projection of a user's external wallet.
type UserWalletDTO struct {
	UserID        uuid.UUID       `json:"user_id"`
	UserName      string          `json:"user_name"`
	WalletAddress string          `json:"wallet_address"`
	Balance       decimal.Decimal `json:"balance"`
}

func transactionFromModel(entry models.LedgerEntry) TransactionDTO {
	return TransactionDTO{
		ID:            entry.ID,
		Amount:        entry.Amount,
		Kind:          entry.Kind,
		SettlementRef: entry.SettlementRef,
		CreatedAt:     entry.CreatedAt,
	}
}
