package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumera-social/lumera-backend/pkg/db/models"
)

// WalletAccount is the admin projection of an account joined with its owner.
type WalletAccount struct {
	UserID        uuid.UUID `gorm:"column:user_id"`
	UserName      string    `gorm:"column:user_name"`
	WalletAddress string    `gorm:"column:wallet_address"`
}

// Repository manages persistence for accounts and ledger entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateAccount(ctx context.Context, account *models.Account) error
	FindAccount(ctx context.Context, userID uuid.UUID) (*models.Account, error)
	AdjustBalance(ctx context.Context, userID uuid.UUID, delta int64) (int64, error)
	UpdateWalletAddress(ctx context.Context, userID uuid.UUID, address string) (int64, error)
	ListWalletAccounts(ctx context.Context) ([]WalletAccount, error)
	CreateEntry(ctx context.Context, entry *models.LedgerEntry) error
	ListEntries(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.LedgerEntry, error)
	SumEntries(ctx context.Context, userID uuid.UUID) (int64, error)
	SetEntrySettlementRef(ctx context.Context, entryID uuid.UUID, ref string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateAccount(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *repository) FindAccount(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// AdjustBalance applies a signed delta to the account balance. The WHERE
// clause refuses the update when the balance would go negative, so callers
// must distinguish a missing account from an insufficient balance when zero
// rows are affected.
func (r *repository) AdjustBalance(ctx context.Context, userID uuid.UUID, delta int64) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("user_id = ? AND balance + ? >= 0", userID, delta).
		Update("balance", gorm.Expr("balance + ?", delta))
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repository) UpdateWalletAddress(ctx context.Context, userID uuid.UUID, address string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("user_id = ?", userID).
		Update("wallet_address", address)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repository) ListWalletAccounts(ctx context.Context) ([]WalletAccount, error) {
	var rows []WalletAccount
	if err := r.db.WithContext(ctx).
		Table("accounts").
		Select("accounts.user_id, users.user_name, accounts.wallet_address").
		Joins("JOIN users ON users.id = accounts.user_id").
		Where("accounts.wallet_address IS NOT NULL AND accounts.wallet_address <> ''").
		Order("users.user_name ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CreateEntry(ctx context.Context, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListEntries(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) SumEntries(ctx context.Context, userID uuid.UUID) (int64, error) {
	var sum int64
	if err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error; err != nil {
		return 0, err
	}
	return sum, nil
}

// SetEntrySettlementRef fills the settlement reference of a pending entry.
// Entries are otherwise immutable, so the update only touches rows whose
// reference is still unset; a repeat call is a no-op.
func (r *repository) SetEntrySettlementRef(ctx context.Context, entryID uuid.UUID, ref string) error {
	return r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("id = ? AND settlement_ref IS NULL", entryID).
		Update("settlement_ref", ref).Error
}
