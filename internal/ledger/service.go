package ledger

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumera-social/lumera-backend/pkg/db/models"
	"github.com/lumera-social/lumera-backend/pkg/enums"
	"github.com/lumera-social/lumera-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ApplyDeltaInput captures a single balance mutation and its ledger entry.
type ApplyDeltaInput struct {
	UserID        uuid.UUID
	Amount        int64
	Kind          enums.LedgerEntryKind
	SettlementRef *string
}

// Service owns every balance mutation. All credits and debits flow through
// ApplyDelta so the balance and the entry log can never diverge.
type Service interface {
	ApplyDelta(ctx context.Context, input ApplyDeltaInput) (*models.LedgerEntry, error)
	ApplyDeltaTx(ctx context.Context, tx *gorm.DB, input ApplyDeltaInput) (*models.LedgerEntry, error)
	GetBalance(ctx context.Context, userID uuid.UUID) (int64, error)
	ListEntries(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.LedgerEntry, error)
	SetSettlementRef(ctx context.Context, entryID uuid.UUID, ref string) error
	Reconcile(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	tx   txRunner
	repo Repository
}

// NewService wires a ledger service with the provided transaction runner and repository.
func NewService(tx txRunner, repo Repository) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{tx: tx, repo: repo}, nil
}

func validateDelta(input ApplyDeltaInput) error {
	if input.UserID == uuid.Nil {
		return errors.New(errors.CodeValidation, "user id required")
	}
	if input.Amount == 0 {
		return errors.New(errors.CodeValidation, "amount must be non-zero")
	}
	if !input.Kind.IsValid() {
		return errors.New(errors.CodeValidation, fmt.Sprintf("invalid ledger entry kind %q", input.Kind))
	}

	credit := input.Kind == enums.LedgerEntryKindDeposit || input.Kind == enums.LedgerEntryKindWithdrawReversal
	if credit && input.Amount < 0 {
		return errors.New(errors.CodeValidation, fmt.Sprintf("%s entries must be positive", input.Kind))
	}
	if !credit && input.Amount > 0 {
		return errors.New(errors.CodeValidation, fmt.Sprintf("%s entries must be negative", input.Kind))
	}
	return nil
}

func (s *service) ApplyDelta(ctx context.Context, input ApplyDeltaInput) (*models.LedgerEntry, error) {
	var entry *models.LedgerEntry
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		entry, txErr = s.ApplyDeltaTx(ctx, tx, input)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ApplyDeltaTx performs the mutation inside an existing transaction so that
// callers can bundle it with their own writes.
func (s *service) ApplyDeltaTx(ctx context.Context, tx *gorm.DB, input ApplyDeltaInput) (*models.LedgerEntry, error) {
	if err := validateDelta(input); err != nil {
		return nil, err
	}

	repo := s.repo.WithTx(tx)

	affected, err := repo.AdjustBalance(ctx, input.UserID, input.Amount)
	if err != nil {
		return nil, fmt.Errorf("adjust balance: %w", err)
	}
	if affected == 0 {
		if _, findErr := repo.FindAccount(ctx, input.UserID); findErr != nil {
			if stderrors.Is(findErr, gorm.ErrRecordNotFound) {
				return nil, errors.New(errors.CodeNotFound, "account not found")
			}
			return nil, fmt.Errorf("find account: %w", findErr)
		}
		return nil, errors.New(errors.CodeInsufficientBalance, "insufficient balance")
	}

	entry := &models.LedgerEntry{
		UserID:        input.UserID,
		Amount:        input.Amount,
		Kind:          input.Kind,
		SettlementRef: input.SettlementRef,
	}
	if err := repo.CreateEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("create ledger entry: %w", err)
	}
	return entry, nil
}

func (s *service) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, errors.New(errors.CodeValidation, "user id required")
	}

	account, err := s.repo.FindAccount(ctx, userID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return 0, errors.New(errors.CodeNotFound, "account not found")
		}
		return 0, fmt.Errorf("find account: %w", err)
	}
	return account.Balance, nil
}

func (s *service) ListEntries(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.LedgerEntry, error) {
	if userID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "user id required")
	}
	return s.repo.ListEntries(ctx, userID, limit, offset)
}

func (s *service) SetSettlementRef(ctx context.Context, entryID uuid.UUID, ref string) error {
	if entryID == uuid.Nil {
		return errors.New(errors.CodeValidation, "entry id required")
	}
	if ref == "" {
		return errors.New(errors.CodeValidation, "settlement ref required")
	}
	return s.repo.SetEntrySettlementRef(ctx, entryID, ref)
}

// Reconcile verifies that the stored balance equals the sum of all ledger
// entries for the account.
func (s *service) Reconcile(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return errors.New(errors.CodeValidation, "user id required")
	}

	account, err := s.repo.FindAccount(ctx, userID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New(errors.CodeNotFound, "account not found")
		}
		return fmt.Errorf("find account: %w", err)
	}

	sum, err := s.repo.SumEntries(ctx, userID)
	if err != nil {
		return fmt.Errorf("sum entries: %w", err)
	}
	if sum != account.Balance {
		return errors.New(errors.CodeInconsistent, fmt.Sprintf("balance %d does not match entry sum %d", account.Balance, sum))
	}
	return nil
}
