package purchases

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumera-social/lumera-backend/internal/ledger"
	"github.com/lumera-social/lumera-backend/pkg/db"
	"github.com/lumera-social/lumera-backend/pkg/db/models"
	"github.com/lumera-social/lumera-backend/pkg/enums"
	"github.com/lumera-social/lumera-backend/pkg/errors"
	"github.com/lumera-social/lumera-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ledgerApplier interface {
	ApplyDeltaTx(ctx context.Context, tx *gorm.DB, input ledger.ApplyDeltaInput) (*models.LedgerEntry, error)
}

// UnlockInput identifies the item a user wants to unlock and its price.
type UnlockInput struct {
	UserID      uuid.UUID
	ItemID      uuid.UUID
	PriceTokens int64
}

// UnlockResult reports the grant and whether this call actually charged the
// account. Repeat unlocks return the existing grant with AlreadyUnlocked set.
type UnlockResult struct {
	Grant           *models.UnlockGrant
	AlreadyUnlocked bool
}

// Service executes atomic, exactly-once content unlocks.
type Service interface {
	Unlock(ctx context.Context, input UnlockInput) (*UnlockResult, error)
	ListGrants(ctx context.Context, userID uuid.UUID) ([]models.UnlockGrant, error)
}

type service struct {
	tx      txRunner
	repo    Repository
	ledger  ledgerApplier
	metrics *metrics.LedgerMetrics
}

// ServiceParams bundles the dependencies for the purchase service.
type ServiceParams struct {
	Tx      txRunner
	Repo    Repository
	Ledger  ledgerApplier
	Metrics *metrics.LedgerMetrics
}

// NewService wires a purchase service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("purchases repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	return &service{
		tx:      params.Tx,
		repo:    params.Repo,
		ledger:  params.Ledger,
		metrics: params.Metrics,
	}, nil
}

// Unlock charges the account and records the grant in one transaction. The
// grant's uniqueness index is the idempotency guard: when two requests race,
// exactly one insert succeeds and the loser returns the winner's grant
// without charging again.
func (s *service) Unlock(ctx context.Context, input UnlockInput) (*UnlockResult, error) {
	if input.UserID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "user id required")
	}
	if input.ItemID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "item id required")
	}
	if input.PriceTokens <= 0 {
		return nil, errors.New(errors.CodeValidation, "price must be positive")
	}

	if existing, err := s.repo.FindGrant(ctx, input.UserID, input.ItemID); err == nil {
		return &UnlockResult{Grant: existing, AlreadyUnlocked: true}, nil
	} else if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find grant: %w", err)
	}

	grant := &models.UnlockGrant{
		UserID:      input.UserID,
		ItemID:      input.ItemID,
		PriceTokens: input.PriceTokens,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreateGrant(ctx, grant); err != nil {
			return err
		}
		_, err := s.ledger.ApplyDeltaTx(ctx, tx, ledger.ApplyDeltaInput{
			UserID: input.UserID,
			Amount: -input.PriceTokens,
			Kind:   enums.LedgerEntryKindPurchase,
		})
		return err
	})
	if err != nil {
		if db.IsUniqueViolation(err, models.UnlockGrantUniqueConstraint) {
			winner, findErr := s.repo.FindGrant(ctx, input.UserID, input.ItemID)
			if findErr != nil {
				return nil, fmt.Errorf("find winning grant: %w", findErr)
			}
			return &UnlockResult{Grant: winner, AlreadyUnlocked: true}, nil
		}
		code := errors.CodeInternal
		if typed := errors.As(err); typed != nil {
			code = typed.Code()
		}
		s.metrics.IncFailure("purchase", string(code))
		return nil, err
	}

	s.metrics.IncOperation("purchase")
	return &UnlockResult{Grant: grant}, nil
}

func (s *service) ListGrants(ctx context.Context, userID uuid.UUID) ([]models.UnlockGrant, error) {
	if userID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "user id required")
	}
	return s.repo.ListGrants(ctx, userID)
}
