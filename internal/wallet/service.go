package wallet

import (
	"context"
	stderrors "errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lumera-social/lumera-backend/internal/chain"
	"github.com/lumera-social/lumera-backend/internal/ledger"
	"github.com/lumera-social/lumera-backend/pkg/config"
	"github.com/lumera-social/lumera-backend/pkg/db/models"
	"github.com/lumera-social/lumera-backend/pkg/enums"
	"github.com/lumera-social/lumera-backend/pkg/errors"
	"github.com/lumera-social/lumera-backend/pkg/logger"
	"github.com/lumera-social/lumera-backend/pkg/metrics"
)

var walletAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Service bridges accounts and the external settlement network.
type Service interface {
	Deposit(ctx context.Context, input DepositInput) (*TransferResult, error)
	Withdraw(ctx context.Context, input WithdrawInput) (*TransferResult, error)
	InternalBalance(ctx context.Context, userID uuid.UUID) (int64, error)
	ExternalBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	OrganizationBalance(ctx context.Context) (decimal.Decimal, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]TransactionDTO, error)
	SetWalletAddress(ctx context.Context, userID uuid.UUID, address string) error
	ListUserWallets(ctx context.Context) ([]UserWalletDTO, error)
}

type service struct {
	ledger   ledger.Service
	accounts ledger.Repository
	gateway  chain.Gateway
	chainCfg config.ChainConfig
	log      *logger.Logger
	metrics  *metrics.LedgerMetrics
}

// ServiceParams bundles the dependencies for the wallet service.
type ServiceParams struct {
	Ledger   ledger.Service
	Accounts ledger.Repository
	Gateway  chain.Gateway
	ChainCfg config.ChainConfig
	Logger   *logger.Logger
	Metrics  *metrics.LedgerMetrics
}

// NewService wires a wallet service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Accounts == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("settlement gateway required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		ledger:   params.Ledger,
		accounts: params.Accounts,
		gateway:  params.Gateway,
		chainCfg: params.ChainCfg,
		log:      params.Logger,
		metrics:  params.Metrics,
	}, nil
}

// Deposit transfers tokens from the user's external wallet to the
// organization wallet, then credits the account. The settlement happens
// first, so a credit failure leaves an orphaned settlement that is logged
// and counted for manual follow-up.
func (s *service) Deposit(ctx context.Context, input DepositInput) (*TransferResult, error) {
	if input.Amount <= 0 {
		return nil, errors.New(errors.CodeValidation, "deposit amount must be positive")
	}
	if input.Credential == "" {
		return nil, errors.New(errors.CodeValidation, "wallet credential required")
	}

	account, err := s.findAccountWithWallet(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	ref, err := s.gateway.Transfer(ctx, chain.TransferRequest{
		FromAddress: *account.WalletAddress,
		Credential:  input.Credential,
		ToAddress:   s.chainCfg.OrgAddress,
		Amount:      input.Amount,
	})
	s.metrics.ObserveSettlement("transfer", time.Since(start))
	if err != nil {
		s.incFailure("deposit", err)
		return nil, err
	}

	entry, err := s.ledger.ApplyDelta(ctx, ledger.ApplyDeltaInput{
		UserID:        input.UserID,
		Amount:        input.Amount,
		Kind:          enums.LedgerEntryKindDeposit,
		SettlementRef: &ref,
	})
	if err != nil {
		// Tokens already moved on the network but the account was not
		// credited. Operators reconcile these by settlement reference.
		logCtx := s.log.WithSettlementRef(ctx, ref)
		logCtx = s.log.WithFields(logCtx, map[string]any{
			"user_id": input.UserID.String(),
			"amount":  input.Amount,
		})
		s.log.Error(logCtx, "settlement.orphaned", err)
		s.metrics.IncOrphanedSettlement()
		s.incFailure("deposit", err)
		return nil, errors.Wrap(errors.CodeInconsistent, err, "deposit settled but account was not credited")
	}

	s.metrics.IncOperation("deposit")
	balance, err := s.ledger.GetBalance(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	return &TransferResult{
		EntryID:       entry.ID,
		Amount:        entry.Amount,
		Balance:       balance,
		SettlementRef: ref,
	}, nil
}

// Withdraw debits the account first as a reservation, then transfers tokens
// from the organization wallet to the user's external wallet. A failed
// transfer triggers a compensating credit so the two legs net to zero.
func (s *service) Withdraw(ctx context.Context, input WithdrawInput) (*TransferResult, error) {
	if input.Amount <= 0 {
		return nil, errors.New(errors.CodeValidation, "withdraw amount must be positive")
	}

	account, err := s.findAccountWithWallet(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	entry, err := s.ledger.ApplyDelta(ctx, ledger.ApplyDeltaInput{
		UserID: input.UserID,
		Amount: -input.Amount,
		Kind:   enums.LedgerEntryKindWithdraw,
	})
	if err != nil {
		s.incFailure("withdraw", err)
		return nil, err
	}

	start := time.Now()
	ref, transferErr := s.gateway.Transfer(ctx, chain.TransferRequest{
		FromAddress: s.chainCfg.OrgAddress,
		Credential:  s.chainCfg.OrgPrivateKey,
		ToAddress:   *account.WalletAddress,
		Amount:      input.Amount,
	})
	s.metrics.ObserveSettlement("transfer", time.Since(start))
	if transferErr != nil {
		return nil, s.compensateWithdraw(ctx, input, entry, transferErr)
	}

	if err := s.ledger.SetSettlementRef(ctx, entry.ID, ref); err != nil {
		logCtx := s.log.WithSettlementRef(ctx, ref)
		logCtx = s.log.WithField(logCtx, "entry_id", entry.ID.String())
		s.log.Error(logCtx, "withdraw.settlement_ref_not_recorded", err)
	}

	s.metrics.IncOperation("withdraw")
	balance, err := s.ledger.GetBalance(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	return &TransferResult{
		EntryID:       entry.ID,
		Amount:        entry.Amount,
		Balance:       balance,
		SettlementRef: ref,
	}, nil
}

func (s *service) compensateWithdraw(ctx context.Context, input WithdrawInput, entry *models.LedgerEntry, transferErr error) error {
	_, compErr := s.ledger.ApplyDelta(ctx, ledger.ApplyDeltaInput{
		UserID: input.UserID,
		Amount: input.Amount,
		Kind:   enums.LedgerEntryKindWithdrawReversal,
	})
	if compErr != nil {
		// The debit stands without a matching settlement. This needs an
		// operator, so it is escalated above the ordinary gateway failure.
		logCtx := s.log.WithFields(ctx, map[string]any{
			"user_id":  input.UserID.String(),
			"entry_id": entry.ID.String(),
			"amount":   input.Amount,
		})
		s.log.Error(logCtx, "withdraw.compensation_failed", compErr)
		s.incFailure("withdraw", compErr)
		return errors.Wrap(errors.CodeInconsistent, compErr, "withdraw reversal failed after settlement error")
	}

	s.incFailure("withdraw", transferErr)
	return transferErr
}

func (s *service) InternalBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.ledger.GetBalance(ctx, userID)
}

// ExternalBalance reports the token balance of the user's wallet on the
// settlement network.
func (s *service) ExternalBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	account, err := s.findAccountWithWallet(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}

	start := time.Now()
	balance, err := s.gateway.BalanceOf(ctx, *account.WalletAddress)
	s.metrics.ObserveSettlement("balance_of", time.Since(start))
	return balance, err
}

// OrganizationBalance reports the settlement network balance of the
// organization wallet.
func (s *service) OrganizationBalance(ctx context.Context) (decimal.Decimal, error) {
	start := time.Now()
	balance, err := s.gateway.BalanceOf(ctx, s.chainCfg.OrgAddress)
	s.metrics.ObserveSettlement("balance_of", time.Since(start))
	return balance, err
}

func (s *service) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]TransactionDTO, error) {
	entries, err := s.ledger.ListEntries(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	transactions := make([]TransactionDTO, 0, len(entries))
	for _, entry := range entries {
		transactions = append(transactions, transactionFromModel(entry))
	}
	return transactions, nil
}

func (s *service) SetWalletAddress(ctx context.Context, userID uuid.UUID, address string) error {
	if userID == uuid.Nil {
		return errors.New(errors.CodeValidation, "user id required")
	}
	address = strings.TrimSpace(address)
	if !walletAddressPattern.MatchString(address) {
		return errors.New(errors.CodeValidation, "wallet address must be a 0x-prefixed 40 character hex string")
	}

	affected, err := s.accounts.UpdateWalletAddress(ctx, userID, address)
	if err != nil {
		return fmt.Errorf("update wallet address: %w", err)
	}
	if affected == 0 {
		return errors.New(errors.CodeNotFound, "account not found")
	}
	return nil
}

// ListUserWallets returns every configured wallet with its settlement
// network balance. Wallets whose balance lookup fails are reported with a
// zero balance rather than failing the whole listing.
func (s *service) ListUserWallets(ctx context.Context) ([]UserWalletDTO, error) {
	accounts, err := s.accounts.ListWalletAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list wallet accounts: %w", err)
	}

	wallets := make([]UserWalletDTO, 0, len(accounts))
	for _, account := range accounts {
		balance, err := s.gateway.BalanceOf(ctx, account.WalletAddress)
		if err != nil {
			logCtx := s.log.WithField(ctx, "wallet_address", account.WalletAddress)
			s.log.Warn(logCtx, "wallet balance lookup failed")
			balance = decimal.Zero
		}
		wallets = append(wallets, UserWalletDTO{
			UserID:        account.UserID,
			UserName:      account.UserName,
			WalletAddress: account.WalletAddress,
			Balance:       balance,
		})
	}
	return wallets, nil
}

func (s *service) findAccountWithWallet(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	if userID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "user id required")
	}

	account, err := s.accounts.FindAccount(ctx, userID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "account not found")
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	if !account.HasWallet() {
		return nil, errors.New(errors.CodeWalletNotConfigured, "wallet address not configured")
	}
	return account, nil
}

func (s *service) incFailure(op string, err error) {
	code := errors.CodeInternal
	if typed := errors.As(err); typed != nil {
		code = typed.Code()
	}
	s.metrics.IncFailure(op, string(code))
}
