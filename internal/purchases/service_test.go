package purchases

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lumera-social/lumera-backend/internal/ledger"
	"github.com/lumera-social/lumera-backend/pkg/config"
	"github.com/lumera-social/lumera-backend/pkg/db"
	"github.com/lumera-social/lumera-backend/pkg/db/models"
	"github.com/lumera-social/lumera-backend/pkg/errors"
)

var purchaseTestDBCounter int

func setupPurchaseTestDB(t *testing.T) *db.Client {
	t.Helper()

	purchaseTestDBCounter++
	client, err := db.New(context.Background(), config.DBConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:purchasetest%d?mode=memory&cache=shared", purchaseTestDBCounter),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	statements := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
  user_id TEXT PRIMARY KEY,
  balance INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
  wallet_address TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS ledger_entries (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  amount INTEGER NOT NULL,
  kind TEXT NOT NULL,
  settlement_ref TEXT,
  created_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS unlock_grants (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  item_id TEXT NOT NULL,
  price_tokens INTEGER NOT NULL,
  created_at DATETIME
);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_unlock_grants_user_item ON unlock_grants (user_id, item_id);`,
	}
	for _, stmt := range statements {
		require.NoError(t, client.DB().Exec(stmt).Error)
	}
	return client
}

func newPurchaseService(t *testing.T) (Service, ledger.Service, *db.Client) {
	t.Helper()
	client := setupPurchaseTestDB(t)

	ledgerSvc, err := ledger.NewService(client, ledger.NewRepository(client.DB()))
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Tx:     client,
		Repo:   NewRepository(client.DB()),
		Ledger: ledgerSvc,
	})
	require.NoError(t, err)
	return svc, ledgerSvc, client
}

func seedFundedAccount(t *testing.T, client *db.Client, balance int64) uuid.UUID {
	t.Helper()
	userID := uuid.New()
	require.NoError(t, client.DB().Create(&models.Account{
		UserID:  userID,
		Balance: balance,
	}).Error)
	return userID
}

func TestUnlockChargesOnce(t *testing.T) {
	svc, ledgerSvc, client := newPurchaseService(t)
	ctx := context.Background()
	userID := seedFundedAccount(t, client, 100)
	itemID := uuid.New()

	result, err := svc.Unlock(ctx, UnlockInput{UserID: userID, ItemID: itemID, PriceTokens: 30})
	require.NoError(t, err)
	require.False(t, result.AlreadyUnlocked)
	require.Equal(t, int64(30), result.Grant.PriceTokens)

	balance, err := ledgerSvc.GetBalance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, int64(70), balance)

	// Repeat unlocks return the original grant without charging again.
	repeat, err := svc.Unlock(ctx, UnlockInput{UserID: userID, ItemID: itemID, PriceTokens: 30})
	require.NoError(t, err)
	require.True(t, repeat.AlreadyUnlocked)
	require.Equal(t, result.Grant.ID, repeat.Grant.ID)

	balance, err = ledgerSvc.GetBalance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, int64(70), balance)

	entries, err := ledgerSvc.ListEntries(ctx, userID, 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, int64(-30), entries[0].Amount)

	require.NoError(t, ledgerSvc.Reconcile(ctx, userID))
}

func TestUnlockInsufficientBalanceLeavesNoGrant(t *testing.T) {
	svc, ledgerSvc, client := newPurchaseService(t)
	ctx := context.Background()
	userID := seedFundedAccount(t, client, 10)
	itemID := uuid.New()

	_, err := svc.Unlock(ctx, UnlockInput{UserID: userID, ItemID: itemID, PriceTokens: 11})
	require.Error(t, err)
	require.True(t, errors.HasCode(err, errors.CodeInsufficientBalance))

	// The rolled-back transaction must leave neither a grant nor a charge.
	grants, err := svc.ListGrants(ctx, userID)
	require.NoError(t, err)
	require.Empty(t, grants)

	balance, err := ledgerSvc.GetBalance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, int64(10), balance)
}

func TestUnlockRacingRequestsChargeOnce(t *testing.T) {
	svc, ledgerSvc, client := newPurchaseService(t)
	ctx := context.Background()
	userID := seedFundedAccount(t, client, 50)
	itemID := uuid.New()

	// Simulate the loser of the insert race: the grant already exists by the
	// time this request reaches the transaction.
	require.NoError(t, client.DB().Create(&models.UnlockGrant{
		UserID:      userID,
		ItemID:      itemID,
		PriceTokens: 20,
	}).Error)

	result, err := svc.Unlock(ctx, UnlockInput{UserID: userID, ItemID: itemID, PriceTokens: 20})
	require.NoError(t, err)
	require.True(t, result.AlreadyUnlocked)

	balance, err := ledgerSvc.GetBalance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, int64(50), balance)
}

// staleLookupRepo misses its first grant lookup, modeling a request whose
// fast-path read ran before the winning insert committed.
type staleLookupRepo struct {
	Repository
	missed bool
}

func (r *staleLookupRepo) FindGrant(ctx context.Context, userID, itemID uuid.UUID) (*models.UnlockGrant, error) {
	if !r.missed {
		r.missed = true
		return nil, gorm.ErrRecordNotFound
	}
	return r.Repository.FindGrant(ctx, userID, itemID)
}

func TestUnlockLoserInsideTransactionIsNotCharged(t *testing.T) {
	client := setupPurchaseTestDB(t)
	ctx := context.Background()

	ledgerSvc, err := ledger.NewService(client, ledger.NewRepository(client.DB()))
	require.NoError(t, err)

	repo := &staleLookupRepo{Repository: NewRepository(client.DB())}
	svc, err := NewService(ServiceParams{
		Tx:     client,
		Repo:   repo,
		Ledger: ledgerSvc,
	})
	require.NoError(t, err)

	userID := uuid.New()
	require.NoError(t, client.DB().Create(&models.Account{
		UserID:  userID,
		Balance: 50,
	}).Error)
	itemID := uuid.New()

	winner := &models.UnlockGrant{
		UserID:      userID,
		ItemID:      itemID,
		PriceTokens: 20,
	}
	require.NoError(t, client.DB().Create(winner).Error)

	// The stale lookup sends this request into the transaction, where the
	// grant insert collides with the winner's unique index entry.
	result, err := svc.Unlock(ctx, UnlockInput{UserID: userID, ItemID: itemID, PriceTokens: 20})
	require.NoError(t, err)
	require.True(t, result.AlreadyUnlocked)
	require.Equal(t, winner.ID, result.Grant.ID)

	// The rolled-back debit must leave no trace.
	balance, err := ledgerSvc.GetBalance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, int64(50), balance)

	entries, err := ledgerSvc.ListEntries(ctx, userID, 0, 0)
	require.NoError(t, err)
	require.Empty(t, entries)

	grants, err := svc.ListGrants(ctx, userID)
	require.NoError(t, err)
	require.Len(t, grants, 1)

	require.NoError(t, ledgerSvc.Reconcile(ctx, userID))
}

func TestUnlockDistinctItems(t *testing.T) {
	svc, ledgerSvc, client := newPurchaseService(t)
	ctx := context.Background()
	userID := seedFundedAccount(t, client, 100)

	for i := 0; i < 3; i++ {
		_, err := svc.Unlock(ctx, UnlockInput{UserID: userID, ItemID: uuid.New(), PriceTokens: 25})
		require.NoError(t, err)
	}

	balance, err := ledgerSvc.GetBalance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, int64(25), balance)

	grants, err := svc.ListGrants(ctx, userID)
	require.NoError(t, err)
	require.Len(t, grants, 3)
}

func TestUnlockUnknownAccount(t *testing.T) {
	svc, _, _ := newPurchaseService(t)

	_, err := svc.Unlock(context.Background(), UnlockInput{
		UserID:      uuid.New(),
		ItemID:      uuid.New(),
		PriceTokens: 5,
	})
	require.Error(t, err)
	require.True(t, errors.HasCode(err, errors.CodeNotFound))
}

func TestUnlockValidation(t *testing.T) {
	svc, _, _ := newPurchaseService(t)
	ctx := context.Background()

	_, err := svc.Unlock(ctx, UnlockInput{ItemID: uuid.New(), PriceTokens: 5})
	require.True(t, errors.HasCode(err, errors.CodeValidation))

	_, err = svc.Unlock(ctx, UnlockInput{UserID: uuid.New(), PriceTokens: 5})
	require.True(t, errors.HasCode(err, errors.CodeValidation))

	_, err = svc.Unlock(ctx, UnlockInput{UserID: uuid.New(), ItemID: uuid.New(), PriceTokens: 0})
	require.True(t, errors.HasCode(err, errors.CodeValidation))
}
