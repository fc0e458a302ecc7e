package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lumera-social/lumera-backend/pkg/config"
	"github.com/lumera-social/lumera-backend/pkg/db"
	"github.com/lumera-social/lumera-backend/pkg/db/models"
	"github.com/lumera-social/lumera-backend/pkg/enums"
	"github.com/lumera-social/lumera-backend/pkg/errors"
)

var ledgerTestDBCounter int

func setupLedgerTestDB(t *testing.T) *db.Client {
	t.Helper()

	ledgerTestDBCounter++
	client, err := db.New(context.Background(), config.DBConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:ledgertest%d?mode=memory&cache=shared", ledgerTestDBCounter),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	accounts := `
CREATE TABLE IF NOT EXISTS accounts (
  user_id TEXT PRIMARY KEY,
  balance INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
  wallet_address TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	users := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  user_name TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  is_admin INTEGER NOT NULL DEFAULT 0,
  last_login_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	entries := `
CREATE TABLE IF NOT EXISTS ledger_entries (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  amount INTEGER NOT NULL,
  kind TEXT NOT NULL,
  settlement_ref TEXT,
  created_at DATETIME
);`

	for _, stmt := range []string{accounts, users, entries} {
		require.NoError(t, client.DB().Exec(stmt).Error)
	}
	return client
}

func newLedgerService(t *testing.T) (Service, Repository, *db.Client) {
	t.Helper()
	client := setupLedgerTestDB(t)
	repo := NewRepository(client.DB())
	svc, err := NewService(client, repo)
	require.NoError(t, err)
	return svc, repo, client
}

func seedAccount(t *testing.T, repo Repository, balance int64) uuid.UUID {
	t.Helper()
	userID := uuid.New()
	require.NoError(t, repo.CreateAccount(context.Background(), &models.Account{
		UserID:  userID,
		Balance: balance,
	}))
	return userID
}

func TestApplyDeltaCreditAndDebit(t *testing.T) {
	svc, repo, _ := newLedgerService(t)
	ctx := context.Background()
	userID := seedAccount(t, repo, 0)

	ref := "0xdep1"
	entry, err := svc.ApplyDelta(ctx, ApplyDeltaInput{
		UserID:        userID,
		Amount:        100,
		Kind:          enums.LedgerEntryKindDeposit,
		SettlementRef: &ref,
	})
	require.NoError(t, err)
	require.Equal(t, int64(100), entry.Amount)
	require.NotEqual(t, uuid.Nil, entry.ID)

	_, err = svc.ApplyDelta(ctx, ApplyDeltaInput{
		UserID: userID,
		Amount: -30,
		Kind:   enums.LedgerEntryKindPurchase,
	})
	require.NoError(t, err)

	balance, err := svc.GetBalance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, int64(70), balance)

	require.NoError(t, svc.Reconcile(ctx, userID))
}

func TestApplyDeltaInsufficientBalance(t *testing.T) {
	svc, repo, _ := newLedgerService(t)
	ctx := context.Background()
	userID := seedAccount(t, repo, 10)

	_, err := svc.ApplyDelta(ctx, ApplyDeltaInput{
		UserID: userID,
		Amount: -11,
		Kind:   enums.LedgerEntryKindWithdraw,
	})
	require.Error(t, err)
	require.True(t, errors.HasCode(err, errors.CodeInsufficientBalance))

	// The failed debit must leave no trace.
	balance, err := svc.GetBalance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, int64(10), balance)

	entries, err := svc.ListEntries(ctx, userID, 0, 0)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestApplyDeltaDebitToZero(t *testing.T) {
	svc, repo, _ := newLedgerService(t)
	ctx := context.Background()
	userID := seedAccount(t, repo, 25)

	_, err := svc.ApplyDelta(ctx, ApplyDeltaInput{
		UserID: userID,
		Amount: -25,
		Kind:   enums.LedgerEntryKindWithdraw,
	})
	require.NoError(t, err)

	balance, err := svc.GetBalance(ctx, userID)
	require.NoError(t, err)
	require.Zero(t, balance)
}

func TestApplyDeltaUnknownAccount(t *testing.T) {
	svc, _, _ := newLedgerService(t)

	_, err := svc.ApplyDelta(context.Background(), ApplyDeltaInput{
		UserID: uuid.New(),
		Amount: -5,
		Kind:   enums.LedgerEntryKindPurchase,
	})
	require.Error(t, err)
	require.True(t, errors.HasCode(err, errors.CodeNotFound))
}

func TestApplyDeltaValidation(t *testing.T) {
	svc, repo, _ := newLedgerService(t)
	ctx := context.Background()
	userID := seedAccount(t, repo, 100)

	cases := []struct {
		name  string
		input ApplyDeltaInput
	}{
		{"zero amount", ApplyDeltaInput{UserID: userID, Amount: 0, Kind: enums.LedgerEntryKindDeposit}},
		{"missing user", ApplyDeltaInput{Amount: 10, Kind: enums.LedgerEntryKindDeposit}},
		{"bad kind", ApplyDeltaInput{UserID: userID, Amount: 10, Kind: "refund"}},
		{"negative deposit", ApplyDeltaInput{UserID: userID, Amount: -10, Kind: enums.LedgerEntryKindDeposit}},
		{"positive withdraw", ApplyDeltaInput{UserID: userID, Amount: 10, Kind: enums.LedgerEntryKindWithdraw}},
		{"positive purchase", ApplyDeltaInput{UserID: userID, Amount: 10, Kind: enums.LedgerEntryKindPurchase}},
		{"negative reversal", ApplyDeltaInput{UserID: userID, Amount: -10, Kind: enums.LedgerEntryKindWithdrawReversal}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.ApplyDelta(ctx, tc.input)
			require.Error(t, err)
			require.True(t, errors.HasCode(err, errors.CodeValidation))
		})
	}
}

func TestListEntriesNewestFirst(t *testing.T) {
	svc, repo, _ := newLedgerService(t)
	ctx := context.Background()
	userID := seedAccount(t, repo, 0)

	base := time.Now().Add(-time.Hour)
	for i, amount := range []int64{10, 20, 30} {
		entry := &models.LedgerEntry{
			UserID:    userID,
			Amount:    amount,
			Kind:      enums.LedgerEntryKindDeposit,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.CreateEntry(ctx, entry))
	}

	entries, err := svc.ListEntries(ctx, userID, 2, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, int64(30), entries[0].Amount)
	require.Equal(t, int64(20), entries[1].Amount)

	rest, err := svc.ListEntries(ctx, userID, 2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.Equal(t, int64(10), rest[0].Amount)
}

func TestSetSettlementRef(t *testing.T) {
	svc, repo, _ := newLedgerService(t)
	ctx := context.Background()
	userID := seedAccount(t, repo, 50)

	entry, err := svc.ApplyDelta(ctx, ApplyDeltaInput{
		UserID: userID,
		Amount: -50,
		Kind:   enums.LedgerEntryKindWithdraw,
	})
	require.NoError(t, err)
	require.Nil(t, entry.SettlementRef)

	require.NoError(t, svc.SetSettlementRef(ctx, entry.ID, "0xwd1"))

	entries, err := svc.ListEntries(ctx, userID, 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].SettlementRef)
	require.Equal(t, "0xwd1", *entries[0].SettlementRef)

	// The reference is written once; a repeat call must not overwrite it.
	require.NoError(t, svc.SetSettlementRef(ctx, entry.ID, "0xwd2"))

	entries, err = svc.ListEntries(ctx, userID, 0, 0)
	require.NoError(t, err)
	require.Equal(t, "0xwd1", *entries[0].SettlementRef)
}

func TestReconcileDetectsDrift(t *testing.T) {
	svc, repo, client := newLedgerService(t)
	ctx := context.Background()
	userID := seedAccount(t, repo, 0)

	ref := "0xdep2"
	_, err := svc.ApplyDelta(ctx, ApplyDeltaInput{
		UserID:        userID,
		Amount:        40,
		Kind:          enums.LedgerEntryKindDeposit,
		SettlementRef: &ref,
	})
	require.NoError(t, err)
	require.NoError(t, svc.Reconcile(ctx, userID))

	// Corrupt the balance behind the ledger's back.
	require.NoError(t, client.DB().Exec("UPDATE accounts SET balance = 99 WHERE user_id = ?", userID).Error)

	err = svc.Reconcile(ctx, userID)
	require.Error(t, err)
	require.True(t, errors.HasCode(err, errors.CodeInconsistent))
}
