package enums

import "fmt"

// LedgerEntryKind maps to the kind check constraint on ledger_entries.
type LedgerEntryKind string

const (
	LedgerEntryKindDeposit          LedgerEntryKind = "deposit"
	LedgerEntryKindWithdraw         LedgerEntryKind = "withdraw"
	LedgerEntryKindWithdrawReversal LedgerEntryKind = "withdraw_reversal"
	LedgerEntryKindPurchase         LedgerEntryKind = "purchase"
)

var validLedgerEntryKinds = []LedgerEntryKind{
	LedgerEntryKindDeposit,
	LedgerEntryKindWithdraw,
	LedgerEntryKindWithdrawReversal,
	LedgerEntryKindPurchase,
}

// IsValid reports whether the value matches the canonical ledger entry enum.
func (k LedgerEntryKind) IsValid() bool {
	for _, candidate := range validLedgerEntryKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// RequiresSettlementRef reports whether entries of this kind reference an
// external settlement. Purchases never touch the settlement network.
func (k LedgerEntryKind) RequiresSettlementRef() bool {
	return k == LedgerEntryKindDeposit || k == LedgerEntryKindWithdraw
}

// ParseLedgerEntryKind converts raw input into LedgerEntryKind.
func ParseLedgerEntryKind(value string) (LedgerEntryKind, error) {
	for _, candidate := range validLedgerEntryKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger entry kind %q", value)
}
