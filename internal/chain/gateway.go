// Package chain talks to the external settlement network that backs
// deposits and withdrawals. Balances on the network are denominated in
// raw token units; the rest of the application works in whole tokens.
package chain

import (
	"context"

	"github.com/shopspring/decimal"
)

// TransferRequest describes a token movement on the settlement network.
// The credential authorizes spending from the source address and is never
// persisted or logged.
type TransferRequest struct {
	FromAddress string
	Credential  string
	ToAddress   string
	Amount      int64
}

// Gateway abstracts the settlement network. Implementations must return a
// non-empty settlement reference from Transfer on success.
type Gateway interface {
	// BalanceOf reports the token balance held by an address, in whole tokens.
	BalanceOf(ctx context.Context, address string) (decimal.Decimal, error)

	// Transfer moves tokens between two network addresses and returns the
	// settlement reference recorded by the network.
	Transfer(ctx context.Context, req TransferRequest) (string, error)
}
