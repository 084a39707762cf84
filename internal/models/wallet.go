package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Wallet struct {
	ID        int64           `json:"-" db:"id"`
	OwnerID   int64           `json:"owner_id" db:"owner_id"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	Currency  string          `json:"currency" db:"currency"`
	Active    bool            `json:"active" db:"active"`
	CreatedAt time.Time       `json:"-" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// WalletOperation describes one balance mutation before it is applied. Amount
// is always a positive magnitude; the sign is derived from Type.
type WalletOperation struct {
	OwnerID     int64
	Type        TransactionType
	Amount      decimal.Decimal
	Currency    string
	Description string
	Reference   string
	Metadata    Metadata
}

// SignedAmount returns the delta the operation applies to the balance.
func (op WalletOperation) SignedAmount() decimal.Decimal {
	switch op.Type {
	case TransactionCredit, TransactionRelease:
		return op.Amount
	default:
		return op.Amount.Neg()
	}
}
