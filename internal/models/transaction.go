package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionCredit     TransactionType = "credit"
	TransactionDebit      TransactionType = "debit"
	TransactionHold       TransactionType = "hold"
	TransactionRelease    TransactionType = "release"
	TransactionWithdrawal TransactionType = "withdrawal"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
)

// Transaction is one immutable ledger entry. Amount is signed: credits and
// releases are positive, debits, holds and withdrawals negative.
type Transaction struct {
	ID            int64             `json:"-" db:"id"`
	WalletID      int64             `json:"-" db:"wallet_id"`
	OwnerID       int64             `json:"-" db:"owner_id"`
	Type          TransactionType   `json:"type" db:"type"`
	Amount        decimal.Decimal   `json:"amount" db:"amount"`
	Currency      string            `json:"currency" db:"currency"`
	Description   string            `json:"description" db:"description"`
	Reference     string            `json:"reference" db:"reference"`
	Status        TransactionStatus `json:"status" db:"status"`
	Metadata      Metadata          `json:"metadata,omitempty" db:"metadata"`
	BalanceBefore decimal.Decimal   `json:"balance_before" db:"balance_before"`
	BalanceAfter  decimal.Decimal   `json:"balance_after" db:"balance_after"`
	CreatedAt     time.Time         `json:"processed_at" db:"created_at"`
}

// TransactionFilter narrows ledger listings. Zero values mean "no filter";
// Limit 0 falls back to the repository default.
type TransactionFilter struct {
	Type   TransactionType
	Status TransactionStatus
	Limit  int
	Offset int
}
