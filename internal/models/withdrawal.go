package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type WithdrawalMethod string

const (
	WithdrawalBankTransfer WithdrawalMethod = "bank_transfer"
	WithdrawalMobileMoney  WithdrawalMethod = "mobile_money"
)

type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "pending"
	WithdrawalApproved  WithdrawalStatus = "approved"
	WithdrawalCompleted WithdrawalStatus = "completed"
	WithdrawalRejected  WithdrawalStatus = "rejected"
	WithdrawalCancelled WithdrawalStatus = "cancelled"
	WithdrawalFailed    WithdrawalStatus = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s WithdrawalStatus) Terminal() bool {
	switch s {
	case WithdrawalCompleted, WithdrawalRejected, WithdrawalCancelled, WithdrawalFailed:
		return true
	}
	return false
}

// WithdrawalRequest is a provider cash-out request. Funds are reserved with a
// hold ledger entry the moment the request is created; HoldReference points at
// that entry so reject/cancel/failure can release it.
type WithdrawalRequest struct {
	ID              int64            `json:"id" db:"id"`
	ProviderID      int64            `json:"provider_id" db:"provider_id"`
	WalletID        int64            `json:"-" db:"wallet_id"`
	Amount          decimal.Decimal  `json:"amount" db:"amount"`
	Fee             decimal.Decimal  `json:"fee" db:"fee"`
	NetAmount       decimal.Decimal  `json:"net_amount" db:"net_amount"`
	Currency        string           `json:"currency" db:"currency"`
	Method          WithdrawalMethod `json:"method" db:"method"`
	Details         Metadata         `json:"details,omitempty" db:"details"`
	Reference       string           `json:"reference" db:"reference"`
	Status          WithdrawalStatus `json:"status" db:"status"`
	HoldReference   string           `json:"-" db:"hold_reference"`
	PayoutReference *string          `json:"payout_reference,omitempty" db:"payout_reference"`
	AdminNotes      string           `json:"admin_notes,omitempty" db:"admin_notes"`
	RejectionReason *string          `json:"rejection_reason,omitempty" db:"rejection_reason"`
	ReviewedBy      *int64           `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewedAt      *time.Time       `json:"reviewed_at,omitempty" db:"reviewed_at"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at" db:"updated_at"`
}

type WithdrawalStatGroup struct {
	Key    string          `json:"key"`
	Count  int64           `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

type WithdrawalStats struct {
	ByStatus []WithdrawalStatGroup `json:"by_status"`
	ByMethod []WithdrawalStatGroup `json:"by_method"`
}
