package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMobileMoney  PaymentMethod = "mobile_money"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentCash         PaymentMethod = "cash"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentAuthorized PaymentStatus = "authorized"
	PaymentPaid       PaymentStatus = "paid"
	PaymentRefunded   PaymentStatus = "refunded"
	PaymentFailed     PaymentStatus = "failed"
)

// BookingPayment is the money side of one booking.
type BookingPayment struct {
	ID               int64            `json:"-" db:"id"`
	BookingID        int64            `json:"booking_id" db:"booking_id"`
	ProviderID       int64            `json:"provider_id" db:"provider_id"`
	Amount           decimal.Decimal  `json:"amount" db:"amount"`
	Currency         string           `json:"currency" db:"currency"`
	Method           PaymentMethod    `json:"method" db:"method"`
	Status           PaymentStatus    `json:"status" db:"status"`
	TransactionID    *string          `json:"transaction_id,omitempty" db:"transaction_id"`
	ReleaseReference *string          `json:"-" db:"release_reference"`
	ReleasedAmount   *decimal.Decimal `json:"-" db:"released_amount"`
	PaidAt           *time.Time       `json:"paid_at,omitempty" db:"paid_at"`
	RefundedAt       *time.Time       `json:"refunded_at,omitempty" db:"refunded_at"`
	RefundReason     *string          `json:"refund_reason,omitempty" db:"refund_reason"`
	RefundedAmount   *decimal.Decimal `json:"refunded_amount,omitempty" db:"refunded_amount"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" db:"updated_at"`
}

// BookingCharge is the booking snapshot handed over by the (external) booking
// subsystem when money enters the escrow flow.
type BookingCharge struct {
	BookingID  int64           `json:"booking_id"`
	ProviderID int64           `json:"provider_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Method     PaymentMethod   `json:"method"`
}

// PaymentResult mirrors the gateway result contract back to callers.
type PaymentResult struct {
	Success       bool          `json:"success"`
	Status        PaymentStatus `json:"status"`
	TransactionID string        `json:"transaction_id,omitempty"`
	Message       string        `json:"message,omitempty"`
}

// PaymentStatusUpdate is an explicit, validated transition for one booking
// payment. The update only lands when the row is still in ExpectStatus.
type PaymentStatusUpdate struct {
	BookingID        int64
	ExpectStatus     PaymentStatus
	NewStatus        PaymentStatus
	TransactionID    *string
	ReleaseReference *string
	ReleasedAmount   *decimal.Decimal
	PaidAt           *time.Time
	RefundedAt       *time.Time
	RefundReason     *string
	RefundedAmount   *decimal.Decimal
}
