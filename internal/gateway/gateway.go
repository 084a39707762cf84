// Package gateway abstracts the external money movers (charge, refund,
// payout). Implementations here simulate a real processor; services only see
// the interfaces, so tests substitute deterministic fakes.
package gateway

import (
	"context"

	"github.com/adilmk/homeserve/internal/models"
	"github.com/shopspring/decimal"
)

// Result is the shared contract every processor reports back. A decline is a
// Success=false result, not an error; errors mean the call itself failed
// (timeout, transport) and the attempt must be treated as failed.
type Result struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id,omitempty"`
	Status        string `json:"status"`
	Message       string `json:"message,omitempty"`
}

type ChargeRequest struct {
	BookingID int64
	Amount    decimal.Decimal
	Currency  string
	Details   models.Metadata
}

type RefundRequest struct {
	BookingID     int64
	TransactionID string
	Amount        decimal.Decimal
	Currency      string
	Reason        string
}

type PayoutRequest struct {
	Reference string
	Amount    decimal.Decimal
	Currency  string
	Method    models.WithdrawalMethod
	Details   models.Metadata
}

// Processor handles customer-side money movement for one payment method.
type Processor interface {
	Charge(ctx context.Context, req ChargeRequest) (Result, error)
	Refund(ctx context.Context, req RefundRequest) (Result, error)
}

// PayoutProcessor moves wallet balance out to a provider's payout method.
type PayoutProcessor interface {
	Payout(ctx context.Context, req PayoutRequest) (Result, error)
}
