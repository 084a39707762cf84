package apperrors

import "errors"

var (
	ErrInvalidRequest         = errors.New("invalid request")
	ErrInternalServer         = errors.New("internal server error")
	ErrInvalidAuthHeader      = errors.New("invalid or missing Authorization header")
	ErrInvalidToken           = errors.New("invalid or expired token")
	ErrInvalidAmount          = errors.New("amount must be greater than zero")
	ErrCurrencyMismatch       = errors.New("currency does not match wallet currency")
	ErrInsufficientFunds      = errors.New("insufficient wallet balance")
	ErrWalletNotFound         = errors.New("wallet not found")
	ErrWalletInactive         = errors.New("wallet is deactivated")
	ErrTransactionNotFound    = errors.New("wallet transaction not found")
	ErrWithdrawalNotFound     = errors.New("withdrawal request not found")
	ErrPaymentNotFound        = errors.New("booking payment not found")
	ErrPaymentExists          = errors.New("payment already exists for booking")
	ErrAmountMismatch         = errors.New("amount does not match booking total")
	ErrMethodMismatch         = errors.New("payment method does not match booking method")
	ErrRefundExceedsPayment   = errors.New("refund amount exceeds paid amount")
	ErrInvalidStateTransition = errors.New("operation not allowed in current status")
	ErrRejectionReasonEmpty   = errors.New("rejection reason is required")
	ErrNotRequestOwner        = errors.New("withdrawal request belongs to another provider")
	ErrInvalidRate            = errors.New("commission rate must be between 0 and 1")
	ErrCommissionConfig       = errors.New("commission configuration does not cover amount")
	ErrUnsupportedMethod      = errors.New("unsupported payment method")
	ErrMissingPayoutDetails   = errors.New("payout method details are incomplete")
)
