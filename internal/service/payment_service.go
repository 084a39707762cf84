package service

import (
	"context"
	"fmt"
	"time"

	"github.com/adilmk/homeserve/internal/apperrors"
	"github.com/adilmk/homeserve/internal/gateway"
	"github.com/adilmk/homeserve/internal/logger"
	"github.com/adilmk/homeserve/internal/models"
	"github.com/adilmk/homeserve/internal/notification"
	"github.com/adilmk/homeserve/internal/repository"
	"github.com/adilmk/homeserve/internal/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type PaymentService interface {
	ProcessPayment(ctx context.Context, charge models.BookingCharge, amount decimal.Decimal, method models.PaymentMethod, details models.Metadata) (models.PaymentResult, error)
	ConfirmCashPayment(ctx context.Context, bookingID int64) (models.BookingPayment, error)
	ReleaseToProvider(ctx context.Context, providerID int64, amount decimal.Decimal, bookingID int64, platformFee decimal.Decimal) (models.Transaction, error)
	ReleaseJobPayment(ctx context.Context, bookingID int64) (models.Transaction, error)
	ProcessRefund(ctx context.Context, bookingID int64, refundAmount decimal.Decimal, reason string) (models.PaymentResult, error)
	EstimateEarnings(gross decimal.Decimal) (models.CommissionResult, error)
}

type paymentService struct {
	paymentRepo    repository.PaymentRepository
	walletService  WalletService
	processors     map[models.PaymentMethod]gateway.Processor
	commissionCfg  models.CommissionConfig
	notifier       notification.Notifier
	gatewayTimeout time.Duration
}

func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	walletService WalletService,
	processors map[models.PaymentMethod]gateway.Processor,
	commissionCfg models.CommissionConfig,
	notifier notification.Notifier,
	gatewayTimeout time.Duration,
) PaymentService {
	return &paymentService{
		paymentRepo:    paymentRepo,
		walletService:  walletService,
		processors:     processors,
		commissionCfg:  commissionCfg,
		notifier:       notifier,
		gatewayTimeout: gatewayTimeout,
	}
}

// ProcessPayment validates the request against the booking snapshot, records
// the payment as pending and dispatches to the method's processor. A gateway
// decline lands as a failed payment and a Success=false result, never as an
// error: the caller decides whether to start a fresh attempt.
func (s *paymentService) ProcessPayment(ctx context.Context, charge models.BookingCharge, amount decimal.Decimal, method models.PaymentMethod, details models.Metadata) (models.PaymentResult, error) {
	if !amount.IsPositive() {
		return models.PaymentResult{}, fmt.Errorf("payment of %s: %w", amount, apperrors.ErrInvalidAmount)
	}
	if !amount.Equal(charge.Amount) {
		return models.PaymentResult{}, fmt.Errorf("booking %d expects %s, got %s: %w",
			charge.BookingID, charge.Amount, amount, apperrors.ErrAmountMismatch)
	}
	if method != charge.Method {
		return models.PaymentResult{}, fmt.Errorf("booking %d expects %s, got %s: %w",
			charge.BookingID, charge.Method, method, apperrors.ErrMethodMismatch)
	}

	processor, ok := s.processors[method]
	if !ok {
		return models.PaymentResult{}, fmt.Errorf("method %s: %w", method, apperrors.ErrUnsupportedMethod)
	}

	payment := &models.BookingPayment{
		BookingID:  charge.BookingID,
		ProviderID: charge.ProviderID,
		Amount:     amount,
		Currency:   charge.Currency,
		Method:     method,
		Status:     models.PaymentPending,
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return models.PaymentResult{}, err
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	res, err := processor.Charge(gwCtx, gateway.ChargeRequest{
		BookingID: charge.BookingID,
		Amount:    amount,
		Currency:  charge.Currency,
		Details:   details,
	})
	if err != nil {
		logger.Log.Error("payment gateway call failed",
			zap.Int64("booking", charge.BookingID), zap.Error(err))
		return s.settleCharge(ctx, charge.BookingID, gateway.Result{
			Success: false,
			Status:  string(models.PaymentFailed),
			Message: "payment gateway unavailable",
		})
	}

	return s.settleCharge(ctx, charge.BookingID, res)
}

func (s *paymentService) settleCharge(ctx context.Context, bookingID int64, res gateway.Result) (models.PaymentResult, error) {
	result := models.PaymentResult{
		Success:       res.Success,
		Status:        models.PaymentStatus(res.Status),
		TransactionID: res.TransactionID,
		Message:       res.Message,
	}

	// Cash stays pending until staff confirms; nothing to persist yet.
	if result.Status == models.PaymentPending {
		return result, nil
	}

	upd := models.PaymentStatusUpdate{
		BookingID:    bookingID,
		ExpectStatus: models.PaymentPending,
		NewStatus:    result.Status,
	}
	if res.TransactionID != "" {
		upd.TransactionID = &res.TransactionID
	}
	if result.Status == models.PaymentPaid {
		now := time.Now()
		upd.PaidAt = &now
	}

	if _, err := s.paymentRepo.UpdateStatus(ctx, upd); err != nil {
		return models.PaymentResult{}, err
	}
	return result, nil
}

// ConfirmCashPayment moves a cash payment from pending to paid once the
// provider reports the cash as collected.
func (s *paymentService) ConfirmCashPayment(ctx context.Context, bookingID int64) (models.BookingPayment, error) {
	payment, err := s.paymentRepo.GetByBooking(ctx, bookingID)
	if err != nil {
		return models.BookingPayment{}, err
	}
	if payment.Method != models.PaymentCash {
		return models.BookingPayment{}, fmt.Errorf("booking %d paid by %s: %w",
			bookingID, payment.Method, apperrors.ErrMethodMismatch)
	}

	now := time.Now()
	return s.paymentRepo.UpdateStatus(ctx, models.PaymentStatusUpdate{
		BookingID:    bookingID,
		ExpectStatus: models.PaymentPending,
		NewStatus:    models.PaymentPaid,
		PaidAt:       &now,
	})
}

// ReleaseToProvider credits the provider wallet with the net amount after the
// platform fee, tagged with the booking and the fee breakdown. This is the
// point where commission output turns into wallet money.
func (s *paymentService) ReleaseToProvider(ctx context.Context, providerID int64, amount decimal.Decimal, bookingID int64, platformFee decimal.Decimal) (models.Transaction, error) {
	if !amount.IsPositive() {
		return models.Transaction{}, fmt.Errorf("release of %s: %w", amount, apperrors.ErrInvalidAmount)
	}
	if platformFee.IsNegative() || platformFee.GreaterThan(amount) {
		return models.Transaction{}, fmt.Errorf("platform fee %s against %s: %w", platformFee, amount, apperrors.ErrInvalidAmount)
	}

	netAmount := amount.Sub(platformFee)
	entry, err := s.walletService.Credit(ctx, providerID, netAmount,
		fmt.Sprintf("job payment for booking %d", bookingID),
		models.Metadata{
			"booking_id":   bookingID,
			"gross_amount": amount.String(),
			"platform_fee": platformFee.String(),
			"net_amount":   netAmount.String(),
		})
	if err != nil {
		return models.Transaction{}, err
	}

	s.notifier.Send(ctx, notification.Notification{
		Recipient: providerID,
		Type:      "payment_released",
		Title:     "Payment received",
		Message:   fmt.Sprintf("You earned %s %s for booking %d", netAmount, entry.Currency, bookingID),
		Metadata:  map[string]interface{}{"booking_id": bookingID, "reference": entry.Reference},
	})

	return entry, nil
}

// ReleaseJobPayment settles a completed job: it computes the commission split
// for the paid booking amount and releases the net to the provider exactly
// once. The release marker is claimed on the payment row before any money
// moves; the claim is what decides between concurrent releases, so a lost
// claim means someone else already credited the provider. If the credit
// itself fails, the marker is cleared so a retry can start over.
func (s *paymentService) ReleaseJobPayment(ctx context.Context, bookingID int64) (models.Transaction, error) {
	payment, err := s.paymentRepo.GetByBooking(ctx, bookingID)
	if err != nil {
		return models.Transaction{}, err
	}
	if payment.Status != models.PaymentPaid {
		return models.Transaction{}, fmt.Errorf("payment for booking %d is %s: %w",
			bookingID, payment.Status, apperrors.ErrInvalidStateTransition)
	}
	if payment.ReleaseReference != nil {
		return models.Transaction{}, fmt.Errorf("booking %d already released as %s: %w",
			bookingID, *payment.ReleaseReference, apperrors.ErrInvalidStateTransition)
	}

	split, err := ComputeCommission(payment.Amount, s.commissionCfg)
	if err != nil {
		return models.Transaction{}, err
	}

	releaseRef := utils.NewReference("REL")
	if _, err := s.paymentRepo.ClaimRelease(ctx, bookingID, releaseRef, split.NetAmount); err != nil {
		return models.Transaction{}, err
	}

	entry, err := s.ReleaseToProvider(ctx, payment.ProviderID, payment.Amount, bookingID, split.Commission)
	if err != nil {
		if clearErr := s.paymentRepo.ClearRelease(ctx, bookingID, releaseRef); clearErr != nil {
			logger.Log.Error("release marker left on uncredited payment",
				zap.Int64("booking", bookingID), zap.String("reference", releaseRef), zap.Error(clearErr))
		}
		return models.Transaction{}, err
	}

	return entry, nil
}

// ProcessRefund reverses a paid booking payment. If the provider was already
// credited, the released net amount (capped by the refund) is debited back
// from their wallet in the same flow.
func (s *paymentService) ProcessRefund(ctx context.Context, bookingID int64, refundAmount decimal.Decimal, reason string) (models.PaymentResult, error) {
	if !refundAmount.IsPositive() {
		return models.PaymentResult{}, fmt.Errorf("refund of %s: %w", refundAmount, apperrors.ErrInvalidAmount)
	}

	payment, err := s.paymentRepo.GetByBooking(ctx, bookingID)
	if err != nil {
		return models.PaymentResult{}, err
	}
	if payment.Status != models.PaymentPaid {
		return models.PaymentResult{}, fmt.Errorf("payment for booking %d is %s: %w",
			bookingID, payment.Status, apperrors.ErrInvalidStateTransition)
	}
	if refundAmount.GreaterThan(payment.Amount) {
		return models.PaymentResult{}, fmt.Errorf("refund %s exceeds paid %s: %w",
			refundAmount, payment.Amount, apperrors.ErrRefundExceedsPayment)
	}

	processor, ok := s.processors[payment.Method]
	if !ok {
		return models.PaymentResult{}, fmt.Errorf("method %s: %w", payment.Method, apperrors.ErrUnsupportedMethod)
	}

	var gwTxnID string
	if payment.TransactionID != nil {
		gwTxnID = *payment.TransactionID
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	res, err := processor.Refund(gwCtx, gateway.RefundRequest{
		BookingID:     bookingID,
		TransactionID: gwTxnID,
		Amount:        refundAmount,
		Currency:      payment.Currency,
		Reason:        reason,
	})
	if err != nil {
		logger.Log.Error("refund gateway call failed",
			zap.Int64("booking", bookingID), zap.Error(err))
		return models.PaymentResult{
			Success: false,
			Status:  payment.Status,
			Message: "refund gateway unavailable",
		}, nil
	}
	if !res.Success {
		return models.PaymentResult{
			Success: false,
			Status:  payment.Status,
			Message: res.Message,
		}, nil
	}

	if payment.ReleaseReference != nil && payment.ReleasedAmount != nil {
		reversal := decimal.Min(refundAmount, *payment.ReleasedAmount)
		if _, err := s.walletService.Debit(ctx, payment.ProviderID, reversal,
			fmt.Sprintf("refund reversal for booking %d", bookingID),
			models.Metadata{
				"booking_id":        bookingID,
				"refund_amount":     refundAmount.String(),
				"release_reference": *payment.ReleaseReference,
			}); err != nil {
			return models.PaymentResult{}, fmt.Errorf("reversing release for booking %d: %w", bookingID, err)
		}
	}

	now := time.Now()
	if _, err := s.paymentRepo.UpdateStatus(ctx, models.PaymentStatusUpdate{
		BookingID:      bookingID,
		ExpectStatus:   models.PaymentPaid,
		NewStatus:      models.PaymentRefunded,
		RefundedAt:     &now,
		RefundReason:   &reason,
		RefundedAmount: &refundAmount,
	}); err != nil {
		return models.PaymentResult{}, err
	}

	s.notifier.Send(ctx, notification.Notification{
		Recipient: payment.ProviderID,
		Type:      "payment_refunded",
		Title:     "Booking refunded",
		Message:   fmt.Sprintf("Booking %d was refunded (%s %s)", bookingID, refundAmount, payment.Currency),
		Metadata:  map[string]interface{}{"booking_id": bookingID, "reason": reason},
	})

	return models.PaymentResult{
		Success:       true,
		Status:        models.PaymentRefunded,
		TransactionID: res.TransactionID,
		Message:       res.Message,
	}, nil
}

// EstimateEarnings previews the commission split a provider would see for a
// gross job amount.
func (s *paymentService) EstimateEarnings(gross decimal.Decimal) (models.CommissionResult, error) {
	return ComputeCommission(gross, s.commissionCfg)
}
