package service

import (
	"context"
	"fmt"
	"strings"
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

type WithdrawalService interface {
	Create(ctx context.Context, providerID int64, amount decimal.Decimal, method models.WithdrawalMethod, details models.Metadata) (models.WithdrawalRequest, error)
	Approve(ctx context.Context, id, adminID int64, notes string) (models.WithdrawalRequest, error)
	Reject(ctx context.Context, id, adminID int64, reason, notes string) (models.WithdrawalRequest, error)
	Cancel(ctx context.Context, id, providerID int64) (models.WithdrawalRequest, error)
	GetByID(ctx context.Context, id int64) (models.WithdrawalRequest, error)
	ListByProvider(ctx context.Context, providerID int64, limit, offset int) ([]models.WithdrawalRequest, error)
	GetStats(ctx context.Context) (models.WithdrawalStats, error)
}

type withdrawalService struct {
	withdrawalRepo repository.WithdrawalRepository
	walletRepo     repository.WalletRepository
	payouts        gateway.PayoutProcessor
	notifier       notification.Notifier
	feeRate        decimal.Decimal
	currency       string
	gatewayTimeout time.Duration
}

func NewWithdrawalService(
	withdrawalRepo repository.WithdrawalRepository,
	walletRepo repository.WalletRepository,
	payouts gateway.PayoutProcessor,
	notifier notification.Notifier,
	feeRate decimal.Decimal,
	currency string,
	gatewayTimeout time.Duration,
) WithdrawalService {
	return &withdrawalService{
		withdrawalRepo: withdrawalRepo,
		walletRepo:     walletRepo,
		payouts:        payouts,
		notifier:       notifier,
		feeRate:        feeRate,
		currency:       currency,
		gatewayTimeout: gatewayTimeout,
	}
}

// Create validates the payout method details, computes the flat platform fee
// and reserves the requested amount. The hold and the request row are one
// transaction, so overlapping pending requests can never oversubscribe a
// balance and a failed sufficiency check persists nothing.
func (s *withdrawalService) Create(ctx context.Context, providerID int64, amount decimal.Decimal, method models.WithdrawalMethod, details models.Metadata) (models.WithdrawalRequest, error) {
	if !amount.IsPositive() {
		return models.WithdrawalRequest{}, fmt.Errorf("withdrawal of %s: %w", amount, apperrors.ErrInvalidAmount)
	}
	if err := validatePayoutDetails(method, details); err != nil {
		return models.WithdrawalRequest{}, err
	}

	amount = amount.Round(moneyScale)
	fee := amount.Mul(s.feeRate).Round(moneyScale)

	wd := models.WithdrawalRequest{
		ProviderID: providerID,
		Amount:     amount,
		Fee:        fee,
		NetAmount:  amount.Sub(fee),
		Currency:   s.currency,
		Method:     method,
		Details:    details,
		Reference:  utils.NewReference("WDR"),
	}

	if err := s.withdrawalRepo.CreateWithHold(ctx, &wd); err != nil {
		return models.WithdrawalRequest{}, err
	}

	logger.Log.Info("withdrawal request created",
		zap.Int64("provider", providerID),
		zap.String("amount", amount.String()),
		zap.String("reference", wd.Reference),
	)

	s.notifier.Send(ctx, notification.Notification{
		Recipient: providerID,
		Type:      "withdrawal_requested",
		Title:     "Withdrawal requested",
		Message:   fmt.Sprintf("Your withdrawal of %s %s is pending review", amount, s.currency),
		Metadata:  map[string]interface{}{"reference": wd.Reference},
	})

	return wd, nil
}

// Approve claims the pending request, runs the payout and finalizes the
// outcome: completed consumes the hold, a payout failure releases it and
// parks the request as failed. A second approve loses the claim and fails
// with ErrInvalidStateTransition before any money moves.
func (s *withdrawalService) Approve(ctx context.Context, id, adminID int64, notes string) (models.WithdrawalRequest, error) {
	wd, err := s.withdrawalRepo.Claim(ctx, id, adminID, notes)
	if err != nil {
		return models.WithdrawalRequest{}, err
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	res, err := s.payouts.Payout(gwCtx, gateway.PayoutRequest{
		Reference: wd.Reference,
		Amount:    wd.NetAmount,
		Currency:  wd.Currency,
		Method:    wd.Method,
		Details:   wd.Details,
	})
	if err != nil {
		logger.Log.Error("payout gateway call failed",
			zap.Int64("withdrawal", id), zap.Error(err))
		return s.withdrawalRepo.Fail(ctx, id, "payout gateway unavailable")
	}
	if !res.Success {
		logger.Log.Warn("payout declined",
			zap.Int64("withdrawal", id), zap.String("message", res.Message))
		return s.withdrawalRepo.Fail(ctx, id, res.Message)
	}

	wd, err = s.withdrawalRepo.Complete(ctx, id, res.TransactionID)
	if err != nil {
		return models.WithdrawalRequest{}, err
	}

	s.notifier.Send(ctx, notification.Notification{
		Recipient: wd.ProviderID,
		Type:      "withdrawal_completed",
		Title:     "Withdrawal completed",
		Message:   fmt.Sprintf("Your withdrawal %s was paid out (%s %s net)", wd.Reference, wd.NetAmount, wd.Currency),
		Metadata:  map[string]interface{}{"reference": wd.Reference, "payout_reference": res.TransactionID},
	})

	return wd, nil
}

func (s *withdrawalService) Reject(ctx context.Context, id, adminID int64, reason, notes string) (models.WithdrawalRequest, error) {
	if strings.TrimSpace(reason) == "" {
		return models.WithdrawalRequest{}, apperrors.ErrRejectionReasonEmpty
	}

	wd, err := s.withdrawalRepo.Reject(ctx, id, adminID, reason, notes)
	if err != nil {
		return models.WithdrawalRequest{}, err
	}

	s.notifier.Send(ctx, notification.Notification{
		Recipient: wd.ProviderID,
		Type:      "withdrawal_rejected",
		Title:     "Withdrawal rejected",
		Message:   fmt.Sprintf("Your withdrawal %s was rejected: %s", wd.Reference, reason),
		Metadata:  map[string]interface{}{"reference": wd.Reference},
	})

	return wd, nil
}

func (s *withdrawalService) Cancel(ctx context.Context, id, providerID int64) (models.WithdrawalRequest, error) {
	return s.withdrawalRepo.Cancel(ctx, id, providerID)
}

func (s *withdrawalService) GetByID(ctx context.Context, id int64) (models.WithdrawalRequest, error) {
	return s.withdrawalRepo.GetByID(ctx, id)
}

func (s *withdrawalService) ListByProvider(ctx context.Context, providerID int64, limit, offset int) ([]models.WithdrawalRequest, error) {
	return s.withdrawalRepo.ListByProvider(ctx, providerID, limit, offset)
}

func (s *withdrawalService) GetStats(ctx context.Context) (models.WithdrawalStats, error) {
	return s.withdrawalRepo.GetStats(ctx)
}

func validatePayoutDetails(method models.WithdrawalMethod, details models.Metadata) error {
	switch method {
	case models.WithdrawalBankTransfer:
		if !hasDetail(details, "account_number") || !hasDetail(details, "bank_name") {
			return fmt.Errorf("bank transfer needs account_number and bank_name: %w", apperrors.ErrMissingPayoutDetails)
		}
	case models.WithdrawalMobileMoney:
		if !hasDetail(details, "phone_number") {
			return fmt.Errorf("mobile money needs phone_number: %w", apperrors.ErrMissingPayoutDetails)
		}
	default:
		return fmt.Errorf("method %s: %w", method, apperrors.ErrUnsupportedMethod)
	}
	return nil
}

func hasDetail(details models.Metadata, key string) bool {
	str, ok := details[key].(string)
	return ok && strings.TrimSpace(str) != ""
}
