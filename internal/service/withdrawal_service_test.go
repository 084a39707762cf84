package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adilmk/homeserve/internal/apperrors"
	"github.com/adilmk/homeserve/internal/gateway"
	"github.com/adilmk/homeserve/internal/mocks/repository_mocks"
	"github.com/adilmk/homeserve/internal/models"
	"github.com/adilmk/homeserve/internal/notification"
	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type stubPayouts struct {
	res gateway.Result
	err error
}

func (s *stubPayouts) Payout(_ context.Context, _ gateway.PayoutRequest) (gateway.Result, error) {
	return s.res, s.err
}

func mobileDetails() models.Metadata {
	return models.Metadata{"phone_number": "+254700000001"}
}

func newWithdrawalSvc(withdrawalRepo *repository_mocks.MockWithdrawalRepository, walletRepo *repository_mocks.MockWalletRepository, payouts gateway.PayoutProcessor) WithdrawalService {
	return NewWithdrawalService(withdrawalRepo, walletRepo, payouts,
		notification.NewLogNotifier(), decimal.RequireFromString("0.05"), "KES", time.Second)
}

func TestWithdrawalService_Create(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()

	tests := []struct {
		name      string
		amount    decimal.Decimal
		method    models.WithdrawalMethod
		details   models.Metadata
		mockSetup func(m *repository_mocks.MockWithdrawalRepository)
		wantErr   error
	}{
		{
			name:    "successful request with fee deducted",
			amount:  decimal.RequireFromString("200"),
			method:  models.WithdrawalMobileMoney,
			details: mobileDetails(),
			mockSetup: func(m *repository_mocks.MockWithdrawalRepository) {
				m.EXPECT().CreateWithHold(ctx, gomock.AssignableToTypeOf(&models.WithdrawalRequest{})).DoAndReturn(
					func(_ context.Context, wd *models.WithdrawalRequest) error {
						assert.True(t, wd.Amount.Equal(decimal.RequireFromString("200")))
						assert.True(t, wd.Fee.Equal(decimal.RequireFromString("10.00")), "fee %s", wd.Fee)
						assert.True(t, wd.NetAmount.Equal(decimal.RequireFromString("190.00")))
						assert.NotEmpty(t, wd.Reference)
						wd.ID = 1
						wd.Status = models.WithdrawalPending
						return nil
					}).Times(1)
			},
		},
		{
			name:    "insufficient funds persists nothing",
			amount:  decimal.RequireFromString("5000"),
			method:  models.WithdrawalMobileMoney,
			details: mobileDetails(),
			mockSetup: func(m *repository_mocks.MockWithdrawalRepository) {
				m.EXPECT().CreateWithHold(ctx, gomock.Any()).
					Return(apperrors.ErrInsufficientFunds).Times(1)
			},
			wantErr: apperrors.ErrInsufficientFunds,
		},
		{
			name:      "zero amount",
			amount:    decimal.Zero,
			method:    models.WithdrawalMobileMoney,
			details:   mobileDetails(),
			mockSetup: func(m *repository_mocks.MockWithdrawalRepository) {},
			wantErr:   apperrors.ErrInvalidAmount,
		},
		{
			name:      "mobile money without phone number",
			amount:    decimal.RequireFromString("200"),
			method:    models.WithdrawalMobileMoney,
			details:   models.Metadata{},
			mockSetup: func(m *repository_mocks.MockWithdrawalRepository) {},
			wantErr:   apperrors.ErrMissingPayoutDetails,
		},
		{
			name:      "bank transfer without bank name",
			amount:    decimal.RequireFromString("200"),
			method:    models.WithdrawalBankTransfer,
			details:   models.Metadata{"account_number": "0011223344"},
			mockSetup: func(m *repository_mocks.MockWithdrawalRepository) {},
			wantErr:   apperrors.ErrMissingPayoutDetails,
		},
		{
			name:      "mobile money with non-string phone number",
			amount:    decimal.RequireFromString("200"),
			method:    models.WithdrawalMobileMoney,
			details:   models.Metadata{"phone_number": 254700000001},
			mockSetup: func(m *repository_mocks.MockWithdrawalRepository) {},
			wantErr:   apperrors.ErrMissingPayoutDetails,
		},
		{
			name:      "unknown method",
			amount:    decimal.RequireFromString("200"),
			method:    models.WithdrawalMethod("cheque"),
			details:   models.Metadata{},
			mockSetup: func(m *repository_mocks.MockWithdrawalRepository) {},
			wantErr:   apperrors.ErrUnsupportedMethod,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withdrawalRepo := repository_mocks.NewMockWithdrawalRepository(ctrl)
			walletRepo := repository_mocks.NewMockWalletRepository(ctrl)
			tt.mockSetup(withdrawalRepo)

			svc := newWithdrawalSvc(withdrawalRepo, walletRepo, &stubPayouts{})
			_, err := svc.Create(ctx, 7, tt.amount, tt.method, tt.details)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWithdrawalService_Approve(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()

	claimed := models.WithdrawalRequest{
		ID:         3,
		ProviderID: 7,
		Amount:     decimal.RequireFromString("200"),
		Fee:        decimal.RequireFromString("10.00"),
		NetAmount:  decimal.RequireFromString("190.00"),
		Currency:   "KES",
		Method:     models.WithdrawalMobileMoney,
		Details:    mobileDetails(),
		Reference:  "WDR-20250101T000000-abc",
		Status:     models.WithdrawalApproved,
	}

	tests := []struct {
		name       string
		payouts    *stubPayouts
		mockSetup  func(m *repository_mocks.MockWithdrawalRepository)
		wantErr    error
		wantStatus models.WithdrawalStatus
	}{
		{
			name:    "payout succeeds and completes the request",
			payouts: &stubPayouts{res: gateway.Result{Success: true, TransactionID: "PO-1"}},
			mockSetup: func(m *repository_mocks.MockWithdrawalRepository) {
				m.EXPECT().Claim(ctx, int64(3), int64(99), "ok").Return(claimed, nil).Times(1)
				m.EXPECT().Complete(ctx, int64(3), "PO-1").DoAndReturn(
					func(_ context.Context, id int64, payoutRef string) (models.WithdrawalRequest, error) {
						done := claimed
						done.Status = models.WithdrawalCompleted
						done.PayoutReference = &payoutRef
						return done, nil
					}).Times(1)
			},
			wantStatus: models.WithdrawalCompleted,
		},
		{
			name:    "payout decline releases the hold and fails the request",
			payouts: &stubPayouts{res: gateway.Result{Success: false, Message: "account blocked"}},
			mockSetup: func(m *repository_mocks.MockWithdrawalRepository) {
				m.EXPECT().Claim(ctx, int64(3), int64(99), "ok").Return(claimed, nil).Times(1)
				m.EXPECT().Fail(ctx, int64(3), "account blocked").DoAndReturn(
					func(_ context.Context, id int64, _ string) (models.WithdrawalRequest, error) {
						failed := claimed
						failed.Status = models.WithdrawalFailed
						return failed, nil
					}).Times(1)
			},
			wantStatus: models.WithdrawalFailed,
		},
		{
			name:    "payout gateway error fails the request",
			payouts: &stubPayouts{err: errors.New("gateway down")},
			mockSetup: func(m *repository_mocks.MockWithdrawalRepository) {
				m.EXPECT().Claim(ctx, int64(3), int64(99), "ok").Return(claimed, nil).Times(1)
				m.EXPECT().Fail(ctx, int64(3), "payout gateway unavailable").DoAndReturn(
					func(_ context.Context, id int64, _ string) (models.WithdrawalRequest, error) {
						failed := claimed
						failed.Status = models.WithdrawalFailed
						return failed, nil
					}).Times(1)
			},
			wantStatus: models.WithdrawalFailed,
		},
		{
			name:    "second approve loses the claim",
			payouts: &stubPayouts{},
			mockSetup: func(m *repository_mocks.MockWithdrawalRepository) {
				m.EXPECT().Claim(ctx, int64(3), int64(99), "ok").
					Return(models.WithdrawalRequest{}, apperrors.ErrInvalidStateTransition).Times(1)
			},
			wantErr: apperrors.ErrInvalidStateTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withdrawalRepo := repository_mocks.NewMockWithdrawalRepository(ctrl)
			walletRepo := repository_mocks.NewMockWalletRepository(ctrl)
			tt.mockSetup(withdrawalRepo)

			svc := newWithdrawalSvc(withdrawalRepo, walletRepo, tt.payouts)
			got, err := svc.Approve(ctx, 3, 99, "ok")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
		})
	}
}

func TestWithdrawalService_Reject(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()

	tests := []struct {
		name      string
		reason    string
		mockSetup func(m *repository_mocks.MockWithdrawalRepository)
		wantErr   error
	}{
		{
			name:   "rejection releases the hold",
			reason: "suspicious payout details",
			mockSetup: func(m *repository_mocks.MockWithdrawalRepository) {
				m.EXPECT().Reject(ctx, int64(3), int64(99), "suspicious payout details", "").DoAndReturn(
					func(_ context.Context, id, adminID int64, reason, _ string) (models.WithdrawalRequest, error) {
						return models.WithdrawalRequest{
							ID:              id,
							ProviderID:      7,
							Status:          models.WithdrawalRejected,
							RejectionReason: &reason,
						}, nil
					}).Times(1)
			},
		},
		{
			name:      "empty reason rejected before any state change",
			reason:    "   ",
			mockSetup: func(m *repository_mocks.MockWithdrawalRepository) {},
			wantErr:   apperrors.ErrRejectionReasonEmpty,
		},
		{
			name:   "non-pending request",
			reason: "too late",
			mockSetup: func(m *repository_mocks.MockWithdrawalRepository) {
				m.EXPECT().Reject(ctx, int64(3), int64(99), "too late", "").
					Return(models.WithdrawalRequest{}, apperrors.ErrInvalidStateTransition).Times(1)
			},
			wantErr: apperrors.ErrInvalidStateTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withdrawalRepo := repository_mocks.NewMockWithdrawalRepository(ctrl)
			walletRepo := repository_mocks.NewMockWalletRepository(ctrl)
			tt.mockSetup(withdrawalRepo)

			svc := newWithdrawalSvc(withdrawalRepo, walletRepo, &stubPayouts{})
			got, err := svc.Reject(ctx, 3, 99, tt.reason, "")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, models.WithdrawalRejected, got.Status)
			if assert.NotNil(t, got.RejectionReason) {
				assert.Equal(t, tt.reason, *got.RejectionReason)
			}
		})
	}
}

func TestWithdrawalService_Cancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()

	withdrawalRepo := repository_mocks.NewMockWithdrawalRepository(ctrl)
	walletRepo := repository_mocks.NewMockWalletRepository(ctrl)

	withdrawalRepo.EXPECT().Cancel(ctx, int64(3), int64(8)).
		Return(models.WithdrawalRequest{}, apperrors.ErrNotRequestOwner).Times(1)

	svc := newWithdrawalSvc(withdrawalRepo, walletRepo, &stubPayouts{})
	_, err := svc.Cancel(ctx, 3, 8)
	assert.ErrorIs(t, err, apperrors.ErrNotRequestOwner)
}
