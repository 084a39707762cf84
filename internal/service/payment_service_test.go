package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/adilmk/homeserve/internal/apperrors"
	"github.com/adilmk/homeserve/internal/gateway"
	"github.com/adilmk/homeserve/internal/mocks/repository_mocks"
	"github.com/adilmk/homeserve/internal/mocks/service_mocks"
	"github.com/adilmk/homeserve/internal/models"
	"github.com/adilmk/homeserve/internal/notification"
	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type stubProcessor struct {
	chargeRes gateway.Result
	chargeErr error
	refundRes gateway.Result
	refundErr error
}

func (s *stubProcessor) Charge(_ context.Context, _ gateway.ChargeRequest) (gateway.Result, error) {
	return s.chargeRes, s.chargeErr
}

func (s *stubProcessor) Refund(_ context.Context, _ gateway.RefundRequest) (gateway.Result, error) {
	return s.refundRes, s.refundErr
}

func flatCommission(rate string) models.CommissionConfig {
	r := decimal.RequireFromString(rate)
	return models.CommissionConfig{Rate: &r}
}

func testCharge() models.BookingCharge {
	return models.BookingCharge{
		BookingID:  42,
		ProviderID: 7,
		Amount:     decimal.RequireFromString("500"),
		Currency:   "KES",
		Method:     models.PaymentMobileMoney,
	}
}

func TestPaymentService_ProcessPayment(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()

	tests := []struct {
		name        string
		amount      decimal.Decimal
		method      models.PaymentMethod
		processor   *stubProcessor
		mockSetup   func(m *repository_mocks.MockPaymentRepository)
		wantErr     error
		wantSuccess bool
		wantStatus  models.PaymentStatus
	}{
		{
			name:   "mobile money settles as paid",
			amount: decimal.RequireFromString("500"),
			method: models.PaymentMobileMoney,
			processor: &stubProcessor{chargeRes: gateway.Result{
				Success: true, TransactionID: "MMC-1", Status: string(models.PaymentPaid),
			}},
			mockSetup: func(m *repository_mocks.MockPaymentRepository) {
				m.EXPECT().Create(ctx, gomock.AssignableToTypeOf(&models.BookingPayment{})).DoAndReturn(
					func(_ context.Context, p *models.BookingPayment) error {
						assert.Equal(t, int64(42), p.BookingID)
						assert.Equal(t, models.PaymentPending, p.Status)
						return nil
					}).Times(1)
				m.EXPECT().UpdateStatus(ctx, gomock.AssignableToTypeOf(models.PaymentStatusUpdate{})).DoAndReturn(
					func(_ context.Context, upd models.PaymentStatusUpdate) (models.BookingPayment, error) {
						assert.Equal(t, models.PaymentPending, upd.ExpectStatus)
						assert.Equal(t, models.PaymentPaid, upd.NewStatus)
						assert.NotNil(t, upd.PaidAt)
						return models.BookingPayment{BookingID: 42, Status: models.PaymentPaid}, nil
					}).Times(1)
			},
			wantSuccess: true,
			wantStatus:  models.PaymentPaid,
		},
		{
			name:   "gateway decline records failed payment",
			amount: decimal.RequireFromString("500"),
			method: models.PaymentMobileMoney,
			processor: &stubProcessor{chargeRes: gateway.Result{
				Success: false, Status: string(models.PaymentFailed), Message: "declined",
			}},
			mockSetup: func(m *repository_mocks.MockPaymentRepository) {
				m.EXPECT().Create(ctx, gomock.Any()).Return(nil).Times(1)
				m.EXPECT().UpdateStatus(ctx, gomock.Any()).DoAndReturn(
					func(_ context.Context, upd models.PaymentStatusUpdate) (models.BookingPayment, error) {
						assert.Equal(t, models.PaymentFailed, upd.NewStatus)
						return models.BookingPayment{BookingID: 42, Status: models.PaymentFailed}, nil
					}).Times(1)
			},
			wantSuccess: false,
			wantStatus:  models.PaymentFailed,
		},
		{
			name:      "amount mismatch",
			amount:    decimal.RequireFromString("400"),
			method:    models.PaymentMobileMoney,
			processor: &stubProcessor{},
			mockSetup: func(m *repository_mocks.MockPaymentRepository) {},
			wantErr:   apperrors.ErrAmountMismatch,
		},
		{
			name:      "method mismatch",
			amount:    decimal.RequireFromString("500"),
			method:    models.PaymentCash,
			processor: &stubProcessor{},
			mockSetup: func(m *repository_mocks.MockPaymentRepository) {},
			wantErr:   apperrors.ErrMethodMismatch,
		},
		{
			name:      "zero amount",
			amount:    decimal.Zero,
			method:    models.PaymentMobileMoney,
			processor: &stubProcessor{},
			mockSetup: func(m *repository_mocks.MockPaymentRepository) {},
			wantErr:   apperrors.ErrInvalidAmount,
		},
		{
			name:      "duplicate payment",
			amount:    decimal.RequireFromString("500"),
			method:    models.PaymentMobileMoney,
			processor: &stubProcessor{},
			mockSetup: func(m *repository_mocks.MockPaymentRepository) {
				m.EXPECT().Create(ctx, gomock.Any()).Return(apperrors.ErrPaymentExists).Times(1)
			},
			wantErr: apperrors.ErrPaymentExists,
		},
		{
			name:   "gateway error settles as failed result",
			amount: decimal.RequireFromString("500"),
			method: models.PaymentMobileMoney,
			processor: &stubProcessor{
				chargeErr: errors.New("gateway down"),
			},
			mockSetup: func(m *repository_mocks.MockPaymentRepository) {
				m.EXPECT().Create(ctx, gomock.Any()).Return(nil).Times(1)
				m.EXPECT().UpdateStatus(ctx, gomock.Any()).
					Return(models.BookingPayment{BookingID: 42, Status: models.PaymentFailed}, nil).Times(1)
			},
			wantSuccess: false,
			wantStatus:  models.PaymentFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paymentRepo := repository_mocks.NewMockPaymentRepository(ctrl)
			walletSvc := service_mocks.NewMockWalletService(ctrl)
			tt.mockSetup(paymentRepo)

			svc := NewPaymentService(paymentRepo, walletSvc,
				map[models.PaymentMethod]gateway.Processor{
					models.PaymentMobileMoney: tt.processor,
					models.PaymentCash:        gateway.NewCashProcessor(),
				},
				flatCommission("0.15"), notification.NewLogNotifier(), time.Second)

			result, err := svc.ProcessPayment(ctx, testCharge(), tt.amount, tt.method, nil)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantSuccess, result.Success)
			assert.Equal(t, tt.wantStatus, result.Status)
		})
	}
}

func TestPaymentService_ProcessPayment_CashStaysPending(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()

	paymentRepo := repository_mocks.NewMockPaymentRepository(ctrl)
	walletSvc := service_mocks.NewMockWalletService(ctrl)

	// Pending result from the cash processor must not touch the row again.
	paymentRepo.EXPECT().Create(ctx, gomock.Any()).Return(nil).Times(1)

	charge := testCharge()
	charge.Method = models.PaymentCash

	svc := NewPaymentService(paymentRepo, walletSvc,
		map[models.PaymentMethod]gateway.Processor{models.PaymentCash: gateway.NewCashProcessor()},
		flatCommission("0.15"), notification.NewLogNotifier(), time.Second)

	result, err := svc.ProcessPayment(ctx, charge, charge.Amount, models.PaymentCash, nil)
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentPending, result.Status)
}

func TestPaymentService_ConfirmCashPayment(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()

	tests := []struct {
		name      string
		mockSetup func(m *repository_mocks.MockPaymentRepository)
		wantErr   error
	}{
		{
			name: "pending cash payment confirmed",
			mockSetup: func(m *repository_mocks.MockPaymentRepository) {
				m.EXPECT().GetByBooking(ctx, int64(42)).
					Return(models.BookingPayment{BookingID: 42, Method: models.PaymentCash, Status: models.PaymentPending}, nil).Times(1)
				m.EXPECT().UpdateStatus(ctx, gomock.Any()).DoAndReturn(
					func(_ context.Context, upd models.PaymentStatusUpdate) (models.BookingPayment, error) {
						assert.Equal(t, models.PaymentPending, upd.ExpectStatus)
						assert.Equal(t, models.PaymentPaid, upd.NewStatus)
						return models.BookingPayment{BookingID: 42, Status: models.PaymentPaid}, nil
					}).Times(1)
			},
		},
		{
			name: "non-cash payment rejected",
			mockSetup: func(m *repository_mocks.MockPaymentRepository) {
				m.EXPECT().GetByBooking(ctx, int64(42)).
					Return(models.BookingPayment{BookingID: 42, Method: models.PaymentMobileMoney, Status: models.PaymentPending}, nil).Times(1)
			},
			wantErr: apperrors.ErrMethodMismatch,
		},
		{
			name: "payment not found",
			mockSetup: func(m *repository_mocks.MockPaymentRepository) {
				m.EXPECT().GetByBooking(ctx, int64(42)).
					Return(models.BookingPayment{}, apperrors.ErrPaymentNotFound).Times(1)
			},
			wantErr: apperrors.ErrPaymentNotFound,
		},
		{
			name: "already paid",
			mockSetup: func(m *repository_mocks.MockPaymentRepository) {
				m.EXPECT().GetByBooking(ctx, int64(42)).
					Return(models.BookingPayment{BookingID: 42, Method: models.PaymentCash, Status: models.PaymentPaid}, nil).Times(1)
				m.EXPECT().UpdateStatus(ctx, gomock.Any()).
					Return(models.BookingPayment{}, apperrors.ErrInvalidStateTransition).Times(1)
			},
			wantErr: apperrors.ErrInvalidStateTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paymentRepo := repository_mocks.NewMockPaymentRepository(ctrl)
			walletSvc := service_mocks.NewMockWalletService(ctrl)
			tt.mockSetup(paymentRepo)

			svc := NewPaymentService(paymentRepo, walletSvc, nil,
				flatCommission("0.15"), notification.NewLogNotifier(), time.Second)

			_, err := svc.ConfirmCashPayment(ctx, 42)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPaymentService_ReleaseJobPayment(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()

	releaseRef := "TXN-20250101T000000-abc"
	claimErr := errors.New("connection reset")

	tests := []struct {
		name      string
		mockSetup func(pr *repository_mocks.MockPaymentRepository, ws *service_mocks.MockWalletService)
		wantErr   error
	}{
		{
			name: "paid booking released with commission deducted",
			mockSetup: func(pr *repository_mocks.MockPaymentRepository, ws *service_mocks.MockWalletService) {
				pr.EXPECT().GetByBooking(ctx, int64(42)).
					Return(models.BookingPayment{
						BookingID:  42,
						ProviderID: 7,
						Amount:     decimal.RequireFromString("500"),
						Currency:   "KES",
						Status:     models.PaymentPaid,
					}, nil).Times(1)
				claim := pr.EXPECT().ClaimRelease(ctx, int64(42), gomock.Any(), gomock.Any()).DoAndReturn(
					func(_ context.Context, _ int64, reference string, amount decimal.Decimal) (models.BookingPayment, error) {
						assert.True(t, strings.HasPrefix(reference, "REL-"), "reference %s", reference)
						assert.True(t, amount.Equal(decimal.RequireFromString("425.00")))
						return models.BookingPayment{}, nil
					}).Times(1)
				ws.EXPECT().Credit(ctx, int64(7), gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
					func(_ context.Context, _ int64, amount decimal.Decimal, _ string, metadata models.Metadata) (models.Transaction, error) {
						assert.True(t, amount.Equal(decimal.RequireFromString("425.00")), "net %s", amount)
						assert.Equal(t, "75.00", metadata["platform_fee"])
						return models.Transaction{Reference: releaseRef, Currency: "KES"}, nil
					}).Times(1).After(claim)
			},
		},
		{
			name: "marker claim failure blocks the credit",
			mockSetup: func(pr *repository_mocks.MockPaymentRepository, ws *service_mocks.MockWalletService) {
				pr.EXPECT().GetByBooking(ctx, int64(42)).
					Return(models.BookingPayment{
						BookingID:  42,
						ProviderID: 7,
						Amount:     decimal.RequireFromString("500"),
						Currency:   "KES",
						Status:     models.PaymentPaid,
					}, nil).Times(1)
				pr.EXPECT().ClaimRelease(ctx, int64(42), gomock.Any(), gomock.Any()).
					Return(models.BookingPayment{}, claimErr).Times(1)
			},
			wantErr: claimErr,
		},
		{
			name: "failed credit clears the marker",
			mockSetup: func(pr *repository_mocks.MockPaymentRepository, ws *service_mocks.MockWalletService) {
				pr.EXPECT().GetByBooking(ctx, int64(42)).
					Return(models.BookingPayment{
						BookingID:  42,
						ProviderID: 7,
						Amount:     decimal.RequireFromString("500"),
						Currency:   "KES",
						Status:     models.PaymentPaid,
					}, nil).Times(1)
				pr.EXPECT().ClaimRelease(ctx, int64(42), gomock.Any(), gomock.Any()).
					Return(models.BookingPayment{}, nil).Times(1)
				ws.EXPECT().Credit(ctx, int64(7), gomock.Any(), gomock.Any(), gomock.Any()).
					Return(models.Transaction{}, apperrors.ErrWalletNotFound).Times(1)
				pr.EXPECT().ClearRelease(ctx, int64(42), gomock.Any()).Return(nil).Times(1)
			},
			wantErr: apperrors.ErrWalletNotFound,
		},
		{
			name: "pending booking cannot be released",
			mockSetup: func(pr *repository_mocks.MockPaymentRepository, ws *service_mocks.MockWalletService) {
				pr.EXPECT().GetByBooking(ctx, int64(42)).
					Return(models.BookingPayment{BookingID: 42, Status: models.PaymentPending}, nil).Times(1)
			},
			wantErr: apperrors.ErrInvalidStateTransition,
		},
		{
			name: "double release blocked",
			mockSetup: func(pr *repository_mocks.MockPaymentRepository, ws *service_mocks.MockWalletService) {
				pr.EXPECT().GetByBooking(ctx, int64(42)).
					Return(models.BookingPayment{
						BookingID:        42,
						Status:           models.PaymentPaid,
						ReleaseReference: &releaseRef,
					}, nil).Times(1)
			},
			wantErr: apperrors.ErrInvalidStateTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paymentRepo := repository_mocks.NewMockPaymentRepository(ctrl)
			walletSvc := service_mocks.NewMockWalletService(ctrl)
			tt.mockSetup(paymentRepo, walletSvc)

			svc := NewPaymentService(paymentRepo, walletSvc, nil,
				flatCommission("0.15"), notification.NewLogNotifier(), time.Second)

			_, err := svc.ReleaseJobPayment(ctx, 42)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// A release whose marker write fails must surface the error, and retrying
// until one attempt sticks credits the provider exactly once.
func TestPaymentService_ReleaseJobPayment_CreditedOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()

	paymentRepo := repository_mocks.NewMockPaymentRepository(ctrl)
	walletSvc := service_mocks.NewMockWalletService(ctrl)

	unmarked := models.BookingPayment{
		BookingID:  42,
		ProviderID: 7,
		Amount:     decimal.RequireFromString("500"),
		Currency:   "KES",
		Status:     models.PaymentPaid,
	}
	ref := "REL-20250101T000000-abc"
	marked := unmarked
	marked.ReleaseReference = &ref

	dbErr := errors.New("write conflict")

	paymentRepo.EXPECT().GetByBooking(ctx, int64(42)).Return(unmarked, nil).Times(1)
	paymentRepo.EXPECT().ClaimRelease(ctx, int64(42), gomock.Any(), gomock.Any()).
		Return(models.BookingPayment{}, dbErr).Times(1)

	paymentRepo.EXPECT().GetByBooking(ctx, int64(42)).Return(unmarked, nil).Times(1)
	paymentRepo.EXPECT().ClaimRelease(ctx, int64(42), gomock.Any(), gomock.Any()).
		Return(models.BookingPayment{}, nil).Times(1)

	paymentRepo.EXPECT().GetByBooking(ctx, int64(42)).Return(marked, nil).Times(1)

	walletSvc.EXPECT().Credit(ctx, int64(7), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(models.Transaction{Reference: "TXN-1", Currency: "KES"}, nil).Times(1)

	svc := NewPaymentService(paymentRepo, walletSvc, nil,
		flatCommission("0.15"), notification.NewLogNotifier(), time.Second)

	_, err := svc.ReleaseJobPayment(ctx, 42)
	assert.ErrorIs(t, err, dbErr)

	_, err = svc.ReleaseJobPayment(ctx, 42)
	assert.NoError(t, err)

	_, err = svc.ReleaseJobPayment(ctx, 42)
	assert.ErrorIs(t, err, apperrors.ErrInvalidStateTransition)
}

func TestPaymentService_ProcessRefund(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()

	releaseRef := "TXN-20250101T000000-abc"
	releasedNet := decimal.RequireFromString("425.00")
	gwTxn := "MMC-1"

	paidPayment := func() models.BookingPayment {
		return models.BookingPayment{
			BookingID:     42,
			ProviderID:    7,
			Amount:        decimal.RequireFromString("500"),
			Currency:      "KES",
			Method:        models.PaymentMobileMoney,
			Status:        models.PaymentPaid,
			TransactionID: &gwTxn,
		}
	}

	tests := []struct {
		name        string
		amount      decimal.Decimal
		processor   *stubProcessor
		mockSetup   func(pr *repository_mocks.MockPaymentRepository, ws *service_mocks.MockWalletService)
		wantErr     error
		wantSuccess bool
	}{
		{
			name:      "full refund of released payment reverses provider credit",
			amount:    decimal.RequireFromString("500"),
			processor: &stubProcessor{refundRes: gateway.Result{Success: true, TransactionID: "MMR-1", Status: string(models.PaymentRefunded)}},
			mockSetup: func(pr *repository_mocks.MockPaymentRepository, ws *service_mocks.MockWalletService) {
				p := paidPayment()
				p.ReleaseReference = &releaseRef
				p.ReleasedAmount = &releasedNet
				pr.EXPECT().GetByBooking(ctx, int64(42)).Return(p, nil).Times(1)
				ws.EXPECT().Debit(ctx, int64(7), gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
					func(_ context.Context, _ int64, amount decimal.Decimal, _ string, _ models.Metadata) (models.Transaction, error) {
						assert.True(t, amount.Equal(releasedNet), "reversal %s", amount)
						return models.Transaction{}, nil
					}).Times(1)
				pr.EXPECT().UpdateStatus(ctx, gomock.Any()).DoAndReturn(
					func(_ context.Context, upd models.PaymentStatusUpdate) (models.BookingPayment, error) {
						assert.Equal(t, models.PaymentRefunded, upd.NewStatus)
						return models.BookingPayment{}, nil
					}).Times(1)
			},
			wantSuccess: true,
		},
		{
			name:      "refund before release skips wallet reversal",
			amount:    decimal.RequireFromString("500"),
			processor: &stubProcessor{refundRes: gateway.Result{Success: true, Status: string(models.PaymentRefunded)}},
			mockSetup: func(pr *repository_mocks.MockPaymentRepository, ws *service_mocks.MockWalletService) {
				pr.EXPECT().GetByBooking(ctx, int64(42)).Return(paidPayment(), nil).Times(1)
				pr.EXPECT().UpdateStatus(ctx, gomock.Any()).Return(models.BookingPayment{}, nil).Times(1)
			},
			wantSuccess: true,
		},
		{
			name:      "refund exceeds payment",
			amount:    decimal.RequireFromString("600"),
			processor: &stubProcessor{},
			mockSetup: func(pr *repository_mocks.MockPaymentRepository, ws *service_mocks.MockWalletService) {
				pr.EXPECT().GetByBooking(ctx, int64(42)).Return(paidPayment(), nil).Times(1)
			},
			wantErr: apperrors.ErrRefundExceedsPayment,
		},
		{
			name:      "refund of unpaid payment",
			amount:    decimal.RequireFromString("500"),
			processor: &stubProcessor{},
			mockSetup: func(pr *repository_mocks.MockPaymentRepository, ws *service_mocks.MockWalletService) {
				p := paidPayment()
				p.Status = models.PaymentPending
				pr.EXPECT().GetByBooking(ctx, int64(42)).Return(p, nil).Times(1)
			},
			wantErr: apperrors.ErrInvalidStateTransition,
		},
		{
			name:      "gateway decline leaves payment paid",
			amount:    decimal.RequireFromString("500"),
			processor: &stubProcessor{refundRes: gateway.Result{Success: false, Message: "cannot refund"}},
			mockSetup: func(pr *repository_mocks.MockPaymentRepository, ws *service_mocks.MockWalletService) {
				pr.EXPECT().GetByBooking(ctx, int64(42)).Return(paidPayment(), nil).Times(1)
			},
			wantSuccess: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paymentRepo := repository_mocks.NewMockPaymentRepository(ctrl)
			walletSvc := service_mocks.NewMockWalletService(ctrl)
			tt.mockSetup(paymentRepo, walletSvc)

			svc := NewPaymentService(paymentRepo, walletSvc,
				map[models.PaymentMethod]gateway.Processor{models.PaymentMobileMoney: tt.processor},
				flatCommission("0.15"), notification.NewLogNotifier(), time.Second)

			result, err := svc.ProcessRefund(ctx, 42, tt.amount, "customer complaint")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantSuccess, result.Success)
		})
	}
}

func TestPaymentService_EstimateEarnings(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := NewPaymentService(
		repository_mocks.NewMockPaymentRepository(ctrl),
		service_mocks.NewMockWalletService(ctrl),
		nil, flatCommission("0.15"), notification.NewLogNotifier(), time.Second)

	got, err := svc.EstimateEarnings(decimal.RequireFromString("500"))
	assert.NoError(t, err)
	assert.True(t, got.Commission.Equal(decimal.RequireFromString("75.00")))
	assert.True(t, got.NetAmount.Equal(decimal.RequireFromString("425.00")))

	_, err = svc.EstimateEarnings(decimal.RequireFromString("-1"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidAmount)
}
