package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/adilmk/homeserve/internal/apperrors"
	"github.com/adilmk/homeserve/internal/logger"
	"github.com/adilmk/homeserve/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const pgUniqueViolation = "23505"

type PaymentRepository interface {
	Create(ctx context.Context, p *models.BookingPayment) error
	GetByBooking(ctx context.Context, bookingID int64) (models.BookingPayment, error)
	UpdateStatus(ctx context.Context, upd models.PaymentStatusUpdate) (models.BookingPayment, error)
	ClaimRelease(ctx context.Context, bookingID int64, reference string, amount decimal.Decimal) (models.BookingPayment, error)
	ClearRelease(ctx context.Context, bookingID int64, reference string) error
}

type paymentRepo struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) PaymentRepository {
	return &paymentRepo{db: db}
}

const paymentColumns = `id, booking_id, provider_id, amount, currency, method, status, transaction_id,
	release_reference, released_amount, paid_at, refunded_at, refund_reason, refunded_amount, created_at, updated_at`

func scanPayment(row rowScanner) (models.BookingPayment, error) {
	var p models.BookingPayment
	err := row.Scan(&p.ID, &p.BookingID, &p.ProviderID, &p.Amount, &p.Currency, &p.Method, &p.Status,
		&p.TransactionID, &p.ReleaseReference, &p.ReleasedAmount, &p.PaidAt, &p.RefundedAt,
		&p.RefundReason, &p.RefundedAmount, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *paymentRepo) Create(ctx context.Context, p *models.BookingPayment) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO booking_payments (booking_id, provider_id, amount, currency, method, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, p.BookingID, p.ProviderID, p.Amount, p.Currency, p.Method, p.Status).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return apperrors.ErrPaymentExists
	}
	if err != nil {
		logger.Log.Error("failed to create booking payment", zap.Int64("booking", p.BookingID), zap.Error(err))
	}
	return err
}

func (r *paymentRepo) GetByBooking(ctx context.Context, bookingID int64) (models.BookingPayment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM booking_payments WHERE booking_id = $1`, bookingID)

	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.BookingPayment{}, apperrors.ErrPaymentNotFound
	}
	if err != nil {
		return models.BookingPayment{}, err
	}
	return p, nil
}

// UpdateStatus applies one explicit state transition. The WHERE clause checks
// the expected current status, so a row that moved on in the meantime is
// reported as ErrInvalidStateTransition instead of being silently rewritten.
func (r *paymentRepo) UpdateStatus(ctx context.Context, upd models.PaymentStatusUpdate) (models.BookingPayment, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE booking_payments SET
			status = $1,
			transaction_id = COALESCE($2, transaction_id),
			release_reference = COALESCE($3, release_reference),
			released_amount = COALESCE($4, released_amount),
			paid_at = COALESCE($5, paid_at),
			refunded_at = COALESCE($6, refunded_at),
			refund_reason = COALESCE($7, refund_reason),
			refunded_amount = COALESCE($8, refunded_amount),
			updated_at = now()
		WHERE booking_id = $9 AND status = $10
		RETURNING `+paymentColumns+`
	`, upd.NewStatus, upd.TransactionID, upd.ReleaseReference, upd.ReleasedAmount,
		upd.PaidAt, upd.RefundedAt, upd.RefundReason, upd.RefundedAmount,
		upd.BookingID, upd.ExpectStatus)

	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.BookingPayment{}, r.transitionError(ctx, upd)
	}
	if err != nil {
		return models.BookingPayment{}, err
	}
	return p, nil
}

// ClaimRelease stamps the release marker on a paid payment. The WHERE clause
// insists the marker is still unset, so of two concurrent releases exactly one
// wins the row and the other gets ErrInvalidStateTransition.
func (r *paymentRepo) ClaimRelease(ctx context.Context, bookingID int64, reference string, amount decimal.Decimal) (models.BookingPayment, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE booking_payments SET
			release_reference = $1,
			released_amount = $2,
			updated_at = now()
		WHERE booking_id = $3 AND status = $4 AND release_reference IS NULL
		RETURNING `+paymentColumns+`
	`, reference, amount, bookingID, models.PaymentPaid)

	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		current, getErr := r.GetByBooking(ctx, bookingID)
		if getErr != nil {
			return models.BookingPayment{}, getErr
		}
		if current.ReleaseReference != nil {
			return models.BookingPayment{}, fmt.Errorf("booking %d already released as %s: %w",
				bookingID, *current.ReleaseReference, apperrors.ErrInvalidStateTransition)
		}
		return models.BookingPayment{}, fmt.Errorf("payment for booking %d is %s, expected %s: %w",
			bookingID, current.Status, models.PaymentPaid, apperrors.ErrInvalidStateTransition)
	}
	if err != nil {
		return models.BookingPayment{}, err
	}
	return p, nil
}

// ClearRelease removes the marker set by ClaimRelease. Only the claim that
// stamped the given reference can undo it.
func (r *paymentRepo) ClearRelease(ctx context.Context, bookingID int64, reference string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE booking_payments SET
			release_reference = NULL,
			released_amount = NULL,
			updated_at = now()
		WHERE booking_id = $1 AND release_reference = $2
	`, bookingID, reference)
	if err != nil {
		logger.Log.Error("failed to clear release marker", zap.Int64("booking", bookingID), zap.Error(err))
	}
	return err
}

func (r *paymentRepo) transitionError(ctx context.Context, upd models.PaymentStatusUpdate) error {
	p, err := r.GetByBooking(ctx, upd.BookingID)
	if err != nil {
		return err
	}
	return fmt.Errorf("payment for booking %d is %s, expected %s: %w",
		upd.BookingID, p.Status, upd.ExpectStatus, apperrors.ErrInvalidStateTransition)
}
