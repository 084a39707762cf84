package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/adilmk/homeserve/internal/apperrors"
	"github.com/adilmk/homeserve/internal/logger"
	"github.com/adilmk/homeserve/internal/models"
	"github.com/adilmk/homeserve/internal/utils"
	"go.uber.org/zap"
)

type WithdrawalRepository interface {
	CreateWithHold(ctx context.Context, wd *models.WithdrawalRequest) error
	GetByID(ctx context.Context, id int64) (models.WithdrawalRequest, error)
	ListByProvider(ctx context.Context, providerID int64, limit, offset int) ([]models.WithdrawalRequest, error)
	Claim(ctx context.Context, id, adminID int64, notes string) (models.WithdrawalRequest, error)
	Complete(ctx context.Context, id int64, payoutReference string) (models.WithdrawalRequest, error)
	Fail(ctx context.Context, id int64, message string) (models.WithdrawalRequest, error)
	Reject(ctx context.Context, id, adminID int64, reason, notes string) (models.WithdrawalRequest, error)
	Cancel(ctx context.Context, id, providerID int64) (models.WithdrawalRequest, error)
	GetStats(ctx context.Context) (models.WithdrawalStats, error)
}

type withdrawalRepo struct {
	db *sql.DB
}

func NewWithdrawalRepository(db *sql.DB) WithdrawalRepository {
	return &withdrawalRepo{db: db}
}

const withdrawalColumns = `id, provider_id, wallet_id, amount, fee, net_amount, currency, method, details, reference, status,
	hold_reference, payout_reference, admin_notes, rejection_reason, reviewed_by, reviewed_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWithdrawal(row rowScanner) (models.WithdrawalRequest, error) {
	var wd models.WithdrawalRequest
	err := row.Scan(&wd.ID, &wd.ProviderID, &wd.WalletID, &wd.Amount, &wd.Fee, &wd.NetAmount, &wd.Currency,
		&wd.Method, &wd.Details, &wd.Reference, &wd.Status, &wd.HoldReference, &wd.PayoutReference,
		&wd.AdminNotes, &wd.RejectionReason, &wd.ReviewedBy, &wd.ReviewedAt, &wd.CreatedAt, &wd.UpdatedAt)
	return wd, err
}

// CreateWithHold reserves the requested amount with a hold ledger entry and
// inserts the withdrawal row, all in one transaction. An insufficient balance
// rolls everything back, so no withdrawal record survives a failed check.
func (r *withdrawalRepo) CreateWithHold(ctx context.Context, wd *models.WithdrawalRequest) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		rollbackOnErr(tx, err)
	}()

	wallet, err := lockWalletByOwner(ctx, tx, wd.ProviderID)
	if err != nil {
		return err
	}

	hold, err := applyOperation(ctx, tx, &wallet, models.WalletOperation{
		OwnerID:     wd.ProviderID,
		Type:        models.TransactionHold,
		Amount:      wd.Amount,
		Currency:    wd.Currency,
		Description: "hold for withdrawal request",
		Metadata:    models.Metadata{"withdrawal_reference": wd.Reference},
	})
	if err != nil {
		return err
	}

	wd.WalletID = wallet.ID
	wd.Status = models.WithdrawalPending
	wd.HoldReference = hold.Reference

	err = tx.QueryRowContext(ctx, `
		INSERT INTO withdrawal_requests
			(provider_id, wallet_id, amount, fee, net_amount, currency, method, details, reference, status, hold_reference, admin_notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, '')
		RETURNING id, created_at, updated_at
	`, wd.ProviderID, wd.WalletID, wd.Amount, wd.Fee, wd.NetAmount, wd.Currency, wd.Method, wd.Details,
		wd.Reference, wd.Status, wd.HoldReference).
		Scan(&wd.ID, &wd.CreatedAt, &wd.UpdatedAt)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *withdrawalRepo) GetByID(ctx context.Context, id int64) (models.WithdrawalRequest, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE id = $1`, id)

	wd, err := scanWithdrawal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.WithdrawalRequest{}, apperrors.ErrWithdrawalNotFound
	}
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	return wd, nil
}

func (r *withdrawalRepo) ListByProvider(ctx context.Context, providerID int64, limit, offset int) ([]models.WithdrawalRequest, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+withdrawalColumns+` FROM withdrawal_requests
		WHERE provider_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3
	`, providerID, limit, offset)
	if err != nil {
		logger.Log.Error("failed to query withdrawals", zap.Error(err))
		return nil, err
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			logger.Log.Error("failed to close rows", zap.Error(err))
		}
	}(rows)

	var withdrawals []models.WithdrawalRequest
	for rows.Next() {
		wd, err := scanWithdrawal(rows)
		if err != nil {
			logger.Log.Error("failed to scan withdrawal", zap.Error(err))
			return nil, err
		}
		withdrawals = append(withdrawals, wd)
	}
	return withdrawals, rows.Err()
}

// Claim moves a pending request to approved so only one admin wins the race
// to run the payout. The status guard in the UPDATE is the serialization
// point: the second concurrent claim sees zero rows.
func (r *withdrawalRepo) Claim(ctx context.Context, id, adminID int64, notes string) (models.WithdrawalRequest, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE withdrawal_requests
		SET status = $1, reviewed_by = $2, reviewed_at = now(), admin_notes = $3, updated_at = now()
		WHERE id = $4 AND status = $5
		RETURNING `+withdrawalColumns+`
	`, models.WithdrawalApproved, adminID, notes, id, models.WithdrawalPending)

	wd, err := scanWithdrawal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.WithdrawalRequest{}, r.transitionError(ctx, id)
	}
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	return wd, nil
}

// Complete consumes the hold after a successful payout: the hold is released
// and the withdrawal debit recorded, netting to zero against the balance that
// was already reduced at request time. Both entries and the status change are
// one transaction.
func (r *withdrawalRepo) Complete(ctx context.Context, id int64, payoutReference string) (wd models.WithdrawalRequest, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	defer func() {
		rollbackOnErr(tx, err)
	}()

	wd, err = r.lockForTransition(ctx, tx, id, models.WithdrawalApproved)
	if err != nil {
		return models.WithdrawalRequest{}, err
	}

	wallet, err := lockWalletByID(ctx, tx, wd.WalletID)
	if err != nil {
		return models.WithdrawalRequest{}, err
	}

	if _, err = applyOperation(ctx, tx, &wallet, models.WalletOperation{
		OwnerID:     wd.ProviderID,
		Type:        models.TransactionRelease,
		Amount:      wd.Amount,
		Currency:    wd.Currency,
		Description: "release hold for completed withdrawal",
		Metadata:    models.Metadata{"withdrawal_reference": wd.Reference, "hold_reference": wd.HoldReference},
	}); err != nil {
		return models.WithdrawalRequest{}, err
	}

	if _, err = applyOperation(ctx, tx, &wallet, models.WalletOperation{
		OwnerID:     wd.ProviderID,
		Type:        models.TransactionWithdrawal,
		Amount:      wd.Amount,
		Currency:    wd.Currency,
		Description: "withdrawal payout",
		Metadata: models.Metadata{
			"withdrawal_reference": wd.Reference,
			"payout_reference":     payoutReference,
			"fee":                  wd.Fee.String(),
			"net_amount":           wd.NetAmount.String(),
		},
	}); err != nil {
		return models.WithdrawalRequest{}, err
	}

	row := tx.QueryRowContext(ctx, `
		UPDATE withdrawal_requests
		SET status = $1, payout_reference = $2, updated_at = now()
		WHERE id = $3
		RETURNING `+withdrawalColumns+`
	`, models.WithdrawalCompleted, payoutReference, id)
	wd, err = scanWithdrawal(row)
	if err != nil {
		return models.WithdrawalRequest{}, err
	}

	err = tx.Commit()
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	return wd, nil
}

// Fail releases the hold after a payout failure and parks the request in the
// terminal failed status. The provider keeps the funds; a retry is a new
// request with a new reference.
func (r *withdrawalRepo) Fail(ctx context.Context, id int64, message string) (wd models.WithdrawalRequest, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	defer func() {
		rollbackOnErr(tx, err)
	}()

	wd, err = r.lockForTransition(ctx, tx, id, models.WithdrawalApproved)
	if err != nil {
		return models.WithdrawalRequest{}, err
	}

	if err = r.releaseHold(ctx, tx, wd, "release hold for failed payout"); err != nil {
		return models.WithdrawalRequest{}, err
	}

	row := tx.QueryRowContext(ctx, `
		UPDATE withdrawal_requests
		SET status = $1, admin_notes = admin_notes || $2, updated_at = now()
		WHERE id = $3
		RETURNING `+withdrawalColumns+`
	`, models.WithdrawalFailed, fmt.Sprintf(" [payout failed: %s]", message), id)
	wd, err = scanWithdrawal(row)
	if err != nil {
		return models.WithdrawalRequest{}, err
	}

	err = tx.Commit()
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	return wd, nil
}

func (r *withdrawalRepo) Reject(ctx context.Context, id, adminID int64, reason, notes string) (wd models.WithdrawalRequest, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	defer func() {
		rollbackOnErr(tx, err)
	}()

	wd, err = r.lockForTransition(ctx, tx, id, models.WithdrawalPending)
	if err != nil {
		return models.WithdrawalRequest{}, err
	}

	if err = r.releaseHold(ctx, tx, wd, "release hold for rejected withdrawal"); err != nil {
		return models.WithdrawalRequest{}, err
	}

	row := tx.QueryRowContext(ctx, `
		UPDATE withdrawal_requests
		SET status = $1, rejection_reason = $2, reviewed_by = $3, reviewed_at = now(), admin_notes = $4, updated_at = now()
		WHERE id = $5
		RETURNING `+withdrawalColumns+`
	`, models.WithdrawalRejected, reason, adminID, notes, id)
	wd, err = scanWithdrawal(row)
	if err != nil {
		return models.WithdrawalRequest{}, err
	}

	err = tx.Commit()
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	return wd, nil
}

func (r *withdrawalRepo) Cancel(ctx context.Context, id, providerID int64) (wd models.WithdrawalRequest, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	defer func() {
		rollbackOnErr(tx, err)
	}()

	wd, err = r.lockForTransition(ctx, tx, id, models.WithdrawalPending)
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	if wd.ProviderID != providerID {
		err = apperrors.ErrNotRequestOwner
		return models.WithdrawalRequest{}, err
	}

	if err = r.releaseHold(ctx, tx, wd, "release hold for cancelled withdrawal"); err != nil {
		return models.WithdrawalRequest{}, err
	}

	row := tx.QueryRowContext(ctx, `
		UPDATE withdrawal_requests SET status = $1, updated_at = now() WHERE id = $2
		RETURNING `+withdrawalColumns+`
	`, models.WithdrawalCancelled, id)
	wd, err = scanWithdrawal(row)
	if err != nil {
		return models.WithdrawalRequest{}, err
	}

	err = tx.Commit()
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	return wd, nil
}

func (r *withdrawalRepo) GetStats(ctx context.Context) (models.WithdrawalStats, error) {
	var stats models.WithdrawalStats

	byStatus, err := r.statGroups(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(amount), 0)
		FROM withdrawal_requests GROUP BY status ORDER BY status
	`)
	if err != nil {
		return models.WithdrawalStats{}, err
	}
	stats.ByStatus = byStatus

	byMethod, err := r.statGroups(ctx, `
		SELECT method, COUNT(*), COALESCE(SUM(amount), 0)
		FROM withdrawal_requests GROUP BY method ORDER BY method
	`)
	if err != nil {
		return models.WithdrawalStats{}, err
	}
	stats.ByMethod = byMethod

	return stats, nil
}

func (r *withdrawalRepo) statGroups(ctx context.Context, query string) ([]models.WithdrawalStatGroup, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		logger.Log.Error("failed to query withdrawal stats", zap.Error(err))
		return nil, err
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			logger.Log.Error("failed to close rows", zap.Error(err))
		}
	}(rows)

	var groups []models.WithdrawalStatGroup
	for rows.Next() {
		var g models.WithdrawalStatGroup
		if err := rows.Scan(&g.Key, &g.Count, &g.Amount); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// lockForTransition reads the request under FOR UPDATE and verifies it is
// still in the expected status, so state checks happen before any mutation
// and stay valid until commit.
func (r *withdrawalRepo) lockForTransition(ctx context.Context, tx *sql.Tx, id int64, expect models.WithdrawalStatus) (models.WithdrawalRequest, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE id = $1 FOR UPDATE`, id)

	wd, err := scanWithdrawal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.WithdrawalRequest{}, apperrors.ErrWithdrawalNotFound
	}
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	if wd.Status != expect {
		return models.WithdrawalRequest{}, fmt.Errorf("withdrawal %d is %s: %w",
			id, wd.Status, apperrors.ErrInvalidStateTransition)
	}
	return wd, nil
}

func (r *withdrawalRepo) releaseHold(ctx context.Context, tx *sql.Tx, wd models.WithdrawalRequest, description string) error {
	wallet, err := lockWalletByID(ctx, tx, wd.WalletID)
	if err != nil {
		return err
	}

	_, err = applyOperation(ctx, tx, &wallet, models.WalletOperation{
		OwnerID:     wd.ProviderID,
		Type:        models.TransactionRelease,
		Amount:      wd.Amount,
		Currency:    wd.Currency,
		Description: description,
		Reference:   utils.NewReference("TXN"),
		Metadata:    models.Metadata{"withdrawal_reference": wd.Reference, "hold_reference": wd.HoldReference},
	})
	return err
}

func (r *withdrawalRepo) transitionError(ctx context.Context, id int64) error {
	wd, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("withdrawal %d is %s: %w", id, wd.Status, apperrors.ErrInvalidStateTransition)
}
