package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/adilmk/homeserve/internal/apperrors"
	"github.com/adilmk/homeserve/internal/logger"
	"github.com/adilmk/homeserve/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultListLimit = 50

type TransactionRepository interface {
	ListByOwner(ctx context.Context, ownerID int64, filter models.TransactionFilter) ([]models.Transaction, error)
	GetByReference(ctx context.Context, reference string) (models.Transaction, error)
	SumCompleted(ctx context.Context, walletID int64) (decimal.Decimal, error)
}

type transactionRepo struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) TransactionRepository {
	return &transactionRepo{db: db}
}

func (r *transactionRepo) ListByOwner(ctx context.Context, ownerID int64, filter models.TransactionFilter) ([]models.Transaction, error) {
	query := `
		SELECT id, wallet_id, owner_id, type, amount, currency, description, reference, status, metadata, balance_before, balance_after, created_at
		FROM wallet_transactions WHERE owner_id = $1
	`
	args := []interface{}{ownerID}

	if filter.Type != "" {
		args = append(args, filter.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.Log.Error("failed to query transactions", zap.Error(err))
		return nil, err
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			logger.Log.Error("failed to close rows", zap.Error(err))
		}
	}(rows)

	var entries []models.Transaction
	for rows.Next() {
		var e models.Transaction
		if err := rows.Scan(&e.ID, &e.WalletID, &e.OwnerID, &e.Type, &e.Amount, &e.Currency, &e.Description,
			&e.Reference, &e.Status, &e.Metadata, &e.BalanceBefore, &e.BalanceAfter, &e.CreatedAt); err != nil {
			logger.Log.Error("failed to scan transaction", zap.Error(err))
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *transactionRepo) GetByReference(ctx context.Context, reference string) (models.Transaction, error) {
	var e models.Transaction
	query := `
		SELECT id, wallet_id, owner_id, type, amount, currency, description, reference, status, metadata, balance_before, balance_after, created_at
		FROM wallet_transactions WHERE reference = $1
	`
	err := r.db.QueryRowContext(ctx, query, reference).
		Scan(&e.ID, &e.WalletID, &e.OwnerID, &e.Type, &e.Amount, &e.Currency, &e.Description,
			&e.Reference, &e.Status, &e.Metadata, &e.BalanceBefore, &e.BalanceAfter, &e.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return models.Transaction{}, apperrors.ErrTransactionNotFound
	}
	if err != nil {
		return models.Transaction{}, err
	}
	return e, nil
}

// SumCompleted returns the signed sum of all completed entries for a wallet,
// which must equal the wallet's stored balance at any point in time.
func (r *transactionRepo) SumCompleted(ctx context.Context, walletID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	query := `
		SELECT COALESCE(SUM(amount), 0) FROM wallet_transactions
		WHERE wallet_id = $1 AND status = 'completed'
	`
	if err := r.db.QueryRowContext(ctx, query, walletID).Scan(&sum); err != nil {
		logger.Log.Error("failed to sum transactions", zap.Int64("wallet", walletID), zap.Error(err))
		return decimal.Zero, err
	}
	return sum, nil
}
